package interfaces

import "ohlc-streamer/src/models"

// -----------------------------------------------------------------------------
// IBarStore is the session journal of closed bars.
// -----------------------------------------------------------------------------

type IBarStore interface {

	// -----------------------------------------------------------------------------

	// Initialize connects and (re)creates the schema.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveBars inserts a batch of closed bars.
	SaveBars(bars []models.MBar) error

	// -----------------------------------------------------------------------------

	// RecentBars returns up to limit closed bars of a symbol, newest first.
	RecentBars(symbol string, limit int) ([]models.MBar, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes bars journaled before the retention window.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
