package interfaces

import (
	"context"
	"sync"

	"ohlc-streamer/src/models"
)

// -----------------------------------------------------------------------------
// ITradeSource produces normalized, well-formed trade events.
// -----------------------------------------------------------------------------

type ITradeSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// Start begins producing trades in the background.
	// ctx: controls the lifecycle (cancellation stops the source)
	// outputChan: channel to push trades to; sends block when it is full
	// wg: the caller has already added 1; the source calls Done once fully stopped
	Start(ctx context.Context, outputChan chan<- models.MTrade, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop terminates the source without waiting for ctx cancellation.
	Stop() error
}
