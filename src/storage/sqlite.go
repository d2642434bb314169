package storage

import (
	"database/sql"
	"fmt"
	"time"

	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteBarStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteBarStore(cfg *models.MConfig, log *logger.Logger) *SQLiteBarStore {
	return &SQLiteBarStore{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteBarStore) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	// One writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.recreateTables()
}

// -----------------------------------------------------------------------------

// recreateTables starts every session with an empty journal.
func (d *SQLiteBarStore) recreateTables() error {
	if _, err := d.DB.Exec("DROP TABLE IF EXISTS bars"); err != nil {
		return fmt.Errorf("failed to drop bars: %w", err)
	}

	query := `
		CREATE TABLE bars (
			symbol TEXT NOT NULL,
			bar_num INTEGER NOT NULL,
			bar_start INTEGER NOT NULL,
			bar_end INTEGER NOT NULL,
			open REAL,
			high REAL,
			low REAL,
			close REAL,
			volume REAL,
			trades INTEGER,
			journaled_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, bar_num)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create bars: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteBarStore) SaveBars(bars []models.MBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO bars (symbol, bar_num, bar_start, bar_end, open, high, low, close, volume, trades, journaled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, bar_num) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			trades = excluded.trades,
			journaled_at = excluded.journaled_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, b := range bars {
		_, err := stmt.Exec(string(b.Symbol), int64(b.Sequence), int64(b.BarStart), int64(b.BarEnd),
			b.Open, b.High, b.Low, b.Close, b.Volume, int64(b.Trades), now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteBarStore) RecentBars(symbol string, limit int) ([]models.MBar, error) {
	rows, err := d.DB.Query(`
		SELECT symbol, bar_num, bar_start, bar_end, open, high, low, close, volume, trades
		FROM bars WHERE symbol = ? ORDER BY bar_num DESC LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, err
	}
	return scanBars(rows)
}

// -----------------------------------------------------------------------------

func (d *SQLiteBarStore) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	res, err := d.DB.Exec("DELETE FROM bars WHERE journaled_at < ?", cutoff)
	if err != nil {
		d.Logger.Error("Cleanup bars error: %v", err)
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		d.Logger.Info("Cleanup removed %d bars older than %d days", n, retentionDays)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteBarStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
