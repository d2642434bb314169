package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/models"

	"github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresBarStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresBarStore keeps each binary's journal in its own schema, named
// after the executable.
func NewPostgresBarStore(cfg *models.MConfig, log *logger.Logger) (*PostgresBarStore, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresBarStore{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresBarStore) table() string {
	return pq.QuoteIdentifier(d.Schema) + ".bars"
}

// -----------------------------------------------------------------------------

func (d *PostgresBarStore) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	if _, err := d.DB.Exec("CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.recreateTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresBarStore initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresBarStore) recreateTables() error {
	if _, err := d.DB.Exec("DROP TABLE IF EXISTS " + d.table()); err != nil {
		return fmt.Errorf("failed to drop bars: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE %s (
			symbol TEXT NOT NULL,
			bar_num BIGINT NOT NULL,
			bar_start BIGINT NOT NULL,
			bar_end BIGINT NOT NULL,
			open DOUBLE PRECISION,
			high DOUBLE PRECISION,
			low DOUBLE PRECISION,
			close DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			trades BIGINT,
			journaled_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (symbol, bar_num)
		);
	`, d.table())
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create bars: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresBarStore) SaveBars(bars []models.MBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (symbol, bar_num, bar_start, bar_end, open, high, low, close, volume, trades, journaled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol, bar_num) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			trades = EXCLUDED.trades,
			journaled_at = EXCLUDED.journaled_at
	`, d.table())
	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
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

func (d *PostgresBarStore) RecentBars(symbol string, limit int) ([]models.MBar, error) {
	query := fmt.Sprintf(`
		SELECT symbol, bar_num, bar_start, bar_end, open, high, low, close, volume, trades
		FROM %s WHERE symbol = $1 ORDER BY bar_num DESC LIMIT $2
	`, d.table())
	rows, err := d.DB.Query(query, symbol, limit)
	if err != nil {
		return nil, err
	}
	return scanBars(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresBarStore) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	res, err := d.DB.Exec(fmt.Sprintf("DELETE FROM %s WHERE journaled_at < $1", d.table()), cutoff)
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

func (d *PostgresBarStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
