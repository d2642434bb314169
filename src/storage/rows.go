package storage

import (
	"database/sql"

	"ohlc-streamer/src/models"
)

// scanBars reads the SELECT column order shared by every backend and closes rows.
func scanBars(rows *sql.Rows) ([]models.MBar, error) {
	defer rows.Close()

	var bars []models.MBar
	for rows.Next() {
		var (
			b                           models.MBar
			symbol                      string
			seq, start, end, tradeCount int64
		)
		if err := rows.Scan(&symbol, &seq, &start, &end, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &tradeCount); err != nil {
			return nil, err
		}
		b.Symbol = models.Symbol(symbol)
		b.Sequence = uint64(seq)
		b.BarStart = uint64(start)
		b.BarEnd = uint64(end)
		b.Trades = uint64(tradeCount)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
