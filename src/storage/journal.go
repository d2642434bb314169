package storage

import (
	"context"
	"time"

	"ohlc-streamer/src/helpers"
	"ohlc-streamer/src/interfaces"
	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/metrics"
	"ohlc-streamer/src/models"
	"ohlc-streamer/src/utils"
)

const (
	journalBatchSize = 256
	cleanupEvery     = time.Hour
)

// -----------------------------------------------------------------------------
// Journal
// -----------------------------------------------------------------------------

// Journal batches closed bars into an IBarStore. Batches are flushed when
// full, after flushInterval without input, and on shutdown.
type Journal struct {
	store         interfaces.IBarStore
	flushInterval time.Duration
	log           *logger.Logger
	pending       []models.MBar
	lastCleanup   time.Time
}

// -----------------------------------------------------------------------------

func NewJournal(store interfaces.IBarStore, flushInterval time.Duration, log *logger.Logger) *Journal {
	return &Journal{
		store:         store,
		flushInterval: flushInterval,
		log:           log,
		pending:       make([]models.MBar, 0, journalBatchSize),
		lastCleanup:   time.Now(),
	}
}

// -----------------------------------------------------------------------------

// Run consumes closed bars until in is closed or ctx is cancelled. Pending
// bars are written before returning.
func (j *Journal) Run(ctx context.Context, in <-chan models.MBar) error {
	j.log.Info("Bar journal started")
	defer j.flush()

	idle := utils.NewIdleTimer(j.flushInterval)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case bar, ok := <-in:
			if !ok {
				return nil
			}
			j.pending = append(j.pending, bar)
			if len(j.pending) >= journalBatchSize {
				j.flush()
			}
			idle.Reset()

		case <-idle.C():
			j.flush()
			j.maybeCleanup()
			idle.Reset()
		}
	}
}

// -----------------------------------------------------------------------------

func (j *Journal) flush() {
	if len(j.pending) == 0 {
		return
	}

	if err := j.store.SaveBars(j.pending); err != nil {
		j.log.Error("%v", helpers.NewDatabaseError("failed to journal bars", err))
	} else {
		metrics.BarsJournaled.Add(float64(len(j.pending)))
		if j.log.DebugEnabled() {
			j.log.Debug("Journaled %d bars", len(j.pending))
		}
	}
	j.pending = j.pending[:0]
}

// -----------------------------------------------------------------------------

func (j *Journal) maybeCleanup() {
	if time.Since(j.lastCleanup) < cleanupEvery {
		return
	}
	j.lastCleanup = time.Now()
	if err := j.store.CleanupOldData(); err != nil {
		j.log.Warning("Journal cleanup failed: %v", err)
	}
}
