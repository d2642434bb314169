package engine

import (
	"context"

	"ohlc-streamer/src/helpers"
	"ohlc-streamer/src/models"
	"ohlc-streamer/src/utils"
)

// Run is the engine worker loop. It moves the engine to READY, then consumes
// trades from in and emits bar updates to out until ctx is cancelled or in is
// closed. Sends on out block, so a slow hub back-pressures the source.
// out is closed on return. A non-nil error means the engine hit a fatal
// invariant violation and is DOWN.
func (e *Engine) Run(ctx context.Context, in <-chan models.MTrade, out chan<- models.MBarUpdate) error {
	defer close(out)

	e.Start()
	e.log.Info("Engine worker started (interval=%d, max_rollover=%d)", e.interval, e.maxRollover)

	idle := utils.NewIdleTimer(e.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("Engine worker stopping: %v", ctx.Err())
			return nil

		case s := <-e.control:
			if s == StateDown {
				e.Shutdown()
			}

		case t, ok := <-in:
			if !ok {
				e.log.Info("Trade channel closed, engine worker exiting")
				return nil
			}

			// Drain everything already queued before waiting again.
			batch := 0
			for {
				batch++
				stop, err := e.consume(ctx, t, out)
				if err != nil || stop {
					return err
				}

				var more bool
				select {
				case t, more = <-in:
				default:
				}
				if !more {
					break
				}
			}
			if e.log.DebugEnabled() {
				e.log.Debug("Drained %d trades", batch)
			}
			idle.Reset()

		case <-idle.C():
			if err := e.onIdle(ctx, out); err != nil {
				return helpers.NewEngineError("aggregation halted", err)
			}
			idle.Reset()
		}
	}
}

// -----------------------------------------------------------------------------

// consume runs one trade through the FSM and forwards the resulting updates.
// stop is true when ctx was cancelled while forwarding.
func (e *Engine) consume(ctx context.Context, t models.MTrade, out chan<- models.MBarUpdate) (bool, error) {
	updates, err := e.HandleTrade(t)
	if stop := e.forward(ctx, updates, out); stop {
		return true, nil
	}
	if err != nil {
		e.log.Error("Fatal aggregation error: %v", err)
		return true, helpers.NewEngineError("aggregation halted", err)
	}
	return false, nil
}

// -----------------------------------------------------------------------------

func (e *Engine) forward(ctx context.Context, updates []models.MBarUpdate, out chan<- models.MBarUpdate) bool {
	for _, u := range updates {
		select {
		case out <- u:
		case <-ctx.Done():
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// onIdle observes idleness and, with a heartbeat configured and a market open,
// advances time from the wall clock. An error is fatal, as on the trade path.
func (e *Engine) onIdle(ctx context.Context, out chan<- models.MBarUpdate) error {
	if e.heartbeat == nil {
		if e.log.DebugEnabled() {
			e.log.Debug("Engine idle (%d symbols, state %s)", e.cache.len(), e.state)
		}
		return nil
	}

	ts, ok := e.heartbeat.Tick()
	if !ok {
		return nil
	}

	updates, err := e.AdvanceTime(ts)
	if stop := e.forward(ctx, updates, out); stop {
		return nil
	}
	if err != nil {
		e.log.Error("Fatal heartbeat time advance: %v", err)
		return err
	}
	return nil
}
