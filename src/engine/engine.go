package engine

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/metrics"
	"ohlc-streamer/src/models"
)

var (
	ErrInvalidInterval = errors.New("bar interval must be between 1 and 2^64-2")
	ErrRolloverLimit   = errors.New("bar rollover limit exceeded")
)

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

// Engine turns trades into bar updates. All aggregation state is touched only by
// the goroutine driving it (Run, or the caller of HandleTrade/AdvanceTime);
// Status and RequestShutdown are the only methods safe to call concurrently.
type Engine struct {
	interval    uint64
	maxRollover uint64
	idleTimeout time.Duration

	state State
	cache *barCache
	out   []models.MBarUpdate

	heartbeat *Heartbeat
	control   chan State

	// mirrors read by Status
	stateView   atomic.Int32
	symbolsView atomic.Int64
	trades      atomic.Uint64
	updates     atomic.Uint64

	log *logger.Logger
}

// -----------------------------------------------------------------------------

// NewEngine builds an engine in the STARTING state.
func NewEngine(cfg *models.MConfig, log *logger.Logger) (*Engine, error) {
	interval := cfg.Engine.BarInterval
	if interval == 0 || interval == math.MaxUint64 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInterval, interval)
	}

	maxRollover := cfg.Engine.MaxRollover
	if maxRollover == 0 {
		maxRollover = math.MaxUint64
	}

	e := &Engine{
		interval:    interval,
		maxRollover: maxRollover,
		idleTimeout: time.Duration(cfg.Engine.IdleTimeoutMs) * time.Millisecond,
		state:       StateStarting,
		cache:       newBarCache(),
		control:     make(chan State, 1),
		log:         log,
	}
	e.stateView.Store(int32(StateStarting))
	return e, nil
}

// -----------------------------------------------------------------------------

// SetHeartbeat enables periodic TIME_ADVANCE events on idle timeouts.
func (e *Engine) SetHeartbeat(hb *Heartbeat) {
	e.heartbeat = hb
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start moves STARTING to READY. It is a no-op in any other state.
func (e *Engine) Start() {
	if e.state == StateStarting {
		e.setState(StateReady)
	}
}

// Shutdown moves the engine to DOWN; every later event is ignored.
func (e *Engine) Shutdown() {
	e.setState(StateDown)
}

// RequestShutdown asks the running worker to shut the engine down. Safe to call
// from any goroutine.
func (e *Engine) RequestShutdown() {
	select {
	case e.control <- StateDown:
	default:
	}
}

// State returns the current state. Worker goroutine only; use Status elsewhere.
func (e *Engine) State() State {
	return e.state
}

func (e *Engine) setState(s State) {
	if e.state != s {
		e.log.Info("Engine state %s -> %s", e.state, s)
	}
	e.state = s
	e.stateView.Store(int32(s))
}

// -----------------------------------------------------------------------------

// Status returns counters and state. Safe for concurrent use.
func (e *Engine) Status() models.MEngineStatus {
	return models.MEngineStatus{
		State:   State(e.stateView.Load()).String(),
		Symbols: int(e.symbolsView.Load()),
		Trades:  e.trades.Load(),
		Updates: e.updates.Load(),
	}
}

// -----------------------------------------------------------------------------
// Event entry points
// -----------------------------------------------------------------------------

// HandleTrade processes a TRADE_ARRIVAL followed by the TIME_ADVANCE it implies
// and returns the bar updates emitted, in order.
func (e *Engine) HandleTrade(t models.MTrade) ([]models.MBarUpdate, error) {
	e.out = e.out[:0]

	if err := e.process(event{kind: evTradeArrival, trade: t, timestamp: t.Timestamp}); err != nil {
		return e.flush(), err
	}
	// Trade timestamps double as the clock: every trade advances time for all symbols.
	if err := e.process(event{kind: evTimeAdvance, timestamp: t.Timestamp}); err != nil {
		return e.flush(), err
	}
	return e.flush(), nil
}

// AdvanceTime processes a standalone TIME_ADVANCE.
func (e *Engine) AdvanceTime(ts uint64) ([]models.MBarUpdate, error) {
	e.out = e.out[:0]
	err := e.process(event{kind: evTimeAdvance, timestamp: ts})
	return e.flush(), err
}

// flush hands out a copy of the pending updates so the buffer can be reused.
func (e *Engine) flush() []models.MBarUpdate {
	if len(e.out) == 0 {
		return nil
	}
	updates := make([]models.MBarUpdate, len(e.out))
	copy(updates, e.out)
	e.out = e.out[:0]
	return updates
}

// -----------------------------------------------------------------------------
// Handlers (READY only, see dispatch)
// -----------------------------------------------------------------------------

func (e *Engine) onTradeArrival(ev event) error {
	t := ev.trade
	e.trades.Add(1)
	metrics.TradesProcessed.Inc()

	bar, ok := e.cache.get(t.Symbol)
	if !ok {
		bar = newBar(t, e.interval)
		e.cache.put(bar)
		e.symbolsView.Store(int64(e.cache.len()))
		e.emit(bar, models.KindTradeUpdate)
		return nil
	}

	if t.Timestamp > bar.BarEnd {
		if err := e.closeUntil(bar, t.Timestamp, models.KindPeriodClose); err != nil {
			return err
		}
	}

	applyTrade(bar, t)
	e.emit(bar, models.KindTradeUpdate)
	return nil
}

// -----------------------------------------------------------------------------

func (e *Engine) onTimeAdvance(ev event) error {
	for _, sym := range e.cache.symbols {
		bar := e.cache.bars[sym]
		if bar.BarEnd >= ev.timestamp {
			continue
		}
		if err := e.closeUntil(bar, ev.timestamp, models.KindTimerClose); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// closeUntil closes bar and its empty successors, one per step, until the open
// bar ends at or after ts. The step count is checked up front so an oversized
// gap leaves the bar untouched.
func (e *Engine) closeUntil(bar *models.MBar, ts uint64, kind models.MUpdateKind) error {
	steps := barsToClose(bar.BarEnd, ts, e.interval)
	if steps > e.maxRollover {
		e.setState(StateDown)
		return fmt.Errorf("%w: %s needs %d bars to reach %d (limit %d)",
			ErrRolloverLimit, bar.Symbol, steps, ts, e.maxRollover)
	}

	for ; steps > 0 && bar.BarEnd < ts; steps-- {
		e.emit(bar, kind)
		advance(bar, e.interval)
	}
	return nil
}

// -----------------------------------------------------------------------------

// emit queues a snapshot of bar. Non-final snapshots report a zero close.
func (e *Engine) emit(bar *models.MBar, kind models.MUpdateKind) {
	snap := *bar
	if !kind.IsClose() {
		snap.Close = 0
	}
	e.out = append(e.out, models.MBarUpdate{Symbol: bar.Symbol, Bar: snap, Kind: kind})
	e.updates.Add(1)
	metrics.BarUpdates.WithLabelValues(kind.String()).Inc()
}
