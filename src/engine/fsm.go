package engine

import "ohlc-streamer/src/models"

// State is the lifecycle state of the aggregation engine.
type State int32

const (
	StateStarting State = iota
	StateReady
	StateDown
	numStates
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateReady:
		return "READY"
	case StateDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// -----------------------------------------------------------------------------

type eventKind uint8

const (
	evTradeArrival eventKind = iota
	evTimeAdvance
	numEvents
)

func (k eventKind) String() string {
	if k == evTradeArrival {
		return "TRADE_ARRIVAL"
	}
	return "TIME_ADVANCE"
}

// event is one FSM input. trade is only meaningful for evTradeArrival.
type event struct {
	kind      eventKind
	trade     models.MTrade
	timestamp uint64
}

// -----------------------------------------------------------------------------
// Dispatch table
// -----------------------------------------------------------------------------

type handlerFunc func(e *Engine, ev event) error

// dispatch maps (state, event) to a handler. Empty cells are ignored inputs:
// no mutation and no error.
var dispatch = [numStates][numEvents]handlerFunc{
	StateReady: {
		evTradeArrival: (*Engine).onTradeArrival,
		evTimeAdvance:  (*Engine).onTimeAdvance,
	},
}

// process routes ev through the dispatch table.
func (e *Engine) process(ev event) error {
	if e.state < 0 || e.state >= numStates {
		return nil
	}
	h := dispatch[e.state][ev.kind]
	if h == nil {
		if e.log.DebugEnabled() {
			e.log.Debug("Ignoring %s in state %s", ev.kind, e.state)
		}
		return nil
	}
	return h(e, ev)
}
