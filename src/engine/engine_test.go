package engine

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"ohlc-streamer/src/logger"
	"ohlc-streamer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testInterval = 100
	t0           = 1000
)

func newTestEngine(t *testing.T, interval, maxRollover uint64) *Engine {
	t.Helper()
	cfg := &models.MConfig{Engine: models.MEngineConfig{BarInterval: interval, MaxRollover: maxRollover}}
	e, err := NewEngine(cfg, logger.NewNop())
	require.NoError(t, err)
	e.Start()
	return e
}

func trade(sym string, price, qty float64, ts uint64) models.MTrade {
	return models.MTrade{Symbol: models.Symbol(sym), Price: price, Quantity: qty, Timestamp: ts}
}

func handle(t *testing.T, e *Engine, tr models.MTrade) []models.MBarUpdate {
	t.Helper()
	updates, err := e.HandleTrade(tr)
	require.NoError(t, err)
	return updates
}

func kinds(updates []models.MBarUpdate) []models.MUpdateKind {
	out := make([]models.MUpdateKind, len(updates))
	for i, u := range updates {
		out[i] = u.Kind
	}
	return out
}

// -----------------------------------------------------------------------------

func TestNewEngineRejectsInvalidInterval(t *testing.T) {
	for _, interval := range []uint64{0, math.MaxUint64} {
		_, err := NewEngine(&models.MConfig{Engine: models.MEngineConfig{BarInterval: interval}}, logger.NewNop())
		assert.ErrorIs(t, err, ErrInvalidInterval)
	}
}

func TestEventsIgnoredOutsideReady(t *testing.T) {
	e, err := NewEngine(&models.MConfig{Engine: models.MEngineConfig{BarInterval: testInterval}}, logger.NewNop())
	require.NoError(t, err)
	require.Equal(t, StateStarting, e.State())

	updates, err := e.HandleTrade(trade("X", 10, 5, t0))
	require.NoError(t, err)
	assert.Empty(t, updates)
	assert.Equal(t, 0, e.cache.len())

	e.Start()
	require.Equal(t, StateReady, e.State())
	assert.Len(t, handle(t, e, trade("X", 10, 5, t0)), 1)

	e.Shutdown()
	assert.Equal(t, "DOWN", e.Status().State)
	assert.Empty(t, handle(t, e, trade("X", 11, 1, t0+1)))
	updates, err = e.AdvanceTime(t0 + 10*testInterval)
	require.NoError(t, err)
	assert.Empty(t, updates)

	bar, _ := e.cache.get("X")
	assert.Equal(t, 5.0, bar.Volume)
}

func TestDispatchTableOnlyHandlesReady(t *testing.T) {
	for s := State(0); s < numStates; s++ {
		for ev := eventKind(0); ev < numEvents; ev++ {
			if s == StateReady {
				assert.NotNil(t, dispatch[s][ev], "%s/%s", s, ev)
			} else {
				assert.Nil(t, dispatch[s][ev], "%s/%s", s, ev)
			}
		}
	}
}

func TestFirstTradeOpensBar(t *testing.T) {
	e := newTestEngine(t, testInterval, 0)

	updates := handle(t, e, trade("X", 10, 5, t0))
	require.Len(t, updates, 1)

	u := updates[0]
	assert.Equal(t, models.KindTradeUpdate, u.Kind)
	assert.Equal(t, models.Symbol("X"), u.Symbol)
	assert.Equal(t, models.MBar{
		Symbol: "X", Sequence: 1, BarStart: t0, BarEnd: t0 + testInterval,
		Open: 10, High: 10, Low: 10, Close: 0, Volume: 5, Trades: 1,
	}, u.Bar)

	bar, ok := e.cache.get("X")
	require.True(t, ok)
	assert.Equal(t, 10.0, bar.Close)
}

func TestTradeWithinBarAccumulates(t *testing.T) {
	e := newTestEngine(t, testInterval, 0)
	handle(t, e, trade("X", 10, 5, t0))

	updates := handle(t, e, trade("X", 12, 3, t0+1))
	require.Equal(t, []models.MUpdateKind{models.KindTradeUpdate}, kinds(updates))

	b := updates[0].Bar
	assert.Equal(t, uint64(1), b.Sequence)
	assert.Equal(t, 10.0, b.Open)
	assert.Equal(t, 12.0, b.High)
	assert.Equal(t, 10.0, b.Low)
	assert.Equal(t, 0.0, b.Close)
	assert.Equal(t, 8.0, b.Volume)

	bar, _ := e.cache.get("X")
	assert.Equal(t, 12.0, bar.Close)
}

func TestTradeAtBarEndBelongsToBar(t *testing.T) {
	e := newTestEngine(t, testInterval, 0)
	handle(t, e, trade("X", 10, 5, t0))

	updates := handle(t, e, trade("X", 8, 1, t0+testInterval))
	require.Equal(t, []models.MUpdateKind{models.KindTradeUpdate}, kinds(updates))
	assert.Equal(t, 8.0, updates[0].Bar.Low)
	assert.Equal(t, uint64(1), updates[0].Bar.Sequence)
}

func TestSingleBarGapRollover(t *testing.T) {
	e := newTestEngine(t, testInterval, 0)
	handle(t, e, trade("X", 10, 5, t0))
	handle(t, e, trade("X", 12, 3, t0+1))

	updates := handle(t, e, trade("X", 9, 1, t0+testInterval+50))
	require.Equal(t, []models.MUpdateKind{models.KindPeriodClose, models.KindTradeUpdate}, kinds(updates))

	closed := updates[0].Bar
	assert.Equal(t, uint64(1), closed.Sequence)
	assert.Equal(t, 12.0, closed.Close)
	assert.Equal(t, 12.0, closed.High)
	assert.Equal(t, 8.0, closed.Volume)

	next := updates[1].Bar
	assert.Equal(t, uint64(2), next.Sequence)
	assert.Equal(t, uint64(t0+testInterval+1), next.BarStart)
	assert.Equal(t, uint64(t0+2*testInterval+1), next.BarEnd)
	assert.Equal(t, 9.0, next.Open)
	assert.Equal(t, 9.0, next.High)
	assert.Equal(t, 9.0, next.Low)
	assert.Equal(t, 1.0, next.Volume)
}

func TestMultiBarGapRollover(t *testing.T) {
	e := newTestEngine(t, testInterval, 0)
	handle(t, e, trade("X", 10, 5, t0))
	handle(t, e, trade("X", 12, 3, t0+1))

	// Bars are [1000,1100] [1101,1201] [1202,1302] [1303,1403].
	updates := handle(t, e, trade("X", 15, 2, 1350))
	require.Equal(t, []models.MUpdateKind{
		models.KindPeriodClose, models.KindPeriodClose, models.KindPeriodClose, models.KindTradeUpdate,
	}, kinds(updates))

	assert.Equal(t, 8.0, updates[0].Bar.Volume)
	for i, u := range updates[1:3] {
		assert.Equal(t, uint64(i+2), u.Bar.Sequence)
		assert.Equal(t, 12.0, u.Bar.Open)
		assert.Equal(t, 12.0, u.Bar.High)
		assert.Equal(t, 12.0, u.Bar.Low)
		assert.Equal(t, 12.0, u.Bar.Close)
		assert.Zero(t, u.Bar.Volume)
	}

	last := updates[3].Bar
	assert.Equal(t, uint64(4), last.Sequence)
	assert.Equal(t, uint64(1303), last.BarStart)
	assert.Equal(t, 15.0, last.Open)
	assert.Equal(t, 15.0, last.Low)
	assert.Equal(t, 2.0, last.Volume)
}

func TestTimeAdvanceClosesIdleSymbol(t *testing.T) {
	e := newTestEngine(t, testInterval, 0)
	handle(t, e, trade("X", 10, 5, t0))

	updates := handle(t, e, trade("Y", 20, 1, 1200))
	require.Len(t, updates, 2)
	assert.Equal(t, models.KindTradeUpdate, updates[0].Kind)
	assert.Equal(t, models.Symbol("Y"), updates[0].Symbol)

	closed := updates[1]
	assert.Equal(t, models.KindTimerClose, closed.Kind)
	assert.Equal(t, models.Symbol("X"), closed.Symbol)
	assert.Equal(t, models.MBar{
		Symbol: "X", Sequence: 1, BarStart: t0, BarEnd: t0 + testInterval,
		Open: 10, High: 10, Low: 10, Close: 10, Volume: 5, Trades: 1,
	}, closed.Bar)

	bar, _ := e.cache.get("X")
	assert.Equal(t, uint64(2), bar.Sequence)
	assert.Equal(t, uint64(1201), bar.BarEnd)
	assert.Zero(t, bar.Volume)

	// Advancing again inside the new bar emits nothing.
	more, err := e.AdvanceTime(1201)
	require.NoError(t, err)
	assert.Empty(t, more)
}

func TestStandaloneTimeAdvanceClosesEveryElapsedBar(t *testing.T) {
	e := newTestEngine(t, testInterval, 0)
	handle(t, e, trade("X", 10, 5, t0))
	handle(t, e, trade("Y", 7, 2, t0+50))

	updates, err := e.AdvanceTime(1250)
	require.NoError(t, err)

	bySymbol := map[models.Symbol][]models.MBarUpdate{}
	for _, u := range updates {
		assert.Equal(t, models.KindTimerClose, u.Kind)
		bySymbol[u.Symbol] = append(bySymbol[u.Symbol], u)
	}
	// X: [1000,1100] [1101,1201] closed, open [1202,1302].
	require.Len(t, bySymbol["X"], 2)
	assert.Equal(t, 5.0, bySymbol["X"][0].Bar.Volume)
	assert.Zero(t, bySymbol["X"][1].Bar.Volume)
	// Y: [1050,1150] closed, open [1151,1251].
	require.Len(t, bySymbol["Y"], 1)
	assert.Equal(t, 7.0, bySymbol["Y"][0].Bar.Close)
}

func TestFirstTradeIntoEmptyBarResetsPrices(t *testing.T) {
	e := newTestEngine(t, testInterval, 0)
	handle(t, e, trade("X", 10, 5, t0))
	_, err := e.AdvanceTime(1150)
	require.NoError(t, err)

	updates := handle(t, e, trade("X", 14, 1, 1160))
	require.Equal(t, []models.MUpdateKind{models.KindTradeUpdate}, kinds(updates))
	b := updates[0].Bar
	assert.Equal(t, uint64(2), b.Sequence)
	assert.Equal(t, 14.0, b.Open)
	assert.Equal(t, 14.0, b.Low)
	assert.Equal(t, 1.0, b.Volume)
}

func TestRolloverLimitIsFatal(t *testing.T) {
	e := newTestEngine(t, testInterval, 2)
	handle(t, e, trade("X", 10, 5, t0))

	updates, err := e.HandleTrade(trade("X", 11, 1, t0+10*testInterval))
	require.ErrorIs(t, err, ErrRolloverLimit)
	assert.Empty(t, updates)
	assert.Equal(t, StateDown, e.State())

	bar, _ := e.cache.get("X")
	assert.Equal(t, uint64(1), bar.Sequence)
}

func TestBarsToClose(t *testing.T) {
	assert.Equal(t, uint64(0), barsToClose(1100, 1100, 100))
	assert.Equal(t, uint64(1), barsToClose(1100, 1101, 100))
	assert.Equal(t, uint64(1), barsToClose(1100, 1201, 100))
	assert.Equal(t, uint64(2), barsToClose(1100, 1202, 100))
	assert.Equal(t, uint64(3), barsToClose(1100, 1350, 100))
	assert.Equal(t, uint64(1), barsToClose(0, math.MaxUint64, math.MaxUint64-1))
}

func TestBarEndSaturatesNearTimestampLimit(t *testing.T) {
	e := newTestEngine(t, testInterval, 10)

	handle(t, e, trade("X", 1, 1, math.MaxUint64-10))
	bar, _ := e.cache.get("X")
	assert.Equal(t, uint64(math.MaxUint64), bar.BarEnd)

	updates := handle(t, e, trade("X", 2, 1, math.MaxUint64))
	assert.Equal(t, []models.MUpdateKind{models.KindTradeUpdate}, kinds(updates))
	assert.Equal(t, uint64(1), updates[0].Bar.Sequence)
}

// -----------------------------------------------------------------------------
// Properties over random trade streams
// -----------------------------------------------------------------------------

func TestRandomStreamsConserveVolumeAndInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	symbols := []string{"AAA", "BBB", "CCC"}

	for round := 0; round < 20; round++ {
		e := newTestEngine(t, uint64(10+rng.Intn(50)), 0)
		traded := map[models.Symbol]float64{}
		closedVolume := map[models.Symbol]float64{}
		lastSeq := map[models.Symbol]uint64{}
		ts := uint64(t0)

		for i := 0; i < 500; i++ {
			ts += uint64(rng.Intn(40))
			tr := trade(symbols[rng.Intn(len(symbols))], 50+rng.Float64()*10, float64(1+rng.Intn(9)), ts)
			traded[tr.Symbol] += tr.Quantity

			for _, u := range handle(t, e, tr) {
				b := u.Bar
				require.GreaterOrEqual(t, b.Sequence, lastSeq[u.Symbol])
				lastSeq[u.Symbol] = b.Sequence

				if u.Kind.IsClose() {
					closedVolume[u.Symbol] += b.Volume
					assert.GreaterOrEqual(t, b.High, math.Max(b.Open, math.Max(b.Close, b.Low)))
					assert.LessOrEqual(t, b.Low, math.Min(b.Open, math.Min(b.Close, b.High)))
				} else {
					assert.Zero(t, b.Close)
					assert.GreaterOrEqual(t, b.High, b.Low)
				}
				assert.Equal(t, b.BarStart+e.interval, b.BarEnd)
			}
		}

		for sym, want := range traded {
			bar, ok := e.cache.get(sym)
			require.True(t, ok)
			assert.InDelta(t, want, closedVolume[sym]+bar.Volume, 1e-6, "round %d symbol %s", round, sym)
		}
	}
}

// -----------------------------------------------------------------------------
// Worker loop
// -----------------------------------------------------------------------------

func TestRunDrainsTradesAndClosesOutput(t *testing.T) {
	cfg := &models.MConfig{Engine: models.MEngineConfig{BarInterval: testInterval, IdleTimeoutMs: 5}}
	e, err := NewEngine(cfg, logger.NewNop())
	require.NoError(t, err)

	in := make(chan models.MTrade, 8)
	out := make(chan models.MBarUpdate, 16)
	in <- trade("X", 10, 5, t0)
	in <- trade("X", 12, 3, t0+1)
	in <- trade("X", 9, 1, t0+150)
	close(in)

	require.NoError(t, e.Run(context.Background(), in, out))

	var got []models.MUpdateKind
	for u := range out {
		got = append(got, u.Kind)
	}
	assert.Equal(t, []models.MUpdateKind{
		models.KindTradeUpdate, models.KindTradeUpdate, models.KindPeriodClose, models.KindTradeUpdate,
	}, got)

	status := e.Status()
	assert.Equal(t, "READY", status.State)
	assert.Equal(t, 1, status.Symbols)
	assert.Equal(t, uint64(3), status.Trades)
	assert.Equal(t, uint64(4), status.Updates)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	e := newTestEngine(t, testInterval, 0)
	in := make(chan models.MTrade)
	out := make(chan models.MBarUpdate)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, in, out) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
	_, open := <-out
	assert.False(t, open)
}

func TestRunHonoursShutdownRequest(t *testing.T) {
	e, err := NewEngine(&models.MConfig{Engine: models.MEngineConfig{BarInterval: testInterval}}, logger.NewNop())
	require.NoError(t, err)

	in := make(chan models.MTrade)
	out := make(chan models.MBarUpdate, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx, in, out)

	require.Eventually(t, func() bool { return e.Status().State == "READY" }, time.Second, time.Millisecond)
	e.RequestShutdown()
	require.Eventually(t, func() bool { return e.Status().State == "DOWN" }, time.Second, time.Millisecond)

	in <- trade("X", 10, 5, t0)
	cancel()
	for u := range out {
		t.Fatalf("unexpected update after shutdown: %+v", u)
	}
}

func TestRunReturnsFatalRolloverError(t *testing.T) {
	cfg := &models.MConfig{Engine: models.MEngineConfig{BarInterval: testInterval, MaxRollover: 1}}
	e, err := NewEngine(cfg, logger.NewNop())
	require.NoError(t, err)

	in := make(chan models.MTrade, 2)
	out := make(chan models.MBarUpdate, 4)
	in <- trade("X", 10, 5, t0)
	in <- trade("X", 10, 5, t0+100*testInterval)

	err = e.Run(context.Background(), in, out)
	assert.ErrorIs(t, err, ErrRolloverLimit)
	assert.Equal(t, "DOWN", e.Status().State)
}

// -----------------------------------------------------------------------------
// Heartbeat
// -----------------------------------------------------------------------------

type fixedGate bool

func (g fixedGate) AnyMarketOpen() bool { return bool(g) }

func TestHeartbeatTick(t *testing.T) {
	hb := NewHeartbeat(fixedGate(true), time.Millisecond)
	hb.now = func() time.Time { return time.UnixMilli(5000) }

	ts, ok := hb.Tick()
	require.True(t, ok)
	assert.Equal(t, uint64(5000), ts)

	closed := NewHeartbeat(fixedGate(false), time.Second)
	_, ok = closed.Tick()
	assert.False(t, ok)
}

func TestIdleHeartbeatClosesBars(t *testing.T) {
	cfg := &models.MConfig{Engine: models.MEngineConfig{BarInterval: testInterval, IdleTimeoutMs: 5}}
	e, err := NewEngine(cfg, logger.NewNop())
	require.NoError(t, err)

	hb := NewHeartbeat(nil, time.Millisecond)
	hb.now = func() time.Time { return time.UnixMilli(t0 + 150) }
	e.SetHeartbeat(hb)

	in := make(chan models.MTrade, 1)
	out := make(chan models.MBarUpdate, 8)
	in <- trade("X", 10, 5, t0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx, in, out)

	first := <-out
	assert.Equal(t, models.KindTradeUpdate, first.Kind)

	select {
	case u := <-out:
		assert.Equal(t, models.KindTimerClose, u.Kind)
		assert.Equal(t, 5.0, u.Bar.Volume)
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat did not close the bar")
	}
}

func TestRunReturnsFatalHeartbeatRolloverError(t *testing.T) {
	cfg := &models.MConfig{Engine: models.MEngineConfig{BarInterval: testInterval, MaxRollover: 1, IdleTimeoutMs: 5}}
	e, err := NewEngine(cfg, logger.NewNop())
	require.NoError(t, err)

	hb := NewHeartbeat(nil, time.Millisecond)
	hb.now = func() time.Time { return time.UnixMilli(t0 + 100*testInterval) }
	e.SetHeartbeat(hb)

	in := make(chan models.MTrade, 1)
	out := make(chan models.MBarUpdate, 8)
	in <- trade("X", 10, 5, t0)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background(), in, out) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrRolloverLimit)
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept going after a fatal heartbeat advance")
	}
	assert.Equal(t, "DOWN", e.Status().State)

	first := <-out
	assert.Equal(t, models.KindTradeUpdate, first.Kind)
	_, open := <-out
	assert.False(t, open)
}
