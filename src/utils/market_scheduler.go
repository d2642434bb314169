package utils

import (
	"sync"
	"time"

	"ohlc-streamer/src/logger"
)

// MarketScheduler tracks the calendars of the configured symbols. The engine
// heartbeat consults it so bars are not force-closed while every market is shut.
type MarketScheduler struct {
	Calendars map[string]*TradingCalendar
	Logger    *logger.Logger
	mu        sync.RWMutex
	now       func() time.Time
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(symbols []string, l *logger.Logger) *MarketScheduler {
	ms := &MarketScheduler{
		Calendars: make(map[string]*TradingCalendar),
		Logger:    l,
		now:       time.Now,
	}
	ms.MapSymbolsToCalendars(symbols)
	return ms
}

// -----------------------------------------------------------------------------

// MapSymbolsToCalendars replaces the tracked symbols.
func (ms *MarketScheduler) MapSymbolsToCalendars(symbols []string) {
	cals := make(map[string]*TradingCalendar, len(symbols))
	byMIC := make(map[string]*TradingCalendar)

	for _, symbol := range symbols {
		mic := MICForSymbol(symbol)
		cal, ok := byMIC[mic]
		if !ok {
			cal = GetCalendar(symbol)
			byMIC[mic] = cal
		}
		cals[symbol] = cal
	}

	ms.mu.Lock()
	ms.Calendars = cals
	ms.mu.Unlock()

	ms.Logger.Info("MarketScheduler: Mapped %d symbols to %d unique calendars.", len(symbols), len(byMIC))
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if ANY tracked markets are currently open. With no
// tracked symbols it reports true.
func (ms *MarketScheduler) AnyMarketOpen() bool {
	now := ms.now().UTC()

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if len(ms.Calendars) == 0 {
		return true
	}

	seen := make(map[*TradingCalendar]bool)
	for _, cal := range ms.Calendars {
		if seen[cal] {
			continue
		}
		seen[cal] = true
		if cal.IsOpen(now) {
			return true
		}
	}
	return false
}
