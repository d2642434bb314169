package utils

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// micBySuffix maps exchange symbol suffixes to ISO 10383 MIC codes understood
// by scmhub/calendar. Symbols without a known suffix trade on NYSE.
var micBySuffix = []struct {
	suffix string
	mic    string
}{
	{".L", "xlon"}, {".PA", "xpar"}, {".DE", "xfra"}, {".AS", "xams"},
	{".BR", "xbru"}, {".MI", "xmil"}, {".MC", "xmad"}, {".ST", "xsto"},
	{".CO", "xcse"}, {".HE", "xhel"}, {".VI", "xwbo"}, {".SW", "xswx"},
	{".TO", "xtse"}, {".V", "xtsx"}, {".T", "xtks"}, {".HK", "xhkg"},
	{".AX", "xasx"}, {".KS", "xkrx"}, {".TW", "xtai"}, {".SS", "xshg"},
	{".SZ", "xshe"},
}

const defaultMIC = "xnys"

// TradingCalendar answers whether a market trades at a given time.
type TradingCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// MICForSymbol picks the market of a symbol from its suffix.
func MICForSymbol(symbol string) string {
	for _, m := range micBySuffix {
		if strings.HasSuffix(symbol, m.suffix) {
			return m.mic
		}
	}
	return defaultMIC
}

// -----------------------------------------------------------------------------

// GetCalendar returns the calendar of the symbol's market. When the library has
// no calendar for it, a Mon-Fri 09:30-16:00 New York session is assumed.
func GetCalendar(symbol string) *TradingCalendar {
	mic := MICForSymbol(symbol)

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		mic = defaultMIC
		cal = calendar.GetCalendar(mic)
	}
	if cal == nil {
		nyLoc, err := time.LoadLocation("America/New_York")
		if err != nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{MIC: mic, Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{MIC: mic, Calendar: cal, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpen reports whether the market is in session at t.
func (tc *TradingCalendar) IsOpen(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if !tc.Fallback {
		return tc.Calendar.IsOpen(t)
	}
	if !tc.IsTradingDay(t) {
		return false
	}

	minutes := t.Hour()*60 + t.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}
