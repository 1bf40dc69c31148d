package utils

import (
	"strings"
	"sync"
	"time"

	"market-metrics/src/logger"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers business-day questions for one exchange.
type TradingCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool // Mon-Fri when the exchange calendar is unavailable
	AlwaysOn bool // crypto pairs trade every day
	Timezone *time.Location
}

// suffix -> ISO 10383 MIC, matched against Yahoo style tickers
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

var cryptoQuotes = []string{"-USD", "-USDT", "-USDC", "-EUR", "-BTC", "-ETH"}

// -----------------------------------------------------------------------------

// MICForSymbol maps a ticker to its exchange code; "" means a 24/7 market.
func MICForSymbol(symbol string) string {
	upper := strings.ToUpper(symbol)
	for _, q := range cryptoQuotes {
		if strings.HasSuffix(upper, q) {
			return ""
		}
	}
	for _, m := range micBySuffix {
		if strings.HasSuffix(upper, m.suffix) {
			return m.mic
		}
	}
	return "xnys"
}

// -----------------------------------------------------------------------------

// GetCalendar builds the calendar for a MIC. An empty MIC yields an always-open calendar.
func GetCalendar(mic string) *TradingCalendar {
	if mic == "" {
		return &TradingCalendar{AlwaysOn: true, Timezone: time.UTC}
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{MIC: mic, Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{MIC: mic, Calendar: cal, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.AlwaysOn {
		return true
	}
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

// LastTradingDay returns the latest trading day on or before t, as a UTC date.
func (tc *TradingCalendar) LastTradingDay(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
	// Two weeks covers every holiday cluster the calendars know about.
	for i := 0; i < 14; i++ {
		if tc.IsTradingDay(day) {
			break
		}
		day = day.AddDate(0, 0, -1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

// -----------------------------------------------------------------------------
// CalendarRegistry caches one calendar per MIC across symbols.
// -----------------------------------------------------------------------------

type CalendarRegistry struct {
	Override  string // force one MIC for every symbol
	Calendars map[string]*TradingCalendar
	Logger    *logger.Logger
	mu        sync.Mutex
}

func NewCalendarRegistry(override string, l *logger.Logger) *CalendarRegistry {
	return &CalendarRegistry{
		Override:  strings.ToLower(override),
		Calendars: make(map[string]*TradingCalendar),
		Logger:    l,
	}
}

// -----------------------------------------------------------------------------

// ForSymbol returns the calendar of the exchange the symbol trades on.
func (cr *CalendarRegistry) ForSymbol(symbol string) *TradingCalendar {
	mic := cr.Override
	if mic == "" {
		mic = MICForSymbol(symbol)
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cal, ok := cr.Calendars[mic]; ok {
		return cal
	}
	cal := GetCalendar(mic)
	if cal.Fallback && cr.Logger != nil {
		cr.Logger.Warning("No exchange calendar for MIC '%s', using Mon-Fri fallback", mic)
	}
	cr.Calendars[mic] = cal
	return cal
}
