package utils

import (
	"fmt"
	"strings"
	"time"
)

// ET is the US Eastern time zone the news and price providers report in.
var ET *time.Location

func init() {
	var err error
	ET, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		ET = time.FixedZone("EST", -5*60*60)
	}
}

// NowET returns the current time in US Eastern time.
func NowET() time.Time {
	return time.Now().In(ET)
}

// ProviderTimeLayout is the news export's own timestamp format.
const ProviderTimeLayout = "01/02/2006 03:04:05 PM"

// providerLayouts are the timestamp formats seen in provider exports,
// tried in order.
var providerLayouts = []string{
	ProviderTimeLayout,
	"01/02/2006 3:04:05 PM",
	"01/02/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
	"2006-01-02",
}

// ParseProviderTime parses a provider timestamp. Values without a zone are
// interpreted in loc.
func ParseProviderTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if loc == nil {
		loc = ET
	}
	for _, layout := range providerLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatProviderTime formats t in loc the way the news export does.
func FormatProviderTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = ET
	}
	return t.In(loc).Format(ProviderTimeLayout)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// MarketOpenTime returns the regular session open (9:30 AM ET) for a given date.
func MarketOpenTime(date time.Time) time.Time {
	d := date.In(ET)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, ET)
}

// MarketCloseTime returns the regular session close (4:00 PM ET) for a given date.
func MarketCloseTime(date time.Time) time.Time {
	d := date.In(ET)
	return time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, ET)
}

// MarketStatusAt returns the market session name at t.
func MarketStatusAt(t time.Time) string {
	t = t.In(ET)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return "CLOSED (Weekend)"
	}
	switch {
	case t.Before(MarketOpenTime(t)):
		return "PRE-MARKET"
	case !t.After(MarketCloseTime(t)):
		return "OPEN"
	default:
		return "AFTER-HOURS"
	}
}

// MarketStatus returns the current market status string.
func MarketStatus() string {
	return MarketStatusAt(NowET())
}

// FormatDateTimeET formats a time.Time to "2006-01-02 15:04:05 ET".
func FormatDateTimeET(t time.Time) string {
	return t.In(ET).Format("2006-01-02 15:04:05") + " ET"
}
