package feed

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"kitchen_demo_sync/internal/slots"
)

// DefaultDisplayTime is shown when the feed carries no usable time.
const DefaultDisplayTime = "10:00 AM"

const isoDate = "2006-01-02"

var (
	legacyDateTime = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2});\s*(\d{1,2}:\d{2})$`)
	slashDateTime  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})(?:[\s,T]+(.+))?$`)
	isoDateTime    = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[T\s](\d{1,2}:\d{2}))?`)
)

// genericLayouts are tried last, in order, for free-form dates.
var genericLayouts = []string{
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"2 January 2006 15:04",
	"2 January 2006",
	"2 Jan 2006 15:04",
	"2 Jan 2006",
	"Mon Jan 2 2006",
	"2006/01/02 15:04",
	"2006/01/02",
}

// decodedDate is the outcome of demo date decoding.
type decodedDate struct {
	Date     string // YYYY-MM-DD
	Clock    string // HH:MM, empty when no time was present
	Display  string // 12-hour display time
	Degraded bool
}

// DecodeDemoDate parses the demo date cell. Formats are tried in priority
// order: DD/MM/YY;HH:MM, DD/MM/YYYY[ HH:MM], ISO-8601, then generic layouts.
// On total failure the date falls back to today and Degraded is set.
func DecodeDemoDate(raw string, now time.Time) decodedDate {
	raw = strings.TrimSpace(raw)

	if m := legacyDateTime.FindStringSubmatch(raw); m != nil {
		if d, ok := buildDate(m[3], m[2], m[1], 2000); ok {
			return withClock(d, m[4])
		}
	}

	if m := slashDateTime.FindStringSubmatch(raw); m != nil {
		if d, ok := buildDate(m[3], m[2], m[1], 0); ok {
			return withClock(d, m[4])
		}
	}

	if m := isoDateTime.FindStringSubmatch(raw); m != nil {
		if d, ok := buildDate(m[1], m[2], m[3], 0); ok {
			return withClock(d, m[4])
		}
	}

	if raw != "" {
		for _, layout := range genericLayouts {
			t, err := time.Parse(layout, raw)
			if err != nil {
				continue
			}
			clock := ""
			if strings.Contains(layout, "15") || strings.Contains(layout, "3:04") {
				clock = t.Format("15:04")
			}
			return withClock(t.Format(isoDate), clock)
		}
	}

	return decodedDate{
		Date:     now.Format(isoDate),
		Display:  DefaultDisplayTime,
		Degraded: true,
	}
}

// buildDate validates calendar components; century is added to two-digit years.
func buildDate(year, month, day string, century int) (string, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	y += century
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", false
	}
	return t.Format(isoDate), true
}

func withClock(date, clockText string) decodedDate {
	out := decodedDate{Date: date, Display: DefaultDisplayTime}
	if clockText == "" {
		return out
	}
	if hhmm, ok := slots.ParseClock(clockText); ok {
		out.Clock = hhmm
		out.Display = slots.Display12h(hhmm)
	}
	return out
}
