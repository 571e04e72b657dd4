package slots

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Times is the fixed list of two-hour slot start times, in grid order.
var Times = []string{"09:00", "11:00", "13:00", "15:00", "17:00"}

// SlotLength is the width of every scheduling window.
const SlotLength = 2 * time.Hour

const dateLayout = "2006-01-02"

var ErrInvalidSlot = errors.New("invalid slot")

var (
	keyPattern   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-(\d{1,2}:\d{2})$`)
	clockPattern = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
)

// Index returns the grid row of a slot start time, or -1.
func Index(hhmm string) int {
	for i, t := range Times {
		if t == hhmm {
			return i
		}
	}
	return -1
}

// Key builds the canonical YYYY-MM-DD-HH:MM slot key.
func Key(date, hhmm string) string {
	return date + "-" + hhmm
}

// ParseKey splits and validates a slot key.
func ParseKey(key string) (date, hhmm string, err error) {
	m := keyPattern.FindStringSubmatch(strings.TrimSpace(key))
	if m == nil {
		return "", "", fmt.Errorf("%w: %q is not YYYY-MM-DD-HH:MM", ErrInvalidSlot, key)
	}
	if _, perr := time.Parse(dateLayout, m[1]); perr != nil {
		return "", "", fmt.Errorf("%w: bad date in %q", ErrInvalidSlot, key)
	}
	t, ok := ParseClock(m[2])
	if !ok || Index(t) < 0 {
		return "", "", fmt.Errorf("%w: %q is not a scheduling window", ErrInvalidSlot, m[2])
	}
	return m[1], t, nil
}

// Canonical rewrites a valid key with a zero-padded time ("…-9:00" → "…-09:00")
// so keys compare equal as strings.
func Canonical(key string) (string, error) {
	date, hhmm, err := ParseKey(key)
	if err != nil {
		return "", err
	}
	return Key(date, hhmm), nil
}

func Valid(key string) bool {
	_, _, err := ParseKey(key)
	return err == nil
}

// NormalizeTime maps free-form slot text onto a slot start time. It accepts
// "09:00", "9:00 AM", "9am", and range labels like "9:00 AM - 11:00 AM" (the
// start is used). A time inside a window maps to that window's start.
func NormalizeTime(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if i := strings.IndexAny(text, "-–"); i > 0 {
		text = strings.TrimSpace(text[:i])
	}
	hhmm, ok := ParseClock(text)
	if !ok {
		return "", false
	}
	return windowFor(hhmm)
}

// Resolve turns slot text into a full slot key. Full keys are validated as-is;
// bare times are combined with demoDate.
func Resolve(text, demoDate string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if keyPattern.MatchString(text) {
		date, hhmm, err := ParseKey(text)
		if err != nil {
			return "", false
		}
		return Key(date, hhmm), true
	}
	if demoDate == "" {
		return "", false
	}
	hhmm, ok := NormalizeTime(text)
	if !ok {
		return "", false
	}
	return Key(demoDate, hhmm), true
}

// Label renders a slot start as its display window, e.g. "9:00 AM - 11:00 AM".
func Label(hhmm string) string {
	start, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	end := start.Add(SlotLength)
	return start.Format("3:04 PM") + " - " + end.Format("3:04 PM")
}

// Display12h renders "13:30" as "1:30 PM".
func Display12h(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format("3:04 PM")
}

// ParseClock parses "9", "9:30", "09:30", "9:30 pm" into 24-hour "HH:MM".
func ParseClock(text string) (string, bool) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ToLower(m[3]) {
	case "am":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour != 12 {
			hour += 12
		}
	}
	if hour > 23 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

func windowFor(hhmm string) (string, bool) {
	if Index(hhmm) >= 0 {
		return hhmm, true
	}
	t, _ := time.Parse("15:04", hhmm)
	for _, start := range Times {
		s, _ := time.Parse("15:04", start)
		if !t.Before(s) && t.Before(s.Add(SlotLength)) {
			return start, true
		}
	}
	return "", false
}
