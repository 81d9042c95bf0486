// Package dateparse parses meeting times and renders them for the conversion API.
package dateparse

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"
)

// NaiveLayout is the zone-naive ISO 8601 form the conversion API accepts.
const NaiveLayout = "2006-01-02T15:04:05"

// ReadableLayout is the 12-hour hour:minute form shown to people.
const ReadableLayout = "3:04 PM"

// looseLayouts are human-written forms seen in chat input, tried in order.
// All of them are interpreted as UTC wall clock.
var looseLayouts = []string{
	"Jan 2, 2006, 3:04:05 PM",
	"Jan 2, 2006, 3:04 PM",
	"Jan 2, 2006 3:04:05 PM",
	"Jan 2, 2006 3:04 PM",
	"January 2, 2006, 3:04:05 PM",
	"January 2, 2006, 3:04 PM",
	"January 2, 2006 3:04:05 PM",
	"January 2, 2006 3:04 PM",
	"Jan 2 2006 3:04:05 PM",
	"Jan 2 2006 3:04 PM",
	"January 2 2006 3:04:05 PM",
	"January 2 2006 3:04 PM",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04",
	"2 January 2006 15:04:05",
	"2 January 2006 15:04",
	"1/2/2006, 3:04:05 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2006-01-02",
}

// spaceReplacer folds the narrow and regular no-break spaces that ICU puts
// before the day period ("2:30:00\u202fPM") into plain spaces.
var spaceReplacer = strings.NewReplacer("\u202f", " ", "\u00a0", " ")

const monthPattern = `(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?`

// absoluteDate matches a 4-digit year or a month name paired with a day.
// naturaldate only partially understands those and silently lands on the
// wrong day, so such input must match a layout or fail.
var absoluteDate = regexp.MustCompile(`(?i)\b\d{4}\b|\b` + monthPattern + `\s+\d{1,2}(st|nd|rd|th)?\b|\b\d{1,2}(st|nd|rd|th)?\s+(of\s+)?` + monthPattern + `\b`)

// ParseMeetingTime parses a meeting time which can be:
// - RFC 3339 with Z or an explicit offset: "2023-08-12T14:30:00Z"
// - Zone-naive ISO 8601: "2023-08-12T14:30:00" (UTC wall clock)
// - A loose human string: "Aug 12, 2023, 2:30:00 PM" (UTC wall clock)
// - A loose date alone: "2023-08-12", "12 August 2023" (UTC midnight)
// - Natural language relative to ref: "tomorrow at 3pm"
//
// Input carrying a year or a month and day that no layout matches is
// rejected rather than guessed at.
//
// If ref is zero, time.Now() is used.
func ParseMeetingTime(s string, ref time.Time) (time.Time, error) {
	s = strings.TrimSpace(spaceReplacer.Replace(s))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	if ref.IsZero() {
		ref = time.Now()
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}

	if t, err := time.ParseInLocation(NaiveLayout, s, time.UTC); err == nil {
		return t, nil
	}

	for _, layout := range looseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	if absoluteDate.MatchString(s) {
		return time.Time{}, fmt.Errorf("could not parse date %q: unrecognized absolute date layout", s)
	}

	t, err := naturaldate.Parse(s, ref.UTC(), naturaldate.WithDirection(naturaldate.Future))
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse date %q: %w", s, err)
	}
	// naturaldate hands back the reference unchanged when nothing matched
	if t.Equal(ref) {
		return time.Time{}, fmt.Errorf("could not parse date %q", s)
	}

	return t, nil
}

// ParseConverted parses a date-time returned by the conversion API. Zone-naive
// values are read as UTC wall clock, the same basis FormatNaive writes.
func ParseConverted(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}

	// fractional seconds are accepted after the seconds field
	t, err := time.ParseInLocation(NaiveLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse converted date %q: %w", s, err)
	}
	return t, nil
}

// FormatNaive renders t as a zone-naive UTC wall-clock string. Sub-second
// precision is dropped.
func FormatNaive(t time.Time) string {
	return t.UTC().Format(NaiveLayout)
}

// FormatReadable renders t as "2:30 PM" in loc. A nil loc means UTC.
func FormatReadable(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(ReadableLayout)
}

// FormatISO8601 formats a time as an RFC 3339 string.
func FormatISO8601(t time.Time) string {
	return t.Format(time.RFC3339)
}
