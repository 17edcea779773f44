package filter

import (
	"regexp"
	"strings"
	"time"
)

var (
	isoDateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	ordinalRegex = regexp.MustCompile(`(\d{1,2})(st|nd|rd|th)\b`)
)

var publishedLayouts = []string{
	"2 January 2006",
	"January 2, 2006",
	"02-01-2006",
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// ParsePublished reads the date formats the site uses for post dates.
// ok is false when the marker is empty or in none of the known layouts.
func ParsePublished(marker string) (t time.Time, ok bool) {
	s := strings.TrimSpace(marker)
	if s == "" || s == "N/A" || s == "Recent" {
		return time.Time{}, false
	}

	//ISO "2026-01-27" or "2026-01-27T10:00:00+05:30"
	if isoDateRegex.MatchString(s) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, true
		}
	}

	//"5th March 2025" -> "5 March 2025"
	s = ordinalRegex.ReplaceAllString(s, "$1")
	s = strings.Join(strings.Fields(s), " ")

	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PublishedAfter reports whether the marker is on or after cutoff.
// Markers that cannot be parsed pass.
func PublishedAfter(marker string, cutoff time.Time) bool {
	t, ok := ParsePublished(marker)
	if !ok {
		return true
	}
	//date-only markers cover the whole day
	return !t.Add(24 * time.Hour).Before(cutoff)
}
