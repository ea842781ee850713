package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var dateSnippetRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b20\d{2}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}/\d{1,2}/20\d{2}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+20\d{2}\b`),
	regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2},?\s+20\d{2}\b`),
}

var deadlineLabelHints = []string{
	"deadline", "closes", "closing date", "apply by", "applications close",
	"submission deadline", "due date", "applications due", "last date",
}

// parseDate attempts to parse a date string in the formats funding pages
// commonly use. Date-only values are normalized to end of day UTC so a
// deadline stays open through its final day.
func parseDate(text string) (time.Time, error) {
	text = cleanText(text)
	text = strings.TrimRight(text, ".")

	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, nil
	}

	formats := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2 January 2006",
		"02 January 2006",
		"January 2, 2006",
		"January 2 2006",
		"Jan 2, 2006",
		"2 Jan 2006",
		"02 Jan 2006",
		"01/02/2006",
		"02/01/2006", // day-first
	}

	for _, format := range formats {
		if t, err := time.Parse(format, text); err == nil {
			if strings.Contains(format, ":") {
				return t, nil
			}
			return toEndOfDay(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable date: %q", text)
}

func toEndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}

// findDeadlineNear scans text for deadline-labelled date snippets and returns
// the earliest future one, or the earliest overall when none is in the future.
func findDeadlineNear(text string, now time.Time) *time.Time {
	lower := strings.ToLower(text)

	var candidates []time.Time
	for _, hint := range deadlineLabelHints {
		idx := strings.Index(lower, hint)
		for idx >= 0 {
			// A date within ~120 chars of the label is assumed to be it.
			end := idx + 120
			if end > len(text) {
				end = len(text)
			}
			window := text[idx:end]
			for _, re := range dateSnippetRegexes {
				for _, match := range re.FindAllString(window, -1) {
					if t, err := parseDate(match); err == nil {
						candidates = append(candidates, t)
					}
				}
			}
			next := strings.Index(lower[idx+len(hint):], hint)
			if next < 0 {
				break
			}
			idx = idx + len(hint) + next
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	var best *time.Time
	for i := range candidates {
		c := candidates[i]
		if !c.After(now) {
			continue
		}
		if best == nil || c.Before(*best) {
			best = &c
		}
	}
	if best != nil {
		return best
	}

	earliest := candidates[0]
	for _, c := range candidates[1:] {
		if c.Before(earliest) {
			earliest = c
		}
	}
	return &earliest
}
