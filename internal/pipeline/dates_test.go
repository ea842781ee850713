package pipeline

import (
	"testing"
	"time"
)

func TestParseDate_DateOnlyBecomesEndOfDay(t *testing.T) {
	got, err := parseDate("2026-03-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestParseDate_HumanFormats(t *testing.T) {
	cases := []string{
		"15 March 2026",
		"March 15, 2026",
		"Mar 15, 2026",
		"15 Mar 2026",
	}
	want := time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)
	for _, in := range cases {
		got, err := parseDate(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q: expected %s, got %s", in, want, got)
		}
	}
}

func TestParseDate_RFC3339Preserved(t *testing.T) {
	got, err := parseDate("2026-03-15T12:30:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 12 || got.Minute() != 30 {
		t.Fatalf("timestamped input must keep its time, got %s", got)
	}
}

func TestParseDate_Garbage(t *testing.T) {
	if _, err := parseDate("sometime next year"); err == nil {
		t.Fatal("expected error for unparseable text")
	}
}

func TestFindDeadlineNear_PrefersEarliestFuture(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	text := "Program launched 10 January 2025. Applications close 30 April 2026. " +
		"Final submission deadline: 15 March 2026."

	got := findDeadlineNear(text, now)
	if got == nil {
		t.Fatal("expected a deadline")
	}
	want := time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected earliest future deadline %s, got %s", want, got)
	}
}

func TestFindDeadlineNear_FallsBackToPastDate(t *testing.T) {
	now := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	text := "Submission deadline was 15 March 2026."

	got := findDeadlineNear(text, now)
	if got == nil {
		t.Fatal("expected the past deadline to still be reported")
	}
	if got.Year() != 2026 {
		t.Fatalf("expected 2026 deadline, got %s", got)
	}
}

func TestFindDeadlineNear_UnlabelledDatesIgnored(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	text := "The program was founded on 10 January 2020 and has grown ever since."

	if got := findDeadlineNear(text, now); got != nil {
		t.Fatalf("dates without a deadline label must be ignored, got %s", got)
	}
}
