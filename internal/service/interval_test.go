package service

import (
	"testing"
	"time"

	"plant-care-bot/internal/config"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 7},
		{"7", 7},
		{"10", 10},
		{"7-10", 7},
		{"5-7", 5},
		{" 5 ", 5},
		{"7.5", 7},
		{"0", 7},
		{"-3", 7},
		{"abc", 7},
		{"every week", 7},
		{"14 days", 14},
	}

	for _, tt := range tests {
		if got := ParseInterval(tt.raw); got != tt.want {
			t.Errorf("ParseInterval(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestGenerateSeriesCountAndSpacing(t *testing.T) {
	at := config.ReminderTime{Hour: 18}
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		interval, horizon, want int
	}{
		{7, 90, 13},
		{30, 90, 3},
		{1, 1, 1},
		{10, 95, 10},
	}

	for _, tt := range tests {
		dates := GenerateSeries(tt.interval, tt.horizon, now, at, now)
		if len(dates) != tt.want {
			t.Errorf("GenerateSeries(%d, %d) returned %d dates, want %d", tt.interval, tt.horizon, len(dates), tt.want)
			continue
		}
		step := time.Duration(tt.interval) * 24 * time.Hour
		for i := 1; i < len(dates); i++ {
			if got := dates[i].Sub(dates[i-1]); got != step {
				t.Errorf("GenerateSeries(%d, %d): gap %d-%d is %v, want %v", tt.interval, tt.horizon, i-1, i, got, step)
			}
		}
	}
}

func TestGenerateSeriesNormalizesToReminderTime(t *testing.T) {
	at := config.ReminderTime{Hour: 18, Minute: 30}
	now := time.Date(2026, 3, 10, 9, 17, 42, 0, time.UTC)

	dates := GenerateSeries(7, 90, now, at, now)
	if len(dates) == 0 {
		t.Fatal("expected dates")
	}
	first := dates[0]
	if first.Hour() != 18 || first.Minute() != 30 || first.Second() != 0 {
		t.Errorf("first date %v is not at 18:30:00", first)
	}
	if first.Day() != 10 {
		t.Errorf("first date %v should stay on the anchor day", first)
	}
}

func TestGenerateSeriesRollsForwardWhenSlotPassed(t *testing.T) {
	at := config.ReminderTime{Hour: 18}
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

	dates := GenerateSeries(7, 90, now, at, now)
	want := time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC)
	if !dates[0].Equal(want) {
		t.Errorf("first date = %v, want rolled-forward %v", dates[0], want)
	}
}

func TestGenerateSeriesRollsForwardWithinMinLead(t *testing.T) {
	at := config.ReminderTime{Hour: 18}
	// 30 seconds before the slot: below the one-minute lead.
	now := time.Date(2026, 3, 10, 17, 59, 30, 0, time.UTC)

	dates := GenerateSeries(7, 90, now, at, now)
	want := time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC)
	if !dates[0].Equal(want) {
		t.Errorf("first date = %v, want rolled-forward %v", dates[0], want)
	}
}

func TestGenerateSeriesIdempotent(t *testing.T) {
	at := config.ReminderTime{Hour: 18}
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	a := GenerateSeries(7, 90, now, at, now)
	b := GenerateSeries(7, 90, now, at, now)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Errorf("date %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestGenerateSeriesRejectsBadInput(t *testing.T) {
	at := config.ReminderTime{Hour: 18}
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	if dates := GenerateSeries(0, 90, now, at, now); dates != nil {
		t.Errorf("interval 0: got %d dates, want none", len(dates))
	}
	if dates := GenerateSeries(7, 0, now, at, now); dates != nil {
		t.Errorf("horizon 0: got %d dates, want none", len(dates))
	}
}
