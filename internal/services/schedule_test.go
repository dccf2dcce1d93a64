package services

import (
	"testing"

	"fintrack/internal/core"
)

func TestCycleAdvancers(t *testing.T) {
	tests := []struct {
		name  string
		cycle core.BillingCycle
		from  core.Date
		want  core.Date
	}{
		{"monthly mid-month", core.Monthly, core.NewDate(2025, 1, 15), core.NewDate(2025, 2, 15)},
		{"monthly year rollover", core.Monthly, core.NewDate(2025, 12, 10), core.NewDate(2026, 1, 10)},
		{"biweekly", core.BiWeekly, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 15)},
		{"weekly", core.Weekly, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 8)},
		{"weekly month rollover", core.Weekly, core.NewDate(2025, 1, 28), core.NewDate(2025, 2, 4)},
		{"yearly", core.Yearly, core.NewDate(2024, 6, 1), core.NewDate(2025, 6, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advancer, err := GetCycleAdvancer(tt.cycle)
			if err != nil {
				t.Fatalf("GetCycleAdvancer(%s): %v", tt.cycle, err)
			}
			got := advancer.Advance(tt.from)
			if !got.Equal(tt.want.Time) {
				t.Errorf("Advance(%s) = %s, want %s", tt.from, got, tt.want)
			}
		})
	}
}

func TestGetCycleAdvancerUnknown(t *testing.T) {
	if _, err := GetCycleAdvancer("quarterly"); err == nil {
		t.Fatalf("expected error for unknown cycle")
	}
}

func TestRegisterCycleAdvancer(t *testing.T) {
	RegisterCycleAdvancer("daily", WeeklyAdvancer{})
	defer delete(cycleStrategies, "daily")

	if _, err := GetCycleAdvancer("daily"); err != nil {
		t.Fatalf("expected registered cycle to resolve, got %v", err)
	}
}
