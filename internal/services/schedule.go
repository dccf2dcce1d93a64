// Package services provides business logic and orchestration on top of the
// storage layer: the recurring billing processor, transaction recording and
// the report service.
//
// This file implements the Strategy Pattern for billing-cycle advancement.
// Each cycle (weekly, biweekly, monthly, yearly) has its own advancer that
// encapsulates how a due date moves forward after a successful charge.

package services

import (
	"fmt"

	"fintrack/internal/core"
)

// CycleAdvancer is the strategy interface for moving a subscription's due
// date forward by one billing cycle.
type CycleAdvancer interface {
	// Advance returns the due date one cycle after the given one. The input
	// is the subscription's previous due date, never "today": an overdue
	// subscription catches up one cycle per run.
	Advance(from core.Date) core.Date
}

// WeeklyAdvancer implements CycleAdvancer for weekly subscriptions.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Advance(from core.Date) core.Date {
	return core.Date{Time: from.AddDate(0, 0, 7)}
}

// BiWeeklyAdvancer implements CycleAdvancer for biweekly subscriptions.
type BiWeeklyAdvancer struct{}

func (BiWeeklyAdvancer) Advance(from core.Date) core.Date {
	return core.Date{Time: from.AddDate(0, 0, 14)}
}

// MonthlyAdvancer implements CycleAdvancer for monthly subscriptions.
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Advance(from core.Date) core.Date {
	return core.Date{Time: from.AddDate(0, 1, 0)}
}

// YearlyAdvancer implements CycleAdvancer for yearly subscriptions.
type YearlyAdvancer struct{}

func (YearlyAdvancer) Advance(from core.Date) core.Date {
	return core.Date{Time: from.AddDate(1, 0, 0)}
}

// cycleStrategies maps billing cycles to their advancers.
var cycleStrategies = map[core.BillingCycle]CycleAdvancer{
	core.Weekly:   WeeklyAdvancer{},
	core.BiWeekly: BiWeeklyAdvancer{},
	core.Monthly:  MonthlyAdvancer{},
	core.Yearly:   YearlyAdvancer{},
}

// GetCycleAdvancer returns the advancer for a billing cycle, or an error for
// an unknown cycle value.
func GetCycleAdvancer(cycle core.BillingCycle) (CycleAdvancer, error) {
	advancer, ok := cycleStrategies[cycle]
	if !ok {
		return nil, fmt.Errorf("unknown billing cycle: %s", cycle)
	}
	return advancer, nil
}

// RegisterCycleAdvancer registers a custom advancer for a new cycle value.
func RegisterCycleAdvancer(cycle core.BillingCycle, advancer CycleAdvancer) {
	cycleStrategies[cycle] = advancer
}
