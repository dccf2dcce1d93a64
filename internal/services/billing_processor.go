package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// BillingStore is the storage surface the billing processor needs.
type BillingStore interface {
	TransactionStore
	ListDueSubscriptions(ctx context.Context, asOf core.Date) ([]core.Subscription, error)
	GetAccount(ctx context.Context, id int64) (core.Account, error)
	DefaultCheckingAccount(ctx context.Context, userID string) (core.Account, error)
	UpdateSubscriptionNextDue(ctx context.Context, id int64, next core.Date) error
}

type (
	// RunDetail records the outcome for one eligible subscription.
	RunDetail struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		Status string `json:"status,omitempty"`
		Error  string `json:"error,omitempty"`
	}

	// RunReport is the aggregate result of one billing run. Every eligible
	// subscription appears in Details exactly once, so
	// Processed+Errors always equals the eligible count.
	RunReport struct {
		Processed int         `json:"processed"`
		Errors    int         `json:"errors"`
		Details   []RunDetail `json:"details"`
	}
)

// BillingProcessor charges due subscriptions and advances their schedules.
type BillingProcessor struct {
	store        BillingStore
	transactions *TransactionService
	log          *applog.StructuredLogger
}

func NewBillingProcessor(store BillingStore, transactions *TransactionService) *BillingProcessor {
	return &BillingProcessor{
		store:        store,
		transactions: transactions,
		log:          applog.NewStructuredLogger(applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentBilling)),
	}
}

// ProcessDueSubscriptions charges every active subscription whose next due
// date is on or before the calendar date of now, once each. Failures are
// isolated per subscription: a failed item is counted and recorded in the
// report while the run continues, and nothing written for that item is
// rolled back. Only a failure to list the eligible set fails the whole run.
//
// An overdue subscription advances a single cycle per run; catching up a
// long gap takes repeated invocations.
func (p *BillingProcessor) ProcessDueSubscriptions(ctx context.Context, now time.Time) (RunReport, error) {
	report := RunReport{Details: []RunDetail{}}
	if p.store == nil || p.transactions == nil {
		return report, fmt.Errorf("processor not properly initialized")
	}

	today := core.DateOf(now)
	due, err := p.store.ListDueSubscriptions(ctx, today)
	if err != nil {
		return report, fmt.Errorf("list due subscriptions: %w", err)
	}

	slog.InfoContext(ctx, "Processing due subscriptions",
		"eligible", len(due),
		"run_date", today.String())

	for _, sub := range due {
		if err := p.chargeSubscription(ctx, sub, now); err != nil {
			slog.ErrorContext(ctx, "Failed to charge subscription",
				"subscription_id", sub.ID,
				"name", sub.Name,
				"error", err)
			report.Errors++
			report.Details = append(report.Details, RunDetail{
				ID:    sub.ID,
				Name:  sub.Name,
				Error: err.Error(),
			})
			continue
		}

		report.Processed++
		report.Details = append(report.Details, RunDetail{
			ID:     sub.ID,
			Name:   sub.Name,
			Status: "charged",
		})
	}

	slog.InfoContext(ctx, "Billing run complete",
		"processed", report.Processed,
		"errors", report.Errors)

	return report, nil
}

// chargeSubscription runs one item through the charge sequence: resolve the
// account, record the expense dated at invocation time, then advance the
// stored due date by one cycle from its previous value.
func (p *BillingProcessor) chargeSubscription(ctx context.Context, sub core.Subscription, now time.Time) error {
	var account core.Account
	var err error
	if sub.AccountID > 0 {
		account, err = p.store.GetAccount(ctx, sub.AccountID)
	} else {
		account, err = p.store.DefaultCheckingAccount(ctx, sub.UserID)
	}
	if err != nil {
		return fmt.Errorf("resolve charge account: %w", err)
	}

	_, err = p.transactions.Record(ctx, core.Transaction{
		UserID:      sub.UserID,
		AccountID:   account.ID,
		CategoryID:  sub.CategoryID,
		Type:        core.Expense,
		Amount:      sub.Amount,
		Description: fmt.Sprintf("Subscription payment: %s", sub.Name),
		Date:        core.DateOf(now),
	})
	if err != nil {
		return fmt.Errorf("record charge: %w", err)
	}

	advancer, err := GetCycleAdvancer(sub.Cycle)
	if err != nil {
		// An unrecognized cycle freezes the due date instead of failing the
		// charge. The subscription will show up again on the next run.
		slog.WarnContext(ctx, "Unknown billing cycle, due date left unchanged",
			"subscription_id", sub.ID,
			"cycle", sub.Cycle)
		return nil
	}

	next := advancer.Advance(sub.NextDue)
	if err := p.store.UpdateSubscriptionNextDue(ctx, sub.ID, next); err != nil {
		return fmt.Errorf("advance due date: %w", err)
	}

	p.log.LogSubscriptionCharged(ctx, sub.Name, string(sub.Cycle), next.String(), sub.Amount.Cents)

	return nil
}
