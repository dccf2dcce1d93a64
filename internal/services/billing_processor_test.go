package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// fakeBillingStore implements BillingStore in memory. Due-date updates are
// respected by ListDueSubscriptions so repeated runs behave like the real
// store.
type fakeBillingStore struct {
	subs     []core.Subscription
	accounts map[int64]core.Account
	txs      []core.Transaction

	failList   bool
	failCreate map[int64]bool // account id -> fail transaction insert
	failAdjust map[int64]bool // account id -> fail balance adjust

	nextTxID int64
}

func newFakeBillingStore() *fakeBillingStore {
	return &fakeBillingStore{
		accounts:   make(map[int64]core.Account),
		failCreate: make(map[int64]bool),
		failAdjust: make(map[int64]bool),
	}
}

func (f *fakeBillingStore) addAccount(a core.Account) {
	f.accounts[a.ID] = a
}

func (f *fakeBillingStore) ListDueSubscriptions(_ context.Context, asOf core.Date) ([]core.Subscription, error) {
	if f.failList {
		return nil, errors.New("store unavailable")
	}
	due := make([]core.Subscription, 0)
	for _, s := range f.subs {
		if s.Status == core.StatusActive && !s.NextDue.After(asOf.Time) {
			due = append(due, s)
		}
	}
	return due, nil
}

func (f *fakeBillingStore) GetAccount(_ context.Context, id int64) (core.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return core.Account{}, storage.ErrNotFound
	}
	return a, nil
}

func (f *fakeBillingStore) DefaultCheckingAccount(_ context.Context, userID string) (core.Account, error) {
	var best core.Account
	for _, a := range f.accounts {
		if a.UserID != userID || a.Type != core.Checking {
			continue
		}
		if best.ID == 0 || a.ID < best.ID {
			best = a
		}
	}
	if best.ID == 0 {
		return core.Account{}, storage.ErrNoCheckingAccount
	}
	return best, nil
}

func (f *fakeBillingStore) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if f.failCreate[tx.AccountID] {
		return core.Transaction{}, errors.New("insert rejected")
	}
	f.nextTxID++
	tx.ID = f.nextTxID
	f.txs = append(f.txs, tx)
	return tx, nil
}

func (f *fakeBillingStore) AdjustAccountBalance(_ context.Context, accountID, deltaCents int64) error {
	if f.failAdjust[accountID] {
		return errors.New("update rejected")
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return storage.ErrNotFound
	}
	a.Balance.Cents += deltaCents
	f.accounts[accountID] = a
	return nil
}

func (f *fakeBillingStore) UpdateSubscriptionNextDue(_ context.Context, id int64, next core.Date) error {
	for i := range f.subs {
		if f.subs[i].ID == id {
			f.subs[i].NextDue = next
			return nil
		}
	}
	return storage.ErrNotFound
}

func newTestProcessor(store *fakeBillingStore) *BillingProcessor {
	return NewBillingProcessor(store, NewTransactionService(store, nil))
}

var runClock = time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)

func TestProcessDueSubscriptionsChargesAndAdvances(t *testing.T) {
	store := newFakeBillingStore()
	store.addAccount(core.Account{ID: 1, UserID: "u1", Type: core.Checking, Balance: core.Money{Cents: 10000}})
	store.subs = []core.Subscription{
		{ID: 1, UserID: "u1", AccountID: 1, Name: "Streaming", Amount: core.Money{Cents: 999},
			Cycle: core.Monthly, NextDue: core.NewDate(2025, 3, 10), Status: core.StatusActive},
		{ID: 2, UserID: "u1", AccountID: 1, Name: "Gym", Amount: core.Money{Cents: 2500},
			Cycle: core.Monthly, NextDue: core.NewDate(2025, 4, 1), Status: core.StatusActive}, // future
	}

	report, err := newTestProcessor(store).ProcessDueSubscriptions(context.Background(), runClock)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Processed != 1 || report.Errors != 0 {
		t.Fatalf("expected 1 processed, 0 errors, got %+v", report)
	}
	// Future subscriptions never appear in the run details.
	if len(report.Details) != 1 || report.Details[0].ID != 1 || report.Details[0].Status != "charged" {
		t.Fatalf("unexpected details: %+v", report.Details)
	}

	// One expense ledger entry, dated at invocation time, not at the due date.
	if len(store.txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(store.txs))
	}
	tx := store.txs[0]
	if tx.Type != core.Expense || tx.Amount.Cents != 999 {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if tx.Date.String() != "2025-03-15" {
		t.Fatalf("charge should be dated at run time, got %s", tx.Date)
	}
	if !strings.Contains(tx.Description, "Streaming") {
		t.Fatalf("description should name the subscription: %q", tx.Description)
	}

	// Serial balance: B - A.
	if got := store.accounts[1].Balance.Cents; got != 10000-999 {
		t.Fatalf("expected balance %d, got %d", 10000-999, got)
	}

	// Due date advanced from the previous due date, not from today.
	if got := store.subs[0].NextDue.String(); got != "2025-04-10" {
		t.Fatalf("expected next due 2025-04-10, got %s", got)
	}
}

func TestProcessDueSubscriptionsFallsBackToChecking(t *testing.T) {
	store := newFakeBillingStore()
	store.addAccount(core.Account{ID: 3, UserID: "u1", Type: core.Savings, Balance: core.Money{Cents: 5000}})
	store.addAccount(core.Account{ID: 4, UserID: "u1", Type: core.Checking, Balance: core.Money{Cents: 5000}})
	store.subs = []core.Subscription{
		{ID: 1, UserID: "u1", Name: "Cloud", Amount: core.Money{Cents: 500},
			Cycle: core.Monthly, NextDue: core.NewDate(2025, 3, 1), Status: core.StatusActive},
	}

	report, err := newTestProcessor(store).ProcessDueSubscriptions(context.Background(), runClock)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Processed != 1 {
		t.Fatalf("expected 1 processed, got %+v", report)
	}
	if got := store.accounts[4].Balance.Cents; got != 4500 {
		t.Fatalf("charge should hit the checking account, balance %d", got)
	}
	if got := store.accounts[3].Balance.Cents; got != 5000 {
		t.Fatalf("savings account must be untouched, balance %d", got)
	}
}

func TestProcessDueSubscriptionsIsolatesFailures(t *testing.T) {
	store := newFakeBillingStore()
	store.addAccount(core.Account{ID: 1, UserID: "u1", Type: core.Checking, Balance: core.Money{Cents: 10000}})
	store.subs = []core.Subscription{
		// No explicit account and no checking account for u2: config error.
		{ID: 1, UserID: "u2", Name: "Orphan", Amount: core.Money{Cents: 100},
			Cycle: core.Monthly, NextDue: core.NewDate(2025, 3, 1), Status: core.StatusActive},
		{ID: 2, UserID: "u1", AccountID: 1, Name: "Healthy", Amount: core.Money{Cents: 200},
			Cycle: core.Monthly, NextDue: core.NewDate(2025, 3, 1), Status: core.StatusActive},
	}

	report, err := newTestProcessor(store).ProcessDueSubscriptions(context.Background(), runClock)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Processed != 1 || report.Errors != 1 {
		t.Fatalf("expected 1 processed and 1 error, got %+v", report)
	}
	if report.Processed+report.Errors != 2 {
		t.Fatalf("processed+errors must equal eligible count, got %+v", report)
	}
	if report.Details[0].Error == "" {
		t.Fatalf("failed item should carry the error message: %+v", report.Details[0])
	}
	// The failed item's due date stays untouched.
	if got := store.subs[0].NextDue.String(); got != "2025-03-01" {
		t.Fatalf("failed subscription must not advance, got %s", got)
	}
	// The healthy item still went through.
	if got := store.subs[1].NextDue.String(); got != "2025-04-01" {
		t.Fatalf("healthy subscription should advance, got %s", got)
	}
}

func TestProcessDueSubscriptionsSecondRunIsNoOp(t *testing.T) {
	store := newFakeBillingStore()
	store.addAccount(core.Account{ID: 1, UserID: "u1", Type: core.Checking, Balance: core.Money{Cents: 10000}})
	store.subs = []core.Subscription{
		{ID: 1, UserID: "u1", AccountID: 1, Name: "Streaming", Amount: core.Money{Cents: 999},
			Cycle: core.Monthly, NextDue: core.NewDate(2025, 3, 10), Status: core.StatusActive},
	}
	p := newTestProcessor(store)

	first, err := p.ProcessDueSubscriptions(context.Background(), runClock)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Processed != 1 {
		t.Fatalf("expected first run to charge, got %+v", first)
	}

	second, err := p.ProcessDueSubscriptions(context.Background(), runClock)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Processed != 0 || second.Errors != 0 || len(second.Details) != 0 {
		t.Fatalf("same-day rerun must be a no-op, got %+v", second)
	}
	if len(store.txs) != 1 {
		t.Fatalf("no double charge expected, got %d transactions", len(store.txs))
	}
}

func TestProcessDueSubscriptionsSingleCycleCatchUp(t *testing.T) {
	store := newFakeBillingStore()
	store.addAccount(core.Account{ID: 1, UserID: "u1", Type: core.Checking, Balance: core.Money{Cents: 10000}})
	// Three cycles overdue: one run advances exactly one cycle.
	store.subs = []core.Subscription{
		{ID: 1, UserID: "u1", AccountID: 1, Name: "Streaming", Amount: core.Money{Cents: 999},
			Cycle: core.Monthly, NextDue: core.NewDate(2024, 12, 10), Status: core.StatusActive},
	}
	p := newTestProcessor(store)

	report, err := p.ProcessDueSubscriptions(context.Background(), runClock)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Processed != 1 || len(store.txs) != 1 {
		t.Fatalf("one run charges once regardless of backlog, got %+v", report)
	}
	if got := store.subs[0].NextDue.String(); got != "2025-01-10" {
		t.Fatalf("expected a single-cycle advance to 2025-01-10, got %s", got)
	}

	// Still overdue, so the next run picks it up again.
	report, err = p.ProcessDueSubscriptions(context.Background(), runClock)
	if err != nil {
		t.Fatalf("catch-up run failed: %v", err)
	}
	if report.Processed != 1 || len(store.txs) != 2 {
		t.Fatalf("expected catch-up charge, got %+v", report)
	}
}

func TestProcessDueSubscriptionsUnknownCycle(t *testing.T) {
	store := newFakeBillingStore()
	store.addAccount(core.Account{ID: 1, UserID: "u1", Type: core.Checking, Balance: core.Money{Cents: 10000}})
	store.subs = []core.Subscription{
		{ID: 1, UserID: "u1", AccountID: 1, Name: "Odd", Amount: core.Money{Cents: 100},
			Cycle: "quarterly", NextDue: core.NewDate(2025, 3, 1), Status: core.StatusActive},
	}

	report, err := newTestProcessor(store).ProcessDueSubscriptions(context.Background(), runClock)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	// The charge still lands; only the schedule stays frozen.
	if report.Processed != 1 || report.Errors != 0 {
		t.Fatalf("unknown cycle is not an item error, got %+v", report)
	}
	if len(store.txs) != 1 {
		t.Fatalf("expected the charge to land, got %d transactions", len(store.txs))
	}
	if got := store.subs[0].NextDue.String(); got != "2025-03-01" {
		t.Fatalf("unknown cycle must leave the due date unchanged, got %s", got)
	}
}

func TestProcessDueSubscriptionsListFailureFailsRun(t *testing.T) {
	store := newFakeBillingStore()
	store.failList = true

	report, err := newTestProcessor(store).ProcessDueSubscriptions(context.Background(), runClock)
	if err == nil {
		t.Fatalf("expected batch-level error")
	}
	if report.Processed != 0 || report.Errors != 0 {
		t.Fatalf("failed run must charge nothing, got %+v", report)
	}
}

func TestProcessDueSubscriptionsNoRollbackOnLateFailure(t *testing.T) {
	store := newFakeBillingStore()
	store.addAccount(core.Account{ID: 1, UserID: "u1", Type: core.Checking, Balance: core.Money{Cents: 10000}})
	store.failAdjust[1] = true
	store.subs = []core.Subscription{
		{ID: 1, UserID: "u1", AccountID: 1, Name: "Streaming", Amount: core.Money{Cents: 999},
			Cycle: core.Monthly, NextDue: core.NewDate(2025, 3, 10), Status: core.StatusActive},
	}

	report, err := newTestProcessor(store).ProcessDueSubscriptions(context.Background(), runClock)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Errors != 1 {
		t.Fatalf("expected item error, got %+v", report)
	}
	// The inserted ledger entry stays; no compensating delete.
	if len(store.txs) != 1 {
		t.Fatalf("expected the partial write to remain, got %d transactions", len(store.txs))
	}
	// The due date never advanced.
	if got := store.subs[0].NextDue.String(); got != "2025-03-10" {
		t.Fatalf("due date must stay on failure, got %s", got)
	}
}
