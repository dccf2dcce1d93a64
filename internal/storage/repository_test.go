package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"fintrack/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestAccountLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateAccount(ctx, core.Account{
		UserID:  "u1",
		Name:    "Main",
		Type:    core.Checking,
		Balance: core.Money{Cents: 50000},
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	got, err := repo.GetAccount(ctx, created.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Balance.Cents != 50000 || got.Type != core.Checking {
		t.Fatalf("unexpected account: %+v", got)
	}

	if _, err := repo.GetAccount(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdjustAccountBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, err := repo.CreateAccount(ctx, core.Account{UserID: "u1", Name: "Main", Type: core.Checking, Balance: core.Money{Cents: 10000}})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	if err := repo.AdjustAccountBalance(ctx, a.ID, -999); err != nil {
		t.Fatalf("adjust balance: %v", err)
	}
	got, err := repo.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Balance.Cents != 9001 {
		t.Fatalf("expected 9001, got %d", got.Balance.Cents)
	}

	if err := repo.AdjustAccountBalance(ctx, 9999, -1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDefaultCheckingAccount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.DefaultCheckingAccount(ctx, "u1"); !errors.Is(err, ErrNoCheckingAccount) {
		t.Fatalf("expected ErrNoCheckingAccount, got %v", err)
	}

	// Savings accounts never qualify as the fallback charge target.
	if _, err := repo.CreateAccount(ctx, core.Account{UserID: "u1", Name: "Stash", Type: core.Savings}); err != nil {
		t.Fatalf("create savings: %v", err)
	}
	if _, err := repo.DefaultCheckingAccount(ctx, "u1"); !errors.Is(err, ErrNoCheckingAccount) {
		t.Fatalf("expected ErrNoCheckingAccount, got %v", err)
	}

	first, err := repo.CreateAccount(ctx, core.Account{UserID: "u1", Name: "Main", Type: core.Checking})
	if err != nil {
		t.Fatalf("create checking: %v", err)
	}
	if _, err := repo.CreateAccount(ctx, core.Account{UserID: "u1", Name: "Second", Type: core.Checking}); err != nil {
		t.Fatalf("create second checking: %v", err)
	}

	got, err := repo.DefaultCheckingAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("default checking: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected oldest checking account %d, got %d", first.ID, got.ID)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, err := repo.CreateAccount(ctx, core.Account{UserID: "u1", Name: "Main", Type: core.Checking})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	b, err := repo.CreateAccount(ctx, core.Account{UserID: "u1", Name: "Cash", Type: core.Wallet})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	mk := func(account int64, typ core.TransactionType, cents int64, date core.Date) {
		t.Helper()
		_, err := repo.CreateTransaction(ctx, core.Transaction{
			UserID:      "u1",
			AccountID:   account,
			Type:        typ,
			Amount:      core.Money{Cents: cents},
			Description: "t",
			Date:        date,
		})
		if err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	mk(a.ID, core.Income, 1000, core.NewDate(2024, 12, 31))
	mk(a.ID, core.Expense, 2000, core.NewDate(2025, 1, 15))
	mk(b.ID, core.Expense, 3000, core.NewDate(2025, 2, 1))

	all, err := repo.ListTransactions(ctx, TransactionFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(all))
	}

	byAccount, err := repo.ListTransactions(ctx, TransactionFilter{UserID: "u1", AccountID: b.ID})
	if err != nil {
		t.Fatalf("list by account: %v", err)
	}
	if len(byAccount) != 1 || byAccount[0].Amount.Cents != 3000 {
		t.Fatalf("unexpected account filter result: %+v", byAccount)
	}

	byYear, err := repo.ListTransactions(ctx, TransactionFilter{UserID: "u1", Year: 2025})
	if err != nil {
		t.Fatalf("list by year: %v", err)
	}
	if len(byYear) != 2 {
		t.Fatalf("expected 2 transactions in 2025, got %d", len(byYear))
	}

	// Inclusive bounds on both ends.
	ranged, err := repo.ListTransactions(ctx, TransactionFilter{
		UserID: "u1",
		From:   core.NewDate(2024, 12, 31),
		To:     core.NewDate(2025, 1, 15),
	})
	if err != nil {
		t.Fatalf("list by range: %v", err)
	}
	if len(ranged) != 2 {
		t.Fatalf("expected 2 transactions in range, got %d", len(ranged))
	}

	years, err := repo.DistinctTransactionYears(ctx, "u1")
	if err != nil {
		t.Fatalf("distinct years: %v", err)
	}
	if len(years) != 2 || years[0] != 2025 || years[1] != 2024 {
		t.Fatalf("expected [2025 2024], got %v", years)
	}
}

func TestListDueSubscriptions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mk := func(name string, due core.Date, status core.SubscriptionStatus) core.Subscription {
		t.Helper()
		s, err := repo.CreateSubscription(ctx, core.Subscription{
			UserID:  "u1",
			Name:    name,
			Amount:  core.Money{Cents: 999},
			Cycle:   core.Monthly,
			NextDue: due,
			Status:  status,
		})
		if err != nil {
			t.Fatalf("create subscription: %v", err)
		}
		return s
	}

	overdue := mk("overdue", core.NewDate(2025, 1, 1), core.StatusActive)
	today := mk("today", core.NewDate(2025, 3, 15), core.StatusActive)
	mk("future", core.NewDate(2025, 4, 1), core.StatusActive)
	mk("paused", core.NewDate(2025, 1, 1), core.StatusPaused)

	due, err := repo.ListDueSubscriptions(ctx, core.NewDate(2025, 3, 15))
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due subscriptions, got %d", len(due))
	}
	if due[0].ID != overdue.ID || due[1].ID != today.ID {
		t.Fatalf("unexpected due set: %+v", due)
	}

	if err := repo.UpdateSubscriptionNextDue(ctx, overdue.ID, core.NewDate(2025, 4, 1)); err != nil {
		t.Fatalf("update next due: %v", err)
	}
	due, err = repo.ListDueSubscriptions(ctx, core.NewDate(2025, 3, 15))
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].ID != today.ID {
		t.Fatalf("expected only the same-day subscription, got %+v", due)
	}
}

func TestPendingExportFlow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, err := repo.CreateAccount(ctx, core.Account{UserID: "u1", Name: "Main", Type: core.Checking})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	tx, err := repo.CreateTransaction(ctx, core.Transaction{
		UserID: "u1", AccountID: a.ID, Type: core.Expense,
		Amount: core.Money{Cents: 100}, Description: "t", Date: core.NewDate(2025, 1, 1),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	pending, err := repo.PendingExportTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != tx.ID {
		t.Fatalf("expected 1 pending transaction, got %+v", pending)
	}

	if err := repo.MarkTransactionSynced(ctx, tx.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	pending, err = repo.PendingExportTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending transactions, got %+v", pending)
	}
}

func TestSeededCategories(t *testing.T) {
	repo := newTestRepo(t)
	cats, err := repo.ListCategories(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) == 0 {
		t.Fatalf("expected seeded default categories")
	}
	found := false
	for _, c := range cats {
		if c.Name == "Subscriptions" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Subscriptions among defaults: %+v", cats)
	}
}
