package worker

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
)

type fakeExportStore struct {
	txs    map[int64]core.Transaction
	status map[int64]string // synced / error
}

func newFakeExportStore(txs ...core.Transaction) *fakeExportStore {
	s := &fakeExportStore{
		txs:    make(map[int64]core.Transaction),
		status: make(map[int64]string),
	}
	for _, tx := range txs {
		s.txs[tx.ID] = tx
	}
	return s
}

func (s *fakeExportStore) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

func (s *fakeExportStore) PendingExportTransactions(_ context.Context, limit int) ([]storage.PendingTransaction, error) {
	var pending []storage.PendingTransaction
	for id := range s.txs {
		if s.status[id] == "" {
			pending = append(pending, storage.PendingTransaction{ID: id})
		}
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (s *fakeExportStore) MarkTransactionSynced(_ context.Context, id int64) error {
	s.status[id] = "synced"
	return nil
}

func (s *fakeExportStore) MarkTransactionSyncError(_ context.Context, id int64) error {
	s.status[id] = "error"
	return nil
}

func ledgerTx(id int64) core.Transaction {
	return core.Transaction{
		ID:          id,
		UserID:      "u1",
		AccountID:   1,
		Type:        core.Expense,
		Amount:      core.Money{Cents: 999},
		Description: "Subscription payment: Streaming",
		Date:        core.NewDate(2025, 3, 15),
	}
}

func TestHandleSyncMessageExports(t *testing.T) {
	store := newFakeExportStore(ledgerTx(1))
	writer := memory.New()
	w := NewExportWorker(store, writer, 10)

	msg := &amqp.LedgerSyncMessage{ID: 1, Version: 1}
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if got := writer.Appended(); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected one mirrored row, got %+v", got)
	}
	if store.status[1] != "synced" {
		t.Fatalf("expected synced status, got %q", store.status[1])
	}
}

func TestHandleSyncMessageMissingTransaction(t *testing.T) {
	store := newFakeExportStore()
	w := NewExportWorker(store, memory.New(), 10)

	msg := &amqp.LedgerSyncMessage{ID: 42, Version: 1}
	if err := w.HandleSyncMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error for unknown transaction")
	}
}

func TestHandleSyncMessageWriterFailure(t *testing.T) {
	store := newFakeExportStore(ledgerTx(1))
	writer := memory.New()
	writer.FailWith = errors.New("sheet offline")
	w := NewExportWorker(store, writer, 10)

	msg := &amqp.LedgerSyncMessage{ID: 1, Version: 1}
	if err := w.HandleSyncMessage(context.Background(), msg); err == nil {
		t.Fatal("expected writer failure to surface")
	}
	if store.status[1] != "error" {
		t.Fatalf("expected error status, got %q", store.status[1])
	}
}

func TestProcessPendingDrainsBacklog(t *testing.T) {
	store := newFakeExportStore(ledgerTx(1), ledgerTx(2), ledgerTx(3))
	writer := memory.New()
	w := NewExportWorker(store, writer, 10)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("process pending failed: %v", err)
	}
	if got := len(writer.Appended()); got != 3 {
		t.Fatalf("expected 3 mirrored rows, got %d", got)
	}
	for id := int64(1); id <= 3; id++ {
		if store.status[id] != "synced" {
			t.Fatalf("expected transaction %d synced, got %q", id, store.status[id])
		}
	}

	// Second pass finds nothing to do.
	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if got := len(writer.Appended()); got != 3 {
		t.Fatalf("backlog drained twice, got %d rows", got)
	}
}

func TestStartupCheckContinuesPastFailures(t *testing.T) {
	bad := ledgerTx(2)
	bad.Description = "" // fails writer validation
	store := newFakeExportStore(ledgerTx(1), bad)
	writer := memory.New()
	w := NewExportWorker(store, writer, 10)

	if err := w.StartupCheck(context.Background()); err != nil {
		t.Fatalf("startup check failed: %v", err)
	}
	if got := len(writer.Appended()); got != 1 {
		t.Fatalf("expected the valid row mirrored, got %d", got)
	}
	if store.status[2] != "error" {
		t.Fatalf("expected invalid row marked error, got %q", store.status[2])
	}
	if store.status[1] != "synced" {
		t.Fatalf("expected valid row synced, got %q", store.status[1])
	}
}
