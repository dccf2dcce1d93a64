package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// TransactionStore is the storage surface transaction recording needs.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	AdjustAccountBalance(ctx context.Context, accountID, deltaCents int64) error
}

// TransactionService records ledger entries: it inserts the row, applies the
// signed amount to the account balance as an atomic in-store adjustment, and
// publishes a sync message for the export worker.
type TransactionService struct {
	store      TransactionStore
	amqpClient *amqp.Client
	log        *applog.StructuredLogger
}

func NewTransactionService(store TransactionStore, amqpClient *amqp.Client) *TransactionService {
	return &TransactionService{
		store:      store,
		amqpClient: amqpClient,
		log:        applog.NewStructuredLogger(applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentLedger)),
	}
}

// Record validates and persists a transaction, then adjusts the account
// balance. The two writes are not wrapped in one store transaction: a failed
// balance adjustment surfaces as an error while the inserted row stays,
// matching the per-item no-rollback policy of the billing run.
func (s *TransactionService) Record(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	created, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	delta := created.Amount.Cents
	if created.Type == core.Expense {
		delta = -delta
	}
	if err := s.store.AdjustAccountBalance(ctx, created.AccountID, delta); err != nil {
		return created, fmt.Errorf("adjust account balance: %w", err)
	}

	s.log.LogTransactionRecorded(ctx, created.Description, string(created.Type), created.Amount.Cents, created.AccountID)

	// Async mirror sync, non-blocking: the transaction is already durable.
	if err := s.publishSyncMessage(ctx, created.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", created.ID, "error", err)
	}

	return created, nil
}

func (s *TransactionService) publishSyncMessage(ctx context.Context, id int64) error {
	if s.amqpClient == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.amqpClient.PublishLedgerSync(ctx, id, 1)
}

// Close closes the AMQP connection if one is attached.
func (s *TransactionService) Close() error {
	if s.amqpClient != nil {
		return s.amqpClient.Close()
	}
	return nil
}
