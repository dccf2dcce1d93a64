package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// ExportStore is the storage surface the export worker needs.
type ExportStore interface {
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	PendingExportTransactions(ctx context.Context, limit int) ([]storage.PendingTransaction, error)
	MarkTransactionSynced(ctx context.Context, id int64) error
	MarkTransactionSyncError(ctx context.Context, id int64) error
}

// ExportWorker mirrors ledger entries from SQLite to an external sheet.
// AMQP messages drive the hot path; the pending scan is a backup for
// messages lost while the worker was down.
type ExportWorker struct {
	storage   ExportStore
	writer    sheets.LedgerWriter
	batchSize int
}

func NewExportWorker(storage ExportStore, writer sheets.LedgerWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single ledger sync message from AMQP
func (w *ExportWorker) HandleSyncMessage(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	tx, err := w.storage.GetTransaction(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if err := w.exportTransaction(ctx, tx); err != nil {
		return fmt.Errorf("export transaction: %w", err)
	}

	return nil
}

// ProcessPending exports any entries that haven't been mirrored yet.
// This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.storage.PendingExportTransactions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, ref := range pending {
		tx, err := w.storage.GetTransaction(ctx, ref.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get transaction", "id", ref.ID, "error", err)
			if err := w.storage.MarkTransactionSyncError(ctx, ref.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", ref.ID, "error", err)
			}
			continue
		}

		if err := w.exportTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction", "id", ref.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupCheck drains the pending backlog once at worker startup. Useful
// to recover from missed AMQP messages or worker downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.PendingExportTransactions(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, ref := range pending {
		tx, err := w.storage.GetTransaction(ctx, ref.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get transaction for startup export",
				"id", ref.ID, "error", err)
			if err := w.storage.MarkTransactionSyncError(ctx, ref.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", ref.ID, "error", err)
			}
			errorCount++
			continue
		}

		if err := w.exportTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during startup",
				"id", ref.ID, "error", err)
			errorCount++
			continue
		}

		successCount++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)

	return nil
}

func (w *ExportWorker) exportTransaction(ctx context.Context, tx core.Transaction) error {
	ref, err := w.writer.Append(ctx, tx)
	if err != nil {
		if markErr := w.storage.MarkTransactionSyncError(ctx, tx.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", tx.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.storage.MarkTransactionSynced(ctx, tx.ID); err != nil {
		// The sheet write went through; keep the export counted as done.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", tx.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully exported transaction",
		"id", tx.ID,
		"sheets_ref", ref,
		"description", tx.Description,
		"amount_cents", tx.Amount.Cents)

	return nil
}
