package services

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// ReportStore is the storage surface the report service reads from.
type ReportStore interface {
	ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error)
	DistinctTransactionYears(ctx context.Context, userID string) ([]int, error)
}

// MonthlyReport bundles the global monthly series with the per-category
// series aligned to the same month keys.
type MonthlyReport struct {
	Months     []core.MonthlyAggregate
	Categories []core.CategorySeries
}

// ReportService runs the pure core reducers over store-fetched transaction
// sets. Callers that already hold transactions can use the core functions
// directly; these variants exist for the HTTP surface.
type ReportService struct {
	store ReportStore
}

func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

// Monthly fetches transactions matching the filter and reduces them into
// the global and per-category monthly series.
func (s *ReportService) Monthly(ctx context.Context, f storage.TransactionFilter) (MonthlyReport, error) {
	txs, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("fetch transactions: %w", err)
	}
	return MonthlyReport{
		Months:     core.MonthlySeries(txs),
		Categories: core.CategoryMonthlySeries(txs),
	}, nil
}

// CategoryYear reduces one calendar year into per-category totals with a
// month breakdown. categoryID narrows to a single category when > 0.
func (s *ReportService) CategoryYear(ctx context.Context, userID string, year int, categoryID int64) ([]core.CategoryTotals, error) {
	txs, err := s.store.ListTransactions(ctx, storage.TransactionFilter{
		UserID:     userID,
		Year:       year,
		CategoryID: categoryID,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	return core.CategoryTotalsForYear(txs, year), nil
}

// AvailableYears returns the user's ledger years, newest first. An empty
// ledger yields the current year so selectors always have an option.
func (s *ReportService) AvailableYears(ctx context.Context, userID string, now time.Time) ([]int, error) {
	years, err := s.store.DistinctTransactionYears(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch years: %w", err)
	}
	if len(years) == 0 {
		return []int{now.Year()}, nil
	}
	return years, nil
}

// Forecast estimates next month's spend from the trailing window of
// expenses. Only the window months are fetched from the store.
func (s *ReportService) Forecast(ctx context.Context, userID string, now time.Time) (core.SpendForecast, error) {
	windowStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 1-core.ForecastWindow, 0)
	txs, err := s.store.ListTransactions(ctx, storage.TransactionFilter{
		UserID: userID,
		From:   core.DateOf(windowStart),
		To:     core.DateOf(now),
	})
	if err != nil {
		return core.SpendForecast{}, fmt.Errorf("fetch transactions: %w", err)
	}
	return core.ForecastSpend(txs, now), nil
}
