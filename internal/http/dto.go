package http

import (
	"fintrack/internal/core"
	"fintrack/internal/services"
)

// Wire representations. Amounts travel as integer cents plus a formatted
// decimal string for display.

type accountDTO struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	BalanceCents int64   `json:"balance_cents"`
	Balance      float64 `json:"balance"`
}

func toAccountDTO(a core.Account) accountDTO {
	return accountDTO{
		ID:           a.ID,
		Name:         a.Name,
		Type:         string(a.Type),
		BalanceCents: a.Balance.Cents,
		Balance:      a.Balance.Float(),
	}
}

type transactionDTO struct {
	ID          int64   `json:"id"`
	AccountID   int64   `json:"account_id"`
	CategoryID  int64   `json:"category_id,omitempty"`
	Category    string  `json:"category,omitempty"`
	Type        string  `json:"type"`
	AmountCents int64   `json:"amount_cents"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
}

func toTransactionDTO(tx core.Transaction) transactionDTO {
	return transactionDTO{
		ID:          tx.ID,
		AccountID:   tx.AccountID,
		CategoryID:  tx.CategoryID,
		Category:    tx.CategoryName,
		Type:        string(tx.Type),
		AmountCents: tx.Amount.Cents,
		Amount:      tx.Amount.Float(),
		Description: tx.Description,
		Date:        tx.Date.String(),
	}
}

type subscriptionDTO struct {
	ID          int64   `json:"id"`
	AccountID   int64   `json:"account_id,omitempty"`
	CategoryID  int64   `json:"category_id,omitempty"`
	Name        string  `json:"name"`
	AmountCents int64   `json:"amount_cents"`
	Amount      float64 `json:"amount"`
	Cycle       string  `json:"cycle"`
	NextDue     string  `json:"next_due"`
	Status      string  `json:"status"`
}

func toSubscriptionDTO(s core.Subscription) subscriptionDTO {
	return subscriptionDTO{
		ID:          s.ID,
		AccountID:   s.AccountID,
		CategoryID:  s.CategoryID,
		Name:        s.Name,
		AmountCents: s.Amount.Cents,
		Amount:      s.Amount.Float(),
		Cycle:       string(s.Cycle),
		NextDue:     s.NextDue.String(),
		Status:      string(s.Status),
	}
}

type categoryDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

func toCategoryDTO(c core.Category) categoryDTO {
	return categoryDTO{ID: c.ID, Name: c.Name, Color: c.Color}
}

type monthDTO struct {
	Month        string `json:"month"`
	IncomeCents  int64  `json:"income_cents"`
	ExpenseCents int64  `json:"expense_cents"`
	NetCents     int64  `json:"net_cents"`
}

func toMonthDTO(m core.MonthlyAggregate) monthDTO {
	return monthDTO{
		Month:        m.Month,
		IncomeCents:  m.Income.Cents,
		ExpenseCents: m.Expense.Cents,
		NetCents:     m.Net.Cents,
	}
}

type categorySeriesDTO struct {
	CategoryID int64      `json:"category_id"`
	Name       string     `json:"name"`
	Months     []monthDTO `json:"months"`
}

type monthlyReportDTO struct {
	Months     []monthDTO          `json:"months"`
	Categories []categorySeriesDTO `json:"categories"`
}

func toMonthlyReportDTO(rep services.MonthlyReport) monthlyReportDTO {
	out := monthlyReportDTO{
		Months:     make([]monthDTO, 0, len(rep.Months)),
		Categories: make([]categorySeriesDTO, 0, len(rep.Categories)),
	}
	for _, m := range rep.Months {
		out.Months = append(out.Months, toMonthDTO(m))
	}
	for _, c := range rep.Categories {
		series := categorySeriesDTO{
			CategoryID: c.CategoryID,
			Name:       c.Name,
			Months:     make([]monthDTO, 0, len(c.Months)),
		}
		for _, m := range c.Months {
			series.Months = append(series.Months, toMonthDTO(m))
		}
		out.Categories = append(out.Categories, series)
	}
	return out
}

type categoryMonthDTO struct {
	IncomeCents  int64 `json:"income_cents"`
	ExpenseCents int64 `json:"expense_cents"`
}

type categoryTotalsDTO struct {
	CategoryID   int64                `json:"category_id"`
	Name         string               `json:"name"`
	IncomeCents  int64                `json:"income_cents"`
	ExpenseCents int64                `json:"expense_cents"`
	NetCents     int64                `json:"net_cents"`
	Months       [12]categoryMonthDTO `json:"months"`
}

func toCategoryTotalsDTO(t core.CategoryTotals) categoryTotalsDTO {
	out := categoryTotalsDTO{
		CategoryID:   t.CategoryID,
		Name:         t.Name,
		IncomeCents:  t.Income.Cents,
		ExpenseCents: t.Expense.Cents,
		NetCents:     t.Net.Cents,
	}
	for i, m := range t.Months {
		out.Months[i] = categoryMonthDTO{
			IncomeCents:  m.Income.Cents,
			ExpenseCents: m.Expense.Cents,
		}
	}
	return out
}

type forecastDTO struct {
	Months         []monthDTO `json:"months"`
	AverageCents   int64      `json:"average_cents"`
	LastMonthCents int64      `json:"last_month_cents"`
	ProjectedCents int64      `json:"projected_cents"`
}

func toForecastDTO(f core.SpendForecast) forecastDTO {
	out := forecastDTO{
		Months:         make([]monthDTO, 0, len(f.Months)),
		AverageCents:   f.Average.Cents,
		LastMonthCents: f.LastMonth.Cents,
		ProjectedCents: f.Projected.Cents,
	}
	for _, m := range f.Months {
		out.Months = append(out.Months, toMonthDTO(m))
	}
	return out
}
