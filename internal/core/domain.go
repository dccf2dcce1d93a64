package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Weekly   BillingCycle = "weekly"
	BiWeekly BillingCycle = "biweekly"
	Monthly  BillingCycle = "monthly"
	Yearly   BillingCycle = "yearly"

	Checking AccountType = "checking"
	Savings  AccountType = "savings"
	Wallet   AccountType = "wallet"

	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	StatusActive SubscriptionStatus = "active"
	StatusPaused SubscriptionStatus = "paused"
)

type (
	BillingCycle       string
	AccountType        string
	TransactionType    string
	SubscriptionStatus string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Account struct {
		ID      int64
		UserID  string
		Name    string
		Type    AccountType
		Balance Money
	}

	Category struct {
		ID     int64
		UserID string
		Name   string
		Color  string
	}

	// Transaction is an immutable ledger entry. CategoryID 0 means
	// uncategorized; CategoryName is resolved for display only.
	Transaction struct {
		ID           int64
		UserID       string
		AccountID    int64
		CategoryID   int64
		CategoryName string
		Type         TransactionType
		Amount       Money
		Description  string
		Date         Date
	}

	// Subscription is a recurring expense template. AccountID 0 means the
	// charge falls back to the user's first checking account.
	Subscription struct {
		ID         int64
		UserID     string
		AccountID  int64
		CategoryID int64
		Name       string
		Amount     Money
		Cycle      BillingCycle
		NextDue    Date
		Status     SubscriptionStatus
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidTxType      = errors.New("invalid transaction type")
	ErrInvalidCycle       = errors.New("invalid billing cycle")
	ErrInvalidStatus      = errors.New("invalid subscription status")
)

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MonthKey returns the 7-character year-month bucket key, e.g. "2025-03".
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t AccountType) Validate() error {
	switch t {
	case Checking, Savings, Wallet:
		return nil
	}
	return ErrInvalidAccountType
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	}
	return ErrInvalidTxType
}

func (c BillingCycle) Validate() error {
	switch c {
	case Weekly, BiWeekly, Monthly, Yearly:
		return nil
	}
	return ErrInvalidCycle
}

func (s SubscriptionStatus) Validate() error {
	switch s {
	case StatusActive, StatusPaused:
		return nil
	}
	return ErrInvalidStatus
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return a.Type.Validate()
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.AccountID <= 0 {
		return errors.New("missing account")
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return t.Amount.Validate()
}

func (s Subscription) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if len(s.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	if err := s.Cycle.Validate(); err != nil {
		return err
	}
	if err := s.NextDue.Validate(); err != nil {
		return errors.New("invalid next due date: " + err.Error())
	}
	if s.Status == "" {
		return nil
	}
	return s.Status.Validate()
}
