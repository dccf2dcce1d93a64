package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrNoCheckingAccount = errors.New("no checking account for user")
)

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
// From and To are inclusive bounds on the transaction date.
type TransactionFilter struct {
	UserID     string
	AccountID  int64
	CategoryID int64
	Year       int
	From       core.Date
	To         core.Date
}

// PendingTransaction is the minimal record the export worker needs to pick
// up rows that still await mirroring.
type PendingTransaction struct {
	ID        int64
	CreatedAt time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- accounts ---

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, type, balance_cents) VALUES (?, ?, ?, ?)`,
		a.UserID, a.Name, string(a.Type), a.Balance.Cents)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account insert id: %w", err)
	}
	a.ID = id
	return a, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	var a core.Account
	var typ string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, type, balance_cents FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.Balance.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	a.Type = core.AccountType(typ)
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, type, balance_cents FROM accounts WHERE user_id = ? ORDER BY created_at, id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]core.Account, 0)
	for rows.Next() {
		var a core.Account
		var typ string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.Balance.Cents); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = core.AccountType(typ)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DefaultCheckingAccount returns the user's oldest checking account, the
// fallback charge target for subscriptions without an explicit account.
func (r *SQLiteRepository) DefaultCheckingAccount(ctx context.Context, userID string) (core.Account, error) {
	var a core.Account
	var typ string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, type, balance_cents FROM accounts
		 WHERE user_id = ? AND type = 'checking' ORDER BY created_at, id LIMIT 1`,
		userID).
		Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.Balance.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, ErrNoCheckingAccount
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("default checking account: %w", err)
	}
	a.Type = core.AccountType(typ)
	return a, nil
}

// AdjustAccountBalance applies a signed delta to an account balance in a
// single UPDATE. Concurrent adjustments serialize inside the store instead
// of racing through a read-modify-write.
func (r *SQLiteRepository) AdjustAccountBalance(ctx context.Context, accountID, deltaCents int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		deltaCents, accountID)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust balance rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- transactions ---

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	var categoryID any
	if tx.CategoryID > 0 {
		categoryID = tx.CategoryID
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, account_id, category_id, type, amount_cents, description, occurred_on)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.UserID, tx.AccountID, categoryID, string(tx.Type), tx.Amount.Cents, tx.Description, tx.Date.String())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction insert id: %w", err)
	}
	tx.ID = id

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"type", tx.Type,
		"amount_cents", tx.Amount.Cents,
		"account_id", tx.AccountID,
		"date", tx.Date.String())

	return tx, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT t.id, t.user_id, t.account_id, COALESCE(t.category_id, 0), COALESCE(c.name, ''),
		        t.type, t.amount_cents, t.description, t.occurred_on
		 FROM transactions t LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	return tx, err
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT t.id, t.user_id, t.account_id, COALESCE(t.category_id, 0), COALESCE(c.name, ''),
	                 t.type, t.amount_cents, t.description, t.occurred_on
	          FROM transactions t LEFT JOIN categories c ON c.id = t.category_id
	          WHERE 1=1`
	args := make([]any, 0, 6)
	if f.UserID != "" {
		query += ` AND t.user_id = ?`
		args = append(args, f.UserID)
	}
	if f.AccountID > 0 {
		query += ` AND t.account_id = ?`
		args = append(args, f.AccountID)
	}
	if f.CategoryID > 0 {
		query += ` AND t.category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.Year > 0 {
		query += ` AND substr(t.occurred_on, 1, 4) = ?`
		args = append(args, strconv.Itoa(f.Year))
	}
	if !f.From.IsZero() {
		query += ` AND t.occurred_on >= ?`
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		query += ` AND t.occurred_on <= ?`
		args = append(args, f.To.String())
	}
	query += ` ORDER BY t.occurred_on, t.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// DistinctTransactionYears returns the calendar years with at least one
// transaction for the user, newest first.
func (r *SQLiteRepository) DistinctTransactionYears(ctx context.Context, userID string) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT substr(occurred_on, 1, 4) FROM transactions WHERE user_id = ? ORDER BY 1 DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("distinct years: %w", err)
	}
	defer rows.Close()

	years := make([]int, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan year: %w", err)
		}
		y, err := strconv.Atoi(s)
		if err != nil {
			// A malformed date prefix is skipped, same as in the reducers.
			continue
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var tx core.Transaction
	var typ, occurredOn string
	err := row.Scan(&tx.ID, &tx.UserID, &tx.AccountID, &tx.CategoryID, &tx.CategoryName,
		&typ, &tx.Amount.Cents, &tx.Description, &occurredOn)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(typ)
	// A malformed date leaves the Date zero; the reducers skip such rows
	// instead of failing the whole aggregation.
	if d, err := core.ParseDate(occurredOn); err == nil {
		tx.Date = d
	}
	return tx, nil
}

// --- subscriptions ---

func (r *SQLiteRepository) CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	var accountID, categoryID any
	if s.AccountID > 0 {
		accountID = s.AccountID
	}
	if s.CategoryID > 0 {
		categoryID = s.CategoryID
	}
	if s.Status == "" {
		s.Status = core.StatusActive
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, account_id, category_id, name, amount_cents, cycle, next_due, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.UserID, accountID, categoryID, s.Name, s.Amount.Cents, string(s.Cycle), s.NextDue.String(), string(s.Status))
	if err != nil {
		return core.Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Subscription{}, fmt.Errorf("subscription insert id: %w", err)
	}
	s.ID = id
	return s, nil
}

func (r *SQLiteRepository) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, COALESCE(account_id, 0), COALESCE(category_id, 0),
		        name, amount_cents, cycle, next_due, status
		 FROM subscriptions WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// ListDueSubscriptions returns every active subscription whose next due date
// has arrived or passed as of the given calendar date.
func (r *SQLiteRepository) ListDueSubscriptions(ctx context.Context, asOf core.Date) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, COALESCE(account_id, 0), COALESCE(category_id, 0),
		        name, amount_cents, cycle, next_due, status
		 FROM subscriptions WHERE status = 'active' AND next_due <= ? ORDER BY id`,
		asOf.String())
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func (r *SQLiteRepository) UpdateSubscriptionNextDue(ctx context.Context, id int64, next core.Date) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET next_due = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		next.String(), id)
	if err != nil {
		return fmt.Errorf("update next due: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update next due rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) UpdateSubscriptionStatus(ctx context.Context, id int64, status core.SubscriptionStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subscription status rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func collectSubscriptions(rows *sql.Rows) ([]core.Subscription, error) {
	subs := make([]core.Subscription, 0)
	for rows.Next() {
		var s core.Subscription
		var cycle, nextDue, status string
		err := rows.Scan(&s.ID, &s.UserID, &s.AccountID, &s.CategoryID,
			&s.Name, &s.Amount.Cents, &cycle, &nextDue, &status)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		s.Cycle = core.BillingCycle(cycle)
		s.Status = core.SubscriptionStatus(status)
		if d, err := core.ParseDate(nextDue); err == nil {
			s.NextDue = d
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// --- categories ---

// ListCategories returns the user's categories plus the shared defaults.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, color FROM categories WHERE user_id IN ('', ?) ORDER BY name, id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	cats := make([]core.Category, 0)
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// --- export mirror bookkeeping ---

// PendingExportTransactions returns transactions that still await mirroring,
// oldest first. Backup path in case AMQP messages are lost.
func (r *SQLiteRepository) PendingExportTransactions(ctx context.Context, limit int) ([]PendingTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at FROM transactions WHERE sync_status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending export transactions: %w", err)
	}
	defer rows.Close()

	pending := make([]PendingTransaction, 0)
	for rows.Next() {
		var p PendingTransaction
		if err := rows.Scan(&p.ID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending transaction: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

func (r *SQLiteRepository) MarkTransactionSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'synced' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkTransactionSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}
