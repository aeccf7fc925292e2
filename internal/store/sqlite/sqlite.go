// Package sqlite is the embedded single-node store adapter. Expenses live in
// a flat table with the paid-month set JSON-encoded per row; the per-user
// settings document is one row of JSON columns. Every write re-reads the
// affected snapshot and pushes it to watchers.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"despesas/internal/core"
	"despesas/internal/identity"
	"despesas/internal/store"
)

type Store struct {
	db  *sql.DB
	hub *store.Hub
}

func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, hub: store.NewHub()}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func encodeMonths(months []core.MonthKey) (string, error) {
	if months == nil {
		months = []core.MonthKey{}
	}
	b, err := json.Marshal(months)
	if err != nil {
		return "", fmt.Errorf("encode paid months: %w", err)
	}
	return string(b), nil
}

func decodeMonths(raw string) ([]core.MonthKey, error) {
	var months []core.MonthKey
	if err := json.Unmarshal([]byte(raw), &months); err != nil {
		return nil, fmt.Errorf("decode paid months: %w", err)
	}
	return months, nil
}

// Budgets are stored as month -> cents so the JSON column stays readable
// with plain sqlite tooling.
func encodeBudgets(budgets core.BudgetMap) (string, error) {
	cents := make(map[core.MonthKey]int64, len(budgets))
	for k, v := range budgets {
		cents[k] = v.Cents
	}
	b, err := json.Marshal(cents)
	if err != nil {
		return "", fmt.Errorf("encode budgets: %w", err)
	}
	return string(b), nil
}

func decodeBudgets(raw string) (core.BudgetMap, error) {
	var cents map[core.MonthKey]int64
	if err := json.Unmarshal([]byte(raw), &cents); err != nil {
		return nil, fmt.Errorf("decode budgets: %w", err)
	}
	budgets := make(core.BudgetMap, len(cents))
	for k, v := range cents {
		budgets[k] = core.Money{Cents: v}
	}
	return budgets, nil
}

func encodeCategories(categories []string) (string, error) {
	if categories == nil {
		categories = []string{}
	}
	b, err := json.Marshal(categories)
	if err != nil {
		return "", fmt.Errorf("encode categories: %w", err)
	}
	return string(b), nil
}

func (s *Store) listExpenses(ctx context.Context, uid string) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, amount_cents, category, due_day, start_month, end_month, paid_months
		FROM expenses WHERE uid = ? ORDER BY created_at, id`, uid)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var e core.Expense
		var paidRaw string
		if err := rows.Scan(&e.ID, &e.Name, &e.Amount.Cents, &e.Category, &e.DueDay,
			&e.StartMonth, &e.EndMonth, &paidRaw); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.PaidMonths, err = decodeMonths(paidRaw); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func (s *Store) ListExpenses(ctx context.Context, uid string) ([]core.Expense, error) {
	return s.listExpenses(ctx, uid)
}

func (s *Store) notifyExpenses(ctx context.Context, uid string) {
	snap, err := s.listExpenses(ctx, uid)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load expense snapshot for watchers", "uid", uid, "error", err)
		return
	}
	s.hub.NotifyExpenses(uid, snap)
}

func (s *Store) CreateExpense(ctx context.Context, uid string, e core.Expense) (string, error) {
	e.ID = uuid.NewString()
	paidRaw, err := encodeMonths(e.PaidMonths)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, uid, name, amount_cents, category, due_day, start_month, end_month, paid_months)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, uid, e.Name, e.Amount.Cents, e.Category, e.DueDay, string(e.StartMonth), string(e.EndMonth), paidRaw)
	if err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved", "id", e.ID, "name", e.Name, "amount_cents", e.Amount.Cents)
	s.notifyExpenses(ctx, uid)
	return e.ID, nil
}

func (s *Store) ReplaceExpense(ctx context.Context, uid string, e core.Expense) error {
	paidRaw, err := encodeMonths(e.PaidMonths)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE expenses SET name = ?, amount_cents = ?, category = ?, due_day = ?,
			start_month = ?, end_month = ?, paid_months = ?
		WHERE id = ? AND uid = ?`,
		e.Name, e.Amount.Cents, e.Category, e.DueDay,
		string(e.StartMonth), string(e.EndMonth), paidRaw, e.ID, uid)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("replace expense: id %q not found", e.ID)
	}

	s.notifyExpenses(ctx, uid)
	return nil
}

func (s *Store) SetPaidMonths(ctx context.Context, uid, id string, months []core.MonthKey) error {
	paidRaw, err := encodeMonths(months)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE expenses SET paid_months = ? WHERE id = ? AND uid = ?`, paidRaw, id, uid)
	if err != nil {
		return fmt.Errorf("update paid months: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set paid months: id %q not found", id)
	}

	s.notifyExpenses(ctx, uid)
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, uid, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND uid = ?`, id, uid); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.notifyExpenses(ctx, uid)
	return nil
}

func (s *Store) getSettings(ctx context.Context, uid string) (core.Settings, bool, error) {
	var budgetsRaw, categoriesRaw string
	err := s.db.QueryRowContext(ctx,
		`SELECT budgets, categories FROM settings WHERE uid = ?`, uid).
		Scan(&budgetsRaw, &categoriesRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Settings{}, false, nil
	}
	if err != nil {
		return core.Settings{}, false, fmt.Errorf("query settings: %w", err)
	}

	var settings core.Settings
	if settings.Budgets, err = decodeBudgets(budgetsRaw); err != nil {
		return core.Settings{}, false, err
	}
	if err := json.Unmarshal([]byte(categoriesRaw), &settings.Categories); err != nil {
		return core.Settings{}, false, fmt.Errorf("decode categories: %w", err)
	}
	return settings, true, nil
}

func (s *Store) GetSettings(ctx context.Context, uid string) (core.Settings, bool, error) {
	return s.getSettings(ctx, uid)
}

func (s *Store) notifySettings(ctx context.Context, uid string) {
	snap, found, err := s.getSettings(ctx, uid)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load settings snapshot for watchers", "uid", uid, "error", err)
		return
	}
	if found {
		s.hub.NotifySettings(uid, snap)
	}
}

func (s *Store) CreateSettings(ctx context.Context, uid string, settings core.Settings) error {
	budgetsRaw, err := encodeBudgets(settings.Budgets)
	if err != nil {
		return err
	}
	categoriesRaw, err := encodeCategories(settings.Categories)
	if err != nil {
		return err
	}

	// INSERT OR IGNORE keeps initialization idempotent: a second session
	// racing the first never clobbers the existing document.
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO settings (uid, budgets, categories) VALUES (?, ?, ?)`,
		uid, budgetsRaw, categoriesRaw)
	if err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notifySettings(ctx, uid)
	}
	return nil
}

func (s *Store) MergeBudgets(ctx context.Context, uid string, budgets core.BudgetMap) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge budgets: %w", err)
	}
	defer tx.Rollback()

	var budgetsRaw string
	err = tx.QueryRowContext(ctx, `SELECT budgets FROM settings WHERE uid = ?`, uid).Scan(&budgetsRaw)
	current := core.BudgetMap{}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (uid) VALUES (?)`, uid); err != nil {
			return fmt.Errorf("insert settings row: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read budgets: %w", err)
	default:
		if current, err = decodeBudgets(budgetsRaw); err != nil {
			return err
		}
	}

	for k, v := range budgets {
		current[k] = v
	}
	merged, err := encodeBudgets(current)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE settings SET budgets = ? WHERE uid = ?`, merged, uid); err != nil {
		return fmt.Errorf("write budgets: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge budgets: %w", err)
	}

	s.notifySettings(ctx, uid)
	return nil
}

func (s *Store) MergeCategories(ctx context.Context, uid string, categories []string) error {
	categoriesRaw, err := encodeCategories(categories)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (uid, categories) VALUES (?, ?)
		ON CONFLICT(uid) DO UPDATE SET categories = excluded.categories`,
		uid, categoriesRaw)
	if err != nil {
		return fmt.Errorf("write categories: %w", err)
	}

	s.notifySettings(ctx, uid)
	return nil
}

func (s *Store) WatchExpenses(uid string, fn func([]core.Expense)) func() {
	cancel := s.hub.SubscribeExpenses(uid, fn)
	snap, err := s.listExpenses(context.Background(), uid)
	if err != nil {
		slog.Error("Failed to load initial expense snapshot", "uid", uid, "error", err)
		snap = nil
	}
	fn(snap)
	return cancel
}

func (s *Store) WatchSettings(uid string, fn func(core.Settings)) func() {
	cancel := s.hub.SubscribeSettings(uid, fn)
	snap, found, err := s.getSettings(context.Background(), uid)
	if err != nil {
		slog.Error("Failed to load initial settings snapshot", "uid", uid, "error", err)
		return cancel
	}
	if found {
		fn(snap)
	}
	return cancel
}

func (s *Store) Refresh(ctx context.Context, uid string) error {
	snap, err := s.listExpenses(ctx, uid)
	if err != nil {
		return err
	}
	s.hub.NotifyExpenses(uid, snap)

	settings, found, err := s.getSettings(ctx, uid)
	if err != nil {
		return err
	}
	if found {
		s.hub.NotifySettings(uid, settings)
	}
	return nil
}

func (s *Store) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid FROM expenses UNION SELECT uid FROM settings ORDER BY uid`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan uid: %w", err)
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return uids, nil
}

// CreateAccount implements identity.Accounts.
func (s *Store) CreateAccount(ctx context.Context, a identity.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (uid, email, password_hash) VALUES (?, ?, ?)`,
		a.UID, identity.NormalizeEmail(a.Email), a.PasswordHash)
	if err != nil {
		var serr *sqlite.Error
		if errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return identity.ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// AccountByEmail implements identity.Accounts.
func (s *Store) AccountByEmail(ctx context.Context, email string) (identity.Account, bool, error) {
	var a identity.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT uid, email, password_hash FROM accounts WHERE email = ?`,
		identity.NormalizeEmail(email)).
		Scan(&a.UID, &a.Email, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Account{}, false, nil
	}
	if err != nil {
		return identity.Account{}, false, fmt.Errorf("query account: %w", err)
	}
	return a, true, nil
}
