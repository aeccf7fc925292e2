// Package store defines the document-store contract the rest of the
// application depends on. Adapters live in subpackages; all of them share
// the same push model: watchers receive a full snapshot after every
// confirmed write, and the local state of a session changes only through
// those notifications, never optimistically at the call site.
package store

import (
	"context"

	"despesas/internal/core"
)

// Ports for document-store adapters, scoped per user id.
type (
	// ExpenseCollection is a user's expense collection. CreateExpense
	// assigns the id; SetPaidMonths is a single-field merge update so a
	// paid toggle does not replace the whole record.
	ExpenseCollection interface {
		ListExpenses(ctx context.Context, uid string) ([]core.Expense, error)
		CreateExpense(ctx context.Context, uid string, e core.Expense) (id string, err error)
		ReplaceExpense(ctx context.Context, uid string, e core.Expense) error
		SetPaidMonths(ctx context.Context, uid, id string, months []core.MonthKey) error
		DeleteExpense(ctx context.Context, uid, id string) error
	}

	// SettingsDocument is the single per-user settings document holding
	// budgets and categories. CreateSettings must not clobber an existing
	// document; the existence check plus create is the accepted
	// read-check-then-write initialization.
	SettingsDocument interface {
		GetSettings(ctx context.Context, uid string) (core.Settings, bool, error)
		CreateSettings(ctx context.Context, uid string, s core.Settings) error
		MergeBudgets(ctx context.Context, uid string, budgets core.BudgetMap) error
		MergeCategories(ctx context.Context, uid string, categories []string) error
	}

	// Watcher delivers live snapshots. The callback fires once with the
	// current state on subscription and again after every confirmed write
	// for that user. Refresh re-reads the backing store and re-delivers,
	// which is how cross-process change notifications are folded in.
	Watcher interface {
		WatchExpenses(uid string, fn func([]core.Expense)) (cancel func())
		WatchSettings(uid string, fn func(core.Settings)) (cancel func())
		Refresh(ctx context.Context, uid string) error
	}

	// UserLister enumerates user ids with stored data, for batch jobs.
	UserLister interface {
		Users(ctx context.Context) ([]string, error)
	}
)

// Store is the full contract an adapter provides.
type Store interface {
	ExpenseCollection
	SettingsDocument
	Watcher
	UserLister
}

// CleanupFunc releases an adapter's resources.
type CleanupFunc func() error
