// Package session ties a signed-in user to their live data. A session holds
// the current expense and settings snapshots, kept fresh by the store's watch
// notifications, and exposes the mutations the product offers. Local state
// never changes at the mutation call site: a write goes to the store, and the
// snapshot is replaced only when the confirmation pushes back.
package session

import (
	"context"
	"strings"
	"sync"

	"despesas/internal/core"
	"despesas/internal/store"
)

type Session struct {
	uid string
	st  store.Store

	mu            sync.RWMutex
	expenses      []core.Expense
	settings      core.Settings
	settingsReady bool
	version       uint64
	closed        bool

	cancelExpenses func()
	cancelSettings func()
}

// Open subscribes to the user's expenses and settings and initializes the
// settings document if the user has none. Initialization is a read check
// followed by a create; adapters guarantee the create never clobbers a
// document that appeared in between.
func Open(ctx context.Context, st store.Store, uid string) (*Session, error) {
	s := &Session{uid: uid, st: st}

	s.cancelExpenses = st.WatchExpenses(uid, s.onExpenses)
	s.cancelSettings = st.WatchSettings(uid, s.onSettings)

	_, found, err := st.GetSettings(ctx, uid)
	if err != nil {
		s.Close()
		return nil, err
	}
	if !found {
		if err := st.CreateSettings(ctx, uid, core.NewSettings()); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) onExpenses(snap []core.Expense) {
	s.mu.Lock()
	s.expenses = snap
	s.version++
	s.mu.Unlock()
}

func (s *Session) onSettings(snap core.Settings) {
	s.mu.Lock()
	s.settings = snap
	s.settingsReady = true
	s.version++
	s.mu.Unlock()
}

// Close cancels both subscriptions. Mutations on a closed session are silent
// no-ops, mirroring how a signed-out client ignores stray writes.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancelExpenses != nil {
		s.cancelExpenses()
	}
	if s.cancelSettings != nil {
		s.cancelSettings()
	}
}

func (s *Session) UID() string { return s.uid }

// Version increments with every snapshot push. Callers use it to key caches
// of derived views.
func (s *Session) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Expenses returns the current snapshot. The slice is shared with the
// session; callers must not mutate it.
func (s *Session) Expenses() []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expenses
}

// Settings returns the current settings snapshot, or defaults while the
// initial settings push is still in flight.
func (s *Session) Settings() core.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.settingsReady {
		return core.NewSettings()
	}
	return s.settings
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// AddExpense validates and persists a new expense. The id is assigned by the
// store and returned; an empty id with nil error means the session is closed.
func (s *Session) AddExpense(ctx context.Context, e core.Expense) (string, error) {
	if s.isClosed() {
		return "", nil
	}
	if err := e.Validate(); err != nil {
		return "", err
	}
	e.Name = strings.TrimSpace(e.Name)
	return s.st.CreateExpense(ctx, s.uid, e)
}

// UpdateExpense replaces the stored expense with the same id.
func (s *Session) UpdateExpense(ctx context.Context, e core.Expense) error {
	if s.isClosed() {
		return nil
	}
	if err := e.Validate(); err != nil {
		return err
	}
	e.Name = strings.TrimSpace(e.Name)
	return s.st.ReplaceExpense(ctx, s.uid, e)
}

func (s *Session) DeleteExpense(ctx context.Context, id string) error {
	if s.isClosed() {
		return nil
	}
	return s.st.DeleteExpense(ctx, s.uid, id)
}

// TogglePaid flips the paid mark of one expense for one month. The write
// updates only the paid-month field, so two sessions toggling different
// expenses never collide.
func (s *Session) TogglePaid(ctx context.Context, id string, month core.MonthKey) error {
	if s.isClosed() {
		return nil
	}

	s.mu.RLock()
	var current []core.MonthKey
	found := false
	for _, e := range s.expenses {
		if e.ID == id {
			current = e.PaidMonths
			found = true
			break
		}
	}
	s.mu.RUnlock()
	if !found {
		return nil
	}

	return s.st.SetPaidMonths(ctx, s.uid, id, core.TogglePaid(current, month))
}

// SetBudget stores an explicit budget for the month. Negative amounts clamp
// to zero rather than erroring, matching how the form treats bad input.
func (s *Session) SetBudget(ctx context.Context, month core.MonthKey, amount core.Money) error {
	if s.isClosed() {
		return nil
	}
	if _, err := core.ParseMonthKey(string(month)); err != nil {
		return err
	}
	if amount.Cents < 0 {
		amount = core.Money{}
	}
	return s.st.MergeBudgets(ctx, s.uid, core.BudgetMap{month: amount})
}

// AddCategory appends a user category. Blank input and case-insensitive
// duplicates leave the list untouched without error.
func (s *Session) AddCategory(ctx context.Context, name string) error {
	if s.isClosed() {
		return nil
	}
	next, changed := core.AddCategory(s.Settings().Categories, name)
	if !changed {
		return nil
	}
	return s.st.MergeCategories(ctx, s.uid, next)
}

// DeleteCategory removes a user category, guarding defaults and categories
// still referenced by an expense. The result carries the user-facing message
// either way.
func (s *Session) DeleteCategory(ctx context.Context, name string) (core.CategoryResult, error) {
	if s.isClosed() {
		return core.CategoryResult{}, nil
	}

	s.mu.RLock()
	expenses := s.expenses
	s.mu.RUnlock()

	result, next := core.DeleteCategory(s.Settings().Categories, expenses, name)
	if !result.OK {
		return result, nil
	}
	if err := s.st.MergeCategories(ctx, s.uid, next); err != nil {
		return core.CategoryResult{}, err
	}
	return result, nil
}
