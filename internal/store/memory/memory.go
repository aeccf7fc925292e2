// Package memory is the in-memory store adapter, used for development and
// tests. It implements the full document-store contract including watch
// notifications, so sessions behave exactly as they do against a real
// backend, minus durability.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"despesas/internal/core"
	"despesas/internal/identity"
)

type userData struct {
	expenses    []core.Expense
	settings    core.Settings
	hasSettings bool
}

type Store struct {
	mu           sync.Mutex
	users        map[string]*userData
	accounts     map[string]identity.Account // keyed by lowercased email
	nextWatch    int
	expenseSubs  map[string]map[int]func([]core.Expense)
	settingsSubs map[string]map[int]func(core.Settings)
}

func New() *Store {
	return &Store{
		users:        make(map[string]*userData),
		accounts:     make(map[string]identity.Account),
		expenseSubs:  make(map[string]map[int]func([]core.Expense)),
		settingsSubs: make(map[string]map[int]func(core.Settings)),
	}
}

func (s *Store) user(uid string) *userData {
	u, ok := s.users[uid]
	if !ok {
		u = &userData{}
		s.users[uid] = u
	}
	return u
}

func copyExpenses(in []core.Expense) []core.Expense {
	out := make([]core.Expense, len(in))
	copy(out, in)
	for i := range out {
		out[i].PaidMonths = append([]core.MonthKey(nil), in[i].PaidMonths...)
	}
	return out
}

func copySettings(in core.Settings) core.Settings {
	out := core.Settings{
		Budgets:    make(core.BudgetMap, len(in.Budgets)),
		Categories: append([]string(nil), in.Categories...),
	}
	for k, v := range in.Budgets {
		out.Budgets[k] = v
	}
	return out
}

func (s *Store) ListExpenses(_ context.Context, uid string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyExpenses(s.user(uid).expenses), nil
}

func (s *Store) CreateExpense(_ context.Context, uid string, e core.Expense) (string, error) {
	s.mu.Lock()
	e.ID = uuid.NewString()
	u := s.user(uid)
	u.expenses = append(u.expenses, e)
	snap := copyExpenses(u.expenses)
	subs := s.expenseWatchers(uid)
	s.mu.Unlock()

	notifyExpenses(subs, snap)
	return e.ID, nil
}

func (s *Store) ReplaceExpense(_ context.Context, uid string, e core.Expense) error {
	s.mu.Lock()
	u := s.user(uid)
	found := false
	for i := range u.expenses {
		if u.expenses[i].ID == e.ID {
			u.expenses[i] = e
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("replace expense: id %q not found", e.ID)
	}
	snap := copyExpenses(u.expenses)
	subs := s.expenseWatchers(uid)
	s.mu.Unlock()

	notifyExpenses(subs, snap)
	return nil
}

func (s *Store) SetPaidMonths(_ context.Context, uid, id string, months []core.MonthKey) error {
	s.mu.Lock()
	u := s.user(uid)
	found := false
	for i := range u.expenses {
		if u.expenses[i].ID == id {
			u.expenses[i].PaidMonths = append([]core.MonthKey(nil), months...)
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("set paid months: id %q not found", id)
	}
	snap := copyExpenses(u.expenses)
	subs := s.expenseWatchers(uid)
	s.mu.Unlock()

	notifyExpenses(subs, snap)
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, uid, id string) error {
	s.mu.Lock()
	u := s.user(uid)
	kept := u.expenses[:0]
	for _, e := range u.expenses {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	u.expenses = kept
	snap := copyExpenses(u.expenses)
	subs := s.expenseWatchers(uid)
	s.mu.Unlock()

	notifyExpenses(subs, snap)
	return nil
}

func (s *Store) GetSettings(_ context.Context, uid string) (core.Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(uid)
	if !u.hasSettings {
		return core.Settings{}, false, nil
	}
	return copySettings(u.settings), true, nil
}

func (s *Store) CreateSettings(_ context.Context, uid string, settings core.Settings) error {
	s.mu.Lock()
	u := s.user(uid)
	if u.hasSettings {
		// Idempotent initialization: never clobber an existing document.
		s.mu.Unlock()
		return nil
	}
	u.settings = copySettings(settings)
	u.hasSettings = true
	snap := copySettings(u.settings)
	subs := s.settingsWatchers(uid)
	s.mu.Unlock()

	notifySettings(subs, snap)
	return nil
}

func (s *Store) MergeBudgets(_ context.Context, uid string, budgets core.BudgetMap) error {
	s.mu.Lock()
	u := s.user(uid)
	if u.settings.Budgets == nil {
		u.settings.Budgets = core.BudgetMap{}
	}
	for k, v := range budgets {
		u.settings.Budgets[k] = v
	}
	u.hasSettings = true
	snap := copySettings(u.settings)
	subs := s.settingsWatchers(uid)
	s.mu.Unlock()

	notifySettings(subs, snap)
	return nil
}

func (s *Store) MergeCategories(_ context.Context, uid string, categories []string) error {
	s.mu.Lock()
	u := s.user(uid)
	u.settings.Categories = append([]string(nil), categories...)
	u.hasSettings = true
	snap := copySettings(u.settings)
	subs := s.settingsWatchers(uid)
	s.mu.Unlock()

	notifySettings(subs, snap)
	return nil
}

func (s *Store) WatchExpenses(uid string, fn func([]core.Expense)) func() {
	s.mu.Lock()
	id := s.nextWatch
	s.nextWatch++
	if s.expenseSubs[uid] == nil {
		s.expenseSubs[uid] = make(map[int]func([]core.Expense))
	}
	s.expenseSubs[uid][id] = fn
	snap := copyExpenses(s.user(uid).expenses)
	s.mu.Unlock()

	fn(snap)
	return func() {
		s.mu.Lock()
		delete(s.expenseSubs[uid], id)
		s.mu.Unlock()
	}
}

func (s *Store) WatchSettings(uid string, fn func(core.Settings)) func() {
	s.mu.Lock()
	id := s.nextWatch
	s.nextWatch++
	if s.settingsSubs[uid] == nil {
		s.settingsSubs[uid] = make(map[int]func(core.Settings))
	}
	s.settingsSubs[uid][id] = fn
	u := s.user(uid)
	has := u.hasSettings
	snap := copySettings(u.settings)
	s.mu.Unlock()

	if has {
		fn(snap)
	}
	return func() {
		s.mu.Lock()
		delete(s.settingsSubs[uid], id)
		s.mu.Unlock()
	}
}

func (s *Store) Refresh(_ context.Context, uid string) error {
	s.mu.Lock()
	u := s.user(uid)
	expSnap := copyExpenses(u.expenses)
	setSnap := copySettings(u.settings)
	has := u.hasSettings
	expSubs := s.expenseWatchers(uid)
	setSubs := s.settingsWatchers(uid)
	s.mu.Unlock()

	notifyExpenses(expSubs, expSnap)
	if has {
		notifySettings(setSubs, setSnap)
	}
	return nil
}

func (s *Store) Users(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uids := make([]string, 0, len(s.users))
	for uid := range s.users {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids, nil
}

// expenseWatchers returns the current callbacks for uid. Caller holds mu.
func (s *Store) expenseWatchers(uid string) []func([]core.Expense) {
	subs := make([]func([]core.Expense), 0, len(s.expenseSubs[uid]))
	for _, fn := range s.expenseSubs[uid] {
		subs = append(subs, fn)
	}
	return subs
}

func (s *Store) settingsWatchers(uid string) []func(core.Settings) {
	subs := make([]func(core.Settings), 0, len(s.settingsSubs[uid]))
	for _, fn := range s.settingsSubs[uid] {
		subs = append(subs, fn)
	}
	return subs
}

func notifyExpenses(subs []func([]core.Expense), snap []core.Expense) {
	for _, fn := range subs {
		fn(snap)
	}
}

func notifySettings(subs []func(core.Settings), snap core.Settings) {
	for _, fn := range subs {
		fn(snap)
	}
}

// CreateAccount implements identity.Accounts.
func (s *Store) CreateAccount(_ context.Context, a identity.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := identity.NormalizeEmail(a.Email)
	if _, exists := s.accounts[key]; exists {
		return identity.ErrEmailTaken
	}
	s.accounts[key] = a
	return nil
}

// AccountByEmail implements identity.Accounts.
func (s *Store) AccountByEmail(_ context.Context, email string) (identity.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[identity.NormalizeEmail(email)]
	return a, ok, nil
}
