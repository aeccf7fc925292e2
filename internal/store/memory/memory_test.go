package memory

import (
	"context"
	"testing"

	"despesas/internal/core"
	"despesas/internal/identity"
)

func testExpense(name string) core.Expense {
	return core.Expense{
		Name:       name,
		Amount:     core.Money{Cents: 10_000},
		Category:   "Moradia",
		DueDay:     10,
		StartMonth: "2024-01",
		EndMonth:   "2024-12",
	}
}

func TestCreateListReplaceDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.CreateExpense(ctx, "u1", testExpense("Aluguel"))
	if err != nil || id == "" {
		t.Fatalf("create: id=%q err=%v", id, err)
	}

	list, err := s.ListExpenses(ctx, "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v err=%v", list, err)
	}

	// Tenant isolation: another uid sees nothing.
	other, _ := s.ListExpenses(ctx, "u2")
	if len(other) != 0 {
		t.Fatalf("u2 should have no expenses, got %d", len(other))
	}

	e := list[0]
	e.Name = "Aluguel novo"
	if err := s.ReplaceExpense(ctx, "u1", e); err != nil {
		t.Fatalf("replace: %v", err)
	}
	list, _ = s.ListExpenses(ctx, "u1")
	if list[0].Name != "Aluguel novo" {
		t.Fatalf("replace not applied: %+v", list[0])
	}

	if err := s.ReplaceExpense(ctx, "u1", testExpense("fantasma")); err == nil {
		t.Fatalf("replace of unknown id should fail")
	}

	if err := s.DeleteExpense(ctx, "u1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = s.ListExpenses(ctx, "u1")
	if len(list) != 0 {
		t.Fatalf("delete not applied: %v", list)
	}
}

func TestSetPaidMonths(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, _ := s.CreateExpense(ctx, "u1", testExpense("Aluguel"))
	if err := s.SetPaidMonths(ctx, "u1", id, []core.MonthKey{"2024-06"}); err != nil {
		t.Fatalf("set paid: %v", err)
	}
	list, _ := s.ListExpenses(ctx, "u1")
	if len(list[0].PaidMonths) != 1 || list[0].PaidMonths[0] != "2024-06" {
		t.Fatalf("paid months: %v", list[0].PaidMonths)
	}

	if err := s.SetPaidMonths(ctx, "u1", "nope", nil); err == nil {
		t.Fatalf("unknown id should fail")
	}
}

func TestWatchExpensesDeliversSnapshots(t *testing.T) {
	s := New()
	ctx := context.Background()

	var got [][]core.Expense
	cancel := s.WatchExpenses("u1", func(snap []core.Expense) {
		got = append(got, snap)
	})
	defer cancel()

	// Initial snapshot on subscribe.
	if len(got) != 1 || len(got[0]) != 0 {
		t.Fatalf("expected initial empty snapshot, got %v", got)
	}

	if _, err := s.CreateExpense(ctx, "u1", testExpense("Aluguel")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(got) != 2 || len(got[1]) != 1 {
		t.Fatalf("expected snapshot after create, got %d notifications", len(got))
	}

	// Writes for another user do not notify this watcher.
	if _, err := s.CreateExpense(ctx, "u2", testExpense("Outra")); err != nil {
		t.Fatalf("create u2: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("cross-user notification leaked")
	}

	cancel()
	if _, err := s.CreateExpense(ctx, "u1", testExpense("Depois")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("cancelled watcher still notified")
	}
}

func TestSettingsInitializationIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, found, _ := s.GetSettings(ctx, "u1"); found {
		t.Fatalf("fresh user should have no settings document")
	}

	if err := s.CreateSettings(ctx, "u1", core.NewSettings()); err != nil {
		t.Fatalf("create settings: %v", err)
	}

	// A concurrent session initializing again must not clobber changes.
	if err := s.MergeBudgets(ctx, "u1", core.BudgetMap{"2024-06": {Cents: 700_000}}); err != nil {
		t.Fatalf("merge budgets: %v", err)
	}
	if err := s.CreateSettings(ctx, "u1", core.NewSettings()); err != nil {
		t.Fatalf("re-create settings: %v", err)
	}

	settings, found, _ := s.GetSettings(ctx, "u1")
	if !found {
		t.Fatalf("settings missing")
	}
	if settings.Budgets["2024-06"].Cents != 700_000 {
		t.Fatalf("re-initialization clobbered budgets: %v", settings.Budgets)
	}
}

func TestWatchSettingsAndMerge(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreateSettings(ctx, "u1", core.NewSettings())

	var snaps []core.Settings
	cancel := s.WatchSettings("u1", func(snap core.Settings) {
		snaps = append(snaps, snap)
	})
	defer cancel()

	if len(snaps) != 1 || len(snaps[0].Categories) != 9 {
		t.Fatalf("initial settings snapshot: %v", snaps)
	}

	if err := s.MergeCategories(ctx, "u1", append(core.DefaultCategories, "Pets")); err != nil {
		t.Fatalf("merge categories: %v", err)
	}
	if len(snaps) != 2 || len(snaps[1].Categories) != 10 {
		t.Fatalf("merge notification: %v", snaps)
	}

	// Budget merge keeps other keys.
	_ = s.MergeBudgets(ctx, "u1", core.BudgetMap{"2024-01": {Cents: 100}})
	_ = s.MergeBudgets(ctx, "u1", core.BudgetMap{"2024-02": {Cents: 200}})
	last := snaps[len(snaps)-1]
	if last.Budgets["2024-01"].Cents != 100 || last.Budgets["2024-02"].Cents != 200 {
		t.Fatalf("budget merge lost keys: %v", last.Budgets)
	}
}

func TestRefreshRedelivers(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.CreateExpense(ctx, "u1", testExpense("Aluguel"))

	count := 0
	cancel := s.WatchExpenses("u1", func([]core.Expense) { count++ })
	defer cancel()

	if err := s.Refresh(ctx, "u1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected initial + refresh notifications, got %d", count)
	}
}

func TestUsersAndAccounts(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.CreateExpense(ctx, "b", testExpense("x"))
	_, _ = s.CreateExpense(ctx, "a", testExpense("y"))

	uids, err := s.Users(ctx)
	if err != nil || len(uids) != 2 || uids[0] != "a" || uids[1] != "b" {
		t.Fatalf("users: %v err=%v", uids, err)
	}

	if err := s.CreateAccount(ctx, identity.Account{UID: "a", Email: "A@x.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := s.CreateAccount(ctx, identity.Account{UID: "c", Email: "a@X.COM", PasswordHash: "h"}); err != identity.ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	acc, found, _ := s.AccountByEmail(ctx, "a@x.com")
	if !found || acc.UID != "a" {
		t.Fatalf("account lookup: %+v found=%v", acc, found)
	}
}
