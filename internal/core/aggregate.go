package core

import (
	"sort"
	"time"
)

// ActiveIn returns the expenses whose range covers month, preserving the
// input order. Pure and O(n); callers re-run it on every query instead of
// maintaining an index, which is fine at household scale.
func ActiveIn(expenses []Expense, month MonthKey) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.ActiveIn(month) {
			out = append(out, e)
		}
	}
	return out
}

// TotalPlanned sums the amounts of the given active set.
func TotalPlanned(active []Expense) Money {
	var total Money
	for _, e := range active {
		total = total.Add(e.Amount)
	}
	return total
}

// TotalPaid sums the amounts of active expenses marked paid for month.
func TotalPaid(active []Expense, month MonthKey) Money {
	var total Money
	for _, e := range active {
		if e.PaidIn(month) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// Remaining is the budget minus what has actually been paid out. Negative
// means overspend against paid cash, not against planned spend.
func Remaining(budget, totalPaid Money) Money {
	return budget.Sub(totalPaid)
}

// EffectiveBudget is the explicit budget for month, or the fixed default
// when no entry exists.
func EffectiveBudget(budgets BudgetMap, month MonthKey) Money {
	if b, ok := budgets[month]; ok {
		return b
	}
	return DefaultMonthlyBudget
}

// MonthSummary is the planned/budget pair behind the calendar strip.
type MonthSummary struct {
	Planned Money `json:"planned"`
	Budget  Money `json:"budget"`
}

// MonthStatus classifies a month for the calendar strip.
type MonthStatus string

const (
	StatusNoActivity   MonthStatus = "none"
	StatusWithinBudget MonthStatus = "within"
	StatusOverBudget   MonthStatus = "over"
)

// Status classifies the summary: no active spend, planned within budget, or
// planned over budget.
func (s MonthSummary) Status() MonthStatus {
	switch {
	case s.Planned.Cents == 0:
		return StatusNoActivity
	case s.Planned.Cents > s.Budget.Cents:
		return StatusOverBudget
	default:
		return StatusWithinBudget
	}
}

// YearSummary computes the summary for all 12 months of year, each month
// independently via ActiveIn + TotalPlanned + EffectiveBudget.
func YearSummary(expenses []Expense, budgets BudgetMap, year int) map[MonthKey]MonthSummary {
	out := make(map[MonthKey]MonthSummary, 12)
	for month := 1; month <= 12; month++ {
		key := NewMonthKey(year, month)
		out[key] = MonthSummary{
			Planned: TotalPlanned(ActiveIn(expenses, key)),
			Budget:  EffectiveBudget(budgets, key),
		}
	}
	return out
}

// WindowEntry is one month of a trailing window, oldest first.
type WindowEntry struct {
	Month   MonthKey `json:"month"`
	Planned Money    `json:"planned"`
	Budget  Money    `json:"budget"`
}

// TrailingWindow returns count months ending at and including the anchor
// month, oldest first. Unlike YearSummary it crosses year boundaries and is
// anchored to a date rather than a calendar year.
func TrailingWindow(expenses []Expense, budgets BudgetMap, anchor time.Time, count int) []WindowEntry {
	if count <= 0 {
		return nil
	}
	anchorKey := MonthKeyOf(anchor)
	out := make([]WindowEntry, 0, count)
	for i := count - 1; i >= 0; i-- {
		key := anchorKey.AddMonths(-i)
		out = append(out, WindowEntry{
			Month:   key,
			Planned: TotalPlanned(ActiveIn(expenses, key)),
			Budget:  EffectiveBudget(budgets, key),
		})
	}
	return out
}

// CategoryAmount is an amount aggregated under one category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// PaidByCategory sums, per category, the active expenses paid in month.
// Categories are returned in sorted order for stable output.
func PaidByCategory(active []Expense, month MonthKey) []CategoryAmount {
	sums := make(map[string]Money)
	for _, e := range active {
		if e.PaidIn(month) {
			sums[e.Category] = sums[e.Category].Add(e.Amount)
		}
	}
	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]CategoryAmount, 0, len(names))
	for _, name := range names {
		out = append(out, CategoryAmount{Name: name, Amount: sums[name]})
	}
	return out
}

// Upcoming returns up to limit active expenses due on or after day and not
// yet paid for month, ordered by due day.
func Upcoming(active []Expense, month MonthKey, day, limit int) []Expense {
	out := make([]Expense, 0, limit)
	for _, e := range active {
		if e.DueDay >= day && !e.PaidIn(month) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDay < out[j].DueDay })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SortByDueDay orders expenses by due day in place, preserving the relative
// order of equal days.
func SortByDueDay(expenses []Expense) {
	sort.SliceStable(expenses, func(i, j int) bool { return expenses[i].DueDay < expenses[j].DueDay })
}
