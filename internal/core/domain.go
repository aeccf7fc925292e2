package core

import (
	"errors"
	"strings"
)

// DefaultCategories is the fixed set every new user starts with. The labels
// are data, not logic, and stay in Portuguese as the product ships them.
var DefaultCategories = []string{
	"Moradia",
	"Transporte",
	"Alimentação",
	"Saúde",
	"Educação",
	"Lazer",
	"Contas Fixas",
	"Investimentos",
	"Outros",
}

// DefaultMonthlyBudget applies to any month without an explicit budget entry.
var DefaultMonthlyBudget = Money{Cents: 500_000} // 5000 currency units

var (
	ErrEmptyName         = errors.New("empty expense name")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyCategory     = errors.New("empty category")
	ErrInvalidDueDay     = errors.New("invalid due day")
	ErrInvalidMonthRange = errors.New("start month after end month")
)

// Expense is one budget line item. It is active for every month in the
// inclusive range [StartMonth, EndMonth] and carries the set of months it
// has been marked paid for. PaidMonths may contain keys outside the active
// range; nothing cleans those up retroactively.
type Expense struct {
	ID         string     `json:"id" bson:"_id,omitempty"`
	Name       string     `json:"name" bson:"name"`
	Amount     Money      `json:"amount" bson:"amount"`
	Category   string     `json:"category" bson:"category"`
	DueDay     int        `json:"dueDay" bson:"dueDay"`
	StartMonth MonthKey   `json:"startMonth" bson:"startMonth"`
	EndMonth   MonthKey   `json:"endMonth" bson:"endMonth"`
	PaidMonths []MonthKey `json:"paidMonths" bson:"paidMonths"`
}

// Validate checks the fields a caller controls. The due day is a display
// hint and is not checked against the actual day count of any month.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if e.DueDay < 1 || e.DueDay > 31 {
		return ErrInvalidDueDay
	}
	if _, err := ParseMonthKey(string(e.StartMonth)); err != nil {
		return err
	}
	if _, err := ParseMonthKey(string(e.EndMonth)); err != nil {
		return err
	}
	if e.EndMonth.Before(e.StartMonth) {
		return ErrInvalidMonthRange
	}
	return nil
}

// ActiveIn reports whether the expense's range covers the given month.
func (e Expense) ActiveIn(month MonthKey) bool {
	return e.StartMonth <= month && month <= e.EndMonth
}

// PaidIn reports whether the expense was marked paid for the given month.
func (e Expense) PaidIn(month MonthKey) bool {
	for _, m := range e.PaidMonths {
		if m == month {
			return true
		}
	}
	return false
}

// TogglePaid returns the paid set with month symmetrically toggled: removed
// if present, appended if absent. Applying it twice restores the original
// membership. The input is never mutated.
func TogglePaid(paid []MonthKey, month MonthKey) []MonthKey {
	out := make([]MonthKey, 0, len(paid)+1)
	found := false
	for _, m := range paid {
		if m == month {
			found = true
			continue
		}
		out = append(out, m)
	}
	if !found {
		out = append(out, month)
	}
	return out
}

// BudgetMap maps a month key to its explicit budget. Absent months fall back
// to DefaultMonthlyBudget.
type BudgetMap map[MonthKey]Money

// Settings is the per-user settings document: explicit budgets plus the
// category set (defaults and user additions).
type Settings struct {
	Budgets    BudgetMap `json:"budgets" bson:"budgets"`
	Categories []string  `json:"categories" bson:"categories"`
}

// NewSettings returns the settings a fresh user starts with.
func NewSettings() Settings {
	return Settings{
		Budgets:    BudgetMap{},
		Categories: append([]string(nil), DefaultCategories...),
	}
}
