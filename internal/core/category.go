package core

import (
	"sort"
	"strings"
)

// User-facing guard messages, verbatim from the product.
const (
	MsgProtectedCategory = "Não é possível excluir categorias padrão."
	MsgCategoryInUse     = "Categoria em uso por uma despesa. Não pode ser excluída."
	MsgCategoryDeleted   = "Categoria excluída com sucesso."
)

// CategoryResult is the outcome of a category deletion attempt. Failures are
// expected and carried as data so the caller can surface the message without
// special-casing error types.
type CategoryResult struct {
	OK      bool   `json:"success"`
	Message string `json:"message"`
}

// AddCategory inserts name into the set if it is non-empty after trimming
// and no existing category matches case-insensitively. The returned set is
// sorted (ordinal, locale-independent). The boolean reports whether anything
// was added; the input slice is never mutated.
func AddCategory(categories []string, name string) ([]string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return categories, false
	}
	for _, c := range categories {
		if strings.EqualFold(c, name) {
			return categories, false
		}
	}
	out := make([]string, 0, len(categories)+1)
	out = append(out, categories...)
	out = append(out, name)
	sort.Strings(out)
	return out, true
}

// IsDefaultCategory reports whether name matches one of the fixed defaults,
// case-insensitively.
func IsDefaultCategory(name string) bool {
	for _, c := range DefaultCategories {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// CategoryInUse reports whether any expense references name,
// case-insensitively. There is no referential constraint in the store; this
// query at deletion time is the only integrity check.
func CategoryInUse(expenses []Expense, name string) bool {
	for _, e := range expenses {
		if strings.EqualFold(e.Category, name) {
			return true
		}
	}
	return false
}

// DeleteCategory removes name from the set unless it is a default category
// or still referenced by an expense. On success the second return value is
// the updated set; on failure the original set comes back unchanged.
func DeleteCategory(categories []string, expenses []Expense, name string) (CategoryResult, []string) {
	if IsDefaultCategory(name) {
		return CategoryResult{OK: false, Message: MsgProtectedCategory}, categories
	}
	if CategoryInUse(expenses, name) {
		return CategoryResult{OK: false, Message: MsgCategoryInUse}, categories
	}
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if strings.EqualFold(c, name) {
			continue
		}
		out = append(out, c)
	}
	return CategoryResult{OK: true, Message: MsgCategoryDeleted}, out
}
