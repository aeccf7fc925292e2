package http

import (
	"errors"
	"net/http"
	"strings"

	"despesas/internal/core"
	"despesas/internal/log"
)

// expenseRequest is the write payload. The amount arrives as a decimal
// string the way a form field would, dot or comma separated.
type expenseRequest struct {
	Name       string `json:"name"`
	Amount     string `json:"amount"`
	Category   string `json:"category"`
	DueDay     int    `json:"dueDay"`
	StartMonth string `json:"startMonth"`
	EndMonth   string `json:"endMonth"`
}

func (req expenseRequest) toExpense(id string) (core.Expense, error) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		ID:         id,
		Name:       strings.TrimSpace(req.Name),
		Amount:     core.Money{Cents: cents},
		Category:   req.Category,
		DueDay:     req.DueDay,
		StartMonth: core.MonthKey(req.StartMonth),
		EndMonth:   core.MonthKey(req.EndMonth),
	}, nil
}

func validationStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrEmptyName):
		return http.StatusUnprocessableEntity, "expense name is required"
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "invalid amount"
	case errors.Is(err, core.ErrEmptyCategory):
		return http.StatusUnprocessableEntity, "category is required"
	case errors.Is(err, core.ErrInvalidDueDay):
		return http.StatusUnprocessableEntity, "due day must be between 1 and 31"
	case errors.Is(err, core.ErrInvalidMonthKey):
		return http.StatusUnprocessableEntity, "months must be in YYYY-MM form"
	case errors.Is(err, core.ErrInvalidMonthRange):
		return http.StatusUnprocessableEntity, "start month must not be after end month"
	default:
		return http.StatusInternalServerError, "could not save expense"
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(r)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to open session", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not load expenses")
		return
	}

	expenses := sess.Expenses()
	if expenses == nil {
		expenses = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := req.toExpense("")
	if err != nil {
		status, msg := validationStatus(err)
		writeError(w, status, msg)
		return
	}

	sess, err := s.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not save expense")
		return
	}

	id, err := sess.AddExpense(r.Context(), e)
	if err != nil {
		status, msg := validationStatus(err)
		writeError(w, status, msg)
		return
	}

	s.logger.InfoContext(r.Context(), "Expense created",
		log.FieldUID, sess.UID(), log.FieldExpenseID, id,
		log.FieldExpenseName, e.Name, log.FieldAmountCents, e.Amount.Cents)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := req.toExpense(id)
	if err != nil {
		status, msg := validationStatus(err)
		writeError(w, status, msg)
		return
	}

	sess, err := s.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not save expense")
		return
	}

	// Paid marks survive edits; the update payload never carries them.
	for _, existing := range sess.Expenses() {
		if existing.ID == id {
			e.PaidMonths = existing.PaidMonths
			break
		}
	}

	if err := sess.UpdateExpense(r.Context(), e); err != nil {
		status, msg := validationStatus(err)
		if status == http.StatusInternalServerError {
			status, msg = http.StatusNotFound, "expense not found"
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete expense")
		return
	}

	if err := sess.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to delete expense", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not delete expense")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type toggleRequest struct {
	Month string `json:"month"`
}

func (s *Server) handleTogglePaid(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	month, err := core.ParseMonthKey(req.Month)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "month must be in YYYY-MM form")
		return
	}

	sess, err := s.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not toggle expense")
		return
	}

	if err := sess.TogglePaid(r.Context(), r.PathValue("id"), month); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to toggle paid mark", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not toggle expense")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
