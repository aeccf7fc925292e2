package http

import (
	"net/http"

	"despesas/internal/core"
	"despesas/internal/log"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load settings")
		return
	}
	writeJSON(w, http.StatusOK, sess.Settings())
}

type budgetRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	month, err := monthKeyPathValue(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "month must be in YYYY-MM form")
		return
	}

	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	sess, err := s.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not save budget")
		return
	}

	if err := sess.SetBudget(r.Context(), month, core.Money{Cents: cents}); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to set budget",
			log.FieldError, err, log.FieldMonth, month)
		writeError(w, http.StatusInternalServerError, "could not save budget")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type categoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not add category")
		return
	}

	if err := sess.AddCategory(r.Context(), req.Name); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to add category",
			log.FieldError, err, log.FieldCategory, req.Name)
		writeError(w, http.StatusInternalServerError, "could not add category")
		return
	}

	writeJSON(w, http.StatusOK, sess.Settings().Categories)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not delete category")
		return
	}

	result, err := sess.DeleteCategory(r.Context(), r.PathValue("name"))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to delete category", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not delete category")
		return
	}

	// Refused deletions answer 200 with the user-facing message; the guard
	// outcome is data, not a transport error.
	writeJSON(w, http.StatusOK, result)
}
