// Package export writes per-user monthly rollups to a Google Sheet so a
// household can keep a history outside the app.
package export

import (
	"context"
	"fmt"

	"despesas/internal/core"
	"despesas/internal/log"
	"despesas/internal/store"
)

// RowAppender is the part of the sheets client the exporter needs.
type RowAppender interface {
	AppendRows(ctx context.Context, rows [][]any) error
}

type Exporter struct {
	st     store.Store
	sheet  RowAppender
	logger *log.Logger
}

func NewExporter(st store.Store, sheet RowAppender, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentExport)
	}
	return &Exporter{st: st, sheet: sheet, logger: logger}
}

// ExportMonth appends one rollup row per known user for the given month.
// Users that fail are logged and skipped so one bad account does not block
// the rest of the run.
func (e *Exporter) ExportMonth(ctx context.Context, month core.MonthKey) error {
	uids, err := e.st.Users(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	rows := make([][]any, 0, len(uids))
	failed := 0
	for _, uid := range uids {
		row, err := e.rollupRow(ctx, uid, month)
		if err != nil {
			failed++
			e.logger.ErrorContext(ctx, "Failed to build rollup row",
				log.FieldUID, uid, log.FieldMonth, month, log.FieldError, err)
			continue
		}
		rows = append(rows, row)
	}

	if err := e.sheet.AppendRows(ctx, rows); err != nil {
		return fmt.Errorf("append rollup rows: %w", err)
	}

	e.logger.InfoContext(ctx, "Monthly rollup exported",
		log.FieldMonth, month, "users", len(rows), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("export incomplete: %d of %d users failed", failed, len(uids))
	}
	return nil
}

func (e *Exporter) rollupRow(ctx context.Context, uid string, month core.MonthKey) ([]any, error) {
	expenses, err := e.st.ListExpenses(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	settings, found, err := e.st.GetSettings(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if !found {
		settings = core.NewSettings()
	}

	active := core.ActiveIn(expenses, month)
	planned := core.TotalPlanned(active)
	paid := core.TotalPaid(active, month)
	budget := core.EffectiveBudget(settings.Budgets, month)
	summary := core.MonthSummary{Planned: planned, Budget: budget}

	return []any{
		month.String(),
		uid,
		planned.Units(),
		paid.Units(),
		budget.Units(),
		budget.Sub(planned).Units(),
		string(summary.Status()),
	}, nil
}
