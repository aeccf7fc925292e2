package notify

import (
	"context"

	"despesas/internal/core"
	"despesas/internal/log"
	"despesas/internal/store"
)

// Publisher is the part of the client the store decorator needs.
type Publisher interface {
	PublishChange(ctx context.Context, uid string) error
}

// publishingStore wraps a store and announces every successful write on the
// change exchange so other instances can refresh. Publish failures are
// logged, never surfaced: the local write already happened and the circuit
// breaker covers broker outages.
type publishingStore struct {
	store.Store
	pub    Publisher
	logger *log.Logger
}

// WrapStore decorates st so successful writes publish a change message.
func WrapStore(st store.Store, pub Publisher, logger *log.Logger) store.Store {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentNotify)
	}
	return &publishingStore{Store: st, pub: pub, logger: logger}
}

func (p *publishingStore) announce(ctx context.Context, uid string) {
	if err := p.pub.PublishChange(ctx, uid); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish change message",
			log.FieldUID, uid, log.FieldError, err)
	}
}

func (p *publishingStore) CreateExpense(ctx context.Context, uid string, e core.Expense) (string, error) {
	id, err := p.Store.CreateExpense(ctx, uid, e)
	if err == nil {
		p.announce(ctx, uid)
	}
	return id, err
}

func (p *publishingStore) ReplaceExpense(ctx context.Context, uid string, e core.Expense) error {
	err := p.Store.ReplaceExpense(ctx, uid, e)
	if err == nil {
		p.announce(ctx, uid)
	}
	return err
}

func (p *publishingStore) SetPaidMonths(ctx context.Context, uid, id string, months []core.MonthKey) error {
	err := p.Store.SetPaidMonths(ctx, uid, id, months)
	if err == nil {
		p.announce(ctx, uid)
	}
	return err
}

func (p *publishingStore) DeleteExpense(ctx context.Context, uid, id string) error {
	err := p.Store.DeleteExpense(ctx, uid, id)
	if err == nil {
		p.announce(ctx, uid)
	}
	return err
}

func (p *publishingStore) CreateSettings(ctx context.Context, uid string, s core.Settings) error {
	err := p.Store.CreateSettings(ctx, uid, s)
	if err == nil {
		p.announce(ctx, uid)
	}
	return err
}

func (p *publishingStore) MergeBudgets(ctx context.Context, uid string, budgets core.BudgetMap) error {
	err := p.Store.MergeBudgets(ctx, uid, budgets)
	if err == nil {
		p.announce(ctx, uid)
	}
	return err
}

func (p *publishingStore) MergeCategories(ctx context.Context, uid string, categories []string) error {
	err := p.Store.MergeCategories(ctx, uid, categories)
	if err == nil {
		p.announce(ctx, uid)
	}
	return err
}
