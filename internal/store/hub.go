package store

import (
	"sync"

	"despesas/internal/core"
)

// Hub tracks watch subscriptions per user id. Database-backed adapters embed
// one and call the Notify methods after each confirmed write; the memory
// adapter keeps its own bookkeeping because it must snapshot under the same
// lock that guards its data.
type Hub struct {
	mu       sync.Mutex
	nextID   int
	expenses map[string]map[int]func([]core.Expense)
	settings map[string]map[int]func(core.Settings)
}

func NewHub() *Hub {
	return &Hub{
		expenses: make(map[string]map[int]func([]core.Expense)),
		settings: make(map[string]map[int]func(core.Settings)),
	}
}

// SubscribeExpenses registers the callback for future notifications. The
// caller is responsible for the initial snapshot delivery.
func (h *Hub) SubscribeExpenses(uid string, fn func([]core.Expense)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.expenses[uid] == nil {
		h.expenses[uid] = make(map[int]func([]core.Expense))
	}
	h.expenses[uid][id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.expenses[uid], id)
		h.mu.Unlock()
	}
}

func (h *Hub) SubscribeSettings(uid string, fn func(core.Settings)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.settings[uid] == nil {
		h.settings[uid] = make(map[int]func(core.Settings))
	}
	h.settings[uid][id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.settings[uid], id)
		h.mu.Unlock()
	}
}

// NotifyExpenses delivers the snapshot to every expense watcher of uid.
// Callbacks run outside the hub lock.
func (h *Hub) NotifyExpenses(uid string, snap []core.Expense) {
	h.mu.Lock()
	fns := make([]func([]core.Expense), 0, len(h.expenses[uid]))
	for _, fn := range h.expenses[uid] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (h *Hub) NotifySettings(uid string, snap core.Settings) {
	h.mu.Lock()
	fns := make([]func(core.Settings), 0, len(h.settings[uid]))
	for _, fn := range h.settings[uid] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
