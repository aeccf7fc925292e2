// Package backend selects and constructs the configured store adapter.
package backend

import (
	"despesas/internal/identity"
	"despesas/internal/store"
)

// Type names a store adapter.
type Type string

const (
	MemoryBackend Type = "memory"
	SQLiteBackend Type = "sqlite"
	MongoBackend  Type = "mongo"
)

func (t Type) String() string { return string(t) }

func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, MongoBackend:
		return true
	default:
		return false
	}
}

// Types returns every valid backend type.
func Types() []Type {
	return []Type{MemoryBackend, SQLiteBackend, MongoBackend}
}

// Result bundles everything an adapter provides: the document store, the
// account storage for the identity service, and resource cleanup.
type Result struct {
	Store    store.Store
	Accounts identity.Accounts
	Cleanup  store.CleanupFunc
}
