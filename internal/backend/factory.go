package backend

import (
	"context"
	"fmt"
	"log/slog"

	"despesas/internal/config"
	"despesas/internal/store/memory"
	"despesas/internal/store/mongo"
	"despesas/internal/store/sqlite"
)

type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Open constructs the adapter named by cfg.DataBackend.
func (f *Factory) Open(ctx context.Context, cfg *config.Config) (*Result, error) {
	t := Type(cfg.DataBackend)
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.DataBackend)
	}

	switch t {
	case SQLiteBackend:
		return f.openSQLite(cfg)
	case MongoBackend:
		return f.openMongo(ctx, cfg)
	default:
		return f.openMemory()
	}
}

func (f *Factory) openSQLite(cfg *config.Config) (*Result, error) {
	st, err := sqlite.New(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite store: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	return &Result{Store: st, Accounts: st, Cleanup: st.Close}, nil
}

func (f *Factory) openMongo(ctx context.Context, cfg *config.Config) (*Result, error) {
	st, err := mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, fmt.Errorf("initialize mongo store: %w", err)
	}

	f.logger.Info("Initialized MongoDB backend", "database", cfg.MongoDatabase)
	return &Result{
		Store:    st,
		Accounts: st,
		Cleanup:  func() error { return st.Close(context.Background()) },
	}, nil
}

func (f *Factory) openMemory() (*Result, error) {
	st := memory.New()

	f.logger.Info("Initialized memory backend")
	return &Result{Store: st, Accounts: st, Cleanup: nil}, nil
}
