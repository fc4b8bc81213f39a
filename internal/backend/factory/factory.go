// Package factory builds the configured backend.Client.
package factory

import (
	"context"
	"fmt"
	"log/slog"

	"society/internal/backend"
	"society/internal/backend/memory"
	"society/internal/storage"
	"society/internal/supabase"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the backend client and its cleanup function
type Result struct {
	Client  backend.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// New creates a new backend factory
func New(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		client backend.Client
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		client, err = storage.Open(storage.DialectSQLite, config.SQLiteDBPath)
	case PostgresBackend:
		client, err = storage.Open(storage.DialectPostgres, config.DatabaseURL)
	case SupabaseBackend:
		client, err = supabase.NewClient(supabase.Config{URL: config.SupabaseURL, Key: config.SupabaseKey})
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		client = memory.NewFromFiles(dataDir)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", config.Type, err)
	}

	if err := client.Ping(ctx); err != nil {
		f.logger.WarnContext(ctx, "Backend not reachable at startup", "backend", config.Type, "error", err)
	}

	f.logger.InfoContext(ctx, "Initialized backend", "backend", config.Type)

	return &Result{Client: client, Cleanup: client.Close}, nil
}
