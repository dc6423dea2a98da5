// Package store keeps the run ledger and the directory page cache in SQLite.
package store

import (
	"context"
	"time"

	"github.com/sells-group/roster-cli/internal/model"
)

// Store defines the persistence interface for run history and cached pages.
// It is observability and fetch caching only; dedup never consults it.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, pending int) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Page cache
	GetCachedPage(ctx context.Context, url string) ([]byte, error)
	SetCachedPage(ctx context.Context, url string, content []byte, ttl time.Duration) error
	DeleteExpiredPages(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
