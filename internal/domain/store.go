package domain

import (
	"context"
	"io"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// LedgerStore archives resolved ledger entries. Implementations must be
// idempotent under replay: re-archiving an entry with a bet id that already
// exists is a no-op, mirroring the ledger's own replay safety.
type LedgerStore interface {
	InsertBatch(ctx context.Context, runID string, entries []LedgerEntry) error
	ListByRun(ctx context.Context, runID string, opts ListOpts) ([]LedgerEntry, error)
	ListByCategory(ctx context.Context, runID, category string, opts ListOpts) ([]LedgerEntry, error)
}

// RunStore persists completed simulation run summaries.
type RunStore interface {
	Insert(ctx context.Context, run RunSummary) error
	GetByID(ctx context.Context, runID string) (RunSummary, error)
	ListRecent(ctx context.Context, limit int) ([]RunSummary, error)
}

// TierCache persists the tier table between runs so a new simulation can
// seed its risk parameters from the previous run's accumulated history.
// Get returns ErrNotFound when no table has been saved.
type TierCache interface {
	Set(ctx context.Context, key string, table TierTable) error
	Get(ctx context.Context, key string) (TierTable, error)
	Invalidate(ctx context.Context, key string) error
}

// BlobWriter uploads run artifacts (ledger exports, metrics snapshots) to an
// object store.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
