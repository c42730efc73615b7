package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// BucketStore reads aligned time buckets and rebuilds them from raw venue data.
type BucketStore interface {
	ListRange(ctx context.Context, opts ListOpts) ([]TimeBucket, error)
	// Merge rebuilds the bucket table from raw swaps and klines and returns
	// the number of buckets written.
	Merge(ctx context.Context, width time.Duration, poolAddress string, symbol string) (int64, error)
}

// SwapStore reads raw DEX swaps in timestamp order.
type SwapStore interface {
	ListRange(ctx context.Context, opts ListOpts) ([]SwapEvent, error)
}

// SignalStore persists detected signals.
type SignalStore interface {
	// Replace atomically swaps the stored signal set for signals.
	Replace(ctx context.Context, signals []Signal) error
	ListRange(ctx context.Context, opts ListOpts) ([]Signal, error)
	Count(ctx context.Context) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
