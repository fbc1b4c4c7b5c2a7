package storage

import (
	"context"
	"time"

	"pump-signals/internal/domain"
)

// SignalStore provides durable keyed access to signals. It is the single
// source of truth and sole mutation point for signal state: every
// read-modify-write sequence runs under the store's serialization (a write
// lock in memory, a row-locking transaction in Postgres), so concurrent
// batches cannot lose updates.
type SignalStore interface {
	// Save upserts a signal by id. Saving the same id twice replaces the
	// stored record (idempotent write).
	Save(ctx context.Context, s *domain.Signal) error

	// GetByID retrieves a signal by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Signal, error)

	// GetByToken retrieves all signals for a subject token, ordered by
	// signal_time DESC (most recent first).
	GetByToken(ctx context.Context, token string) ([]*domain.Signal, error)

	// GetByStatus retrieves up to limit signals in the given status,
	// ordered by signal_time ASC (oldest first, so expiry sweeps see the
	// stalest signals). limit <= 0 means no limit.
	GetByStatus(ctx context.Context, status domain.SignalStatus, limit int) ([]*domain.Signal, error)

	// GetRecent retrieves up to limit signals with signal_time >= since,
	// ordered by signal_time DESC. limit <= 0 means no limit.
	GetRecent(ctx context.Context, since time.Time, limit int) ([]*domain.Signal, error)

	// Update applies fn to the stored signal under the store's write
	// serialization and persists the result. fn returning an error aborts
	// the update without persisting. Returns ErrNotFound if id not exists.
	Update(ctx context.Context, id string, fn func(*domain.Signal) error) error

	// UpdateLatestPending applies fn to the single most-recently-created
	// pending signal for token (signal_time DESC, newest wins) and persists
	// the result. Other pending signals for the token are left untouched.
	// Returns ErrNotFound when the token has no pending signal.
	UpdateLatestPending(ctx context.Context, token string, fn func(*domain.Signal) error) (*domain.Signal, error)

	// UpdateAllPending applies fn to every pending signal for token and
	// persists each result. Returns the updated signals; an empty slice when
	// the token has none pending.
	UpdateAllPending(ctx context.Context, token string, fn func(*domain.Signal) error) ([]*domain.Signal, error)

	// Stats returns counts by status and the PnL summary over terminal
	// migrated signals.
	Stats(ctx context.Context) (*domain.SignalStats, error)
}
