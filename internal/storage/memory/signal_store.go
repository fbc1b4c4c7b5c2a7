package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pump-signals/internal/domain"
	"pump-signals/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore,
// used in dry-run mode and tests. All mutation closures run under the
// write lock, which serializes read-modify-write sequences.
type SignalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Signal // keyed by signal id
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string]*domain.Signal),
	}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Save upserts a signal by id.
func (s *SignalStore) Save(_ context.Context, sig *domain.Signal) error {
	if sig == nil || sig.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[sig.ID] = sig.Clone()
	return nil
}

// GetByID retrieves a signal by its id. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(_ context.Context, id string) (*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return sig.Clone(), nil
}

// GetByToken retrieves all signals for a token, ordered by signal_time DESC.
func (s *SignalStore) GetByToken(_ context.Context, token string) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.data {
		if sig.SubjectToken == token {
			result = append(result, sig.Clone())
		}
	}
	sortBySignalTimeDesc(result)
	return result, nil
}

// GetByStatus retrieves up to limit signals in status, signal_time ASC.
func (s *SignalStore) GetByStatus(_ context.Context, status domain.SignalStatus, limit int) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.data {
		if sig.Status == status {
			result = append(result, sig.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].SignalTime.Equal(result[j].SignalTime) {
			return result[i].SignalTime.Before(result[j].SignalTime)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetRecent retrieves up to limit signals with signal_time >= since,
// signal_time DESC.
func (s *SignalStore) GetRecent(_ context.Context, since time.Time, limit int) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.data {
		if !sig.SignalTime.Before(since) {
			result = append(result, sig.Clone())
		}
	}
	sortBySignalTimeDesc(result)

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Update applies fn to the stored signal under the write lock.
func (s *SignalStore) Update(_ context.Context, id string, fn func(*domain.Signal) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}

	updated := sig.Clone()
	if err := fn(updated); err != nil {
		return err
	}
	s.data[id] = updated
	return nil
}

// UpdateLatestPending applies fn to the newest pending signal for token.
func (s *SignalStore) UpdateLatestPending(_ context.Context, token string, fn func(*domain.Signal) error) (*domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.latestPendingLocked(token)
	if target == nil {
		return nil, storage.ErrNotFound
	}

	updated := target.Clone()
	if err := fn(updated); err != nil {
		return nil, err
	}
	s.data[updated.ID] = updated
	return updated.Clone(), nil
}

// UpdateAllPending applies fn to every pending signal for token. All
// updates are staged first and committed only if every fn call succeeds,
// matching the Postgres implementation's transaction rollback.
func (s *SignalStore) UpdateAllPending(_ context.Context, token string, fn func(*domain.Signal) error) ([]*domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]*domain.Signal)
	var updated []*domain.Signal
	for id, sig := range s.data {
		if sig.SubjectToken != token || sig.Status != domain.StatusPending {
			continue
		}

		next := sig.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		staged[id] = next
		updated = append(updated, next.Clone())
	}

	for id, next := range staged {
		s.data[id] = next
	}
	sortBySignalTimeDesc(updated)
	return updated, nil
}

// Stats returns counts by status and the migrated-only PnL summary.
func (s *SignalStore) Stats(_ context.Context) (*domain.SignalStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.SignalStats{
		ByStatus: make(map[domain.SignalStatus]int),
	}

	var sum float64
	var minPct, maxPct float64
	for _, sig := range s.data {
		stats.Total++
		stats.ByStatus[sig.Status]++

		if sig.Status != domain.StatusMigrated || sig.Outcome.SimulatedPnLPct == nil {
			continue
		}

		pct := *sig.Outcome.SimulatedPnLPct
		if stats.PnL.Completed == 0 {
			minPct, maxPct = pct, pct
		} else {
			if pct < minPct {
				minPct = pct
			}
			if pct > maxPct {
				maxPct = pct
			}
		}
		stats.PnL.Completed++
		sum += pct
		if pct > 0 {
			stats.PnL.Winners++
		} else {
			stats.PnL.Losers++
		}
	}

	if stats.PnL.Completed > 0 {
		mean := sum / float64(stats.PnL.Completed)
		winRate := float64(stats.PnL.Winners) / float64(stats.PnL.Completed) * 100
		stats.PnL.MeanPct = &mean
		stats.PnL.MinPct = &minPct
		stats.PnL.MaxPct = &maxPct
		stats.PnL.WinRatePct = &winRate
	}
	return stats, nil
}

// latestPendingLocked returns the newest pending signal for token, ties on
// signal_time broken by created_at then id so selection stays deterministic.
func (s *SignalStore) latestPendingLocked(token string) *domain.Signal {
	var target *domain.Signal
	for _, sig := range s.data {
		if sig.SubjectToken != token || sig.Status != domain.StatusPending {
			continue
		}
		if target == nil || newerThan(sig, target) {
			target = sig
		}
	}
	return target
}

func newerThan(a, b *domain.Signal) bool {
	if !a.SignalTime.Equal(b.SignalTime) {
		return a.SignalTime.After(b.SignalTime)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func sortBySignalTimeDesc(signals []*domain.Signal) {
	sort.Slice(signals, func(i, j int) bool {
		if !signals[i].SignalTime.Equal(signals[j].SignalTime) {
			return signals[i].SignalTime.After(signals[j].SignalTime)
		}
		return signals[i].ID < signals[j].ID
	})
}
