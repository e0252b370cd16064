package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/sg-weather/internal/weather"
)

var (
	// ErrNotFound is returned before the first snapshot is published, or when
	// no snapshot falls in a requested range.
	ErrNotFound = errors.New("no weather snapshot available")
)

// MemoryStore keeps the last published snapshot plus a short, bounded
// history of earlier ones. Nothing is persisted.
type MemoryStore struct {
	mu sync.RWMutex

	// oldest first; the last element is the latest snapshot
	snapshots []weather.Snapshot

	maxHistory int
	maxAge     time.Duration
	clock      weather.Clock
}

// NewMemoryStore creates a store holding at most maxHistory snapshots, none
// older than maxAge. maxHistory <= 0 keeps only the latest; maxAge <= 0
// disables age retention.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	if maxHistory <= 0 {
		maxHistory = 1
	}
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      time.Now,
	}
}

// SaveSnapshot publishes snapshot as the latest and enforces retention. The
// latest snapshot is never evicted by age.
func (s *MemoryStore) SaveSnapshot(snapshot weather.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = append(s.snapshots, snapshot)

	if len(s.snapshots) > s.maxHistory {
		over := len(s.snapshots) - s.maxHistory
		s.snapshots = append([]weather.Snapshot(nil), s.snapshots[over:]...)
	}

	if s.maxAge > 0 {
		cutoff := s.clock().Add(-s.maxAge)
		i := 0
		for ; i < len(s.snapshots)-1; i++ {
			if !s.snapshots[i].QueryTime.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			s.snapshots = s.snapshots[i:]
		}
	}
}

// GetLatest returns the last published snapshot.
func (s *MemoryStore) GetLatest() (weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return weather.Snapshot{}, ErrNotFound
	}
	return s.snapshots[len(s.snapshots)-1], nil
}

// GetRange returns retained snapshots with a query time between from and to
// (inclusive), oldest first.
func (s *MemoryStore) GetRange(from, to time.Time) ([]weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.Snapshot
	for _, snap := range s.snapshots {
		if !snap.QueryTime.Before(from) && !snap.QueryTime.After(to) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
