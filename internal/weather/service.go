package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/sg-weather/internal/log"
)

// DefaultCycleTimeout bounds a whole update cycle.
const DefaultCycleTimeout = 10 * time.Second

// Service orchestrates dataset fetching and publishes snapshots to the store.
type Service struct {
	store    Store
	provider Provider
	features Features
	timeout  time.Duration
	clock    Clock

	running atomic.Bool
}

// NewService creates a new Service. A zero timeout falls back to
// DefaultCycleTimeout and a nil clock to time.Now.
func NewService(store Store, provider Provider, features Features, timeout time.Duration, clock Clock) *Service {
	if timeout <= 0 {
		timeout = DefaultCycleTimeout
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:    store,
		provider: provider,
		features: features,
		timeout:  timeout,
		clock:    clock,
	}
}

type fetchResult struct {
	kind    DatasetKind
	dataset Dataset
	err     error
}

// Refresh runs one update cycle: every required dataset is fetched
// concurrently, the successful ones are assembled into a Snapshot and the
// Snapshot is saved. When nothing succeeds, or the cycle deadline passes,
// ErrUpdateFailed is returned and the previously stored Snapshot is left in
// place. A Refresh started while another is running returns
// ErrCycleInProgress immediately.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Snapshot{}, ErrCycleInProgress
	}
	defer s.running.Store(false)

	kinds := s.features.RequiredDatasets()
	if len(kinds) == 0 {
		return Snapshot{}, fmt.Errorf("%w: no datasets required by configuration", ErrUpdateFailed)
	}

	queryTime := InSGT(s.clock()).Truncate(time.Second)
	snapshot := Snapshot{
		ID:        uuid.NewString(),
		QueryTime: queryTime,
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log.Debugw("update cycle started", "cycle", snapshot.ID, "datasets", kinds)

	cycle := s.provider.NewCycle(queryTime)
	results := make(chan fetchResult, len(kinds))

	var wg sync.WaitGroup
	for _, kind := range kinds {
		wg.Add(1)
		go func(kind DatasetKind) {
			defer wg.Done()
			d, err := s.fetchOne(ctx, cycle, kind)
			results <- fetchResult{kind: kind, dataset: d, err: err}
		}(kind)
	}

	pending := len(kinds)
	deadlineHit := false
	for pending > 0 && !deadlineHit {
		select {
		case r := <-results:
			pending--
			s.collect(&snapshot, r)
		case <-ctx.Done():
			deadlineHit = true
		}
	}

	if deadlineHit {
		// Fetches still running observe the cancelled context and finish
		// into the buffered channel; nobody waits on them.
		go wg.Wait()
		log.Warnw("update cycle deadline exceeded",
			"cycle", snapshot.ID,
			"completed", len(snapshot.Datasets()),
			"outstanding", pending,
			"timeout", s.timeout,
		)
		return Snapshot{}, fmt.Errorf("%w: cycle deadline of %s exceeded with %d datasets outstanding", ErrUpdateFailed, s.timeout, pending)
	}

	if len(snapshot.Datasets()) == 0 {
		log.Warnw("update cycle produced no datasets; keeping last published snapshot", "cycle", snapshot.ID)
		return Snapshot{}, fmt.Errorf("%w: no dataset could be fetched", ErrUpdateFailed)
	}

	s.store.SaveSnapshot(snapshot)
	log.Infow("update cycle published",
		"cycle", snapshot.ID,
		"query_time", snapshot.QueryTime.Format(time.RFC3339),
		"datasets", len(snapshot.Datasets()),
		"required", len(kinds),
	)
	return snapshot, nil
}

// fetchOne isolates a single dataset fetch so that a panic in one
// extraction cannot take down the cycle.
func (s *Service) fetchOne(ctx context.Context, cycle Cycle, kind DatasetKind) (d Dataset, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s fetch panicked: %v", ErrStructure, kind, r)
		}
	}()
	return cycle.Fetch(ctx, kind)
}

func (s *Service) collect(snapshot *Snapshot, r fetchResult) {
	if r.err != nil {
		log.Warnw("dataset unavailable this cycle", "dataset", r.kind, "reason", reason(r.err))
		log.Debugw("dataset fetch error", "dataset", r.kind, "cycle", snapshot.ID, "error", r.err)
		return
	}
	if r.dataset == nil || !snapshot.Set(r.dataset) {
		log.Warnw("dataset result discarded", "dataset", r.kind)
		return
	}
	log.Debugw("dataset fetched", "dataset", r.kind, "source", r.dataset.Provenance(), "timestamp", r.dataset.ObservedAt())
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrAggregation):
		return "aggregation"
	case errors.Is(err, ErrStructure):
		return "structure"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrTransport):
		return "transport"
	case StatusCode(err) != 0:
		return fmt.Sprintf("http %d", StatusCode(err))
	default:
		return "other"
	}
}

// GetLatest returns the last published snapshot.
func (s *Service) GetLatest() (Snapshot, error) {
	return s.store.GetLatest()
}

// GetRange returns recent snapshots whose query time falls within [from, to].
func (s *Service) GetRange(from, to time.Time) ([]Snapshot, error) {
	return s.store.GetRange(from, to)
}

// Features returns the configured feature set.
func (s *Service) Features() Features {
	return s.features
}
