package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/sg-weather/internal/log"
	"github.com/i474232898/sg-weather/internal/radar"
	"github.com/i474232898/sg-weather/internal/weather"
)

// DefaultInterval is the update period when none is configured.
const DefaultInterval = 15 * time.Minute

// Refresher runs one update cycle.
type Refresher interface {
	Refresh(ctx context.Context) (weather.Snapshot, error)
}

// RadarResolver refreshes the rain radar tile.
type RadarResolver interface {
	Resolve(ctx context.Context) (radar.Frame, error)
}

// Publisher receives every published snapshot and radar frame.
type Publisher interface {
	PublishSnapshot(snapshot weather.Snapshot) error
	PublishRadar(frame radar.Frame) error
}

// Scheduler triggers update cycles on a fixed interval. A tick that fires
// while the previous cycle is still running is skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Refresher
	radar     RadarResolver
	publisher Publisher
	interval  time.Duration
}

// New creates a Scheduler. radar and publisher may be nil.
func New(interval time.Duration, service Refresher, radar RadarResolver, publisher Publisher) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(weather.SGT),
		service:   service,
		radar:     radar,
		publisher: publisher,
		interval:  interval,
	}
}

// Start schedules the update job, runs it immediately and starts the
// underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = int(DefaultInterval.Minutes())
	}

	_, err := s.scheduler.Every(minutes).Minutes().SingletonMode().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	log.Infow("scheduler started", "interval_minutes", minutes)
	s.scheduler.StartAsync()
	return nil
}

// RunOnce performs one cycle: refresh the datasets, resolve the radar tile
// and hand both to the publisher. Failures are logged, never returned.
func (s *Scheduler) RunOnce(ctx context.Context) {
	log.Debugw("scheduler: running update cycle")

	snapshot, err := s.service.Refresh(ctx)
	switch {
	case errors.Is(err, weather.ErrCycleInProgress):
		log.Warnw("scheduler: previous cycle still running, skipping tick")
		return
	case err != nil:
		log.Errorw("scheduler: update cycle failed, keeping last snapshot", "error", err)
	case s.publisher != nil:
		if err := s.publisher.PublishSnapshot(snapshot); err != nil {
			log.Warnw("scheduler: publishing snapshot failed", "error", err)
		}
	}

	if s.radar == nil {
		return
	}
	frame, err := s.radar.Resolve(ctx)
	if err != nil {
		log.Warnw("scheduler: radar tile unavailable", "error", err)
		return
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRadar(frame); err != nil {
			log.Warnw("scheduler: publishing radar failed", "error", err)
		}
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
