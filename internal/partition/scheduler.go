package partition

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/tally/internal/events"
)

// Scheduler runs the partition maintenance cycle on an interval: ensure
// future periods exist, advance states, retire aged periods.
type Scheduler struct {
	manager   *Manager
	publisher events.Publisher
	interval  time.Duration
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(m *Manager, publisher events.Publisher, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Scheduler{
		manager:   m,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
	}
}

// Start begins periodic maintenance. It runs one cycle immediately, then on
// each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current cycle (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.MaintainOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.MaintainOnce(ctx)
		}
	}
}

// MaintainOnce runs a single maintenance cycle. A failing step is logged and
// the cycle moves on; the next tick retries.
func (s *Scheduler) MaintainOnce(ctx context.Context) {
	now := time.Now().UTC()

	created, err := s.manager.EnsureAhead(ctx, now)
	if err != nil {
		s.logger.Error("partition ensure failed", "err", err)
	}
	for _, p := range created {
		s.publish(ctx, events.TopicPartitionCreated, events.PartitionCreated{Partition: p})
	}

	changes, err := s.manager.Advance(ctx, now)
	if err != nil {
		s.logger.Error("partition advance failed", "err", err)
	}
	for _, c := range changes {
		s.publish(ctx, events.TopicPartitionAdvanced, events.PartitionAdvanced{Partition: c.Partition, From: c.From})
	}

	retired, err := s.manager.Retire(ctx, now)
	if err != nil {
		s.logger.Error("partition retire failed", "err", err)
	}
	for _, r := range retired {
		s.publish(ctx, events.TopicPartitionRetired, events.PartitionRetired{
			Partition:    r.Partition,
			ObjectKey:    r.ObjectKey,
			FactsDropped: r.FactsDropped,
		})
	}

	if len(created)+len(changes)+len(retired) > 0 {
		s.logger.Info("partition maintenance completed",
			"created", len(created), "advanced", len(changes), "retired", len(retired))
	}
}

func (s *Scheduler) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("event publish failed", "topic", topic, "err", err)
	}
}
