package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the pruner on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	pruner *Pruner
	logger *slog.Logger
}

// NewScheduler validates the cron expression and prepares the scheduler.
// Start must be called to begin pruning.
func NewScheduler(pruner *Pruner, schedule string) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		pruner: pruner,
		logger: slog.Default().With("component", "retention"),
	}
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.pruner.Prune(ctx); err != nil {
		s.logger.Error("scheduled prune failed", "error", err)
	}
}
