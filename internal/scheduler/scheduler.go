package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Scheduler runs the enforcement pipeline on a fixed interval. Each tick is
// an independent run; nothing persists between them.
type Scheduler struct {
	sched  gocron.Scheduler
	logger *zap.Logger
}

// New creates a scheduler that invokes run every interval, starting with an
// immediate first run.
func New(logger *zap.Logger, interval time.Duration, ctx context.Context, run func(context.Context)) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			run(ctx)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.Shutdown()
		return nil, err
	}

	logger.Info("Enforcement schedule configured",
		zap.Duration("interval", interval))

	return &Scheduler{sched: s, logger: logger}, nil
}

// Start begins executing scheduled runs
func (s *Scheduler) Start() {
	s.sched.Start()
}

// Shutdown stops the scheduler and waits for a running job to finish
func (s *Scheduler) Shutdown() error {
	s.logger.Info("Stopping scheduler")
	return s.sched.Shutdown()
}
