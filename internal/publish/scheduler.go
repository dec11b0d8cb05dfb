package publish

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler commits the log on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	publisher *Publisher
	spec      string
	push      bool
	logger    *logrus.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScheduler validates spec (standard five-field cron or a descriptor such
// as "@every 1h") and returns a stopped Scheduler.
func NewScheduler(p *Publisher, spec string, push bool, logger *logrus.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("commit schedule %q: %w", spec, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		publisher: p,
		spec:      spec,
		push:      push,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start registers the commit job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.Run); err != nil {
		return fmt.Errorf("schedule commit: %w", err)
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.spec).Info("Auto-commit scheduler started")
	return nil
}

// Run performs one scheduled commit.
func (s *Scheduler) Run() {
	res := s.publisher.Commit(s.ctx, "", "", s.push)
	log := s.logger.WithField("output", res.Output)
	if res.OK {
		log.Info("Scheduled commit finished")
	} else {
		log.Warn("Scheduled commit failed")
	}
}

// Stop cancels any running commit and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
