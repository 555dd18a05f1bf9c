package services

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the periodic jobs: savings contributions and the
// pending-transaction reconciliation sweep. Panics in a job are
// recovered so one bad run never kills the schedule.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(savingsSchedule, reconcileSchedule string, savings *SavingsService, reconciler *Reconciler) (*Scheduler, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := c.AddFunc(savingsSchedule, func() {
		savings.RunContributions(context.Background())
	}); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc(reconcileSchedule, func() {
		reconciler.Run(context.Background())
	}); err != nil {
		return nil, err
	}

	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started")
}

// Stop halts the schedule and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("scheduler stopped")
}
