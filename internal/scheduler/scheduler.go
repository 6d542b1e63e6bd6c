// Package scheduler runs the daily collection in-process for deployments
// without an external cron hitting /cron/daily.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"pws-historial/internal/collector"
)

// Scheduler triggers one collection run per day at a fixed UTC time.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *collector.Service
	at        string
}

// New creates a Scheduler that fires daily at the given HH:MM (UTC). An
// empty time disables scheduling entirely.
func New(service *collector.Service, at string) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		at:        at,
	}
}

// Start schedules the daily job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.at == "" {
		slog.Info("scheduler: COLLECT_AT not set; relying on /cron/daily")
		return nil
	}

	_, err := s.scheduler.Every(1).Day().At(s.at).Do(func() {
		slog.Info("scheduler: running daily collection", "at", s.at)

		res, err := s.service.Run(context.Background())
		if err != nil {
			slog.Error("scheduler: daily collection failed", "error", err)
			return
		}
		slog.Info("scheduler: daily collection finished",
			"attempted", res.Attempted,
			"succeeded", res.Succeeded,
			"failed", res.Failed,
		)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
