// Package scheduler runs the ingestion job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work. It should return promptly once ctx is
// cancelled.
type Job func(ctx context.Context)

// Scheduler fires a Job on a cron spec such as "@every 6h" or "0 */6 * * *".
// A tick that arrives while the previous run is still going is skipped.
type Scheduler struct {
	spec   string
	job    Job
	logger *slog.Logger
}

// New validates spec and creates a scheduler.
func New(spec string, job Job, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{spec: spec, job: job, logger: logger}, nil
}

// Run starts the cron loop, runs the job once right away, and blocks until ctx
// is cancelled. It waits for a running job to finish and returns nil
// (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id, err := c.AddFunc(s.spec, func() { s.job(ctx) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	s.logger.Info("starting scheduler", "schedule", s.spec)
	c.Start()

	// Run through the wrapped job so the first run counts as "still running".
	var first sync.WaitGroup
	first.Add(1)
	go func() {
		defer first.Done()
		c.Entry(id).WrappedJob.Run()
	}()

	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	first.Wait()
	return nil
}

// cronLogger bridges cron's logger to slog. Cron's routine info lines go to
// debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
