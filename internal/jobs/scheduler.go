// Package jobs runs periodic hygiene work on cron schedules: reaping
// expired sessions and sweeping elapsed rate-limit windows. Neither job is
// needed for correctness; expiry and windows are enforced lazily.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Func is one unit of scheduled work. now is the UTC tick time.
type Func func(ctx context.Context, now time.Time) error

// Scheduler runs named jobs on cron specs ("@every 1h", "*/5 * * * *").
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]Func

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates an idle scheduler.
func NewScheduler() *Scheduler {
	logger := slogLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		jobs: make(map[string]Func),
		ctx:  context.Background(),
	}
}

// Add registers fn under name. An empty spec leaves the job disabled.
func (s *Scheduler) Add(name, spec string, fn Func) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		slog.Info("job disabled", slog.String("job", name))
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", name, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}
	s.jobs[name] = fn

	if _, err := s.cron.AddFunc(spec, func() { _ = s.Run(name) }); err != nil {
		delete(s.jobs, name)
		return fmt.Errorf("job %s: %w", name, err)
	}
	return nil
}

// Run executes a registered job immediately and logs its outcome.
func (s *Scheduler) Run(name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	ctx := s.ctx
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}

	start := time.Now()
	if err := fn(ctx, start.UTC()); err != nil {
		slog.Error("job failed",
			slog.String("job", name),
			slog.Any("error", err),
		)
		return err
	}
	slog.Debug("job finished",
		slog.String("job", name),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// Start begins scheduling. Jobs receive a context derived from ctx that is
// cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-s.cron.Stop().Done()
}

// slogLogger adapts cron's logger to slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
