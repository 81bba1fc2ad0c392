// Package scheduler runs full reindexes on a cron schedule and on demand.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
)

// Syncer performs a full reindex.
type Syncer interface {
	SyncAll(ctx context.Context) (*domain.SyncReport, error)
}

// Scheduler owns the reindex job. At most one reindex runs at a time
// whether it was started by the schedule or by Trigger.
type Scheduler struct {
	cron    *cron.Cron
	syncer  Syncer
	logger  *slog.Logger
	timeout time.Duration

	running atomic.Bool
	wg      sync.WaitGroup

	mu   sync.Mutex
	last *Run
}

// Run describes the most recent reindex.
type Run struct {
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	Trigger    string             `json:"trigger"`
	Report     *domain.SyncReport `json:"report,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// New returns a scheduler. An empty cron schedule disables the periodic job; Trigger
// still works. timeout bounds each run when positive.
func New(schedule string, syncer Syncer, logger *slog.Logger, timeout time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLogger{logger})),
		syncer:  syncer,
		logger:  logger,
		timeout: timeout,
	}
	if schedule != "" {
		if _, err := s.cron.AddFunc(schedule, func() { s.Trigger("schedule") }); err != nil {
			return nil, fmt.Errorf("schedule reindex %q: %w", schedule, err)
		}
	}
	return s, nil
}

// Start begins firing scheduled runs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("reindex scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop halts the schedule and waits for an in-flight run, or until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	<-s.cron.Stop().Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for reindex: %w", ctx.Err())
	}
}

// Trigger starts a reindex in the background. It returns false when one is
// already running.
func (s *Scheduler) Trigger(trigger string) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("reindex already running, skipping", slog.String("trigger", trigger))
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.run(trigger)
	}()
	return true
}

// Running reports whether a reindex is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Last returns the most recent finished run, if any.
func (s *Scheduler) Last() (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Run{}, false
	}
	return *s.last, true
}

func (s *Scheduler) run(trigger string) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	r := Run{StartedAt: time.Now().UTC(), Trigger: trigger}
	s.logger.InfoContext(ctx, "reindex started", slog.String("trigger", trigger))

	report, err := s.syncer.SyncAll(ctx)
	r.FinishedAt = time.Now().UTC()
	r.Report = report
	if err != nil {
		r.Error = err.Error()
		s.logger.ErrorContext(ctx, "reindex failed",
			slog.String("trigger", trigger),
			slog.String("error", err.Error()),
		)
	} else {
		s.logger.InfoContext(ctx, "reindex finished",
			slog.String("trigger", trigger),
			slog.Int("synced", report.Synced),
			slog.Int("total", report.Total),
			slog.Duration("duration", r.FinishedAt.Sub(r.StartedAt)),
		)
	}

	s.mu.Lock()
	s.last = &r
	s.mu.Unlock()
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
