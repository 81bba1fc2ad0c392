package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThinhVo0/BT4-CNPMM/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSyncer struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (f *fakeSyncer) SyncAll(ctx context.Context) (*domain.SyncReport, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return &domain.SyncReport{}, ctx.Err()
		}
	}
	if f.err != nil {
		return &domain.SyncReport{Total: 3}, f.err
	}
	return &domain.SyncReport{Synced: 3, Total: 3}, nil
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	require.Eventually(t, func() bool { return !s.Running() }, 2*time.Second, 5*time.Millisecond)
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("every tuesday", &fakeSyncer{}, discardLogger(), 0)
	assert.ErrorContains(t, err, "schedule reindex")
}

func TestTrigger_RecordsLastRun(t *testing.T) {
	syncer := &fakeSyncer{}
	s, err := New("", syncer, discardLogger(), time.Minute)
	require.NoError(t, err)

	_, ok := s.Last()
	assert.False(t, ok)

	require.True(t, s.Trigger("admin"))
	waitIdle(t, s)

	run, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "admin", run.Trigger)
	assert.Equal(t, &domain.SyncReport{Synced: 3, Total: 3}, run.Report)
	assert.Empty(t, run.Error)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestTrigger_SkipsWhileRunning(t *testing.T) {
	syncer := &fakeSyncer{release: make(chan struct{})}
	s, err := New("", syncer, discardLogger(), 0)
	require.NoError(t, err)

	require.True(t, s.Trigger("admin"))
	assert.False(t, s.Trigger("schedule"))
	assert.True(t, s.Running())

	close(syncer.release)
	waitIdle(t, s)
	assert.Equal(t, int32(1), syncer.calls.Load())

	assert.True(t, s.Trigger("admin"))
	waitIdle(t, s)
	assert.Equal(t, int32(2), syncer.calls.Load())
}

func TestTrigger_RecordsFailure(t *testing.T) {
	s, err := New("", &fakeSyncer{err: errors.New("engine down")}, discardLogger(), 0)
	require.NoError(t, err)

	s.Trigger("admin")
	waitIdle(t, s)

	run, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "engine down", run.Error)
	assert.Equal(t, 3, run.Report.Total)
}

func TestTrigger_Timeout(t *testing.T) {
	syncer := &fakeSyncer{release: make(chan struct{})}
	s, err := New("", syncer, discardLogger(), 20*time.Millisecond)
	require.NoError(t, err)

	s.Trigger("admin")
	waitIdle(t, s)

	run, _ := s.Last()
	assert.Contains(t, run.Error, "deadline exceeded")
}

func TestSchedule_Fires(t *testing.T) {
	syncer := &fakeSyncer{}
	s, err := New("@every 1s", syncer, discardLogger(), 0)
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return syncer.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestStop_WaitsForRun(t *testing.T) {
	syncer := &fakeSyncer{release: make(chan struct{})}
	s, err := New("", syncer, discardLogger(), 0)
	require.NoError(t, err)
	s.Start()
	s.Trigger("admin")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)

	close(syncer.release)
	require.NoError(t, s.Stop(context.Background()))
}
