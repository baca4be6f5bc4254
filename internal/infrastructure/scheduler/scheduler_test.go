package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingExecutor struct {
	mu       sync.Mutex
	calls    []JobKind
	failures map[JobKind]int
}

func (e *recordingExecutor) Execute(_ context.Context, job *Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, job.Kind)
	if e.failures[job.Kind] > 0 {
		e.failures[job.Kind]--
		return errors.New("boom")
	}
	return nil
}

func (e *recordingExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func testConfig() SchedulerConfig {
	cfg := DefaultSchedulerConfig()
	cfg.RetryDelay = 10 * time.Millisecond
	cfg.RetryAttempts = 2
	cfg.Kinds = []JobKind{JobKindReconcile, JobKindCreditSweep}
	return cfg
}

func TestJobLifecycle(t *testing.T) {
	job := NewJob(uuid.New(), JobKindReconcile, 1)
	assert.Equal(t, JobStatusPending, job.Status)

	job.Start()
	require.NotNil(t, job.StartedAt)
	job.Fail("boom")
	assert.True(t, job.ShouldRetry())

	job.ScheduleRetry(time.Second)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	require.NotNil(t, job.NextRetryAt)

	job.Start()
	job.Fail("boom")
	assert.False(t, job.ShouldRetry())

	job.Start()
	job.Complete()
	assert.Equal(t, JobStatusSuccess, job.Status)
	assert.Empty(t, job.Error)
}

func TestScheduler_RunsEveryKind(t *testing.T) {
	exec := &recordingExecutor{}
	s := NewScheduler(testConfig(), exec, zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.ScheduleTenant(uuid.New()))
	require.Eventually(t, func() bool { return s.Stats().Succeeded == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	assert.ElementsMatch(t, []JobKind{JobKindReconcile, JobKindCreditSweep}, exec.calls)
}

func TestScheduler_RetriesFailedJobs(t *testing.T) {
	exec := &recordingExecutor{failures: map[JobKind]int{JobKindReconcile: 1, JobKindCreditSweep: 5}}
	s := NewScheduler(testConfig(), exec, zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	require.NoError(t, s.ScheduleTenant(uuid.New()))
	require.Eventually(t, func() bool {
		st := s.Stats()
		return st.Succeeded == 1 && st.Failed == 1
	}, 2*time.Second, 5*time.Millisecond)

	stats := s.Stats()
	assert.Equal(t, int64(3), stats.Retried, "one retry for reconcile, two for the sweep")
	assert.Equal(t, 5, exec.count())
}

func TestScheduler_SubmitRequiresRunning(t *testing.T) {
	s := NewScheduler(testConfig(), &recordingExecutor{}, nil)
	assert.ErrorIs(t, s.SubmitJob(NewJob(uuid.New(), JobKindReconcile, 0)), ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.ErrorIs(t, s.ScheduleTenant(uuid.New()), ErrSchedulerNotRunning)
}

func TestScheduler_QueueFull(t *testing.T) {
	block := make(chan struct{})
	exec := JobExecutorFunc(func(ctx context.Context, _ *Job) error {
		<-block
		return nil
	})
	cfg := testConfig()
	cfg.MaxConcurrentJobs = 1
	cfg.QueueSize = 1
	s := NewScheduler(cfg, exec, nil)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.SubmitJob(NewJob(uuid.New(), JobKindReconcile, 0)))
	require.Eventually(t, func() bool { return len(s.jobs) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, s.SubmitJob(NewJob(uuid.New(), JobKindReconcile, 0)))
	assert.ErrorIs(t, s.SubmitJob(NewJob(uuid.New(), JobKindReconcile, 0)), ErrJobQueueFull)

	close(block)
	require.NoError(t, s.Stop(context.Background()))
}
