package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counting job" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(nil)
	job := &countingJob{name: "count"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	err := s.Register(job, NewIntervalSchedule(time.Minute))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "other"}, nil), ErrNilSchedule)
}

func TestScheduler_ListJobs(t *testing.T) {
	s := NewScheduler(nil)
	require.NoError(t, s.Register(&countingJob{name: "count"}, NewIntervalSchedule(time.Hour)))

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "count", jobs[0].Name)
	assert.True(t, jobs[0].Enabled)
	assert.Equal(t, "@every 1h0m0s", jobs[0].Schedule)
	assert.False(t, jobs[0].NextRun.IsZero())
}

func TestScheduler_EnableDisable(t *testing.T) {
	s := NewScheduler(nil)
	require.NoError(t, s.Register(&countingJob{name: "count"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.DisableJob("count"))
	assert.False(t, s.ListJobs()[0].Enabled)

	require.NoError(t, s.EnableJob("count"))
	assert.True(t, s.ListJobs()[0].Enabled)

	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(nil)
	job := &countingJob{name: "count"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "count")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(1), job.runs.Load())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunNowReportsFailure(t *testing.T) {
	s := NewScheduler(nil)
	jobErr := errors.New("boom")
	job := &countingJob{name: "failing", err: jobErr}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "failing")
	assert.ErrorIs(t, err, jobErr)
	assert.False(t, result.Success)

	last := s.ListJobs()[0].LastResult
	require.NotNil(t, last)
	assert.Equal(t, "failing", last.JobName)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(nil)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_RunsDueJob(t *testing.T) {
	s := NewScheduler(nil)
	job := &countingJob{name: "due"}

	// Interval short enough for the 1s loop tick to pick it up.
	require.NoError(t, s.Register(job, NewIntervalSchedule(10*time.Millisecond)))
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	assert.Eventually(t, func() bool {
		return job.runs.Load() >= 1
	}, 5*time.Second, 50*time.Millisecond)
}
