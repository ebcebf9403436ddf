//go:build integration
// +build integration

package jobqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisQueue(t *testing.T) (*Queue, context.Context) {
	t.Helper()

	queue := NewQueue(newQueueTestClient(t), 1)
	return queue, context.Background()
}

func TestQueue_ScheduleGrantRetry(t *testing.T) {
	queue, ctx := setupRedisQueue(t)

	require.NoError(t, queue.ScheduleGrantRetry(ctx, "discord", "alice@example.com", "5077125051"))

	queueSize, err := queue.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, queueSize)

	stats, err := queue.GetJobStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[JobStatusPending])

	job, err := queue.dequeueJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, JobTypeGrantRetry, job.Type)
	payload, err := GrantRetryJobPayloadFromMap(job.Payload)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", payload.SubjectID)

	stats, err = queue.GetJobStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats[JobStatusPending], "pending is a current count, not a running total")
}

func TestQueue_EnqueueJob_PipelineError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:0",
		DialTimeout:  100 * time.Millisecond,
		ReadTimeout:  100 * time.Millisecond,
		WriteTimeout: 100 * time.Millisecond,
		PoolTimeout:  100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	queue := NewQueue(client, 1)

	job, err := queue.EnqueueJob(context.Background(), JobTypeGrantRetry, map[string]interface{}{"k": "v"})
	require.Error(t, err)
	assert.Nil(t, job)
}

func TestQueue_GetJob_NotFound(t *testing.T) {
	queue, ctx := setupRedisQueue(t)

	_, err := queue.GetJob(ctx, "missing-job-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestQueue_processJob_SuccessRemovesJob(t *testing.T) {
	queue, ctx := setupRedisQueue(t)
	queue.Handle(JobTypeGrantRetry, func(ctx context.Context, job *Job) error { return nil })

	created, err := queue.EnqueueJob(ctx, JobTypeGrantRetry, GrantRetryJobPayload{Grantor: "telegram"}.ToMap())
	require.NoError(t, err)
	job, err := queue.dequeueJob(ctx)
	require.NoError(t, err)

	queue.processJob(ctx, job)

	_, err = queue.GetJob(ctx, created.ID)
	assert.ErrorIs(t, err, redis.Nil)
	processing, err := queue.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, processing)
	stats, err := queue.GetJobStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[JobStatusCompleted])
}

func TestQueue_processJob_FailureSchedulesRetry(t *testing.T) {
	queue, ctx := setupRedisQueue(t)
	queue.SetRetryDelay(20 * time.Millisecond)
	queue.Handle(JobTypeGrantRetry, func(ctx context.Context, job *Job) error {
		return errors.New("rate limited")
	})

	created, err := queue.EnqueueJob(ctx, JobTypeGrantRetry, GrantRetryJobPayload{Grantor: "discord"}.ToMap())
	require.NoError(t, err)
	job, err := queue.dequeueJob(ctx)
	require.NoError(t, err)

	queue.processJob(ctx, job)

	stored, err := queue.GetJob(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRetrying, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)

	assert.Eventually(t, func() bool {
		n, err := queue.GetQueueSize(ctx)
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_processJob_NoHandlerFailsPermanently(t *testing.T) {
	queue, ctx := setupRedisQueue(t)

	created, err := queue.EnqueueJob(ctx, JobType("unknown"), map[string]interface{}{})
	require.NoError(t, err)
	job, err := queue.dequeueJob(ctx)
	require.NoError(t, err)

	queue.processJob(ctx, job)

	stored, err := queue.GetJob(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
	stats, err := queue.GetJobStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[JobStatusFailed])
}

func TestQueue_WorkersProcessEnqueuedJobs(t *testing.T) {
	queue, ctx := setupRedisQueue(t)
	var handled int32
	queue.Handle(JobTypeGrantRetry, func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	})

	queue.Start()
	t.Cleanup(queue.Stop)
	assert.True(t, queue.IsRunning())

	require.NoError(t, queue.ScheduleGrantRetry(ctx, "telegram", "bob@example.com", "1"))
	require.NoError(t, queue.ScheduleGrantRetry(ctx, "discord", "bob@example.com", "1"))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&handled) == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestQueue_sweepStuck(t *testing.T) {
	queue, ctx := setupRedisQueue(t)

	created, err := queue.EnqueueJob(ctx, JobTypeGrantRetry, map[string]interface{}{})
	require.NoError(t, err)
	job, err := queue.dequeueJob(ctx)
	require.NoError(t, err)
	job.MarkAsProcessing()
	old := time.Now().Add(-time.Hour)
	job.ProcessedAt = &old
	queue.updateJob(ctx, job)

	queue.sweepStuck(ctx, time.Minute)

	size, err := queue.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)
	stored, err := queue.GetJob(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
}
