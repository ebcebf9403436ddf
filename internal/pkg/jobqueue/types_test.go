package jobqueue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   JobStatus
		expected string
	}{
		{"Pending", JobStatusPending, "pending"},
		{"Processing", JobStatusProcessing, "processing"},
		{"Completed", JobStatusCompleted, "completed"},
		{"Failed", JobStatusFailed, "failed"},
		{"Retrying", JobStatusRetrying, "retrying"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.status))
		})
	}
	assert.Equal(t, "grant_retry", string(JobTypeGrantRetry))
}

func TestJob_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		job       *Job
		retryable bool
	}{
		{"Failed job with retries remaining", &Job{Status: JobStatusFailed, RetryCount: 1, MaxRetries: 3}, true},
		{"Failed job with no retries remaining", &Job{Status: JobStatusFailed, RetryCount: 3, MaxRetries: 3}, false},
		{"Completed job", &Job{Status: JobStatusCompleted, RetryCount: 1, MaxRetries: 3}, false},
		{"Pending job", &Job{Status: JobStatusPending, MaxRetries: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.job.IsRetryable())
		})
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{Status: JobStatusPending, MaxRetries: DefaultMaxRetries}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("discord unreachable")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "discord unreachable", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsRetrying()
	assert.Equal(t, JobStatusRetrying, job.Status)

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMsg)
	require.NotNil(t, job.CompletedAt)
}

func TestGrantRetryJobPayload_MapConversion(t *testing.T) {
	payload := GrantRetryJobPayload{Grantor: "telegram", SubjectID: "alice@example.com", PaymentID: "5077125051"}

	m := payload.ToMap()
	assert.Equal(t, "telegram", m["grantor"])
	assert.Equal(t, "alice@example.com", m["subject_id"])

	// simulate the round trip through Redis
	raw, err := json.Marshal(&Job{Type: JobTypeGrantRetry, Payload: m, CreatedAt: time.Now()})
	require.NoError(t, err)
	var stored Job
	require.NoError(t, json.Unmarshal(raw, &stored))

	back, err := GrantRetryJobPayloadFromMap(stored.Payload)
	require.NoError(t, err)
	assert.Equal(t, payload, *back)
}

func TestGrantRetryJobPayloadFromMap_WrongTypes(t *testing.T) {
	_, err := GrantRetryJobPayloadFromMap(map[string]interface{}{"grantor": 12})
	assert.Error(t, err)

	_, err = GrantRetryJobPayloadFromMap(map[string]interface{}{"bad": make(chan int)})
	assert.Error(t, err)
}
