package relay

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/AccessRelay/internal/pkg/jobqueue"
)

// GrantRetryHandler adapts RetryGrant to the job queue.
func (p *Pipeline) GrantRetryHandler() jobqueue.Handler {
	return func(ctx context.Context, job *jobqueue.Job) error {
		payload, err := jobqueue.GrantRetryJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid grant retry payload: %w", err)
		}
		if payload.Grantor == "" || payload.SubjectID == "" {
			return fmt.Errorf("incomplete grant retry payload for job %s", job.ID)
		}
		return p.RetryGrant(ctx, payload.Grantor, payload.SubjectID)
	}
}
