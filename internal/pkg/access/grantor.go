package access

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultCallTimeout bounds every remote call made by a grantor or sink.
const DefaultCallTimeout = 10 * time.Second

var (
	// ErrUnknownSubject means the resolver has no platform identity for a subject.
	ErrUnknownSubject = errors.New("no platform identity for subject")
	// ErrTargetNotFound means the configured group, guild or channel cannot be reached.
	ErrTargetNotFound = errors.New("access target not found")
	// ErrNotConnected means the platform client has not finished connecting.
	ErrNotConnected = errors.New("platform client not connected")
)

// Grant describes what a grantor produced for a subject.
type Grant struct {
	Grantor   string
	SubjectID string
	InviteURL string
}

// Grantor is the common capability behind every access channel. Grant must
// be safe to repeat for the same subject.
type Grantor interface {
	Name() string
	Grant(ctx context.Context, subjectID string) (Grant, error)
}

// ResolutionError is returned when a subject cannot be mapped to a platform identity.
type ResolutionError struct {
	SubjectID string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.SubjectID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// GrantError is returned when an access-granting step fails. It carries
// enough context to remediate manually.
type GrantError struct {
	Grantor   string
	SubjectID string
	Err       error
}

func (e *GrantError) Error() string {
	return fmt.Sprintf("%s grant for %q failed: %v", e.Grantor, e.SubjectID, e.Err)
}

func (e *GrantError) Unwrap() error { return e.Err }

// withTimeout derives a bounded context; a non-positive timeout falls back
// to DefaultCallTimeout.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// runWithContext runs fn and returns early when ctx is done. Used for client
// libraries whose calls do not accept a context.
func runWithContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
