package access

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// PlatformUserID identifies a user on the group platform.
type PlatformUserID int64

// Resolver maps a subject identifier to a platform identity. The mapping
// strategy is up to the implementation.
type Resolver interface {
	Resolve(ctx context.Context, subjectID string) (PlatformUserID, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, subjectID string) (PlatformUserID, error)

func (f ResolverFunc) Resolve(ctx context.Context, subjectID string) (PlatformUserID, error) {
	return f(ctx, subjectID)
}

// StaticResolver resolves subjects from an operator-maintained table.
type StaticResolver struct {
	mu  sync.RWMutex
	ids map[string]PlatformUserID
}

func NewStaticResolver(ids map[string]int64) *StaticResolver {
	r := &StaticResolver{ids: make(map[string]PlatformUserID, len(ids))}
	for subject, id := range ids {
		r.Set(subject, PlatformUserID(id))
	}
	return r
}

// LoadStaticResolver reads a YAML file of `subject: platform_user_id` pairs.
func LoadStaticResolver(path string) (*StaticResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identity map: %w", err)
	}
	ids := map[string]int64{}
	if err := yaml.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse identity map %s: %w", path, err)
	}
	return NewStaticResolver(ids), nil
}

func (r *StaticResolver) Set(subjectID string, id PlatformUserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[normalizeSubject(subjectID)] = id
}

func (r *StaticResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

func (r *StaticResolver) Resolve(ctx context.Context, subjectID string) (PlatformUserID, error) {
	if err := ctx.Err(); err != nil {
		return 0, &ResolutionError{SubjectID: subjectID, Err: err}
	}
	r.mu.RLock()
	id, ok := r.ids[normalizeSubject(subjectID)]
	r.mu.RUnlock()
	if !ok || id == 0 {
		return 0, &ResolutionError{SubjectID: subjectID, Err: ErrUnknownSubject}
	}
	return id, nil
}

func normalizeSubject(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
