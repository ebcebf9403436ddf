package access

import (
	"context"
	"errors"
	"time"
)

const GroupGrantorName = "telegram"

// GroupClient lifts a per-user restriction inside a chat group. Lifting a
// restriction that is not in place must succeed.
type GroupClient interface {
	LiftRestriction(ctx context.Context, groupID string, userID PlatformUserID) error
}

// GroupGrantor admits a subject to the configured group by lifting their ban.
type GroupGrantor struct {
	client   GroupClient
	resolver Resolver
	groupID  string
	timeout  time.Duration
}

func NewGroupGrantor(client GroupClient, resolver Resolver, groupID string, timeout time.Duration) *GroupGrantor {
	return &GroupGrantor{client: client, resolver: resolver, groupID: groupID, timeout: timeout}
}

func (g *GroupGrantor) Name() string { return GroupGrantorName }

// GrantGroupAccess resolves the subject and lifts their restriction. Every
// failure is returned as a *GrantError; a resolution failure additionally
// unwraps to *ResolutionError.
func (g *GroupGrantor) GrantGroupAccess(ctx context.Context, subjectID string) error {
	fail := func(err error) error {
		return &GrantError{Grantor: g.Name(), SubjectID: subjectID, Err: err}
	}

	rctx, cancel := withTimeout(ctx, g.timeout)
	userID, err := g.resolver.Resolve(rctx, subjectID)
	cancel()
	if err != nil {
		var re *ResolutionError
		if !errors.As(err, &re) {
			err = &ResolutionError{SubjectID: subjectID, Err: err}
		}
		return fail(err)
	}

	cctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.client.LiftRestriction(cctx, g.groupID, userID); err != nil {
		return fail(err)
	}
	return nil
}

func (g *GroupGrantor) Grant(ctx context.Context, subjectID string) (Grant, error) {
	if err := g.GrantGroupAccess(ctx, subjectID); err != nil {
		return Grant{}, err
	}
	return Grant{Grantor: g.Name(), SubjectID: subjectID}, nil
}
