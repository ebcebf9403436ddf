package access

import (
	"context"
	"errors"
	"strings"
	"time"
)

const GuildGrantorName = "discord"

// InviteLink is a single-use invitation URL.
type InviteLink string

// GuildClient mints invitations for a guild channel. Each call must return a
// new, unique, single-use invite.
type GuildClient interface {
	CreateInvite(ctx context.Context, guildID, channelID string) (string, error)
}

// GuildGrantor grants access by minting an invite; the invite is then
// delivered to the subject out of band.
type GuildGrantor struct {
	client    GuildClient
	guildID   string
	channelID string
	timeout   time.Duration
}

func NewGuildGrantor(client GuildClient, guildID, channelID string, timeout time.Duration) *GuildGrantor {
	return &GuildGrantor{client: client, guildID: guildID, channelID: channelID, timeout: timeout}
}

func (g *GuildGrantor) Name() string { return GuildGrantorName }

// CreateGuildInvite mints a fresh invite for the configured channel.
func (g *GuildGrantor) CreateGuildInvite(ctx context.Context) (InviteLink, error) {
	cctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	url, err := g.client.CreateInvite(cctx, g.guildID, g.channelID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(url) == "" {
		return "", errors.New("empty invite returned")
	}
	return InviteLink(url), nil
}

func (g *GuildGrantor) Grant(ctx context.Context, subjectID string) (Grant, error) {
	link, err := g.CreateGuildInvite(ctx)
	if err != nil {
		return Grant{}, &GrantError{Grantor: g.Name(), SubjectID: subjectID, Err: err}
	}
	return Grant{Grantor: g.Name(), SubjectID: subjectID, InviteURL: string(link)}, nil
}
