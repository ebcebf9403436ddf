package access

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2/log"
)

const (
	discordInviteBaseURL = "https://discord.gg/"
	discordInviteMaxAge  = 24 * time.Hour
)

// DiscordClient adapts a discordgo session to GuildClient and to a message sink.
type DiscordClient struct {
	session *discordgo.Session
	ready   atomic.Bool
}

func NewDiscordClient(token string, timeout time.Duration) (*DiscordClient, error) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildMembers
	s.Client.Timeout = timeout

	c := &DiscordClient{session: s}
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		c.ready.Store(true)
		log.Infof("[Discord] Bot ready: %s (%d guilds)", r.User.Username, len(r.Guilds))
	})
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		c.ready.Store(false)
		log.Warn("[Discord] Gateway disconnected")
	})
	return c, nil
}

// Open connects to the gateway. Readiness is signalled asynchronously.
func (c *DiscordClient) Open() error {
	return c.session.Open()
}

func (c *DiscordClient) Close() error {
	c.ready.Store(false)
	return c.session.Close()
}

func (c *DiscordClient) Ready() bool {
	return c.ready.Load()
}

// CreateInvite mints a unique single-use invite after checking that the
// channel belongs to guildID.
func (c *DiscordClient) CreateInvite(ctx context.Context, guildID, channelID string) (string, error) {
	if !c.Ready() {
		return "", ErrNotConnected
	}

	ch, err := c.session.State.Channel(channelID)
	if err != nil {
		ch, err = c.session.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			return "", fmt.Errorf("channel %s: %w: %v", channelID, ErrTargetNotFound, err)
		}
	}
	if ch.GuildID != guildID {
		return "", fmt.Errorf("channel %s is not in guild %s: %w", channelID, guildID, ErrTargetNotFound)
	}

	inv, err := c.session.ChannelInviteCreate(channelID, discordgo.Invite{
		MaxAge:  int(discordInviteMaxAge.Seconds()),
		MaxUses: 1,
		Unique:  true,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return discordInviteBaseURL + inv.Code, nil
}

func (c *DiscordClient) Send(ctx context.Context, channelID, text string) error {
	if !c.Ready() {
		return ErrNotConnected
	}
	_, err := c.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return err
}
