package access

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2/log"
)

// TelegramClient adapts the Telegram Bot API to GroupClient and to a
// message sink.
type TelegramClient struct {
	bot *tgbotapi.BotAPI

	readyMu sync.Mutex
	readyAt time.Time
	readyOK bool
}

const (
	// telegramReadyTTL caches the getMe result between /health calls.
	telegramReadyTTL     = 30 * time.Second
	telegramReadyTimeout = 3 * time.Second
)

// NewTelegramClient logs in with token. The HTTP client timeout bounds every
// Bot API call, since the library does not take a context.
func NewTelegramClient(token string, timeout time.Duration) (*TelegramClient, error) {
	return newTelegramClient(token, tgbotapi.APIEndpoint, timeout)
}

func newTelegramClient(token, endpoint string, timeout time.Duration) (*TelegramClient, error) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	log.Infof("[Telegram] Bot ready: @%s", bot.Self.UserName)
	return &TelegramClient{bot: bot, readyAt: time.Now(), readyOK: true}, nil
}

// Ready reports whether the Bot API still answers getMe for this token.
func (c *TelegramClient) Ready() bool {
	c.readyMu.Lock()
	defer c.readyMu.Unlock()
	if time.Since(c.readyAt) < telegramReadyTTL {
		return c.readyOK
	}

	ctx, cancel := context.WithTimeout(context.Background(), telegramReadyTimeout)
	defer cancel()
	err := runWithContext(ctx, func() error {
		_, err := c.bot.GetMe()
		return err
	})
	if err != nil {
		log.Warnf("[Telegram] getMe failed: %v", err)
	}
	c.readyOK = err == nil
	c.readyAt = time.Now()
	return c.readyOK
}

// LiftRestriction unbans userID in groupID. OnlyIfBanned keeps the call a
// no-op for members that were never restricted.
func (c *TelegramClient) LiftRestriction(ctx context.Context, groupID string, userID PlatformUserID) error {
	cfg := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: chatMemberConfig(groupID, int64(userID)),
		OnlyIfBanned:     true,
	}
	return runWithContext(ctx, func() error {
		_, err := c.bot.Request(cfg)
		return err
	})
}

// Send posts text to chatID, which may be numeric or an @username.
func (c *TelegramClient) Send(ctx context.Context, chatID, text string) error {
	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(strings.TrimSpace(chatID), text)
	}
	return runWithContext(ctx, func() error {
		_, err := c.bot.Send(msg)
		return err
	})
}

func chatMemberConfig(groupID string, userID int64) tgbotapi.ChatMemberConfig {
	cfg := tgbotapi.ChatMemberConfig{UserID: userID}
	if id, err := strconv.ParseInt(strings.TrimSpace(groupID), 10, 64); err == nil {
		cfg.ChatID = id
	} else {
		cfg.SuperGroupUsername = strings.TrimSpace(groupID)
	}
	return cfg
}
