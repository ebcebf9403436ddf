package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/AccessRelay/app/controllers"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/access"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/cache"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/database"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/entitlements"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/env"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/jobqueue"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/mail"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/metrics"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/middleware"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/notify"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/payments"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/ratelimit"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/relay"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/router"
)

var requiredKeys = []string{
	"NOWPAYMENTS_IPN_SECRET",
	"TELEGRAM_BOT_TOKEN",
	"TELEGRAM_GROUP_ID",
	"DISCORD_BOT_TOKEN",
	"DISCORD_GUILD_ID",
	"DISCORD_CHANNEL_ID",
}

type application struct {
	app      *fiber.App
	discord  *access.DiscordClient
	queue    *jobqueue.Queue
	shutdown []func()
}

func main() {
	a := newApplication()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("Shutting down...")
		a.close()
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "8000"))
	if err := a.app.Listen(addr); err != nil {
		log.Fatal(err)
	}
}

func newApplication() *application {
	env.SetupEnvFile()
	if err := env.RequireEnv(requiredKeys...); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := env.RequireOneOf("ADMIN_API_KEY", "ADMIN_API_KEY_HASH"); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	callTimeout := env.GetDuration("CALL_TIMEOUT", access.DefaultCallTimeout)
	a := &application{}

	redisClient := cache.SetupCache()
	a.shutdown = append(a.shutdown, func() { _ = cache.Close() })

	db, err := database.SetupDatabase()
	if err != nil {
		log.Fatalf("Failed to set up audit database: %v", err)
	}

	// platform clients
	telegram, err := access.NewTelegramClient(env.GetEnv("TELEGRAM_BOT_TOKEN", ""), callTimeout)
	if err != nil {
		log.Fatalf("Failed to start Telegram bot: %v", err)
	}
	a.discord, err = access.NewDiscordClient(env.GetEnv("DISCORD_BOT_TOKEN", ""), callTimeout)
	if err != nil {
		log.Fatalf("Failed to create Discord session: %v", err)
	}
	if err := a.discord.Open(); err != nil {
		log.Fatalf("Failed to connect Discord bot: %v", err)
	}
	a.shutdown = append(a.shutdown, func() { _ = a.discord.Close() })

	resolver := loadResolver()

	groupID := env.GetEnv("TELEGRAM_GROUP_ID", "")
	channelID := env.GetEnv("DISCORD_CHANNEL_ID", "")
	grantors := []access.Grantor{
		access.NewGroupGrantor(telegram, resolver, groupID, callTimeout),
		access.NewGuildGrantor(a.discord, env.GetEnv("DISCORD_GUILD_ID", ""), channelID, callTimeout),
	}

	metrics.Register()
	statusFanout := notify.NewFanout(callTimeout,
		notify.Sink{Name: "telegram", ChannelID: env.GetEnv("TELEGRAM_NOTIFY_CHAT_ID", groupID), Sender: telegram},
		notify.Sink{Name: "discord", ChannelID: env.GetEnv("DISCORD_NOTIFY_CHANNEL_ID", channelID), Sender: a.discord},
	)
	// invite links only go to explicitly configured operator channels
	operatorFanout := notify.NewFanout(callTimeout,
		notify.Sink{Name: "telegram-ops", ChannelID: env.GetEnv("TELEGRAM_OPERATOR_CHAT_ID", ""), Sender: telegram},
		notify.Sink{Name: "discord-ops", ChannelID: env.GetEnv("DISCORD_OPERATOR_CHANNEL_ID", ""), Sender: a.discord},
	)
	for _, f := range []*notify.Fanout{statusFanout, operatorFanout} {
		f.OnFailure(func(sink string, err error) {
			metrics.FanoutFailuresTotal.WithLabelValues(sink).Inc()
		})
	}

	opts := relay.Options{
		IPNSecret:   env.GetEnv("NOWPAYMENTS_IPN_SECRET", ""),
		Grantors:    grantors,
		Fanout:      statusFanout,
		Operators:   operatorFanout,
		Ledger:      entitlements.NewLedger(),
		CallTimeout: callTimeout,
	}
	if redisClient != nil {
		opts.Guard = relay.NewRedisGuard(redisClient, relay.DefaultGuardTTL)
		workers, _ := strconv.Atoi(env.GetEnv("RETRY_WORKERS", "2"))
		a.queue = jobqueue.NewQueue(redisClient, workers)
		a.queue.SetRetryDelay(env.GetDuration("RETRY_DELAY", jobqueue.DefaultRetryDelay))
		opts.Retries = a.queue
	} else {
		opts.Guard = relay.NewMemoryGuard(relay.DefaultGuardTTL)
		log.Warn("[Relay] Redis unavailable, failed grants are logged but not retried")
	}
	if db != nil {
		opts.Audit = payments.NewServiceFromDB(db)
	}
	if mailer := mail.NewSMTPMailerFromEnv(); mailer != nil {
		opts.Mailer = mailer
	}
	pipeline := relay.NewPipeline(opts)

	if a.queue != nil {
		a.queue.Handle(jobqueue.JobTypeGrantRetry, pipeline.GrantRetryHandler())
		a.queue.Start()
		a.shutdown = append([]func(){a.queue.Stop}, a.shutdown...)
	}

	controllers.Initialize(controllers.Dependencies{
		Pipeline:    pipeline,
		Queue:       a.queue,
		CallTimeout: callTimeout,
		Checks: map[string]controllers.ReadinessCheck{
			"telegram": telegram.Ready,
			"discord":  a.discord.Ready,
			"redis":    cache.IsConfigured,
		},
	})

	// init fiber app
	a.app = fiber.New(fiber.Config{
		AppName:   "AccessRelay",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	a.app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	a.app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: env.GetEnv("OPENAPI_FILE", "./public/docs/v1/openapi.yml"),
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(a.app, router.Config{
		AdminKey: middleware.AdminKey{
			Key:  env.GetEnv("ADMIN_API_KEY", ""),
			Hash: env.GetEnv("ADMIN_API_KEY_HASH", ""),
		},
		MetricsUser:     env.GetEnv("METRICS_USER", ""),
		MetricsPassword: env.GetEnv("METRICS_PASSWORD", ""),
		LimiterStorage:  ratelimit.NewStorage(),
		WebhookLimit:    envInt("WEBHOOK_RATE_LIMIT", 120),
		WebhookWindow:   env.GetDuration("WEBHOOK_RATE_WINDOW", time.Minute),
	})

	return a
}

func loadResolver() access.Resolver {
	path := env.GetEnv("IDENTITY_MAP_FILE", "")
	if path == "" {
		log.Warn("[Relay] IDENTITY_MAP_FILE not set, Telegram grants will fail until identities are mapped")
		return access.NewStaticResolver(nil)
	}
	r, err := access.LoadStaticResolver(path)
	if err != nil {
		log.Fatalf("Failed to load identity map %s: %v", path, err)
	}
	log.Infof("[Relay] Loaded %d identities from %s", r.Len(), path)
	return r
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(env.GetEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func (a *application) close() {
	if err := a.app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorf("HTTP shutdown: %v", err)
	}
	for _, fn := range a.shutdown {
		fn()
	}
}
