package app

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tutoriasBot/internal/config"
	"tutoriasBot/internal/cron"
	"tutoriasBot/internal/engine"
	"tutoriasBot/internal/flows"
	"tutoriasBot/internal/mailer"
	"tutoriasBot/internal/repository/postgres"
	"tutoriasBot/internal/service"
	"tutoriasBot/internal/state"
	"tutoriasBot/internal/telegram"
)

type App struct {
	Handler   *telegram.Handler
	Scheduler *cron.Scheduler

	log *slog.Logger
}

func New(log *slog.Logger, cfg *config.Config) *App {
	pool, err := postgres.NewConnPool(&cfg.Postgres)
	if err != nil {
		panic(err)
	}

	storage := postgres.New(pool)
	svc := service.New(log, storage)
	mail := mailer.New(cfg.SMTP)

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		panic(err)
	}

	gateway := telegram.NewBotGateway(bot)

	states := state.NewStore()
	lockouts := state.NewLockouts()

	eng := engine.New(log, states)
	eng.Use(func(ev engine.Event) {
		log.Debug("update received",
			slog.String("kind", ev.Kind.String()),
			slog.Int64("chat_id", ev.ChatID),
			slog.Int64("user_id", ev.UserID),
		)
	})

	flows.RegisterAll(eng, flows.Deps{
		Log:      log,
		States:   states,
		Lockouts: lockouts,
		Gateway:  gateway,
		Service:  svc,
		Mailer:   mail,
		Cfg: flows.Config{
			EmailDomain:     cfg.Registration.EmailDomain,
			CodeTTL:         cfg.Registration.CodeTTL,
			MaxCodeAttempts: cfg.Registration.MaxCodeAttempts,
			LockoutDuration: cfg.Registration.LockoutDuration,
			BanDuration:     cfg.Conversation.BanDuration,
		},
	})

	handler := telegram.NewHandler(log, bot, gateway, eng)

	scheduler := cron.New(log, states, cfg.Conversation.TTL, cfg.Conversation.SweepInterval)

	return &App{
		Handler:   handler,
		Scheduler: scheduler,
		log:       log,
	}
}

// Run блокируется до отмены контекста
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	return a.Handler.Start(ctx)
}
