package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"portfolio/internal/analytics"
	"portfolio/internal/chat"
	"portfolio/internal/config"
	"portfolio/internal/discord"
	"portfolio/internal/llm"
	"portfolio/internal/logging"
	"portfolio/internal/profile"
	"portfolio/internal/prompt"
	"portfolio/internal/scheduler"
	"portfolio/internal/sessions"
	"portfolio/internal/storage"
	"portfolio/internal/suggest"
	"portfolio/internal/telegram"
	"portfolio/internal/web"
)

func main() {
	envErr := godotenv.Load(".env")

	cfg := config.New()
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Debug().Err(envErr).Msg(".env file not loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("portfolio server failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	p := profile.Default()

	builder, err := prompt.NewBuilder(p, prompt.ReadTemplate(cfg.SystemPromptPath))
	if err != nil {
		return err
	}

	completer, err := llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider), llm.ModelFor(cfg))
	if err != nil {
		return err
	}

	rec, err := storage.Open(cfg.StorageBackend, cfg.LogFilePath, cfg.SQLitePath)
	if err != nil {
		log.Warn().Err(err).Str("backend", cfg.StorageBackend).Msg("failed to init interaction recorder, recording disabled")
		rec = storage.Nop{}
	}
	defer func() {
		if err := storage.Close(rec); err != nil {
			log.Warn().Err(err).Msg("failed to close interaction recorder")
		}
	}()

	mgr := sessions.NewManager(func() *chat.Widget {
		return chat.New(completer, builder.SystemInstruction(), builder.Greeting())
	}, rec)
	defer mgr.Close()
	board := suggest.NewBoard(completer, p)

	sched := scheduler.New()
	if err := sched.Every(cfg.SessionSweepInterval, "evict-idle-sessions", func(context.Context) error {
		if n := mgr.EvictIdle(cfg.SessionMaxIdle); n > 0 {
			log.Info().Int("evicted", n).Int("remaining", mgr.Len()).Msg("evicted idle sessions")
		}
		return nil
	}); err != nil {
		return err
	}
	if err := sched.Add(scheduler.DailyReportSpec, "daily-report", func(context.Context) error {
		events, err := rec.LoadInteractions()
		if err != nil {
			return err
		}
		stats := analytics.AnalyzeDailyLogs(events, time.Now().UTC())
		log.Info().Str("report", stats.Summary()).Msg("daily assistant report")
		return nil
	}); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	srv, err := web.NewServer(web.Options{
		Addr:           cfg.HTTPAddr,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Profile:        p,
		Sessions:       mgr,
		Board:          board,
		Recorder:       rec,
	})
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return srv.Run(ctx) })

	if cfg.SystemPromptPath != "" {
		eg.Go(func() error {
			if err := builder.Watch(ctx, cfg.SystemPromptPath); err != nil {
				log.Warn().Err(err).Msg("system prompt hot reload disabled")
			}
			return nil
		})
	}

	if cfg.TelegramBotToken != "" {
		bot, err := telegram.New(cfg.TelegramBotToken, mgr, builder.Greeting())
		if err != nil {
			log.Error().Err(err).Msg("telegram bot disabled")
		} else {
			eg.Go(func() error {
				bot.Start(ctx)
				return nil
			})
		}
	}

	if cfg.DiscordBotToken != "" {
		bot, err := discord.New(cfg.DiscordBotToken, cfg.DiscordCommandPrefix, mgr, builder.Greeting())
		if err != nil {
			log.Error().Err(err).Msg("discord bot disabled")
		} else {
			eg.Go(func() error { return bot.Start(ctx) })
		}
	}

	log.Info().
		Str("provider", string(cfg.LLMProvider)).
		Str("model", llm.ModelFor(cfg)).
		Msg("portfolio assistant ready")
	return eg.Wait()
}
