// Command chorus runs one batch of the reply pipeline: sample source
// profiles, fetch their freshest posts through the scraping backend,
// generate short Hindi commentary through the completion backend, and
// publish replies from a rotating pool of accounts. Configuration is
// environment-only; see engine/config.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/chorusbot/chorus/engine/account"
	"github.com/chorusbot/chorus/engine/commentary"
	"github.com/chorusbot/chorus/engine/config"
	"github.com/chorusbot/chorus/engine/dispatch"
	"github.com/chorusbot/chorus/engine/fetch"
	"github.com/chorusbot/chorus/engine/pipeline"
	"github.com/chorusbot/chorus/engine/profile"
)

const replyEventSubject = "chorus.replies"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file, using process environment")
	}
	cfg := config.FromEnv()

	// Account pool: built once, fatal if empty. This happens before any
	// network side effect.
	accounts := account.Merge(account.LoadFile(cfg.AccountsFile()), account.FromEnv())
	clients, err := account.BuildPool(accounts)
	if err != nil {
		logger.Error("account pool", "err", err)
		os.Exit(1)
	}
	pool := make([]dispatch.Poster, len(clients))
	for i, c := range clients {
		pool[i] = c
	}

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Error("nats connect", "err", err)
			os.Exit(1)
		}
		defer nc.Close()
		logger.Info("publishing reply events", "subject", replyEventSubject)
	}

	runner := &pipeline.Runner{
		Rotator: profile.NewRotator(cfg.ProfilesFile(), cfg.RecentFile(), cfg.ProfilesPerRun, cfg.RecentMemorySize),
		Fetcher: fetch.New(fetch.Config{
			Token:           cfg.ScrapeToken,
			PostsPerProfile: cfg.PostsPerProfile,
			ReplyBudget:     cfg.RepliesPerRun,
			RankRecent:      cfg.RankRecent,
		}),
		Generator: commentary.New(commentary.Config{
			APIKey:      cfg.CompletionKey,
			MaxParallel: cfg.MaxParallel,
		}),
		Dispatcher: dispatch.New(pool, dispatch.Config{
			DryRun:      cfg.DryRun,
			AttachMedia: cfg.AttachMedia,
			MinDelay:    cfg.MinDelay,
			MaxDelay:    cfg.MaxDelay,
			ImagesDir:   cfg.ImagesDir(),
			LogPath:     cfg.LogFile(),
			Subject:     replyEventSubject,
		}, nc),
		QueuePath: cfg.QueueFile(),
		PoolSize:  len(pool),
	}

	logger.Info("chorus starting",
		"mode", cfg.Mode,
		"accounts", len(pool),
		"media", cfg.AttachMedia,
		"dry_run", cfg.DryRun,
		"delay", cfg.MinDelay, "delay_max", cfg.MaxDelay,
		"parallel", cfg.MaxParallel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cfg.Mode {
	case config.ModeFetchReply:
		if err := runner.FetchReply(ctx); err != nil {
			logger.Error("fetch+reply failed", "err", err)
			os.Exit(1)
		}
	case config.ModeReplyQueue:
		if err := runner.ReplyQueue(ctx); err != nil {
			logger.Error("queue reply failed", "err", err)
			os.Exit(1)
		}
	default:
		logger.Warn("unknown mode, nothing to do", "mode", cfg.Mode)
	}
}
