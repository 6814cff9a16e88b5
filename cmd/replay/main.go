package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"statefeed/internal/app"
	"statefeed/internal/infra"
	"statefeed/internal/replay"
	"statefeed/internal/storage"
	"statefeed/internal/subscription"
)

func main() {
	sessionFlag := flag.String("session", "", "journal session id to replay (default: most recent)")
	kindFlag := flag.String("kind", "book", "stream kind recorded in the session: book or account")
	marketFlag := flag.String("market", "", "market for book replay (default: first configured)")
	exportFlag := flag.Bool("export", false, "export the final view as JSON")
	flag.Parse()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	cfg := bootstrap.Config
	infra.PrintBanner(cfg, "REPLAY")

	ctx := context.Background()

	sessionID, err := pickSession(ctx, bootstrap.Journal, *sessionFlag)
	if err != nil {
		slog.Error("Failed to pick session", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("▶️  Replaying session", slog.String("session", sessionID.String()))

	var limiter *infra.RateLimiter
	if cfg.Replay.PacePerSec > 0 {
		burst := cfg.Replay.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = infra.NewRateLimiter(burst, cfg.Replay.PacePerSec)
	}

	dial := func(ctx context.Context) (subscription.Source, error) {
		return replay.NewSource(ctx, bootstrap.Journal, sessionID, limiter)
	}

	var exporter *storage.ViewExporter
	if *exportFlag {
		exporter = storage.NewViewExporter(filepath.Join(infra.GetWorkspaceDir(), "exports"))
	}

	switch *kindFlag {
	case "book":
		market := *marketFlag
		if market == "" && len(cfg.Feed.Markets) > 0 {
			market = cfg.Feed.Markets[0]
		}
		runBook(ctx, market, dial, exporter)
	case "account":
		runAccount(ctx, dial, exporter)
	default:
		slog.Error("Unknown kind", slog.String("kind", *kindFlag))
		os.Exit(1)
	}
}

func pickSession(ctx context.Context, journal *storage.Journal, raw string) (uuid.UUID, error) {
	if raw != "" {
		return uuid.Parse(raw)
	}
	ids, err := journal.Sessions(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if len(ids) == 0 {
		return uuid.Nil, os.ErrNotExist
	}
	return ids[len(ids)-1], nil
}

func runBook(ctx context.Context, market string, dial subscription.DialFunc, exporter *storage.ViewExporter) {
	sub := subscription.NewOrderBook(market, dial)
	if err := sub.Connect(ctx); err != nil {
		slog.Error("Failed to start replay", slog.Any("error", err))
		os.Exit(1)
	}
	defer sub.Close()

	views := 0
	var lastSeq uint64
	for {
		view, ok := sub.Next(ctx)
		if !ok {
			break
		}
		views++
		lastSeq = view.Sequence
		if exporter != nil {
			if err := exporter.Save("book", view.Sequence, view); err != nil {
				slog.Warn("View export failed", slog.Any("error", err))
			}
		}
	}
	if err := sub.Err(); err != nil {
		slog.Error("Replay ended with error", slog.Any("error", err))
		os.Exit(1)
	}

	if exporter != nil {
		exporter.Cleanup("book", 1)
	}
	slog.Info("✨ Replay complete",
		slog.String("market", market),
		slog.Int("views", views),
		slog.Uint64("last_seq", lastSeq))
}

func runAccount(ctx context.Context, dial subscription.DialFunc, exporter *storage.ViewExporter) {
	sub := subscription.NewAccount(dial)
	if err := sub.Connect(ctx); err != nil {
		slog.Error("Failed to start replay", slog.Any("error", err))
		os.Exit(1)
	}
	defer sub.Close()

	views := 0
	var lastSeq uint64
	for {
		view, ok := sub.Next(ctx)
		if !ok {
			break
		}
		views++
		lastSeq = view.Sequence
		if exporter != nil {
			if err := exporter.Save("account", view.Sequence, view); err != nil {
				slog.Warn("View export failed", slog.Any("error", err))
			}
		}
	}
	if err := sub.Err(); err != nil {
		slog.Error("Replay ended with error", slog.Any("error", err))
		os.Exit(1)
	}

	if exporter != nil {
		exporter.Cleanup("account", 1)
	}
	slog.Info("✨ Replay complete",
		slog.Int("views", views),
		slog.Uint64("last_seq", lastSeq))
}
