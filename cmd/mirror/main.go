package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"statefeed/internal/app"
	"statefeed/internal/infra"
	"statefeed/internal/infra/wire"
	"statefeed/internal/storage"
	"statefeed/internal/subscription"
)

func main() {
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	cfg := bootstrap.Config
	infra.PrintBanner(cfg, "LIVE")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	breaker := infra.NewCircuitBreaker("feed", 0, 0, 0)
	readTimeout := time.Duration(cfg.Feed.ReadTimeoutSec) * time.Second
	pingInterval := time.Duration(cfg.Feed.PingIntervalSec) * time.Second

	var wg sync.WaitGroup

	// One book subscription per configured market.
	for _, market := range cfg.Feed.Markets {
		streamCfg := infra.StreamConfig{
			URL: cfg.Feed.WSURL,
			Subscribe: []wire.SubscribeArg{
				{InstType: cfg.Feed.InstType, Channel: wire.ChannelBooks, InstID: market},
			},
			ReadTimeout:  readTimeout,
			PingInterval: pingInterval,
		}

		opts, err := recorderOpts(ctx, bootstrap, "books:"+market)
		if err != nil {
			slog.Error("Failed to open journal session", slog.Any("error", err))
			os.Exit(1)
		}

		sub := subscription.NewOrderBook(market, infra.StreamDialer(streamCfg, breaker), opts...)
		if err := sub.Connect(ctx); err != nil {
			slog.Error("Failed to connect book stream", slog.String("market", market), slog.Any("error", err))
			os.Exit(1)
		}
		defer sub.Close()
		slog.InfoContext(ctx, "✅ Book subscription started", slog.String("market", market))

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				view, ok := sub.Next(ctx)
				if !ok {
					if err := sub.Err(); err != nil {
						slog.Error("Book stream failed", slog.String("market", sub.Market()), slog.Any("error", err))
					}
					return
				}
				slog.Debug("book view",
					slog.String("market", view.Market),
					slog.Uint64("seq", view.Sequence),
					slog.Int("bids", len(view.Bids)),
					slog.Int("asks", len(view.Asks)))
			}
		}()
	}

	// Account subscription, only when an auth payload is configured.
	if cfg.Feed.AuthPayload != "" {
		streamCfg := infra.StreamConfig{
			URL: cfg.Feed.WSURL,
			Subscribe: []wire.SubscribeArg{
				{InstType: cfg.Feed.InstType, Channel: wire.ChannelOrders},
				{InstType: cfg.Feed.InstType, Channel: wire.ChannelPositions},
				{InstType: cfg.Feed.InstType, Channel: wire.ChannelAccount},
			},
			AuthPayload:  cfg.Feed.AuthPayload,
			ReadTimeout:  readTimeout,
			PingInterval: pingInterval,
		}

		opts, err := recorderOpts(ctx, bootstrap, "account")
		if err != nil {
			slog.Error("Failed to open journal session", slog.Any("error", err))
			os.Exit(1)
		}

		sub := subscription.NewAccount(infra.StreamDialer(streamCfg, breaker), opts...)
		if err := sub.Connect(ctx); err != nil {
			slog.Error("Failed to connect account stream", slog.Any("error", err))
			os.Exit(1)
		}
		defer sub.Close()
		slog.InfoContext(ctx, "✅ Account subscription started")

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				view, ok := sub.Next(ctx)
				if !ok {
					if err := sub.Err(); err != nil {
						slog.Error("Account stream failed", slog.Any("error", err))
					}
					return
				}
				slog.Debug("account view",
					slog.Uint64("seq", view.Sequence),
					slog.Int("orders", len(view.Orders)),
					slog.Int("positions", len(view.Positions)))
			}
		}()
	}

	slog.InfoContext(ctx, "✨ Mirror engine fully operational. Press Ctrl+C to exit.")

	<-ctx.Done()
	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
	stop()
	wg.Wait()
}

func recorderOpts(ctx context.Context, bootstrap *app.Bootstrap, label string) ([]subscription.Option, error) {
	if !bootstrap.Config.Journal.Enabled {
		return nil, nil
	}
	rec, err := storage.NewSessionRecorder(ctx, bootstrap.Journal, label)
	if err != nil {
		return nil, err
	}
	slog.Info("📼 Recording session", slog.String("label", label), slog.String("session", rec.SessionID().String()))
	return []subscription.Option{subscription.WithRecorder(rec)}, nil
}
