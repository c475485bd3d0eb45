package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"charstudio/internal/attachment"
	"charstudio/internal/config"
	"charstudio/internal/handlers"
	"charstudio/internal/httpclient"
	"charstudio/internal/mediagroup"
	"charstudio/internal/sdapi"
	"charstudio/internal/studio"
	"charstudio/internal/telegram"
	"charstudio/internal/tts"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadBot()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	sd := sdapi.New(sdapi.Options{
		BaseURL:     cfg.SDBaseURL,
		HTTPClient:  httpClient,
		Logger:      logger,
		MinInterval: cfg.SDMinInterval,
	})

	speech := tts.New(tts.Options{
		ServerURL:  cfg.TTSServerURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	handler := handlers.New(handlers.Options{
		Bot:          tg,
		Files:        attachment.NewCachedLoader(tg, cfg.AttachmentCacheTTL),
		Generator:    sd,
		Speech:       speech,
		Store:        studio.NewStore(),
		Logger:       logger,
		DefaultModel: cfg.SDModel,
		VoicePreset:  cfg.TTSVoicePreset,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sem := make(chan struct{}, cfg.MaxConcurrent)
	onGroupFlush := func(group mediagroup.Group) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()

			handler.HandleMediaGroup(reqCtx, group)
		}()
	}

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.MediaGroupDebounce,
		OnFlush:  onGroupFlush,
	})
	handler.SetMediaGroupAggregator(aggregator)

	logger.Info("bot started", "username", tg.Username(), "sd_base_url", cfg.SDBaseURL)

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down", "pending_albums", aggregator.Pending())
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
