package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"charstudio/internal/config"
	"charstudio/internal/httpclient"
	"charstudio/internal/sdapi"
	"charstudio/internal/tts"
	"charstudio/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	srv := web.New(web.Options{
		Generator: sdapi.New(sdapi.Options{
			BaseURL:     cfg.SDBaseURL,
			HTTPClient:  httpClient,
			Logger:      logger,
			MinInterval: cfg.SDMinInterval,
		}),
		Speech: tts.New(tts.Options{
			ServerURL:  cfg.TTSServerURL,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
		Logger:         logger,
		DefaultModel:   cfg.SDModel,
		RequestTimeout: cfg.RequestTimeout,
	})
	srv.Echo.Server.ReadHeaderTimeout = 10 * time.Second
	srv.Echo.Server.IdleTimeout = 90 * time.Second

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(cfg.WebAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
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
