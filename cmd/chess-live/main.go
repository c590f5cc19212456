package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	appcfg "github.com/park285/chess-live/internal/config"
	"github.com/park285/chess-live/internal/genai"
	"github.com/park285/chess-live/internal/httpapi"
	"github.com/park285/chess-live/internal/match"
	"github.com/park285/chess-live/internal/msgcat"
	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/internal/relay"
	"github.com/park285/chess-live/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	cat, err := msgcat.New(cfg.MsgcatOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	provider := genai.NewProvider(genai.ProviderConfig{
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.GeminiModel,
		BaseURL:     cfg.GeminiBaseURL,
		MaxAttempts: cfg.AIMaxAttempts,
		Timeout:     cfg.AIRequestTimeout,
	}, cat)

	rooms := match.NewManager(nil)
	hub := ws.NewHub()
	rl := relay.New(hub, rooms, cat)
	wsh := ws.NewHandler(hub, rooms, rl, provider, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.SetupRoutes(wsh, hub, rooms),
	}

	errCh := make(chan error, 1)
	go func() {
		obslog.L().Info("listening", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		obslog.L().Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("serve failed", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		obslog.L().Warn("shutdown incomplete", zap.Error(err))
	}
}
