// Command ledgerd runs the roast ledger API server and the daily
// challenge scheduler.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roastcast/ledger/internal/app"
	"github.com/roastcast/ledger/internal/app/httpapi"
	"github.com/roastcast/ledger/internal/auth"
	"github.com/roastcast/ledger/internal/chainpay"
	"github.com/roastcast/ledger/internal/config"
	"github.com/roastcast/ledger/internal/gen"
	"github.com/roastcast/ledger/internal/kv"
	"github.com/roastcast/ledger/internal/notify"
	"github.com/roastcast/ledger/internal/profile"
	"github.com/roastcast/ledger/pkg/logger"
)

func main() {
	log := logger.NewDefault("ledgerd")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := kv.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}

	tokens := notify.NewTokenStore(store)
	dispatcher := notify.NewHTTPDispatcher(tokens, log)
	notifications := notify.NewService(store, dispatcher, cfg.App.URL, log)
	profiles := profile.NewClient(cfg.Profile.BaseURL, cfg.Profile.APIKey, store, log)

	application := app.New(store, app.Options{
		Notifier:  notifications,
		Payments:  chainpay.NewVerifier(cfg.Chain.RPCURL, store),
		Generator: gen.NewGenerator(cfg.Gen.BaseURL, cfg.Gen.APIKey, cfg.Gen.Model),
		Profiles:  profiles,
	}, log)

	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.App.Domain)
	server := httpapi.NewServer(application, verifier, profiles, tokens, notifications, log)
	server.AllowedOrigins = cfg.HTTP.AllowedOrigins

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Challenge.RotateSchedule, func() {
		jobCtx, jobCancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer jobCancel()
		if err := application.RotateChallenge(jobCtx); err != nil {
			log.WithError(err).Error("challenge rotation failed")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("invalid challenge rotation schedule")
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
	log.Info("server exited")
}
