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

	"callbackcloser/internal/audit"
	"callbackcloser/internal/auth"
	"callbackcloser/internal/business"
	"callbackcloser/internal/compliance"
	"callbackcloser/internal/config"
	"callbackcloser/internal/httpapi"
	"callbackcloser/internal/ledger"
	"callbackcloser/internal/messaging"
	"callbackcloser/internal/reporting"
	"callbackcloser/internal/telephony"
	"callbackcloser/internal/usage"
	"callbackcloser/internal/webhookauth"
	"callbackcloser/internal/webhooks"
	"callbackcloser/pkg/logger"
	"callbackcloser/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Persistence
	repo := ledger.NewPostgresRepo(db)
	businesses := business.NewPostgresRepo(db)
	consentStore := compliance.NewPostgresStore(db)
	auditRepo := audit.NewPostgresRepo(db)

	// Services
	consent := compliance.NewService(consentStore, cfg.App.Name)
	sender := telephony.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
	messenger := messaging.NewService(repo, sender, consent)
	usageSvc := usage.NewService(repo, usage.TierPrices{
		StarterPriceID: cfg.Billing.StarterPriceID,
		ProPriceID:     cfg.Billing.ProPriceID,
	}, cfg.Billing.Timezone)
	auditSvc := audit.NewService(auditRepo)
	guard := utils.NewRedisSendGuard(rdb, 30*time.Second)

	webhookSvc := webhooks.NewService(webhooks.Config{
		AppName:           cfg.App.Name,
		StatusCallbackURL: cfg.WebhookURL("/webhooks/twilio/status"),
		LeadURL: func(leadID string) string {
			return cfg.AbsoluteURL("/app/leads/" + leadID)
		},
	}, repo, businesses, messenger, consent, usageSvc, auditSvc, guard)

	webhookAuth := webhookauth.New(webhookauth.Config{
		Token:             cfg.Twilio.WebhookToken,
		ValidateSignature: cfg.Twilio.ValidateSignature,
		AuthToken:         cfg.Twilio.AuthToken,
		BaseURL:           cfg.App.BaseURL,
		Production:        cfg.IsProduction(),
	})

	webhookHandlers := webhooks.Handlers{Auth: webhookAuth, Service: webhookSvc}
	apiHandlers := httpapi.Handlers{
		Auth:       authManager,
		Businesses: businesses,
		Ledger:     repo,
		Usage:      usageSvc,
		Reports:    reporting.NewService(repo),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, auth.RequireAccessToken(authManager), webhookHandlers, apiHandlers)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
