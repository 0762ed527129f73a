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

	"aidirectory/cache"
	"aidirectory/config"
	"aidirectory/db"
	"aidirectory/handlers"
	"aidirectory/logger"
	"aidirectory/middleware"
	"aidirectory/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// lapseFanout forwards expiry sweep results to every recorder.
type lapseFanout []services.LapseRecorder

func (f lapseFanout) SubscriptionsLapsed(count int) {
	for _, r := range f {
		r.SubscriptionsLapsed(count)
	}
}

func main() {
	cfg := config.Load()
	zl, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := cfg.Validate(); err != nil {
		zl.Fatal("invalid configuration", zap.Error(err))
	}
	gin.SetMode(cfg.GinMode)

	features := cfg.Features
	zl.Info("booting",
		zap.String("version", handlers.Version),
		zap.Bool("billing", features.BillingEnabled),
		zap.Bool("export", features.ExportEnabled),
		zap.Bool("metrics", features.MetricsEnabled),
		zap.Bool("email", features.EmailEnabled))

	ctx := context.Background()
	conn, err := db.Open(ctx, db.Options{
		URL:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		zl.Fatal("failed to apply migrations", zap.Error(err))
	}
	zl.Info("database schema verified")

	store := db.NewStore(conn)
	if cfg.Auth.AdminEmail != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Auth.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			zl.Fatal("failed to hash admin password", zap.Error(err))
		}
		if err := store.EnsureAdmin(ctx, cfg.Auth.AdminEmail, string(hash)); err != nil {
			zl.Fatal("failed to ensure admin account", zap.Error(err))
		}
		zl.Info("admin account ready", zap.String("email", cfg.Auth.AdminEmail))
	}

	var kv cache.KV = cache.Nop{}
	if cfg.Redis.Addr != "" {
		rkv, err := cache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zl.Warn("redis unavailable, caching disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			defer rkv.Close()
			kv = rkv
		}
	}

	var mailer *services.Mailer
	if features.EmailEnabled {
		mailer = services.NewMailer(cfg.Notify.SendGridAPIKey, cfg.Notify.MailFrom)
	}
	notifications := services.NewNotifications(mailer, services.NewSlackNotifier(cfg.Notify.SlackWebhookURL), zl)

	var metrics *middleware.Metrics
	if features.MetricsEnabled {
		metrics = middleware.NewMetrics()
	}

	sweeper := services.NewExpirySweeper(store, lapseFanout{notifications, metrics}, kv, zl, cfg.ExpirySchedule)
	if err := sweeper.Start(); err != nil {
		zl.Fatal("failed to schedule expiry sweep", zap.Error(err))
	}

	tokens := services.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	api := handlers.NewAPI(handlers.Deps{
		Store:    store,
		DB:       conn,
		Tokens:   tokens,
		Uploads:  services.NewUploader(cfg.Uploads.Dir, cfg.Uploads.MaxBytes),
		Notify:   notifications,
		Cache:    kv,
		CacheTTL: cfg.Redis.TTL,
		Metrics:  metrics,
		Features: features,
		Logger:   zl,
	})
	router := handlers.NewRouter(api,
		middleware.NewAuth(tokens, store, zl),
		middleware.NewRateLimiter(cfg.Auth.RatePerSecond, cfg.Auth.RateBurst, zl))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		zl.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
	sweeper.Stop()
	notifications.Wait()
	zl.Info("stopped")
}
