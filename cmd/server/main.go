package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"windplex/internal/api/middleware"
	"windplex/internal/api/routes"
	"windplex/internal/config"
	"windplex/internal/logging"
	"windplex/internal/models"
	"windplex/internal/notify"
	"windplex/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// The config file is optional; environment variables cover deployments
	// without one.
	if _, err := os.Stat(*configPath); errors.Is(err, os.ErrNotExist) {
		*configPath = ""
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON})
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := models.Open(cfg)
	if err != nil {
		return err
	}
	defer models.Close(db)

	// Create the bootstrap admin if the admin table is empty
	authService := services.NewAuthService(db, services.BcryptHasher{Cost: cfg.Security.BcryptCost})
	created, err := authService.EnsureDefaultAdmin(ctx, cfg.DefaultAdmin.Username, cfg.DefaultAdmin.Password)
	if err != nil {
		logger.Warn("default admin not created", "err", err)
	} else if created {
		logger.Info("default admin created", "username", cfg.DefaultAdmin.Username)
	}

	// Notifications
	relayer, err := newRelayer(cfg, db, logger)
	if err != nil {
		return err
	}
	relayer.Start(ctx)
	defer relayer.Close()

	// Expired sessions are removed lazily on lookup; the sweeper only keeps
	// the table small.
	ttl, _ := cfg.SessionTTL()
	sessions := services.NewSessionService(db, ttl)
	go sessions.RunSweeper(ctx, time.Hour, func(err error) {
		logger.Warn("session sweep failed", "err", err)
	})

	limiter, closeLimiter, err := newLimiter(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	// Create router
	r := gin.New()
	routes.SetupRoutes(r, routes.Deps{
		Config:  cfg,
		DB:      db,
		Logger:  logger,
		Limiter: limiter,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting windplex server", "addr", addr, "mode", cfg.Server.Mode, "database", cfg.Database.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRelayer wires every configured sink. With none configured events are
// written to the log.
func newRelayer(cfg *config.Config, db *gorm.DB, logger *slog.Logger) (*notify.Relayer, error) {
	n := cfg.Notify
	var sinks []notify.Sink

	if n.Discord.SubmissionsWebhook != "" || n.Discord.PagesWebhook != "" {
		sinks = append(sinks, notify.NewDiscordSink(n.Discord.SubmissionsWebhook, n.Discord.PagesWebhook, cfg.Server.PublicBaseURL))
	}
	if len(n.Kafka.Brokers) > 0 {
		sinks = append(sinks, notify.NewKafkaSink(n.Kafka.Brokers, n.Kafka.Topic))
	}
	if n.SMTP.Host != "" {
		sinks = append(sinks, notify.NewMailSink(notify.SMTPConfig{
			Host:     n.SMTP.Host,
			Port:     n.SMTP.Port,
			Username: n.SMTP.Username,
			Password: n.SMTP.Password,
			From:     n.SMTP.From,
		}, cfg.Server.PublicBaseURL))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, notify.LogSink{Logger: logger})
	}

	interval, err := cfg.RelayInterval()
	if err != nil {
		return nil, err
	}
	return notify.NewRelayer(db, sinks, notify.RelayerOptions{
		Interval:   interval,
		BatchSize:  n.BatchSize,
		MaxRetries: n.MaxRetries,
	}, logger), nil
}

// newLimiter returns the login/registration limiter: Redis-backed when an
// address is configured, in memory otherwise, nil when disabled.
func newLimiter(cfg *config.Config, logger *slog.Logger) (middleware.Limiter, func(), error) {
	rl := cfg.Security.RateLimit
	if !rl.Enabled {
		return nil, func() {}, nil
	}
	if rl.Redis.Addr != "" {
		client, err := middleware.NewRedisClient(rl.Redis.Addr, rl.Redis.Password, rl.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("rate limiting through redis", "addr", rl.Redis.Addr)
		return middleware.NewRedisLimiter(client, rl.RequestsPerMinute, time.Minute), func() { _ = client.Close() }, nil
	}
	l := middleware.NewMemoryLimiter(rl.RequestsPerMinute, time.Minute)
	return l, l.Stop, nil
}
