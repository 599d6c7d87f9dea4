package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/joshua-takyi/repairhub/internal/cache"
	"github.com/joshua-takyi/repairhub/internal/config"
	"github.com/joshua-takyi/repairhub/internal/connect"
	"github.com/joshua-takyi/repairhub/internal/container"
	"github.com/joshua-takyi/repairhub/internal/events"
	"github.com/joshua-takyi/repairhub/internal/helpers"
	"github.com/joshua-takyi/repairhub/internal/mailer"
	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/obs"
	"github.com/joshua-takyi/repairhub/internal/routes"
)

func main() {
	// Load environment variables
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("Starting RepairHub API server", "environment", cfg.Environment)

	ctx := context.Background()

	shutdownTracer := func(context.Context) error { return nil }
	if cfg.OTelEndpoint != "" {
		shutdownTracer, err = obs.InitTracer(ctx, cfg.OTelEndpoint, cfg.Environment)
		if err != nil {
			logger.Error("Failed to start tracing", "error", err)
			os.Exit(1)
		}
		logger.Info("Tracing enabled", "endpoint", cfg.OTelEndpoint)
	}

	mongoClient, err := connect.MongoDBConnect(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to MongoDB successfully", "database", cfg.MongoDBDatabase)

	repo := models.MongodbNewRepo(mongoClient, cfg.MongoDBDatabase)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Error("Failed to create indexes", "error", err)
		os.Exit(1)
	}

	tokens := helpers.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)
	if cfg.JWKSURL != "" {
		if err := tokens.LoadJWKS(ctx, cfg.JWKSURL); err != nil {
			logger.Error("Failed to load JWKS", "url", cfg.JWKSURL, "error", err)
			os.Exit(1)
		}
		logger.Info("Accepting admin tokens from identity provider", "url", cfg.JWKSURL)
	}

	integrations := setupIntegrations(ctx, cfg, logger)

	appContainer := container.NewContainer(cfg, logger, repo, tokens, integrations)

	if err := appContainer.AuthService.BootstrapAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Error("Failed to create bootstrap admin", "error", err)
		os.Exit(1)
	}
	if err := appContainer.ReminderService.Start(cfg.ReminderSchedule); err != nil {
		logger.Error("Failed to start reminders", "error", err)
		os.Exit(1)
	}

	router := routes.SetupRoutes(appContainer)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	appContainer.ReminderService.Stop()
	tokens.Close()

	if err := integrations.Events.Close(); err != nil {
		logger.Error("Error closing event publisher", "error", err)
	}
	if rc, ok := integrations.Cache.(*cache.RedisCache); ok {
		if err := rc.Close(); err != nil {
			logger.Error("Error closing Redis", "error", err)
		}
	}
	if err := connect.MongoDBDisconnect(mongoClient); err != nil {
		logger.Error("Error disconnecting from MongoDB", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("Error flushing traces", "error", err)
	}

	logger.Info("Server exited")
}

// setupIntegrations connects the optional outside systems. Redis and
// RabbitMQ failures degrade to local fallbacks instead of stopping startup.
func setupIntegrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) container.Integrations {
	var in container.Integrations

	if cfg.SMTPEnabled() {
		in.Mailer = mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailUser, cfg.EmailPass, cfg.MailFrom())
	} else {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
		in.Mailer = mailer.NewLogMailer(logger)
	}

	in.Cache = cache.NopCache{}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("Redis unavailable, caching disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			in.Cache = rc
			logger.Info("Connected to Redis", "addr", cfg.RedisAddr)
		}
	}

	in.Events = events.NopPublisher{}
	if cfg.RabbitURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, domain events disabled", "error", err)
		} else {
			in.Events = pub
			logger.Info("Publishing domain events", "exchange", cfg.EventsExchange)
		}
	}

	cld, err := connect.CloudinaryCredentials(cfg)
	switch {
	case err != nil:
		logger.Warn("Cloudinary unavailable, image uploads disabled", "error", err)
	case cld != nil:
		in.Uploader = helpers.NewCloudinaryUploader(cld)
		logger.Info("Cloudinary connected successfully")
	}
	return in
}

func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
