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

	"github.com/AnshRaj112/tasknest-backend/internal/config"
	"github.com/AnshRaj112/tasknest-backend/internal/database"
	"github.com/AnshRaj112/tasknest-backend/internal/handlers"
	"github.com/AnshRaj112/tasknest-backend/internal/middleware"
	"github.com/AnshRaj112/tasknest-backend/internal/routes"
	"github.com/AnshRaj112/tasknest-backend/internal/services"
	"github.com/AnshRaj112/tasknest-backend/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found")
	}
	logging.Setup()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	mongo, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		fatal("failed to connect to MongoDB", err)
	}
	defer func() {
		if err := mongo.Disconnect(); err != nil {
			slog.Error("error disconnecting MongoDB", "error", err)
		}
	}()

	users := services.NewMongoUserStore(mongo.DB)
	if err := users.EnsureIndexes(ctx); err != nil {
		fatal("failed to ensure user indexes", err)
	}

	rdb, err := database.ConnectRedis(ctx, cfg.RedisURI)
	if err != nil {
		fatal("failed to connect to Redis", err)
	}
	defer rdb.Close()

	if !cfg.CloudinaryConfigured() {
		fatal("avatar storage unavailable", errors.New("CLOUDINARY_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required"))
	}
	avatars, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	if err != nil {
		fatal("failed to initialize Cloudinary", err)
	}

	var sender services.MailSender = services.LogMailer{}
	if cfg.SMTPConfigured() {
		smtp, err := services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPMail, cfg.SMTPPassword)
		if err != nil {
			fatal("failed to initialize SMTP mailer", err)
		}
		sender = smtp
	} else {
		slog.Warn("SMTP not configured, one-time codes will only be logged")
	}

	mailQueue := services.NewMailQueue(rdb, sender, cfg.MailMaxAttempts)
	go mailQueue.Run(ctx)

	services.StartOTPCleanup(ctx, users, cfg.OTPSweepInterval)

	tokens := services.NewTokenService(cfg.JWTSecret, cfg.TokenTTL())
	revoker := services.NewTokenRevoker(rdb)
	accounts := services.NewAccountService(users, services.NewOTPManager(cfg.OTPTTL()), avatars, mailQueue)

	deps := routes.Deps{
		Handler: handlers.New(accounts, tokens, revoker, handlers.Options{
			MaxUploadBytes: cfg.MaxUploadBytes(),
			SecureCookies:  cfg.IsProduction(),
		}),
		RequireAuth:    middleware.RequireAuth(tokens, revoker, users),
		AuthRateLimit:  middleware.AuthRateLimit(rdb, cfg.AuthRateLimit, cfg.AuthRateWindow),
		AllowedOrigins: cfg.AllowedOrigins,
		Production:     cfg.IsProduction(),
		TrustProxy:     cfg.TrustProxy,
		Ping: func(ctx context.Context) error {
			if err := mongo.Client.Ping(ctx, nil); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	}
	if cfg.IsProduction() {
		limiter := middleware.NewGlobalRateLimiter()
		limiter.StartCleanup(ctx)
		deps.GlobalRateLimit = limiter.Middleware
		slog.Info("production security enabled", "security_headers", true, "global_rate_limit", true)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server started", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	// stop background workers before draining connections
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
