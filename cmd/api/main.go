package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auth-gate/internal/captcha"
	"auth-gate/internal/config"
	"auth-gate/internal/db"
	"auth-gate/internal/email"
	apihttp "auth-gate/internal/http"
	"auth-gate/internal/repository"
	"auth-gate/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var userRepo repository.UserRepository
	switch cfg.StorageDriver {
	case "mongo":
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			logger.Fatal("mongo connect", zap.Error(err))
		}
		defer func() {
			ctxClose, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctxClose)
		}()
		ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Ping(ctxPing, nil); err != nil {
			logger.Fatal("mongo ping", zap.Error(err))
		}
		cancel()
		repo, err := repository.NewMongoUserRepository(ctx, client.Database(cfg.MongoDatabase))
		if err != nil {
			logger.Fatal("mongo user repository", zap.Error(err))
		}
		userRepo = repo
	default:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := db.Ping(ctxPing, pool); err != nil {
			logger.Fatal("db ping", zap.Error(err))
		}
		cancel()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal("db schema", zap.Error(err))
		}
		userRepo = repository.NewPgUserRepository(pool)
	}

	clock := service.SystemClock()
	sessions := service.NewMemorySessionStore(clock)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory sessions", zap.Error(err))
		} else {
			sessions = service.NewRedisSessionStore(redisClient)
		}
		cancel()
	} else {
		logger.Warn("redis not configured, using in-memory sessions")
	}

	hasher, err := service.NewHasher(cfg.PasswordHasher, 0)
	if err != nil {
		logger.Fatal("password hasher", zap.Error(err))
	}
	validator, err := service.NewValidator()
	if err != nil {
		logger.Fatal("validator", zap.Error(err))
	}

	var transport email.Sender = email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			transport = sender
		}
	}
	mailer := email.NewAsyncSender(logger, transport, cfg.EmailQueueSize, cfg.EmailRetries, 2*time.Second)
	defer mailer.Close()

	state := service.NewAccountState(userRepo, service.NewCodeGenerator(), hasher, clock, cfg.CodeTTL(), cfg.TwoFactorSessionTTL())
	pending := service.NewPendingVerification(sessions, cfg.CodeTTL())
	flow := service.NewAuthFlow(logger, userRepo, state, pending, sessions, hasher, mailer, validator, service.AuthFlowOptions{
		TwoFactorEmail: cfg.TwoFactorEmail,
		PrincipalTTL:   cfg.SessionTTL(),
	})
	if !cfg.TwoFactorEmail {
		logger.Warn("two factor codes are not emailed")
	}

	verifier := captcha.New(cfg.CaptchaVerifyURL, cfg.CaptchaSecret, logger)
	if cfg.CaptchaSecret == "" {
		logger.Warn("captcha secret not configured, captcha disabled")
	}

	tokens := service.NewSessionTokenService(cfg.SessionSecret, cfg.SessionTTL(), clock)
	authHandler := apihttp.NewAuthHandler(
		logger,
		flow,
		tokens,
		cfg.SessionCookieSecure,
		apihttp.NewFlash(sessions, cfg.SessionTTL()),
		verifier,
		clock,
	)
	router := apihttp.NewRouter(logger, authHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("storage", cfg.StorageDriver))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
