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

	"user-service/internal/config"
	"user-service/internal/db"
	"user-service/internal/health"
	apihttp "user-service/internal/http"
	"user-service/internal/metrics"
	"user-service/internal/repository"
	"user-service/internal/seed"
	"user-service/internal/service"
	"user-service/internal/telemetry"
	"user-service/internal/trace"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
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

	logger := newLogger(cfg)
	defer logger.Sync()

	m := metrics.New("user_service")

	var reporter telemetry.Reporter = telemetry.NopReporter{}
	var httpReporter *telemetry.HTTPReporter
	if cfg.TelemetryEnabled {
		httpReporter = telemetry.NewHTTPReporter(telemetry.HTTPReporterConfig{
			BaseURL:     cfg.TelemetryServiceURL,
			ServiceName: cfg.ServiceName,
			QueueSize:   cfg.TelemetryQueueSize,
			Workers:     cfg.TelemetryWorkers,
			Timeout:     cfg.TelemetryTimeout,
		}, logger, m)
		httpReporter.Start()
		reporter = httpReporter
	}
	tracer := trace.NewTracer(reporter, cfg.ServiceName, logger)

	var (
		userRepo repository.UserRepository
		probes   []health.Probe
	)
	if cfg.DatabaseURL != "" {
		if err := db.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			logger.Fatal("db migrations", zap.Error(err))
		}
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.WaitForDB(ctx, pool, logger, 10); err != nil {
			logger.Fatal("db not ready", zap.Error(err))
		}
		userRepo = repository.NewPgUserRepository(pool)
		probes = append(probes, health.NewDatabaseProbe(pool))
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory user store")
		userRepo = repository.NewMemoryUserRepository()
	}
	if cfg.TelemetryEnabled {
		probes = append(probes, health.NewTelemetryProbe(cfg.TelemetryServiceURL, func(rt http.RoundTripper) http.RoundTripper {
			return tracer.Transport(rt, "telemetry-service")
		}))
	}

	loginLimiter := service.NewLoginRateLimiter(cfg.LoginRateWindow, cfg.LoginRateMax)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory login limiter", zap.Error(err))
		} else {
			loginLimiter = service.NewRedisLoginRateLimiter(redisClient, cfg.LoginRateWindow, cfg.LoginRateMax)
		}
		cancel()
	}

	signingKey, err := cfg.SigningKey()
	if err != nil {
		logger.Fatal("jwt secret", zap.Error(err))
	}
	jwtSvc, err := service.NewJWTService(signingKey, cfg.JWTExpiration())
	if err != nil {
		logger.Fatal("jwt service", zap.Error(err))
	}
	if jwtSvc.WeakKey() {
		logger.Warn("jwt signing key is shorter than 256 bits, set a longer JWT_SECRET")
	}

	hasher := service.NewBcryptHasher(cfg.BcryptCost)
	userSvc := service.NewUserService(logger, userRepo, hasher, jwtSvc, tracer)

	if cfg.SeedData {
		if _, err := seed.Load(ctx, userRepo, hasher, logger); err != nil {
			logger.Error("seed data", zap.Error(err))
		}
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	userHandler := apihttp.NewUserHandler(logger, userSvc, jwtSvc, tracer, loginLimiter, m)
	healthHandler := apihttp.NewHealthHandler(health.NewChecker(probes...))
	router := apihttp.NewRouter(logger, tracer, m, userHandler, healthHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("service", cfg.ServiceName))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if httpReporter != nil {
		if err := httpReporter.Close(shutdownCtx); err != nil {
			logger.Warn("telemetry flush incomplete", zap.Error(err))
		}
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
