package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/skill-training-api/api/swagger"
	"github.com/noah-isme/skill-training-api/internal/handler"
	"github.com/noah-isme/skill-training-api/internal/repository"
	"github.com/noah-isme/skill-training-api/internal/service"
	"github.com/noah-isme/skill-training-api/pkg/cache"
	"github.com/noah-isme/skill-training-api/pkg/config"
	"github.com/noah-isme/skill-training-api/pkg/database"
	"github.com/noah-isme/skill-training-api/pkg/jobs"
	"github.com/noah-isme/skill-training-api/pkg/logger"
	"github.com/noah-isme/skill-training-api/pkg/storage"
)

// @title Skill Training API
// @version 1.0.0
// @description Training hour tracking for skills competition competitors.
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	location, err := time.LoadLocation(cfg.Training.Timezone)
	if err != nil {
		return fmt.Errorf("load training timezone %q: %w", cfg.Training.Timezone, err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		checks["redis"] = redisPing(redisClient)
	}

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init evidence storage: %w", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	users := repository.NewUserRepository(db)
	modalities := repository.NewModalityRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	sessions := repository.NewTrainingSessionRepository(db)
	evidence := repository.NewEvidenceRepository(db)

	cleaner := service.NewEvidenceCleaner(store, jobs.QueueConfig{
		Workers:    cfg.Cleanup.Workers,
		MaxRetries: cfg.Cleanup.MaxRetries,
		RetryDelay: cfg.Cleanup.RetryDelay,
		Logger:     logr,
	})
	cleaner.Start(ctx)
	defer cleaner.Stop()

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cfg.Analytics.Enabled)
	analyticsSvc := service.NewAnalyticsService(sessions, cacheSvc, metrics, logr)
	rules := service.NewTrainingValidationService(enrollments, sessions, location, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollments, users, modalities, users, validate, logr)
	modalitySvc := service.NewModalityService(modalities, users, validate, logr)
	trainingSvc := service.NewTrainingService(service.TrainingServiceDeps{
		Sessions:    sessions,
		Enrollments: enrollments,
		Evidence:    evidence,
		Tx:          database.NewLockingTransactor(db),
		Rules:       rules,
		Analytics:   analyticsSvc,
		Cleaner:     cleaner,
		Audit:       users,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
	})
	evidenceSvc := service.NewEvidenceService(evidence, sessions, enrollments, store,
		storage.NewSignedURLSigner(cfg.Evidence.SignedURLSecret, cfg.Evidence.SignedURLTTL),
		cleaner, users, validate, logr, service.EvidenceServiceConfig{
			MaxFileSizeBytes: cfg.Evidence.MaxFileSizeBytes,
			DownloadBaseURL:  cfg.Evidence.PublicBaseURL,
		}).WithMetrics(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(cfg, logr, routeDeps{
		tokens:      service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer),
		metrics:     metrics,
		health:      handler.NewMetricsHandler(metrics, checks, logr),
		modalities:  handler.NewModalityHandler(modalitySvc),
		enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		trainings:   handler.NewTrainingHandler(trainingSvc),
		evidence:    handler.NewEvidenceHandler(evidenceSvc),
		analytics:   handler.NewAnalyticsHandler(analyticsSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
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

	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logr.Info("server stopped")
	return nil
}

func newObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.Evidence.StorageDriver {
	case config.StorageDriverMinIO:
		return storage.NewMinIOStorage(ctx, cfg.MinIO)
	case config.StorageDriverLocal, "":
		return storage.NewLocalStorage(cfg.Evidence.StorageDir)
	default:
		return nil, fmt.Errorf("unknown evidence storage driver %q", cfg.Evidence.StorageDriver)
	}
}

func redisPing(client *redis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
