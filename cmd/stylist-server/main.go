// cmd/stylist-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stylist-pipeline/internal/common/aws"
	"stylist-pipeline/internal/common/config"
	"stylist-pipeline/internal/common/database"
	"stylist-pipeline/internal/common/genai"
	commonhttp "stylist-pipeline/internal/common/http"
	"stylist-pipeline/internal/common/logger"
	"stylist-pipeline/internal/common/observability"
	"stylist-pipeline/internal/imagestore"
	"stylist-pipeline/internal/notify"
	"stylist-pipeline/internal/pipeline"
	"stylist-pipeline/internal/server"
	analyzestyling "stylist-pipeline/internal/stages/analyze-styling"
	extractproductinfo "stylist-pipeline/internal/stages/extract-product-info"
	generatetryonimages "stylist-pipeline/internal/stages/generate-tryon-images"
	"stylist-pipeline/internal/wardrobe"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")

	zapLog.Info("Starting stylist pipeline server...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	// Rebuild the logger with the configured level and format.
	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(cfg.App.Name, os.Getenv("JAEGER_ENDPOINT"))
	if err != nil {
		zapLog.Warn("tracing disabled, jaeger init failed", zap.Error(err))
		tracing = nil
	} else {
		defer tracing.Shutdown()
	}

	ctx := context.Background()

	// --- Init PostgreSQL with retry (only the postgres wardrobe source needs it) ---
	var pg *database.PostgresClient
	if cfg.Wardrobe.Source == "postgres" {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Init Redis with retry (status publishing) ---
	var redis *database.RedisClient
	if cfg.Status.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- Wardrobe provider ---
	var provider wardrobe.Provider
	switch cfg.Wardrobe.Source {
	case "postgres":
		provider = wardrobe.NewPostgresProvider(pg)
	default:
		provider, err = wardrobe.NewFileProvider(cfg.Wardrobe.CatalogPath)
		if err != nil {
			zapLog.Fatal("wardrobe catalog load failed", zap.Error(err))
		}
	}
	zapLog.Info("Wardrobe provider ready", zap.String("source", cfg.Wardrobe.Source))

	// --- Model service and image resolver ---
	modelService := genai.NewService(cfg.Models, cfg.Pipeline.MaxImageRefs, &genaiLoggerAdapter{log})

	s3Client, err := aws.NewS3Client(ctx, cfg.Storage.S3.Region)
	if err != nil {
		zapLog.Fatal("s3 client init failed", zap.Error(err))
	}
	httpClient := commonhttp.NewClient(config.GetDuration(cfg.Storage.HTTP.FetchTimeout))
	resolver := imagestore.NewResolver(s3Client, httpClient, cfg.Storage.S3.Bucket, &imagestoreLoggerAdapter{log})

	// --- Stage handlers ---
	extractCfg := extractproductinfo.LoadConfig()
	extractCfg.HTMLMaxChars = cfg.Pipeline.HTMLMaxChars
	extractCfg.Budget = config.StageBudget(cfg, "extract")
	extractHandler := extractproductinfo.NewHandler(extractCfg, modelService, &extractLoggerAdapter{log})

	analysisCfg := analyzestyling.LoadConfig()
	analysisCfg.Budget = config.StageBudget(cfg, "analysis")
	analysisHandler := analyzestyling.NewHandler(analysisCfg, modelService, &analysisLoggerAdapter{log})

	imagesCfg := generatetryonimages.LoadConfig()
	imagesCfg.PrimaryBudget = config.StageBudget(cfg, "primary")
	imagesCfg.AngleBudget = config.StageBudget(cfg, "angle")
	imagesCfg.MaxWardrobeRefs = cfg.Pipeline.MaxWardrobeRefs
	imagesHandler := generatetryonimages.NewHandler(imagesCfg, modelService, resolver, &imagesLoggerAdapter{log})

	// --- Status observer ---
	var observer pipeline.StatusObserver = pipeline.NoopStatusObserver{}
	if cfg.Status.Enabled && redis != nil {
		observer = pipeline.NewRedisStatusObserver(redis, cfg.Status, &pipelineLoggerAdapter{log})
		zapLog.Info("Status publishing enabled", zap.String("channelPrefix", cfg.Status.ChannelPrefix))
	}

	// --- Completion notifier ---
	var notifier server.ResultNotifier
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		notifier = notify.NewService(cfg.Notifications, sesClient, snsClient, &notifyLoggerAdapter{log})
		zapLog.Info("Completion notifier enabled",
			zap.Bool("email", cfg.Notifications.Email.Enabled),
			zap.Bool("sms", cfg.Notifications.SMS.Enabled),
		)
	}

	// --- Orchestrator and router ---
	orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
		Config:   cfg,
		Wardrobe: provider,
		Extract:  extractHandler,
		Analyze:  analysisHandler,
		Images:   imagesHandler,
		Observer: observer,
		Metrics:  obs,
		Tracing:  tracing,
		Logger:   &pipelineLoggerAdapter{log},
	})

	router := server.NewRouter(server.Deps{
		Config:   cfg,
		Runner:   orchestrator,
		Wardrobe: provider,
		Notifier: notifier,
		Redis:    redis,
		Postgres: pg,
		Logger:   &serverLoggerAdapter{log},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Stylist pipeline server stopped gracefully")
}

// Logger adapters for packages that declare their own Logger interfaces

type genaiLoggerAdapter struct {
	logger.Logger
}

func (a *genaiLoggerAdapter) With(fields map[string]interface{}) genai.Logger {
	return &genaiLoggerAdapter{a.Logger.With(fields)}
}

type imagestoreLoggerAdapter struct {
	logger.Logger
}

func (a *imagestoreLoggerAdapter) With(fields map[string]interface{}) imagestore.Logger {
	return &imagestoreLoggerAdapter{a.Logger.With(fields)}
}

type extractLoggerAdapter struct {
	logger.Logger
}

func (a *extractLoggerAdapter) With(fields map[string]interface{}) extractproductinfo.Logger {
	return &extractLoggerAdapter{a.Logger.With(fields)}
}

type analysisLoggerAdapter struct {
	logger.Logger
}

func (a *analysisLoggerAdapter) With(fields map[string]interface{}) analyzestyling.Logger {
	return &analysisLoggerAdapter{a.Logger.With(fields)}
}

type imagesLoggerAdapter struct {
	logger.Logger
}

func (a *imagesLoggerAdapter) With(fields map[string]interface{}) generatetryonimages.Logger {
	return &imagesLoggerAdapter{a.Logger.With(fields)}
}

type pipelineLoggerAdapter struct {
	logger.Logger
}

func (a *pipelineLoggerAdapter) With(fields map[string]interface{}) pipeline.Logger {
	return &pipelineLoggerAdapter{a.Logger.With(fields)}
}

type notifyLoggerAdapter struct {
	logger.Logger
}

func (a *notifyLoggerAdapter) With(fields map[string]interface{}) notify.Logger {
	return &notifyLoggerAdapter{a.Logger.With(fields)}
}

type serverLoggerAdapter struct {
	logger.Logger
}

func (a *serverLoggerAdapter) With(fields map[string]interface{}) server.Logger {
	return &serverLoggerAdapter{a.Logger.With(fields)}
}
