package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/photoblog-ai/internal/config"
	"github.com/kirillkom/photoblog-ai/internal/core/aiquery"
	"github.com/kirillkom/photoblog-ai/internal/core/domain"
	"github.com/kirillkom/photoblog-ai/internal/core/ports"
	"github.com/kirillkom/photoblog-ai/internal/core/usecase"
	"github.com/kirillkom/photoblog-ai/internal/infrastructure/llm/openai"
	"github.com/kirillkom/photoblog-ai/internal/infrastructure/queue/nats"
	"github.com/kirillkom/photoblog-ai/internal/infrastructure/ratelimit"
	"github.com/kirillkom/photoblog-ai/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/photoblog-ai/internal/infrastructure/resilience"
	"github.com/kirillkom/photoblog-ai/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/photoblog-ai/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue         *nats.Queue
	Syncer        *usecase.SyncPhotosUseCase
	Streamer      *usecase.QueryStreamUseCase
	Regenerations *usecase.RunRegistry
	AutoFields    domain.FieldSet

	closeFn func()
}

// Options select the per-binary startup steps.
type Options struct {
	// RecoverRuns marks runs left running by a previous process as failed.
	// Only the binary that owns regeneration runs should set it.
	RecoverRuns bool
}

// New wires the AI pipeline. Background regeneration runs live as long as ctx.
func New(ctx context.Context, cfg config.Config, aiMetrics *metrics.AIMetrics, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := aiquery.LoadCatalog(cfg.AIPromptsFile)
	if err != nil {
		return nil, fmt.Errorf("load prompt catalog: %w", err)
	}
	policies, err := degradePolicies(cfg)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	photos := postgres.NewPhotoRepository(db)
	runs := postgres.NewRunRepository(db)
	if opts.RecoverRuns {
		recoverRuns(ctx, runs, logger)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init photo storage: %w", err)
	}

	limiter, redisClient, err := modelRateLimiter(ctx, cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(nats.PublishResilienceConfig()),
		Logger:             logger,
	})
	if err != nil {
		closeRedis(redisClient)
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	client := openai.New(openAIConfig(cfg),
		openai.WithRateLimiter(limiter),
		openai.WithObserver(aiMetrics),
	)
	if !client.Enabled() {
		logger.Warn("ai_model_not_configured", "hint", "set OPENAI_SECRET_KEY to enable generation")
	}

	generator := usecase.NewGenerateFieldsUseCase(client, executor, catalog, policies, aiMetrics, logger)
	syncer := usecase.NewSyncPhotosUseCase(photos, storage, generator, logger)
	regenerator := usecase.NewRegenerateUseCase(photos, syncer, usecase.RegenerateOptions{
		BatchSize:    cfg.RegenBatchSize,
		BatchDelay:   cfg.RegenBatchDelay,
		Strict:       cfg.RegenStrict,
		BatchTimeout: cfg.RegenBatchTimeout,
	}, aiMetrics, logger)
	registry := usecase.NewRunRegistry(ctx, regenerator, runs, aiMetrics.SetRegenerationProgress, logger)
	streamer := usecase.NewQueryStreamUseCase(photos, storage, client, catalog)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:         queue,
		Syncer:        syncer,
		Streamer:      streamer,
		Regenerations: registry,
		AutoFields:    domain.ParseFieldSetText(cfg.AIAutoGeneratedText),

		closeFn: func() {
			registry.Wait()
			queue.Close()
			closeRedis(redisClient)
			_ = db.Close()
		},
	}, nil
}

// UploadHook builds the handler for upload events with the configured field set.
func (a *App) UploadHook(recorder usecase.SyncRecorder) ports.UploadHandler {
	return usecase.NewUploadHookUseCase(a.Syncer, a.AutoFields, recorder, a.Logger)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

type runRecoverer interface {
	MarkInterrupted(ctx context.Context) (int64, error)
}

func recoverRuns(ctx context.Context, runs runRecoverer, logger *slog.Logger) {
	interrupted, err := runs.MarkInterrupted(ctx)
	if err != nil {
		logger.Warn("regeneration_recovery_failed", "error", err)
		return
	}
	if interrupted > 0 {
		logger.Warn("regeneration_runs_interrupted", "count", interrupted)
	}
}

func degradePolicies(cfg config.Config) (aiquery.DegradePolicies, error) {
	bilingual, err := aiquery.ParseDegradePolicy(cfg.DegradeBilingual)
	if err != nil {
		return aiquery.DegradePolicies{}, fmt.Errorf("DEGRADE_BILINGUAL: %w", err)
	}
	titleCaption, err := aiquery.ParseDegradePolicy(cfg.DegradeTitleCaption)
	if err != nil {
		return aiquery.DegradePolicies{}, fmt.Errorf("DEGRADE_TITLE_CAPTION: %w", err)
	}
	tags, err := aiquery.ParseDegradePolicy(cfg.DegradeTags)
	if err != nil {
		return aiquery.DegradePolicies{}, fmt.Errorf("DEGRADE_TAGS: %w", err)
	}
	return aiquery.DegradePolicies{
		Bilingual:       bilingual,
		TitleAndCaption: titleCaption,
		Tags:            tags,
	}, nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.MaxRetries = cfg.AIRetryMax
	rc.BaseDelay = cfg.AIRetryDelay
	rc.MaxDelay = cfg.AIRetryMaxDelay
	rc.Backoff = resilience.ParseBackoff(cfg.AIRetryBackoff)
	rc.BreakerEnabled = cfg.AIBreakerEnabled
	return rc
}

func openAIConfig(cfg config.Config) openai.Config {
	oc := openai.Config{
		APIKey:        cfg.OpenAIAPIKey,
		BaseURL:       cfg.OpenAIBaseURL,
		Model:         cfg.OpenAIModel,
		CuratorPrefix: cfg.AICuratorPrefix,
		Timeout:       cfg.OpenAITimeout,
	}
	if cfg.AISamplingEnabled {
		sampling := openai.DefaultSamplingParams()
		oc.Sampling = &sampling
	}
	return oc
}

// modelRateLimiter returns the Redis sliding window, or no limit when Redis
// is not configured or the quota is not positive.
func modelRateLimiter(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.RateLimiter, *redis.Client, error) {
	if cfg.AIRateLimitPerHour <= 0 {
		logger.Warn("ai_rate_limit_disabled", "reason", "AI_RATE_LIMIT_PER_HOUR is not positive")
		return ratelimit.Unlimited{}, nil, nil
	}
	if cfg.RedisURL == "" {
		logger.Warn("ai_rate_limit_disabled", "reason", "REDIS_URL is empty")
		return ratelimit.Unlimited{}, nil, nil
	}
	client, err := ratelimit.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("init rate limit store: %w", err)
	}
	return ratelimit.NewSlidingWindow(client, cfg.AIRateLimitPerHour, time.Hour), client, nil
}

func closeRedis(client *redis.Client) {
	if client != nil {
		_ = client.Close()
	}
}
