package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/apifactory/llm-gateway/config"
	"github.com/apifactory/llm-gateway/internal/metrics"
	"github.com/apifactory/llm-gateway/services/archive"
	"github.com/apifactory/llm-gateway/services/audit"
	"github.com/apifactory/llm-gateway/services/gateway"
	"github.com/apifactory/llm-gateway/services/keys"
	"github.com/apifactory/llm-gateway/services/model"
	"github.com/apifactory/llm-gateway/services/privacy"
	"github.com/apifactory/llm-gateway/services/ratelimit"
	"github.com/apifactory/llm-gateway/services/retention"
	"github.com/apifactory/llm-gateway/store"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	// Core services
	Keys      *keys.Service
	Limiter   ratelimit.Limiter
	Privacy   *privacy.Manager
	Retention *retention.Manager
	Trail     *audit.Trail
	Adapter   model.Adapter
	Gateway   *gateway.Service
	Metrics   *metrics.Metrics

	// Secondary durability sink; nil queue when archiving is disabled.
	ArchiveQueue  *archive.Queue
	archiveWriter *archive.PostgresWriter
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	sink, err := deps.initArchive(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive: %w", err)
	}

	if err := deps.initKeys(ctx, cfg, sink); err != nil {
		return nil, fmt.Errorf("failed to initialize key store: %w", err)
	}

	if err := deps.initLimiter(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	deps.Privacy = privacy.NewManager()
	deps.Retention = retention.NewManager(sink)

	deps.initTrail(cfg, sink)
	deps.Adapter = model.NewAdapter(model.Config{
		Endpoint:   cfg.Model.Endpoint,
		Timeout:    cfg.Model.Timeout,
		MaxRetries: cfg.Model.MaxRetries,
	}, logger)

	deps.Gateway = gateway.NewService(gateway.Config{
		MaxInputChars:     cfg.Guardrails.MaxInputChars,
		MaxOutputChars:    cfg.Guardrails.MaxOutputChars,
		ToxicityThreshold: cfg.Guardrails.ToxicityThreshold,
		DefaultModel:      cfg.Model.Default,
		AllowedModels:     cfg.Model.Allowed,
		ForceDefaultModel: cfg.Model.ForceDefault,
		ModelTimeout:      cfg.Model.Timeout,
	}, deps.Keys, deps.Limiter, deps.Privacy, deps.Retention, deps.Trail,
		deps.Adapter, deps.Metrics, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initArchive sets up the asynchronous Postgres sink. Archiving is best
// effort: when disabled, every mirroring consumer gets a no-op sink.
func (d *Dependencies) initArchive(ctx context.Context, cfg *config.Config) (archive.Sink, error) {
	if !cfg.Archive.Enabled {
		return archive.NopSink{}, nil
	}

	writer, err := archive.NewPostgresWriter(ctx, cfg.Archive.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect archive database: %w", err)
	}
	if err := writer.InitSchema(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}

	queue := archive.NewQueue(writer, cfg.Archive.QueueSize, cfg.Archive.Workers,
		d.Metrics.ArchiveDrops.Inc, d.Logger)
	queue.Start()

	d.ArchiveQueue = queue
	d.archiveWriter = writer
	d.Logger.Info("archive queue started",
		zap.Int("queue_size", cfg.Archive.QueueSize),
		zap.Int("workers", cfg.Archive.Workers))
	return queue, nil
}

func (d *Dependencies) initKeys(ctx context.Context, cfg *config.Config, sink archive.Sink) error {
	var st store.Store
	switch cfg.Auth.Backend {
	case "redis":
		client, err := store.NewRedisClient(ctx, cfg.Auth.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect auth redis: %w", err)
		}
		st = store.NewRedisStore(client)
		d.Logger.Info("key store using redis backend")
	default:
		st = store.NewMemoryStore()
		d.Logger.Info("key store using in-memory backend")
	}

	d.Keys = keys.NewService(st, sink, keys.Config{
		BootstrapKey:     cfg.Auth.BootstrapKey,
		BootstrapEnabled: cfg.Auth.BootstrapEnabled,
	}, d.Logger)
	return nil
}

func (d *Dependencies) initLimiter(ctx context.Context, cfg *config.Config) error {
	limiterCfg := ratelimit.Config{
		Window:   cfg.RateLimit.Window,
		Requests: cfg.RateLimit.Requests,
	}

	switch cfg.RateLimit.Backend {
	case "redis":
		client, err := store.NewRedisClient(ctx, cfg.RateLimit.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect rate limit redis: %w", err)
		}
		d.Limiter = ratelimit.NewRedisLimiter(client, limiterCfg, d.Logger)
		d.Logger.Info("rate limiter using redis backend")
	default:
		d.Limiter = ratelimit.NewMemoryLimiter(limiterCfg)
		d.Logger.Info("rate limiter using in-memory backend")
	}
	return nil
}

func (d *Dependencies) initTrail(cfg *config.Config, sink archive.Sink) {
	var redactor audit.Redactor
	if cfg.Audit.RedactPII {
		redactor = piiRedactor(d.Privacy)
	}

	d.Trail = audit.NewTrail(audit.Config{
		MaxEntries: cfg.Audit.MaxEntries,
		LogPath:    cfg.Audit.LogPath,
	}, redactor, sink, d.Logger)
}

// piiRedactor masks sensitive substrings in string-valued details before
// they are hashed into the trail. Nested maps and slices are walked so a
// credential or phone number buried in structured details is masked too.
func piiRedactor(mgr *privacy.Manager) audit.Redactor {
	return func(details map[string]interface{}) map[string]interface{} {
		out := make(map[string]interface{}, len(details))
		for k, v := range details {
			out[k] = redactValue(mgr, v)
		}
		return out
	}
}

func redactValue(mgr *privacy.Manager, v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		masked, _ := mgr.Anonymize(val, privacy.LevelPartial)
		return masked
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = redactValue(mgr, inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = redactValue(mgr, inner)
		}
		return out
	default:
		return v
	}
}

// ArchiveDropped reports how many archive jobs were discarded because the
// queue was full. Returns nil when archiving is disabled.
func (d *Dependencies) ArchiveDropped() func() int64 {
	if d.ArchiveQueue == nil {
		return nil
	}
	return d.ArchiveQueue.Dropped
}

// Close gracefully shuts down all dependencies.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.ArchiveQueue != nil {
		d.ArchiveQueue.Stop(10 * time.Second)
	}
	if d.archiveWriter != nil {
		if err := d.archiveWriter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close archive database: %w", err))
		}
	}

	if d.Trail != nil {
		if err := d.Trail.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close audit trail: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
