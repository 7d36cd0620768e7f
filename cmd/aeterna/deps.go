package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/kikokikok/aeterna-sub000/internal/config"
	"github.com/kikokikok/aeterna-sub000/internal/govern"
	"github.com/kikokikok/aeterna-sub000/internal/store"
	"github.com/kikokikok/aeterna-sub000/internal/telemetry"
	"github.com/kikokikok/aeterna-sub000/pkg/approval"
	"github.com/kikokikok/aeterna-sub000/pkg/backup"
	"github.com/kikokikok/aeterna-sub000/pkg/confirmation"
	"github.com/kikokikok/aeterna-sub000/pkg/govconfig"
	"github.com/kikokikok/aeterna-sub000/pkg/graph"
	"github.com/kikokikok/aeterna-sub000/pkg/llmhook"
	"github.com/kikokikok/aeterna-sub000/pkg/lock"
	"github.com/kikokikok/aeterna-sub000/pkg/metapolicy"
	"github.com/kikokikok/aeterna-sub000/pkg/notify"
	"github.com/kikokikok/aeterna-sub000/pkg/policytranslate"
	"github.com/kikokikok/aeterna-sub000/pkg/repomanager"
	"github.com/kikokikok/aeterna-sub000/pkg/scheduler"
	"github.com/kikokikok/aeterna-sub000/pkg/tenant"
)

// deps bundles every wired service cmd/aeterna's commands call into. Built
// once per invocation by newDeps; Close releases the store and audit sink.
type deps struct {
	cfg    *config.Config
	logger *slog.Logger

	db    *store.Store
	redis *redis.Client
	audit *govern.AuditSink

	tenants       *tenant.Service
	policies      *metapolicy.Service
	graphSvc      *graph.Service
	approvals     *approval.Service
	confirmations *confirmation.Service
	backups       *backup.Service
	lockSvc       *lock.Service
	govconf       *govconfig.Store
	scheduler     *scheduler.Scheduler

	notifier    notify.Notifier
	translator  policytranslate.Translator
	repoManager repomanager.Manager
}

// newDeps loads config and wires every service. Redis connectivity is
// attempted but not required — the lock service degrades gracefully
// (spec.md §4.3/§4.4) and most CLI commands never touch it.
func newDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := db.Migrate(cfg.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	audit := govern.NewAuditSink(db.DB, logger)
	audit.Start(ctx)

	var rdb *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err == nil {
		rdb = redis.NewClient(opts)
	} else {
		logger.Warn("invalid REDIS_URL, distributed locking disabled", "error", err)
	}

	tenants := tenant.NewService(tenant.NewStore(db.DB))
	policyStore := metapolicy.NewStore(db.DB)
	policies := metapolicy.NewService(policyStore, tenants)
	graphSvc := graph.NewService(db, logger, audit)
	approvals := approval.NewService(db, policies, audit)
	confirmations := confirmation.NewService(confirmation.NewStore(db.DB))
	govconf := govconfig.NewStore(db.DB)

	blobRoot := filepath.Join(filepath.Dir(cfg.StorePath), "backups")
	blobs, err := backup.NewFilesystemBlobStore(blobRoot)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening blob store: %w", err)
	}
	backups := backup.NewService(blobs, graphSvc, "aeterna", audit)

	var lockSvc *lock.Service
	if rdb != nil {
		lockSvc = lock.NewService(rdb, logger)
	}

	var llm llmhook.AnalyzeDrift = llmhook.NoopHook{}
	if cfg.AnthropicAPIKey != "" {
		llm = llmhook.NewAnthropicHook(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	}

	sched := scheduler.New(scheduler.Config{
		DB:                   db,
		Lock:                 lockSvc,
		Units:                tenants,
		DeploymentMode:       cfg.DeploymentMode,
		QuickScanInterval:    cfg.QuickScanInterval,
		SemanticScanInterval: cfg.SemanticScanInterval,
		ReportInterval:       cfg.ReportInterval,
		DLQInterval:          cfg.DLQInterval,
		LLM:                  llm,
		Logger:               logger,
	})

	return &deps{
		cfg:    cfg,
		logger: logger,

		db:    db,
		redis: rdb,
		audit: audit,

		tenants:       tenants,
		policies:      policies,
		graphSvc:      graphSvc,
		approvals:     approvals,
		confirmations: confirmations,
		backups:       backups,
		lockSvc:       lockSvc,
		govconf:       govconf,
		scheduler:     sched,

		notifier:    notify.NewLogNotifier(logger),
		translator:  policytranslate.NewKeywordTranslator(),
		repoManager: repomanager.NewNoopManager(),
	}, nil
}

// Close releases the audit sink and store. Safe to call once per newDeps.
func (d *deps) Close() {
	d.audit.Close()
	if d.redis != nil {
		_ = d.redis.Close()
	}
	_ = d.db.Close()
}
