package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"       // Postgres driver
	_ "modernc.org/sqlite"      // SQLite driver (local/dev)

	"github.com/brightsignal/opskit/pkg/audit"
	"github.com/brightsignal/opskit/pkg/config"
	"github.com/brightsignal/opskit/pkg/hardreset"
	"github.com/brightsignal/opskit/pkg/ops"
	"github.com/brightsignal/opskit/pkg/report"
	"github.com/brightsignal/opskit/pkg/toolkit"
)

// runtime bundles the wired toolkit shared by serve and run.
type runtime struct {
	cfg      *config.Config
	registry *toolkit.Registry
	exec     *toolkit.Executor
	issuer   *hardreset.Issuer
	db       *sql.DB
	logger   *slog.Logger
}

func (rt *runtime) Close() {
	if rt.db != nil {
		_ = rt.db.Close()
	}
}

// buildRuntime wires config into a ready executor: database, token issuer,
// report writer, audit log, business handlers.
func buildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	store := ops.NewSQLTenantStore(db)
	if err := store.Init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tenant store init: %w", err)
	}

	issuer, err := buildIssuer(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	gate := toolkit.NewSlotGate(cfg.ConcurrencyLimit)
	exec := toolkit.NewExecutor(gate).
		WithAudit(audit.NewLogger()).
		WithLogger(logger)
	if issuer != nil {
		exec = exec.WithTokenValidator(issuer)
	}

	if writer, err := buildReportWriter(ctx, cfg, logger); err != nil {
		_ = db.Close()
		return nil, err
	} else if writer != nil {
		exec = exec.WithReportWriter(writer)
	}

	rules, err := ops.NewCELRuleEngine(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	profiles, err := loadProfiles(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := toolkit.NewRegistry()
	if err := ops.Register(registry, ops.Deps{
		Resetter: store,
		Seeder:   ops.NewSQLScenarioSeeder(db),
		Rules:    rules,
		Profiles: profiles,
		Gate:     gate,
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		registry: registry,
		exec:     exec,
		issuer:   issuer,
		db:       db,
		logger:   logger,
	}, nil
}

// openDatabase picks the driver from the DSN scheme. An unset DATABASE_URL
// falls back to an on-disk SQLite file so local use needs no setup.
func openDatabase(dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = "file:opskit.db"
	}

	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database (%s): %w", driver, err)
	}
	return db, nil
}

// buildIssuer creates the hard-reset token issuer. Without an internal key
// there is no HKDF secret, so destructive commands stay blocked.
func buildIssuer(cfg *config.Config) (*hardreset.Issuer, error) {
	if cfg.InternalKey == "" {
		return nil, nil
	}

	var store hardreset.Store = hardreset.NewMemoryStore()
	if cfg.RedisAddr != "" {
		store = hardreset.NewRedisStore(cfg.RedisAddr, "", 0)
	}
	return hardreset.NewIssuer(store, cfg.InternalKey, cfg.TokenTTL)
}

// buildReportWriter returns nil when no roots are configured; the executor
// then refuses PersistReport requests.
func buildReportWriter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*report.Writer, error) {
	if len(cfg.ReportRoots) == 0 {
		return nil, nil
	}

	writer, err := report.NewWriter(cfg.ReportRoots)
	if err != nil {
		return nil, fmt.Errorf("report writer: %w", err)
	}

	if cfg.ReportS3Bucket != "" {
		archiver, err := report.NewS3Archiver(ctx, report.S3ArchiverConfig{
			Bucket:   cfg.ReportS3Bucket,
			Region:   cfg.ReportS3Region,
			Endpoint: cfg.ReportS3Endpoint,
			Prefix:   "toolkit-reports/",
		})
		if err != nil {
			return nil, err
		}
		writer = writer.WithArchiver(archiver)
		logger.Info("report archival enabled", "bucket", cfg.ReportS3Bucket)
	}
	return writer, nil
}

func loadProfiles(cfg *config.Config) (ops.StaticProfiles, error) {
	if cfg.ScenarioProfilesDir == "" {
		return ops.StaticProfiles{}, nil
	}
	profiles, err := config.LoadAllScenarioProfiles(cfg.ScenarioProfilesDir)
	if err != nil {
		return nil, fmt.Errorf("scenario profiles: %w", err)
	}
	return ops.StaticProfiles(profiles), nil
}

// newLogger builds the process slog logger honoring LOG_LEVEL.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// nowRFC3339 is the confirmation timestamp default for CLI destructive runs.
func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
