package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vbonduro/pullsheet/internal/audit"
	"github.com/vbonduro/pullsheet/internal/catalog"
	"github.com/vbonduro/pullsheet/internal/config"
	"github.com/vbonduro/pullsheet/internal/db"
	"github.com/vbonduro/pullsheet/internal/gesture"
	"github.com/vbonduro/pullsheet/internal/metrics"
	"github.com/vbonduro/pullsheet/internal/prefs/local"
	"github.com/vbonduro/pullsheet/internal/service"
	"github.com/vbonduro/pullsheet/internal/session"
	"github.com/vbonduro/pullsheet/internal/store"
)

// app holds every wired component. Close releases them in reverse order.
type app struct {
	profiles *store.ProfileStore
	metrics  *metrics.Metrics
	audit    *audit.Service
	pull     *service.PullService
	gate     *session.Gate
	admin    *service.AdminService
	closers  []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *app, err error) {
	database, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a = &app{metrics: metrics.New()}
	a.closers = append(a.closers, func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	})
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
	}
	logger.Info("catalog loaded", "items", cat.Len())

	prefsStore, err := local.NewLocalPrefsStore(cfg.PrefsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prefs store: %w", err)
	}

	auditOpts := audit.Options{Logger: logger, OnRecord: a.metrics.ObserveAudit}
	if cfg.NATSURL != "" {
		pub, err := audit.ConnectNATS(cfg.NATSURL)
		if err != nil {
			// Fan-out is best effort; the audit table stays authoritative.
			logger.Warn("audit fan-out disabled", "error", err)
		} else {
			logger.Info("publishing audit events", "url", cfg.NATSURL)
			auditOpts.Publisher = pub
			a.closers = append(a.closers, pub.Close)
		}
	}

	var archiver audit.Archiver
	if cfg.ExportS3Bucket != "" {
		s3a, err := audit.NewS3Archiver(ctx, audit.S3Config{
			Bucket:    cfg.ExportS3Bucket,
			Region:    cfg.ExportS3Region,
			Endpoint:  cfg.ExportS3Endpoint,
			PathStyle: cfg.ExportS3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize log archive: %w", err)
		}
		archiver = s3a
	}

	profiles := store.NewProfileStore(database)
	a.profiles = profiles
	a.audit = audit.NewService(store.NewInteractionStore(database), auditOpts)

	a.pull = service.NewPullService(
		store.NewQuantityStore(database),
		prefsStore,
		a.audit,
		cat,
		service.PullConfig{
			Gesture: gesture.Config{
				InitialDelay: cfg.RepeatInitialDelay,
				Interval:     cfg.RepeatInterval,
				MaxHold:      cfg.RepeatMaxHold,
				Clock:        gesture.RealClock,
			},
			ReconcileQueue: cfg.ReconcileQueue,
		},
		a.metrics,
		logger,
	)
	a.closers = append(a.closers, a.pull.Close)

	a.gate = session.NewGate(profiles, store.NewSessionStore(database), a.audit, session.Options{
		Logger:    logger,
		OnSignOut: a.pull.CloseWorkspace,
	})
	a.admin = service.NewAdminService(profiles, a.audit, a.gate, archiver, logger)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
