package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"pimsync_api/config"
	"pimsync_api/internal/catalog/app/web"
	"pimsync_api/internal/catalog/app/web/handlers"
	"pimsync_api/internal/catalog/business/services/assets"
	"pimsync_api/internal/catalog/business/services/importer"
	"pimsync_api/internal/catalog/settings"
	"pimsync_api/internal/catalog/storage"
	"pimsync_api/internal/pim/clients"
	catalogmigrations "pimsync_api/migrations/catalog"
	"pimsync_api/pkg/dbconnect"
	"pimsync_api/pkg/dbconnect/migration"
	"pimsync_api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

type CatalogServer struct {
	dbconnect.Database
	cfg *config.AppConfig
	log logger.Logger
}

func NewCatalogServer(cfg *config.AppConfig, dbCon dbconnect.Database, log logger.Logger) *CatalogServer {
	return &CatalogServer{Database: dbCon, cfg: cfg, log: log.WithPrefix("server")}
}

// Run connects, migrates and serves until ctx is done.
func (s *CatalogServer) Run(ctx context.Context) error {
	db, err := s.Connect()
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()

	if err := migration.Apply(db, s.log, catalogmigrations.All()...); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	s.log.Info("catalog migrations applied")

	deps, closeDeps, err := s.buildDeps(ctx, db)
	if err != nil {
		return err
	}
	defer closeDeps()

	engine := importer.NewEngine(deps, s.log)
	scheduler, err := NewScheduler(engine, s.cfg.Import.CronSpec, s.cfg.Import.CronEnabled, s.log)
	if err != nil {
		return err
	}

	router, err := web.SetupRoutes(s.cfg.HTTP.JWTSecret, s.log,
		handlers.NewImportHandler(engine, s.log),
		handlers.NewSyncHandler(scheduler, s.log),
		handlers.NewHealthHandler(s.Ping, s.log),
	)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		s.log.Info("admin api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *CatalogServer) buildDeps(ctx context.Context, db *sql.DB) (importer.Deps, func(), error) {
	cfg := s.cfg
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var lock storage.ImportLock
	switch cfg.Import.LockBackend {
	case "redis":
		rdb, err := storage.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return importer.Deps{}, nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		lock = storage.NewRedisLock(rdb, cfg.Redis.LockKey)
	case "memory":
		lock = storage.NewMemoryLock(time.Now)
	default:
		lock = storage.NewPostgresLock(db, cfg.Redis.LockKey)
	}

	var blobs storage.BlobStore
	switch cfg.Storage.Backend {
	case "gcs":
		gcsStore, err := storage.NewGCSBlobStore(ctx, storage.GCSConfig{
			Bucket:          cfg.Storage.Bucket,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
			CredentialsFile: cfg.Storage.CredentialsFile,
			EmulatorHost:    cfg.Storage.EmulatorHost,
		})
		if err != nil {
			closeAll()
			return importer.Deps{}, nil, err
		}
		closers = append(closers, func() { _ = gcsStore.Close() })
		blobs = gcsStore
	default:
		local, err := storage.NewLocalBlobStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
		if err != nil {
			closeAll()
			return importer.Deps{}, nil, err
		}
		blobs = local
	}

	var store settings.Store = settings.NewMapStore(settings.FromConfig(cfg))
	if cfg.SettingsBackend == "postgres" {
		store = settings.Fallback{Primary: settings.NewPostgresStore(db), Secondary: store}
	}

	deps := importer.Deps{
		Records:   storage.NewPostgresRecordStore(db),
		Terms:     storage.NewPostgresTermStore(db),
		Blobs:     blobs,
		Lock:      lock,
		Settings:  store,
		Snapshots: storage.NewPostgresRequirementSetStore(db),
		NewClient: s.clientFactory(),
		Assets: assets.Config{
			AssetBaseURL: cfg.PIM.AssetBaseURL,
			ImageSize:    cfg.PIM.ImageSize,
			Timeout:      cfg.PIM.Timeout,
		},
		LockTTL:  cfg.Import.LockTTL,
		PageSize: cfg.Import.PageSize,
		MaxPages: cfg.Import.MaxSearchPages,
	}
	return deps, closeAll, nil
}

func (s *CatalogServer) clientFactory() importer.ClientFactory {
	return func(api settings.API) importer.CatalogClient {
		return clients.NewCatalogClient(clients.CatalogConfig{
			BaseURL:   s.cfg.PIM.BaseURL,
			Username:  api.Username,
			Secret:    api.Secret,
			DataOwner: api.DataOwner,
			Options: clients.Options{
				Timeout:           s.cfg.PIM.Timeout,
				RequestsPerMinute: s.cfg.PIM.RequestsPerMinute,
			},
		}, s.log)
	}
}
