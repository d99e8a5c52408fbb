package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron"

	"pimsync_api/internal/catalog/business/services/importer"
	"pimsync_api/pkg/logger"
)

type ProductSyncer interface {
	SyncProducts(ctx context.Context, force bool) (*importer.SyncResult, error)
}

// Scheduler runs the product sync on a cron spec. Trigger runs it on demand
// whether or not the schedule is enabled.
type Scheduler struct {
	syncer  ProductSyncer
	spec    string
	enabled bool
	log     logger.Logger
}

func NewScheduler(syncer ProductSyncer, spec string, enabled bool, log logger.Logger) (*Scheduler, error) {
	if enabled {
		if _, err := cron.Parse(spec); err != nil {
			return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
		}
	}
	return &Scheduler{syncer: syncer, spec: spec, enabled: enabled, log: log.WithPrefix("scheduler")}, nil
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.enabled {
		s.log.Info("scheduled product sync disabled")
		<-ctx.Done()
		return nil
	}

	c := cron.New()
	if err := c.AddFunc(s.spec, func() { s.run(ctx, false) }); err != nil {
		return err
	}
	c.Start()
	s.log.Info("scheduled product sync started", "spec", s.spec)
	<-ctx.Done()
	c.Stop()
	s.log.Info("scheduled product sync stopped")
	return nil
}

func (s *Scheduler) Trigger(ctx context.Context, force bool) (*importer.SyncResult, error) {
	return s.syncer.SyncProducts(ctx, force)
}

func (s *Scheduler) run(ctx context.Context, force bool) {
	result, err := s.Trigger(ctx, force)
	if err != nil {
		s.log.Warn("scheduled product sync failed", "error", err)
		return
	}
	if result.Import != nil {
		s.log.Info("scheduled product sync finished", "summary", result.Import.Summary, "category_links", len(result.Categories))
	}
}
