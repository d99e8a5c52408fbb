package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"pimsync_api/internal/catalog/business/services/requirements"
	"pimsync_api/internal/catalog/business/services/taxonomy"
	"pimsync_api/internal/catalog/settings"
	"pimsync_api/metrics"
	"pimsync_api/pkg/logger"
)

// Session carries everything resolved once per batch: settings, the PIM
// client built from them, the hydrated requirement set and the category
// term index.
type Session struct {
	RunID        string
	Settings     settings.Settings
	Client       CatalogClient
	Requirements *requirements.Cache
	Taxonomy     *taxonomy.Reconciler
	Metrics      *metrics.ImportMetrics

	log logger.Logger
}

func (e *Engine) newSession(ctx context.Context) (*Session, error) {
	resolved, err := settings.Resolve(ctx, e.settings)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := e.log.With("run", runID)
	client := e.newClient(resolved.API)

	s := &Session{
		RunID:        runID,
		Settings:     resolved,
		Client:       client,
		Requirements: requirements.NewCache(client, log),
		Taxonomy:     taxonomy.NewReconciler(client, e.terms, resolved.API.TaxonomyID, log),
		Metrics:      &metrics.ImportMetrics{},
		log:          log,
	}
	return s, nil
}

// loadRequirements hydrates the configured requirement set, if any.
func (s *Session) loadRequirements(ctx context.Context) error {
	id := s.Settings.API.RequirementSetID
	if id == "" {
		s.log.Warn("no requirement set configured, attribute groups will be empty")
		return nil
	}
	if _, err := s.Requirements.Load(ctx, id); err != nil {
		return fmt.Errorf("load requirement set: %w", err)
	}
	return nil
}
