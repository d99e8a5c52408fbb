package importer

import (
	"context"
	"fmt"
	"time"

	"pimsync_api/internal/catalog/business/services/assets"
	"pimsync_api/internal/catalog/business/services/requirements"
	"pimsync_api/internal/catalog/business/services/taxonomy"
	"pimsync_api/internal/catalog/settings"
	"pimsync_api/internal/catalog/storage"
	"pimsync_api/internal/pim/models"
	"pimsync_api/internal/syncerr"
	"pimsync_api/pkg/logger"
)

const (
	DefaultLockTTL  = 30 * time.Second
	DefaultPageSize = 100
	DefaultMaxPages = 10
)

// CatalogClient is the part of the PIM API the importer talks to.
type CatalogClient interface {
	requirements.Fetcher
	taxonomy.PathFetcher
	SearchProducts(ctx context.Context, filter models.ProductSearchFilter, skip, take int) (*models.SearchResult, error)
	FetchProduct(ctx context.Context, id string) (*models.RemoteProduct, error)
}

// ClientFactory builds a client from the credentials resolved for a batch.
type ClientFactory func(api settings.API) CatalogClient

type Deps struct {
	Records   storage.RecordStore
	Terms     storage.TermStore
	Blobs     storage.BlobStore
	Lock      storage.ImportLock
	Settings  settings.Store
	Snapshots storage.RequirementSetStore
	NewClient ClientFactory
	Assets    assets.Config
	LockTTL   time.Duration
	PageSize  int
	MaxPages  int
}

type Engine struct {
	records    storage.RecordStore
	terms      storage.TermStore
	lock       storage.ImportLock
	settings   settings.Store
	snapshots  storage.RequirementSetStore
	newClient  ClientFactory
	sideloader *assets.Sideloader

	lockTTL  time.Duration
	pageSize int
	maxPages int

	log logger.Logger
}

func NewEngine(deps Deps, log logger.Logger) *Engine {
	log = log.WithPrefix("importer")
	e := &Engine{
		records:    deps.Records,
		terms:      deps.Terms,
		lock:       deps.Lock,
		settings:   deps.Settings,
		snapshots:  deps.Snapshots,
		newClient:  deps.NewClient,
		sideloader: assets.NewSideloader(deps.Records, deps.Blobs, deps.Assets, log),
		lockTTL:    deps.LockTTL,
		pageSize:   deps.PageSize,
		maxPages:   deps.MaxPages,
		log:        log,
	}
	if e.lockTTL <= 0 {
		e.lockTTL = DefaultLockTTL
	}
	if e.pageSize <= 0 {
		e.pageSize = DefaultPageSize
	}
	if e.maxPages <= 0 {
		e.maxPages = DefaultMaxPages
	}
	return e
}

// ImportAll discovers every product shared with the configured recipient and
// imports it.
func (e *Engine) ImportAll(ctx context.Context, force bool) (*BatchResult, error) {
	return e.run(ctx, nil, force)
}

// ImportByIds imports the given remote products. An empty list means all.
func (e *Engine) ImportByIds(ctx context.Context, ids []string, force bool) (*BatchResult, error) {
	return e.run(ctx, ids, force)
}

// SyncProducts is the scheduled job: import everything, then propagate the
// category links.
func (e *Engine) SyncProducts(ctx context.Context, force bool) (*SyncResult, error) {
	batch, err := e.ImportAll(ctx, force)
	if err != nil {
		return nil, err
	}
	links, err := e.SyncCategoryLinks(ctx)
	if err != nil {
		return &SyncResult{Import: batch}, err
	}
	return &SyncResult{Import: batch, Categories: links}, nil
}

// ImportRequirementSet fetches and hydrates the set and stores a snapshot.
func (e *Engine) ImportRequirementSet(ctx context.Context, id string) (*models.RequirementSet, error) {
	session, err := e.newSession(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = session.Settings.API.RequirementSetID
	}
	if id == "" {
		return nil, syncerr.Invalid("requirement-set-missing", "no requirement set id given or configured", nil)
	}
	set, err := session.Requirements.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.snapshots != nil {
		if err := e.snapshots.SaveRequirementSet(ctx, set); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (e *Engine) run(ctx context.Context, ids []string, force bool) (*BatchResult, error) {
	session, err := e.newSession(ctx)
	if err != nil {
		return nil, err
	}
	log := session.log

	acquired, err := e.lock.Acquire(ctx, session.RunID, e.lockTTL)
	if err != nil {
		return nil, syncerr.Store("import-lock", "failed to acquire import lock", err)
	}
	if !acquired {
		log.Warn("another import is still underway")
		return nil, syncerr.Busy("import-busy", "another import is still underway, try again later")
	}
	defer func() {
		if err := e.lock.Release(context.WithoutCancel(ctx), session.RunID); err != nil {
			log.Error("failed to release import lock", "error", err)
		}
	}()

	if err := session.loadRequirements(ctx); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		log.Info("no product ids given, discovering products")
		ids, err = e.discover(ctx, session)
		if err != nil {
			return nil, err
		}
	}
	log.Info("importing products", "count", len(ids), "force", force)

	result := &BatchResult{RunID: session.RunID, Statuses: make([]ProductStatus, 0, len(ids))}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := e.lock.Refresh(ctx, session.RunID, e.lockTTL); err != nil {
			log.Warn("failed to refresh import lock", "error", err)
		}

		log.Info(fmt.Sprintf("Importing product %d of %d", i+1, len(ids)), "product", id)
		status := e.importProduct(ctx, session, id, force)
		if status.Code != "" {
			log.Warn("import failed", "product", id, "code", status.Code, "message", status.Message)
		}
		session.Metrics.Record(string(status.Action))
		result.Statuses = append(result.Statuses, status)
	}

	for _, taxonomyName := range []string{storage.TaxonomyRemoteCategory, storage.TaxonomyBrand, storage.TaxonomyDocType} {
		if err := e.terms.RecountTerms(ctx, taxonomyName); err != nil {
			log.Warn("term recount failed", "taxonomy", taxonomyName, "error", err)
		}
	}

	result.Summary = session.Metrics.Summary()
	log.Info("import complete", "summary", result.Summary)
	return result, nil
}

// discover pages through the product search until the reported total is
// reached or the page cap is hit.
func (e *Engine) discover(ctx context.Context, session *Session) ([]string, error) {
	api := session.Settings.API
	filter := models.ProductSearchFilter{
		DataOwner:                api.DataOwner,
		Archived:                 false,
		Desc:                     false,
		SubscriptionStatusFilter: models.SubscriptionStatusAll,
	}
	if api.Recipient != "" {
		filter.Recipients = []string{api.Recipient}
	}

	var ids []string
	skip := 0
	for page := 0; page < e.maxPages; page++ {
		result, err := session.Client.SearchProducts(ctx, filter, skip, e.pageSize)
		if err != nil {
			return nil, fmt.Errorf("search products at skip %d: %w", skip, err)
		}
		ids = append(ids, result.Results...)
		if result.ResultCount <= 0 {
			break
		}
		skip += result.ResultCount
		if skip >= result.TotalHitCount {
			break
		}
	}
	return ids, nil
}
