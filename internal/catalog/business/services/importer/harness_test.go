package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pimsync_api/internal/catalog/business/services/assets"
	"pimsync_api/internal/catalog/settings"
	"pimsync_api/internal/catalog/storage"
	"pimsync_api/internal/pim/models"
	"pimsync_api/internal/syncerr"
	"pimsync_api/pkg/logger"
)

const (
	targetTaxonomy = "tax-main"
	requirementSet = "rs-1"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fakeCatalog struct {
	mu sync.Mutex

	products   map[string]*models.RemoteProduct
	searchIDs  []string
	totalHits  int // overrides len(searchIDs) when set
	endless    bool
	searchErr  error
	searches   []int
	fetches    int
	batches    []int
	attributes map[string]models.Attribute
	set        models.RequirementSet
	paths      map[string][]models.TaxonomyNode
}

func newFakeCatalog() *fakeCatalog {
	attrs := []models.Attribute{
		{ID: "a-img", Description: "Primary Image"},
		{ID: "a-img2", Description: "Side View"},
		{ID: "a-manual", Description: "Installation Manual - PDF"},
		{ID: "a-feat1", Description: "Fuel Type"},
		{ID: "a-feat2", Description: "Color"},
		{ID: "a-diameter", Description: "Diameter"},
	}
	byID := make(map[string]models.Attribute, len(attrs))
	for _, a := range attrs {
		byID[a.ID] = a
	}
	ref := func(id string) json.RawMessage { return json.RawMessage(fmt.Sprintf(`{"AttributeId":%q}`, id)) }

	return &fakeCatalog{
		products:   make(map[string]*models.RemoteProduct),
		attributes: byID,
		set: models.RequirementSet{
			ID: requirementSet,
			Groups: []models.AttributeGroup{
				{ID: "g-images", RawAttributes: []json.RawMessage{ref("a-img2")}},
				{ID: "g-docs", RawAttributes: []json.RawMessage{ref("a-manual")}},
				{ID: "g-features", RawAttributes: []json.RawMessage{ref("a-feat1"), ref("a-feat2")}},
				{ID: "g-primary", RawAttributes: []json.RawMessage{ref("a-img")}},
			},
		},
		paths: map[string][]models.TaxonomyNode{
			"n-pipes": {
				{Type: models.TypeTaxonomyNode, ID: "n-pipes", ParentID: "n-stoves", TaxonomyID: targetTaxonomy, Description: "Pipes",
					Attributes: []models.NodeAttribute{{BaseAttribute: "a-diameter"}}},
				{Type: models.TypeTaxonomyNode, ID: "n-stoves", ParentID: "n-root", TaxonomyID: targetTaxonomy, Description: "Stoves"},
				{Type: models.TypeTaxonomyNode, ID: "n-root", TaxonomyID: targetTaxonomy, Description: "Heating"},
			},
			"n-foreign": {
				{Type: models.TypeTaxonomyNode, ID: "n-foreign", TaxonomyID: "tax-other", Description: "Elsewhere"},
			},
		},
	}
}

func (f *fakeCatalog) add(products ...*models.RemoteProduct) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range products {
		f.products[p.ID] = p
		f.searchIDs = append(f.searchIDs, p.ID)
	}
}

func (f *fakeCatalog) FetchRequirementSet(_ context.Context, id string) (*models.RequirementSet, error) {
	if id != f.set.ID {
		return nil, syncerr.TypeMismatch("requirement-set-empty", "unknown set", nil)
	}
	cp := f.set
	cp.Groups = append([]models.AttributeGroup(nil), f.set.Groups...)
	return &cp, nil
}

func (f *fakeCatalog) FetchAttributes(_ context.Context, ids []string) ([]models.Attribute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, len(ids))
	var out []models.Attribute
	for _, id := range ids {
		if a, ok := f.attributes[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeCatalog) SearchProducts(_ context.Context, _ models.ProductSearchFilter, skip, take int) (*models.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, skip)
	if f.searchErr != nil {
		return nil, f.searchErr
	}

	var page []string
	if f.endless {
		for i := 0; i < take; i++ {
			page = append(page, fmt.Sprintf("p-%d", skip+i))
		}
	} else if skip < len(f.searchIDs) {
		end := skip + take
		if end > len(f.searchIDs) {
			end = len(f.searchIDs)
		}
		page = append(page, f.searchIDs[skip:end]...)
	}
	total := len(f.searchIDs)
	if f.totalHits > 0 {
		total = f.totalHits
	}
	return &models.SearchResult{Results: page, TotalHitCount: total, ResultCount: len(page)}, nil
}

func (f *fakeCatalog) FetchProduct(_ context.Context, id string) (*models.RemoteProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	p, ok := f.products[id]
	if !ok {
		return nil, syncerr.Network("pim-error-404", "product "+id+" not found", nil)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) FetchTaxonomyPathToRoot(_ context.Context, id string) ([]models.TaxonomyNode, error) {
	path, ok := f.paths[id]
	if !ok {
		return nil, syncerr.Network("pim-error-404", "node not found", nil)
	}
	return path, nil
}

func (f *fakeCatalog) FetchTaxonomyPathsToRoot(_ context.Context, ids []string) (map[string][]models.TaxonomyNode, error) {
	out := make(map[string][]models.TaxonomyNode)
	for _, id := range ids {
		if path, ok := f.paths[id]; ok {
			out[id] = path
		}
	}
	return out, nil
}

func flex(v string) models.FlexValue { return models.NewFlexValue(v) }

func verifiedProduct(id, verified, title string) *models.RemoteProduct {
	ts, _ := models.ParseTimestamp(verified)
	return &models.RemoteProduct{
		ID:               id,
		IsVerified:       true,
		VerificationDate: verified,
		LastVerifiedAt:   ts,
		TaxonomyNodeIDs:  []string{"n-foreign", "n-pipes"},
		Components: []models.Component{{
			AttributeValues: map[string][]models.AttributeValue{models.DefaultLanguage: {
				{AttributeID: "a-title", Value: flex(title)},
				{AttributeID: "a-sku", Value: flex("SKU-" + id)},
				{AttributeID: "a-model", Value: flex("M-" + id)},
				{AttributeID: "a-price", Value: flex("1,299.50")},
				{AttributeID: "a-brand", Value: flex("Acme")},
				{AttributeID: "a-feat1", Value: flex("Wood")},
				{AttributeID: "a-diameter", Value: flex("6 in")},
			}},
			Assets: map[string][]models.AttributeValue{models.DefaultLanguage: {
				{AttributeID: "a-img", Value: flex("img-" + id)},
				{AttributeID: "a-img2", Value: flex("side-" + id)},
				{AttributeID: "a-manual", Value: flex("doc-" + id)},
			}},
		}},
	}
}

type countingLock struct {
	*storage.MemoryLock
	refreshes atomic.Int32
	releases  atomic.Int32
}

func (l *countingLock) Refresh(ctx context.Context, owner string, ttl time.Duration) error {
	l.refreshes.Add(1)
	return l.MemoryLock.Refresh(ctx, owner, ttl)
}

func (l *countingLock) Release(ctx context.Context, owner string) error {
	l.releases.Add(1)
	return l.MemoryLock.Release(ctx, owner)
}

type harness struct {
	engine    *Engine
	store     *storage.MemoryStore
	blobs     *storage.MemoryBlobStore
	lock      *countingLock
	catalog   *fakeCatalog
	settings  *settings.MapStore
	downloads *atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	downloads := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		_, _ = w.Write(pngBytes)
	}))
	t.Cleanup(srv.Close)

	h := &harness{
		store:     storage.NewMemoryStore(),
		blobs:     storage.NewMemoryBlobStore(),
		lock:      &countingLock{MemoryLock: storage.NewMemoryLock(nil)},
		catalog:   newFakeCatalog(),
		downloads: downloads,
		settings: settings.NewMapStore(map[string]string{
			settings.KeyUsername:           "user",
			settings.KeySecret:             "secret",
			settings.KeyDataOwner:          "owner-1",
			settings.KeyRecipient:          "recipient-1",
			settings.KeyRequirementSet:     requirementSet,
			settings.KeyTaxonomyID:         targetTaxonomy,
			settings.KeyAuthor:             "importer",
			settings.KeyFieldPostTitle:     "a-title",
			settings.KeyFieldSKU:           "a-sku",
			settings.KeyFieldModelNo:       "a-model",
			settings.KeyFieldRegularPrice:  "a-price",
			settings.KeyFieldBrand:         "a-brand",
			settings.KeyFieldPrimaryImage:  "a-img",
			settings.KeyFieldDigitalAssets: "g-images",
			settings.KeyFieldDocuments:     "g-docs",
			settings.KeyFieldFeatures:      "g-features",
		}),
	}
	h.engine = NewEngine(Deps{
		Records:   h.store,
		Terms:     h.store,
		Blobs:     h.blobs,
		Lock:      h.lock,
		Settings:  h.settings,
		Snapshots: h.store,
		NewClient: func(settings.API) CatalogClient { return h.catalog },
		Assets:    assets.Config{AssetBaseURL: srv.URL, TempDir: t.TempDir()},
	}, logger.NewNop())
	return h
}

func (h *harness) product(t *testing.T, remoteID string) *storage.Record {
	t.Helper()
	rec, err := h.store.FindByExternalKey(context.Background(), storage.PostTypeProduct, remoteID)
	if err != nil {
		t.Fatalf("FindByExternalKey: %v", err)
	}
	return rec
}

func (h *harness) meta(t *testing.T, id int64, key string, out interface{}) bool {
	t.Helper()
	raw, ok, err := h.store.GetMetadata(context.Background(), id, key)
	if err != nil {
		t.Fatalf("GetMetadata %s: %v", key, err)
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode %s: %v", key, err)
	}
	return true
}
