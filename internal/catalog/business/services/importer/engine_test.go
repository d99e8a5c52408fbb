package importer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"pimsync_api/internal/catalog/business/services/requirements"
	"pimsync_api/internal/catalog/settings"
	"pimsync_api/internal/catalog/storage"
	"pimsync_api/internal/pim/models"
	"pimsync_api/internal/syncerr"
)

func TestImportAllEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	unverified := verifiedProduct("B", "2024-01-01", "Unverified")
	unverified.IsVerified = false
	h.catalog.add(verifiedProduct("A", "2024-01-01", "Stove Pipe"), unverified)

	result, err := h.engine.ImportAll(ctx, false)
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if got := len(h.catalog.searches); got != 1 {
		t.Fatalf("search calls: want=1 got=%d", got)
	}
	if len(result.Statuses) != 2 {
		t.Fatalf("statuses: want=2 got=%+v", result.Statuses)
	}
	if st := result.Statuses[0]; st.Action != ActionInserted || len(st.Notes) != 0 {
		t.Fatalf("A: want inserted without notes, got=%+v", st)
	}
	if st := result.Statuses[1]; st.Action != ActionRejected || st.Code != "product-not-verified" {
		t.Fatalf("B: want rejected, got=%+v", st)
	}
	if result.Summary.Inserted != 1 || result.Summary.Rejected != 1 || result.Summary.Sideloaded != 3 {
		t.Fatalf("summary: got=%+v", result.Summary)
	}

	rec := h.product(t, "A")
	if rec == nil {
		t.Fatalf("product A not stored")
	}
	if rec.Fields.Title != "Stove Pipe" || rec.Fields.Status != "publish" || rec.Fields.Author != "importer" {
		t.Fatalf("fields: got=%+v", rec.Fields)
	}
	if h.product(t, "B") != nil {
		t.Fatalf("unverified product must not be stored")
	}

	var watermark string
	h.meta(t, rec.ID, storage.MetaLastVerifiedAt, &watermark)
	if watermark != "2024-01-01" {
		t.Fatalf("watermark: want=%q got=%q", "2024-01-01", watermark)
	}
	var price float64
	h.meta(t, rec.ID, storage.MetaPrice, &price)
	if price != 1299.5 {
		t.Fatalf("price: want=1299.5 got=%v", price)
	}
	var features []models.AttributeWithValue
	h.meta(t, rec.ID, storage.MetaFeatures, &features)
	if len(features) != 1 || features[0].Attribute.ID != "a-feat1" || features[0].Value != "Wood" {
		t.Fatalf("features: got=%+v", features)
	}
	var other []models.AttributeWithValue
	if !h.meta(t, rec.ID, storage.MetaOther, &other) || len(other) != 0 {
		t.Fatalf("unmapped group must be stored empty, got=%+v", other)
	}

	var thumbnail int64
	h.meta(t, rec.ID, storage.MetaThumbnailID, &thumbnail)
	image, _ := h.store.FindByExternalKey(ctx, storage.PostTypeAttachment, "img-A")
	if image == nil || image.ID != thumbnail {
		t.Fatalf("thumbnail: want attachment of img-A, got id=%d rec=%+v", thumbnail, image)
	}
	if image.Fields.Title != "M-A - Primary Image" || image.Fields.Name != "m-a-primary-image.jpg" {
		t.Fatalf("image naming: got=%+v", image.Fields)
	}
	var gallery string
	h.meta(t, rec.ID, storage.MetaImageGallery, &gallery)
	side, _ := h.store.FindByExternalKey(ctx, storage.PostTypeAttachment, "side-A")
	if side == nil || gallery != strconv.FormatInt(side.ID, 10) {
		t.Fatalf("gallery: got=%q side=%+v", gallery, side)
	}

	doc, _ := h.store.FindByExternalKey(ctx, storage.PostTypeDocument, "doc-A")
	if doc == nil || doc.Fields.Title != "M-A - Installation Manual" {
		t.Fatalf("document record: got=%+v", doc)
	}
	var linked int64
	if !h.meta(t, doc.ID, storage.MetaProductLinkPrefix+strconv.FormatInt(rec.ID, 10), &linked) || linked != rec.ID {
		t.Fatalf("document link: got=%d", linked)
	}
	docType, _ := h.store.FindTermByName(ctx, storage.TaxonomyDocType, "Installation Manual")
	if docType == nil {
		t.Fatalf("doc_type term not created")
	}
	if ids, _ := h.store.ObjectTerms(ctx, doc.ID, storage.TaxonomyDocType); len(ids) != 1 || ids[0] != docType.ID {
		t.Fatalf("doc_type relation: got=%v", ids)
	}

	cats, _ := h.store.Terms(ctx, storage.TaxonomyRemoteCategory)
	if len(cats) != 3 {
		t.Fatalf("category terms: want=3 got=%d", len(cats))
	}
	catIDs, _ := h.store.ObjectTerms(ctx, rec.ID, storage.TaxonomyRemoteCategory)
	if len(catIDs) != 1 {
		t.Fatalf("product categories: got=%v", catIDs)
	}
	for _, c := range cats {
		if c.ID == catIDs[0] && c.Name != "Pipes" {
			t.Fatalf("product must carry the leaf, got=%q", c.Name)
		}
		if c.Name == "Pipes" && c.Count != 1 {
			t.Fatalf("leaf count after recount: want=1 got=%d", c.Count)
		}
	}
	var categoryAttrs []models.AttributeWithValue
	h.meta(t, rec.ID, storage.MetaCategoryAttributes, &categoryAttrs)
	if len(categoryAttrs) != 1 || categoryAttrs[0].Value != "6 in" {
		t.Fatalf("category attributes: got=%+v", categoryAttrs)
	}

	brand, _ := h.store.FindTermByName(ctx, storage.TaxonomyBrand, "Acme")
	if brand == nil {
		t.Fatalf("brand term not created")
	}
	if ids, _ := h.store.ObjectTerms(ctx, rec.ID, storage.TaxonomyBrand); len(ids) != 1 || ids[0] != brand.ID {
		t.Fatalf("brand relation: got=%v", ids)
	}

	if active, _ := h.lock.Active(ctx); active {
		t.Fatalf("lock must be released after the batch")
	}
	if got := h.lock.refreshes.Load(); got != 2 {
		t.Fatalf("lock refreshes: want=2 got=%d", got)
	}
}

func TestImportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.catalog.add(verifiedProduct("A", "2024-01-01", "Stove Pipe"))

	if _, err := h.engine.ImportAll(ctx, false); err != nil {
		t.Fatalf("first ImportAll: %v", err)
	}
	downloads := h.downloads.Load()
	if downloads != 3 {
		t.Fatalf("first run downloads: want=3 got=%d", downloads)
	}

	result, err := h.engine.ImportAll(ctx, false)
	if err != nil {
		t.Fatalf("second ImportAll: %v", err)
	}
	if st := result.Statuses[0]; st.Action != ActionSkipped {
		t.Fatalf("second run: want skipped, got=%+v", st)
	}
	if got := h.downloads.Load(); got != downloads {
		t.Fatalf("second run downloaded: before=%d after=%d", downloads, got)
	}
	if got := len(h.store.Records(storage.PostTypeProduct)); got != 1 {
		t.Fatalf("product records: want=1 got=%d", got)
	}
	if got := len(h.store.Records(storage.PostTypeDocument)); got != 1 {
		t.Fatalf("document records: want=1 got=%d", got)
	}
	if cats, _ := h.store.Terms(ctx, storage.TaxonomyRemoteCategory); len(cats) != 3 {
		t.Fatalf("category terms: want=3 got=%d", len(cats))
	}
	if result.Summary.Sideloaded != 0 {
		t.Fatalf("sideloaded on second run: got=%d", result.Summary.Sideloaded)
	}
}

func TestStalenessDecision(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.catalog.add(verifiedProduct("A", "2024-01-01", "Original"))
	if _, err := h.engine.ImportByIds(ctx, []string{"A"}, false); err != nil {
		t.Fatalf("ImportByIds: %v", err)
	}

	cases := []struct {
		name      string
		verified  string
		title     string
		force     bool
		action    Action
		wantTitle string
	}{
		{"older remote keeps fields", "2023-12-01", "Older", false, ActionSkipped, "Original"},
		{"same time keeps fields", "2024-01-01", "Same", false, ActionSkipped, "Original"},
		{"newer remote overwrites", "2024-02-01", "Newer", false, ActionUpdated, "Newer"},
		{"force overwrites", "2024-02-01", "Forced", true, ActionUpdated, "Forced"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h.catalog.products["A"] = verifiedProduct("A", tc.verified, tc.title)
			result, err := h.engine.ImportByIds(ctx, []string{"A"}, tc.force)
			if err != nil {
				t.Fatalf("ImportByIds: %v", err)
			}
			if got := result.Statuses[0].Action; got != tc.action {
				t.Fatalf("action: want=%s got=%s", tc.action, got)
			}
			if got := h.product(t, "A").Fields.Title; got != tc.wantTitle {
				t.Fatalf("title: want=%q got=%q", tc.wantTitle, got)
			}
		})
	}
}

func TestSkippedProductReprocessing(t *testing.T) {
	for _, reprocess := range []bool{true, false} {
		t.Run(strconv.FormatBool(reprocess), func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)
			h.settings.Set(settings.KeyReprocessSkipped, strconv.FormatBool(reprocess))
			h.catalog.add(verifiedProduct("A", "2024-01-01", "Stove Pipe"))
			if _, err := h.engine.ImportAll(ctx, false); err != nil {
				t.Fatalf("ImportAll: %v", err)
			}
			rec := h.product(t, "A")
			_ = h.store.SetMetadata(ctx, rec.ID, storage.MetaThumbnailID, 0)

			if _, err := h.engine.ImportAll(ctx, false); err != nil {
				t.Fatalf("second ImportAll: %v", err)
			}
			var thumbnail int64
			h.meta(t, rec.ID, storage.MetaThumbnailID, &thumbnail)
			if reprocess && thumbnail == 0 {
				t.Fatalf("reprocess enabled: thumbnail must be restored")
			}
			if !reprocess && thumbnail != 0 {
				t.Fatalf("reprocess disabled: thumbnail must stay untouched, got=%d", thumbnail)
			}
		})
	}
}

func TestVerificationGateIgnoresForce(t *testing.T) {
	ctx := context.Background()
	for _, force := range []bool{false, true} {
		h := newHarness(t)
		p := verifiedProduct("A", "2024-01-01", "Stove Pipe")
		p.IsVerified = false
		h.catalog.add(p)

		result, err := h.engine.ImportByIds(ctx, []string{"A"}, force)
		if err != nil {
			t.Fatalf("force=%v: ImportByIds: %v", force, err)
		}
		st := result.Statuses[0]
		if st.Action != ActionRejected || st.Code != "product-not-verified" {
			t.Fatalf("force=%v: want rejected, got=%+v", force, st)
		}
		if got := len(h.store.Records(storage.PostTypeProduct)); got != 0 {
			t.Fatalf("force=%v: products stored: %d", force, got)
		}
		if h.downloads.Load() != 0 {
			t.Fatalf("force=%v: assets downloaded for an unverified product", force)
		}
	}
}

func TestFetchFailureIsScopedToOneProduct(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.catalog.add(verifiedProduct("A", "2024-01-01", "Stove Pipe"))

	result, err := h.engine.ImportByIds(ctx, []string{"missing", "A"}, false)
	if err != nil {
		t.Fatalf("ImportByIds: %v", err)
	}
	if st := result.Statuses[0]; st.Action != ActionFailed || st.Code != "pim-error-404" {
		t.Fatalf("missing: want failed, got=%+v", st)
	}
	if st := result.Statuses[1]; st.Action != ActionInserted {
		t.Fatalf("A: want inserted, got=%+v", st)
	}
}

func TestDiscoveryPagination(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	for i := 0; i < 250; i++ {
		h.catalog.searchIDs = append(h.catalog.searchIDs, "p-"+strconv.Itoa(i))
	}
	session, err := h.engine.newSession(ctx)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}

	ids, err := h.engine.discover(ctx, session)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(ids) != 250 {
		t.Fatalf("ids: want=250 got=%d", len(ids))
	}
	want := []int{0, 100, 200}
	if len(h.catalog.searches) != len(want) {
		t.Fatalf("search calls: want=%v got=%v", want, h.catalog.searches)
	}
	for i, skip := range want {
		if h.catalog.searches[i] != skip {
			t.Fatalf("search skips: want=%v got=%v", want, h.catalog.searches)
		}
	}
}

func TestDiscoveryStopsAtPageCap(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.catalog.endless = true
	h.catalog.totalHits = 1_000_000
	session, _ := h.engine.newSession(ctx)

	ids, err := h.engine.discover(ctx, session)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if got := len(h.catalog.searches); got != DefaultMaxPages {
		t.Fatalf("search calls: want=%d got=%d", DefaultMaxPages, got)
	}
	if len(ids) != DefaultMaxPages*DefaultPageSize {
		t.Fatalf("ids: got=%d", len(ids))
	}
}

func TestBusyImportMakesNoWrites(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.catalog.add(verifiedProduct("A", "2024-01-01", "Stove Pipe"))
	if ok, _ := h.lock.Acquire(ctx, "other-run", DefaultLockTTL); !ok {
		t.Fatalf("pre-acquire failed")
	}

	_, err := h.engine.ImportAll(ctx, false)
	if !errors.Is(err, syncerr.ErrBusy) {
		t.Fatalf("want busy error, got=%v", err)
	}
	if h.store.Writes() != 0 || h.blobs.Puts() != 0 {
		t.Fatalf("busy import wrote: records=%d blobs=%d", h.store.Writes(), h.blobs.Puts())
	}
	if len(h.catalog.searches) != 0 || h.catalog.fetches != 0 {
		t.Fatalf("busy import called the PIM: searches=%d fetches=%d", len(h.catalog.searches), h.catalog.fetches)
	}
	if active, _ := h.lock.Active(ctx); !active {
		t.Fatalf("the other holder's lock must survive")
	}
}

func TestLockReleasedWhenSearchFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.catalog.searchErr = syncerr.Network("pim-error-500", "boom", nil)

	if _, err := h.engine.ImportAll(ctx, false); !errors.Is(err, syncerr.ErrNetwork) {
		t.Fatalf("want network error, got=%v", err)
	}
	if active, _ := h.lock.Active(ctx); active {
		t.Fatalf("lock must be released after a failed batch")
	}
	if got := h.lock.releases.Load(); got != 1 {
		t.Fatalf("releases: want=1 got=%d", got)
	}
}

func TestInvalidSettingsAbortBeforeLocking(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.settings.Set(settings.KeySecret, "")

	if _, err := h.engine.ImportAll(ctx, false); !errors.Is(err, syncerr.ErrInvalid) {
		t.Fatalf("want invalid settings error, got=%v", err)
	}
	if got := h.lock.releases.Load(); got != 0 {
		t.Fatalf("lock touched: releases=%d", got)
	}
}

func TestImportRequirementSetSavesSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	set, err := h.engine.ImportRequirementSet(ctx, "")
	if err != nil {
		t.Fatalf("ImportRequirementSet: %v", err)
	}
	if set.ID != requirementSet || len(set.Groups[2].Attributes) != 2 {
		t.Fatalf("hydrated set: got=%+v", set)
	}
	saved, err := h.store.LoadRequirementSet(ctx, requirementSet)
	if err != nil || saved == nil {
		t.Fatalf("snapshot: saved=%+v err=%v", saved, err)
	}
}

func TestSyncProductsRunsImportThenLinks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.catalog.add(verifiedProduct("A", "2024-01-01", "Stove Pipe"))

	result, err := h.engine.SyncProducts(ctx, false)
	if err != nil {
		t.Fatalf("SyncProducts: %v", err)
	}
	if result.Import == nil || result.Import.Summary.Inserted != 1 {
		t.Fatalf("import part: got=%+v", result.Import)
	}
	if len(result.Categories) != 0 {
		t.Fatalf("no links configured, got=%+v", result.Categories)
	}
}

func TestParseNumber(t *testing.T) {
	cases := map[string]float64{
		"1,299.50": 1299.5,
		"12":       12,
		" 7.25 lb": 7.25,
		"":         0,
		"n/a":      0,
		"-3.5":     -3.5,
		"1.2.3":    1.2,
	}
	for in, want := range cases {
		if got := parseNumber(in); got != want {
			t.Fatalf("parseNumber(%q): want=%v got=%v", in, want, got)
		}
	}
}

func TestCategoryAttributesAreFetchedInPackets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	leaf := &h.catalog.paths["n-pipes"][0]
	for i := 0; i < 150; i++ {
		id := fmt.Sprintf("a-cat-%03d", i)
		leaf.Attributes = append(leaf.Attributes, models.NodeAttribute{BaseAttribute: id})
		h.catalog.attributes[id] = models.Attribute{ID: id, Description: "Category " + strconv.Itoa(i)}
	}
	p := verifiedProduct("A", "2024-01-01", "Stove Pipe")
	values := p.Components[0].AttributeValues
	values[models.DefaultLanguage] = append(values[models.DefaultLanguage], models.AttributeValue{AttributeID: "a-cat-149", Value: flex("last")})
	h.catalog.add(p)

	if _, err := h.engine.ImportAll(ctx, false); err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	large := 0
	for _, n := range h.catalog.batches {
		if n > requirements.ChunkSize {
			t.Fatalf("FetchAttributes batch of %d ids exceeds %d: batches=%v", n, requirements.ChunkSize, h.catalog.batches)
		}
		if n > 50 {
			large++
		}
	}
	if large != 2 {
		t.Fatalf("151 category ids: want 2 packets, batches=%v", h.catalog.batches)
	}

	var attrs []models.AttributeWithValue
	h.meta(t, h.product(t, "A").ID, storage.MetaCategoryAttributes, &attrs)
	if len(attrs) != 2 || attrs[0].Attribute.ID != "a-diameter" || attrs[1].Attribute.ID != "a-cat-149" {
		t.Fatalf("category attributes from both packets: got=%+v", attrs)
	}
}
