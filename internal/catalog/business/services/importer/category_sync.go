package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"pimsync_api/internal/catalog/storage"
)

type CategoryLinkStatus struct {
	TermID     int64   `json:"term_id"`
	Linked     []int64 `json:"linked_categories"`
	ProductIDs []int64 `json:"product_ids"`
	Error      string  `json:"error,omitempty"`
}

// SyncCategoryLinks copies the product categories linked to each remote
// category term onto the products tagged with it, then recounts the product
// categories. With no term ids every remote category term is visited.
func (e *Engine) SyncCategoryLinks(ctx context.Context, termIDs ...int64) ([]CategoryLinkStatus, error) {
	terms, err := e.terms.Terms(ctx, storage.TaxonomyRemoteCategory)
	if err != nil {
		return nil, err
	}
	include := make(map[int64]struct{}, len(termIDs))
	for _, id := range termIDs {
		include[id] = struct{}{}
	}

	var statuses []CategoryLinkStatus
	for _, term := range terms {
		if len(include) > 0 {
			if _, ok := include[term.ID]; !ok {
				continue
			}
		}
		raw, ok, err := e.terms.GetTermMeta(ctx, term.ID, storage.TermMetaLinkedCategories)
		if err != nil {
			return statuses, err
		}
		if !ok || raw == "" {
			continue
		}

		status := CategoryLinkStatus{TermID: term.ID}
		linked, err := parseTermIDs(raw)
		if err != nil {
			status.Error = err.Error()
			statuses = append(statuses, status)
			e.log.Warn("bad category link", "term", term.ID, "error", err)
			continue
		}
		if len(linked) == 0 {
			continue
		}
		status.Linked = linked

		products, err := e.terms.ObjectsWithTerm(ctx, term.ID)
		if err != nil {
			return statuses, err
		}
		for _, productID := range products {
			if err := e.terms.SetObjectTerms(ctx, productID, storage.TaxonomyProductCategory, linked, false); err != nil {
				status.Error = err.Error()
				e.log.Warn("failed to apply linked categories", "term", term.ID, "product", productID, "error", err)
				continue
			}
			status.ProductIDs = append(status.ProductIDs, productID)
		}
		statuses = append(statuses, status)
	}

	if err := e.terms.RecountTerms(ctx, storage.TaxonomyProductCategory); err != nil {
		return statuses, err
	}
	e.log.Info("category links synced", "terms", len(statuses))
	return statuses, nil
}

// parseTermIDs reads a JSON list of term ids given as numbers or strings.
func parseTermIDs(raw string) ([]int64, error) {
	var values []interface{}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("linked categories: %w", err)
	}
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		switch id := v.(type) {
		case float64:
			ids = append(ids, int64(id))
		case string:
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("linked categories: %w", err)
			}
			ids = append(ids, n)
		default:
			return nil, fmt.Errorf("linked categories: unexpected value %v", v)
		}
	}
	return ids, nil
}
