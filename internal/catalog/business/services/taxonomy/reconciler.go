package taxonomy

import (
	"context"
	"fmt"

	"pimsync_api/internal/catalog/storage"
	"pimsync_api/internal/pim/models"
	"pimsync_api/pkg/logger"
)

type PathFetcher interface {
	FetchTaxonomyPathToRoot(ctx context.Context, nodeID string) ([]models.TaxonomyNode, error)
	FetchTaxonomyPathsToRoot(ctx context.Context, nodeIDs []string) (map[string][]models.TaxonomyNode, error)
}

// Reconciler mirrors remote taxonomy paths into the local pim_cat hierarchy.
// It keeps an index of local terms by remote node id for the life of a batch
// and is not safe for concurrent use.
type Reconciler struct {
	client     PathFetcher
	terms      storage.TermStore
	taxonomyID string
	log        logger.Logger

	index map[string]storage.Term
}

func NewReconciler(client PathFetcher, terms storage.TermStore, taxonomyID string, log logger.Logger) *Reconciler {
	return &Reconciler{
		client:     client,
		terms:      terms,
		taxonomyID: taxonomyID,
		log:        log.WithPrefix("taxonomy"),
	}
}

// Reconcile picks the first candidate whose path belongs to the configured
// taxonomy, creates any missing terms along it and returns the leaf term with
// the root first path. A nil term with a nil error means no candidate matched.
func (r *Reconciler) Reconcile(ctx context.Context, candidateIDs []string) (*storage.Term, []models.TaxonomyNode, error) {
	if len(candidateIDs) == 0 {
		return nil, nil, nil
	}

	path := r.firstMatchingPath(ctx, candidateIDs)
	if path == nil {
		r.log.Debug("no candidate node in target taxonomy", "taxonomy", r.taxonomyID, "candidates", len(candidateIDs))
		return nil, nil, nil
	}

	if r.index == nil {
		if err := r.refresh(ctx); err != nil {
			return nil, nil, err
		}
	}

	var leaf storage.Term
	for _, node := range path {
		if term, ok := r.index[node.ID]; ok {
			leaf = term
			continue
		}

		var parentID int64
		if parent, ok := r.index[node.ParentID]; ok {
			parentID = parent.ID
		}
		created, err := r.terms.InsertTerm(ctx, storage.Term{
			Taxonomy: storage.TaxonomyRemoteCategory,
			Name:     node.Description,
			ParentID: parentID,
			Meta: map[string]string{
				storage.TermMetaRemoteID:         node.ID,
				storage.TermMetaRemoteParentID:   node.ParentID,
				storage.TermMetaRemoteTaxonomyID: node.TaxonomyID,
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("insert term for node %s: %w", node.ID, err)
		}
		r.log.Info("category term created", "term", created.ID, "node", node.ID, "name", node.Description)

		if err := r.refresh(ctx); err != nil {
			return nil, nil, err
		}
		leaf = r.index[node.ID]
	}

	return &leaf, path, nil
}

func (r *Reconciler) firstMatchingPath(ctx context.Context, candidateIDs []string) []models.TaxonomyNode {
	var bulk map[string][]models.TaxonomyNode
	if len(candidateIDs) > 1 {
		paths, err := r.client.FetchTaxonomyPathsToRoot(ctx, candidateIDs)
		if err != nil {
			r.log.Warn("bulk path lookup failed, falling back to single lookups", "error", err)
		} else {
			bulk = paths
		}
	}

	for _, id := range candidateIDs {
		var path []models.TaxonomyNode
		if bulk != nil {
			path = bulk[id]
		} else {
			p, err := r.client.FetchTaxonomyPathToRoot(ctx, id)
			if err != nil {
				r.log.Warn("path lookup failed", "node", id, "error", err)
				continue
			}
			path = p
		}
		if len(path) == 0 || path[0].TaxonomyID != r.taxonomyID {
			continue
		}
		return models.Reverse(path)
	}
	return nil
}

func (r *Reconciler) refresh(ctx context.Context) error {
	terms, err := r.terms.TermsWithMeta(ctx, storage.TaxonomyRemoteCategory, storage.TermMetaRemoteID)
	if err != nil {
		return fmt.Errorf("load category terms: %w", err)
	}
	index := make(map[string]storage.Term, len(terms))
	for _, term := range terms {
		if id := term.MetaValue(storage.TermMetaRemoteID); id != "" {
			index[id] = term
		}
	}
	r.index = index
	return nil
}

// CategoryAttributeIDs collects the base attribute ids declared along a path,
// root first and without repeats.
func CategoryAttributeIDs(path []models.TaxonomyNode) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, node := range path {
		for _, attr := range node.Attributes {
			if attr.BaseAttribute == "" {
				continue
			}
			if _, ok := seen[attr.BaseAttribute]; ok {
				continue
			}
			seen[attr.BaseAttribute] = struct{}{}
			ids = append(ids, attr.BaseAttribute)
		}
	}
	return ids
}
