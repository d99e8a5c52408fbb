package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"pimsync_api/internal/pim/models"
	"pimsync_api/internal/syncerr"
	"pimsync_api/pkg/logger"
)

type CatalogConfig struct {
	BaseURL   string
	Username  string
	Secret    string
	DataOwner string
	Options   Options
}

// CatalogClient exposes the typed PIM endpoints on top of the Gateway.
type CatalogClient struct {
	gateway   *Gateway
	dataOwner string
	log       logger.Logger
}

func NewCatalogClient(cfg CatalogConfig, log logger.Logger) *CatalogClient {
	log = log.WithPrefix("pim")
	base := NewBaseClient(cfg.BaseURL, log, cfg.Options)
	return &CatalogClient{
		gateway:   NewGateway(base, cfg.Username, cfg.Secret, log),
		dataOwner: cfg.DataOwner,
		log:       log,
	}
}

func (c *CatalogClient) Authenticate(ctx context.Context) (string, error) {
	return c.gateway.Authenticate(ctx)
}

func (c *CatalogClient) FetchRequirementSet(ctx context.Context, id string) (*models.RequirementSet, error) {
	body, err := c.gateway.Call(ctx, http.MethodPost, "api/distribute/requirementset/", []string{id})
	if err != nil {
		return nil, err
	}
	var sets []models.RequirementSet
	if err := decodeJSON(body, &sets, "requirement set"); err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, syncerr.TypeMismatch("requirement-set-empty", "requirement set "+id+" not returned", nil)
	}
	return &sets[0], nil
}

// FetchAttributes returns attribute metadata; callers chunk large id lists.
func (c *CatalogClient) FetchAttributes(ctx context.Context, ids []string) ([]models.Attribute, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := url.Values{}
	query.Set("vendorId", c.dataOwner)
	body, err := c.gateway.Call(ctx, http.MethodPost, "api/attribute/?"+query.Encode(), ids)
	if err != nil {
		return nil, err
	}
	var attributes []models.Attribute
	if err := decodeJSON(body, &attributes, "attribute"); err != nil {
		return nil, err
	}
	return attributes, nil
}

func (c *CatalogClient) SearchProducts(ctx context.Context, filter models.ProductSearchFilter, skip, take int) (*models.SearchResult, error) {
	query := url.Values{}
	query.Set("skip", strconv.Itoa(skip))
	query.Set("take", strconv.Itoa(take))

	request := models.SearchRequest{DataOwner: c.dataOwner, ProductSearchFilter: filter}
	body, err := c.gateway.Call(ctx, http.MethodPost, "api/search/productsearch/?"+query.Encode(), request)
	if err != nil {
		return nil, err
	}
	var result models.SearchResult
	if err := decodeJSON(body, &result, "search"); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *CatalogClient) FetchProduct(ctx context.Context, id string) (*models.RemoteProduct, error) {
	body, err := c.gateway.Call(ctx, http.MethodGet, "api/product/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeProduct(body)
}

// FetchTaxonomyPathToRoot returns the path leaf first.
func (c *CatalogClient) FetchTaxonomyPathToRoot(ctx context.Context, nodeID string) ([]models.TaxonomyNode, error) {
	body, err := c.gateway.Call(ctx, http.MethodGet, "api/taxonomynode/pathtoroot/"+url.PathEscape(nodeID), nil)
	if err != nil {
		return nil, err
	}
	var path []models.TaxonomyNode
	if err := decodeJSON(body, &path, "taxonomy path"); err != nil {
		return nil, err
	}
	if err := checkNodes(path); err != nil {
		return nil, err
	}
	return path, nil
}

func (c *CatalogClient) FetchTaxonomyPathsToRoot(ctx context.Context, nodeIDs []string) (map[string][]models.TaxonomyNode, error) {
	if len(nodeIDs) == 0 {
		return map[string][]models.TaxonomyNode{}, nil
	}
	body, err := c.gateway.Call(ctx, http.MethodPost, "api/taxonomynode/pathstoroot/", nodeIDs)
	if err != nil {
		return nil, err
	}
	paths := make(map[string][]models.TaxonomyNode, len(nodeIDs))
	if err := decodeJSON(body, &paths, "taxonomy paths"); err != nil {
		return nil, err
	}
	for _, path := range paths {
		if err := checkNodes(path); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func checkNodes(path []models.TaxonomyNode) error {
	for _, node := range path {
		if node.Type != models.TypeTaxonomyNode {
			return syncerr.TypeMismatch("taxonomy-node-error", fmt.Sprintf("node %s has type %q", node.ID, node.Type), nil)
		}
	}
	return nil
}
