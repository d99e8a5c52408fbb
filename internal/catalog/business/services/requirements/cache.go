package requirements

import (
	"context"
	"fmt"
	"sync"

	"pimsync_api/internal/pim/models"
	"pimsync_api/pkg/logger"
)

// ChunkSize is the largest id list sent to the attribute endpoint at once.
const ChunkSize = 100

type Fetcher interface {
	FetchRequirementSet(ctx context.Context, id string) (*models.RequirementSet, error)
	FetchAttributes(ctx context.Context, ids []string) ([]models.Attribute, error)
}

// Cache holds one hydrated requirement set for the length of a session.
type Cache struct {
	client Fetcher
	log    logger.Logger

	mu   sync.RWMutex
	set  *models.RequirementSet
	byID map[string]models.Attribute
}

func NewCache(client Fetcher, log logger.Logger) *Cache {
	return &Cache{client: client, log: log.WithPrefix("requirements")}
}

// Load fetches the set and hydrates every group. The previous set stays in
// place when any call fails.
func (c *Cache) Load(ctx context.Context, id string) (*models.RequirementSet, error) {
	set, err := c.client.FetchRequirementSet(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch requirement set %s: %w", id, err)
	}

	byID := make(map[string]models.Attribute)
	for i := range set.Groups {
		group := &set.Groups[i]
		ids := group.AttributeIDs()

		fetched := make(map[string]models.Attribute, len(ids))
		for _, packet := range DivideToPackets(ids, ChunkSize) {
			attributes, err := c.client.FetchAttributes(ctx, packet)
			if err != nil {
				return nil, fmt.Errorf("fetch attributes of group %s: %w", group.ID, err)
			}
			for _, attr := range attributes {
				fetched[attr.ID] = attr
			}
		}

		group.Attributes = make([]models.Attribute, 0, len(ids))
		for _, attrID := range ids {
			attr, ok := fetched[attrID]
			if !ok {
				c.log.Warn("attribute missing from response", "group", group.ID, "attribute", attrID)
				continue
			}
			group.Attributes = append(group.Attributes, attr)
			byID[attr.ID] = attr
		}
	}

	c.mu.Lock()
	c.set = set
	c.byID = byID
	c.mu.Unlock()

	c.log.Info("requirement set loaded", "id", set.ID, "groups", len(set.Groups), "attributes", len(byID))
	return set, nil
}

func (c *Cache) Set() *models.RequirementSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set
}

// AttributesByGroupID returns the group's attributes without duplicates.
func (c *Cache) AttributesByGroupID(groupID string) []models.Attribute {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.set == nil || groupID == "" {
		return nil
	}
	for _, group := range c.set.Groups {
		if group.ID == groupID {
			return unique(group.Attributes)
		}
	}
	return nil
}

func (c *Cache) AttributeByID(id string) (models.Attribute, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	attr, ok := c.byID[id]
	return attr, ok
}

func (c *Cache) AllAttributes() []models.Attribute {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.set == nil {
		return nil
	}
	var all []models.Attribute
	for _, group := range c.set.Groups {
		all = append(all, group.Attributes...)
	}
	return unique(all)
}

func unique(attributes []models.Attribute) []models.Attribute {
	seen := make(map[string]struct{}, len(attributes))
	out := make([]models.Attribute, 0, len(attributes))
	for _, attr := range attributes {
		if _, dup := seen[attr.ID]; dup {
			continue
		}
		seen[attr.ID] = struct{}{}
		out = append(out, attr)
	}
	return out
}

// DivideToPackets splits ids into consecutive packets of at most packetSize.
func DivideToPackets(ids []string, packetSize int) [][]string {
	var packets [][]string
	for start := 0; start < len(ids); start += packetSize {
		end := start + packetSize
		if end > len(ids) {
			end = len(ids)
		}
		packets = append(packets, ids[start:end])
	}
	return packets
}
