package requirements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"pimsync_api/internal/pim/models"
	"pimsync_api/pkg/logger"
)

type fakeFetcher struct {
	set        *models.RequirementSet
	setErr     error
	attrErr    error
	chunkSizes []int
}

func (f *fakeFetcher) FetchRequirementSet(_ context.Context, id string) (*models.RequirementSet, error) {
	if f.setErr != nil {
		return nil, f.setErr
	}
	cp := *f.set
	cp.Groups = append([]models.AttributeGroup(nil), f.set.Groups...)
	return &cp, nil
}

func (f *fakeFetcher) FetchAttributes(_ context.Context, ids []string) ([]models.Attribute, error) {
	if f.attrErr != nil {
		return nil, f.attrErr
	}
	f.chunkSizes = append(f.chunkSizes, len(ids))
	out := make([]models.Attribute, 0, len(ids))
	// reversed to check that declaration order is restored
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, models.Attribute{ID: ids[i], Description: "desc " + ids[i]})
	}
	return out, nil
}

func group(id string, attrIDs ...string) models.AttributeGroup {
	g := models.AttributeGroup{ID: id}
	for _, a := range attrIDs {
		raw, _ := json.Marshal(models.AttributeRef{AttributeID: a})
		g.RawAttributes = append(g.RawAttributes, raw)
	}
	return g
}

func TestLoadChunksAndKeepsOrder(t *testing.T) {
	var many []string
	for i := 0; i < 250; i++ {
		many = append(many, fmt.Sprintf("a-%03d", i))
	}
	f := &fakeFetcher{set: &models.RequirementSet{ID: "rs-1", Groups: []models.AttributeGroup{
		group("big", many...),
		group("small", "x", "y", "x"),
	}}}
	c := NewCache(f, logger.NewNop())

	if _, err := c.Load(context.Background(), "rs-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []int{100, 100, 50, 3}
	if fmt.Sprint(f.chunkSizes) != fmt.Sprint(want) {
		t.Fatalf("chunks: want=%v got=%v", want, f.chunkSizes)
	}

	big := c.AttributesByGroupID("big")
	if len(big) != 250 || big[0].ID != "a-000" || big[249].ID != "a-249" {
		t.Fatalf("big group order: first=%v last=%v len=%d", big[0].ID, big[len(big)-1].ID, len(big))
	}
	small := c.AttributesByGroupID("small")
	if len(small) != 2 {
		t.Fatalf("small group must be deduplicated, got=%+v", small)
	}
	if _, ok := c.AttributeByID("y"); !ok {
		t.Fatalf("AttributeByID(y): not found")
	}
	if all := c.AllAttributes(); len(all) != 252 {
		t.Fatalf("AllAttributes: want=252 got=%d", len(all))
	}
}

func TestLoadFailureKeepsPreviousSet(t *testing.T) {
	f := &fakeFetcher{set: &models.RequirementSet{ID: "rs-1", Groups: []models.AttributeGroup{group("g", "a")}}}
	c := NewCache(f, logger.NewNop())
	if _, err := c.Load(context.Background(), "rs-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	f.attrErr = errors.New("boom")
	if _, err := c.Load(context.Background(), "rs-1"); err == nil {
		t.Fatalf("Load: expected error")
	}
	if got := c.AttributesByGroupID("g"); len(got) != 1 {
		t.Fatalf("previous set must survive a failed load, got=%+v", got)
	}
}

func TestEmptyCache(t *testing.T) {
	c := NewCache(&fakeFetcher{}, logger.NewNop())
	if c.AttributesByGroupID("g") != nil || c.AllAttributes() != nil || c.Set() != nil {
		t.Fatalf("empty cache must return nothing")
	}
}
