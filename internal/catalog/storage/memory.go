package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"pimsync_api/internal/pim/models"
	"pimsync_api/internal/syncerr"
)

type memRecord struct {
	Record
	meta map[string]json.RawMessage
}

// MemoryStore is an in-process RecordStore, TermStore and RequirementSetStore.
type MemoryStore struct {
	mu sync.RWMutex

	nextRecordID int64
	records      map[int64]*memRecord
	byKey        map[PostType]map[string]int64

	nextTermID int64
	terms      map[int64]*Term
	relations  map[int64]map[int64]string

	requirementSets map[string]*models.RequirementSet

	writes int
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:         make(map[int64]*memRecord),
		byKey:           make(map[PostType]map[string]int64),
		terms:           make(map[int64]*Term),
		relations:       make(map[int64]map[int64]string),
		requirementSets: make(map[string]*models.RequirementSet),
		now:             time.Now,
	}
}

// Writes counts mutating calls.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *MemoryStore) FindByExternalKey(_ context.Context, postType PostType, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[postType][key]
	if !ok {
		return nil, nil
	}
	rec := s.records[id].Record
	return &rec, nil
}

func (s *MemoryStore) FindByMeta(_ context.Context, postType PostType, key string, value interface{}) ([]Record, error) {
	want, err := encodeMeta(value)
	if err != nil {
		return nil, syncerr.Invalid("meta-encode", "failed to encode meta value", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.records {
		if rec.Type != postType {
			continue
		}
		if got, ok := rec.meta[key]; ok && bytes.Equal(got, want) {
			out = append(out, rec.Record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ExistsByMeta(ctx context.Context, postType PostType, key string, value interface{}) (bool, error) {
	found, err := s.FindByMeta(ctx, postType, key, value)
	return len(found) > 0, err
}

func (s *MemoryStore) Insert(_ context.Context, rec Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ExternalKey != "" {
		if _, dup := s.byKey[rec.Type][rec.ExternalKey]; dup {
			return 0, syncerr.Store("duplicate-record", fmt.Sprintf("%s %s already exists", rec.Type, rec.ExternalKey), nil)
		}
	}
	meta := make(map[string]json.RawMessage, len(rec.Meta))
	for key, value := range rec.Meta {
		raw, err := encodeMeta(value)
		if err != nil {
			return 0, syncerr.Invalid("meta-encode", "failed to encode meta "+key, err)
		}
		meta[key] = raw
	}
	s.nextRecordID++
	rec.ID = s.nextRecordID
	rec.CreatedAt = s.now()
	rec.UpdatedAt = rec.CreatedAt
	rec.Meta = nil
	s.records[rec.ID] = &memRecord{Record: rec, meta: meta}
	if rec.ExternalKey != "" {
		if s.byKey[rec.Type] == nil {
			s.byKey[rec.Type] = make(map[string]int64)
		}
		s.byKey[rec.Type][rec.ExternalKey] = rec.ID
	}
	s.writes++
	return rec.ID, nil
}

func (s *MemoryStore) Update(_ context.Context, id int64, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return syncerr.Store("record-missing", fmt.Sprintf("record %d not found", id), nil)
	}
	rec.Fields = fields
	rec.UpdatedAt = s.now()
	s.writes++
	return nil
}

func (s *MemoryStore) SetMetadata(_ context.Context, id int64, key string, value interface{}) error {
	raw, err := encodeMeta(value)
	if err != nil {
		return syncerr.Invalid("meta-encode", "failed to encode meta "+key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return syncerr.Store("record-missing", fmt.Sprintf("record %d not found", id), nil)
	}
	rec.meta[key] = raw
	s.writes++
	return nil
}

func (s *MemoryStore) GetMetadata(_ context.Context, id int64, key string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	raw, ok := rec.meta[key]
	return raw, ok, nil
}

// Records lists every record of the post type, ordered by id.
func (s *MemoryStore) Records(postType PostType) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if rec.Type == postType {
			out = append(out, rec.Record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) Terms(_ context.Context, taxonomy string) ([]Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.termsLocked(taxonomy, ""), nil
}

func (s *MemoryStore) TermsWithMeta(_ context.Context, taxonomy, metaKey string) ([]Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.termsLocked(taxonomy, metaKey), nil
}

func (s *MemoryStore) termsLocked(taxonomy, metaKey string) []Term {
	var out []Term
	for _, term := range s.terms {
		if term.Taxonomy != taxonomy {
			continue
		}
		if metaKey != "" {
			if _, ok := term.Meta[metaKey]; !ok {
				continue
			}
		}
		out = append(out, copyTerm(term))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) FindTermByName(_ context.Context, taxonomy, name string) (*Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, term := range s.termsLocked(taxonomy, "") {
		if term.Name == name {
			t := term
			return &t, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) InsertTerm(_ context.Context, term Term) (*Term, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.terms {
		if existing.Taxonomy == term.Taxonomy && existing.ParentID == term.ParentID && existing.Name == term.Name {
			return nil, syncerr.Store("term-exists", fmt.Sprintf("term %q already exists in %s", term.Name, term.Taxonomy), nil)
		}
	}
	s.nextTermID++
	term.ID = s.nextTermID
	if term.Slug == "" {
		term.Slug = Slugify(term.Name)
	}
	stored := copyTerm(&term)
	if stored.Meta == nil {
		stored.Meta = make(map[string]string)
	}
	s.terms[term.ID] = &stored
	s.writes++
	out := copyTerm(&stored)
	return &out, nil
}

func (s *MemoryStore) SetTermMeta(_ context.Context, termID int64, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	term, ok := s.terms[termID]
	if !ok {
		return syncerr.Store("term-missing", fmt.Sprintf("term %d not found", termID), nil)
	}
	term.Meta[key] = value
	s.writes++
	return nil
}

func (s *MemoryStore) GetTermMeta(_ context.Context, termID int64, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	term, ok := s.terms[termID]
	if !ok {
		return "", false, nil
	}
	v, ok := term.Meta[key]
	return v, ok, nil
}

func (s *MemoryStore) SetObjectTerms(_ context.Context, objectID int64, taxonomy string, termIDs []int64, appendTerms bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range termIDs {
		if term, ok := s.terms[id]; !ok || term.Taxonomy != taxonomy {
			return syncerr.Store("term-missing", fmt.Sprintf("term %d not found in %s", id, taxonomy), nil)
		}
	}
	rel := s.relations[objectID]
	if rel == nil {
		rel = make(map[int64]string)
		s.relations[objectID] = rel
	}
	if !appendTerms {
		for id, tax := range rel {
			if tax == taxonomy {
				delete(rel, id)
			}
		}
	}
	for _, id := range termIDs {
		rel[id] = taxonomy
	}
	s.writes++
	return nil
}

func (s *MemoryStore) ObjectTerms(_ context.Context, objectID int64, taxonomy string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int64
	for id, tax := range s.relations[objectID] {
		if tax == taxonomy {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *MemoryStore) ObjectsWithTerm(_ context.Context, termID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int64
	for objectID, rel := range s.relations {
		if _, ok := rel[termID]; ok {
			out = append(out, objectID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *MemoryStore) RecountTerms(_ context.Context, taxonomy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, term := range s.terms {
		if term.Taxonomy != taxonomy {
			continue
		}
		count := 0
		for _, rel := range s.relations {
			if _, ok := rel[id]; ok {
				count++
			}
		}
		term.Count = count
	}
	s.writes++
	return nil
}

func (s *MemoryStore) SaveRequirementSet(_ context.Context, set *models.RequirementSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *set
	s.requirementSets[set.ID] = &cp
	s.writes++
	return nil
}

func (s *MemoryStore) LoadRequirementSet(_ context.Context, id string) (*models.RequirementSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.requirementSets[id]
	if !ok {
		return nil, nil
	}
	cp := *set
	return &cp, nil
}

func copyTerm(t *Term) Term {
	out := *t
	if t.Meta != nil {
		out.Meta = make(map[string]string, len(t.Meta))
		for k, v := range t.Meta {
			out.Meta[k] = v
		}
	}
	return out
}
