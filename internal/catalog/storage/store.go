package storage

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"pimsync_api/internal/pim/models"
)

type RecordStore interface {
	// FindByExternalKey returns nil, nil when no record matches.
	FindByExternalKey(ctx context.Context, postType PostType, key string) (*Record, error)
	FindByMeta(ctx context.Context, postType PostType, key string, value interface{}) ([]Record, error)
	ExistsByMeta(ctx context.Context, postType PostType, key string, value interface{}) (bool, error)
	Insert(ctx context.Context, rec Record) (int64, error)
	Update(ctx context.Context, id int64, fields Fields) error
	SetMetadata(ctx context.Context, id int64, key string, value interface{}) error
	GetMetadata(ctx context.Context, id int64, key string) (json.RawMessage, bool, error)
}

type TermStore interface {
	Terms(ctx context.Context, taxonomy string) ([]Term, error)
	TermsWithMeta(ctx context.Context, taxonomy, metaKey string) ([]Term, error)
	FindTermByName(ctx context.Context, taxonomy, name string) (*Term, error)
	InsertTerm(ctx context.Context, term Term) (*Term, error)
	SetTermMeta(ctx context.Context, termID int64, key, value string) error
	GetTermMeta(ctx context.Context, termID int64, key string) (string, bool, error)
	// SetObjectTerms replaces the object's terms of the taxonomy unless appendTerms is set.
	SetObjectTerms(ctx context.Context, objectID int64, taxonomy string, termIDs []int64, appendTerms bool) error
	ObjectTerms(ctx context.Context, objectID int64, taxonomy string) ([]int64, error)
	ObjectsWithTerm(ctx context.Context, termID int64) ([]int64, error)
	RecountTerms(ctx context.Context, taxonomy string) error
}

// BlobStore keeps downloaded asset bytes under content addressed keys.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	URL(key string) string
}

// ImportLock is the time boxed import mutex.
type ImportLock interface {
	// Acquire returns false when another unexpired holder exists.
	Acquire(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	Refresh(ctx context.Context, owner string, ttl time.Duration) error
	Release(ctx context.Context, owner string) error
	Active(ctx context.Context) (bool, error)
}

type RequirementSetStore interface {
	SaveRequirementSet(ctx context.Context, set *models.RequirementSet) error
	LoadRequirementSet(ctx context.Context, id string) (*models.RequirementSet, error)
}

// GetString decodes a string meta value, returning "" when it is absent.
func GetString(ctx context.Context, store RecordStore, id int64, key string) (string, error) {
	raw, ok, err := store.GetMetadata(ctx, id, key)
	if err != nil || !ok {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), nil
	}
	return s, nil
}
