package settings

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"

	"pimsync_api/config"
	"pimsync_api/internal/syncerr"
)

// Store is the read only key/value settings source.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

type MapStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMapStore(values map[string]string) *MapStore {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &MapStore{values: cp}
}

func (s *MapStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set is used by tests and the admin surface.
func (s *MapStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// PostgresStore reads the pimsync.settings table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM pimsync.settings WHERE key_name = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, syncerr.Store("settings-read", "failed to read setting "+key, err)
	}
	return value, true, nil
}

// Fallback consults primary first and falls back to secondary for missing keys.
type Fallback struct {
	Primary   Store
	Secondary Store
}

func (f Fallback) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := f.Primary.Get(ctx, key)
	if err != nil || ok {
		return v, ok, err
	}
	return f.Secondary.Get(ctx, key)
}

// FromConfig flattens the application config into settings keys.
func FromConfig(cfg *config.AppConfig) map[string]string {
	fm := cfg.FieldMap
	values := map[string]string{
		KeyUsername:       cfg.PIM.Username,
		KeySecret:         cfg.PIM.Secret,
		KeyDataOwner:      cfg.PIM.DataOwner,
		KeyRecipient:      cfg.PIM.Recipient,
		KeyRequirementSet: cfg.PIM.RequirementSetID,
		KeyTaxonomyID:     cfg.PIM.TaxonomyID,
		KeyAuthor:         cfg.Import.Author,

		KeyFieldPostTitle:      fm.PostTitle,
		KeyFieldPostContent:    fm.PostContent,
		KeyFieldPostExcerpt:    fm.PostExcerpt,
		KeyFieldGTIN:           fm.GTIN,
		KeyFieldSKU:            fm.SKU,
		KeyFieldModelNo:        fm.ModelNo,
		KeyFieldModelsUsedWith: fm.ModelsUsedWith,
		KeyFieldRegularPrice:   fm.RegularPrice,
		KeyFieldWeight:         fm.Weight,
		KeyFieldLength:         fm.Length,
		KeyFieldWidth:          fm.Width,
		KeyFieldHeight:         fm.Height,
		KeyFieldBrand:          fm.Brand,
		KeyFieldPrimaryImage:   fm.PrimaryImage,
		KeyFieldDigitalAssets:  fm.DigitalAssets,
		KeyFieldDocuments:      fm.Documents,
		KeyFieldFeatures:       fm.Features,
		KeyFieldDimensions:     fm.Dimensions,
		KeyFieldOther:          fm.Other,
		KeyFieldRegulatory:     fm.Regulatory,
	}
	if cfg.Import.ReprocessSkipped != nil {
		values[KeyReprocessSkipped] = strconv.FormatBool(*cfg.Import.ReprocessSkipped)
	}
	for k, v := range values {
		if v == "" {
			delete(values, k)
		}
	}
	return values
}
