package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"pimsync_api/internal/pim/models"
	"pimsync_api/internal/syncerr"
)

type PostgresRequirementSetStore struct {
	db *sql.DB
}

func NewPostgresRequirementSetStore(db *sql.DB) *PostgresRequirementSetStore {
	return &PostgresRequirementSetStore{db: db}
}

// requirementSetSnapshot keeps the hydrated attributes, which RequirementSet omits from its JSON.
type requirementSetSnapshot struct {
	Set        *models.RequirementSet        `json:"set"`
	Attributes map[string][]models.Attribute `json:"attributes"`
}

func (s *PostgresRequirementSetStore) SaveRequirementSet(ctx context.Context, set *models.RequirementSet) error {
	snapshot := requirementSetSnapshot{Set: set, Attributes: make(map[string][]models.Attribute, len(set.Groups))}
	for _, g := range set.Groups {
		snapshot.Attributes[g.ID] = g.Attributes
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return syncerr.Invalid("requirement-set-encode", "failed to encode requirement set", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pimsync.requirement_sets (id, name, payload, fetched_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, payload = EXCLUDED.payload, fetched_at = now()`,
		set.ID, set.Name, string(payload))
	if err != nil {
		return syncerr.Store("requirement-set-save", "failed to save requirement set "+set.ID, err)
	}
	return nil
}

func (s *PostgresRequirementSetStore) LoadRequirementSet(ctx context.Context, id string) (*models.RequirementSet, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM pimsync.requirement_sets WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, syncerr.Store("requirement-set-load", "failed to load requirement set "+id, err)
	}
	var snapshot requirementSetSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil || snapshot.Set == nil {
		return nil, syncerr.Store("requirement-set-decode", "corrupt requirement set snapshot "+id, err)
	}
	for i := range snapshot.Set.Groups {
		snapshot.Set.Groups[i].Attributes = snapshot.Attributes[snapshot.Set.Groups[i].ID]
	}
	return snapshot.Set, nil
}
