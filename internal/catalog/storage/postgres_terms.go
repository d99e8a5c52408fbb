package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"pimsync_api/internal/syncerr"
)

type PostgresTermStore struct {
	db *sql.DB
}

func NewPostgresTermStore(db *sql.DB) *PostgresTermStore {
	return &PostgresTermStore{db: db}
}

func (s *PostgresTermStore) Terms(ctx context.Context, taxonomy string) ([]Term, error) {
	return s.queryTerms(ctx, `SELECT id, taxonomy, name, slug, parent_id, count FROM pimsync.terms WHERE taxonomy = $1 ORDER BY id`, taxonomy)
}

func (s *PostgresTermStore) TermsWithMeta(ctx context.Context, taxonomy, metaKey string) ([]Term, error) {
	return s.queryTerms(ctx, `
		SELECT t.id, t.taxonomy, t.name, t.slug, t.parent_id, t.count
		FROM pimsync.terms t
		WHERE t.taxonomy = $1
		  AND EXISTS (SELECT 1 FROM pimsync.term_meta m WHERE m.term_id = t.id AND m.meta_key = $2)
		ORDER BY t.id`, taxonomy, metaKey)
}

func (s *PostgresTermStore) FindTermByName(ctx context.Context, taxonomy, name string) (*Term, error) {
	terms, err := s.queryTerms(ctx,
		`SELECT id, taxonomy, name, slug, parent_id, count FROM pimsync.terms WHERE taxonomy = $1 AND name = $2 ORDER BY id LIMIT 1`,
		taxonomy, name)
	if err != nil || len(terms) == 0 {
		return nil, err
	}
	return &terms[0], nil
}

func (s *PostgresTermStore) queryTerms(ctx context.Context, query string, args ...interface{}) ([]Term, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, syncerr.Store("term-query", "failed to query terms", err)
	}
	defer rows.Close()

	var terms []Term
	var ids []int64
	for rows.Next() {
		var t Term
		if err := rows.Scan(&t.ID, &t.Taxonomy, &t.Name, &t.Slug, &t.ParentID, &t.Count); err != nil {
			return nil, syncerr.Store("term-scan", "failed to scan term", err)
		}
		t.Meta = make(map[string]string)
		terms = append(terms, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, syncerr.Store("term-scan", "failed to iterate terms", err)
	}
	if len(ids) == 0 {
		return terms, nil
	}

	index := make(map[int64]int, len(terms))
	for i, t := range terms {
		index[t.ID] = i
	}
	metaRows, err := s.db.QueryContext(ctx,
		`SELECT term_id, meta_key, meta_value FROM pimsync.term_meta WHERE term_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, syncerr.Store("term-meta-query", "failed to query term meta", err)
	}
	defer metaRows.Close()
	for metaRows.Next() {
		var id int64
		var key, value string
		if err := metaRows.Scan(&id, &key, &value); err != nil {
			return nil, syncerr.Store("term-meta-scan", "failed to scan term meta", err)
		}
		terms[index[id]].Meta[key] = value
	}
	if err := metaRows.Err(); err != nil {
		return nil, syncerr.Store("term-meta-scan", "failed to iterate term meta", err)
	}
	return terms, nil
}

func (s *PostgresTermStore) InsertTerm(ctx context.Context, term Term) (*Term, error) {
	if term.Slug == "" {
		term.Slug = Slugify(term.Name)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, syncerr.Store("term-insert", "failed to begin transaction", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO pimsync.terms (taxonomy, name, slug, parent_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, term.Taxonomy, term.Name, term.Slug, term.ParentID).Scan(&term.ID)
	if err != nil {
		return nil, syncerr.Store("term-insert", fmt.Sprintf("failed to insert term %q into %s", term.Name, term.Taxonomy), err)
	}
	for key, value := range term.Meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pimsync.term_meta (term_id, meta_key, meta_value) VALUES ($1, $2, $3)`,
			term.ID, key, value); err != nil {
			return nil, syncerr.Store("term-meta-insert", "failed to insert term meta "+key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, syncerr.Store("term-insert", "failed to commit term", err)
	}
	if term.Meta == nil {
		term.Meta = make(map[string]string)
	}
	return &term, nil
}

func (s *PostgresTermStore) SetTermMeta(ctx context.Context, termID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pimsync.term_meta (term_id, meta_key, meta_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (term_id, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value`,
		termID, key, value)
	if err != nil {
		return syncerr.Store("term-meta-update", fmt.Sprintf("failed to set %s on term %d", key, termID), err)
	}
	return nil
}

func (s *PostgresTermStore) GetTermMeta(ctx context.Context, termID int64, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT meta_value FROM pimsync.term_meta WHERE term_id = $1 AND meta_key = $2`, termID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, syncerr.Store("term-meta-read", "failed to read term meta "+key, err)
	}
	return value, true, nil
}

func (s *PostgresTermStore) SetObjectTerms(ctx context.Context, objectID int64, taxonomy string, termIDs []int64, appendTerms bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return syncerr.Store("term-relate", "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if !appendTerms {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM pimsync.term_relationships WHERE object_id = $1 AND taxonomy = $2`, objectID, taxonomy); err != nil {
			return syncerr.Store("term-relate", "failed to clear object terms", err)
		}
	}
	if len(termIDs) > 0 {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pimsync.term_relationships (object_id, term_id, taxonomy)
			SELECT $1, t.id, t.taxonomy FROM pimsync.terms t
			WHERE t.id = ANY($2) AND t.taxonomy = $3
			ON CONFLICT (object_id, term_id) DO NOTHING`,
			objectID, pq.Array(termIDs), taxonomy)
		if err != nil {
			return syncerr.Store("term-relate", fmt.Sprintf("failed to relate object %d", objectID), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return syncerr.Store("term-relate", "failed to commit object terms", err)
	}
	return nil
}

func (s *PostgresTermStore) ObjectTerms(ctx context.Context, objectID int64, taxonomy string) ([]int64, error) {
	return s.queryIDs(ctx,
		`SELECT term_id FROM pimsync.term_relationships WHERE object_id = $1 AND taxonomy = $2 ORDER BY term_id`,
		objectID, taxonomy)
}

func (s *PostgresTermStore) ObjectsWithTerm(ctx context.Context, termID int64) ([]int64, error) {
	return s.queryIDs(ctx,
		`SELECT object_id FROM pimsync.term_relationships WHERE term_id = $1 ORDER BY object_id`, termID)
}

func (s *PostgresTermStore) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, syncerr.Store("term-relate-query", "failed to query relationships", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, syncerr.Store("term-relate-scan", "failed to scan relationship", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresTermStore) RecountTerms(ctx context.Context, taxonomy string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pimsync.terms t
		SET count = (SELECT COUNT(*) FROM pimsync.term_relationships r WHERE r.term_id = t.id)
		WHERE t.taxonomy = $1`, taxonomy)
	if err != nil {
		return syncerr.Store("term-recount", "failed to recount "+taxonomy, err)
	}
	return nil
}
