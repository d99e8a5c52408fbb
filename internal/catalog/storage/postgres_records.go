package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"pimsync_api/internal/syncerr"
)

type PostgresRecordStore struct {
	db *sql.DB
}

func NewPostgresRecordStore(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

const recordColumns = `id, post_type, COALESCE(external_key, ''), title, content, excerpt, status, author, name, parent_id, mime_type, guid, created_at, updated_at`

func scanRecord(row interface{ Scan(...interface{}) error }) (*Record, error) {
	var rec Record
	var postType string
	err := row.Scan(&rec.ID, &postType, &rec.ExternalKey,
		&rec.Fields.Title, &rec.Fields.Content, &rec.Fields.Excerpt, &rec.Fields.Status,
		&rec.Fields.Author, &rec.Fields.Name, &rec.Fields.ParentID, &rec.Fields.MimeType, &rec.Fields.GUID,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Type = PostType(postType)
	return &rec, nil
}

func (s *PostgresRecordStore) FindByExternalKey(ctx context.Context, postType PostType, key string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM pimsync.records WHERE post_type = $1 AND external_key = $2`,
		string(postType), key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, syncerr.Store("record-find", "failed to find record "+key, err)
	}
	return rec, nil
}

func (s *PostgresRecordStore) FindByMeta(ctx context.Context, postType PostType, key string, value interface{}) ([]Record, error) {
	raw, err := encodeMeta(value)
	if err != nil {
		return nil, syncerr.Invalid("meta-encode", "failed to encode meta value", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM pimsync.records r
		WHERE r.post_type = $1
		  AND EXISTS (SELECT 1 FROM pimsync.record_meta m
		              WHERE m.record_id = r.id AND m.meta_key = $2 AND m.meta_value = $3::jsonb)
		ORDER BY r.id`,
		string(postType), key, string(raw))
	if err != nil {
		return nil, syncerr.Store("record-find", "failed to query records by meta "+key, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, syncerr.Store("record-scan", "failed to scan record", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, syncerr.Store("record-scan", "failed to iterate records", err)
	}
	return out, nil
}

func (s *PostgresRecordStore) ExistsByMeta(ctx context.Context, postType PostType, key string, value interface{}) (bool, error) {
	raw, err := encodeMeta(value)
	if err != nil {
		return false, syncerr.Invalid("meta-encode", "failed to encode meta value", err)
	}
	var exists bool
	err = s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pimsync.records r
			JOIN pimsync.record_meta m ON m.record_id = r.id
			WHERE r.post_type = $1 AND m.meta_key = $2 AND m.meta_value = $3::jsonb
		)`, string(postType), key, string(raw)).Scan(&exists)
	if err != nil {
		return false, syncerr.Store("record-exists", "failed to check meta "+key, err)
	}
	return exists, nil
}

func (s *PostgresRecordStore) Insert(ctx context.Context, rec Record) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, syncerr.Store("record-insert", "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var id int64
	f := rec.Fields
	err = tx.QueryRowContext(ctx, `
		INSERT INTO pimsync.records (post_type, external_key, title, content, excerpt, status, author, name, parent_id, mime_type, guid)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		string(rec.Type), rec.ExternalKey, f.Title, f.Content, f.Excerpt, f.Status, f.Author, f.Name, f.ParentID, f.MimeType, f.GUID,
	).Scan(&id)
	if err != nil {
		return 0, syncerr.Store("record-insert", fmt.Sprintf("failed to insert %s %s", rec.Type, rec.ExternalKey), err)
	}

	for key, value := range rec.Meta {
		raw, err := encodeMeta(value)
		if err != nil {
			return 0, syncerr.Invalid("meta-encode", "failed to encode meta "+key, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pimsync.record_meta (record_id, meta_key, meta_value) VALUES ($1, $2, $3::jsonb)`,
			id, key, string(raw)); err != nil {
			return 0, syncerr.Store("meta-insert", fmt.Sprintf("failed to insert %s on record %d", key, id), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, syncerr.Store("record-insert", "failed to commit record", err)
	}
	return id, nil
}

func (s *PostgresRecordStore) Update(ctx context.Context, id int64, f Fields) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pimsync.records
		SET title = $2, content = $3, excerpt = $4, status = $5, author = $6, name = $7, parent_id = $8,
		    mime_type = $9, guid = $10, updated_at = now()
		WHERE id = $1`,
		id, f.Title, f.Content, f.Excerpt, f.Status, f.Author, f.Name, f.ParentID, f.MimeType, f.GUID)
	if err != nil {
		return syncerr.Store("record-update", fmt.Sprintf("failed to update record %d", id), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return syncerr.Store("record-missing", fmt.Sprintf("record %d not found", id), nil)
	}
	return nil
}

func (s *PostgresRecordStore) SetMetadata(ctx context.Context, id int64, key string, value interface{}) error {
	raw, err := encodeMeta(value)
	if err != nil {
		return syncerr.Invalid("meta-encode", "failed to encode meta "+key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pimsync.record_meta (record_id, meta_key, meta_value)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (record_id, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value`,
		id, key, string(raw))
	if err != nil {
		return syncerr.Store("meta-update", fmt.Sprintf("failed to set %s on record %d", key, id), err)
	}
	return nil
}

func (s *PostgresRecordStore) GetMetadata(ctx context.Context, id int64, key string) (json.RawMessage, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT meta_value FROM pimsync.record_meta WHERE record_id = $1 AND meta_key = $2`, id, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, syncerr.Store("meta-read", fmt.Sprintf("failed to read %s of record %d", key, id), err)
	}
	return json.RawMessage(raw), true, nil
}
