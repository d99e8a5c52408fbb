package catalog

import (
	"database/sql"
	"fmt"

	"pimsync_api/migrations/infrastructure"
	"pimsync_api/pkg/dbconnect/migration"
)

type named struct {
	name  string
	query string
}

func (m named) Name() string { return m.name }

func (m named) UpMigration(db *sql.DB) error {
	done, err := infrastructure.CheckAndSkipMigration(db, m.name)
	if err != nil || done {
		return err
	}
	return infrastructure.ExecuteAndMarkMigration(db, m.query, m.name)
}

type CreateCatalogSchema struct{}

func (m *CreateCatalogSchema) Name() string { return "pimsync.schema" }

func (m *CreateCatalogSchema) UpMigration(db *sql.DB) error {
	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS pimsync;`)
	if err != nil {
		return fmt.Errorf("failed to create schema pimsync: %w", err)
	}
	return nil
}

var (
	CreateRecordsTable = named{"pimsync.records", `
		CREATE TABLE IF NOT EXISTS pimsync.records (
			id BIGSERIAL PRIMARY KEY,
			post_type VARCHAR(32) NOT NULL,
			external_key VARCHAR(255),
			title TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			excerpt TEXT NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL DEFAULT '',
			author VARCHAR(255) NOT NULL DEFAULT '',
			name VARCHAR(255) NOT NULL DEFAULT '',
			parent_id BIGINT NOT NULL DEFAULT 0,
			mime_type VARCHAR(100) NOT NULL DEFAULT '',
			guid TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW() NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW() NOT NULL,
			CONSTRAINT records_post_type_external_key UNIQUE (post_type, external_key)
		);`}

	CreateRecordMetaTable = named{"pimsync.record_meta", `
		CREATE TABLE IF NOT EXISTS pimsync.record_meta (
			record_id BIGINT NOT NULL REFERENCES pimsync.records(id) ON DELETE CASCADE,
			meta_key VARCHAR(255) NOT NULL,
			meta_value JSONB,
			PRIMARY KEY (record_id, meta_key)
		);
		CREATE INDEX IF NOT EXISTS record_meta_key_value_idx ON pimsync.record_meta (meta_key, meta_value);`}

	CreateTermsTable = named{"pimsync.terms", `
		CREATE TABLE IF NOT EXISTS pimsync.terms (
			id BIGSERIAL PRIMARY KEY,
			taxonomy VARCHAR(64) NOT NULL,
			name TEXT NOT NULL,
			slug TEXT NOT NULL,
			parent_id BIGINT NOT NULL DEFAULT 0,
			count INT NOT NULL DEFAULT 0,
			CONSTRAINT terms_taxonomy_parent_name UNIQUE (taxonomy, parent_id, name)
		);`}

	CreateTermMetaTable = named{"pimsync.term_meta", `
		CREATE TABLE IF NOT EXISTS pimsync.term_meta (
			term_id BIGINT NOT NULL REFERENCES pimsync.terms(id) ON DELETE CASCADE,
			meta_key VARCHAR(255) NOT NULL,
			meta_value TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (term_id, meta_key)
		);`}

	CreateTermRelationshipsTable = named{"pimsync.term_relationships", `
		CREATE TABLE IF NOT EXISTS pimsync.term_relationships (
			object_id BIGINT NOT NULL REFERENCES pimsync.records(id) ON DELETE CASCADE,
			term_id BIGINT NOT NULL REFERENCES pimsync.terms(id) ON DELETE CASCADE,
			taxonomy VARCHAR(64) NOT NULL,
			PRIMARY KEY (object_id, term_id)
		);`}

	CreateImportLocksTable = named{"pimsync.import_locks", `
		CREATE TABLE IF NOT EXISTS pimsync.import_locks (
			name VARCHAR(64) PRIMARY KEY,
			owner VARCHAR(64) NOT NULL,
			expires_at TIMESTAMP WITH TIME ZONE NOT NULL
		);`}

	CreateSettingsTable = named{"pimsync.settings", `
		CREATE TABLE IF NOT EXISTS pimsync.settings (
			key_name VARCHAR(255) PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			last_update TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`}

	CreateRequirementSetsTable = named{"pimsync.requirement_sets", `
		CREATE TABLE IF NOT EXISTS pimsync.requirement_sets (
			id VARCHAR(64) PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			payload JSONB NOT NULL,
			fetched_at TIMESTAMP WITH TIME ZONE DEFAULT NOW() NOT NULL
		);`}
)

// All lists the migrations in dependency order.
func All() []migration.MigrationInterface {
	return []migration.MigrationInterface{
		&infrastructure.MigrationsSchema{},
		&CreateCatalogSchema{},
		CreateRecordsTable,
		CreateRecordMetaTable,
		CreateTermsTable,
		CreateTermMetaTable,
		CreateTermRelationshipsTable,
		CreateImportLocksTable,
		CreateSettingsTable,
		CreateRequirementSetsTable,
	}
}
