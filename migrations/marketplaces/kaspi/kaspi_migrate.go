package kaspi

import (
	"database/sql"

	"kaspimarket_api/migrations/infrastructure"
)

type CreateKaspiSchema struct{}

func (m *CreateKaspiSchema) UpMigration(db *sql.DB) error {
	return infrastructure.ApplyOnce(db, "kaspi.schema", `
		CREATE SCHEMA IF NOT EXISTS kaspi;
	`)
}

type CreateKaspiProductsTable struct{}

func (m *CreateKaspiProductsTable) UpMigration(db *sql.DB) error {
	return infrastructure.ApplyOnce(db, "kaspi.products", `
		CREATE TABLE IF NOT EXISTS kaspi.products (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			price_base BIGINT NOT NULL DEFAULT 0,
			specs JSONB NOT NULL DEFAULT '{}'::jsonb,
			conveyor_status TEXT NOT NULL DEFAULT 'new',
			conveyor_log JSONB NOT NULL DEFAULT '[]'::jsonb,
			ms_created BOOLEAN NOT NULL DEFAULT FALSE,
			stock_added BOOLEAN NOT NULL DEFAULT FALSE,
			kaspi_created BOOLEAN NOT NULL DEFAULT FALSE,
			retry_count INT NOT NULL DEFAULT 0,
			next_retry_at TIMESTAMPTZ,
			retired BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS kaspi_products_status_updated_idx
			ON kaspi.products (conveyor_status, updated_at);
		CREATE INDEX IF NOT EXISTS kaspi_products_sku_idx
			ON kaspi.products ((specs->>'kaspi_sku'));
	`)
}

type CreateKaspiUploadJobsTable struct{}

func (m *CreateKaspiUploadJobsTable) UpMigration(db *sql.DB) error {
	return infrastructure.ApplyOnce(db, "kaspi.upload_jobs", `
		CREATE TABLE IF NOT EXISTS kaspi.upload_jobs (
			id TEXT PRIMARY KEY,
			product_ids BIGINT[] NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'pending',
			item_errors JSONB NOT NULL DEFAULT '[]'::jsonb,
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_polled_at TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS kaspi_upload_jobs_status_idx
			ON kaspi.upload_jobs (status, submitted_at);
	`)
}
