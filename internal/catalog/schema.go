// Package catalog persists vault and warehouse model definitions and the
// build process log in the metadata PostgreSQL database.
package catalog

import (
	"context"
	"fmt"

	"github.com/vaultforge/vaultforge/pkg/database"
)

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS metadata`,
	`CREATE TABLE IF NOT EXISTS metadata.data_vault_models (
		id UUID PRIMARY KEY,
		vault_name VARCHAR(255) UNIQUE NOT NULL,
		description TEXT,
		source_db_engine VARCHAR(50) NOT NULL,
		source_connection_string TEXT NOT NULL,
		target_db_engine VARCHAR(50) NOT NULL,
		target_connection_string TEXT NOT NULL,
		target_schema VARCHAR(255) NOT NULL,
		hubs JSONB NOT NULL DEFAULT '[]',
		links JSONB NOT NULL DEFAULT '[]',
		satellites JSONB NOT NULL DEFAULT '[]',
		point_in_time_tables JSONB NOT NULL DEFAULT '[]',
		bridge_tables JSONB NOT NULL DEFAULT '[]',
		schedule_cron VARCHAR(100),
		active BOOLEAN NOT NULL DEFAULT false,
		enabled BOOLEAN NOT NULL DEFAULT true,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_build_time TIMESTAMP,
		last_build_status VARCHAR(50)
	)`,
	`CREATE TABLE IF NOT EXISTS metadata.data_warehouse_models (
		id UUID PRIMARY KEY,
		warehouse_name VARCHAR(255) UNIQUE NOT NULL,
		description TEXT,
		source_db_engine VARCHAR(50) NOT NULL,
		source_connection_string TEXT NOT NULL,
		target_db_engine VARCHAR(50) NOT NULL,
		target_connection_string TEXT NOT NULL,
		target_schema VARCHAR(255) NOT NULL,
		dimensions JSONB NOT NULL DEFAULT '[]',
		facts JSONB NOT NULL DEFAULT '[]',
		schedule_cron VARCHAR(100),
		active BOOLEAN NOT NULL DEFAULT false,
		enabled BOOLEAN NOT NULL DEFAULT true,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_build_time TIMESTAMP,
		last_build_status VARCHAR(50)
	)`,
	`CREATE TABLE IF NOT EXISTS metadata.process_log (
		id BIGSERIAL PRIMARY KEY,
		process_type VARCHAR(50) NOT NULL,
		process_name VARCHAR(255) NOT NULL,
		status VARCHAR(50) NOT NULL,
		start_time TIMESTAMP,
		end_time TIMESTAMP,
		total_rows_processed BIGINT NOT NULL DEFAULT 0,
		error_message TEXT,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_process_log_process_name ON metadata.process_log (process_name)`,
}

// CreateTables bootstraps the metadata schema. All statements are idempotent.
func CreateTables(ctx context.Context, db *database.PostgreSQL) error {
	for _, statement := range schemaStatements {
		if _, err := db.Pool().Exec(ctx, statement); err != nil {
			return fmt.Errorf("failed to create metadata schema: %w", err)
		}
	}
	return nil
}
