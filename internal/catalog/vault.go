package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vaultforge/vaultforge/pkg/database"
	"github.com/vaultforge/vaultforge/pkg/logger"
	"github.com/vaultforge/vaultforge/pkg/models"
)

// ErrModelNotFound is returned when a named model does not exist.
var ErrModelNotFound = errors.New("model not found")

// VaultRepository handles persistence of data vault model definitions
type VaultRepository struct {
	db     *database.PostgreSQL
	logger *logger.Logger
}

// NewVaultRepository creates a new vault repository
func NewVaultRepository(db *database.PostgreSQL, logger *logger.Logger) *VaultRepository {
	return &VaultRepository{
		db:     db,
		logger: logger,
	}
}

const vaultColumns = `id, vault_name, description, source_db_engine, source_connection_string,
		target_db_engine, target_connection_string, target_schema,
		hubs, links, satellites, point_in_time_tables, bridge_tables,
		schedule_cron, active, enabled, metadata, created_at, updated_at,
		last_build_time, last_build_status`

func scanVault(row pgx.Row) (*models.DataVaultModel, error) {
	var m models.DataVaultModel
	var description, scheduleCron, lastBuildStatus *string
	err := row.Scan(
		&m.ID,
		&m.VaultName,
		&description,
		&m.SourceDBEngine,
		&m.SourceConnectionString,
		&m.TargetDBEngine,
		&m.TargetConnectionString,
		&m.TargetSchema,
		&m.Hubs,
		&m.Links,
		&m.Satellites,
		&m.PointInTimeTables,
		&m.BridgeTables,
		&scheduleCron,
		&m.Active,
		&m.Enabled,
		&m.Metadata,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.LastBuildTime,
		&lastBuildStatus,
	)
	if err != nil {
		return nil, err
	}
	if description != nil {
		m.Description = *description
	}
	if scheduleCron != nil {
		m.ScheduleCron = *scheduleCron
	}
	if lastBuildStatus != nil {
		m.LastBuildStatus = *lastBuildStatus
	}
	return &m, nil
}

// GetVault retrieves a vault model by name
func (r *VaultRepository) GetVault(ctx context.Context, name string) (*models.DataVaultModel, error) {
	query := fmt.Sprintf(`SELECT %s FROM metadata.data_vault_models WHERE vault_name = $1`, vaultColumns)

	m, err := scanVault(r.db.Pool().QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: vault '%s'", ErrModelNotFound, name)
		}
		r.logger.Errorf("Failed to get vault model %s: %v", name, err)
		return nil, err
	}
	return m, nil
}

// GetAllVaults retrieves all vault models
func (r *VaultRepository) GetAllVaults(ctx context.Context) ([]*models.DataVaultModel, error) {
	query := fmt.Sprintf(`SELECT %s FROM metadata.data_vault_models ORDER BY vault_name`, vaultColumns)
	return r.queryVaults(ctx, query)
}

// GetActiveVaults retrieves all active and enabled vault models
func (r *VaultRepository) GetActiveVaults(ctx context.Context) ([]*models.DataVaultModel, error) {
	query := fmt.Sprintf(`SELECT %s FROM metadata.data_vault_models WHERE active = true AND enabled = true ORDER BY vault_name`, vaultColumns)
	return r.queryVaults(ctx, query)
}

func (r *VaultRepository) queryVaults(ctx context.Context, query string) ([]*models.DataVaultModel, error) {
	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		r.logger.Errorf("Failed to query vault models: %v", err)
		return nil, err
	}
	defer rows.Close()

	var result []*models.DataVaultModel
	for rows.Next() {
		m, err := scanVault(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// SaveVault inserts or updates a vault model keyed by vault name
func (r *VaultRepository) SaveVault(ctx context.Context, m *models.DataVaultModel) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO metadata.data_vault_models (
			id, vault_name, description, source_db_engine, source_connection_string,
			target_db_engine, target_connection_string, target_schema,
			hubs, links, satellites, point_in_time_tables, bridge_tables,
			schedule_cron, active, enabled, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (vault_name) DO UPDATE SET
			description = EXCLUDED.description,
			source_db_engine = EXCLUDED.source_db_engine,
			source_connection_string = EXCLUDED.source_connection_string,
			target_db_engine = EXCLUDED.target_db_engine,
			target_connection_string = EXCLUDED.target_connection_string,
			target_schema = EXCLUDED.target_schema,
			hubs = EXCLUDED.hubs,
			links = EXCLUDED.links,
			satellites = EXCLUDED.satellites,
			point_in_time_tables = EXCLUDED.point_in_time_tables,
			bridge_tables = EXCLUDED.bridge_tables,
			schedule_cron = EXCLUDED.schedule_cron,
			active = EXCLUDED.active,
			enabled = EXCLUDED.enabled,
			metadata = EXCLUDED.metadata,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.Pool().Exec(ctx, query,
		m.ID, m.VaultName, m.Description, m.SourceDBEngine, m.SourceConnectionString,
		m.TargetDBEngine, m.TargetConnectionString, m.TargetSchema,
		m.Hubs, m.Links, m.Satellites, m.PointInTimeTables, m.BridgeTables,
		m.ScheduleCron, m.Active, m.Enabled, m.Metadata,
	)
	if err != nil {
		r.logger.Errorf("Failed to save vault model %s: %v", m.VaultName, err)
		return err
	}
	return nil
}

// DeleteVault removes a vault model by name
func (r *VaultRepository) DeleteVault(ctx context.Context, name string) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM metadata.data_vault_models WHERE vault_name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: vault '%s'", ErrModelNotFound, name)
	}
	return nil
}

// SetActive flips the active flag of a vault model
func (r *VaultRepository) SetActive(ctx context.Context, name string, active bool) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE metadata.data_vault_models SET active = $2, updated_at = CURRENT_TIMESTAMP WHERE vault_name = $1`,
		name, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: vault '%s'", ErrModelNotFound, name)
	}
	return nil
}

// UpdateBuildStatus records the outcome of a build run on the model
func (r *VaultRepository) UpdateBuildStatus(ctx context.Context, name, status string, buildTime time.Time, errorMessage string) error {
	_, err := r.db.Pool().Exec(ctx, `
		UPDATE metadata.data_vault_models
		SET last_build_status = $2, last_build_time = $3, updated_at = CURRENT_TIMESTAMP
		WHERE vault_name = $1`,
		name, status, buildTime)
	if err != nil {
		r.logger.Errorf("Failed to update build status for vault %s: %v", name, err)
		return err
	}
	if errorMessage != "" {
		r.logger.Warnf("Vault %s build finished with status %s: %s", name, status, errorMessage)
	}
	return nil
}
