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

// WarehouseRepository handles persistence of data warehouse model definitions
type WarehouseRepository struct {
	db     *database.PostgreSQL
	logger *logger.Logger
}

// NewWarehouseRepository creates a new warehouse repository
func NewWarehouseRepository(db *database.PostgreSQL, logger *logger.Logger) *WarehouseRepository {
	return &WarehouseRepository{
		db:     db,
		logger: logger,
	}
}

const warehouseColumns = `id, warehouse_name, description, source_db_engine, source_connection_string,
		target_db_engine, target_connection_string, target_schema,
		dimensions, facts,
		schedule_cron, active, enabled, metadata, created_at, updated_at,
		last_build_time, last_build_status`

func scanWarehouse(row pgx.Row) (*models.DataWarehouseModel, error) {
	var m models.DataWarehouseModel
	var description, scheduleCron, lastBuildStatus *string
	err := row.Scan(
		&m.ID,
		&m.WarehouseName,
		&description,
		&m.SourceDBEngine,
		&m.SourceConnectionString,
		&m.TargetDBEngine,
		&m.TargetConnectionString,
		&m.TargetSchema,
		&m.Dimensions,
		&m.Facts,
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

// GetWarehouse retrieves a warehouse model by name
func (r *WarehouseRepository) GetWarehouse(ctx context.Context, name string) (*models.DataWarehouseModel, error) {
	query := fmt.Sprintf(`SELECT %s FROM metadata.data_warehouse_models WHERE warehouse_name = $1`, warehouseColumns)

	m, err := scanWarehouse(r.db.Pool().QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: warehouse '%s'", ErrModelNotFound, name)
		}
		r.logger.Errorf("Failed to get warehouse model %s: %v", name, err)
		return nil, err
	}
	return m, nil
}

// GetAllWarehouses retrieves all warehouse models
func (r *WarehouseRepository) GetAllWarehouses(ctx context.Context) ([]*models.DataWarehouseModel, error) {
	query := fmt.Sprintf(`SELECT %s FROM metadata.data_warehouse_models ORDER BY warehouse_name`, warehouseColumns)
	return r.queryWarehouses(ctx, query)
}

// GetActiveWarehouses retrieves all active and enabled warehouse models
func (r *WarehouseRepository) GetActiveWarehouses(ctx context.Context) ([]*models.DataWarehouseModel, error) {
	query := fmt.Sprintf(`SELECT %s FROM metadata.data_warehouse_models WHERE active = true AND enabled = true ORDER BY warehouse_name`, warehouseColumns)
	return r.queryWarehouses(ctx, query)
}

func (r *WarehouseRepository) queryWarehouses(ctx context.Context, query string) ([]*models.DataWarehouseModel, error) {
	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		r.logger.Errorf("Failed to query warehouse models: %v", err)
		return nil, err
	}
	defer rows.Close()

	var result []*models.DataWarehouseModel
	for rows.Next() {
		m, err := scanWarehouse(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// SaveWarehouse inserts or updates a warehouse model keyed by warehouse name
func (r *WarehouseRepository) SaveWarehouse(ctx context.Context, m *models.DataWarehouseModel) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO metadata.data_warehouse_models (
			id, warehouse_name, description, source_db_engine, source_connection_string,
			target_db_engine, target_connection_string, target_schema,
			dimensions, facts, schedule_cron, active, enabled, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (warehouse_name) DO UPDATE SET
			description = EXCLUDED.description,
			source_db_engine = EXCLUDED.source_db_engine,
			source_connection_string = EXCLUDED.source_connection_string,
			target_db_engine = EXCLUDED.target_db_engine,
			target_connection_string = EXCLUDED.target_connection_string,
			target_schema = EXCLUDED.target_schema,
			dimensions = EXCLUDED.dimensions,
			facts = EXCLUDED.facts,
			schedule_cron = EXCLUDED.schedule_cron,
			active = EXCLUDED.active,
			enabled = EXCLUDED.enabled,
			metadata = EXCLUDED.metadata,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.Pool().Exec(ctx, query,
		m.ID, m.WarehouseName, m.Description, m.SourceDBEngine, m.SourceConnectionString,
		m.TargetDBEngine, m.TargetConnectionString, m.TargetSchema,
		m.Dimensions, m.Facts, m.ScheduleCron, m.Active, m.Enabled, m.Metadata,
	)
	if err != nil {
		r.logger.Errorf("Failed to save warehouse model %s: %v", m.WarehouseName, err)
		return err
	}
	return nil
}

// DeleteWarehouse removes a warehouse model by name
func (r *WarehouseRepository) DeleteWarehouse(ctx context.Context, name string) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM metadata.data_warehouse_models WHERE warehouse_name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: warehouse '%s'", ErrModelNotFound, name)
	}
	return nil
}

// SetActive flips the active flag of a warehouse model
func (r *WarehouseRepository) SetActive(ctx context.Context, name string, active bool) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE metadata.data_warehouse_models SET active = $2, updated_at = CURRENT_TIMESTAMP WHERE warehouse_name = $1`,
		name, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: warehouse '%s'", ErrModelNotFound, name)
	}
	return nil
}

// UpdateBuildStatus records the outcome of a build run on the model
func (r *WarehouseRepository) UpdateBuildStatus(ctx context.Context, name, status string, buildTime time.Time, errorMessage string) error {
	_, err := r.db.Pool().Exec(ctx, `
		UPDATE metadata.data_warehouse_models
		SET last_build_status = $2, last_build_time = $3, updated_at = CURRENT_TIMESTAMP
		WHERE warehouse_name = $1`,
		name, status, buildTime)
	if err != nil {
		r.logger.Errorf("Failed to update build status for warehouse %s: %v", name, err)
		return err
	}
	if errorMessage != "" {
		r.logger.Warnf("Warehouse %s build finished with status %s: %s", name, status, errorMessage)
	}
	return nil
}
