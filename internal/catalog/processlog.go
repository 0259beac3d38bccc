package catalog

import (
	"context"

	"github.com/vaultforge/vaultforge/pkg/database"
	"github.com/vaultforge/vaultforge/pkg/logger"
	"github.com/vaultforge/vaultforge/pkg/models"
)

// ProcessLog records build lifecycle events in metadata.process_log.
type ProcessLog struct {
	db     *database.PostgreSQL
	logger *logger.Logger
}

// NewProcessLog creates a new process log sink
func NewProcessLog(db *database.PostgreSQL, logger *logger.Logger) *ProcessLog {
	return &ProcessLog{
		db:     db,
		logger: logger,
	}
}

// Record inserts one process log entry and returns its id. Callers treat
// failures as warnings; a broken process log must never abort a build.
func (p *ProcessLog) Record(ctx context.Context, entry models.ProcessLogEntry) (int64, error) {
	query := `
		INSERT INTO metadata.process_log (
			process_type, process_name, status, start_time, end_time,
			total_rows_processed, error_message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := p.db.Pool().QueryRow(ctx, query,
		entry.ProcessType, entry.ProcessName, entry.Status, entry.StartTime, entry.EndTime,
		entry.TotalRowsProcessed, entry.ErrorMessage, entry.Metadata,
	).Scan(&id)
	if err != nil {
		p.logger.Warnf("Failed to write process log for %s: %v", entry.ProcessName, err)
		return 0, err
	}
	return id, nil
}
