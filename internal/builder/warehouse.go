package builder

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaultforge/vaultforge/internal/engine"
	"github.com/vaultforge/vaultforge/internal/source"
	"github.com/vaultforge/vaultforge/internal/warehouse"
	"github.com/vaultforge/vaultforge/pkg/database"
	"github.com/vaultforge/vaultforge/pkg/logger"
	"github.com/vaultforge/vaultforge/pkg/models"
)

// openEndedDate marks a dimension row that is still current under SCD type 2.
const openEndedDate = "9999-12-31 23:59:59"

// WarehouseStore is the repository surface the warehouse builder needs.
type WarehouseStore interface {
	GetWarehouse(ctx context.Context, name string) (*models.DataWarehouseModel, error)
	GetActiveWarehouses(ctx context.Context) ([]*models.DataWarehouseModel, error)
	UpdateBuildStatus(ctx context.Context, name, status string, buildTime time.Time, errorMessage string) error
}

// WarehouseBuilder orchestrates dimension and fact construction for
// dimensional warehouse models.
type WarehouseBuilder struct {
	store      WarehouseStore
	processLog ProcessLogSink
	logger     *logger.Logger
	sourceOpts source.Options

	newExecutor func(engineName string, opts source.Options) (engine.SourceQueryExecutor, error)
	newEngine   func(ctx context.Context, engineName, connString string) (engine.WarehouseEngine, error)
	newLock     func(scope, modelName string) locker
	now         func() time.Time
}

// NewWarehouseBuilder creates a warehouse builder backed by the metadata
// database.
func NewWarehouseBuilder(db *database.PostgreSQL, store WarehouseStore, processLog ProcessLogSink, log *logger.Logger, sourceOpts source.Options) *WarehouseBuilder {
	return &WarehouseBuilder{
		store:       store,
		processLog:  processLog,
		logger:      log,
		sourceOpts:  sourceOpts,
		newExecutor: source.NewExecutor,
		newEngine:   warehouse.NewEngine,
		newLock: func(scope, modelName string) locker {
			return NewBuildLock(db, scope, modelName)
		},
		now: time.Now,
	}
}

// Build loads the named warehouse model and runs a full build. The model's
// build status and the process log are updated at start and end.
func (b *WarehouseBuilder) Build(ctx context.Context, name string) error {
	model, err := b.store.GetWarehouse(ctx, name)
	if err != nil {
		return err
	}
	if !model.Enabled {
		b.logger.Warnf("Warehouse %s is disabled, skipping build", name)
		return nil
	}

	if err := ValidateWarehouse(model); err != nil {
		return err
	}

	lock := b.newLock("warehouse", model.WarehouseName)
	if err := lock.Acquire(ctx); err != nil {
		return fmt.Errorf("warehouse %s: %w", name, err)
	}
	defer lock.Release(ctx)

	startTime := b.now().UTC()
	runID := uuid.New().String()
	b.logger.Infof("Starting build of warehouse %s (run %s)", name, runID)

	if err := b.store.UpdateBuildStatus(ctx, name, models.BuildStatusInProgress, startTime, ""); err != nil {
		return err
	}
	b.recordProcessLog(ctx, models.ProcessLogEntry{
		ProcessType: models.ProcessTypeDataWarehouse,
		ProcessName: name,
		Status:      models.BuildStatusInProgress,
		StartTime:   startTime,
		Metadata:    map[string]string{"run_id": runID},
	})

	totalRows, buildErr := b.BuildModel(ctx, model)
	endTime := b.now().UTC()

	if buildErr != nil {
		b.logger.Errorf("Build of warehouse %s failed: %v", name, buildErr)
		if err := b.store.UpdateBuildStatus(ctx, name, models.BuildStatusError, endTime, buildErr.Error()); err != nil {
			b.logger.Warnf("Failed to record error status for warehouse %s: %v", name, err)
		}
		b.recordProcessLog(ctx, models.ProcessLogEntry{
			ProcessType:        models.ProcessTypeDataWarehouse,
			ProcessName:        name,
			Status:             models.BuildStatusError,
			StartTime:          startTime,
			EndTime:            &endTime,
			TotalRowsProcessed: totalRows,
			ErrorMessage:       buildErr.Error(),
			Metadata:           map[string]string{"run_id": runID},
		})
		return buildErr
	}

	b.logger.Infof("Build of warehouse %s succeeded, %d rows processed", name, totalRows)
	if err := b.store.UpdateBuildStatus(ctx, name, models.BuildStatusSuccess, endTime, ""); err != nil {
		b.logger.Warnf("Failed to record success status for warehouse %s: %v", name, err)
	}
	b.recordProcessLog(ctx, models.ProcessLogEntry{
		ProcessType:        models.ProcessTypeDataWarehouse,
		ProcessName:        name,
		Status:             models.BuildStatusSuccess,
		StartTime:          startTime,
		EndTime:            &endTime,
		TotalRowsProcessed: totalRows,
		Metadata:           map[string]string{"run_id": runID},
	})
	return nil
}

// BuildAllActive builds every active and enabled warehouse model. Per-model
// failures are logged and the batch continues.
func (b *WarehouseBuilder) BuildAllActive(ctx context.Context) error {
	warehouses, err := b.store.GetActiveWarehouses(ctx)
	if err != nil {
		return err
	}

	b.logger.Infof("Building %d active warehouse models", len(warehouses))
	var failed int
	for _, model := range warehouses {
		if err := b.Build(ctx, model.WarehouseName); err != nil {
			b.logger.Errorf("Warehouse %s failed: %v", model.WarehouseName, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d warehouse builds failed", failed, len(warehouses))
	}
	return nil
}

// BuildModel runs dimension and fact builds for one validated model. The
// first failing entity aborts the remainder.
func (b *WarehouseBuilder) BuildModel(ctx context.Context, model *models.DataWarehouseModel) (int64, error) {
	executor, err := b.newExecutor(model.SourceDBEngine, b.sourceOpts)
	if err != nil {
		return 0, err
	}

	target, err := b.newEngine(ctx, model.TargetDBEngine, model.TargetConnectionString)
	if err != nil {
		return 0, err
	}
	defer target.Close()

	if err := target.CreateSchema(ctx, model.TargetSchema); err != nil {
		return 0, err
	}

	var totalRows int64

	for _, dim := range model.Dimensions {
		rows, err := b.buildDimension(ctx, executor, target, model, dim)
		if err != nil {
			return totalRows, fmt.Errorf("error building dimension '%s': %w", dim.DimensionName, err)
		}
		totalRows += rows
	}

	for _, fact := range model.Facts {
		rows, err := b.buildFact(ctx, executor, target, model, fact)
		if err != nil {
			return totalRows, fmt.Errorf("error building fact '%s': %w", fact.FactName, err)
		}
		totalRows += rows
	}

	return totalRows, nil
}

// sourceColumns returns the union of column names across the fetched rows in
// a stable order.
func sourceColumns(records []engine.Record) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, record := range records {
		for col := range record {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

// buildDimension infers the table shape from the fetched rows, creates the
// table and loads it according to the dimension's SCD strategy. An empty
// source result skips the dimension with a warning.
func (b *WarehouseBuilder) buildDimension(ctx context.Context, executor engine.SourceQueryExecutor, target engine.WarehouseEngine, model *models.DataWarehouseModel, dim models.DimensionTable) (int64, error) {
	schema := resolveSchema(dim.TargetSchema, model.TargetSchema)

	records, err := executor.Execute(ctx, model.SourceConnectionString, dim.SourceQuery)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		b.logger.Warnf("Dimension %s source query returned no rows, skipping", dim.DimensionName)
		return 0, nil
	}

	dataColumns := sourceColumns(records)
	columns := make([]engine.ColumnInfo, 0, len(dataColumns)+3)
	for _, col := range dataColumns {
		columns = append(columns, engine.ColumnInfo{Name: col, DataType: textType, IsNullable: true})
	}
	if dim.SCDType == models.SCDType2 {
		columns = append(columns,
			engine.ColumnInfo{Name: dim.ValidFromColumn, DataType: timestampType, IsNullable: true},
			engine.ColumnInfo{Name: dim.ValidToColumn, DataType: timestampType, IsNullable: true},
			engine.ColumnInfo{Name: dim.IsCurrentColumn, DataType: booleanType, IsNullable: true},
		)
	}

	if err := target.CreateTable(ctx, schema, dim.TargetTable, columns, nil); err != nil {
		return 0, err
	}

	var rowCount int64
	switch dim.SCDType {
	case models.SCDType2:
		rowCount, err = b.applySCDType2(ctx, target, schema, dim, dataColumns, records)
	default:
		// TYPE_1 and TYPE_3 are both full overwrites. TYPE_3 does not
		// track previous values yet.
		rowCount, err = b.applySCDType1(ctx, target, schema, dim, dataColumns, records)
	}
	if err != nil {
		return 0, err
	}

	b.createIndexes(ctx, target, schema, dim.TargetTable, dim.IndexColumns)
	b.logger.Infof("Built dimension %s (%s): %d rows", dim.DimensionName, dim.SCDType, rowCount)
	return rowCount, nil
}

// applySCDType1 truncates the dimension and reloads it in full.
func (b *WarehouseBuilder) applySCDType1(ctx context.Context, target engine.WarehouseEngine, schema string, dim models.DimensionTable, dataColumns []string, records []engine.Record) (int64, error) {
	if err := target.TruncateTable(ctx, schema, dim.TargetTable); err != nil {
		return 0, err
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, len(dataColumns))
		for i, col := range dataColumns {
			row[i] = record[col].Text()
		}
		rows = append(rows, row)
	}

	if err := target.InsertData(ctx, schema, dim.TargetTable, dataColumns, rows); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// applySCDType2 historizes each source row: the current version of the
// business key, if any, is closed out, then the new version is inserted as
// current with an open-ended valid_to. Row by row, not batched; the per-model
// build lock keeps concurrent builds from interleaving the read-then-write.
func (b *WarehouseBuilder) applySCDType2(ctx context.Context, target engine.WarehouseEngine, schema string, dim models.DimensionTable, dataColumns []string, records []engine.Record) (int64, error) {
	now := b.now().UTC().Format(loadDateFormat)
	tableRef := fmt.Sprintf("%s.%s", target.QuoteIdentifier(schema), target.QuoteIdentifier(dim.TargetTable))

	insertColumns := append(append([]string{}, dataColumns...),
		dim.ValidFromColumn, dim.ValidToColumn, dim.IsCurrentColumn)

	var count int64
	for _, record := range records {
		predicate := b.businessKeyPredicate(target, dim.BusinessKeys, record)
		if predicate == "" {
			b.logger.Warnf("Dimension %s row has no business key values, skipping", dim.DimensionName)
			continue
		}

		currentPredicate := fmt.Sprintf("%s AND %s = true", predicate, target.QuoteIdentifier(dim.IsCurrentColumn))
		countQuery := fmt.Sprintf("SELECT COUNT(*) AS current_rows FROM %s WHERE %s", tableRef, currentPredicate)
		result, err := target.ExecuteQuery(ctx, countQuery)
		if err != nil {
			return count, err
		}

		if firstInt(result) > 0 {
			update := fmt.Sprintf("UPDATE %s SET %s = false, %s = %s WHERE %s",
				tableRef,
				target.QuoteIdentifier(dim.IsCurrentColumn),
				target.QuoteIdentifier(dim.ValidToColumn), target.QuoteValue(now),
				currentPredicate)
			if err := target.ExecuteStatement(ctx, update); err != nil {
				return count, err
			}
		}

		row := make([]string, 0, len(insertColumns))
		for _, col := range dataColumns {
			row = append(row, record[col].Text())
		}
		row = append(row, now, openEndedDate, "true")

		if err := target.InsertData(ctx, schema, dim.TargetTable, insertColumns, [][]string{row}); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

// businessKeyPredicate builds the WHERE clause identifying one business-key
// tuple. Returns "" when every key value is null or absent.
func (b *WarehouseBuilder) businessKeyPredicate(target engine.WarehouseEngine, businessKeys []string, record engine.Record) string {
	var parts []string
	for _, key := range businessKeys {
		value, ok := record[key]
		if !ok || value.IsNull() {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = %s", target.QuoteIdentifier(key), target.QuoteValue(value.Text())))
	}
	return strings.Join(parts, " AND ")
}

// buildFact creates the fact table, truncates it and reloads it in full.
// Partition columns are accepted but not applied.
func (b *WarehouseBuilder) buildFact(ctx context.Context, executor engine.SourceQueryExecutor, target engine.WarehouseEngine, model *models.DataWarehouseModel, fact models.FactTable) (int64, error) {
	schema := resolveSchema(fact.TargetSchema, model.TargetSchema)

	records, err := executor.Execute(ctx, model.SourceConnectionString, fact.SourceQuery)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		b.logger.Warnf("Fact %s source query returned no rows, skipping", fact.FactName)
		return 0, nil
	}

	dataColumns := sourceColumns(records)
	columns := make([]engine.ColumnInfo, 0, len(dataColumns))
	for _, col := range dataColumns {
		columns = append(columns, engine.ColumnInfo{Name: col, DataType: textType, IsNullable: true})
	}

	if err := target.CreateTable(ctx, schema, fact.TargetTable, columns, nil); err != nil {
		return 0, err
	}
	if err := target.TruncateTable(ctx, schema, fact.TargetTable); err != nil {
		return 0, err
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, len(dataColumns))
		for i, col := range dataColumns {
			row[i] = record[col].Text()
		}
		rows = append(rows, row)
	}

	if err := target.InsertData(ctx, schema, fact.TargetTable, dataColumns, rows); err != nil {
		return 0, err
	}

	b.createIndexes(ctx, target, schema, fact.TargetTable, fact.IndexColumns)
	if fact.PartitionColumn != "" {
		b.logger.Debugf("Fact %s declares partition column %s, partitioning is not applied", fact.FactName, fact.PartitionColumn)
	}

	b.logger.Infof("Built fact %s: %d rows", fact.FactName, len(rows))
	return int64(len(rows)), nil
}

func (b *WarehouseBuilder) createIndexes(ctx context.Context, target engine.WarehouseEngine, schema, table string, indexColumns []string) {
	for _, col := range indexColumns {
		indexName := fmt.Sprintf("idx_%s_%s", table, col)
		if err := target.CreateIndex(ctx, schema, table, []string{col}, indexName); err != nil {
			b.logger.Warnf("Failed to create index %s on %s.%s: %v", indexName, schema, table, err)
		}
	}
}

func (b *WarehouseBuilder) recordProcessLog(ctx context.Context, entry models.ProcessLogEntry) {
	if _, err := b.processLog.Record(ctx, entry); err != nil {
		b.logger.Warnf("Failed to record process log for %s: %v", entry.ProcessName, err)
	}
}

// firstInt returns the single value of the first record as an integer, or 0.
func firstInt(records []engine.Record) int64 {
	if len(records) == 0 {
		return 0
	}
	for _, value := range records[0] {
		if value.IsNull() {
			continue
		}
		if value.Kind() == engine.KindInt64 {
			return value.IntValue()
		}
		if n, err := strconv.ParseInt(value.Text(), 10, 64); err == nil {
			return n
		}
		return int64(value.FloatValue())
	}
	return 0
}
