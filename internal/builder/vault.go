// Package builder implements the vault and warehouse build pipelines: key
// derivation, model validation and the dependency-ordered entity loads.
package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vaultforge/vaultforge/internal/engine"
	"github.com/vaultforge/vaultforge/internal/source"
	"github.com/vaultforge/vaultforge/internal/warehouse"
	"github.com/vaultforge/vaultforge/pkg/database"
	"github.com/vaultforge/vaultforge/pkg/logger"
	"github.com/vaultforge/vaultforge/pkg/models"
)

// Target column types for materialized vault tables. Hash keys are hex
// SHA-256 digests, all descriptive payload is generic text.
const (
	hashKeyType      = "VARCHAR(64)"
	textType         = "TEXT"
	timestampType    = "TIMESTAMP"
	recordSourceType = "VARCHAR(100)"
	booleanType      = "BOOLEAN"
)

// loadDateFormat is the canonical timestamp encoding written to targets.
const loadDateFormat = "2006-01-02 15:04:05"

// VaultStore is the repository surface the vault builder needs.
type VaultStore interface {
	GetVault(ctx context.Context, name string) (*models.DataVaultModel, error)
	GetActiveVaults(ctx context.Context) ([]*models.DataVaultModel, error)
	UpdateBuildStatus(ctx context.Context, name, status string, buildTime time.Time, errorMessage string) error
}

// ProcessLogSink records build lifecycle events.
type ProcessLogSink interface {
	Record(ctx context.Context, entry models.ProcessLogEntry) (int64, error)
}

type locker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context)
}

// VaultBuilder orchestrates hub, link, satellite, point-in-time and bridge
// construction for vault models.
type VaultBuilder struct {
	store      VaultStore
	processLog ProcessLogSink
	logger     *logger.Logger
	sourceOpts source.Options

	newExecutor func(engineName string, opts source.Options) (engine.SourceQueryExecutor, error)
	newEngine   func(ctx context.Context, engineName, connString string) (engine.WarehouseEngine, error)
	newLock     func(scope, modelName string) locker
	now         func() time.Time
}

// NewVaultBuilder creates a vault builder backed by the metadata database.
func NewVaultBuilder(db *database.PostgreSQL, store VaultStore, processLog ProcessLogSink, log *logger.Logger, sourceOpts source.Options) *VaultBuilder {
	return &VaultBuilder{
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

// Build loads the named vault model and runs a full build. The model's build
// status and the process log are updated at start and end.
func (b *VaultBuilder) Build(ctx context.Context, name string) error {
	model, err := b.store.GetVault(ctx, name)
	if err != nil {
		return err
	}
	if !model.Enabled {
		b.logger.Warnf("Vault %s is disabled, skipping build", name)
		return nil
	}

	if err := ValidateVault(model); err != nil {
		return err
	}

	lock := b.newLock("vault", model.VaultName)
	if err := lock.Acquire(ctx); err != nil {
		return fmt.Errorf("vault %s: %w", name, err)
	}
	defer lock.Release(ctx)

	startTime := b.now().UTC()
	runID := uuid.New().String()
	b.logger.Infof("Starting build of vault %s (run %s)", name, runID)

	if err := b.store.UpdateBuildStatus(ctx, name, models.BuildStatusInProgress, startTime, ""); err != nil {
		return err
	}
	b.recordProcessLog(ctx, models.ProcessLogEntry{
		ProcessType: models.ProcessTypeDataVault,
		ProcessName: name,
		Status:      models.BuildStatusInProgress,
		StartTime:   startTime,
		Metadata:    map[string]string{"run_id": runID},
	})

	totalRows, buildErr := b.BuildModel(ctx, model)
	endTime := b.now().UTC()

	if buildErr != nil {
		b.logger.Errorf("Build of vault %s failed: %v", name, buildErr)
		if err := b.store.UpdateBuildStatus(ctx, name, models.BuildStatusError, endTime, buildErr.Error()); err != nil {
			b.logger.Warnf("Failed to record error status for vault %s: %v", name, err)
		}
		b.recordProcessLog(ctx, models.ProcessLogEntry{
			ProcessType:        models.ProcessTypeDataVault,
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

	b.logger.Infof("Build of vault %s succeeded, %d rows processed", name, totalRows)
	if err := b.store.UpdateBuildStatus(ctx, name, models.BuildStatusSuccess, endTime, ""); err != nil {
		b.logger.Warnf("Failed to record success status for vault %s: %v", name, err)
	}
	b.recordProcessLog(ctx, models.ProcessLogEntry{
		ProcessType:        models.ProcessTypeDataVault,
		ProcessName:        name,
		Status:             models.BuildStatusSuccess,
		StartTime:          startTime,
		EndTime:            &endTime,
		TotalRowsProcessed: totalRows,
		Metadata:           map[string]string{"run_id": runID},
	})
	return nil
}

// BuildAllActive builds every active and enabled vault model. Per-model
// failures are logged and the batch continues; a bad model never aborts the
// rest.
func (b *VaultBuilder) BuildAllActive(ctx context.Context) error {
	vaults, err := b.store.GetActiveVaults(ctx)
	if err != nil {
		return err
	}

	b.logger.Infof("Building %d active vault models", len(vaults))
	var failed int
	for _, model := range vaults {
		if err := b.Build(ctx, model.VaultName); err != nil {
			b.logger.Errorf("Vault %s failed: %v", model.VaultName, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d vault builds failed", failed, len(vaults))
	}
	return nil
}

// BuildModel runs the entity builds for one validated model against its
// configured source and target engines. Entities build strictly in dependency
// order: hubs, links, satellites, point-in-time tables, bridges. The first
// failing step aborts the remainder.
func (b *VaultBuilder) BuildModel(ctx context.Context, model *models.DataVaultModel) (int64, error) {
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

	for _, hub := range model.Hubs {
		rows, err := b.buildHub(ctx, executor, target, model, hub)
		if err != nil {
			return totalRows, fmt.Errorf("error building hub '%s': %w", hub.HubName, err)
		}
		totalRows += rows
	}

	for _, link := range model.Links {
		rows, err := b.buildLink(ctx, executor, target, model, link)
		if err != nil {
			return totalRows, fmt.Errorf("error building link '%s': %w", link.LinkName, err)
		}
		totalRows += rows
	}

	for _, sat := range model.Satellites {
		rows, err := b.buildSatellite(ctx, executor, target, model, sat)
		if err != nil {
			return totalRows, fmt.Errorf("error building satellite '%s': %w", sat.SatelliteName, err)
		}
		totalRows += rows
	}

	for _, pit := range model.PointInTimeTables {
		rows, err := b.buildPointInTime(ctx, target, model, pit)
		if err != nil {
			return totalRows, fmt.Errorf("error building point-in-time table '%s': %w", pit.PitName, err)
		}
		totalRows += rows
	}

	for _, bridge := range model.BridgeTables {
		rows, err := b.buildBridge(ctx, target, model, bridge)
		if err != nil {
			return totalRows, fmt.Errorf("error building bridge table '%s': %w", bridge.BridgeName, err)
		}
		totalRows += rows
	}

	return totalRows, nil
}

func resolveSchema(entitySchema, modelSchema string) string {
	if entitySchema != "" {
		return entitySchema
	}
	return modelSchema
}

// buildHub creates the hub table and appends one row per source row, keyed by
// the hash of the business-key values. Repeated hub keys are not deduplicated
// here; re-runs rely on the target's primary key.
func (b *VaultBuilder) buildHub(ctx context.Context, executor engine.SourceQueryExecutor, target engine.WarehouseEngine, model *models.DataVaultModel, hub models.HubTable) (int64, error) {
	schema := resolveSchema(hub.TargetSchema, model.TargetSchema)

	columns := []engine.ColumnInfo{
		{Name: hub.HubKeyColumn, DataType: hashKeyType, IsNullable: false},
	}
	for _, key := range hub.BusinessKeys {
		columns = append(columns, engine.ColumnInfo{Name: key, DataType: textType, IsNullable: true})
	}
	columns = append(columns,
		engine.ColumnInfo{Name: hub.LoadDateColumn, DataType: timestampType, IsNullable: false},
		engine.ColumnInfo{Name: hub.RecordSourceColumn, DataType: recordSourceType, IsNullable: true},
	)

	if err := target.CreateTable(ctx, schema, hub.TargetTable, columns, []string{hub.HubKeyColumn}); err != nil {
		return 0, err
	}

	records, err := executor.Execute(ctx, model.SourceConnectionString, hub.SourceQuery)
	if err != nil {
		return 0, err
	}

	loadDate := b.now().UTC().Format(loadDateFormat)
	insertColumns := append([]string{hub.HubKeyColumn}, hub.BusinessKeys...)
	insertColumns = append(insertColumns, hub.LoadDateColumn, hub.RecordSourceColumn)

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := []string{HashKey(hub.BusinessKeys, record)}
		for _, key := range hub.BusinessKeys {
			row = append(row, record[key].Text())
		}
		row = append(row, loadDate, model.SourceDBEngine)
		rows = append(rows, row)
	}

	if len(rows) > 0 {
		if err := target.InsertData(ctx, schema, hub.TargetTable, insertColumns, rows); err != nil {
			return 0, err
		}
	}

	b.createIndexes(ctx, target, schema, hub.TargetTable, hub.IndexColumns)
	b.logger.Infof("Built hub %s: %d rows", hub.HubName, len(rows))
	return int64(len(rows)), nil
}

// buildLink creates the link table and appends one row per source row. The
// source query must expose one <hub>_hub_key column per referenced hub; the
// link key is the hash of those values in reference order.
func (b *VaultBuilder) buildLink(ctx context.Context, executor engine.SourceQueryExecutor, target engine.WarehouseEngine, model *models.DataVaultModel, link models.LinkTable) (int64, error) {
	schema := resolveSchema(link.TargetSchema, model.TargetSchema)

	hubKeyColumns := make([]string, len(link.HubReferences))
	for i, ref := range link.HubReferences {
		hubKeyColumns[i] = ref + "_hub_key"
	}

	columns := []engine.ColumnInfo{
		{Name: link.LinkKeyColumn, DataType: hashKeyType, IsNullable: false},
	}
	for _, col := range hubKeyColumns {
		columns = append(columns, engine.ColumnInfo{Name: col, DataType: hashKeyType, IsNullable: true})
	}
	columns = append(columns,
		engine.ColumnInfo{Name: link.LoadDateColumn, DataType: timestampType, IsNullable: false},
		engine.ColumnInfo{Name: link.RecordSourceColumn, DataType: recordSourceType, IsNullable: true},
	)

	if err := target.CreateTable(ctx, schema, link.TargetTable, columns, []string{link.LinkKeyColumn}); err != nil {
		return 0, err
	}

	records, err := executor.Execute(ctx, model.SourceConnectionString, link.SourceQuery)
	if err != nil {
		return 0, err
	}

	loadDate := b.now().UTC().Format(loadDateFormat)
	insertColumns := append([]string{link.LinkKeyColumn}, hubKeyColumns...)
	insertColumns = append(insertColumns, link.LoadDateColumn, link.RecordSourceColumn)

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := []string{HashKey(hubKeyColumns, record)}
		for _, col := range hubKeyColumns {
			row = append(row, record[col].Text())
		}
		row = append(row, loadDate, model.SourceDBEngine)
		rows = append(rows, row)
	}

	if len(rows) > 0 {
		if err := target.InsertData(ctx, schema, link.TargetTable, insertColumns, rows); err != nil {
			return 0, err
		}
	}

	b.createIndexes(ctx, target, schema, link.TargetTable, link.IndexColumns)
	b.logger.Infof("Built link %s: %d rows", link.LinkName, len(rows))
	return int64(len(rows)), nil
}

// buildSatellite creates the satellite table and appends a fresh snapshot of
// every source row. Historized satellites carry an open-ended load end date;
// prior versions are not closed out on reload.
func (b *VaultBuilder) buildSatellite(ctx context.Context, executor engine.SourceQueryExecutor, target engine.WarehouseEngine, model *models.DataVaultModel, sat models.SatelliteTable) (int64, error) {
	schema := resolveSchema(sat.TargetSchema, model.TargetSchema)

	columns := []engine.ColumnInfo{
		{Name: sat.ParentKeyColumn, DataType: hashKeyType, IsNullable: false},
	}
	for _, attr := range sat.DescriptiveAttributes {
		columns = append(columns, engine.ColumnInfo{Name: attr, DataType: textType, IsNullable: true})
	}
	columns = append(columns, engine.ColumnInfo{Name: sat.LoadDateColumn, DataType: timestampType, IsNullable: false})
	if sat.IsHistorized {
		columns = append(columns, engine.ColumnInfo{Name: sat.LoadEndDateColumn, DataType: timestampType, IsNullable: true})
	}
	columns = append(columns, engine.ColumnInfo{Name: sat.RecordSourceColumn, DataType: recordSourceType, IsNullable: true})

	primaryKeys := []string{sat.ParentKeyColumn, sat.LoadDateColumn}
	if err := target.CreateTable(ctx, schema, sat.TargetTable, columns, primaryKeys); err != nil {
		return 0, err
	}

	records, err := executor.Execute(ctx, model.SourceConnectionString, sat.SourceQuery)
	if err != nil {
		return 0, err
	}

	loadDate := b.now().UTC().Format(loadDateFormat)
	insertColumns := append([]string{sat.ParentKeyColumn}, sat.DescriptiveAttributes...)
	insertColumns = append(insertColumns, sat.LoadDateColumn)
	if sat.IsHistorized {
		insertColumns = append(insertColumns, sat.LoadEndDateColumn)
	}
	insertColumns = append(insertColumns, sat.RecordSourceColumn)

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := []string{record[sat.ParentKeyColumn].Text()}
		for _, attr := range sat.DescriptiveAttributes {
			row = append(row, record[attr].Text())
		}
		row = append(row, loadDate)
		if sat.IsHistorized {
			row = append(row, "")
		}
		row = append(row, model.SourceDBEngine)
		rows = append(rows, row)
	}

	if len(rows) > 0 {
		if err := target.InsertData(ctx, schema, sat.TargetTable, insertColumns, rows); err != nil {
			return 0, err
		}
	}

	b.createIndexes(ctx, target, schema, sat.TargetTable, sat.IndexColumns)
	b.logger.Infof("Built satellite %s: %d rows", sat.SatelliteName, len(rows))
	return int64(len(rows)), nil
}

// buildPointInTime creates the PIT table and inserts, per distinct hub key,
// the latest load date of each referenced satellite as of now. Duplicate
// snapshots are skipped on the target.
func (b *VaultBuilder) buildPointInTime(ctx context.Context, target engine.WarehouseEngine, model *models.DataVaultModel, pit models.PointInTimeTable) (int64, error) {
	schema := resolveSchema(pit.TargetSchema, model.TargetSchema)

	hub := findHub(model, pit.HubName)
	if hub == nil {
		return 0, engine.NewValidationError(model.VaultName, fmt.Sprintf("point-in-time table '%s' references unknown hub '%s'", pit.PitName, pit.HubName))
	}

	columns := []engine.ColumnInfo{
		{Name: hub.HubKeyColumn, DataType: hashKeyType, IsNullable: false},
		{Name: pit.SnapshotDateColumn, DataType: timestampType, IsNullable: false},
	}
	loadDateColumns := make([]string, len(pit.SatelliteNames))
	for i, satName := range pit.SatelliteNames {
		loadDateColumns[i] = satName + "_load_date"
		columns = append(columns, engine.ColumnInfo{Name: loadDateColumns[i], DataType: timestampType, IsNullable: true})
	}

	primaryKeys := []string{hub.HubKeyColumn, pit.SnapshotDateColumn}
	if err := target.CreateTable(ctx, schema, pit.TargetTable, columns, primaryKeys); err != nil {
		return 0, err
	}

	hubSchema := resolveSchema(hub.TargetSchema, model.TargetSchema)
	hubKeys, err := b.distinctHubKeys(ctx, target, hubSchema, hub.TargetTable, hub.HubKeyColumn)
	if err != nil {
		return 0, err
	}

	snapshotDate := b.now().UTC().Format(loadDateFormat)
	insertColumns := append([]string{hub.HubKeyColumn, pit.SnapshotDateColumn}, loadDateColumns...)

	rows := make([][]string, 0, len(hubKeys))
	for _, hubKey := range hubKeys {
		row := []string{hubKey, snapshotDate}
		for _, satName := range pit.SatelliteNames {
			sat := findSatellite(model, satName)
			if sat == nil {
				return 0, engine.NewValidationError(model.VaultName, fmt.Sprintf("point-in-time table '%s' references unknown satellite '%s'", pit.PitName, satName))
			}
			satSchema := resolveSchema(sat.TargetSchema, model.TargetSchema)
			query := fmt.Sprintf("SELECT MAX(%s) AS max_load_date FROM %s.%s WHERE %s = %s",
				target.QuoteIdentifier(sat.LoadDateColumn),
				target.QuoteIdentifier(satSchema), target.QuoteIdentifier(sat.TargetTable),
				target.QuoteIdentifier(sat.ParentKeyColumn), target.QuoteValue(hubKey))

			result, err := target.ExecuteQuery(ctx, query)
			if err != nil {
				return 0, err
			}
			row = append(row, firstText(result))
		}
		rows = append(rows, row)
	}

	if len(rows) > 0 {
		if err := target.InsertIgnoreDuplicates(ctx, schema, pit.TargetTable, insertColumns, primaryKeys, rows); err != nil {
			return 0, err
		}
	}

	b.logger.Infof("Built point-in-time table %s: %d rows", pit.PitName, len(rows))
	return int64(len(rows)), nil
}

// buildBridge creates the bridge table and inserts, per distinct hub key, the
// first matching link key of each referenced link. Duplicate snapshots are
// skipped on the target.
func (b *VaultBuilder) buildBridge(ctx context.Context, target engine.WarehouseEngine, model *models.DataVaultModel, bridge models.BridgeTable) (int64, error) {
	schema := resolveSchema(bridge.TargetSchema, model.TargetSchema)

	hub := findHub(model, bridge.HubName)
	if hub == nil {
		return 0, engine.NewValidationError(model.VaultName, fmt.Sprintf("bridge table '%s' references unknown hub '%s'", bridge.BridgeName, bridge.HubName))
	}

	columns := []engine.ColumnInfo{
		{Name: hub.HubKeyColumn, DataType: hashKeyType, IsNullable: false},
		{Name: bridge.SnapshotDateColumn, DataType: timestampType, IsNullable: false},
	}
	linkKeyColumns := make([]string, len(bridge.LinkNames))
	for i, linkName := range bridge.LinkNames {
		linkKeyColumns[i] = linkName + "_link_key"
		columns = append(columns, engine.ColumnInfo{Name: linkKeyColumns[i], DataType: hashKeyType, IsNullable: true})
	}

	primaryKeys := []string{hub.HubKeyColumn, bridge.SnapshotDateColumn}
	if err := target.CreateTable(ctx, schema, bridge.TargetTable, columns, primaryKeys); err != nil {
		return 0, err
	}

	hubSchema := resolveSchema(hub.TargetSchema, model.TargetSchema)
	hubKeys, err := b.distinctHubKeys(ctx, target, hubSchema, hub.TargetTable, hub.HubKeyColumn)
	if err != nil {
		return 0, err
	}

	snapshotDate := b.now().UTC().Format(loadDateFormat)
	insertColumns := append([]string{hub.HubKeyColumn, bridge.SnapshotDateColumn}, linkKeyColumns...)

	rows := make([][]string, 0, len(hubKeys))
	for _, hubKey := range hubKeys {
		row := []string{hubKey, snapshotDate}
		for _, linkName := range bridge.LinkNames {
			link := findLink(model, linkName)
			if link == nil {
				return 0, engine.NewValidationError(model.VaultName, fmt.Sprintf("bridge table '%s' references unknown link '%s'", bridge.BridgeName, linkName))
			}
			linkSchema := resolveSchema(link.TargetSchema, model.TargetSchema)
			query := fmt.Sprintf("SELECT %s FROM %s.%s WHERE %s = %s LIMIT 1",
				target.QuoteIdentifier(link.LinkKeyColumn),
				target.QuoteIdentifier(linkSchema), target.QuoteIdentifier(link.TargetTable),
				target.QuoteIdentifier(bridge.HubName+"_hub_key"), target.QuoteValue(hubKey))

			result, err := target.ExecuteQuery(ctx, query)
			if err != nil {
				return 0, err
			}
			row = append(row, firstText(result))
		}
		rows = append(rows, row)
	}

	if len(rows) > 0 {
		if err := target.InsertIgnoreDuplicates(ctx, schema, bridge.TargetTable, insertColumns, primaryKeys, rows); err != nil {
			return 0, err
		}
	}

	b.logger.Infof("Built bridge table %s: %d rows", bridge.BridgeName, len(rows))
	return int64(len(rows)), nil
}

func (b *VaultBuilder) distinctHubKeys(ctx context.Context, target engine.WarehouseEngine, schema, table, keyColumn string) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s.%s",
		target.QuoteIdentifier(keyColumn), target.QuoteIdentifier(schema), target.QuoteIdentifier(table))

	records, err := target.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(records))
	for _, record := range records {
		if value, ok := record[keyColumn]; ok && !value.IsNull() {
			keys = append(keys, value.Text())
		}
	}
	return keys, nil
}

// createIndexes creates one index per column. Index failures are warnings,
// not build failures.
func (b *VaultBuilder) createIndexes(ctx context.Context, target engine.WarehouseEngine, schema, table string, indexColumns []string) {
	for _, col := range indexColumns {
		indexName := fmt.Sprintf("idx_%s_%s", table, col)
		if err := target.CreateIndex(ctx, schema, table, []string{col}, indexName); err != nil {
			b.logger.Warnf("Failed to create index %s on %s.%s: %v", indexName, schema, table, err)
		}
	}
}

func (b *VaultBuilder) recordProcessLog(ctx context.Context, entry models.ProcessLogEntry) {
	if _, err := b.processLog.Record(ctx, entry); err != nil {
		b.logger.Warnf("Failed to record process log for %s: %v", entry.ProcessName, err)
	}
}

// firstText returns the text of the single value of the first record, or ""
// when the result is empty or null.
func firstText(records []engine.Record) string {
	if len(records) == 0 {
		return ""
	}
	for _, value := range records[0] {
		if !value.IsNull() {
			return value.Text()
		}
	}
	return ""
}

func findHub(model *models.DataVaultModel, name string) *models.HubTable {
	for i := range model.Hubs {
		if model.Hubs[i].HubName == name {
			return &model.Hubs[i]
		}
	}
	return nil
}

func findLink(model *models.DataVaultModel, name string) *models.LinkTable {
	for i := range model.Links {
		if model.Links[i].LinkName == name {
			return &model.Links[i]
		}
	}
	return nil
}

func findSatellite(model *models.DataVaultModel, name string) *models.SatelliteTable {
	for i := range model.Satellites {
		if model.Satellites[i].SatelliteName == name {
			return &model.Satellites[i]
		}
	}
	return nil
}
