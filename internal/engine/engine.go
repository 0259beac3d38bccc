// Package engine defines the engine-agnostic boundary of the modeling and
// load pipeline: the Value/Record currency, the SourceQueryExecutor and
// WarehouseEngine interfaces, the supported engine enumerations and the
// build error taxonomy. Concrete adapters live under internal/source and
// internal/warehouse.
package engine

import (
	"context"
)

// Supported source engine names. The set is closed; unknown names fail fast
// at build start.
const (
	SourcePostgreSQL = "PostgreSQL"
	SourceMariaDB    = "MariaDB"
	SourceMSSQL      = "MSSQL"
	SourceOracle     = "Oracle"
	SourceMongoDB    = "MongoDB"
)

// Supported target engine names.
const (
	TargetPostgreSQL = "PostgreSQL"
	TargetRedshift   = "Redshift"
	TargetSnowflake  = "Snowflake"
	TargetBigQuery   = "BigQuery"
)

// SourceEngineNames lists the supported source engines.
func SourceEngineNames() []string {
	return []string{SourcePostgreSQL, SourceMariaDB, SourceMSSQL, SourceOracle, SourceMongoDB}
}

// TargetEngineNames lists the supported target engines.
func TargetEngineNames() []string {
	return []string{TargetPostgreSQL, TargetRedshift, TargetSnowflake, TargetBigQuery}
}

// InsertBatchSize bounds the number of rows per INSERT statement.
const InsertBatchSize = 1000

// SourceQueryExecutor runs a query against a source database and returns the
// full result set, eagerly materialized. Implementations open a short-lived
// connection per call and release it on every exit path.
type SourceQueryExecutor interface {
	Execute(ctx context.Context, connString, query string) ([]Record, error)
}

// ColumnInfo describes one column of a target table.
type ColumnInfo struct {
	Name       string
	DataType   string
	IsNullable bool
	Default    string
}

// WarehouseEngine is the target-side adapter for one warehouse technology.
// All DDL operations are idempotent; an existing table's shape is never
// altered. InsertData appends rows in batches of InsertBatchSize.
type WarehouseEngine interface {
	// CreateSchema creates the schema (dataset on BigQuery) if absent.
	CreateSchema(ctx context.Context, name string) error

	// CreateTable creates the table if absent.
	CreateTable(ctx context.Context, schema, table string, columns []ColumnInfo, primaryKeys []string) error

	// InsertData appends rows. Values are string-encoded; the adapter
	// escapes them for the target dialect.
	InsertData(ctx context.Context, schema, table string, columns []string, rows [][]string) error

	// InsertIgnoreDuplicates appends rows, silently skipping rows whose
	// key columns collide with existing rows.
	InsertIgnoreDuplicates(ctx context.Context, schema, table string, columns []string, keyColumns []string, rows [][]string) error

	// TruncateTable removes all rows from the table.
	TruncateTable(ctx context.Context, schema, table string) error

	// CreateIndex creates the named index if absent. Engines without
	// secondary indexes accept and ignore the call.
	CreateIndex(ctx context.Context, schema, table string, columns []string, indexName string) error

	// ExecuteQuery runs a read query against the target and returns the
	// result set.
	ExecuteQuery(ctx context.Context, query string) ([]Record, error)

	// ExecuteStatement runs a statement with no result set.
	ExecuteStatement(ctx context.Context, statement string) error

	// QuoteIdentifier quotes an identifier for the target dialect.
	QuoteIdentifier(name string) string

	// QuoteValue quotes and escapes a string literal for the target dialect.
	QuoteValue(value string) string

	// TestConnection reports whether the target is reachable.
	TestConnection(ctx context.Context) bool

	// Close releases the connection.
	Close() error
}
