// Package snowflake implements the warehouse engine for Snowflake using
// gosnowflake.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/snowflakedb/gosnowflake"

	"github.com/vaultforge/vaultforge/internal/engine"
)

// Engine is the Snowflake warehouse engine.
type Engine struct {
	db *sql.DB
}

// NewEngine connects to the target account and returns the engine. The
// connection string is a gosnowflake DSN
// (user:password@account/database/schema).
func NewEngine(ctx context.Context, connString string) (*Engine, error) {
	db, err := sql.Open("snowflake", connString)
	if err != nil {
		return nil, engine.NewConnectionError(engine.TargetSnowflake, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, engine.NewConnectionError(engine.TargetSnowflake, err)
	}
	return &Engine{db: db}, nil
}

// Close releases the connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// CreateSchema creates the schema if absent.
func (e *Engine) CreateSchema(ctx context.Context, name string) error {
	query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", e.QuoteIdentifier(name))
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return engine.NewTargetWriteError(engine.TargetSnowflake, "create schema", name, err)
	}
	return nil
}

// CreateTable creates the table if absent.
func (e *Engine) CreateTable(ctx context.Context, schema, table string, columns []engine.ColumnInfo, primaryKeys []string) error {
	var defs []string
	for _, col := range columns {
		def := fmt.Sprintf("%s %s", e.QuoteIdentifier(col.Name), col.DataType)
		if !col.IsNullable {
			def += " NOT NULL"
		}
		if col.Default != "" {
			def += " DEFAULT " + col.Default
		}
		defs = append(defs, def)
	}
	if len(primaryKeys) > 0 {
		quoted := make([]string, len(primaryKeys))
		for i, pk := range primaryKeys {
			quoted[i] = e.QuoteIdentifier(pk)
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (%s)",
		e.QuoteIdentifier(schema), e.QuoteIdentifier(table), strings.Join(defs, ", "))
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return engine.NewTargetWriteError(engine.TargetSnowflake, "create table", table, err)
	}
	return nil
}

// InsertData appends rows in batches. Empty string values are inserted as
// NULL.
func (e *Engine) InsertData(ctx context.Context, schema, table string, columns []string, rows [][]string) error {
	for start := 0; start < len(rows); start += engine.InsertBatchSize {
		end := start + engine.InsertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		query := e.buildInsert(schema, table, columns, rows[start:end])
		if _, err := e.db.ExecContext(ctx, query); err != nil {
			return engine.NewTargetWriteError(engine.TargetSnowflake, "insert", table, err)
		}
	}
	return nil
}

// InsertIgnoreDuplicates appends rows, skipping key collisions. Snowflake
// does not enforce primary keys, so each row is inserted through
// INSERT ... SELECT ... WHERE NOT EXISTS on the key columns.
func (e *Engine) InsertIgnoreDuplicates(ctx context.Context, schema, table string, columns []string, keyColumns []string, rows [][]string) error {
	if len(keyColumns) == 0 {
		return e.InsertData(ctx, schema, table, columns, rows)
	}

	keyIndex := make(map[string]int, len(columns))
	for i, col := range columns {
		keyIndex[col] = i
	}

	quotedCols := make([]string, len(columns))
	for i, col := range columns {
		quotedCols[i] = e.QuoteIdentifier(col)
	}
	target := fmt.Sprintf("%s.%s", e.QuoteIdentifier(schema), e.QuoteIdentifier(table))

	for _, row := range rows {
		values := make([]string, len(row))
		for j, val := range row {
			values[j] = e.quoteOrNull(val)
		}

		var predicates []string
		for _, keyCol := range keyColumns {
			idx, ok := keyIndex[keyCol]
			if !ok {
				continue
			}
			predicates = append(predicates, fmt.Sprintf("%s = %s", e.QuoteIdentifier(keyCol), e.quoteOrNull(row[idx])))
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s WHERE NOT EXISTS (SELECT 1 FROM %s WHERE %s)",
			target, strings.Join(quotedCols, ", "), strings.Join(values, ", "),
			target, strings.Join(predicates, " AND "))
		if _, err := e.db.ExecContext(ctx, query); err != nil {
			return engine.NewTargetWriteError(engine.TargetSnowflake, "insert", table, err)
		}
	}
	return nil
}

func (e *Engine) buildInsert(schema, table string, columns []string, rows [][]string) string {
	quotedCols := make([]string, len(columns))
	for i, col := range columns {
		quotedCols[i] = e.QuoteIdentifier(col)
	}

	valueLists := make([]string, len(rows))
	for i, row := range rows {
		values := make([]string, len(row))
		for j, val := range row {
			values[j] = e.quoteOrNull(val)
		}
		valueLists[i] = "(" + strings.Join(values, ", ") + ")"
	}

	return fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES %s",
		e.QuoteIdentifier(schema), e.QuoteIdentifier(table),
		strings.Join(quotedCols, ", "), strings.Join(valueLists, ", "))
}

func (e *Engine) quoteOrNull(value string) string {
	if value == "" {
		return "NULL"
	}
	return e.QuoteValue(value)
}

// TruncateTable removes all rows from the table.
func (e *Engine) TruncateTable(ctx context.Context, schema, table string) error {
	query := fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s.%s", e.QuoteIdentifier(schema), e.QuoteIdentifier(table))
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return engine.NewTargetWriteError(engine.TargetSnowflake, "truncate", table, err)
	}
	return nil
}

// CreateIndex is a no-op: Snowflake has no secondary indexes, micro-partition
// pruning replaces them.
func (e *Engine) CreateIndex(ctx context.Context, schema, table string, columns []string, indexName string) error {
	return nil
}

// ExecuteQuery runs a read query against the target.
func (e *Engine) ExecuteQuery(ctx context.Context, query string) ([]engine.Record, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, engine.NewQueryError(engine.TargetSnowflake, query, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, engine.NewQueryError(engine.TargetSnowflake, query, err)
	}

	var result []engine.Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, engine.NewQueryError(engine.TargetSnowflake, query, err)
		}

		record := make(engine.Record, len(columns))
		for i, col := range columns {
			record[col] = engine.FromNative(values[i])
		}
		result = append(result, record)
	}

	if err := rows.Err(); err != nil {
		return nil, engine.NewQueryError(engine.TargetSnowflake, query, err)
	}

	return result, nil
}

// ExecuteStatement runs a statement with no result set.
func (e *Engine) ExecuteStatement(ctx context.Context, statement string) error {
	if _, err := e.db.ExecContext(ctx, statement); err != nil {
		return engine.NewTargetWriteError(engine.TargetSnowflake, "execute", "", err)
	}
	return nil
}

// QuoteIdentifier quotes an identifier, doubling embedded quotes.
func (e *Engine) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteValue quotes a string literal, doubling embedded quotes.
func (e *Engine) QuoteValue(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// TestConnection reports whether the target is reachable.
func (e *Engine) TestConnection(ctx context.Context) bool {
	return e.db.PingContext(ctx) == nil
}
