// Package postgres implements the warehouse engine for PostgreSQL targets
// using pgx/v5.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vaultforge/vaultforge/internal/engine"
)

// Engine is the PostgreSQL warehouse engine. It owns one connection for the
// duration of a build.
type Engine struct {
	conn *pgx.Conn
}

// NewEngine connects to the target database and returns the engine.
func NewEngine(ctx context.Context, connString string) (*Engine, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, engine.NewConnectionError(engine.TargetPostgreSQL, err)
	}
	return &Engine{conn: conn}, nil
}

// Close releases the connection.
func (e *Engine) Close() error {
	return e.conn.Close(context.Background())
}

// CreateSchema creates the schema if absent.
func (e *Engine) CreateSchema(ctx context.Context, name string) error {
	query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", e.QuoteIdentifier(name))
	if _, err := e.conn.Exec(ctx, query); err != nil {
		return engine.NewTargetWriteError(engine.TargetPostgreSQL, "create schema", name, err)
	}
	return nil
}

// CreateTable creates the table if absent. An existing table's shape is left
// untouched.
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
	if _, err := e.conn.Exec(ctx, query); err != nil {
		return engine.NewTargetWriteError(engine.TargetPostgreSQL, "create table", table, err)
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

		query := e.buildInsert(schema, table, columns, rows[start:end], "")
		if _, err := e.conn.Exec(ctx, query); err != nil {
			return engine.NewTargetWriteError(engine.TargetPostgreSQL, "insert", table, err)
		}
	}
	return nil
}

// InsertIgnoreDuplicates appends rows, skipping primary-key conflicts with
// ON CONFLICT DO NOTHING.
func (e *Engine) InsertIgnoreDuplicates(ctx context.Context, schema, table string, columns []string, keyColumns []string, rows [][]string) error {
	suffix := " ON CONFLICT DO NOTHING"
	if len(keyColumns) > 0 {
		quoted := make([]string, len(keyColumns))
		for i, col := range keyColumns {
			quoted[i] = e.QuoteIdentifier(col)
		}
		suffix = fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(quoted, ", "))
	}

	for start := 0; start < len(rows); start += engine.InsertBatchSize {
		end := start + engine.InsertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		query := e.buildInsert(schema, table, columns, rows[start:end], suffix)
		if _, err := e.conn.Exec(ctx, query); err != nil {
			return engine.NewTargetWriteError(engine.TargetPostgreSQL, "insert", table, err)
		}
	}
	return nil
}

func (e *Engine) buildInsert(schema, table string, columns []string, rows [][]string, suffix string) string {
	quotedCols := make([]string, len(columns))
	for i, col := range columns {
		quotedCols[i] = e.QuoteIdentifier(col)
	}

	valueLists := make([]string, len(rows))
	for i, row := range rows {
		values := make([]string, len(row))
		for j, val := range row {
			if val == "" {
				values[j] = "NULL"
			} else {
				values[j] = e.QuoteValue(val)
			}
		}
		valueLists[i] = "(" + strings.Join(values, ", ") + ")"
	}

	return fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES %s%s",
		e.QuoteIdentifier(schema), e.QuoteIdentifier(table),
		strings.Join(quotedCols, ", "), strings.Join(valueLists, ", "), suffix)
}

// TruncateTable removes all rows from the table.
func (e *Engine) TruncateTable(ctx context.Context, schema, table string) error {
	query := fmt.Sprintf("TRUNCATE TABLE %s.%s", e.QuoteIdentifier(schema), e.QuoteIdentifier(table))
	if _, err := e.conn.Exec(ctx, query); err != nil {
		return engine.NewTargetWriteError(engine.TargetPostgreSQL, "truncate", table, err)
	}
	return nil
}

// CreateIndex creates the named index if absent.
func (e *Engine) CreateIndex(ctx context.Context, schema, table string, columns []string, indexName string) error {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = e.QuoteIdentifier(col)
	}

	query := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s.%s (%s)",
		e.QuoteIdentifier(indexName), e.QuoteIdentifier(schema), e.QuoteIdentifier(table),
		strings.Join(quoted, ", "))
	if _, err := e.conn.Exec(ctx, query); err != nil {
		return engine.NewTargetWriteError(engine.TargetPostgreSQL, "create index", table, err)
	}
	return nil
}

// ExecuteQuery runs a read query against the target.
func (e *Engine) ExecuteQuery(ctx context.Context, query string) ([]engine.Record, error) {
	rows, err := e.conn.Query(ctx, query)
	if err != nil {
		return nil, engine.NewQueryError(engine.TargetPostgreSQL, query, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	var result []engine.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, engine.NewQueryError(engine.TargetPostgreSQL, query, err)
		}

		record := make(engine.Record, len(columns))
		for i, col := range columns {
			record[col] = engine.FromNative(values[i])
		}
		result = append(result, record)
	}

	if err := rows.Err(); err != nil {
		return nil, engine.NewQueryError(engine.TargetPostgreSQL, query, err)
	}

	return result, nil
}

// ExecuteStatement runs a statement with no result set.
func (e *Engine) ExecuteStatement(ctx context.Context, statement string) error {
	if _, err := e.conn.Exec(ctx, statement); err != nil {
		return engine.NewTargetWriteError(engine.TargetPostgreSQL, "execute", "", err)
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
	return e.conn.Ping(ctx) == nil
}
