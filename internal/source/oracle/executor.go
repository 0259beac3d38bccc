// Package oracle implements the Oracle source query executor using godror.
package oracle

import (
	"context"
	"database/sql"

	_ "github.com/godror/godror"

	"github.com/vaultforge/vaultforge/internal/engine"
)

// Executor runs queries against an Oracle source database.
type Executor struct{}

// NewExecutor creates a new Oracle source executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute opens a connection, runs the query and returns the full result set.
// The connection string uses the godror format
// (user/password@host:port/service_name).
func (e *Executor) Execute(ctx context.Context, connString, query string) ([]engine.Record, error) {
	db, err := sql.Open("godror", connString)
	if err != nil {
		return nil, engine.NewConnectionError(engine.SourceOracle, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, engine.NewConnectionError(engine.SourceOracle, err)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, engine.NewQueryError(engine.SourceOracle, query, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, engine.NewQueryError(engine.SourceOracle, query, err)
	}

	var result []engine.Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, engine.NewQueryError(engine.SourceOracle, query, err)
		}

		record := make(engine.Record, len(columns))
		for i, col := range columns {
			record[col] = engine.FromNative(values[i])
		}
		result = append(result, record)
	}

	if err := rows.Err(); err != nil {
		return nil, engine.NewQueryError(engine.SourceOracle, query, err)
	}

	return result, nil
}
