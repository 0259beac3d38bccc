// Package postgres implements the PostgreSQL source query executor using
// pgx/v5.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vaultforge/vaultforge/internal/engine"
)

// Executor runs queries against a PostgreSQL source database.
type Executor struct{}

// NewExecutor creates a new PostgreSQL source executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute opens a connection, runs the query and returns the full result set.
// The connection is closed before returning.
func (e *Executor) Execute(ctx context.Context, connString, query string) ([]engine.Record, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, engine.NewConnectionError(engine.SourcePostgreSQL, err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, engine.NewQueryError(engine.SourcePostgreSQL, query, err)
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
			return nil, engine.NewQueryError(engine.SourcePostgreSQL, query, err)
		}

		record := make(engine.Record, len(columns))
		for i, col := range columns {
			record[col] = engine.FromNative(values[i])
		}
		result = append(result, record)
	}

	if err := rows.Err(); err != nil {
		return nil, engine.NewQueryError(engine.SourcePostgreSQL, query, err)
	}

	return result, nil
}
