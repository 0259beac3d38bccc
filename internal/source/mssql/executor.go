// Package mssql implements the Microsoft SQL Server source query executor
// using microsoft/go-mssqldb.
package mssql

import (
	"context"
	"database/sql"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/vaultforge/vaultforge/internal/engine"
)

// Executor runs queries against a SQL Server source database.
type Executor struct{}

// NewExecutor creates a new SQL Server source executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute opens a connection, runs the query and returns the full result set.
// The connection string uses the ADO style
// (server=host;port=1433;database=db;user id=u;password=p).
func (e *Executor) Execute(ctx context.Context, connString, query string) ([]engine.Record, error) {
	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return nil, engine.NewConnectionError(engine.SourceMSSQL, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, engine.NewConnectionError(engine.SourceMSSQL, err)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, engine.NewQueryError(engine.SourceMSSQL, query, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, engine.NewQueryError(engine.SourceMSSQL, query, err)
	}

	var result []engine.Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, engine.NewQueryError(engine.SourceMSSQL, query, err)
		}

		record := make(engine.Record, len(columns))
		for i, col := range columns {
			record[col] = engine.FromNative(values[i])
		}
		result = append(result, record)
	}

	if err := rows.Err(); err != nil {
		return nil, engine.NewQueryError(engine.SourceMSSQL, query, err)
	}

	return result, nil
}
