// Package mariadb implements the MariaDB/MySQL source query executor using
// go-sql-driver/mysql.
package mariadb

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"

	"github.com/vaultforge/vaultforge/internal/engine"
)

// Executor runs queries against a MariaDB or MySQL source database.
type Executor struct{}

// NewExecutor creates a new MariaDB source executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute opens a connection, runs the query and returns the full result set.
// The connection string is a go-sql-driver DSN
// (user:password@tcp(host:port)/dbname).
func (e *Executor) Execute(ctx context.Context, connString, query string) ([]engine.Record, error) {
	db, err := sql.Open("mysql", connString)
	if err != nil {
		return nil, engine.NewConnectionError(engine.SourceMariaDB, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, engine.NewConnectionError(engine.SourceMariaDB, err)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, engine.NewQueryError(engine.SourceMariaDB, query, err)
	}
	defer rows.Close()

	return scanRows(rows, query)
}

func scanRows(rows *sql.Rows, query string) ([]engine.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, engine.NewQueryError(engine.SourceMariaDB, query, err)
	}

	var result []engine.Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, engine.NewQueryError(engine.SourceMariaDB, query, err)
		}

		record := make(engine.Record, len(columns))
		for i, col := range columns {
			record[col] = engine.FromNative(values[i])
		}
		result = append(result, record)
	}

	if err := rows.Err(); err != nil {
		return nil, engine.NewQueryError(engine.SourceMariaDB, query, err)
	}

	return result, nil
}
