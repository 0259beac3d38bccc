// Package source selects the query executor for a source database engine.
// The set of supported engines is a closed enumeration; unknown names fail
// before any connection is attempted.
package source

import (
	"github.com/vaultforge/vaultforge/internal/engine"
	"github.com/vaultforge/vaultforge/internal/source/mariadb"
	"github.com/vaultforge/vaultforge/internal/source/mongodb"
	"github.com/vaultforge/vaultforge/internal/source/mssql"
	"github.com/vaultforge/vaultforge/internal/source/oracle"
	"github.com/vaultforge/vaultforge/internal/source/postgres"
)

// Options carries adapter settings that are not part of the connection string.
type Options struct {
	// MongoCollection is the collection MongoDB queries run against.
	MongoCollection string

	// MongoDatabase overrides the database named in the MongoDB URI.
	MongoDatabase string
}

// NewExecutor returns the query executor for the named source engine.
func NewExecutor(engineName string, opts Options) (engine.SourceQueryExecutor, error) {
	switch engineName {
	case engine.SourcePostgreSQL:
		return postgres.NewExecutor(), nil
	case engine.SourceMariaDB:
		return mariadb.NewExecutor(), nil
	case engine.SourceMSSQL:
		return mssql.NewExecutor(), nil
	case engine.SourceOracle:
		return oracle.NewExecutor(), nil
	case engine.SourceMongoDB:
		return mongodb.NewExecutor(opts.MongoDatabase, opts.MongoCollection), nil
	default:
		return nil, engine.NewUnsupportedEngineError("source", engineName)
	}
}
