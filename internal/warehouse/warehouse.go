// Package warehouse selects the engine adapter for a target warehouse. The
// set of supported targets is a closed enumeration; unknown names fail before
// any connection is attempted.
package warehouse

import (
	"context"

	"github.com/vaultforge/vaultforge/internal/engine"
	"github.com/vaultforge/vaultforge/internal/warehouse/bigquery"
	"github.com/vaultforge/vaultforge/internal/warehouse/postgres"
	"github.com/vaultforge/vaultforge/internal/warehouse/redshift"
	"github.com/vaultforge/vaultforge/internal/warehouse/snowflake"
)

// NewEngine connects to the named target engine. Callers own the returned
// engine and must Close it.
func NewEngine(ctx context.Context, engineName, connString string) (engine.WarehouseEngine, error) {
	switch engineName {
	case engine.TargetPostgreSQL:
		return postgres.NewEngine(ctx, connString)
	case engine.TargetRedshift:
		return redshift.NewEngine(ctx, connString)
	case engine.TargetSnowflake:
		return snowflake.NewEngine(ctx, connString)
	case engine.TargetBigQuery:
		return bigquery.NewEngine(ctx, connString)
	default:
		return nil, engine.NewUnsupportedEngineError("target", engineName)
	}
}
