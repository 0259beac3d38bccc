package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("customer_vault", "at least one hub is required")
	assert.Equal(t, "validation failed for model 'customer_vault': at least one hub is required", err.Error())
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.True(t, IsValidationError(err))
	assert.False(t, IsQueryError(err))

	anonymous := NewValidationError("", "vault name is required")
	assert.Equal(t, "validation failed: vault name is required", anonymous.Error())
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewConnectionError(SourcePostgreSQL, cause)
	assert.True(t, IsConnectionError(err))
	assert.True(t, errors.Is(err, cause), "the cause stays reachable")
	assert.Contains(t, err.Error(), "PostgreSQL")
}

func TestQueryErrorWrapping(t *testing.T) {
	cause := errors.New("relation does not exist")
	err := NewQueryError(SourceMariaDB, "SELECT * FROM missing", cause)

	// Builders wrap the typed error with context before returning it.
	wrapped := fmt.Errorf("error building hub 'customer': %w", err)
	assert.True(t, IsQueryError(wrapped))
	assert.True(t, errors.Is(wrapped, cause))

	var qe *QueryError
	assert.True(t, errors.As(wrapped, &qe))
	assert.Equal(t, "SELECT * FROM missing", qe.Query)
}

func TestTargetWriteError(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewTargetWriteError(TargetRedshift, "insert", "hub_customer", cause)
	assert.True(t, IsTargetWriteError(err))
	assert.Contains(t, err.Error(), "hub_customer")

	noTable := NewTargetWriteError(TargetRedshift, "create schema", "", cause)
	assert.Equal(t, "create schema failed on Redshift: permission denied", noTable.Error())
}

func TestUnsupportedEngineError(t *testing.T) {
	err := NewUnsupportedEngineError("source", "SQLite")
	assert.Equal(t, "unsupported source engine: SQLite", err.Error())
	assert.True(t, IsUnsupportedEngine(err))
	assert.False(t, IsUnsupportedEngine(errors.New("plain")))
	assert.False(t, IsUnsupportedEngine(nil))
}
