package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultforge/vaultforge/internal/engine"
)

// Known engine names dial their targets, so only the rejection path is
// covered here.
func TestNewEngineUnknownTarget(t *testing.T) {
	eng, err := NewEngine(context.Background(), "DuckDB", "dsn")
	assert.Nil(t, eng)
	require.Error(t, err)
	assert.True(t, engine.IsUnsupportedEngine(err))
	assert.Contains(t, err.Error(), "DuckDB")

	_, err = NewEngine(context.Background(), "", "dsn")
	assert.True(t, engine.IsUnsupportedEngine(err))
}
