package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultforge/vaultforge/internal/engine"
)

func TestNewExecutor(t *testing.T) {
	t.Run("KnownEngines", func(t *testing.T) {
		for _, name := range engine.SourceEngineNames() {
			executor, err := NewExecutor(name, Options{MongoCollection: "events"})
			require.NoError(t, err, name)
			assert.NotNil(t, executor, name)
		}
	})

	t.Run("UnknownEngine", func(t *testing.T) {
		executor, err := NewExecutor("SQLite", Options{})
		assert.Nil(t, executor)
		require.Error(t, err)
		assert.True(t, engine.IsUnsupportedEngine(err))
		assert.Contains(t, err.Error(), "SQLite")
	})

	t.Run("EmptyName", func(t *testing.T) {
		_, err := NewExecutor("", Options{})
		assert.True(t, engine.IsUnsupportedEngine(err))
	})

	t.Run("CaseSensitive", func(t *testing.T) {
		_, err := NewExecutor("postgresql", Options{})
		assert.True(t, engine.IsUnsupportedEngine(err))
	})
}
