package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vaultforge/vaultforge/internal/engine"
)

func TestHashKey(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		record := engine.Record{
			"customer_id": engine.String("C1"),
			"region":      engine.String("EU"),
		}
		keys := []string{"customer_id", "region"}

		first := HashKey(keys, record)
		second := HashKey(keys, record)

		assert.Equal(t, first, second)
		assert.Len(t, first, 64)
		assert.Regexp(t, "^[0-9a-f]{64}$", first)
	})

	t.Run("KeyOrderMatters", func(t *testing.T) {
		record := engine.Record{
			"a": engine.String("x"),
			"b": engine.String("y"),
		}

		forward := HashKey([]string{"a", "b"}, record)
		reverse := HashKey([]string{"b", "a"}, record)

		assert.NotEqual(t, forward, reverse)
	})

	t.Run("NullAndAbsentHashIdentically", func(t *testing.T) {
		withNull := engine.Record{
			"customer_id": engine.String("C1"),
			"region":      engine.Null(),
		}
		withAbsent := engine.Record{
			"customer_id": engine.String("C1"),
		}
		keys := []string{"customer_id", "region"}

		assert.Equal(t, HashKey(keys, withNull), HashKey(keys, withAbsent))
	})

	t.Run("NullKeyContributesNoSeparator", func(t *testing.T) {
		full := engine.Record{
			"a": engine.String("x"),
			"b": engine.String("y"),
		}
		partial := engine.Record{
			"a": engine.String("x"),
			"b": engine.Null(),
		}
		keys := []string{"a", "b"}

		assert.NotEqual(t, HashKey(keys, full), HashKey(keys, partial))
		assert.Equal(t, HashKey([]string{"a"}, full), HashKey(keys, partial))
	})

	t.Run("NumbersAndBooleansStringify", func(t *testing.T) {
		record := engine.Record{
			"id":     engine.Int64(42),
			"active": engine.Bool(true),
			"score":  engine.Float64(1.5),
		}
		asText := engine.Record{
			"id":     engine.String("42"),
			"active": engine.String("true"),
			"score":  engine.String("1.5"),
		}
		keys := []string{"id", "active", "score"}

		assert.Equal(t, HashKey(keys, asText), HashKey(keys, record))
	})

	t.Run("EmptyKeyListHashesEmptyString", func(t *testing.T) {
		record := engine.Record{"a": engine.String("x")}

		// SHA-256 of ""
		assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			HashKey(nil, record))
	})
}
