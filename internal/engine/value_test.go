package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValueText(t *testing.T) {
	t.Run("Null", func(t *testing.T) {
		assert.Equal(t, "", Null().Text())
		assert.True(t, Null().IsNull())
	})

	t.Run("Bool", func(t *testing.T) {
		assert.Equal(t, "true", Bool(true).Text())
		assert.Equal(t, "false", Bool(false).Text())
	})

	t.Run("Int64", func(t *testing.T) {
		assert.Equal(t, "42", Int64(42).Text())
		assert.Equal(t, "-7", Int64(-7).Text())
	})

	t.Run("Float64", func(t *testing.T) {
		assert.Equal(t, "3.14", Float64(3.14).Text())
		assert.Equal(t, "7", Float64(7).Text())
	})

	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "hello", String("hello").Text())
		assert.Equal(t, "", String("").Text())
		assert.False(t, String("").IsNull(), "empty string is not null")
	})
}

func TestValueAccessors(t *testing.T) {
	assert.Equal(t, int64(42), Int64(42).IntValue())
	assert.Equal(t, int64(0), String("42").IntValue())
	assert.Equal(t, 1.5, Float64(1.5).FloatValue())
	assert.Equal(t, 42.0, Int64(42).FloatValue(), "integers widen to float")
	assert.True(t, Bool(true).BoolValue())
	assert.False(t, String("true").BoolValue())
}

func TestFromNative(t *testing.T) {
	t.Run("Nil", func(t *testing.T) {
		assert.True(t, FromNative(nil).IsNull())
	})

	t.Run("IntegerWidths", func(t *testing.T) {
		for _, raw := range []interface{}{int(7), int8(7), int16(7), int32(7), int64(7), uint(7), uint8(7), uint16(7), uint32(7), uint64(7)} {
			v := FromNative(raw)
			assert.Equal(t, KindInt64, v.Kind())
			assert.Equal(t, int64(7), v.IntValue())
		}
	})

	t.Run("Floats", func(t *testing.T) {
		assert.Equal(t, KindFloat64, FromNative(float32(1.5)).Kind())
		assert.Equal(t, 2.5, FromNative(2.5).FloatValue())
	})

	t.Run("Bytes", func(t *testing.T) {
		v := FromNative([]byte("raw"))
		assert.Equal(t, KindString, v.Kind())
		assert.Equal(t, "raw", v.Text())
	})

	t.Run("Time", func(t *testing.T) {
		loc := time.FixedZone("CET", 3600)
		ts := time.Date(2025, 3, 15, 10, 30, 0, 0, loc)
		assert.Equal(t, "2025-03-15 09:30:00", FromNative(ts).Text(), "times normalize to UTC")
	})

	t.Run("Stringer", func(t *testing.T) {
		assert.Equal(t, "1h0m0s", FromNative(time.Hour).Text())
	})

	t.Run("FallbackJSON", func(t *testing.T) {
		v := FromNative(map[string]int{"a": 1})
		assert.Equal(t, `{"a":1}`, v.Text())
	})
}
