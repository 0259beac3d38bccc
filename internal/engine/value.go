package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ValueKind discriminates the variants of a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
)

// Value is one cell of a source record. Every source adapter converts
// driver-native values into this type at the boundary so the rest of the
// pipeline never inspects engine-specific types.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
}

// Record maps column names to values. Produced by source executors, consumed
// by every build step.
type Record map[string]Value

// Null returns the null value.
func Null() Value {
	return Value{kind: KindNull}
}

// Bool returns a boolean value.
func Bool(v bool) Value {
	return Value{kind: KindBool, b: v}
}

// Int64 returns an integer value.
func Int64(v int64) Value {
	return Value{kind: KindInt64, i: v}
}

// Float64 returns a floating-point value.
func Float64(v float64) Value {
	return Value{kind: KindFloat64, f: v}
}

// String returns a string value.
func String(v string) Value {
	return Value{kind: KindString, s: v}
}

// Kind returns the variant of the value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Text returns the canonical text form of the value: booleans as
// "true"/"false", integers in base 10, floats in the shortest representation
// that round-trips, strings verbatim, null as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	default:
		return ""
	}
}

// BoolValue returns the boolean payload; false when the value is not a bool.
func (v Value) BoolValue() bool {
	return v.kind == KindBool && v.b
}

// IntValue returns the integer payload; 0 when the value is not an integer.
func (v Value) IntValue() int64 {
	if v.kind == KindInt64 {
		return v.i
	}
	return 0
}

// FloatValue returns the float payload, widening integers; 0 otherwise.
func (v Value) FloatValue() float64 {
	switch v.kind {
	case KindFloat64:
		return v.f
	case KindInt64:
		return float64(v.i)
	default:
		return 0
	}
}

// FromNative converts a driver-native Go value into a Value. Unknown types
// fall back to their canonical JSON encoding when marshalable, fmt otherwise.
func FromNative(raw interface{}) Value {
	switch val := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(val)
	case int:
		return Int64(int64(val))
	case int8:
		return Int64(int64(val))
	case int16:
		return Int64(int64(val))
	case int32:
		return Int64(int64(val))
	case int64:
		return Int64(val)
	case uint:
		return Int64(int64(val))
	case uint8:
		return Int64(int64(val))
	case uint16:
		return Int64(int64(val))
	case uint32:
		return Int64(int64(val))
	case uint64:
		return Int64(int64(val))
	case float32:
		return Float64(float64(val))
	case float64:
		return Float64(val)
	case string:
		return String(val)
	case []byte:
		return String(string(val))
	case time.Time:
		return String(val.UTC().Format("2006-01-02 15:04:05"))
	case fmt.Stringer:
		return String(val.String())
	default:
		if data, err := json.Marshal(val); err == nil {
			return String(string(data))
		}
		return String(fmt.Sprintf("%v", val))
	}
}
