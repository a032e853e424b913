// Package dbvalue provides the backend-neutral value representation used for
// parameter binding and row cell results across all database adapters.
// Adapters translate their native wire types to and from this set; a
// conversion is either lossless or fails explicitly.
package dbvalue

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Kind identifies the type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindBinary
	KindJSON
	KindDateTime
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindJSON:
		return "json"
	case KindDateTime:
		return "datetime"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the backend-neutral type set.
// The zero Value is Null.
type Value struct {
	kind Kind

	boolVal   bool
	intVal    int64
	floatVal  float64
	stringVal string
	binaryVal []byte
	timeVal   time.Time
}

// Null returns the null value.
func Null() Value {
	return Value{kind: KindNull}
}

// Bool returns a boolean value.
func Bool(v bool) Value {
	return Value{kind: KindBool, boolVal: v}
}

// Int64 returns an integer value.
func Int64(v int64) Value {
	return Value{kind: KindInt64, intVal: v}
}

// Float64 returns a floating-point value.
func Float64(v float64) Value {
	return Value{kind: KindFloat64, floatVal: v}
}

// String returns a string value.
func String(v string) Value {
	return Value{kind: KindString, stringVal: v}
}

// Binary returns a binary value. The byte slice is not copied.
func Binary(v []byte) Value {
	return Value{kind: KindBinary, binaryVal: v}
}

// JSON returns a JSON document value carried as its textual encoding.
// It fails if the text is not valid JSON.
func JSON(text string) (Value, error) {
	if !json.Valid([]byte(text)) {
		return Value{}, fmt.Errorf("dbvalue: invalid JSON document")
	}
	return Value{kind: KindJSON, stringVal: text}, nil
}

// DateTime returns a timestamp value.
func DateTime(v time.Time) Value {
	return Value{kind: KindDateTime, timeVal: v}
}

// Kind returns the kind carried by the value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// kindError reports a kind mismatch on a typed accessor.
func (v Value) kindError(want Kind) error {
	return fmt.Errorf("dbvalue: cannot read %s value as %s", v.kind, want)
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, v.kindError(KindBool)
	}
	return v.boolVal, nil
}

// AsInt64 returns the integer payload. A Float64 value converts only when it
// is integral and representable; anything else fails rather than truncating.
func (v Value) AsInt64() (int64, error) {
	switch v.kind {
	case KindInt64:
		return v.intVal, nil
	case KindFloat64:
		f := v.floatVal
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, fmt.Errorf("dbvalue: float64 %v does not convert losslessly to int64", f)
		}
		return int64(f), nil
	default:
		return 0, v.kindError(KindInt64)
	}
}

// AsFloat64 returns the floating-point payload. An Int64 value converts only
// when it survives the round trip through float64.
func (v Value) AsFloat64() (float64, error) {
	switch v.kind {
	case KindFloat64:
		return v.floatVal, nil
	case KindInt64:
		f := float64(v.intVal)
		if int64(f) != v.intVal {
			return 0, fmt.Errorf("dbvalue: int64 %d does not convert losslessly to float64", v.intVal)
		}
		return f, nil
	default:
		return 0, v.kindError(KindFloat64)
	}
}

// AsString returns the string payload of a String or JSON value.
func (v Value) AsString() (string, error) {
	switch v.kind {
	case KindString, KindJSON:
		return v.stringVal, nil
	default:
		return "", v.kindError(KindString)
	}
}

// AsBinary returns the binary payload.
func (v Value) AsBinary() ([]byte, error) {
	if v.kind != KindBinary {
		return nil, v.kindError(KindBinary)
	}
	return v.binaryVal, nil
}

// AsDateTime returns the timestamp payload.
func (v Value) AsDateTime() (time.Time, error) {
	if v.kind != KindDateTime {
		return time.Time{}, v.kindError(KindDateTime)
	}
	return v.timeVal, nil
}

// Native returns the payload as the natural Go type for passing to a driver:
// nil, bool, int64, float64, string, []byte or time.Time. JSON documents are
// returned as their textual encoding.
func (v Value) Native() interface{} {
	switch v.kind {
	case KindBool:
		return v.boolVal
	case KindInt64:
		return v.intVal
	case KindFloat64:
		return v.floatVal
	case KindString, KindJSON:
		return v.stringVal
	case KindBinary:
		return v.binaryVal
	case KindDateTime:
		return v.timeVal
	default:
		return nil
	}
}

// FromNative converts a driver-native Go value into a Value. Integer and
// unsigned widths narrower than 64 bits widen losslessly; uint64 values above
// the int64 range fail explicitly.
func FromNative(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int64(int64(t)), nil
	case int8:
		return Int64(int64(t)), nil
	case int16:
		return Int64(int64(t)), nil
	case int32:
		return Int64(int64(t)), nil
	case int64:
		return Int64(t), nil
	case uint8:
		return Int64(int64(t)), nil
	case uint16:
		return Int64(int64(t)), nil
	case uint32:
		return Int64(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("dbvalue: uint64 %d overflows int64", t)
		}
		return Int64(int64(t)), nil
	case float32:
		return Float64(float64(t)), nil
	case float64:
		return Float64(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Binary(t), nil
	case time.Time:
		return DateTime(t), nil
	case json.RawMessage:
		return JSON(string(t))
	default:
		return Value{}, fmt.Errorf("dbvalue: unsupported native type %T", raw)
	}
}

// Natives converts a parameter list into driver-native values.
func Natives(params []Value) []interface{} {
	if len(params) == 0 {
		return nil
	}
	out := make([]interface{}, len(params))
	for i, p := range params {
		out[i] = p.Native()
	}
	return out
}

// String implements fmt.Stringer for diagnostics. Binary payloads are
// summarized by length rather than dumped.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBool:
		return fmt.Sprintf("%t", v.boolVal)
	case KindInt64:
		return fmt.Sprintf("%d", v.intVal)
	case KindFloat64:
		return fmt.Sprintf("%g", v.floatVal)
	case KindString, KindJSON:
		return v.stringVal
	case KindBinary:
		return fmt.Sprintf("<binary %d bytes>", len(v.binaryVal))
	case KindDateTime:
		return v.timeVal.Format(time.RFC3339Nano)
	default:
		return "<unknown>"
	}
}
