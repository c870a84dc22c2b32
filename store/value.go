package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt32
	KindInt64
	KindDouble
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a typed cell of a Record. The zero Value is null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
}

// StringValue returns a string cell.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// IntValue returns an int32 cell when n fits in 32 bits, otherwise an int64 cell.
func IntValue(n int64) Value {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return Value{kind: KindInt32, i: n}
	}
	return Value{kind: KindInt64, i: n}
}

// DoubleValue returns a floating-point cell.
func DoubleValue(f float64) Value { return Value{kind: KindDouble, f: f} }

// BoolValue returns a boolean cell.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// NullValue returns a null cell.
func NullValue() Value { return Value{} }

// Kind returns the type held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null cell.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string held by v, or "" for other kinds.
func (v Value) Str() string { return v.s }

// Int returns the integer held by v, truncating doubles.
func (v Value) Int() int64 {
	if v.kind == KindDouble {
		return int64(v.f)
	}
	return v.i
}

// Float returns the numeric value held by v as a float64.
func (v Value) Float() float64 {
	switch v.kind {
	case KindInt32, KindInt64:
		return float64(v.i)
	}
	return v.f
}

// Bool returns the boolean held by v.
func (v Value) Bool() bool { return v.b }

// String renders v as text; null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt32, KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Equal reports whether v and o hold the same kind and value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindInt32, KindInt64:
		return v.i == o.i
	case KindDouble:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	}
	return true
}

// MarshalJSON encodes v as the matching JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindInt32, KindInt64:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindDouble:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	}
	return []byte("null"), nil
}

// Fields is the schema-less attribute bag of a Record.
type Fields map[string]Value

// Equal reports whether f and o hold the same names and values.
func (f Fields) Equal(o Fields) bool {
	if len(f) != len(o) {
		return false
	}
	for name, v := range f {
		ov, ok := o[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// ParseFields converts a JSON object into Fields, choosing each cell's kind
// from the JSON value's runtime type:
//
//   - string → String
//   - number → Int32 if it fits, else Int64 if it fits, else Double;
//     numbers written with a fraction or exponent are always Double
//   - true/false → Bool
//   - null → Null
//   - array/object → String holding the compact JSON text
func ParseFields(payload []byte) (Fields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: entity data must be a JSON object: %v", ErrInvalidEntity, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: entity data must be a JSON object", ErrInvalidEntity)
	}

	fields := make(Fields, len(raw))
	for name, msg := range raw {
		v, err := parseValue(msg)
		if err != nil {
			return nil, fmt.Errorf("%w: property %q: %v", ErrInvalidEntity, name, err)
		}
		fields[name] = v
	}
	return fields, nil
}

func parseValue(msg json.RawMessage) (Value, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 {
		return NullValue(), nil
	}

	switch msg[0] {
	case '"':
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(msg, &b); err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case 'n':
		return NullValue(), nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, msg); err != nil {
			return Value{}, err
		}
		return StringValue(buf.String()), nil
	}
	return parseNumber(string(msg))
}

func parseNumber(text string) (Value, error) {
	if !strings.ContainsAny(text, ".eE") {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return IntValue(n), nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Value{}, fmt.Errorf("invalid number %q", text)
	}
	return DoubleValue(f), nil
}
