// Package types holds the data model shared by the index, graph and query
// packages: the tagged attribute Value, attribute maps and directed edges.
package types

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Kind identifies which variant a Value holds.
type Kind uint8

// The ordering of the constants is the ordering used by Compare across kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// ErrUnsupportedValue is returned when decoding a JSON object or array into a Value.
var ErrUnsupportedValue = errors.New("attribute value must be a JSON scalar")

// Value is a small closed variant for node attribute values: null, string,
// number or bool. The zero Value is Null. Values are comparable and can be
// used as map keys.
type Value struct {
	kind Kind
	s    string
	n    float64
	b    bool
}

// Null returns the null Value.
func Null() Value { return Value{} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int is a convenience wrapper around Number.
func Int(n int) Value { return Value{kind: KindNumber, n: float64(n)} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Of converts a Go scalar into a Value. Unsupported types yield an error.
func Of(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null Value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Num returns the numeric payload and whether v is a number.
func (v Value) Num() (float64, bool) { return v.n, v.kind == KindNumber }

// Boolean returns the bool payload and whether v is a bool.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// AsFloat returns v as a float64. Numbers convert directly and strings are
// parsed, since interchange formats such as GraphML carry every attribute
// as text.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Any returns the payload as a plain Go value (nil, string, float64 or bool).
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return v.n
	case KindBool:
		return v.b
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "null"
	}
}

// Compare orders values by kind (null < bool < number < string) and then by
// their natural order within the kind.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindNumber:
		return cmp.Compare(a.n, b.n)
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	default:
		return 0
	}
}

// MarshalJSON encodes the Value as the matching JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes any JSON scalar into the Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrUnsupportedValue
	}
	switch data[0] {
	case '{', '[':
		return ErrUnsupportedValue
	case 'n':
		*v = Null()
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Of(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Attributes is the payload of a node: attribute name to value. It is
// serialized with sorted keys.
type Attributes map[string]Value

// Get returns the attribute value, or Null when the key is absent.
func (a Attributes) Get(key string) Value {
	return a[key]
}

// Lookup returns the attribute value and whether it is present.
func (a Attributes) Lookup(key string) (Value, bool) {
	v, ok := a[key]
	return v, ok
}

// Clone returns an independent copy. A nil map clones to an empty map.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	maps.Copy(out, a)
	return out
}

// Equal reports whether both maps hold the same keys and values.
func (a Attributes) Equal(b Attributes) bool {
	return maps.Equal(a, b)
}

// FromStrings builds Attributes from a string map, the shape produced by
// GraphML-style loaders.
func FromStrings(m map[string]string) Attributes {
	out := make(Attributes, len(m))
	for k, v := range m {
		out[k] = String(v)
	}
	return out
}

// Edge is a directed, labeled connection between two node ids.
type Edge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", e.Source, e.Relationship, e.Target)
}
