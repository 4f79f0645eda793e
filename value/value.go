// Package value implements the JSON-compatible tagged union carried by
// every field of an Entity. Field values are never arbitrary Go types:
// they are restricted to the six JSON shapes so the conflict resolver
// can dispatch on a closed set of kinds instead of reflecting over
// whatever a host happened to pass in.
package value

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Kind identifies which JSON shape a Value holds.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "invalid"
	}
}

// Value is a JSON-compatible value: Null, Bool, Number (float64),
// String, Array ([]Value) or Object (map[string]Value). It is
// immutable once constructed; Array and Object values are never
// mutated in place by this package.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

// NullValue returns the JSON null value.
func NullValue() Value { return Value{kind: Null} }

// OfBool, OfNumber, OfString, OfArray and OfObject wrap a bool,
// float64, string, []Value or map[string]Value as a Value. Use From
// for arbitrary, possibly JSON-decoded, inputs.
func OfBool(b bool) Value     { return Value{kind: Bool, b: b} }
func OfNumber(n float64) Value { return Value{kind: Number, n: n} }
func OfString(s string) Value { return Value{kind: String, s: s} }
func OfArray(vs []Value) Value {
	cp := make([]Value, len(vs))
	copy(cp, vs)
	return Value{kind: Array, arr: cp}
}
func OfObject(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: Object, obj: cp}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }

func (v Value) Bool() (bool, bool)       { return v.b, v.kind == Bool }
func (v Value) NumberVal() (float64, bool) { return v.n, v.kind == Number }
func (v Value) StringVal() (string, bool) { return v.s, v.kind == String }

// ArrayVal returns the array elements. The returned slice must not be
// mutated by the caller.
func (v Value) ArrayVal() ([]Value, bool) { return v.arr, v.kind == Array }

// ObjectVal returns the object fields. The returned map must not be
// mutated by the caller.
func (v Value) ObjectVal() (map[string]Value, bool) { return v.obj, v.kind == Object }

// IsObjectLike reports whether v is a JSON object, including the
// "edge" reference shape `{ edge: string }` used by §4.1 rule 2.
func (v Value) IsObjectLike() bool { return v.kind == Object }

// Equal reports deep structural equality between two Values.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Bool:
		return v.b == other.b
	case Number:
		return v.n == other.n
	case String:
		return v.s == other.s
	case Array:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, val := range v.obj {
			ov, ok := other.obj[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// ToAny unwraps v into a plain Go value made of bool, float64, string,
// []interface{}, map[string]interface{} and nil — the shape
// encoding/json produces and consumes.
func (v Value) ToAny() any {
	switch v.kind {
	case Null:
		return nil
	case Bool:
		return v.b
	case Number:
		return v.n
	case String:
		return v.s
	case Array:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.ToAny()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.ToAny()
		}
		return out
	default:
		return nil
	}
}

// From converts an arbitrary Go value (typically the result of
// encoding/json.Unmarshal into an any, or a value built natively by
// host code) into a Value. It rejects non-finite floats and circular
// references, matching §4.1 and §7's InvalidValue contract.
//
// Cycle detection tracks visited map/slice pointers by address, since
// JSON-shaped data can only cycle through reference types (maps and
// slices), never through value types.
func From(src any) (Value, error) {
	seen := make(map[uintptr]bool)
	return from(src, seen)
}

func from(src any, seen map[uintptr]bool) (Value, error) {
	switch t := src.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return t, nil
	case bool:
		return OfBool(t), nil
	case string:
		return OfString(t), nil
	case float32:
		return fromFloat(float64(t))
	case float64:
		return fromFloat(t)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fromFloat(reflect.ValueOf(t).Convert(reflect.TypeOf(float64(0))).Float())
	}

	rv := reflect.ValueOf(src)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			if rv.IsNil() {
				return OfArray(nil), nil
			}
			ptr := rv.Pointer()
			if seen[ptr] {
				return Value{}, fmt.Errorf("value: circular reference in array")
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		out := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := from(rv.Index(i).Interface(), seen)
			if err != nil {
				return Value{}, err
			}
			out[i] = elem
		}
		return OfArray(out), nil
	case reflect.Map:
		if rv.IsNil() {
			return OfObject(nil), nil
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return Value{}, fmt.Errorf("value: circular reference in object")
		}
		seen[ptr] = true
		defer delete(seen, ptr)

		out := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, ok := iter.Key().Interface().(string)
			if !ok {
				return Value{}, fmt.Errorf("value: object keys must be strings, got %s", rv.Type().Key())
			}
			elem, err := from(iter.Value().Interface(), seen)
			if err != nil {
				return Value{}, err
			}
			out[k] = elem
		}
		return OfObject(out), nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return NullValue(), nil
		}
		return from(rv.Elem().Interface(), seen)
	}

	return Value{}, fmt.Errorf("value: unsupported type %T", src)
}

func fromFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("value: non-finite number %v is not JSON-encodable", f)
	}
	return OfNumber(f), nil
}

// Canonical returns a stable, deterministic serialization of v used by
// the conflict resolver's lexicographic tie-break (§4.1): object keys
// sorted, numbers in Go's shortest round-trip form, strings
// JSON-escaped.
func (v Value) Canonical() string {
	var b []byte
	b = v.appendCanonical(b)
	return string(b)
}

func (v Value) appendCanonical(b []byte) []byte {
	switch v.kind {
	case Null:
		return append(b, "null"...)
	case Bool:
		if v.b {
			return append(b, "true"...)
		}
		return append(b, "false"...)
	case Number:
		return appendCanonicalNumber(b, v.n)
	case String:
		return appendCanonicalString(b, v.s)
	case Array:
		b = append(b, '[')
		for i, e := range v.arr {
			if i > 0 {
				b = append(b, ',')
			}
			b = e.appendCanonical(b)
		}
		return append(b, ']')
	case Object:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b = append(b, '{')
		for i, k := range keys {
			if i > 0 {
				b = append(b, ',')
			}
			b = appendCanonicalString(b, k)
			b = append(b, ':')
			b = v.obj[k].appendCanonical(b)
		}
		return append(b, '}')
	default:
		return b
	}
}

func appendCanonicalNumber(b []byte, n float64) []byte {
	return append(b, []byte(formatFloat(n))...)
}

func formatFloat(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

func appendCanonicalString(b []byte, s string) []byte {
	b = append(b, '"')
	for _, r := range s {
		switch r {
		case '"':
			b = append(b, '\\', '"')
		case '\\':
			b = append(b, '\\', '\\')
		case '\n':
			b = append(b, '\\', 'n')
		case '\r':
			b = append(b, '\\', 'r')
		case '\t':
			b = append(b, '\\', 't')
		default:
			if r < 0x20 {
				b = append(b, []byte(fmt.Sprintf("\\u%04x", r))...)
			} else {
				b = append(b, []byte(string(r))...)
			}
		}
	}
	return append(b, '"')
}
