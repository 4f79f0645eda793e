package value

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFrom_Primitives(t *testing.T) {
	cases := []struct {
		name string
		in   any
		kind Kind
	}{
		{"nil", nil, Null},
		{"bool", true, Bool},
		{"float", 1.5, Number},
		{"int", 7, Number},
		{"string", "hi", String},
		{"slice", []any{1, 2}, Array},
		{"map", map[string]any{"a": 1}, Object},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, err := From(c.in)
			if err != nil {
				t.Fatalf("From(%v) error: %v", c.in, err)
			}
			if v.Kind() != c.kind {
				t.Fatalf("From(%v).Kind() = %v, want %v", c.in, v.Kind(), c.kind)
			}
		})
	}
}

func TestFrom_RejectsNonFinite(t *testing.T) {
	for _, n := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := From(n); err == nil {
			t.Fatalf("From(%v) expected error, got nil", n)
		}
	}
}

func TestFrom_RejectsCircularReference(t *testing.T) {
	m := map[string]any{}
	m["self"] = m

	if _, err := From(m); err == nil {
		t.Fatal("From(circular map) expected error, got nil")
	}

	s := make([]any, 1)
	s[0] = s
	if _, err := From(s); err == nil {
		t.Fatal("From(circular slice) expected error, got nil")
	}
}

func TestValue_Equal(t *testing.T) {
	a, _ := From(map[string]any{"x": 1.0, "y": []any{"a", "b"}})
	b, _ := From(map[string]any{"y": []any{"a", "b"}, "x": 1.0})
	c, _ := From(map[string]any{"x": 1.0, "y": []any{"a", "c"}})

	if !a.Equal(b) {
		t.Fatal("expected a == b regardless of construction order")
	}
	if a.Equal(c) {
		t.Fatal("expected a != c")
	}
}

func TestCanonical_SortsKeysAndIsStable(t *testing.T) {
	a, _ := From(map[string]any{"b": 1, "a": 2})
	b, _ := From(map[string]any{"a": 2, "b": 1})

	if a.Canonical() != b.Canonical() {
		t.Fatalf("canonical forms differ: %q vs %q", a.Canonical(), b.Canonical())
	}

	if a.Canonical() != `{"a":2,"b":1}` {
		t.Fatalf("unexpected canonical form: %q", a.Canonical())
	}
}

func TestCanonical_Ordering(t *testing.T) {
	lo, _ := From("apple")
	hi, _ := From("banana")

	if lo.Canonical() >= hi.Canonical() {
		t.Fatalf("expected %q < %q", lo.Canonical(), hi.Canonical())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	v, _ := From(map[string]any{"n": 3.0, "s": "hi", "a": []any{1.0, 2.0}, "nested": map[string]any{"ok": true}})

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Value
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !v.Equal(decoded) {
		t.Fatalf("round trip mismatch: %v vs %v", v, decoded)
	}
}

func TestToAny_NestedShapes(t *testing.T) {
	v, _ := From(map[string]any{"list": []any{1.0, "two", false}})
	back := v.ToAny().(map[string]any)
	list := back["list"].([]any)
	if len(list) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(list))
	}
}
