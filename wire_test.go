package graphcrdt

import "testing"

func TestParseNodeObject_MissingObjectKeyIsMalformed(t *testing.T) {
	_, err := SourceEntity(map[string]any{"name": map[string]any{"value": "x", "state": 1.0}})
	if err == nil {
		t.Fatal("expected error for missing @object")
	}
	var gerr *Error
	if !asError(err, &gerr) || gerr.Kind != MalformedWire {
		t.Fatalf("expected MalformedWire, got %v", err)
	}
}

func TestParseNodeObject_MissingUIDIsMalformed(t *testing.T) {
	_, err := SourceEntity(map[string]any{ObjectKey: map[string]any{}})
	if err == nil {
		t.Fatal("expected error for missing uid")
	}
	var gerr *Error
	if !asError(err, &gerr) || gerr.Kind != MalformedWire {
		t.Fatalf("expected MalformedWire, got %v", err)
	}
}

func TestParseNodeObject_NonFiniteValueIsInvalidValue(t *testing.T) {
	_, err := SourceEntity(map[string]any{
		ObjectKey: map[string]any{"uid": "u1"},
		"x":       map[string]any{"value": mustFromAny(t), "state": 1.0},
	})
	if err == nil {
		t.Fatal("expected InvalidValue error")
	}
	var gerr *Error
	if !asError(err, &gerr) || gerr.Kind != InvalidValue {
		t.Fatalf("expected InvalidValue, got %v", err)
	}
}

func TestParseNodeObject_PreservesObjectExtras(t *testing.T) {
	e, err := SourceEntity(map[string]any{
		ObjectKey: map[string]any{"uid": "u1", "kind": "person"},
	})
	if err != nil {
		t.Fatalf("SourceEntity: %v", err)
	}
	if e.Object().UID != "u1" {
		t.Fatalf("expected uid u1, got %q", e.Object().UID)
	}
	kind, _ := e.Object().Extras["kind"].StringVal()
	if kind != "person" {
		t.Fatalf("expected extra kind=person, got %q", kind)
	}
}

func TestWireObject_RoundTripsThroughSource(t *testing.T) {
	e := NewEntity("u1")
	if err := e.SetMetadata("name", FieldMeta{Value: mustValue(t, "Ada")}); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}

	wire := e.wireObject()
	sourced, err := SourceEntity(wire)
	if err != nil {
		t.Fatalf("SourceEntity: %v", err)
	}
	if sourced.UID() != "u1" {
		t.Fatalf("expected uid u1, got %q", sourced.UID())
	}
	name, _ := sourced.Value("name").StringVal()
	if name != "Ada" {
		t.Fatalf("expected name Ada, got %q", name)
	}
	if sourced.State("name") != 1 {
		t.Fatalf("expected state 1, got %v", sourced.State("name"))
	}
}

// mustFromAny returns a value encoding/json would never itself produce
// (a float NaN via a Go-native map), used to exercise the InvalidValue
// rejection path for non-finite numbers reaching source.
func mustFromAny(t *testing.T) any {
	t.Helper()
	return nan()
}

func nan() float64 {
	var zero float64
	return zero / zero
}

// asError unwraps err looking for an *Error, mirroring errors.As
// without importing the errors package into the test for this one
// assertion helper.
func asError(err error, target **Error) bool {
	if e, ok := err.(*Error); ok {
		*target = e
		return true
	}
	return false
}
