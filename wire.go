package graphcrdt

import (
	"encoding/json"
	"fmt"

	"github.com/PsychoLlama/graph-crdt/clock"
	"github.com/PsychoLlama/graph-crdt/value"
)

// ObjectKey is the one reserved field name in the wire format (spec
// §6): every NodeObject carries exactly one "@object" entry holding
// the entity's own identifiers, never a regular field.
const ObjectKey = "@object"

// ObjectMeta is the parsed shape of the "@object" entry: a uid plus
// whatever additional identifiers a host chooses to carry alongside
// it. It is never merged, iterated as a field, or returned by
// Entity.Value.
type ObjectMeta struct {
	UID    string
	Extras map[string]value.Value
}

func (m ObjectMeta) toWireMap() map[string]any {
	obj := make(map[string]any, 1+len(m.Extras))
	obj["uid"] = m.UID
	for k, v := range m.Extras {
		if k == "uid" {
			continue
		}
		obj[k] = v.ToAny()
	}
	return obj
}

// parseObjectMeta parses a decoded "@object" value (already run through
// encoding/json.Unmarshal into an any).
func parseObjectMeta(raw any, op string) (ObjectMeta, error) {
	objMap, ok := raw.(map[string]any)
	if !ok {
		return ObjectMeta{}, newError(MalformedWire, op, fmt.Errorf("%q must be an object", ObjectKey))
	}

	uidRaw, ok := objMap["uid"]
	if !ok {
		return ObjectMeta{}, newError(MalformedWire, op, fmt.Errorf("%q missing %q", ObjectKey, "uid"))
	}
	uidStr, ok := uidRaw.(string)
	if !ok {
		return ObjectMeta{}, newError(MalformedWire, op, fmt.Errorf("%q.uid must be a string", ObjectKey))
	}

	meta := ObjectMeta{UID: uidStr}
	if len(objMap) > 1 {
		extras := make(map[string]value.Value, len(objMap)-1)
		for k, v := range objMap {
			if k == "uid" {
				continue
			}
			val, err := value.From(v)
			if err != nil {
				return ObjectMeta{}, newError(InvalidValue, op, err)
			}
			extras[k] = val
		}
		meta.Extras = extras
	}
	return meta, nil
}

// parseFieldMeta parses a decoded FieldMeta value: `{"value": ...,
// "state": ..., <extras>: ...}`.
func parseFieldMeta(raw any, field, op string) (FieldMeta, error) {
	fieldMap, ok := raw.(map[string]any)
	if !ok {
		return FieldMeta{}, newError(MalformedWire, op, fmt.Errorf("field %q must be an object", field))
	}

	var meta FieldMeta
	if valRaw, ok := fieldMap["value"]; ok {
		v, err := value.From(valRaw)
		if err != nil {
			return FieldMeta{}, newError(InvalidValue, op, err)
		}
		meta.Value = v
	}

	if stateRaw, ok := fieldMap["state"]; ok {
		n, ok := toFloat(stateRaw)
		if !ok {
			return FieldMeta{}, newError(MalformedWire, op, fmt.Errorf("field %q: state must be numeric", field))
		}
		if n < 0 {
			return FieldMeta{}, newError(MalformedWire, op, fmt.Errorf("field %q: state must be non-negative", field))
		}
		// Fractional states are accepted on read but discouraged (§6);
		// truncate toward zero.
		meta.State = clock.State(uint64(n))
	}

	var extras map[string]value.Value
	for k, v := range fieldMap {
		if k == "value" || k == "state" {
			continue
		}
		val, err := value.From(v)
		if err != nil {
			return FieldMeta{}, newError(InvalidValue, op, err)
		}
		if extras == nil {
			extras = make(map[string]value.Value)
		}
		extras[k] = val
	}
	meta.Extras = extras

	return meta, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// parseNodeObject parses a decoded NodeObject: an "@object" entry plus
// any number of field entries. No validation beyond shape is performed
// (spec §4.2 "source(object) ... assumes wire-format").
func parseNodeObject(raw map[string]any, op string) (*Entity, error) {
	objRaw, ok := raw[ObjectKey]
	if !ok {
		return nil, newError(MalformedWire, op, fmt.Errorf("missing %q", ObjectKey))
	}
	objMeta, err := parseObjectMeta(objRaw, op)
	if err != nil {
		return nil, err
	}

	e := &Entity{object: objMeta, fields: make(map[string]FieldMeta, len(raw)-1)}
	for k, v := range raw {
		if k == ObjectKey {
			continue
		}
		meta, err := parseFieldMeta(v, k, op)
		if err != nil {
			return nil, err
		}
		e.fields[k] = meta
	}
	return e, nil
}

// wireObject builds the NodeObject representation of e: the reserved
// "@object" entry plus every field, each shaped per FieldMeta.toWireMap.
func (e *Entity) wireObject() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.wireObjectLocked()
}

func (e *Entity) wireObjectLocked() map[string]any {
	obj := make(map[string]any, len(e.fields)+1)
	obj[ObjectKey] = e.object.toWireMap()
	for k, m := range e.fields {
		obj[k] = m.toWireMap()
	}
	return obj
}

// MarshalJSON encodes e as a NodeObject.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wireObject())
}

// decodeRawObject decodes arbitrary JSON bytes into the loosely-typed
// map encoding/json produces, the shape parseNodeObject/parseGraphObject
// expect.
func decodeRawObject(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
