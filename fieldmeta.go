package graphcrdt

import (
	"encoding/json"
	"fmt"

	"github.com/PsychoLlama/graph-crdt/clock"
	"github.com/PsychoLlama/graph-crdt/value"
)

// FieldMeta is the metadata record `M` from spec §3: a value, its
// Lamport state, and opaque "extras" (linked-list pointers,
// aggregation flags, or anything else a host attaches) that merge
// treats as part of the metadata, never as keys to compare.
//
// FieldMeta is a value type and is never mutated in place once
// constructed -- every operation that would change a field allocates
// a new FieldMeta, matching spec §5's "operations that would change a
// field allocate a new metadata record."
type FieldMeta struct {
	Value  value.Value
	State  clock.State
	Extras map[string]value.Value
}

// Absent is the sentinel metadata record returned for unknown or
// reserved fields.
var Absent = FieldMeta{State: clock.Absent}

// IsAbsent reports whether m represents a field that has never been
// written (spec §3: "absence is semantically state(k) = 0").
func (m FieldMeta) IsAbsent() bool {
	return !m.State.Present()
}

// withState returns a copy of m with State replaced, leaving Value and
// Extras untouched.
func (m FieldMeta) withState(s clock.State) FieldMeta {
	m.State = s
	return m
}

// toWireMap builds the flat FieldMeta wire object from spec §6:
// `value`, `state`, and every extra as a sibling key, not nested under
// an "extras" object.
func (m FieldMeta) toWireMap() map[string]any {
	obj := make(map[string]any, 2+len(m.Extras))
	obj["value"] = m.Value.ToAny()
	obj["state"] = uint64(m.State)
	for k, v := range m.Extras {
		if k == "value" || k == "state" {
			continue
		}
		obj[k] = v.ToAny()
	}
	return obj
}

// MarshalJSON encodes m as the flat FieldMeta wire object.
func (m FieldMeta) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.toWireMap())
}

// UnmarshalJSON decodes the flat FieldMeta wire object, collecting any
// key other than "value"/"state" into Extras.
func (m *FieldMeta) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("graphcrdt: malformed field metadata: %w", err)
	}

	var val value.Value
	if rawValue, ok := raw["value"]; ok {
		if err := json.Unmarshal(rawValue, &val); err != nil {
			return fmt.Errorf("graphcrdt: malformed field value: %w", err)
		}
	}

	var state float64
	if rawState, ok := raw["state"]; ok {
		if err := json.Unmarshal(rawState, &state); err != nil {
			return fmt.Errorf("graphcrdt: malformed field state: %w", err)
		}
	}

	extras := make(map[string]value.Value)
	for k, rawExtra := range raw {
		if k == "value" || k == "state" {
			continue
		}
		var extra value.Value
		if err := json.Unmarshal(rawExtra, &extra); err != nil {
			return fmt.Errorf("graphcrdt: malformed field extra %q: %w", k, err)
		}
		extras[k] = extra
	}
	if len(extras) == 0 {
		extras = nil
	}

	m.Value = val
	// Fractional states round-trip on read (spec §6: "discouraged" but
	// accepted) by truncating toward zero.
	m.State = clock.State(uint64(state))
	m.Extras = extras
	return nil
}
