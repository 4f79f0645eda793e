package graphcrdt

import (
	"errors"
	"sync"

	"github.com/PsychoLlama/graph-crdt/clock"
	"github.com/PsychoLlama/graph-crdt/internal/clone"
	"github.com/PsychoLlama/graph-crdt/resolver"
	"github.com/PsychoLlama/graph-crdt/value"
)

var errReservedField = errors.New(ObjectKey + " is reserved and cannot be set directly")

// Entity is the field container `E` from spec §3: a mapping of field
// name to metadata record, plus the reserved "@object" entry holding
// its own uid. It is the common base Node builds its merge semantics
// on top of.
//
// An Entity's zero value is not usable; construct one with NewEntity
// or SourceEntity.
type Entity struct {
	mu     sync.RWMutex
	object ObjectMeta
	fields map[string]FieldMeta
}

// NewEntity returns an Entity with the given uid, or a freshly
// generated one if id is empty (spec §4.2 "new(uid?)").
func NewEntity(id string, opts ...Option) *Entity {
	cfg := resolveConfig(opts)
	if id == "" {
		id = cfg.uidSource.NewUID()
	}
	return &Entity{object: ObjectMeta{UID: id}, fields: make(map[string]FieldMeta)}
}

// SourceEntity wraps a decoded NodeObject directly, assuming it is
// already shaped as the wire format describes (spec §4.2
// "source(object)"). Use decodeRawObject first to parse raw JSON
// bytes into the map this expects.
func SourceEntity(raw map[string]any) (*Entity, error) {
	return parseNodeObject(raw, "Entity.source")
}

// UID returns the entity's identifier, set at construction and never
// mutated.
func (e *Entity) UID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.object.UID
}

// Object returns the "@object" metadata record: the uid and any
// additional identifiers a host attached alongside it.
func (e *Entity) Object() ObjectMeta {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.object
}

// Meta returns the metadata record for field, or Absent if it has
// never been written. "@object" always reports Absent here -- use
// Object for the reserved record (spec §4.2 splits the overloaded
// "meta(field?)" into two methods).
func (e *Entity) Meta(field string) FieldMeta {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.metaLocked(field)
}

func (e *Entity) metaLocked(field string) FieldMeta {
	if field == ObjectKey {
		return Absent
	}
	if m, ok := e.fields[field]; ok {
		return m
	}
	return Absent
}

// Value returns the value of field, or the Null sentinel for unknown
// or reserved fields (spec §4.2).
func (e *Entity) Value(field string) value.Value {
	return e.Meta(field).Value
}

// State returns the Lamport state of field, or clock.Absent if it has
// never been written.
func (e *Entity) State(field string) clock.State {
	return e.Meta(field).State
}

// SetMetadata writes meta to field with state = state(field)+1; any
// State embedded in meta is discarded (spec §4.2). The stored copy
// never aliases the caller's.
func (e *Entity) SetMetadata(field string, meta FieldMeta) error {
	if field == ObjectKey {
		return newError(InvalidValue, "Entity.setMetadata", errReservedField)
	}

	cloned, err := cloneFieldMeta(meta)
	if err != nil {
		return newError(InvalidValue, "Entity.setMetadata", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	cloned.State = e.metaLocked(field).State.Next()
	e.fields[field] = cloned
	return nil
}

// Snapshot returns a plain field -> value mapping of every present,
// non-reserved field (spec §4.2). The returned map is safe for the
// caller to mutate; it shares no storage with e.
func (e *Entity) Snapshot() map[string]value.Value {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]value.Value, len(e.fields))
	for k, m := range e.fields {
		if m.State.Present() {
			out[k] = m.Value
		}
	}
	return out
}

// Fields calls fn once per present, non-reserved field. Iteration
// order is unspecified (spec §9).
func (e *Entity) Fields(fn func(field string, meta FieldMeta)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for k, m := range e.fields {
		if m.State.Present() {
			fn(k, m)
		}
	}
}

// Clone returns a deep copy of e sharing no storage with the
// original, used by property-based tests that need an independent
// replica to diverge from (spec §8 "commutativity", "associativity").
// Unlike SetMetadata/Overlap/Rebase/Delta, which clone one FieldMeta
// at a time as they build a result field-by-field, Clone copies the
// whole field map in a single pass with go-clone's Map helper instead
// of cloneFieldMeta.
func (e *Entity) Clone() (*Entity, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return &Entity{object: e.object, fields: clone.Map(e.fields)}, nil
}

// Overlap returns a new Entity containing exactly the fields present
// in both e and other, with metadata taken from the receiver (spec
// §4.2).
func (e *Entity) Overlap(other *Entity) (*Entity, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	result := &Entity{object: ObjectMeta{UID: e.object.UID}, fields: make(map[string]FieldMeta)}
	for k, m := range e.fields {
		if !m.State.Present() {
			continue
		}
		om, ok := other.fields[k]
		if !ok || !om.State.Present() {
			continue
		}
		cloned, err := cloneFieldMeta(m)
		if err != nil {
			return nil, newError(InvalidValue, "Entity.overlap", err)
		}
		result.fields[k] = cloned
	}
	return result, nil
}

// Rebase returns a new Entity: start from target, overlay the
// receiver, then for every field the receiver holds where
// target.state(k) >= self.state(k), bump that field's state to
// target.state(k)+1 (spec §4.2). Metadata objects are cloned, never
// aliased.
func (e *Entity) Rebase(target *Entity) (*Entity, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	target.mu.RLock()
	defer target.mu.RUnlock()

	result := &Entity{
		object: ObjectMeta{UID: e.object.UID},
		fields: make(map[string]FieldMeta, len(target.fields)+len(e.fields)),
	}
	for k, m := range target.fields {
		cloned, err := cloneFieldMeta(m)
		if err != nil {
			return nil, newError(InvalidValue, "Entity.rebase", err)
		}
		result.fields[k] = cloned
	}
	for k, m := range e.fields {
		cloned, err := cloneFieldMeta(m)
		if err != nil {
			return nil, newError(InvalidValue, "Entity.rebase", err)
		}
		result.fields[k] = cloned
	}
	for k, m := range e.fields {
		targetState := target.metaLocked(k).State
		if targetState >= m.State {
			result.fields[k] = result.fields[k].withState(targetState.Next())
		}
	}
	return result, nil
}

// Delta computes {update, history} for the receiver against update
// (spec §4.2). Neither operand is mutated; both returned Entities
// carry the receiver's uid and share no storage with either operand.
func (e *Entity) Delta(update *Entity) (upd, hist *Entity, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	update.mu.RLock()
	defer update.mu.RUnlock()
	return e.deltaLocked(update)
}

func (e *Entity) deltaLocked(update *Entity) (*Entity, *Entity, error) {
	upd := &Entity{object: ObjectMeta{UID: e.object.UID}, fields: make(map[string]FieldMeta)}
	hist := &Entity{object: ObjectMeta{UID: e.object.UID}, fields: make(map[string]FieldMeta)}

	for field, incoming := range update.fields {
		u := incoming.State
		c := e.metaLocked(field).State

		switch {
		case u > c:
			upd.fields[field] = incoming
			if c.Present() {
				hist.fields[field] = e.metaLocked(field)
			}
		case u < c:
			hist.fields[field] = incoming
		default:
			self := e.metaLocked(field)
			if !self.State.Present() && !u.Present() {
				continue
			}
			if selfWins := resolver.Resolve(self.Value, incoming.Value); !selfWins {
				upd.fields[field] = incoming
				hist.fields[field] = self
			}
		}
	}
	for _, fields := range []map[string]FieldMeta{upd.fields, hist.fields} {
		for k, m := range fields {
			cloned, err := cloneFieldMeta(m)
			if err != nil {
				return nil, nil, newError(InvalidValue, "Entity.delta", err)
			}
			fields[k] = cloned
		}
	}
	return upd, hist, nil
}

// cloneFieldMeta copies a FieldMeta record so the stored copy never
// aliases the caller's (spec §4.2 "Metadata objects are cloned, never
// aliased"). value.Value is immutable and holds only unexported
// fields, which copystructure (clone.Struct) leaves at their zero
// values, so the Value is kept as is and the Extras map is
// bulk-cloned with clone.Map.
func cloneFieldMeta(m FieldMeta) (FieldMeta, error) {
	m.Extras = clone.Map(m.Extras)
	return m, nil
}
