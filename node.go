package graphcrdt

import (
	"fmt"

	"github.com/PsychoLlama/graph-crdt/internal/clone"
	"github.com/PsychoLlama/graph-crdt/observer"
	"github.com/PsychoLlama/graph-crdt/value"
)

// Node is an Entity with a concrete merge operation obeying the CRDT
// convergence laws (spec §4.3). Each Node holds an Emitter, which may
// be shared with other Nodes; observer events fire synchronously, on
// the goroutine that called Merge.
type Node struct {
	Entity
	emitter observer.Emitter
}

// NewNode returns an empty Node with the given uid, or a freshly
// generated one if id is empty.
func NewNode(id string, opts ...Option) *Node {
	cfg := resolveConfig(opts)
	if id == "" {
		id = cfg.uidSource.NewUID()
	}
	return &Node{
		Entity:  Entity{object: ObjectMeta{UID: id}, fields: make(map[string]FieldMeta)},
		emitter: cfg.emitter,
	}
}

// SourceNode wraps a decoded NodeObject directly, assuming it is
// already wire-shaped (spec §4.3 "Static source(object)").
func SourceNode(raw map[string]any, opts ...Option) (*Node, error) {
	e, err := parseNodeObject(raw, "Node.source")
	if err != nil {
		return nil, err
	}
	cfg := resolveConfig(opts)
	return &Node{Entity: *e, emitter: cfg.emitter}, nil
}

// NodeFrom creates a Node whose fields are initialized with state = 1,
// the minimum present state (spec §4.3 "Static from(object)").
func NodeFrom(id string, fields map[string]any, opts ...Option) (*Node, error) {
	n := NewNode(id, opts...)

	cloned, err := clone.JSON(fields)
	if err != nil {
		return nil, newError(InvalidValue, "Node.from", err)
	}
	clonedMap, _ := cloned.(map[string]any)

	for field, raw := range clonedMap {
		val, err := value.From(raw)
		if err != nil {
			return nil, newError(InvalidValue, "Node.from", err)
		}
		n.fields[field] = FieldMeta{Value: val, State: 1}
	}
	return n, nil
}

// New returns an empty Node carrying the same uid as n (spec §4.3),
// sharing n's emitter.
func (n *Node) New() *Node {
	return &Node{
		Entity:  Entity{object: ObjectMeta{UID: n.UID()}, fields: make(map[string]FieldMeta)},
		emitter: n.emitter,
	}
}

// Clone returns an independent deep copy of n, including its emitter
// reference (events still reach the same listeners).
func (n *Node) Clone() (*Node, error) {
	e, err := n.Entity.Clone()
	if err != nil {
		return nil, err
	}
	return &Node{Entity: *e, emitter: n.emitter}, nil
}

// Merge implements spec §4.3. incoming may be another *Node (what
// Graph passes), a bare *Entity, or a plain map[string]any
// representing an in-process local write. It returns the {update,
// history} delta Nodes and emits update/history/conflict events to
// n's Emitter in the order spec §5 requires.
func (n *Node) Merge(incoming any) (update, history *Node, err error) {
	n.Entity.mu.Lock()
	defer n.Entity.mu.Unlock()

	var incomingEntity *Entity
	switch v := incoming.(type) {
	case *Node:
		incomingEntity = &v.Entity
	case *Entity:
		incomingEntity = v
	case map[string]any:
		incomingEntity, err = n.synthesizeWriteLocked(v)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, newError(MalformedWire, "Node.merge", fmt.Errorf("unsupported merge operand %T", incoming))
	}

	if incomingEntity != &n.Entity {
		incomingEntity.mu.RLock()
		defer incomingEntity.mu.RUnlock()
	}

	updEntity, histEntity, err := n.Entity.deltaLocked(incomingEntity)
	if err != nil {
		return nil, nil, err
	}

	for field, meta := range updEntity.fields {
		if cur := n.Entity.metaLocked(field); cur.State.Present() && cur.State == meta.State {
			n.emitter.Emit("conflict", meta, cur)
		}
		n.Entity.fields[field] = meta
	}

	updNode := &Node{Entity: *updEntity, emitter: n.emitter}
	histNode := &Node{Entity: *histEntity, emitter: n.emitter}

	if len(histEntity.fields) > 0 {
		n.emitter.Emit("history", histNode)
	}
	if len(updEntity.fields) > 0 {
		n.emitter.Emit("update", updNode)
	}

	return updNode, histNode, nil
}

// synthesizeWriteLocked implements the in-process write path (spec
// §4.3 step 1): every field in fields gets state = self.state(field)+1
// so a local write always advances its own clock. fields is
// deep-cloned first so the host's map is never aliased by the
// library, mirroring the "incoming must not be mutated" policy in the
// other direction.
func (n *Node) synthesizeWriteLocked(fields map[string]any) (*Entity, error) {
	cloned, err := clone.JSON(fields)
	if err != nil {
		return nil, newError(InvalidValue, "Node.merge", err)
	}
	clonedMap, _ := cloned.(map[string]any)

	e := &Entity{
		object: ObjectMeta{UID: n.Entity.object.UID},
		fields: make(map[string]FieldMeta, len(clonedMap)),
	}
	for field, raw := range clonedMap {
		val, err := value.From(raw)
		if err != nil {
			return nil, newError(InvalidValue, "Node.merge", err)
		}
		e.fields[field] = FieldMeta{Value: val, State: n.Entity.metaLocked(field).State.Next()}
	}
	return e, nil
}
