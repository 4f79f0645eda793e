package graphcrdt

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/PsychoLlama/graph-crdt/observer"
)

// Graph is a keyed, insertion-ordered collection of Nodes (spec §4.4,
// §9 "Iteration order"). The ordering carries no semantic meaning and
// is not part of equality; it exists only so iteration is
// deterministic within a process. No ordered-map library appears
// anywhere in the retrieved corpus, so this is a small hand-rolled
// keys-slice-plus-map.
type Graph struct {
	mu      sync.RWMutex
	order   []string
	nodes   map[string]*Node
	emitter observer.Emitter
	opts    []Option
}

// NewGraph returns an empty Graph.
func NewGraph(opts ...Option) *Graph {
	cfg := resolveConfig(opts)
	return &Graph{
		nodes:   make(map[string]*Node),
		emitter: cfg.emitter,
		opts:    opts,
	}
}

// SourceGraph parses a decoded GraphObject: `{uid: NodeObject, ...}`.
func SourceGraph(raw map[string]any, opts ...Option) (*Graph, error) {
	g := NewGraph(opts...)
	for uid, v := range raw {
		nodeRaw, ok := v.(map[string]any)
		if !ok {
			return nil, newError(MalformedWire, "Graph.source", fmt.Errorf("node %q must be an object", uid))
		}
		node, err := SourceNode(nodeRaw, g.opts...)
		if err != nil {
			return nil, err
		}
		if node.UID() != uid {
			return nil, newError(MalformedWire, "Graph.source", fmt.Errorf("node key %q does not match @object.uid %q", uid, node.UID()))
		}
		g.insert(uid, node)
	}
	return g, nil
}

// DecodeGraph parses raw JSON bytes into a Graph, the composition of
// decodeRawObject and SourceGraph used for the §8 "round-trip"
// property (`Graph::source(JSON.parse(JSON.stringify(g)))`).
func DecodeGraph(data []byte, opts ...Option) (*Graph, error) {
	raw, err := decodeRawObject(data)
	if err != nil {
		return nil, newError(MalformedWire, "Graph.source", err)
	}
	return SourceGraph(raw, opts...)
}

func (g *Graph) insert(uid string, n *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[uid]; !exists {
		g.order = append(g.order, uid)
	}
	g.nodes[uid] = n
}

// lookup returns the Node stored at uid and whether it exists.
func (g *Graph) lookup(uid string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[uid]
	return n, ok
}

// New returns an empty Graph sharing g's configuration -- the hook
// Graph.Merge uses to build its two delta Graphs (spec §4.4 step 2
// "self.new()").
func (g *Graph) New() *Graph {
	return &Graph{nodes: make(map[string]*Node), emitter: g.emitter, opts: g.opts}
}

// Value returns the Node stored at uid, or nil if absent.
func (g *Graph) Value(uid string) *Node {
	n, _ := g.lookup(uid)
	return n
}

// Nodes returns the uids of every Node in insertion order, without
// copying the Nodes themselves (spec §4.4 "iteration... in insertion
// order"); use Value or Range to reach the Nodes it names.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// Len reports how many Nodes the Graph holds.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// Range calls fn for every (uid, Node) pair in insertion order. fn
// returning false stops iteration early. fn must not call Merge,
// Rebase or Overlap back on the same Graph.
func (g *Graph) Range(fn func(uid string, n *Node) bool) {
	g.mu.RLock()
	order := append([]string(nil), g.order...)
	nodes := make(map[string]*Node, len(g.nodes))
	for k, v := range g.nodes {
		nodes[k] = v
	}
	g.mu.RUnlock()

	for _, uid := range order {
		if !fn(uid, nodes[uid]) {
			return
		}
	}
}

// Snapshot returns a plain uid -> field-snapshot mapping, convenient
// for asserting against in tests and host code that wants the whole
// graph's data without touching Node internals.
func (g *Graph) Snapshot() map[string]map[string]any {
	out := make(map[string]map[string]any, g.Len())
	g.Range(func(uid string, n *Node) bool {
		fields := n.Snapshot()
		flat := make(map[string]any, len(fields))
		for k, v := range fields {
			flat[k] = v.ToAny()
		}
		out[uid] = flat
		return true
	})
	return out
}

// coerce normalizes incoming into a *Graph: itself if already one,
// otherwise source()d from a plain GraphObject-shaped map (spec §4.4
// step 1).
func (g *Graph) coerce(incoming any) (*Graph, error) {
	switch v := incoming.(type) {
	case *Graph:
		return v, nil
	case map[string]any:
		return SourceGraph(v, g.opts...)
	default:
		return nil, newError(MalformedWire, "Graph.merge", fmt.Errorf("unsupported merge operand %T", incoming))
	}
}

// Merge implements spec §4.4.
func (g *Graph) Merge(incoming any) (update, history *Graph, err error) {
	other, err := g.coerce(incoming)
	if err != nil {
		return nil, nil, err
	}

	update = g.New()
	history = g.New()

	var mergeErr error
	other.Range(func(uid string, n *Node) bool {
		target, ok := g.lookup(uid)
		if !ok {
			target = n.New()
			g.insert(uid, target)
		}

		updDelta, histDelta, err := target.Merge(n)
		if err != nil {
			mergeErr = err
			return false
		}

		update.insert(uid, updDelta)
		history.insert(uid, histDelta)
		return true
	})
	if mergeErr != nil {
		return nil, nil, mergeErr
	}

	g.emitter.Emit("update", update)
	g.emitter.Emit("history", history)

	return update, history, nil
}

// Rebase allocates a fresh Graph, merges target then self into it,
// then replaces every uid present in both with
// self.value(uid).rebase(target.value(uid)) (spec §4.4).
func (g *Graph) Rebase(target *Graph) (*Graph, error) {
	result := g.New()
	if _, _, err := result.Merge(target); err != nil {
		return nil, err
	}
	if _, _, err := result.Merge(g); err != nil {
		return nil, err
	}

	var rebaseErr error
	g.Range(func(uid string, self *Node) bool {
		targetNode, ok := target.lookup(uid)
		if !ok {
			return true
		}
		rebasedEntity, err := self.Entity.Rebase(&targetNode.Entity)
		if err != nil {
			rebaseErr = err
			return false
		}
		result.insert(uid, &Node{Entity: *rebasedEntity, emitter: result.emitter})
		return true
	})
	if rebaseErr != nil {
		return nil, rebaseErr
	}
	return result, nil
}

// Overlap allocates a fresh Graph; for every uid present in both g and
// target, merges in the overlap of the two Nodes. Nodes present in
// only one side are omitted (spec §4.4).
func (g *Graph) Overlap(target *Graph) (*Graph, error) {
	result := g.New()

	var overlapErr error
	g.Range(func(uid string, self *Node) bool {
		targetNode, ok := target.lookup(uid)
		if !ok {
			return true
		}
		overlapEntity, err := self.Entity.Overlap(&targetNode.Entity)
		if err != nil {
			overlapErr = err
			return false
		}

		single := result.New()
		single.insert(uid, &Node{Entity: *overlapEntity, emitter: single.emitter})
		if _, _, err := result.Merge(single); err != nil {
			overlapErr = err
			return false
		}
		return true
	})
	if overlapErr != nil {
		return nil, overlapErr
	}
	return result, nil
}

// MarshalJSON encodes g as a GraphObject: `{uid: NodeObject, ...}`.
// The raw internal mapping is returned verbatim (spec §4.4 "toJSON
// returns the raw internal mapping").
func (g *Graph) MarshalJSON() ([]byte, error) {
	out := make(map[string]*Node, g.Len())
	g.Range(func(uid string, n *Node) bool {
		out[uid] = n
		return true
	})
	return json.Marshal(out)
}
