package graphcrdt

import (
	"github.com/PsychoLlama/graph-crdt/observer"
	"github.com/PsychoLlama/graph-crdt/uid"
)

// config holds the constructor-time dependencies Entity, Node and
// Graph consume as interfaces only (spec §1): a uid source and an
// event emitter. These are set via functional Option values rather
// than a constructor with a long positional parameter list.
type config struct {
	uidSource uid.Source
	emitter   observer.Emitter
}

func defaultConfig() config {
	return config{uidSource: uid.Google, emitter: observer.NewRegistry()}
}

// Option configures a new Entity, Node or Graph.
type Option func(*config)

// WithUIDSource overrides the default (github.com/google/uuid-backed)
// identifier source.
func WithUIDSource(source uid.Source) Option {
	return func(c *config) { c.uidSource = source }
}

// WithEmitter overrides the default observer registry, e.g. to share
// one Emitter across several Nodes or to discard events entirely with
// observer.Noop.
func WithEmitter(emitter observer.Emitter) Option {
	return func(c *config) { c.emitter = emitter }
}

func resolveConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
