// Package uid provides the identifier source consumed by Entity (spec
// §6 "Identifier generation"). The core never assumes a specific
// scheme: callers may supply any Source; Google is the default used
// when none is configured.
package uid

import "github.com/google/uuid"

// Source yields globally unique identifier strings. Implementations
// must never return the same value twice across the lifetime of a
// process.
type Source interface {
	NewUID() string
}

// Google is the default Source, backed by github.com/google/uuid's
// version 4 random UUIDs, the scheme used throughout the retrieved
// corpus (defradb, the REChain/DeCub modules, BeadsLog) for
// process-wide unique identifiers.
var Google Source = googleSource{}

type googleSource struct{}

func (googleSource) NewUID() string {
	return uuid.NewString()
}

// Static is a fixed-sequence Source useful in tests, where generated
// uids need to be deterministic and predictable.
type Static struct {
	ids []string
	pos int
}

// NewStatic returns a Source that yields ids in order, then panics if
// exhausted -- tests should size ids to the number of calls they
// expect.
func NewStatic(ids ...string) *Static {
	return &Static{ids: ids}
}

func (s *Static) NewUID() string {
	if s.pos >= len(s.ids) {
		panic("uid: Static source exhausted")
	}
	id := s.ids[s.pos]
	s.pos++
	return id
}
