// Package resolver implements the ConflictResolver described in spec
// §4.1: a total, antisymmetric, deterministic tie-break over two field
// values whose Lamport states are equal. Neither writer strictly
// precedes the other in that case, so every replica must pick the same
// winner without coordinating.
//
// Some LWW resolvers break ties by comparing a second, finer clock
// (e.g. wall time); this resolver never sees a clock at all — the
// caller (Entity.delta) has already handled the states-differ cases,
// so by the time Resolve runs the only information left to compare is
// the values themselves.
package resolver

import "github.com/PsychoLlama/graph-crdt/value"

// Resolve implements spec §4.1's six ordered rules and reports whether
// a wins over b. The relation is total and antisymmetric by
// construction: every rule is either an equality, a lexicographic
// string comparison, or a type predicate, all of which commute to
// "pick a" under tie (a == b) and give the same answer for
// Resolve(a, b) and the negation of Resolve(b, a) in every genuine-tie
// case.
func Resolve(a, b value.Value) bool {
	// Rule 1: structural equality. Neither is preferred; return a.
	if a.Equal(b) {
		return true
	}

	aObj := a.IsObjectLike()
	bObj := b.IsObjectLike()

	switch {
	case aObj && bObj:
		// Rule 2: object vs object -- compare canonical forms, tie -> a.
		ca, cb := a.Canonical(), b.Canonical()
		if ca == cb {
			return true
		}
		return ca > cb
	case aObj && !bObj:
		// Rule 3: object beats non-object.
		return true
	case !aObj && bObj:
		return false
	}

	// Rule 4/5: scalar vs scalar (or array vs array/scalar, treated the
	// same way since arrays are not "object vs object" per rule 2's
	// wording, only plain JSON objects and edge references are).
	//
	// Comparison uses the bare text form, not the quoted JSON encoding:
	// rule 5 only makes sense ("numeric 5 beats string \"5\"") if a
	// number and the string holding its digits compare as the same
	// text before the type tiebreak runs.
	ta, tb := textForm(a), textForm(b)
	if ta != tb {
		return ta > tb
	}

	// Rule 5: identical text form, different runtime types
	// (e.g. numeric 5 vs string "5") -- the non-string side wins.
	if a.Kind() != b.Kind() {
		if a.Kind() == value.String {
			return false
		}
		if b.Kind() == value.String {
			return true
		}
	}

	// Rule 6: otherwise, a wins.
	return true
}

// textForm is the bare (unquoted) textual representation of a scalar
// value used for rule 4/5 comparisons. Composite values that reach
// this point (arrays; objects never do, they are handled by rule 2/3)
// fall back to the fully quoted canonical form since they have no
// natural bare representation.
func textForm(v value.Value) string {
	switch v.Kind() {
	case value.Null:
		return "null"
	case value.Bool:
		b, _ := v.Bool()
		if b {
			return "true"
		}
		return "false"
	case value.Number:
		return v.Canonical()
	case value.String:
		s, _ := v.StringVal()
		return s
	default:
		return v.Canonical()
	}
}
