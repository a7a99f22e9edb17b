// Package fuzzy resolves free-text answers against a reference list of
// entities (organ names for the primary site question).
//
// Matching is containment-based: the normalized query must be a
// substring of the normalized label. There is no scoring. The first
// containing entity in list order wins, so the list order is the
// tie-break and callers must preserve it. This favours recall over
// precision: a short query such as "o" matches the first label
// containing an "o". That is a known limitation, not a bug.
package fuzzy

import (
	"strings"

	"github.com/roach88/formsync/internal/normalize"
)

// NoneID is stored in the id field when no entity matched. The raw
// user text goes into the name field alongside it.
const NoneID = "AUCUN"

// Entity is one reference item.
type Entity struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// Result is the outcome of a Match call.
type Result struct {
	// Matched is false when no entity contained the query.
	Matched bool

	// Entity is the winning entity. Zero when Matched is false.
	Entity Entity

	// Raw is the query exactly as typed.
	Raw string
}

// ID returns the value for the id field: the entity id, or NoneID.
func (r Result) ID() string {
	if r.Matched {
		return r.Entity.ID
	}
	return NoneID
}

// Name returns the value for the name field: the entity label, or the
// raw query when unmatched so the user's input is never lost.
func (r Result) Name() string {
	if r.Matched {
		return r.Entity.Label
	}
	return r.Raw
}

// Match returns the first entity whose normalized label contains the
// normalized query. A blank query never matches.
func Match(query string, entities []Entity) Result {
	needle := normalize.Normalize(strings.TrimSpace(query))
	if needle == "" {
		return Result{Raw: query}
	}

	for _, e := range entities {
		if strings.Contains(normalize.Normalize(e.Label), needle) {
			return Result{Matched: true, Entity: e, Raw: query}
		}
	}
	return Result{Raw: query}
}

// Suggest returns up to limit entities containing the query, in list
// order. It backs the autocompletion list shown while the user types.
// A limit <= 0 means no limit.
func Suggest(query string, entities []Entity, limit int) []Entity {
	needle := normalize.Normalize(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}

	var out []Entity
	for _, e := range entities {
		if !strings.Contains(normalize.Normalize(e.Label), needle) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
