// Package oval turns the unordered face-oval edge set of a landmark model
// into a closed traversal order usable as a polygon outline.
package oval

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMalformedTopology is returned when an edge set does not form exactly
// one simple cycle.
var ErrMalformedTopology = errors.New("malformed oval topology")

// Edge connects two landmark indices.
type Edge struct {
	From, To int
}

// Reversed returns e with its endpoints swapped.
func (e Edge) Reversed() Edge {
	return Edge{From: e.To, To: e.From}
}

// Order reorders edges into a closed chain: for every i, order[i].To equals
// order[i+1].From, and the last edge ends where the first begins. Endpoints
// may be swapped; the set of undirected edges is preserved.
//
// The walk starts at the smallest edge in canonical form, oriented from its
// lower endpoint, so the result depends neither on the order edges are listed
// in nor on their orientation.
func Order(edges []Edge) ([]Edge, error) {
	if len(edges) < 3 {
		return nil, fmt.Errorf("%w: need at least 3 edges, got %d", ErrMalformedTopology, len(edges))
	}

	// node -> indices of incident edges
	adj := make(map[int][]int, len(edges))
	seen := make(map[Edge]bool, len(edges))
	for i, e := range edges {
		if e.From == e.To {
			return nil, fmt.Errorf("%w: self loop at landmark %d", ErrMalformedTopology, e.From)
		}
		key := canonical(e)
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate edge %d-%d", ErrMalformedTopology, key.From, key.To)
		}
		seen[key] = true
		adj[e.From] = append(adj[e.From], i)
		adj[e.To] = append(adj[e.To], i)
	}
	for node, inc := range adj {
		if len(inc) != 2 {
			return nil, fmt.Errorf("%w: landmark %d has degree %d", ErrMalformedTopology, node, len(inc))
		}
	}

	start := 0
	for i, e := range edges {
		if less(canonical(e), canonical(edges[start])) {
			start = i
		}
	}

	used := make([]bool, len(edges))
	order := make([]Edge, 0, len(edges))
	cur := canonical(edges[start])
	used[start] = true
	order = append(order, cur)

	for len(order) < len(edges) {
		next := -1
		for _, i := range adj[cur.To] {
			if !used[i] {
				next = i
				break
			}
		}
		if next < 0 {
			// back at the start before visiting every edge: more than one cycle
			return nil, fmt.Errorf("%w: chain closed after %d of %d edges", ErrMalformedTopology, len(order), len(edges))
		}
		e := edges[next]
		if e.From != cur.To {
			e = e.Reversed()
		}
		used[next] = true
		order = append(order, e)
		cur = e
	}

	if err := Validate(order); err != nil {
		return nil, err
	}
	return order, nil
}

// Validate checks that order is a continuous, closed chain.
func Validate(order []Edge) error {
	if len(order) < 3 {
		return fmt.Errorf("%w: need at least 3 edges, got %d", ErrMalformedTopology, len(order))
	}
	for i := 0; i < len(order)-1; i++ {
		if order[i].To != order[i+1].From {
			return fmt.Errorf("%w: edge %d ends at %d but edge %d starts at %d",
				ErrMalformedTopology, i, order[i].To, i+1, order[i+1].From)
		}
	}
	if last := order[len(order)-1]; last.To != order[0].From {
		return fmt.Errorf("%w: chain is open (%d != %d)", ErrMalformedTopology, last.To, order[0].From)
	}
	return nil
}

// Vertices returns the landmark indices visited by a traversal order, one per
// edge, starting at order[0].From.
func Vertices(order []Edge) []int {
	v := make([]int, len(order))
	for i, e := range order {
		v[i] = e.From
	}
	return v
}

// Canonical returns the edge set sorted with each edge's smaller endpoint
// first. Two edge sets describe the same topology iff their canonical forms
// are equal.
func Canonical(edges []Edge) []Edge {
	out := make([]Edge, len(edges))
	for i, e := range edges {
		out[i] = canonical(e)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func canonical(e Edge) Edge {
	if e.From > e.To {
		return e.Reversed()
	}
	return e
}

func less(a, b Edge) bool {
	if a.From != b.From {
		return a.From < b.From
	}
	return a.To < b.To
}
