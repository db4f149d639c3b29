package graph

import "github.com/OFFIS-RIT/mt2n/pkg/common"

type edgeKey struct {
	source int
	target int
}

// EdgeStore keeps at most one edge per ordered (source, target) pair. The
// first relationship committed for a pair wins.
type EdgeStore struct {
	nodes     *NodeStore
	edges     []common.Edge
	adjacency map[int][]int
	pairs     map[edgeKey]struct{}
}

func newEdgeStore(nodes *NodeStore) *EdgeStore {
	return &EdgeStore{
		nodes:     nodes,
		adjacency: make(map[int][]int),
		pairs:     make(map[edgeKey]struct{}),
	}
}

// Add resolves both raw ids and records the edge unless the pair already has
// one. An unresolvable endpoint returns a *ReferentialIntegrityError without
// File and Line set; the caller fills them in.
func (s *EdgeStore) Add(sourceRawID, targetRawID string, relationship int) (bool, error) {
	source, sourceOK := s.nodes.Resolve(sourceRawID)
	target, targetOK := s.nodes.Resolve(targetRawID)
	if !sourceOK || !targetOK {
		var missing []string
		if !sourceOK {
			missing = append(missing, sourceRawID)
		}
		if !targetOK {
			missing = append(missing, targetRawID)
		}
		return false, &ReferentialIntegrityError{
			SourceRawID: sourceRawID,
			TargetRawID: targetRawID,
			Missing:     missing,
		}
	}
	return s.AddResolved(source, target, relationship), nil
}

// AddResolved records an edge between canonical ids. It reports whether the
// edge was new.
func (s *EdgeStore) AddResolved(source, target, relationship int) bool {
	key := edgeKey{source: source, target: target}
	if _, ok := s.pairs[key]; ok {
		return false
	}
	s.pairs[key] = struct{}{}
	s.adjacency[source] = append(s.adjacency[source], target)
	s.edges = append(s.edges, common.Edge{
		SourceID:     source,
		TargetID:     target,
		Relationship: relationship,
	})
	return true
}

func (s *EdgeStore) Has(source, target int) bool {
	_, ok := s.pairs[edgeKey{source: source, target: target}]
	return ok
}

// Targets returns the targets of source in insertion order.
func (s *EdgeStore) Targets(source int) []int {
	out := make([]int, len(s.adjacency[source]))
	copy(out, s.adjacency[source])
	return out
}

func (s *EdgeStore) Len() int {
	return len(s.edges)
}

// Edges returns a copy of the edges in insertion order.
func (s *EdgeStore) Edges() []common.Edge {
	out := make([]common.Edge, len(s.edges))
	copy(out, s.edges)
	return out
}
