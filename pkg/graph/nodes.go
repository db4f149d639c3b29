package graph

import "github.com/OFFIS-RIT/mt2n/pkg/common"

// NodeStore holds canonical nodes and the raw-id mapping shared by every
// source of a run.
type NodeStore struct {
	resolver *IdentityResolver
	nodes    []common.Node
	rawIDs   map[string]int
}

func newNodeStore(resolver *IdentityResolver) *NodeStore {
	return &NodeStore{
		resolver: resolver,
		rawIDs:   make(map[string]int),
	}
}

// Add commits one entity. When the resolver matches a stored node, incoming
// properties are merged without overwriting existing keys and the existing id
// is returned. Otherwise a new node with the next sequential id is created.
// The raw id is mapped to the resulting canonical id in both cases.
func (s *NodeStore) Add(rawID string, entityType int, props map[string]string) (id int, merged bool) {
	if existing, ok := s.resolver.Lookup(entityType, props); ok {
		node := &s.nodes[existing]
		for k, v := range props {
			if _, present := node.Properties[k]; !present {
				node.Properties[k] = v
			}
		}
		s.rawIDs[rawID] = existing
		return existing, true
	}

	id = len(s.nodes)
	properties := make(map[string]string, len(props))
	for k, v := range props {
		properties[k] = v
	}
	s.nodes = append(s.nodes, common.Node{
		ID:         id,
		EntityType: entityType,
		Properties: properties,
	})
	s.resolver.Register(entityType, properties, id)
	s.rawIDs[rawID] = id
	return id, false
}

// Resolve maps a raw source identifier to its canonical id.
func (s *NodeStore) Resolve(rawID string) (int, bool) {
	id, ok := s.rawIDs[rawID]
	return id, ok
}

func (s *NodeStore) Node(id int) (common.Node, bool) {
	if id < 0 || id >= len(s.nodes) {
		return common.Node{}, false
	}
	return s.nodes[id], true
}

func (s *NodeStore) Len() int {
	return len(s.nodes)
}

// Nodes returns a deep copy of the stored nodes ordered by id.
func (s *NodeStore) Nodes() []common.Node {
	out := make([]common.Node, len(s.nodes))
	for i, n := range s.nodes {
		props := make(map[string]string, len(n.Properties))
		for k, v := range n.Properties {
			props[k] = v
		}
		out[i] = common.Node{ID: n.ID, EntityType: n.EntityType, Properties: props}
	}
	return out
}
