package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/OFFIS-RIT/mt2n/pkg/common"
)

// WriteJSON writes the graph document indented by four spaces. Non-ASCII
// property values are written verbatim.
func WriteJSON(w io.Writer, g *common.Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return enc.Encode(g)
}

// ReadJSON decodes a graph document written by WriteJSON and checks that node
// ids are dense and every edge endpoint exists.
func ReadJSON(r io.Reader) (*common.Graph, error) {
	var g common.Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}

	for i, n := range g.Vertices {
		if n.ID != i {
			return nil, fmt.Errorf("vertex at position %d has id %d", i, n.ID)
		}
		if n.EntityType != common.UntypedEntity && g.EntityTypeName(n.EntityType) == "" {
			return nil, fmt.Errorf("vertex %d has unknown entity type %d", n.ID, n.EntityType)
		}
	}
	for _, e := range g.Edges {
		if e.SourceID < 0 || e.SourceID >= len(g.Vertices) || e.TargetID < 0 || e.TargetID >= len(g.Vertices) {
			return nil, fmt.Errorf("edge %d -> %d references a missing vertex", e.SourceID, e.TargetID)
		}
		if g.RelationshipName(e.Relationship) == "" {
			return nil, fmt.Errorf("edge %d -> %d has unknown relationship %d", e.SourceID, e.TargetID, e.Relationship)
		}
	}
	return &g, nil
}
