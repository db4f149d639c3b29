package export

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/mt2n/pkg/common"
)

// WriteSummary writes a human readable listing: every node with its type and
// properties, then the outgoing edges of each source node.
func WriteSummary(w io.Writer, g *common.Graph) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Nodes: %d\n", len(g.Vertices))
	for _, n := range g.Vertices {
		typeName := g.EntityTypeName(n.EntityType)
		if typeName == "" {
			typeName = "-"
		}
		fmt.Fprintf(bw, "Node %d : %s {%s}\n", n.ID, typeName, formatProperties(n.Properties))
	}

	var sources []int
	targets := make(map[int][]string)
	for _, e := range g.Edges {
		if _, ok := targets[e.SourceID]; !ok {
			sources = append(sources, e.SourceID)
		}
		targets[e.SourceID] = append(targets[e.SourceID], fmt.Sprintf("%d (%s)", e.TargetID, g.RelationshipName(e.Relationship)))
	}

	fmt.Fprintf(bw, "Edges: %d\n", len(g.Edges))
	for _, source := range sources {
		fmt.Fprintf(bw, "Edge %d -> %s\n", source, strings.Join(targets[source], ", "))
	}
	return bw.Flush()
}

func formatProperties(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %q", k, props[k])
	}
	return strings.Join(parts, ", ")
}
