package export

import (
	"encoding/csv"
	"io"
	"slices"
	"strconv"

	"github.com/OFFIS-RIT/mt2n/pkg/common"
)

const (
	polygonEntity   = "0"
	polygonProperty = "3"
	weight          = "1"
)

var (
	gephiNodeHeader = []string{"Id", "Label", "Polygon"}
	gephiEdgeHeader = []string{"Source", "Target", "Type", "Label", "Weight"}
)

// WriteGephi writes the node and edge tables Gephi imports. Entities are
// labelled with their type name and connected by directed edges labelled
// with the relationship name.
//
// With includeProperties every property becomes an extra node labelled with
// the value, linked to its entity by an undirected edge labelled with the key.
// Extra node ids continue after the last entity id and keys are visited in
// sorted order.
func WriteGephi(nodes, edges io.Writer, g *common.Graph, includeProperties bool) error {
	nw := csv.NewWriter(nodes)
	ew := csv.NewWriter(edges)

	if err := nw.Write(gephiNodeHeader); err != nil {
		return err
	}
	if err := ew.Write(gephiEdgeHeader); err != nil {
		return err
	}

	for _, e := range g.Edges {
		row := []string{
			strconv.Itoa(e.SourceID),
			strconv.Itoa(e.TargetID),
			"Directed",
			g.RelationshipName(e.Relationship),
			weight,
		}
		if err := ew.Write(row); err != nil {
			return err
		}
	}

	next := len(g.Vertices)
	for _, n := range g.Vertices {
		id := strconv.Itoa(n.ID)
		if err := nw.Write([]string{id, g.EntityTypeName(n.EntityType), polygonEntity}); err != nil {
			return err
		}
		if !includeProperties {
			continue
		}

		keys := make([]string, 0, len(n.Properties))
		for k := range n.Properties {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		for _, k := range keys {
			extra := strconv.Itoa(next)
			next++
			if err := nw.Write([]string{extra, n.Properties[k], polygonProperty}); err != nil {
				return err
			}
			if err := ew.Write([]string{id, extra, "Undirected", k, weight}); err != nil {
				return err
			}
		}
	}

	nw.Flush()
	if err := nw.Error(); err != nil {
		return err
	}
	ew.Flush()
	return ew.Error()
}
