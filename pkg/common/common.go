package common

// UntypedEntity is the entity type code of a node whose block carried no
// type assertion.
const UntypedEntity = -1

// Graph is the finished, read-only property graph produced by one ingestion
// run. It is the hand-off point between the builder and the exporters.
//
// A graph contains:
//   - Vertices: canonical nodes ordered by id
//   - Edges: directed edges in commit order, at most one per ordered pair
//   - EntityTypes / RelationshipTypes: code->name tables, index == code
type Graph struct {
	RunID             string   `json:"RunID,omitempty"`
	Vertices          []Node   `json:"Vertices"`
	Edges             []Edge   `json:"Edges"`
	EntityTypes       []string `json:"EntityTypes"`
	RelationshipTypes []string `json:"RelationshipTypes"`
}

// Node is a canonical entity. ID is assigned once at first creation and is
// never reused within a run.
type Node struct {
	ID         int               `json:"id"`
	EntityType int               `json:"entity_type"`
	Properties map[string]string `json:"properties"`
}

// Edge is a directed relationship between two canonical nodes.
type Edge struct {
	SourceID     int `json:"source_id"`
	TargetID     int `json:"target_id"`
	Relationship int `json:"relationship"`
}

// EntityTypeName returns the name for an entity type code, or "" when the
// code is unknown or UntypedEntity.
func (g *Graph) EntityTypeName(code int) string {
	if code < 0 || code >= len(g.EntityTypes) {
		return ""
	}
	return g.EntityTypes[code]
}

// RelationshipName returns the name for a relationship type code.
func (g *Graph) RelationshipName(code int) string {
	if code < 0 || code >= len(g.RelationshipTypes) {
		return ""
	}
	return g.RelationshipTypes[code]
}
