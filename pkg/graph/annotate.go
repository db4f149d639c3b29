package graph

import (
	"fmt"

	"github.com/OFFIS-RIT/mt2n/pkg/logger"
	"github.com/OFFIS-RIT/mt2n/pkg/ontology"
)

const (
	OntologyEntityType      = "PublicOnto"
	SubclassOfRelationship  = "SubclassOf"
	OntologyMappingRelation = "PublicOntoMapping"

	OntologyLabelProperty     = "go_name"
	OntologyNamespaceProperty = "obo_namespace"

	DefaultAccessionProperty = "go_accession"
)

// AnnotateStats summarises one Annotate call.
type AnnotateStats struct {
	Classes        int
	SubclassEdges  int
	Mappings       int
	SkippedParents int
}

// Annotate adds the ontology classes as PublicOnto nodes, links them with
// SubclassOf edges and links every data node whose accessionProperty names a
// harvested class to that class with a PublicOntoMapping edge.
//
// Class nodes use accessionProperty as their identifier, so annotating twice
// with the same ontology merges instead of duplicating. Accessions are
// compared in normalized form, so a PublicOnto node ingested with
// "GO:0009908" merges with the class GO_0009908. Superclasses that are
// not part of the ontology are skipped rather than created empty.
func (b *Builder) Annotate(o *ontology.Ontology, accessionProperty string) (AnnotateStats, error) {
	var stats AnnotateStats
	if err := b.usable(); err != nil {
		return stats, err
	}
	if accessionProperty == "" {
		accessionProperty = DefaultAccessionProperty
	}

	ontoType := b.types.InternEntityType(OntologyEntityType)
	if prop, ok := b.resolver.identifiers[OntologyEntityType]; ok && prop != accessionProperty {
		return stats, b.fail(&ConfigurationError{
			Key:    "identifiers",
			Reason: fmt.Sprintf("%s is identified by %q, annotation uses %q", OntologyEntityType, prop, accessionProperty),
		})
	}
	b.resolver.identifiers[OntologyEntityType] = accessionProperty

	// data nodes are collected before the class nodes are added
	type annotated struct {
		id        int
		accession string
	}
	var candidates []annotated
	for _, n := range b.nodes.nodes {
		if n.EntityType == ontoType {
			// ingested PublicOnto nodes may spell the accession as a CURIE
			if acc, ok := n.Properties[accessionProperty]; ok && acc != "" {
				b.resolver.Alias(ontoType, ontology.NormalizeAccession(acc), n.ID)
			}
			continue
		}
		if acc, ok := n.Properties[accessionProperty]; ok && acc != "" {
			candidates = append(candidates, annotated{id: n.ID, accession: ontology.NormalizeAccession(acc)})
		}
	}

	classIDs := make(map[string]int, o.Len())
	for _, c := range o.Classes {
		props := map[string]string{accessionProperty: ontology.NormalizeAccession(c.Accession)}
		if c.Label != "" {
			props[OntologyLabelProperty] = c.Label
		}
		if c.Namespace != "" {
			props[OntologyNamespaceProperty] = c.Namespace
		}
		id := b.commitEntity("onto:"+c.Accession, ontoType, props)
		classIDs[ontology.NormalizeAccession(c.Accession)] = id
		stats.Classes++
	}

	subclassOf := b.types.InternRelationshipType(SubclassOfRelationship)
	for _, c := range o.Classes {
		child := classIDs[ontology.NormalizeAccession(c.Accession)]
		for _, parent := range c.Parents {
			pid, ok := classIDs[ontology.NormalizeAccession(parent)]
			if !ok {
				stats.SkippedParents++
				continue
			}
			added := b.edges.AddResolved(child, pid, subclassOf)
			b.countEdge(added)
			if added {
				stats.SubclassEdges++
			}
		}
	}

	mapping := b.types.InternRelationshipType(OntologyMappingRelation)
	for _, cand := range candidates {
		cid, ok := classIDs[cand.accession]
		if !ok {
			continue
		}
		added := b.edges.AddResolved(cand.id, cid, mapping)
		b.countEdge(added)
		if added {
			stats.Mappings++
		}
	}

	logger.Info(
		"[Ontology] Annotated",
		"classes", stats.Classes,
		"subclass_edges", stats.SubclassEdges,
		"mappings", stats.Mappings,
		"skipped_parents", stats.SkippedParents,
	)
	return stats, nil
}
