// Package ontology harvests class hierarchies from OWL documents serialized
// as RDF/XML, such as the Gene Ontology release files.
package ontology

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/knakk/rdf"

	"github.com/OFFIS-RIT/mt2n/pkg/logger"
)

const (
	rdfType           = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	rdfsLabel         = "http://www.w3.org/2000/01/rdf-schema#label"
	rdfsSubClassOf    = "http://www.w3.org/2000/01/rdf-schema#subClassOf"
	owlClass          = "http://www.w3.org/2002/07/owl#Class"
	oboInOwlNamespace = "http://www.geneontology.org/formats/oboInOwl#hasOBONamespace"
)

// Class is one owl:Class with its direct superclasses.
type Class struct {
	Accession string
	IRI       string
	Label     string
	Namespace string
	Parents   []string
}

// Ontology is the ordered set of harvested classes.
type Ontology struct {
	Classes []Class
}

func (o *Ontology) Len() int {
	return len(o.Classes)
}

// Accession returns the last path segment of a class IRI, e.g.
// "http://purl.obolibrary.org/obo/GO_0008150" -> "GO_0008150".
func Accession(iri string) string {
	iri = strings.TrimRight(iri, "/")
	if idx := strings.LastIndexAny(iri, "/#"); idx != -1 {
		return iri[idx+1:]
	}
	return iri
}

// NormalizeAccession maps the CURIE and IRI spellings of an accession onto
// one key ("GO:0008150" and "GO_0008150" compare equal).
func NormalizeAccession(accession string) string {
	return strings.Replace(strings.TrimSpace(accession), ":", "_", 1)
}

type classBuilder struct {
	isClass bool
	class   Class
}

// Load decodes an RDF/XML document and returns every owl:Class in document
// order. Restrictions and other anonymous superclasses are skipped.
func Load(r io.Reader) (*Ontology, error) {
	dec := rdf.NewTripleDecoder(r, rdf.RDFXML)

	var order []string
	subjects := make(map[string]*classBuilder)
	get := func(iri string) *classBuilder {
		if c, ok := subjects[iri]; ok {
			return c
		}
		c := &classBuilder{class: Class{IRI: iri, Accession: Accession(iri)}}
		subjects[iri] = c
		order = append(order, iri)
		return c
	}

	triples := 0
	for {
		triple, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode ontology: %w", err)
		}
		triples++

		if triple.Subj.Type() != rdf.TermIRI {
			continue
		}
		subject := triple.Subj.String()

		switch triple.Pred.String() {
		case rdfType:
			if triple.Obj.Type() == rdf.TermIRI && triple.Obj.String() == owlClass {
				get(subject).isClass = true
			}
		case rdfsLabel:
			c := get(subject)
			if c.class.Label == "" {
				c.class.Label = triple.Obj.String()
			}
		case oboInOwlNamespace:
			c := get(subject)
			if c.class.Namespace == "" {
				c.class.Namespace = triple.Obj.String()
			}
		case rdfsSubClassOf:
			if triple.Obj.Type() != rdf.TermIRI {
				continue
			}
			c := get(subject)
			c.class.Parents = append(c.class.Parents, Accession(triple.Obj.String()))
		}
	}

	o := &Ontology{}
	for _, iri := range order {
		c := subjects[iri]
		if !c.isClass {
			continue
		}
		o.Classes = append(o.Classes, c.class)
	}

	logger.Debug("[Ontology] Decoded", "triples", triples, "classes", len(o.Classes))
	return o, nil
}
