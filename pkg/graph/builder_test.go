package graph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/mt2n/pkg/common"
	"github.com/OFFIS-RIT/mt2n/pkg/loader"
	ioloader "github.com/OFFIS-RIT/mt2n/pkg/loader/io"
	"github.com/OFFIS-RIT/mt2n/pkg/ontology"
)

const geneBlocks = `s1 <hasType> <Gene> .
s1 RAP_ID "RAP001" .
s1 relatesTo _s2 .
_s2 <hasType> <Gene> .
_s2 RAP_ID "RAP002" .

s3 <hasType> <Gene> .
s3 RAP_ID "RAP001" .
s3 name "dwarf1" .
`

func newTestBuilder(t *testing.T, identifiers map[string]string) *Builder {
	t.Helper()
	b, err := NewBuilder(NewBuilderParams{Identifiers: identifiers})
	require.NoError(t, err)
	return b
}

func writeSource(t *testing.T, dir, name, content string) loader.SourceFile {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return loader.NewSourceFile(loader.NewSourceFileParams{
		FilePath: path,
		Loader:   ioloader.NewIOSourceLoader(),
	})
}

func TestBuilderMergesWithinFile(t *testing.T) {
	b := newTestBuilder(t, map[string]string{"Gene": "RAP_ID"})

	require.NoError(t, b.IngestReader("genes.ttl", strings.NewReader(geneBlocks)))
	g, err := b.Finalize("run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", g.RunID)
	assert.Equal(t, []string{"Gene"}, g.EntityTypes)
	assert.Equal(t, []string{"relatesTo"}, g.RelationshipTypes)
	assert.Equal(t, []common.Node{
		{ID: 0, EntityType: 0, Properties: map[string]string{"RAP_ID": "RAP001", "name": "dwarf1"}},
		{ID: 1, EntityType: 0, Properties: map[string]string{"RAP_ID": "RAP002"}},
	}, g.Vertices)
	assert.Equal(t, []common.Edge{{SourceID: 0, TargetID: 1, Relationship: 0}}, g.Edges)

	stats := b.Stats()
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 2, stats.Blocks)
	assert.Equal(t, 2, stats.NodesCreated)
	assert.Equal(t, 1, stats.NodesMerged)
	assert.Equal(t, 1, stats.EdgesAdded)
}

func TestBuilderMergesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	files := []loader.SourceFile{
		writeSource(t, dir, "a.ttl", "a1 type <Gene> .\na1 RAP_ID \"RAP001\" .\na1 name \"first\" .\n"),
		writeSource(t, dir, "b.ttl", "b1 type <Gene> .\nb1 RAP_ID \"RAP001\" .\nb1 name \"second\" .\nb1 MSU_ID \"LOC_Os01\" .\n\n_b2 type <Trait> .\nb1 controls _b2 .\n"),
	}
	b := newTestBuilder(t, map[string]string{"Gene": "RAP_ID"})

	require.NoError(t, b.Ingest(context.Background(), files))
	g, err := b.Finalize("")
	require.NoError(t, err)

	require.Len(t, g.Vertices, 2)
	assert.Equal(t, map[string]string{
		"RAP_ID": "RAP001",
		"name":   "first",
		"MSU_ID": "LOC_Os01",
	}, g.Vertices[0].Properties)
	assert.Equal(t, "Trait", g.EntityTypeName(g.Vertices[1].EntityType))
	assert.Equal(t, 2, b.Stats().Files)
}

func TestBuilderCrossBlockEdgeNeedsEarlierBlock(t *testing.T) {
	b := newTestBuilder(t, nil)
	input := "_s1 type <Gene> .\n\n_s2 type <Gene> .\n_s2 relatesTo _s1 .\n"

	require.NoError(t, b.IngestReader("input.ttl", strings.NewReader(input)))
	g, err := b.Finalize("")
	require.NoError(t, err)

	assert.Equal(t, []common.Edge{{SourceID: 1, TargetID: 0, Relationship: 0}}, g.Edges)
}

func TestBuilderReferentialErrorHaltsIngestion(t *testing.T) {
	dir := t.TempDir()
	files := []loader.SourceFile{
		writeSource(t, dir, "a.ttl", "s1 type <Gene> .\n\ns1 relatesTo _ghost .\n"),
		writeSource(t, dir, "b.ttl", "s9 type <Gene> .\n"),
	}
	b := newTestBuilder(t, nil)

	err := b.Ingest(context.Background(), files)
	require.Error(t, err)

	var refErr *ReferentialIntegrityError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, files[0].FilePath, refErr.File)
	assert.Equal(t, 3, refErr.Line)
	assert.Equal(t, []string{"_ghost"}, refErr.Missing)

	assert.Equal(t, 1, b.Stats().Files)
	assert.Equal(t, 1, b.nodes.Len())

	_, err = b.Finalize("")
	assert.ErrorAs(t, err, &refErr)

	err = b.IngestReader("more.ttl", strings.NewReader("x type <Gene> .\n"))
	assert.ErrorAs(t, err, &refErr)
	assert.Equal(t, 1, b.nodes.Len())
}

func TestBuilderMissingSource(t *testing.T) {
	b := newTestBuilder(t, nil)
	files := []loader.SourceFile{
		loader.NewSourceFile(loader.NewSourceFileParams{
			FilePath: filepath.Join(t.TempDir(), "missing.ttl"),
			Loader:   ioloader.NewIOSourceLoader(),
		}),
	}

	err := b.Ingest(context.Background(), files)

	var srcErr *SourceError
	require.True(t, errors.As(err, &srcErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestBuilderSourceWithoutLoader(t *testing.T) {
	b := newTestBuilder(t, nil)

	err := b.Ingest(context.Background(), []loader.SourceFile{{FilePath: "a.ttl"}})

	var srcErr *SourceError
	require.True(t, errors.As(err, &srcErr))
	assert.Equal(t, "a.ttl", srcErr.File)
}

func TestBuilderSealedAfterFinalize(t *testing.T) {
	b := newTestBuilder(t, nil)
	_, err := b.Finalize("")
	require.NoError(t, err)

	err = b.IngestReader("a.ttl", strings.NewReader("s1 type <Gene> .\n"))
	assert.ErrorIs(t, err, ErrSealed)
	err = b.Ingest(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSealed)
}

func TestBuilderEmptyInput(t *testing.T) {
	b := newTestBuilder(t, nil)

	require.NoError(t, b.IngestReader("empty.ttl", strings.NewReader("\n\n# nothing\n")))
	g, err := b.Finalize("")
	require.NoError(t, err)

	assert.Empty(t, g.Vertices)
	assert.Empty(t, g.Edges)
	assert.Zero(t, b.Stats().Blocks)
}

func TestBuilderIsDeterministic(t *testing.T) {
	identifiers := map[string]string{"Gene": "RAP_ID", "Protein": "uniprot"}
	input := geneBlocks + "\np1 type <Protein> .\np1 uniprot \"Q0JAD1\" .\np1 encodedBy _s2 .\ns1 type <Gene> .\ns1 RAP_ID \"RAP001\" .\n"

	var first *common.Graph
	for range 5 {
		b := newTestBuilder(t, identifiers)
		require.NoError(t, b.IngestReader("input.ttl", strings.NewReader(input)))
		g, err := b.Finalize("")
		require.NoError(t, err)
		if first == nil {
			first = g
			continue
		}
		assert.Equal(t, first, g)
	}
}

func TestNewBuilderRejectsEmptyIdentifiers(t *testing.T) {
	tests := []struct {
		name   string
		params NewBuilderParams
	}{
		{name: "empty type", params: NewBuilderParams{Identifiers: map[string]string{"": "RAP_ID"}}},
		{name: "empty property", params: NewBuilderParams{Identifiers: map[string]string{"Gene": ""}}},
		{name: "negative line limit", params: NewBuilderParams{MaxLineBytes: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(tt.params)
			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestBuilderReplayMergesGraphs(t *testing.T) {
	identifiers := map[string]string{"Gene": "RAP_ID"}

	left := newTestBuilder(t, identifiers)
	require.NoError(t, left.IngestReader("left.ttl", strings.NewReader(geneBlocks)))
	leftGraph, err := left.Finalize("left")
	require.NoError(t, err)

	right := newTestBuilder(t, identifiers)
	input := "_t1 type <Trait> .\n_t1 name \"height\" .\n\ng1 type <Gene> .\ng1 RAP_ID \"RAP002\" .\ng1 MSU_ID \"LOC_Os02\" .\ng1 affects _t1 .\n"
	require.NoError(t, right.IngestReader("right.ttl", strings.NewReader(input)))
	rightGraph, err := right.Finalize("right")
	require.NoError(t, err)

	merged := newTestBuilder(t, identifiers)
	require.NoError(t, merged.Replay(leftGraph))
	require.NoError(t, merged.Replay(rightGraph))
	g, err := merged.Finalize("merged")
	require.NoError(t, err)

	assert.Equal(t, []string{"Gene", "Trait"}, g.EntityTypes)
	assert.Equal(t, []string{"relatesTo", "affects"}, g.RelationshipTypes)
	require.Len(t, g.Vertices, 3)
	assert.Equal(t, map[string]string{"RAP_ID": "RAP002", "MSU_ID": "LOC_Os02"}, g.Vertices[1].Properties)
	assert.Equal(t, []common.Edge{
		{SourceID: 0, TargetID: 1, Relationship: 0},
		{SourceID: 1, TargetID: 2, Relationship: 1},
	}, g.Edges)
}

func TestBuilderReplayRejectsUnknownCodes(t *testing.T) {
	b := newTestBuilder(t, nil)
	g := &common.Graph{
		Vertices: []common.Node{{ID: 0, EntityType: 3}},
	}

	assert.Error(t, b.Replay(g))
	_, err := b.Finalize("")
	assert.Error(t, err)
}

func TestBuilderAnnotate(t *testing.T) {
	b := newTestBuilder(t, map[string]string{"Gene": "RAP_ID"})
	input := "s1 type <Gene> .\ns1 RAP_ID \"RAP001\" .\ns1 go_accession \"GO:0009908\" .\n\ns2 type <Gene> .\ns2 RAP_ID \"RAP002\" .\ns2 go_accession \"GO:9999999\" .\n"
	require.NoError(t, b.IngestReader("genes.ttl", strings.NewReader(input)))

	onto := &ontology.Ontology{Classes: []ontology.Class{
		{Accession: "GO_0008150", Label: "biological_process", Namespace: "biological_process"},
		{Accession: "GO_0009908", Label: "flower development", Namespace: "biological_process", Parents: []string{"GO_0008150", "GO_0000001"}},
	}}

	stats, err := b.Annotate(onto, "")
	require.NoError(t, err)
	assert.Equal(t, AnnotateStats{Classes: 2, SubclassEdges: 1, Mappings: 1, SkippedParents: 1}, stats)

	again, err := b.Annotate(onto, DefaultAccessionProperty)
	require.NoError(t, err)
	assert.Zero(t, again.SubclassEdges)
	assert.Zero(t, again.Mappings)

	g, err := b.Finalize("")
	require.NoError(t, err)

	require.Len(t, g.Vertices, 4)
	assert.Equal(t, OntologyEntityType, g.EntityTypeName(g.Vertices[2].EntityType))
	assert.Equal(t, map[string]string{
		DefaultAccessionProperty:  "GO_0009908",
		OntologyLabelProperty:     "flower development",
		OntologyNamespaceProperty: "biological_process",
	}, g.Vertices[3].Properties)
	assert.Equal(t, []common.Edge{
		{SourceID: 3, TargetID: 2, Relationship: 0},
		{SourceID: 0, TargetID: 3, Relationship: 1},
	}, g.Edges)
	assert.Equal(t, []string{SubclassOfRelationship, OntologyMappingRelation}, g.RelationshipTypes)
}

func TestBuilderAnnotateMergesIngestedOntologyNodes(t *testing.T) {
	b := newTestBuilder(t, map[string]string{"Gene": "RAP_ID"})
	input := "t1 type <PublicOnto> .\nt1 go_accession \"GO:0009908\" .\nt1 source \"curated\" .\n\n" +
		"s1 type <Gene> .\ns1 RAP_ID \"RAP001\" .\ns1 go_accession \"GO:0009908\" .\n"
	require.NoError(t, b.IngestReader("genes.ttl", strings.NewReader(input)))

	onto := &ontology.Ontology{Classes: []ontology.Class{
		{Accession: "GO_0009908", Label: "flower development"},
	}}
	stats, err := b.Annotate(onto, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Mappings)

	g, err := b.Finalize("")
	require.NoError(t, err)

	require.Len(t, g.Vertices, 2)
	assert.Equal(t, map[string]string{
		DefaultAccessionProperty: "GO:0009908",
		"source":                 "curated",
		OntologyLabelProperty:    "flower development",
	}, g.Vertices[0].Properties)
	assert.Equal(t, []common.Edge{{SourceID: 1, TargetID: 0, Relationship: 1}}, g.Edges)
}

func TestBuilderAnnotateConflictingIdentifier(t *testing.T) {
	b := newTestBuilder(t, map[string]string{OntologyEntityType: "accession"})

	_, err := b.Annotate(&ontology.Ontology{}, DefaultAccessionProperty)

	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}
