package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/mt2n/pkg/graph"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "PathProperty.properties")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadResolvesPaths(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"MT2N_TTL_PATH=ttl.list",
		"MT2N_IDENTIFIERS_PATH=/etc/mt2n/identifiers.tsv",
		"MT2N_OUTPUT_JSON_PATH=s3://results/graph.json",
		"MT2N_OUTPUT_CSV_NODE_PATH=out/nodes.csv",
		"MT2N_OUTPUT_CSV_EDGE_PATH=out/edges.csv",
		"MT2N_CSV_INCLUDE_PROPERTIES=false",
		"MT2N_MAX_LINE_BYTES=1024",
	}, "\n"))
	dir := filepath.Dir(path)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "ttl.list"), cfg.SourcesPath)
	assert.Equal(t, "/etc/mt2n/identifiers.tsv", cfg.IdentifiersPath)
	assert.Equal(t, "s3://results/graph.json", cfg.Outputs.JSON)
	assert.Equal(t, filepath.Join(dir, "out", "nodes.csv"), cfg.Outputs.CSVNodes)
	assert.False(t, cfg.Outputs.IncludeProperties)
	assert.Equal(t, 1024, cfg.MaxLineBytes)
	assert.Equal(t, graph.DefaultAccessionProperty, cfg.AccessionProperty)
	assert.True(t, cfg.NeedsS3(nil))
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "MT2N_TTL_PATH=ttl.list\nMT2N_ONTOLOGY_ACCESSION_PROPERTY=go_id\n")
	t.Setenv(KeyAccessionProperty, "to_accession")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "to_accession", cfg.AccessionProperty)
	assert.True(t, cfg.Outputs.IncludeProperties)
	assert.False(t, cfg.NeedsS3([]string{"/data/rice.ttl"}))
	assert.True(t, cfg.NeedsS3([]string{"s3://data/rice.ttl"}))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
	}{
		{name: "missing sources", content: "MT2N_OUTPUT_JSON_PATH=graph.json\n", key: KeySources},
		{name: "bad boolean", content: "MT2N_TTL_PATH=ttl.list\nMT2N_CSV_INCLUDE_PROPERTIES=maybe\n", key: KeyCSVProperties},
		{name: "bad integer", content: "MT2N_TTL_PATH=ttl.list\nMT2N_MAX_LINE_BYTES=lots\n", key: KeyMaxLineBytes},
		{name: "negative integer", content: "MT2N_TTL_PATH=ttl.list\nMT2N_MAX_LINE_BYTES=-1\n", key: KeyMaxLineBytes},
		{name: "half gephi", content: "MT2N_TTL_PATH=ttl.list\nMT2N_OUTPUT_CSV_NODE_PATH=nodes.csv\n", key: KeyOutputCSVNodes},
		{name: "bad endpoint", content: "MT2N_TTL_PATH=ttl.list\nAWS_ENDPOINT=not a url\n", key: KeyAWSEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))

			var cfgErr *graph.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.properties"))

	var cfgErr *graph.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestReadSourceList(t *testing.T) {
	input := "# karma output\nrice_gene.ttl\n\n/abs/rice_trait.ttl\ns3://data/rice_qtl.ttl\n"

	sources, err := ReadSourceList(strings.NewReader(input), "/work")
	require.NoError(t, err)
	assert.Equal(t, []string{"/work/rice_gene.ttl", "/abs/rice_trait.ttl", "s3://data/rice_qtl.ttl"}, sources)

	_, err = ReadSourceList(strings.NewReader("# nothing\n"), "/work")
	assert.Error(t, err)
}

func TestReadIdentifiers(t *testing.T) {
	input := "Gene\tRAP_ID\n# comment\n\nProtein\tuniprot\nGene\tRAP_ID\n"

	identifiers, err := ReadIdentifiers(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Gene": "RAP_ID", "Protein": "uniprot"}, identifiers)
}

func TestReadIdentifiersStripsAngleBrackets(t *testing.T) {
	input := "<Gene>\t<RAP_ID>\nProtein\t<uniprot>\nGene\tRAP_ID\n"

	identifiers, err := ReadIdentifiers(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Gene": "RAP_ID", "Protein": "uniprot"}, identifiers)

	_, err = ReadIdentifiers(strings.NewReader("<>\tRAP_ID\n"))
	assert.Error(t, err)
}

func TestReadIdentifiersErrors(t *testing.T) {
	for _, input := range []string{
		"Gene RAP_ID\n",
		"Gene\t\n",
		"Gene\tRAP_ID\nGene\tMSU_ID\n",
	} {
		_, err := ReadIdentifiers(strings.NewReader(input))

		var cfgErr *graph.ConfigurationError
		require.True(t, errors.As(err, &cfgErr), input)
		assert.Equal(t, KeyIdentifiers, cfgErr.Key)
	}
}
