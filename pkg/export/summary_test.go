package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteSummary(&buf, sampleGraph()))

	want := `Nodes: 3
Node 0 : Gene {RAP_ID: "RAP001", name: "Ghd7"}
Node 1 : Trait {name: "heading date"}
Node 2 : - {}
Edges: 2
Edge 0 -> 1 (affects), 2 (relatesTo)
`
	assert.Equal(t, want, buf.String())
}
