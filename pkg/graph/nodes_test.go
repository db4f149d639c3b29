package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/mt2n/pkg/common"
)

func newTestStores(identifiers map[string]string) (*TypeInterner, *NodeStore, *EdgeStore) {
	types := NewTypeInterner()
	nodes := newNodeStore(newIdentityResolver(types.Entities, identifiers))
	return types, nodes, newEdgeStore(nodes)
}

func TestNodeStoreMergesOnIdentifier(t *testing.T) {
	types, nodes, _ := newTestStores(map[string]string{"Gene": "RAP_ID"})
	gene := types.InternEntityType("Gene")

	id, merged := nodes.Add("a", gene, map[string]string{"RAP_ID": "RAP001", "name": "first"})
	require.False(t, merged)
	assert.Equal(t, 0, id)

	id, merged = nodes.Add("b", gene, map[string]string{"RAP_ID": "RAP001", "name": "second", "MSU_ID": "LOC_Os01"})
	require.True(t, merged)
	assert.Equal(t, 0, id)
	assert.Equal(t, 1, nodes.Len())

	node, ok := nodes.Node(0)
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"RAP_ID": "RAP001",
		"name":   "first",
		"MSU_ID": "LOC_Os01",
	}, node.Properties)

	for _, raw := range []string{"a", "b"} {
		resolved, ok := nodes.Resolve(raw)
		require.True(t, ok, raw)
		assert.Equal(t, 0, resolved, raw)
	}
}

func TestNodeStoreWithoutIdentifierNeverMerges(t *testing.T) {
	types, nodes, _ := newTestStores(map[string]string{"Gene": "RAP_ID"})
	trait := types.InternEntityType("Trait")
	props := map[string]string{"name": "plant height"}

	first, _ := nodes.Add("a", trait, props)
	second, merged := nodes.Add("b", trait, props)

	assert.False(t, merged)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, nodes.Len())
}

func TestNodeStoreIdentifierMissingFromProperties(t *testing.T) {
	types, nodes, _ := newTestStores(map[string]string{"Gene": "RAP_ID"})
	gene := types.InternEntityType("Gene")

	nodes.Add("a", gene, map[string]string{"name": "x"})
	_, merged := nodes.Add("b", gene, map[string]string{"name": "x"})

	assert.False(t, merged)
	assert.Equal(t, 2, nodes.Len())
}

func TestNodeStoreUntypedEntitiesNeverMerge(t *testing.T) {
	_, nodes, _ := newTestStores(map[string]string{"Gene": "RAP_ID"})

	nodes.Add("a", common.UntypedEntity, map[string]string{"RAP_ID": "RAP001"})
	_, merged := nodes.Add("b", common.UntypedEntity, map[string]string{"RAP_ID": "RAP001"})

	assert.False(t, merged)
}

func TestNodeStoreCopiesIncomingProperties(t *testing.T) {
	types, nodes, _ := newTestStores(nil)
	props := map[string]string{"name": "x"}

	id, _ := nodes.Add("a", types.InternEntityType("Gene"), props)
	props["name"] = "changed"

	node, _ := nodes.Node(id)
	assert.Equal(t, "x", node.Properties["name"])

	snapshot := nodes.Nodes()
	snapshot[0].Properties["name"] = "changed"
	node, _ = nodes.Node(id)
	assert.Equal(t, "x", node.Properties["name"])
}

func TestNodeStoreRawIDRemapsToLatestCommit(t *testing.T) {
	types, nodes, _ := newTestStores(nil)
	gene := types.InternEntityType("Gene")

	nodes.Add("s1", gene, nil)
	nodes.Add("s1", gene, nil)

	id, ok := nodes.Resolve("s1")
	require.True(t, ok)
	assert.Equal(t, 1, id)
}
