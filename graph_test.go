package hookgraph_test

import (
	"encoding/json"
	"testing"

	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdge_UnmarshalHandles(t *testing.T) {
	var edges []hookgraph.Edge
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id":"a","source":"x","target":"y","sourceHandle":"value","targetHandle":null},
		{"id":"b","source":"x","target":"y","sourceHandle":{"id":"from","label":"From"},"targetHandle":{"id":"in"}},
		{"id":"c","source":"x","target":"y","type":"smoothstep"}
	]`), &edges))

	require.Len(t, edges, 3)
	assert.Equal(t, "value", *edges[0].SourceHandle)
	assert.Nil(t, edges[0].TargetHandle)
	assert.Equal(t, "from", *edges[1].SourceHandle)
	assert.Equal(t, "in", *edges[1].TargetHandle)
	assert.Nil(t, edges[2].SourceHandle)
	assert.Equal(t, "smoothstep", edges[2].Type)
	assert.Equal(t, "x", edges[2].Source)

	var bad hookgraph.Edge
	assert.Error(t, json.Unmarshal([]byte(`{"id":"d","sourceHandle":12}`), &bad))
}

func TestDefinition_Validate(t *testing.T) {
	require.NoError(t, testutil.SampleDefinition().Validate())

	dup := testutil.SampleDefinition()
	dup.Nodes = append(dup.Nodes, hookgraph.Node{ID: "f1", Type: "Formatter"})
	assert.ErrorIs(t, dup.Validate(), hookgraph.ErrDuplicateNode)

	dangling := testutil.SampleDefinition()
	dangling.Edges = append(dangling.Edges, hookgraph.Edge{ID: "e9", Source: "f1", Target: "gone"})
	assert.ErrorIs(t, dangling.Validate(), hookgraph.ErrDanglingEdge)
}

func TestDefinition_Node(t *testing.T) {
	def := testutil.SampleDefinition()
	n, ok := def.Node("w1")
	require.True(t, ok)
	assert.Equal(t, "Webhook", n.Type)

	_, ok = def.Node("nope")
	assert.False(t, ok)
}

func TestGraph_StatusOrDraft(t *testing.T) {
	var g *hookgraph.Graph
	assert.Equal(t, hookgraph.StatusDraft, g.StatusOrDraft())
	assert.Equal(t, hookgraph.StatusDraft, (&hookgraph.Graph{}).StatusOrDraft())
	assert.Equal(t, hookgraph.StatusPaused, (&hookgraph.Graph{Status: hookgraph.StatusPaused}).StatusOrDraft())
}

func TestValidateAcyclic(t *testing.T) {
	require.NoError(t, hookgraph.ValidateAcyclic(testutil.SampleDefinition()))
	require.NoError(t, hookgraph.ValidateAcyclic(hookgraph.EmptyDefinition()))

	cyclic := testutil.SampleDefinition()
	cyclic.Edges = append(cyclic.Edges, hookgraph.Edge{ID: "back", Source: "w1", Target: "f1"})
	err := hookgraph.ValidateAcyclic(cyclic)
	assert.ErrorIs(t, err, hookgraph.ErrCycleDetected)
	assert.EqualError(t, err, "hookgraph: cycle detected, graph is not acyclic: 2 of 3 nodes cannot be ordered, first f1")

	orphanLoop := hookgraph.Definition{
		Nodes: []hookgraph.Node{{ID: "a"}},
		Edges: []hookgraph.Edge{{ID: "1", Source: "x", Target: "y"}, {ID: "2", Source: "y", Target: "x"}},
	}
	assert.ErrorIs(t, hookgraph.ValidateAcyclic(orphanLoop), hookgraph.ErrCycleDetected, "endpoints outside the node list still count")

	self := hookgraph.Definition{
		Nodes: []hookgraph.Node{{ID: "a"}},
		Edges: []hookgraph.Edge{{ID: "loop", Source: "a", Target: "a"}},
	}
	assert.ErrorIs(t, hookgraph.ValidateAcyclic(self), hookgraph.ErrCycleDetected)

	diamond := hookgraph.Definition{
		Nodes: []hookgraph.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		Edges: []hookgraph.Edge{
			{ID: "1", Source: "a", Target: "b"},
			{ID: "2", Source: "a", Target: "c"},
			{ID: "3", Source: "b", Target: "d"},
			{ID: "4", Source: "c", Target: "d"},
		},
	}
	assert.NoError(t, hookgraph.ValidateAcyclic(diamond))
}

func TestUsage_OverLimit(t *testing.T) {
	assert.False(t, hookgraph.Usage{Used: 99, Limit: 100}.OverLimit())
	assert.True(t, hookgraph.Usage{Used: 100, Limit: 100}.OverLimit())
	assert.True(t, hookgraph.Usage{Used: 100}.OverLimit(), "zero limit means the default")
	assert.False(t, hookgraph.Usage{Used: 5, Limit: 10}.OverLimit())
}
