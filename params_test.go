package hookgraph_test

import (
	"encoding/json"
	"testing"

	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferType(t *testing.T) {
	cases := []struct {
		name    string
		value   any
		present bool
		want    string
	}{
		{"Missing", nil, false, "undefined"},
		{"Null", nil, true, "null"},
		{"Int", 42, true, "number"},
		{"Float", 1.5, true, "number"},
		{"JSONNumber", json.Number("7"), true, "number"},
		{"String", "x", true, "string"},
		{"Bool", false, true, "boolean"},
		{"Array", []any{1}, true, "array"},
		{"Object", map[string]any{"a": 1}, true, "object"},
		{"Function", func() {}, true, "function"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, hookgraph.InferType(tc.value, tc.present))
		})
	}
}

func TestUpdateParams_EdgeAddAndRemove(t *testing.T) {
	reg := registry.Default()
	nodes := []hookgraph.Node{
		{ID: "A", Type: "X", Data: map[string]any{"value": 42}},
		{ID: "B", Type: "Formatter", Data: map[string]any{}},
	}
	edges := []hookgraph.Edge{{ID: "e", Source: "A", Target: "B", SourceHandle: hookgraph.Handle("value")}}

	changed := hookgraph.UpdateParams(reg, nodes, edges, "B")
	assert.Equal(t, []string{"B"}, changed)
	assert.Equal(t, []hookgraph.AvailableParam{
		{Name: "value", Type: "number", Src: "X", NodeID: "A", Preview: 42},
	}, nodes[1].Data[hookgraph.ParamsKey])

	// Unchanged input leaves the stored list alone.
	assert.Empty(t, hookgraph.UpdateParams(reg, nodes, edges, "B"))

	changed = hookgraph.UpdateParams(reg, nodes, nil, "B")
	assert.Equal(t, []string{"B"}, changed)
	assert.Equal(t, []hookgraph.AvailableParam{}, nodes[1].Data[hookgraph.ParamsKey])
}

func TestInferParams_EdgeOrderAndDefaults(t *testing.T) {
	nodes := []hookgraph.Node{
		{ID: "src1", Type: "ContractEvent", Data: map[string]any{"value": "0x01", "from": "0xaa"}},
		{ID: "src2", Type: "", Data: map[string]any{}},
		{ID: "fmt", Type: "Formatter", Data: map[string]any{}},
	}
	edges := []hookgraph.Edge{
		{ID: "e1", Source: "src1", Target: "fmt", SourceHandle: hookgraph.Handle("from")},
		{ID: "e2", Source: "ghost", Target: "fmt"},
		{ID: "e3", Source: "src1", Target: "fmt"},
		{ID: "e4", Source: "src2", Target: "fmt"},
		{ID: "e5", Source: "src1", Target: "other"},
	}

	params := hookgraph.InferParams("fmt", nodes, edges)
	require.Len(t, params, 4)
	assert.Equal(t, hookgraph.AvailableParam{Name: "from", Type: "string", Src: "ContractEvent", NodeID: "src1", Preview: "0xaa"}, params[0])
	assert.Equal(t, hookgraph.AvailableParam{Name: "value", Type: "undefined", Src: "unknown", NodeID: "ghost"}, params[1])
	assert.Equal(t, hookgraph.AvailableParam{Name: "value", Type: "string", Src: "ContractEvent", NodeID: "src1", Preview: "0x01"}, params[2])
	assert.Equal(t, hookgraph.AvailableParam{Name: "value", Type: "undefined", Src: "unknown", NodeID: "src2"}, params[3])
}

func TestUpdateParams_SkipsNonFormatters(t *testing.T) {
	reg := registry.Default()
	nodes := []hookgraph.Node{
		{ID: "A", Type: "X", Data: map[string]any{"value": 1}},
		{ID: "W", Type: "Webhook", Data: map[string]any{}},
	}
	edges := []hookgraph.Edge{{ID: "e", Source: "A", Target: "W"}}

	assert.Empty(t, hookgraph.UpdateParams(reg, nodes, edges, "W", "missing"))
	assert.NotContains(t, nodes[1].Data, hookgraph.ParamsKey)
}

func TestUpdateParams_DecodedStoredParams(t *testing.T) {
	reg := registry.Default()
	var stored []any
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"value","type":"number","src":"X","nodeId":"A","preview":42}]`), &stored))

	nodes := []hookgraph.Node{
		{ID: "A", Type: "X", Data: map[string]any{"value": 42}},
		{ID: "B", Type: "Formatter", Data: map[string]any{hookgraph.ParamsKey: stored}},
	}
	edges := []hookgraph.Edge{{ID: "e", Source: "A", Target: "B"}}

	assert.Empty(t, hookgraph.UpdateAllParams(reg, nodes, edges), "persisted params already match")
	assert.Equal(t, stored, nodes[1].Data[hookgraph.ParamsKey])

	nodes[0].Data["value"] = "now a string"
	assert.Equal(t, []string{"B"}, hookgraph.UpdateAllParams(reg, nodes, edges))
	params := hookgraph.StoredParams(nodes[1].Data)
	require.Len(t, params, 1)
	assert.Equal(t, "string", params[0].Type)
}

func TestStoredParams(t *testing.T) {
	assert.Nil(t, hookgraph.StoredParams(nil))
	assert.Nil(t, hookgraph.StoredParams(map[string]any{hookgraph.ParamsKey: nil}))
	assert.Nil(t, hookgraph.StoredParams(map[string]any{hookgraph.ParamsKey: "garbage"}))

	typed := []hookgraph.AvailableParam{{Name: "v", Type: "number", Src: "X", NodeID: "A"}}
	assert.Equal(t, typed, hookgraph.StoredParams(map[string]any{hookgraph.ParamsKey: typed}))
}
