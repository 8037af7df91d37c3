package hookgraph_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_StripsFunctionsAtAnyDepth(t *testing.T) {
	nodes := []hookgraph.Node{{
		ID:   "n1",
		Type: "Formatter",
		Data: map[string]any{
			"onChange": func(string) {},
			"template": "{{value}}",
			"nested": map[string]any{
				"cb":    func() {},
				"keep":  1.5,
				"ch":    make(chan int),
				"items": []any{"a", func() {}, map[string]any{"deep": func() {}, "x": true}},
			},
			"hooks": []func(){func() {}},
		},
	}}
	edges := []hookgraph.Edge{{
		ID: "e1", Source: "n1", Target: "n1",
		Data: map[string]any{"onHover": func() {}, "label": "loop"},
	}}

	def := hookgraph.Sanitize(nodes, edges)

	data := def.Nodes[0].Data
	assert.NotContains(t, data, "onChange")
	assert.Equal(t, "{{value}}", data["template"])
	nested := data["nested"].(map[string]any)
	assert.NotContains(t, nested, "cb")
	assert.NotContains(t, nested, "ch")
	assert.Equal(t, 1.5, nested["keep"])
	assert.Equal(t, []any{"a", map[string]any{"x": true}}, nested["items"])
	assert.Equal(t, []any{}, data["hooks"])
	assert.Equal(t, map[string]any{"label": "loop"}, def.Edges[0].Data)

	_, err := json.Marshal(def)
	require.NoError(t, err, "sanitized definitions always serialize")

	// Input is untouched.
	assert.Contains(t, nodes[0].Data, "onChange")
}

type hookConfig struct {
	URL      string      `json:"url"`
	Retries  int         `json:"retries,omitempty"`
	OnSend   func()      `json:"onSend"`
	Secret   string      `json:"-"`
	Fallback *hookConfig `json:"fallback,omitempty"`
	Extra    map[int]any `json:"extra,omitempty"`
}

func TestSanitize_FollowsPointersAndStructs(t *testing.T) {
	cb := map[string]any{"cb": func() {}, "keep": "x"}
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	nodes := []hookgraph.Node{{
		ID:   "n1",
		Type: "Webhook",
		Data: map[string]any{
			"ptr": &cb,
			"cfg": hookConfig{
				URL:      "https://example.com",
				OnSend:   func() {},
				Secret:   "s3cret",
				Fallback: &hookConfig{URL: "https://backup", Retries: 2, OnSend: func() {}},
				Extra:    map[int]any{7: func() {}, 8: "eight"},
			},
			"plain": struct {
				Name string `json:"name"`
			}{Name: "kept as is"},
			"when":  when,
			"nilp":  (*hookConfig)(nil),
			"inner": []any{map[string]any{"fn": func() {}}},
		},
	}}

	def := hookgraph.Sanitize(nodes, nil)
	data := def.Nodes[0].Data

	assert.Equal(t, map[string]any{"keep": "x"}, data["ptr"])
	assert.Equal(t, map[string]any{
		"url":      "https://example.com",
		"fallback": map[string]any{"url": "https://backup", "retries": 2},
		"extra":    map[string]any{"8": "eight"},
	}, data["cfg"])
	assert.Equal(t, when, data["when"])
	assert.Nil(t, data["nilp"])
	assert.Contains(t, data, "nilp")
	assert.Equal(t, []any{map[string]any{}}, data["inner"])

	out, err := json.Marshal(def)
	require.NoError(t, err, "sanitized definitions always serialize")
	assert.Contains(t, string(out), `"name":"kept as is"`)
	assert.True(t, hookgraph.Equal(def, def))
	assert.True(t, hookgraph.ContentEqual(hookgraph.Definition{Nodes: nodes}, hookgraph.Definition{Nodes: nodes}))
}

func TestSanitize_NonFiniteNumbersBecomeNull(t *testing.T) {
	nodes := []hookgraph.Node{{
		ID:   "n1",
		Type: "Formatter",
		Data: map[string]any{
			"nan":    math.NaN(),
			"inf":    math.Inf(1),
			"list":   []float64{1, math.Inf(-1)},
			"finite": 2.5,
		},
	}}

	def := hookgraph.Sanitize(nodes, nil)
	data := def.Nodes[0].Data
	assert.Nil(t, data["nan"])
	assert.Nil(t, data["inf"])
	assert.Equal(t, []any{1.0, nil}, data["list"])
	assert.Equal(t, 2.5, data["finite"])

	_, err := json.Marshal(def)
	require.NoError(t, err)

	raw := hookgraph.Definition{Nodes: nodes}
	assert.True(t, hookgraph.ContentEqual(raw, raw), "a graph always equals itself")
	assert.True(t, hookgraph.ContentEqual(raw, def))
}

func TestSanitize_Idempotent(t *testing.T) {
	def := testutil.SampleDefinition()
	def.Nodes[1].Data["onChange"] = func() {}

	once := hookgraph.Sanitize(def.Nodes, def.Edges)
	twice := hookgraph.Sanitize(once.Nodes, once.Edges)

	assert.Equal(t, once, twice)
	assert.True(t, hookgraph.Equal(once, twice))
}

func TestSanitize_EmptyInputsGiveEmptySequences(t *testing.T) {
	def := hookgraph.Sanitize(nil, nil)
	assert.NotNil(t, def.Nodes)
	assert.NotNil(t, def.Edges)

	out, err := json.Marshal(def)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, string(out))
}

func TestRehydrate_BindsCallbacksOutsideData(t *testing.T) {
	def := testutil.SampleDefinition()
	var got []string
	nodes, edges, bindings := hookgraph.Rehydrate(def, func(id string, _ map[string]any) {
		got = append(got, id)
	})

	require.Len(t, nodes, 3)
	require.Len(t, edges, 2)
	for _, n := range nodes {
		cb := bindings.For(n.ID)
		require.NotNil(t, cb, n.ID)
		cb(n.ID, nil)
		for _, v := range n.Data {
			assert.NotNil(t, v)
		}
	}
	assert.Equal(t, []string{"t1", "f1", "w1"}, got)
	assert.Nil(t, bindings.For("unknown"))

	// The live copy is independent of the persisted definition.
	nodes[1].Data["template"] = "changed"
	assert.Equal(t, "{{value}}", def.Nodes[1].Data["template"])
	assert.True(t, hookgraph.Equal(def, hookgraph.Sanitize(def.Nodes, def.Edges)))
}

func TestContentEqual(t *testing.T) {
	base := testutil.SampleDefinition()

	t.Run("Reflexive", func(t *testing.T) {
		assert.True(t, hookgraph.ContentEqual(base, base))
		assert.True(t, hookgraph.ContentEqual(hookgraph.EmptyDefinition(), hookgraph.Definition{}))
	})

	t.Run("IgnoresLayoutAndSelection", func(t *testing.T) {
		moved := base.Clone()
		moved.Nodes[0].Position = hookgraph.Position{X: 999, Y: -3}
		moved.Nodes[1].Width, moved.Nodes[1].Height = 180, 40
		moved.Nodes[2].Selected = true
		moved.Edges[0].Selected = true
		assert.True(t, hookgraph.ContentEqual(base, moved))
		assert.False(t, hookgraph.Equal(base, moved), "full equality keeps positions")
	})

	t.Run("DataChange", func(t *testing.T) {
		changed := base.Clone()
		changed.Nodes[1].Data["template"] = "other"
		assert.False(t, hookgraph.ContentEqual(base, changed))
	})

	t.Run("AddRemove", func(t *testing.T) {
		added := base.Clone()
		added.Nodes = append(added.Nodes, hookgraph.Node{ID: "w2", Type: "Webhook", Data: map[string]any{}})
		assert.False(t, hookgraph.ContentEqual(base, added))

		removed := base.Clone()
		removed.Edges = removed.Edges[:1]
		assert.False(t, hookgraph.ContentEqual(base, removed))
	})

	t.Run("OrderSensitive", func(t *testing.T) {
		reordered := base.Clone()
		reordered.Nodes[0], reordered.Nodes[2] = reordered.Nodes[2], reordered.Nodes[0]
		assert.False(t, hookgraph.ContentEqual(base, reordered),
			"the same nodes in a different order count as a change")
	})

	t.Run("HandleObjectsFlattenToID", func(t *testing.T) {
		var decoded hookgraph.Definition
		require.NoError(t, json.Unmarshal([]byte(`{
			"nodes": [
				{"id":"a","type":"X","position":{"x":0,"y":0},"data":{}},
				{"id":"b","type":"Y","position":{"x":0,"y":0},"data":{}}
			],
			"edges": [
				{"id":"e","source":"a","target":"b","sourceHandle":{"id":"value"},"targetHandle":"in"}
			]
		}`), &decoded))

		plain := hookgraph.Definition{
			Nodes: []hookgraph.Node{
				{ID: "a", Type: "X", Data: map[string]any{}},
				{ID: "b", Type: "Y", Data: map[string]any{}},
			},
			Edges: []hookgraph.Edge{
				{ID: "e", Source: "a", Target: "b", SourceHandle: hookgraph.Handle("value"), TargetHandle: hookgraph.Handle("in")},
			},
		}
		assert.True(t, hookgraph.ContentEqual(decoded, plain))
	})

	t.Run("TypedParamsMatchDecodedParams", func(t *testing.T) {
		typed := base.Clone()
		typed.Nodes[1].Data[hookgraph.ParamsKey] = []hookgraph.AvailableParam{
			{Name: "value", Type: "undefined", Src: "ContractEvent", NodeID: "t1"},
		}
		raw, err := json.Marshal(typed)
		require.NoError(t, err)
		var decoded hookgraph.Definition
		require.NoError(t, json.Unmarshal(raw, &decoded))

		assert.True(t, hookgraph.ContentEqual(typed, decoded))
		assert.True(t, hookgraph.Equal(typed, decoded))
	})
}
