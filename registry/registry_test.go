package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	reg := registry.Default()

	trigger, ok := reg.Lookup(hookgraph.TriggerType)
	require.True(t, ok)
	assert.Equal(t, 1, trigger.MaxPerGraph)
	assert.Equal(t, hookgraph.KindTrigger, trigger.Kind)

	webhook, ok := reg.Lookup("Webhook")
	require.True(t, ok)
	in, ok := webhook.Input("in")
	require.True(t, ok)
	assert.Equal(t, 1, in.MaxConnections)
	assert.Equal(t, "Payload", in.Label)

	assert.True(t, hookgraph.IsFormatter(reg, "Formatter"))
	assert.False(t, hookgraph.IsFormatter(reg, "Webhook"))

	var names []string
	for _, m := range reg.Types() {
		names = append(names, m.Type)
	}
	assert.Equal(t, []string{"ContractEvent", "Formatter", "Webhook"}, names)
}

func TestPalette(t *testing.T) {
	reg := registry.Default()
	ctx := registry.Context{}

	items := reg.Palette(ctx, "", nil)
	require.Len(t, items, 3)
	for _, item := range items {
		assert.NoError(t, item.Err, item.Type)
	}

	nodes := []hookgraph.Node{{ID: "t1", Type: hookgraph.TriggerType}}
	items = reg.Palette(ctx, "", nodes)
	require.Len(t, items, 3)
	assert.Equal(t, hookgraph.TriggerType, items[0].Type)
	assert.Error(t, items[0].Err, "trigger cap reached")
	assert.NoError(t, items[1].Err)

	items = reg.Palette(ctx, "hook", nil)
	require.Len(t, items, 1)
	assert.Equal(t, "Webhook", items[0].Type)

	assert.Empty(t, reg.Palette(ctx, "nothing-matches", nil))
}

func TestEntry_InitialData(t *testing.T) {
	reg := registry.Default()
	entry, ok := reg.Entry("Webhook")
	require.True(t, ok)

	data := entry.InitialData(registry.Context{})
	assert.Equal(t, "POST", data["method"])
	data["method"] = "PUT"
	assert.Equal(t, "POST", entry.InitialData(registry.Context{})["method"], "defaults are copied")

	dynamic := registry.Entry{
		Type: "Webhook",
		Data: func(ctx registry.Context) map[string]any {
			return map[string]any{"name": ctx.Graph.Name}
		},
	}
	got := dynamic.InitialData(registry.Context{Graph: &hookgraph.Graph{Name: "g"}})
	assert.Equal(t, map[string]any{"name": "g"}, got)

	_, ok = reg.Entry("Missing")
	assert.False(t, ok)
}

func TestEntry_IsEnabled(t *testing.T) {
	entry := registry.Entry{Type: "Slack", RequiresEnv: []string{"SLACK_TOKEN"}}
	assert.False(t, entry.IsEnabled(registry.Context{}))
	assert.True(t, entry.IsEnabled(registry.Context{Env: map[string]string{"SLACK_TOKEN": "x"}}))

	entry.Enabled = func(registry.Context) bool { return false }
	assert.False(t, entry.IsEnabled(registry.Context{Env: map[string]string{"SLACK_TOKEN": "x"}}))

	reg := registry.New(nil, []registry.Entry{entry})
	assert.Empty(t, reg.Palette(registry.Context{}, "", nil))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
types:
  - type: Filter
    kind: formatter
    max_per_graph: 3
    inputs:
      - key: in
        max_connections: 2
palette:
  - type: Filter
    label: Filter
    requires_env: [FILTER_ENABLED]
`), 0o644))

	reg, err := registry.Load(path)
	require.NoError(t, err)
	meta, ok := reg.Lookup("Filter")
	require.True(t, ok)
	assert.Equal(t, 3, meta.MaxPerGraph)
	assert.Equal(t, hookgraph.KindFormatter, meta.Kind)
	assert.Equal(t, 2, meta.Inputs[0].MaxConnections)

	assert.Empty(t, reg.Palette(registry.Context{}, "", nil))
	assert.Len(t, reg.Palette(registry.Context{Env: map[string]string{"FILTER_ENABLED": "1"}}, "", nil), 1)

	_, err = registry.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = registry.Parse([]byte("types:\n  - label: nameless\n"))
	assert.Error(t, err)
}
