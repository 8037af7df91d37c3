package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/meikuraledutech/hookgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SampleDefinition is a trigger feeding a formatter feeding a webhook.
func SampleDefinition() hookgraph.Definition {
	return hookgraph.Definition{
		Nodes: []hookgraph.Node{
			{ID: "t1", Type: "ContractEvent", Position: hookgraph.Position{X: 0, Y: 0}, Data: TriggerData()},
			{ID: "f1", Type: "Formatter", Position: hookgraph.Position{X: 200, Y: 0}, Data: map[string]any{"template": "{{value}}"}},
			{ID: "w1", Type: "Webhook", Position: hookgraph.Position{X: 400, Y: 0}, Data: map[string]any{"url": "https://example.com/hook"}},
		},
		Edges: []hookgraph.Edge{
			{ID: "e1", Source: "t1", Target: "f1", TargetHandle: hookgraph.Handle("in")},
			{ID: "e2", Source: "f1", Target: "w1", TargetHandle: hookgraph.Handle("in")},
		},
	}
}

// TriggerData is the data of a fully configured ContractEvent node.
func TriggerData() map[string]any {
	return map[string]any{
		"address":    "0xABCDEF0000000000000000000000000000000001",
		"networkKey": "ethereum-mainnet",
		"eventAbi": map[string]any{
			"name": "Transfer",
			"inputs": []any{
				map[string]any{"name": "from", "type": "address", "indexed": true},
				map[string]any{"name": "to", "type": "address", "indexed": true},
				map[string]any{"name": "value", "type": "uint256"},
			},
		},
	}
}

// RunStoreContract exercises a hookgraph.Store implementation. The store
// must start empty.
func RunStoreContract(t *testing.T, store hookgraph.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateSchema(ctx))

	t.Run("GetMissing", func(t *testing.T) {
		g, err := store.GetGraph(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, g)
	})

	t.Run("CreateGetList", func(t *testing.T) {
		created, err := store.CreateGraph(ctx, &hookgraph.Graph{ID: "g1", Name: "first", Definition: SampleDefinition()})
		require.NoError(t, err)
		assert.Equal(t, 1, created.Version)
		assert.Equal(t, hookgraph.StatusDraft, created.Status)

		got, err := store.GetGraph(ctx, "g1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "first", got.Name)
		assert.True(t, hookgraph.ContentEqual(SampleDefinition(), got.Definition))
		assert.Equal(t, hookgraph.Fingerprint(SampleDefinition()), hookgraph.Fingerprint(got.Definition))

		_, err = store.CreateGraph(ctx, &hookgraph.Graph{ID: "g2", Name: "second", Definition: hookgraph.EmptyDefinition()})
		require.NoError(t, err)
		list, err := store.ListGraphs(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("Update", func(t *testing.T) {
		def := SampleDefinition()
		def.Nodes[0].Position = hookgraph.Position{X: 50, Y: 60}

		g, err := store.UpdateGraph(ctx, "g1", hookgraph.Update{Name: "renamed", Definition: def, Status: hookgraph.StatusDraft, BumpVersion: true})
		require.NoError(t, err)
		assert.Equal(t, 2, g.Version)
		assert.Equal(t, "renamed", g.Name)
		assert.Equal(t, 50.0, g.Definition.Nodes[0].Position.X)

		g, err = store.UpdateGraph(ctx, "g1", hookgraph.Update{Name: "renamed", Definition: def, Status: hookgraph.StatusDraft})
		require.NoError(t, err)
		assert.Equal(t, 2, g.Version, "autosave does not bump")

		_, err = store.UpdateGraph(ctx, "missing", hookgraph.Update{Name: "x"})
		assert.ErrorIs(t, err, hookgraph.ErrGraphNotFound)
	})

	t.Run("Deployment", func(t *testing.T) {
		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		g, err := store.SetDeployment(ctx, "g1", hookgraph.Deployment{Fingerprint: "fp", Status: hookgraph.StatusActive, CompiledAt: &at})
		require.NoError(t, err)
		assert.Equal(t, "fp", g.DeployFingerprint)
		assert.Equal(t, hookgraph.StatusActive, g.Status)
		require.NotNil(t, g.CompiledAt)
		assert.True(t, at.Equal(*g.CompiledAt))

		g, err = store.SetStatus(ctx, "g1", hookgraph.StatusPaused)
		require.NoError(t, err)
		assert.Equal(t, hookgraph.StatusPaused, g.Status)
		assert.Equal(t, "fp", g.DeployFingerprint)

		_, err = store.SetStatus(ctx, "missing", hookgraph.StatusPaused)
		assert.ErrorIs(t, err, hookgraph.ErrGraphNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.DeleteGraph(ctx, "g1"))
		require.NoError(t, store.DeleteGraph(ctx, "g1"))
		g, err := store.GetGraph(ctx, "g1")
		require.NoError(t, err)
		assert.Nil(t, g)
	})
}
