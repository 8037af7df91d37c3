package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/internal/testutil"
	"github.com/meikuraledutech/hookgraph/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Contract(t *testing.T) {
	testutil.RunStoreContract(t, open(t, ":memory:"))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphs.db")
	ctx := context.Background()

	s, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateSchema(ctx))
	_, err = s.CreateGraph(ctx, &hookgraph.Graph{ID: "g", Name: "durable", Definition: testutil.SampleDefinition()})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = open(t, path)
	g, err := s.GetGraph(ctx, "g")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "durable", g.Name)
	assert.Len(t, g.Definition.Nodes, 3)
	assert.Equal(t, "in", *g.Definition.Edges[0].TargetHandle)
}

func TestStore_ClearDeployment(t *testing.T) {
	s := open(t, ":memory:")
	ctx := context.Background()
	require.NoError(t, s.CreateSchema(ctx))
	_, err := s.CreateGraph(ctx, &hookgraph.Graph{ID: "g", Definition: hookgraph.EmptyDefinition()})
	require.NoError(t, err)

	_, err = s.SetDeployment(ctx, "g", hookgraph.Deployment{Fingerprint: "fp", Status: hookgraph.StatusActive})
	require.NoError(t, err)
	g, err := s.SetDeployment(ctx, "g", hookgraph.Deployment{Status: hookgraph.StatusDraft})
	require.NoError(t, err)
	assert.Empty(t, g.DeployFingerprint)
	assert.Nil(t, g.CompiledAt)
	assert.Equal(t, hookgraph.StatusDraft, g.Status)
	assert.NotNil(t, g.Definition.Nodes)
	assert.NotNil(t, g.Definition.Edges)
}
