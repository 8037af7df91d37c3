package editor_test

import (
	"errors"
	"testing"
	"time"

	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/editor"
	"github.com/meikuraledutech/hookgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutosave_DebouncesPositionalEdits(t *testing.T) {
	h := newHarness(t)
	s := h.create(t, "debounce")
	p := build(t, s)
	version := s.Graph().Version

	require.NoError(t, s.MoveNode(p.webhook, hookgraph.Position{X: 10, Y: 10}))
	assert.True(t, s.AutosavePending())
	assert.False(t, s.Dirty(), "moves do not make the graph dirty")

	h.sched.Advance(1500 * time.Millisecond)
	require.NoError(t, s.MoveNode(p.webhook, hookgraph.Position{X: 20, Y: 20}))
	assert.Equal(t, 1, h.sched.Pending(), "a new move supersedes the pending timer")

	h.sched.Advance(1500 * time.Millisecond)
	assert.Equal(t, 0, h.backend.Calls(testutil.OpAutosave), "first timer was cancelled")

	h.sched.Advance(500 * time.Millisecond)
	require.Equal(t, 1, h.backend.Calls(testutil.OpAutosave))
	assert.False(t, s.AutosavePending())

	saves := h.backend.Saves()
	last := saves[len(saves)-1]
	assert.False(t, last.BumpVersion)
	assert.Equal(t, "debounce", last.Name)
	assert.Equal(t, hookgraph.StatusDraft, last.Status)

	w, ok := s.LastSaved().Node(p.webhook)
	require.True(t, ok)
	assert.Equal(t, hookgraph.Position{X: 20, Y: 20}, w.Position)
	assert.Equal(t, version, s.Graph().Version, "autosave keeps the version")

	stored, err := h.backend.Store.GetGraph(t.Context(), s.Graph().ID)
	require.NoError(t, err)
	sw, _ := stored.Definition.Node(p.webhook)
	assert.Equal(t, 20.0, sw.Position.X)

	events := h.events.ops(editor.OpAutosave)
	require.Len(t, events, 1)
	assert.NoError(t, events[0].Err)
}

func TestAutosave_DefaultDelay(t *testing.T) {
	h := newHarness(t)
	s := h.create(t, "delay")
	p := build(t, s)

	require.NoError(t, s.MoveNode(p.webhook, hookgraph.Position{X: 1}))
	h.sched.Advance(editor.AutosaveDelay - time.Millisecond)
	assert.Equal(t, 0, h.backend.Calls(testutil.OpAutosave))
	h.sched.Advance(time.Millisecond)
	assert.Equal(t, 1, h.backend.Calls(testutil.OpAutosave))
}

func TestAutosave_CancelledByContentEdit(t *testing.T) {
	h := newHarness(t)
	s := h.create(t, "cancel")
	p := build(t, s)

	require.NoError(t, s.MoveNode(p.webhook, hookgraph.Position{X: 5}))
	require.True(t, s.AutosavePending())

	s.UpdateNodeData(p.webhook, map[string]any{"url": "https://changed"})
	assert.False(t, s.AutosavePending())
	assert.Equal(t, 0, h.sched.Pending())

	h.sched.Advance(10 * time.Second)
	assert.Equal(t, 0, h.backend.Calls(testutil.OpAutosave))
}

func TestAutosave_MixedBatchCancels(t *testing.T) {
	h := newHarness(t)
	s := h.create(t, "mixed")
	p := build(t, s)

	require.NoError(t, s.MoveNode(p.webhook, hookgraph.Position{X: 5}))
	require.NoError(t, s.ApplyNodeChanges([]editor.NodeChange{
		{Kind: editor.ChangePosition, ID: p.formatter, Position: hookgraph.Position{X: 7}},
		{Kind: editor.ChangeData, ID: p.formatter, Data: map[string]any{"template": "x"}},
	}))
	assert.False(t, s.AutosavePending())
}

func TestAutosave_NotScheduledWhileDirty(t *testing.T) {
	h := newHarness(t)
	s := h.create(t, "dirty")
	p := build(t, s)

	s.UpdateNodeData(p.webhook, map[string]any{"url": "https://changed"})
	require.True(t, s.Dirty())

	require.NoError(t, s.MoveNode(p.webhook, hookgraph.Position{X: 5}))
	assert.False(t, s.AutosavePending(), "unsaved content is not autosaved")
}

func TestAutosave_CancelledByStructuralEdits(t *testing.T) {
	h := newHarness(t)
	s := h.create(t, "structural")
	p := build(t, s)

	require.NoError(t, s.MoveNode(p.webhook, hookgraph.Position{X: 5}))
	_, err := s.AddNode("Formatter", nil, hookgraph.Position{})
	require.NoError(t, err)
	assert.False(t, s.AutosavePending(), "add cancels")

	s.Revert()
	require.NoError(t, s.MoveNode(p.webhook, hookgraph.Position{X: 6}))
	require.NoError(t, s.RemoveEdge(p.toWebhook))
	assert.False(t, s.AutosavePending(), "edge removal cancels")

	s.Revert()
	require.NoError(t, s.MoveNode(p.webhook, hookgraph.Position{X: 7}))
	s.Close()
	assert.False(t, s.AutosavePending(), "close cancels")
}

func TestAutosave_FailureIsDropped(t *testing.T) {
	h := newHarness(t)
	s := h.create(t, "failure")
	p := build(t, s)
	baseline := s.LastSaved()

	h.backend.Fail(testutil.OpAutosave, errors.New("503 service unavailable"))
	require.NoError(t, s.MoveNode(p.webhook, hookgraph.Position{X: 99}))
	h.sched.Advance(editor.AutosaveDelay)

	assert.Equal(t, 1, h.backend.Calls(testutil.OpAutosave))
	assert.True(t, hookgraph.Equal(baseline, s.LastSaved()), "baseline untouched")
	assert.False(t, s.AutosavePending(), "no retry")

	events := h.events.ops(editor.OpAutosave)
	require.Len(t, events, 1)
	assert.Error(t, events[0].Err)
	assert.True(t, events[0].Dropped)

	// The session stays usable and the next move reschedules.
	h.backend.Fail(testutil.OpAutosave, nil)
	require.NoError(t, s.MoveNode(p.webhook, hookgraph.Position{X: 100}))
	h.sched.Advance(editor.AutosaveDelay)
	w, _ := s.LastSaved().Node(p.webhook)
	assert.Equal(t, 100.0, w.Position.X)
}

func TestAutosave_MissingGraphIsDropped(t *testing.T) {
	sched := testutil.NewManualScheduler()
	backend := testutil.NewFakeBackend(100)
	s := editor.Open(backend, nil, hookgraph.Graph{ID: "gone", Definition: testutil.SampleDefinition()},
		editor.WithScheduler(sched))

	require.NoError(t, s.MoveNode("t1", hookgraph.Position{X: 3}))
	sched.Advance(editor.AutosaveDelay)

	// The graph does not exist on the backend; the failure is swallowed.
	assert.Equal(t, 1, backend.Calls(testutil.OpAutosave))
	assert.Equal(t, 0.0, s.LastSaved().Nodes[0].Position.X)
}
