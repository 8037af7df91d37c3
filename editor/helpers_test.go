package editor_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/editor"
	"github.com/meikuraledutech/hookgraph/internal/testutil"
	"github.com/meikuraledutech/hookgraph/registry"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []editor.Event
}

func (r *recorder) Emit(e editor.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ops(op editor.Op) []editor.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []editor.Event
	for _, e := range r.events {
		if e.Op == op {
			out = append(out, e)
		}
	}
	return out
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type harness struct {
	backend *testutil.FakeBackend
	sched   *testutil.ManualScheduler
	events  *recorder
	reg     *registry.Registry
	ws      *editor.Workspace
}

// newHarness wires a workspace to a fake backend and a manual scheduler.
// extra may add options that need the harness, such as a usage monitor.
func newHarness(t *testing.T, extra ...func(*harness) editor.Option) *harness {
	t.Helper()
	h := &harness{
		backend: testutil.NewFakeBackend(100),
		sched:   testutil.NewManualScheduler(),
		events:  &recorder{},
		reg:     registry.Default(),
	}
	opts := []editor.Option{
		editor.WithScheduler(h.sched),
		editor.WithEmitter(h.events),
		editor.WithClock(func() time.Time { return fixedNow }),
		editor.WithIDGenerator(sequentialIDs()),
	}
	for _, f := range extra {
		opts = append(opts, f(h))
	}
	h.ws = editor.NewWorkspace(h.backend, h.reg, opts...)
	return h
}

// create selects a new empty graph.
func (h *harness) create(t *testing.T, name string) *editor.Session {
	t.Helper()
	s, err := h.ws.Create(context.Background(), name)
	require.NoError(t, err)
	return s
}

// pipeline is the ids of a trigger -> formatter -> webhook graph.
type pipeline struct {
	trigger, formatter, webhook string
	toFormatter, toWebhook      string
}

// build adds a configured pipeline to s and saves it, leaving s clean.
func build(t *testing.T, s *editor.Session) pipeline {
	t.Helper()
	trigger, err := s.AddNode(hookgraph.TriggerType, testutil.TriggerData(), hookgraph.Position{X: 0, Y: 0})
	require.NoError(t, err)
	formatter, err := s.AddNode("Formatter", map[string]any{"template": "{{value}}"}, hookgraph.Position{X: 200, Y: 0})
	require.NoError(t, err)
	webhook, err := s.AddNode("Webhook", map[string]any{"url": "https://example.com/hook"}, hookgraph.Position{X: 400, Y: 0})
	require.NoError(t, err)

	e1, err := s.Connect(hookgraph.Edge{Source: trigger.ID, Target: formatter.ID, TargetHandle: hookgraph.Handle("in")})
	require.NoError(t, err)
	e2, err := s.Connect(hookgraph.Edge{Source: formatter.ID, Target: webhook.ID, TargetHandle: hookgraph.Handle("in")})
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background()))
	require.False(t, s.Dirty())
	return pipeline{
		trigger: trigger.ID, formatter: formatter.ID, webhook: webhook.ID,
		toFormatter: e1.ID, toWebhook: e2.ID,
	}
}
