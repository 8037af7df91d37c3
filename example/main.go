package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/client"
	"github.com/meikuraledutech/hookgraph/editor"
	"github.com/meikuraledutech/hookgraph/internal/logging"
	"github.com/meikuraledutech/hookgraph/registry"
)

func main() {
	ctx := context.Background()

	apiURL := os.Getenv("HOOKGRAPH_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:3000"
	}

	logger := logging.New(logging.ParseLevel(os.Getenv("HOOKGRAPH_LOG_LEVEL")))
	backend := client.New(apiURL, client.WithToken(os.Getenv("HOOKGRAPH_TOKEN")), client.WithLogger(logger))
	reg := registry.Default()

	// Wire the editor against the remote backend.
	usage := editor.NewUsageMonitor(backend, 0)
	ws := editor.NewWorkspace(backend, reg,
		editor.WithLogger(logger),
		editor.WithEmitter(editor.LogEmitter(logger)),
		editor.WithUsage(usage),
	)
	if err := ws.Load(ctx); err != nil {
		log.Fatalf("load: %v", err)
	}
	if err := usage.Refresh(ctx); err != nil {
		log.Printf("usage: %v", err)
	}

	// ── Create a graph and build the pipeline ─────────────────────────
	s, err := ws.Create(ctx, "transfers to webhook")
	if err != nil {
		log.Fatalf("create: %v", err)
	}
	defer s.Close()

	pctx := registry.Context{Graph: s.Graph()}
	for _, item := range reg.Palette(pctx, "", s.Nodes()) {
		fmt.Printf("palette: %-16s available=%v\n", item.Label, item.Err == nil)
	}

	trigger, err := s.AddNode(hookgraph.TriggerType, map[string]any{
		"address":    "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		"networkKey": "ethereum-mainnet",
		"eventAbi":   `{"name":"Transfer","inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256"}]}`,
		"value":      "0",
	}, hookgraph.Position{X: 0, Y: 0})
	if err != nil {
		log.Fatalf("add trigger: %v", err)
	}

	// A second trigger is refused by the instance cap.
	if _, err := s.AddNode(hookgraph.TriggerType, nil, hookgraph.Position{X: 0, Y: 200}); err != nil {
		fmt.Println("rejected:", err)
	}

	entry, _ := reg.Entry("Formatter")
	formatter, err := s.AddFromPalette(entry, pctx, hookgraph.Position{X: 250, Y: 0})
	if err != nil {
		log.Fatalf("add formatter: %v", err)
	}
	webhook, err := s.AddNode("Webhook", map[string]any{"url": "https://example.com/hook"}, hookgraph.Position{X: 500, Y: 0})
	if err != nil {
		log.Fatalf("add webhook: %v", err)
	}

	if _, err := s.Connect(hookgraph.Edge{Source: trigger.ID, Target: formatter.ID, TargetHandle: hookgraph.Handle("in")}); err != nil {
		log.Fatalf("connect: %v", err)
	}
	if _, err := s.Connect(hookgraph.Edge{Source: formatter.ID, Target: webhook.ID, TargetHandle: hookgraph.Handle("in")}); err != nil {
		log.Fatalf("connect: %v", err)
	}

	f, _ := s.Node(formatter.ID)
	fmt.Println("\nformatter parameters:")
	printJSON(f.Data[hookgraph.ParamsKey])

	// ── Save and deploy ───────────────────────────────────────────────
	fmt.Printf("\ndirty=%v showDeploy=%v\n", s.Dirty(), s.ShowDeploy())
	if err := s.Save(ctx); err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Printf("saved: dirty=%v showDeploy=%v\n", s.Dirty(), s.ShowDeploy())

	res, err := s.Deploy(ctx)
	if err != nil {
		log.Fatalf("deploy: %v", err)
	}
	fmt.Println("\ndeployed:")
	printJSON(res)

	// ── Pause and resume ──────────────────────────────────────────────
	if err := s.Pause(ctx); err != nil {
		log.Fatalf("pause: %v", err)
	}
	if !s.ResumeAllowed() {
		fmt.Println("resume disabled: over usage limit")
	} else if err := s.Resume(ctx); errors.Is(err, client.ErrLimitExceeded) {
		fmt.Println("resume refused:", err)
	} else if err != nil {
		log.Fatalf("resume: %v", err)
	}
	fmt.Println("status:", s.Graph().Status)

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := ws.Delete(ctx, s.Graph().ID); err != nil {
		log.Fatalf("delete: %v", err)
	}
	fmt.Println("\ngraph deleted")
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
