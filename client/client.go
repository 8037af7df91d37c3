// Package client talks to a hookgraph backend over HTTP. It implements
// editor.Backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberclient "github.com/gofiber/fiber/v3/client"
	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/internal/logging"
)

// DefaultTimeout bounds every request unless WithTimeout overrides it.
const DefaultTimeout = 30 * time.Second

var (
	// ErrUnauthorized is returned on a 401 response.
	ErrUnauthorized = errors.New("client: unauthorized")
	// ErrLimitExceeded matches a 402 response; the *APIError keeps the
	// backend's message.
	ErrLimitExceeded = hookgraph.ErrLimitExceeded
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("client: request failed with status %d", e.Status)
}

// Is maps well-known statuses onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case fiber.StatusUnauthorized:
		return target == ErrUnauthorized
	case fiber.StatusPaymentRequired:
		return target == hookgraph.ErrLimitExceeded
	case fiber.StatusNotFound:
		return target == hookgraph.ErrGraphNotFound
	case fiber.StatusConflict:
		return target == hookgraph.ErrNotDeployed
	}
	return false
}

// Client is a backend client. The zero value is not usable; call New.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	cc      *fiberclient.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout bounds each request. Zero or less keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cc = fiberclient.New().SetTimeout(c.timeout)
	return c
}

// ListGraphs returns every graph.
func (c *Client) ListGraphs(ctx context.Context) ([]hookgraph.Graph, error) {
	var out []hookgraph.Graph
	if err := c.do(ctx, fiber.MethodGet, "/graphs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateGraph creates an empty DRAFT graph.
func (c *Client) CreateGraph(ctx context.Context, name string) (*hookgraph.Graph, error) {
	def := hookgraph.EmptyDefinition()
	body := hookgraph.SaveRequest{Name: name, Definition: &def, Status: hookgraph.StatusDraft}
	var out hookgraph.Graph
	if err := c.do(ctx, fiber.MethodPost, "/graphs", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteGraph removes a graph.
func (c *Client) DeleteGraph(ctx context.Context, graphID string) error {
	return c.do(ctx, fiber.MethodDelete, graphPath(graphID, ""), nil, nil)
}

// SaveGraph persists a graph and bumps its version.
func (c *Client) SaveGraph(ctx context.Context, graphID string, u hookgraph.Update) (*hookgraph.Graph, error) {
	u.BumpVersion = true
	return c.put(ctx, graphID, u)
}

// Autosave persists a graph without bumping its version.
func (c *Client) Autosave(ctx context.Context, graphID string, u hookgraph.Update) (*hookgraph.Graph, error) {
	u.BumpVersion = false
	return c.put(ctx, graphID, u)
}

func (c *Client) put(ctx context.Context, graphID string, u hookgraph.Update) (*hookgraph.Graph, error) {
	def := u.Definition
	bump := u.BumpVersion
	body := hookgraph.SaveRequest{Name: u.Name, Definition: &def, Status: u.Status, BumpVersion: &bump}
	var out hookgraph.Graph
	if err := c.do(ctx, fiber.MethodPut, graphPath(graphID, ""), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeployState returns what is currently deployed for a graph.
func (c *Client) DeployState(ctx context.Context, graphID string) (hookgraph.DeployState, error) {
	var out hookgraph.DeployState
	err := c.do(ctx, fiber.MethodGet, graphPath(graphID, "deploy-state"), nil, &out)
	return out, err
}

// Compile provisions or deprovisions a graph from its saved definition.
func (c *Client) Compile(ctx context.Context, graphID string) (*hookgraph.CompileResult, error) {
	var out hookgraph.CompileResult
	if err := c.do(ctx, fiber.MethodPost, graphPath(graphID, "compile"), struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pause stops a deployed graph.
func (c *Client) Pause(ctx context.Context, graphID string) (hookgraph.Status, error) {
	return c.setStatus(ctx, graphID, "pause")
}

// Resume restarts a paused graph. Over the usage limit it fails with an
// error matching ErrLimitExceeded.
func (c *Client) Resume(ctx context.Context, graphID string) (hookgraph.Status, error) {
	return c.setStatus(ctx, graphID, "resume")
}

func (c *Client) setStatus(ctx context.Context, graphID, action string) (hookgraph.Status, error) {
	var out hookgraph.StatusResponse
	if err := c.do(ctx, fiber.MethodPost, graphPath(graphID, action), struct{}{}, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// Usage returns metered usage. A missing limit is reported as the default.
func (c *Client) Usage(ctx context.Context) (hookgraph.Usage, error) {
	out := hookgraph.Usage{Limit: hookgraph.DefaultUsageLimit}
	if err := c.do(ctx, fiber.MethodGet, "/usage", nil, &out); err != nil {
		return hookgraph.Usage{}, err
	}
	if out.Limit <= 0 {
		out.Limit = hookgraph.DefaultUsageLimit
	}
	return out, nil
}

// Trigger delivers a raw event to a deployed graph and returns the
// normalized payload.
func (c *Client) Trigger(ctx context.Context, graphID string, event map[string]any) (map[string]any, error) {
	var out map[string]any
	body := map[string]any{"event": event}
	if err := c.do(ctx, fiber.MethodPost, graphPath(graphID, "trigger"), body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func graphPath(graphID, action string) string {
	p := "/graphs/" + graphID
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	req := c.cc.R().
		SetContext(ctx).
		SetHeader(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if in != nil {
		req.SetJSON(in)
	}
	if c.token != "" {
		req.SetHeader(fiber.HeaderAuthorization, "Bearer "+c.token)
	}

	resp, err := req.Custom(c.baseURL+path, method)
	if err != nil {
		fiberclient.ReleaseRequest(req)
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Close()

	status, raw := resp.StatusCode(), resp.Body()
	if status < 200 || status > 299 {
		apiErr := &APIError{Status: status, Message: errorMessage(raw)}
		c.logger.Debug("request failed", "method", method, "path", path, "status", status, "err", apiErr)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage extracts {"message"} or {"error"} from an error body.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
