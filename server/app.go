package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/meikuraledutech/hookgraph"
	"github.com/meikuraledutech/hookgraph/internal/logging"
)

type options struct {
	logger     *slog.Logger
	token      string
	middleware []fiber.Handler
	metrics    http.Handler
}

// Option configures the HTTP app.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithToken requires "Authorization: Bearer <token>" on every API route.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithMiddleware installs handlers in front of every route.
func WithMiddleware(h ...fiber.Handler) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, h...)
	}
}

// WithMetricsHandler mounts h at GET /metrics, outside authentication.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *options) {
		o.metrics = h
	}
}

// New builds the REST app for svc.
func New(svc *Service, opts ...Option) *fiber.App {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	app := fiber.New()
	for _, h := range o.middleware {
		app.Use(h)
	}

	if o.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(o.metrics))
	}
	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if o.token != "" {
		app.Use(bearer(o.token))
	}
	fail := failer(o.logger)

	// ── Graphs ────────────────────────────────────────────────────────
	app.Get("/graphs", func(c fiber.Ctx) error {
		graphs, err := svc.ListGraphs(c.Context())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(graphs)
	})

	app.Post("/graphs", func(c fiber.Ctx) error {
		var req hookgraph.SaveRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		g, err := svc.CreateGraph(c.Context(), req)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(201).JSON(g)
	})

	app.Get("/graphs/:id", func(c fiber.Ctx) error {
		g, err := svc.GetGraph(c.Context(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(g)
	})

	app.Put("/graphs/:id", func(c fiber.Ctx) error {
		var req hookgraph.SaveRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		g, err := svc.UpdateGraph(c.Context(), c.Params("id"), req)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(g)
	})

	app.Delete("/graphs/:id", func(c fiber.Ctx) error {
		if err := svc.DeleteGraph(c.Context(), c.Params("id")); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{})
	})

	// ── Deployment ────────────────────────────────────────────────────
	app.Get("/graphs/:id/deploy-state", func(c fiber.Ctx) error {
		state, err := svc.DeployState(c.Context(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(state)
	})

	app.Post("/graphs/:id/compile", func(c fiber.Ctx) error {
		res, err := svc.Compile(c.Context(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(res)
	})

	app.Post("/graphs/:id/pause", func(c fiber.Ctx) error {
		status, err := svc.Pause(c.Context(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(hookgraph.StatusResponse{Status: status})
	})

	app.Post("/graphs/:id/resume", func(c fiber.Ctx) error {
		status, err := svc.Resume(c.Context(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(hookgraph.StatusResponse{Status: status})
	})

	app.Post("/graphs/:id/trigger", func(c fiber.Ctx) error {
		var req struct {
			Event map[string]any `json:"event"`
		}
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		payload, err := svc.Trigger(c.Context(), c.Params("id"), req.Event)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(payload)
	})

	// ── Usage ─────────────────────────────────────────────────────────
	app.Get("/usage", func(c fiber.Ctx) error {
		u, err := svc.Usage(c.Context())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(u)
	})

	return app
}

func bearer(token string) fiber.Handler {
	return func(c fiber.Ctx) error {
		got, ok := strings.CutPrefix(c.Get("Authorization"), "Bearer ")
		if !ok || got != token {
			return c.Status(401).JSON(fiber.Map{"error": "unauthorized"})
		}
		return c.Next()
	}
}

// failer maps service errors onto status codes.
func failer(logger *slog.Logger) func(fiber.Ctx, error) error {
	return func(c fiber.Ctx, err error) error {
		var verr *hookgraph.ValidationError
		switch {
		case errors.Is(err, hookgraph.ErrGraphNotFound):
			return c.Status(404).JSON(fiber.Map{"error": "graph not found"})
		case errors.Is(err, hookgraph.ErrLimitExceeded):
			return c.Status(402).JSON(fiber.Map{"message": err.Error()})
		case errors.Is(err, hookgraph.ErrNotDeployed):
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, hookgraph.ErrCycleDetected):
			return c.Status(422).JSON(fiber.Map{"error": "cycle detected"})
		case errors.Is(err, hookgraph.ErrDuplicateNode), errors.Is(err, hookgraph.ErrDanglingEdge), errors.As(err, &verr):
			return c.Status(422).JSON(fiber.Map{"error": err.Error()})
		}
		logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
}
