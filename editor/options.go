package editor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/meikuraledutech/hookgraph/internal/logging"
)

// AutosaveDelay is the debounce applied to positional edits.
const AutosaveDelay = 2000 * time.Millisecond

type config struct {
	logger        *slog.Logger
	emitter       Emitter
	scheduler     Scheduler
	now           func() time.Time
	newID         func() string
	autosaveDelay time.Duration
	timeout       time.Duration
	usage         *UsageMonitor
	base          context.Context
}

func newConfig(opts []Option) config {
	c := config{
		logger:        logging.NewNop(),
		emitter:       nopEmitter{},
		scheduler:     ClockScheduler,
		now:           time.Now,
		newID:         uuid.NewString,
		autosaveDelay: AutosaveDelay,
		timeout:       15 * time.Second,
		base:          context.Background(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Option configures sessions and workspaces.
type Option func(*config)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithEmitter registers an observer for synchronization events.
func WithEmitter(e Emitter) Option {
	return func(c *config) {
		c.emitter = e
	}
}

// WithScheduler replaces the wall-clock scheduler used for autosave.
func WithScheduler(s Scheduler) Option {
	return func(c *config) {
		c.scheduler = s
	}
}

// WithClock sets the time source for deploy timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithIDGenerator sets how new node and edge ids are minted.
func WithIDGenerator(f func() string) Option {
	return func(c *config) {
		c.newID = f
	}
}

// WithAutosaveDelay overrides the 2s debounce.
func WithAutosaveDelay(d time.Duration) Option {
	return func(c *config) {
		c.autosaveDelay = d
	}
}

// WithRequestTimeout bounds background requests (autosave).
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithUsage attaches a usage monitor used to gate resume.
func WithUsage(m *UsageMonitor) Option {
	return func(c *config) {
		c.usage = m
	}
}

// WithBaseContext sets the parent context of background requests.
func WithBaseContext(ctx context.Context) Option {
	return func(c *config) {
		c.base = ctx
	}
}
