// Package redis keeps the usage meter in Redis so several backend replicas
// share one count.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meikuraledutech/hookgraph"
	backend "github.com/redis/go-redis/v9"
)

// Meter implements the usage meter with a Redis counter.
type Meter struct {
	client *backend.Client
	prefix string
	limit  int64
	window time.Duration
}

type Option func(*Meter)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(m *Meter) {
		m.prefix = prefix
	}
}

// WithLimit sets the delivery limit reported with usage.
func WithLimit(limit int64) Option {
	return func(m *Meter) {
		if limit > 0 {
			m.limit = limit
		}
	}
}

// WithWindow expires the counter this long after its first delivery, which
// resets usage for the next billing cycle.
func WithWindow(d time.Duration) Option {
	return func(m *Meter) {
		m.window = d
	}
}

// New creates a meter connected to address.
func New(address, password string, db int, opts ...Option) *Meter {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a meter from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Meter {
	m := &Meter{
		client: client,
		prefix: "hookgraph:",
		limit:  hookgraph.DefaultUsageLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Meter) key() string {
	return m.prefix + "usage"
}

// Usage returns the current count and the limit.
func (m *Meter) Usage(ctx context.Context) (hookgraph.Usage, error) {
	used, err := m.client.Get(ctx, m.key()).Int64()
	if errors.Is(err, backend.Nil) {
		used, err = 0, nil
	}
	if err != nil {
		return hookgraph.Usage{}, fmt.Errorf("failed to read usage: %w", err)
	}
	return hookgraph.Usage{Used: used, Limit: m.limit}, nil
}

// Add records n deliveries and returns the new total.
func (m *Meter) Add(ctx context.Context, n int64) (int64, error) {
	total, err := m.client.IncrBy(ctx, m.key(), n).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to record usage: %w", err)
	}
	if m.window > 0 && total == n {
		if err := m.client.Expire(ctx, m.key(), m.window).Err(); err != nil {
			return total, fmt.Errorf("failed to set usage window: %w", err)
		}
	}
	return total, nil
}

// Reset deletes the counter.
func (m *Meter) Reset(ctx context.Context) error {
	return m.client.Del(ctx, m.key()).Err()
}

// Close closes the underlying client.
func (m *Meter) Close() error {
	return m.client.Close()
}
