package editor

import (
	"context"
	"sync"
	"time"

	"github.com/meikuraledutech/hookgraph"
)

// UsagePollInterval is how often Run refreshes usage.
const UsagePollInterval = 30 * time.Second

// UsageSource reports metered usage.
type UsageSource interface {
	Usage(ctx context.Context) (hookgraph.Usage, error)
}

// UsageMonitor caches the account's usage and refreshes it periodically.
// Until the first successful refresh it reports zero usage against the
// default limit.
type UsageMonitor struct {
	config
	src      UsageSource
	interval time.Duration

	mu       sync.Mutex
	usage    hookgraph.Usage
	err      error
	inFlight bool
}

// NewUsageMonitor returns a monitor polling src every interval. A
// non-positive interval means UsagePollInterval.
func NewUsageMonitor(src UsageSource, interval time.Duration, opts ...Option) *UsageMonitor {
	if interval <= 0 {
		interval = UsagePollInterval
	}
	return &UsageMonitor{
		config:   newConfig(opts),
		src:      src,
		interval: interval,
		usage:    hookgraph.Usage{Limit: hookgraph.DefaultUsageLimit},
	}
}

// Refresh fetches usage once. It is a no-op while another refresh is in
// flight. On failure the last known usage is kept.
func (m *UsageMonitor) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return nil
	}
	m.inFlight = true
	m.mu.Unlock()

	start := time.Now()
	u, err := m.src.Usage(ctx)

	m.mu.Lock()
	m.inFlight = false
	m.err = err
	if err == nil {
		if u.Limit <= 0 {
			u.Limit = hookgraph.DefaultUsageLimit
		}
		m.usage = u
	}
	m.mu.Unlock()

	m.emitter.Emit(Event{Op: OpUsage, Err: err, Dropped: err != nil, Duration: time.Since(start)})
	return err
}

// Run refreshes immediately and then on every tick until ctx is done.
func (m *UsageMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	_ = m.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.Refresh(ctx)
		}
	}
}

// Usage returns the last known usage.
func (m *UsageMonitor) Usage() hookgraph.Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

// OverLimit reports whether the last known usage has reached the limit.
func (m *UsageMonitor) OverLimit() bool {
	return m.Usage().OverLimit()
}

// Err returns the error of the last refresh, if any.
func (m *UsageMonitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}
