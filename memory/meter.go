package memory

import (
	"context"
	"sync/atomic"

	"github.com/meikuraledutech/hookgraph"
)

// Meter counts deliveries in memory.
type Meter struct {
	used  atomic.Int64
	limit int64
}

// NewMeter returns a meter with the given limit. A non-positive limit means
// hookgraph.DefaultUsageLimit.
func NewMeter(limit int64) *Meter {
	if limit <= 0 {
		limit = hookgraph.DefaultUsageLimit
	}
	return &Meter{limit: limit}
}

// Usage returns the current count and the limit.
func (m *Meter) Usage(ctx context.Context) (hookgraph.Usage, error) {
	return hookgraph.Usage{Used: m.used.Load(), Limit: m.limit}, nil
}

// Add records n deliveries.
func (m *Meter) Add(ctx context.Context, n int64) (int64, error) {
	return m.used.Add(n), nil
}

// Reset sets the count back to zero.
func (m *Meter) Reset() {
	m.used.Store(0)
}
