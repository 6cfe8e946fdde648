package ingest

import (
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
	"github.com/holowatch/marketpulse/domain"
)

// DepthIngest receives incremental depth messages pushed by the transport
// layer and buffers them in wire arrival order for a SyncWorker to drain.
// It never blocks the producer and never injects synthetic updates on
// connection-lifecycle events — those are log-only at the transport layer.
type DepthIngest struct {
	mu    sync.Mutex
	queue deque.Deque[*domain.DepthUpdate]

	running atomic.Bool
}

func NewDepthIngest() *DepthIngest {
	return &DepthIngest{}
}

// Start is idempotent; it marks the ingest as accepting pushes.
func (d *DepthIngest) Start() {
	d.running.Store(true)
}

// Stop is idempotent; pushes after Stop are dropped.
func (d *DepthIngest) Stop() {
	d.running.Store(false)
}

// Push enqueues a parsed update. Malformed messages (U > u) must be filtered
// out by the caller before reaching Push.
func (d *DepthIngest) Push(update *domain.DepthUpdate) {
	if !d.running.Load() {
		return
	}
	d.mu.Lock()
	d.queue.PushBack(update)
	d.mu.Unlock()
}

// Drain returns and clears all buffered updates. It holds the lock only long
// enough to swap the queue out, so it never blocks the producer for long.
func (d *DepthIngest) Drain() []*domain.DepthUpdate {
	d.mu.Lock()
	q := d.queue
	d.queue = deque.Deque[*domain.DepthUpdate]{}
	d.mu.Unlock()

	n := q.Len()
	if n == 0 {
		return nil
	}
	out := make([]*domain.DepthUpdate, n)
	for i := 0; i < n; i++ {
		out[i] = q.PopFront()
	}
	return out
}
