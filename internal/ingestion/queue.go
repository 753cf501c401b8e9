package ingestion

import (
	"sync"
	"time"

	"solana-meme-radar/internal/observability"
)

// DefaultQueueCapacity bounds the work queue; overflow drops the oldest entry.
const DefaultQueueCapacity = 512

// WorkQueue is the bounded FIFO of mints awaiting a metric refresh. A mint
// appears at most once; trade-driven enqueues additionally honor a cooldown
// so hot tokens do not monopolize the queue. Backpressure into the stream is
// impossible, so overflow drops the oldest entry and counts it.
type WorkQueue struct {
	mu       sync.Mutex
	items    []string
	queued   map[string]bool
	cooldown map[string]int64 // mint -> cooldown expiry (ms)

	capacity       int
	cooldownWindow time.Duration

	drops uint64

	now func() time.Time
}

// NewWorkQueue creates a queue with the given capacity and requeue cooldown.
func NewWorkQueue(capacity int, cooldownWindow time.Duration) *WorkQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &WorkQueue{
		items:          make([]string, 0, capacity),
		queued:         make(map[string]bool),
		cooldown:       make(map[string]int64),
		capacity:       capacity,
		cooldownWindow: cooldownWindow,
		now:            time.Now,
	}
}

// Enqueue adds a mint regardless of cooldown. Used for create and migration
// events, which always warrant a fresh look. Returns false if the mint is
// already queued.
func (q *WorkQueue) Enqueue(mint string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueueLocked(mint)
}

// TryEnqueue adds a mint unless it was enqueued within the cooldown window.
// Used for trade events.
func (q *WorkQueue) TryEnqueue(mint string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if expiry, ok := q.cooldown[mint]; ok && q.now().UnixMilli() < expiry {
		return false
	}
	return q.enqueueLocked(mint)
}

func (q *WorkQueue) enqueueLocked(mint string) bool {
	if q.queued[mint] {
		return false
	}

	if len(q.items) >= q.capacity {
		oldest := q.items[0]
		q.items = q.items[1:]
		delete(q.queued, oldest)
		q.drops++
		observability.RecordQueueDrop()
	}

	q.items = append(q.items, mint)
	q.queued[mint] = true
	q.cooldown[mint] = q.now().Add(q.cooldownWindow).UnixMilli()

	observability.UpdateQueueDepth(len(q.items))
	return true
}

// Drain removes and returns up to max queued mints in FIFO order; max <= 0
// drains everything.
func (q *WorkQueue) Drain(max int) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]string, n)
	copy(out, q.items[:n])
	q.items = q.items[n:]
	for _, mint := range out {
		delete(q.queued, mint)
	}

	observability.UpdateQueueDepth(len(q.items))
	return out
}

// Sweep drops expired cooldown entries and returns how many were removed.
func (q *WorkQueue) Sweep() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	nowMs := q.now().UnixMilli()
	removed := 0
	for mint, expiry := range q.cooldown {
		if nowMs >= expiry {
			delete(q.cooldown, mint)
			removed++
		}
	}
	return removed
}

// Len returns the number of queued mints.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drops returns the count of oldest-entry evictions.
func (q *WorkQueue) Drops() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drops
}
