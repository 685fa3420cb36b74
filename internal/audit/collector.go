package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// BatchInserter persists a batch of events.
type BatchInserter interface {
	InsertAuditEvents(ctx context.Context, events []Event) error
}

// Collector buffers events and flushes them when the buffer reaches
// batchSize or every flushInterval. It is safe for concurrent use.
type Collector struct {
	store         BatchInserter
	buffer        []Event
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	done          chan struct{}
	stopped       chan struct{}
	stopOnce      sync.Once
	started       atomic.Bool

	// OnFlush, when set, observes every flush attempt.
	OnFlush func(n int, err error)
}

func NewCollector(store BatchInserter, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Collector{
		store:         store,
		buffer:        make([]Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// Start flushes on a timer until Stop is called or ctx is cancelled. It
// blocks, so run it in its own goroutine.
func (c *Collector) Start(ctx context.Context) {
	c.started.Store(true)
	defer close(c.stopped)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-ctx.Done():
			c.flush()
			return
		case <-c.done:
			c.flush()
			return
		}
	}
}

// Record buffers ev, flushing synchronously once the batch is full.
func (c *Collector) Record(ev Event) {
	c.mu.Lock()
	c.buffer = append(c.buffer, ev)
	full := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if full {
		c.flush()
	}
}

// flush logs failures; audit loss never fails the request that caused it.
func (c *Collector) flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]Event, 0, c.batchSize)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := c.store.InsertAuditEvents(ctx, batch)
	if err != nil {
		slog.Error("failed to flush audit events", "count", len(batch), "error", err)
	}
	if c.OnFlush != nil {
		c.OnFlush(len(batch), err)
	}
}

// Stop ends Start after a final flush and waits for it. Calling Stop on a
// collector that was never started flushes inline.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
	if !c.started.Load() {
		c.flush()
		return
	}
	select {
	case <-c.stopped:
	case <-time.After(15 * time.Second):
	}
}

// Flush writes any buffered events now.
func (c *Collector) Flush() {
	c.flush()
}
