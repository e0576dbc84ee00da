// Package ingest drains decoded samples from a subscription into the
// in-memory series store and, optionally, a persistent recorder.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/eeg.report/internal/monitoring"
	"github.com/banshee-data/eeg.report/internal/series"
	"github.com/banshee-data/eeg.report/internal/thinkgear"
	"github.com/banshee-data/eeg.report/internal/timeutil"
)

const (
	DefaultFlushInterval = time.Second
	DefaultMaxBatch      = 4096
	// shutdown flushes run on a fresh context bounded by this timeout
	finalFlushTimeout = 5 * time.Second
)

// Recorder persists batches of samples for a capture session.
type Recorder interface {
	RecordSamples(ctx context.Context, sessionID string, samples []thinkgear.Sample) error
}

// Stats counts what the consumer has done.
type Stats struct {
	Consumed     uint64 `json:"consumed"`
	Recorded     uint64 `json:"recorded"`
	FlushErrors  uint64 `json:"flush_errors"`
	PendingBatch int    `json:"pending_batch"`
}

// Consumer is the single writer of a series.Store.
type Consumer struct {
	store     *series.Store
	rec       Recorder
	sessionID string
	interval  time.Duration
	maxBatch  int
	clock     timeutil.Clock

	pending []thinkgear.Sample

	consumed    atomic.Uint64
	recorded    atomic.Uint64
	flushErrors atomic.Uint64
	pendingLen  atomic.Int64
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithRecorder batches every sample to rec under sessionID.
func WithRecorder(rec Recorder, sessionID string) Option {
	return func(c *Consumer) {
		c.rec = rec
		c.sessionID = sessionID
	}
}

// WithFlushInterval sets how often pending samples are handed to the
// recorder.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Consumer) { c.interval = d }
}

// WithClock replaces the clock driving the flush ticker.
func WithClock(clk timeutil.Clock) Option {
	return func(c *Consumer) { c.clock = clk }
}

// WithMaxBatch flushes early once n samples are pending.
func WithMaxBatch(n int) Option {
	return func(c *Consumer) { c.maxBatch = n }
}

func NewConsumer(store *series.Store, opts ...Option) *Consumer {
	c := &Consumer{
		store:    store,
		interval: DefaultFlushInterval,
		maxBatch: DefaultMaxBatch,
		clock:    timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.interval <= 0 {
		c.interval = DefaultFlushInterval
	}
	if c.maxBatch <= 0 {
		c.maxBatch = DefaultMaxBatch
	}
	return c
}

// Run consumes ch until it is closed or ctx is done, then flushes whatever
// is still pending. It returns ctx.Err() on cancellation and nil when the
// channel closes.
func (c *Consumer) Run(ctx context.Context, ch <-chan thinkgear.Sample) error {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.finalFlush(ctx)
			return ctx.Err()

		case <-ticker.C():
			c.flush(ctx)

		case s, ok := <-ch:
			if !ok {
				c.finalFlush(ctx)
				return nil
			}
			c.Handle(s)
			if len(c.pending) >= c.maxBatch {
				c.flush(ctx)
			}
		}
	}
}

// Handle applies one sample. It is exported for callers that drive the
// consumer synchronously, such as offline decoding.
func (c *Consumer) Handle(s thinkgear.Sample) {
	c.consumed.Add(1)
	c.store.PushSample(s)
	if c.rec != nil {
		c.pending = append(c.pending, s)
		c.pendingLen.Store(int64(len(c.pending)))
	}
}

// Flush records pending samples now. Callers driving Handle directly use it
// in place of the ticker; it must not run concurrently with Run.
func (c *Consumer) Flush(ctx context.Context) { c.flush(ctx) }

func (c *Consumer) finalFlush(ctx context.Context) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
	defer cancel()
	c.flush(fctx)
}

// flush hands pending samples to the recorder. A failed batch is logged
// and dropped; the in-memory store already holds it.
func (c *Consumer) flush(ctx context.Context) {
	if c.rec == nil || len(c.pending) == 0 {
		return
	}
	batch := c.pending
	c.pending = nil
	c.pendingLen.Store(0)

	if err := c.rec.RecordSamples(ctx, c.sessionID, batch); err != nil {
		c.flushErrors.Add(1)
		monitoring.Logf("failed to record %d samples: %v", len(batch), err)
		return
	}
	c.recorded.Add(uint64(len(batch)))
}

// Stats may be called from any goroutine.
func (c *Consumer) Stats() Stats {
	return Stats{
		Consumed:     c.consumed.Load(),
		Recorded:     c.recorded.Load(),
		FlushErrors:  c.flushErrors.Load(),
		PendingBatch: int(c.pendingLen.Load()),
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("consumed=%d recorded=%d flush_errors=%d pending=%d",
		s.Consumed, s.Recorded, s.FlushErrors, s.PendingBatch)
}
