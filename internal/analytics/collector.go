package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oscara1796/vecsearch/pkg/config"
	"github.com/oscara1796/vecsearch/pkg/kafka"
	"github.com/oscara1796/vecsearch/pkg/logger"
	"github.com/oscara1796/vecsearch/pkg/metrics"
)

// Publisher is where batches of events end up: the Kafka producer, or the
// Aggregator directly when Kafka is disabled.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events from request paths and publishes them in
// batches off the hot path. Track never blocks; events are dropped once the
// buffer is full.
type Collector struct {
	publisher     Publisher
	eventCh       chan kafka.Event
	batchSize     int
	flushInterval time.Duration
	dropped       atomic.Int64
	metrics       *metrics.Metrics
	logger        *slog.Logger

	startOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// NewCollector builds a collector publishing to publisher. m may be nil.
func NewCollector(publisher Publisher, cfg config.AnalyticsConfig, m *metrics.Metrics) *Collector {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan kafka.Event, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		metrics:       m,
		logger:        logger.WithComponent("analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the publish loop. Cancelling ctx flushes what is buffered
// and stops the loop; Close does the same.
func (c *Collector) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.run(ctx)
		c.logger.Info("analytics collector started",
			"buffer_size", cap(c.eventCh),
			"batch_size", c.batchSize,
			"flush_interval", c.flushInterval,
		)
	})
}

func (c *Collector) TrackSearch(event SearchEvent) {
	event.Type = EventSearch
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	c.track(kafka.Event{Key: event.Query, Value: event})
}

func (c *Collector) TrackReload(event ReloadEvent) {
	event.Type = EventReload
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	c.track(kafka.Event{Key: string(EventReload), Value: event})
}

func (c *Collector) track(event kafka.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		if c.metrics != nil {
			c.metrics.AnalyticsDropped.Inc()
		}
		if c.dropped.Add(1)%1000 == 1 {
			c.logger.Warn("analytics event dropped (buffer full)", "dropped_total", c.dropped.Load())
		}
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops accepting events, flushes the buffer and waits for the loop.
// Start must have been called.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
	if dropped := c.Dropped(); dropped > 0 {
		c.logger.Warn("analytics collector closed with dropped events", "dropped_total", dropped)
	}
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flush(context.Background(), batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= c.batchSize {
				c.flush(ctx, batch)
				batch = make([]kafka.Event, 0, c.batchSize)
			}
		case <-ticker.C:
			c.flush(ctx, batch)
			batch = make([]kafka.Event, 0, c.batchSize)
		case <-ctx.Done():
			batch = c.drain(batch)
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.flush(flushCtx, batch)
			cancel()
			return
		}
	}
}

func (c *Collector) drain(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("analytics batch publish failed", "events", len(batch), "error", err)
		return
	}
	c.logger.Debug("analytics batch published", "events", len(batch))
}
