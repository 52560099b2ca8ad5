package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/empireo/brain/internal/core/domain"
	"github.com/empireo/brain/internal/core/ports"
	"github.com/empireo/brain/internal/infrastructure/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 5 * time.Second
)

// AuditDispatcher is an asynchronous ports.AuditSink. Events are routed to a
// fixed set of workers by actor id, so the events of one principal are
// written in the order they were emitted as long as that worker's queue has
// room. An event that finds the queue full is written inline and may land
// before earlier events of the same actor still waiting in the queue.
type AuditDispatcher struct {
	workers []chan domain.AuditEvent
	sink    ports.AuditSink
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	base   context.Context
}

var _ ports.AuditSink = (*AuditDispatcher)(nil)

// NewAuditDispatcher creates a dispatcher with numWorkers sharded workers in
// front of sink. If numWorkers <= 0, defaultWorkers is used; a bufferSize <= 0
// uses channelBuffer.
func NewAuditDispatcher(numWorkers, bufferSize int, sink ports.AuditSink, log zerolog.Logger) *AuditDispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if bufferSize <= 0 {
		bufferSize = channelBuffer
	}
	d := &AuditDispatcher{
		workers: make([]chan domain.AuditEvent, numWorkers),
		sink:    sink,
		log:     log,
		base:    context.Background(),
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuditEvent, bufferSize)
	}
	return d
}

// Start launches the worker goroutines. Workers keep running until Close;
// cancelling ctx does not drop queued events.
func (d *AuditDispatcher) Start(ctx context.Context) {
	d.base = context.WithoutCancel(ctx)
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(i, ch)
	}
}

// Append queues the event for its actor's worker. When the worker is
// saturated or the dispatcher is closed the event is written inline, ahead
// of anything still queued.
// It never returns an error: failures are logged and counted.
func (d *AuditDispatcher) Append(ctx context.Context, ev domain.AuditEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	d.mu.RLock()
	if !d.closed {
		idx := d.shardIndex(ev.ActorID)
		select {
		case d.workers[idx] <- ev:
			metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
			d.mu.RUnlock()
			return nil
		default:
			d.log.Warn().Int("worker_id", idx).Str("event_type", ev.EventType).Msg("audit queue full, writing inline")
		}
	}
	d.mu.RUnlock()

	d.write(context.WithoutCancel(ctx), ev)
	return nil
}

// Close stops accepting queued events and blocks until every worker has
// drained its channel.
func (d *AuditDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// shardIndex maps an actor id deterministically to a worker index.
// Anonymous events share the worker of the empty id.
func (d *AuditDispatcher) shardIndex(actorID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(actorID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *AuditDispatcher) runWorker(id int, ch <-chan domain.AuditEvent) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for ev := range ch {
		metrics.AuditQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
		d.write(d.base, ev)
	}
	metrics.AuditQueueDepth.WithLabelValues(label).Set(0)
}

func (d *AuditDispatcher) write(parent context.Context, ev domain.AuditEvent) {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()

	if err := d.sink.Append(ctx, ev); err != nil {
		metrics.AuditEventsTotal.WithLabelValues("failed").Inc()
		d.log.Error().Err(err).
			Str("event_type", ev.EventType).
			Str("actor_id", ev.ActorID).
			Msg("audit write failed")
		return
	}
	metrics.AuditEventsTotal.WithLabelValues("written").Inc()
}
