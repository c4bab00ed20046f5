// Package pipeline fans raw filesystem events out to a fixed pool of
// worker goroutines, sharded by PID so that every process's events are
// processed in the order they arrived while unrelated processes are
// handled concurrently — generalizing the worker-pool shape of the
// teacher's event processor to a per-PID ordering guarantee the Pattern
// Detector's sliding window depends on.
package pipeline

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/tarekazabou/ransomguard/internal/eventlog"
)

// Metrics tracks pipeline throughput.
type Metrics struct {
	Received  int64
	Processed int64
	Dropped   int64
}

// Handler processes one event end to end: persisting it, updating the
// pattern detector, scoring, and responding.
type Handler func(eventlog.Event)

// Pipeline is a fixed pool of shards, one goroutine each, partitioned by
// PID so same-PID events always land on the same shard and keep their
// arrival order.
type Pipeline struct {
	shards  []chan eventlog.Event
	handler Handler
	wg      sync.WaitGroup
	metrics Metrics
	log     *logrus.Entry
}

// New builds a Pipeline with shardCount goroutines, each with a channel
// buffer of bufferSize. handler runs on the shard goroutine for every
// event it receives.
func New(shardCount, bufferSize int, handler Handler) *Pipeline {
	if shardCount < 1 {
		shardCount = 1
	}
	p := &Pipeline{
		shards:  make([]chan eventlog.Event, shardCount),
		handler: handler,
		log:     logrus.WithField("component", "pipeline"),
	}
	for i := range p.shards {
		p.shards[i] = make(chan eventlog.Event, bufferSize)
	}
	return p
}

// Start launches one worker goroutine per shard. It returns immediately;
// workers run until ctx is canceled and every shard channel drains.
func (p *Pipeline) Start(ctx context.Context) {
	for i, shard := range p.shards {
		p.wg.Add(1)
		go p.worker(ctx, i, shard)
	}
}

func (p *Pipeline) worker(ctx context.Context, id int, shard <-chan eventlog.Event) {
	defer p.wg.Done()
	log := p.log.WithField("shard", id)
	for {
		select {
		case <-ctx.Done():
			log.Debug("shard stopping on context cancellation, draining buffered events")
			for {
				select {
				case ev, ok := <-shard:
					if !ok {
						return
					}
					p.handler(ev)
					atomic.AddInt64(&p.metrics.Processed, 1)
				default:
					return
				}
			}
		case ev, ok := <-shard:
			if !ok {
				log.Debug("shard channel closed")
				return
			}
			p.handler(ev)
			atomic.AddInt64(&p.metrics.Processed, 1)
		}
	}
}

// Submit routes ev to its PID's shard. It never blocks past the shard's
// buffer: if the shard is full, the event is dropped and counted rather
// than stalling the caller (typically a filesystem watch callback).
func (p *Pipeline) Submit(ev eventlog.Event) bool {
	atomic.AddInt64(&p.metrics.Received, 1)
	shard := p.shards[p.shardFor(ev)]
	select {
	case shard <- ev:
		return true
	default:
		atomic.AddInt64(&p.metrics.Dropped, 1)
		p.log.WithField("path", ev.Path).Warn("shard buffer full, dropping event")
		return false
	}
}

func (p *Pipeline) shardFor(ev eventlog.Event) int {
	if !ev.HasPID {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte{byte(ev.PID), byte(ev.PID >> 8), byte(ev.PID >> 16), byte(ev.PID >> 24)})
	return int(h.Sum32() % uint32(len(p.shards)))
}

// Shutdown closes every shard channel and waits for workers to drain.
func (p *Pipeline) Shutdown() {
	for _, shard := range p.shards {
		close(shard)
	}
	p.wg.Wait()
}

// Metrics returns a point-in-time copy of pipeline throughput counters.
func (p *Pipeline) Metrics() Metrics {
	return Metrics{
		Received:  atomic.LoadInt64(&p.metrics.Received),
		Processed: atomic.LoadInt64(&p.metrics.Processed),
		Dropped:   atomic.LoadInt64(&p.metrics.Dropped),
	}
}
