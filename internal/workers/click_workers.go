// Package workers runs the asynchronous click recording pool fed by the redirect handler.
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/axellelanca/clicktrail/internal/logging"
	"github.com/axellelanca/clicktrail/internal/metrics"
	"github.com/axellelanca/clicktrail/internal/models"
)

// DefaultRecordTimeout bounds the recording of a single event.
const DefaultRecordTimeout = 20 * time.Second

// Recorder persists one click event. Record must not fail outward.
type Recorder interface {
	Record(ctx context.Context, event models.ClickEvent)
}

// ClickPool is a fixed set of workers reading from a buffered channel.
// Enqueue never blocks the redirect path: a full buffer drops the event.
type ClickPool struct {
	events        chan models.ClickEvent
	recorder      Recorder
	recordTimeout time.Duration

	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// NewClickPool creates a pool with a buffer of bufferSize events.
func NewClickPool(recorder Recorder, bufferSize int, recordTimeout time.Duration) *ClickPool {
	if bufferSize < 0 {
		bufferSize = 0
	}
	if recordTimeout <= 0 {
		recordTimeout = DefaultRecordTimeout
	}
	return &ClickPool{
		events:        make(chan models.ClickEvent, bufferSize),
		recorder:      recorder,
		recordTimeout: recordTimeout,
	}
}

// Start launches workerCount workers. Each worker will listen on the same channel
// and exits once the channel is closed and drained.
func (p *ClickPool) Start(workerCount int) {
	if workerCount < 1 {
		workerCount = 1
	}
	logging.Info().Int("workers", workerCount).Int("buffer", cap(p.events)).Msg("Starting click workers")

	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *ClickPool) worker(id int) {
	defer p.wg.Done()
	for event := range p.events {
		metrics.ClickQueueDepth.Set(float64(len(p.events)))

		ctx, cancel := context.WithTimeout(context.Background(), p.recordTimeout)
		p.recorder.Record(ctx, event)
		cancel()
	}
	logging.Debug().Int("worker", id).Msg("Click worker stopped")
}

// Enqueue hands an event to the pool without blocking. It returns false when
// the event was dropped because the buffer is full or the pool is stopped.
func (p *ClickPool) Enqueue(event models.ClickEvent) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		metrics.ClickEventsDropped.Inc()
		logging.Warn().Uint("link_id", event.LinkID).Msg("Click pool stopped, event dropped")
		return false
	}

	select {
	case p.events <- event:
		metrics.ClickQueueDepth.Set(float64(len(p.events)))
		return true
	default:
		metrics.ClickEventsDropped.Inc()
		logging.Warn().Uint("link_id", event.LinkID).Msg("Click event channel is full, event dropped")
		return false
	}
}

// Stop closes the channel and waits for the workers to drain it, or for ctx to expire.
func (p *ClickPool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info().Msg("Click workers drained")
		return nil
	case <-ctx.Done():
		logging.Warn().Int("pending", len(p.events)).Msg("Click workers did not drain before shutdown deadline")
		return ctx.Err()
	}
}
