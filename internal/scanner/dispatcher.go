package scanner

import (
	"context"
	"sync"

	"github.com/clousec/clousec/events/modules/cloudevents"
	"github.com/clousec/clousec/internal/metrics"
	"go.uber.org/zap"
)

// TargetScanner is implemented by Scanner.
type TargetScanner interface {
	ScanTarget(ctx context.Context, t cloudevents.Target) error
}

// Debouncer coalesces targets that are already pending. Allow claims the key
// and reports whether it was free; Release frees it again.
type Debouncer interface {
	Allow(ctx context.Context, key string) bool
	Release(ctx context.Context, key string)
}

var _ cloudevents.Dispatcher = (*Dispatcher)(nil)

// Dispatcher decouples event ingestion from scanning with a bounded queue.
type Dispatcher struct {
	queue     chan cloudevents.Target
	scanner   TargetScanner
	debouncer Debouncer
	workers   int
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewDispatcher returns a dispatcher; debouncer may be nil.
func NewDispatcher(scanner TargetScanner, queueSize, workers int, debouncer Debouncer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{
		queue:     make(chan cloudevents.Target, queueSize),
		scanner:   scanner,
		debouncer: debouncer,
		workers:   workers,
		logger:    logger,
	}
}

// Start launches the workers. They stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case target := <-d.queue:
					metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
					// Events arriving while this scan runs may describe a newer state.
					d.release(ctx, target)
					if err := d.scanner.ScanTarget(ctx, target); err != nil {
						d.logger.Warn("Targeted scan failed",
							zap.String("kind", string(target.Kind)),
							zap.String("resource_id", target.ResourceID),
							zap.Error(err))
					}
				}
			}
		}()
	}
}

// Wait blocks until the workers have stopped.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Submit queues target without blocking. A target already waiting in the
// queue is not queued twice. A full queue drops the target; the next sweep
// covers it.
func (d *Dispatcher) Submit(ctx context.Context, target cloudevents.Target) bool {
	if d.debouncer != nil && !d.debouncer.Allow(ctx, target.Key()) {
		metrics.DispatchDebouncedTotal.Inc()
		d.logger.Debug("Target debounced", zap.String("target", target.Key()))
		return false
	}

	select {
	case d.queue <- target:
		metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
		return true
	default:
		d.release(ctx, target)
		metrics.DispatchDroppedTotal.Inc()
		d.logger.Warn("Dispatch queue full, dropping target", zap.String("target", target.Key()))
		return false
	}
}

func (d *Dispatcher) release(ctx context.Context, target cloudevents.Target) {
	if d.debouncer != nil {
		d.debouncer.Release(ctx, target.Key())
	}
}
