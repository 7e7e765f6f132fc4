package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
)

// Handler processes one normalized reading for a plate.
type Handler interface {
	HandleReading(ctx context.Context, r *models.TelemetryReading)
}

// Dispatcher routes readings to one worker goroutine per plate, so two
// transitions for the same plate are never evaluated concurrently while
// different plates process fully in parallel.
type Dispatcher struct {
	mu      sync.Mutex
	workers map[string]chan *models.TelemetryReading
	closed  bool

	handler   Handler
	queueSize int
	logger    *zap.Logger

	ctx context.Context
	wg  sync.WaitGroup
}

// NewDispatcher builds dispatcher; ctx bounds the lifetime of all workers.
func NewDispatcher(ctx context.Context, handler Handler, queueSize int, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		workers:   make(map[string]chan *models.TelemetryReading),
		handler:   handler,
		queueSize: queueSize,
		logger:    logger,
		ctx:       ctx,
	}
}

// Dispatch queues a reading on its plate's worker, spawning the worker on
// first sight of the plate. A full queue drops the reading rather than
// blocking the stream consumer.
func (d *Dispatcher) Dispatch(r *models.TelemetryReading) {
	ch := d.worker(r.Plate)
	if ch == nil {
		return
	}
	select {
	case ch <- r:
	default:
		d.logger.Warn("plate queue full, reading dropped",
			zap.String("plate", r.Plate),
			zap.Time("device_time", r.DeviceTime))
	}
}

// Close stops accepting readings, drains the workers and waits for them.
func (d *Dispatcher) Close() {
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

func (d *Dispatcher) worker(plate string) chan *models.TelemetryReading {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	ch, ok := d.workers[plate]
	if !ok {
		ch = make(chan *models.TelemetryReading, d.queueSize)
		d.workers[plate] = ch
		d.wg.Add(1)
		go d.run(plate, ch)
	}
	return ch
}

func (d *Dispatcher) run(plate string, ch <-chan *models.TelemetryReading) {
	defer d.wg.Done()
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return
			}
			d.process(r)
		case <-d.ctx.Done():
			return
		}
	}
}

// process shields the worker loop: a panic while handling one event is
// surfaced as a recorded failure and must not stop ingestion for the plate,
// let alone the fleet.
func (d *Dispatcher) process(r *models.TelemetryReading) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("panic while processing reading",
				zap.String("plate", r.Plate),
				zap.Any("panic", rec),
				zap.Stack("stack"))
		}
	}()
	d.handler.HandleReading(d.ctx, r)
}
