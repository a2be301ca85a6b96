package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/vidtags/internal/metrics"
)

// Handler reacts to an event. Errors are logged and swallowed.
type Handler func(ctx context.Context, e Event) error

// Publisher is the side the orchestrator depends on.
type Publisher interface {
	Publish(e Event)
}

// Options sizes the dispatcher.
type Options struct {
	Workers int // default 4
	Buffer  int // default 256
}

// Dispatcher delivers events to subscribers on a fixed worker pool.
// Delivery is at most once: events published while the buffer is full, or after
// Shutdown, are dropped.
type Dispatcher struct {
	log     *zap.Logger
	metrics *metrics.Metrics

	hmu      sync.RWMutex
	handlers map[Type][]Handler

	// qmu orders Publish against the close of queue.
	qmu    sync.RWMutex
	closed bool
	queue  chan Event

	pending sync.WaitGroup
	workers sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher starts the workers. m may be nil.
func NewDispatcher(log *zap.Logger, m *metrics.Metrics, opt Options) *Dispatcher {
	if opt.Workers <= 0 {
		opt.Workers = 4
	}
	if opt.Buffer <= 0 {
		opt.Buffer = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		log:      log,
		metrics:  m,
		handlers: map[Type][]Handler{},
		queue:    make(chan Event, opt.Buffer),
		ctx:      ctx,
		cancel:   cancel,
	}
	d.workers.Add(opt.Workers)
	for i := 0; i < opt.Workers; i++ {
		go d.run()
	}
	return d
}

// Subscribe registers h for events of type t.
func (d *Dispatcher) Subscribe(t Type, h Handler) {
	d.hmu.Lock()
	defer d.hmu.Unlock()
	d.handlers[t] = append(d.handlers[t], h)
}

// Publish enqueues e without blocking.
func (d *Dispatcher) Publish(e Event) {
	d.qmu.RLock()
	defer d.qmu.RUnlock()
	if d.closed {
		d.drop(e, "dispatcher closed")
		return
	}
	d.pending.Add(1)
	select {
	case d.queue <- e:
		d.metrics.EventPublished(string(e.Type))
	default:
		d.pending.Done()
		d.drop(e, "buffer full")
	}
}

func (d *Dispatcher) drop(e Event, reason string) {
	d.metrics.EventDropped(string(e.Type))
	d.log.Warn("event dropped",
		zap.String("reason", reason),
		zap.String("type", string(e.Type)),
		zap.Stringer("id", e.ID))
}

// Wait blocks until every accepted event, including events published by
// handlers meanwhile, has been handled.
func (d *Dispatcher) Wait() { d.pending.Wait() }

// Shutdown stops accepting events and drains the queue. If ctx expires first
// the handlers' context is canceled and ctx.Err() is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.qmu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.qmu.Unlock()

	done := make(chan struct{})
	go func() {
		d.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.workers.Done()
	for e := range d.queue {
		d.deliver(e)
		d.pending.Done()
	}
}

func (d *Dispatcher) deliver(e Event) {
	d.hmu.RLock()
	hs := append([]Handler(nil), d.handlers[e.Type]...)
	d.hmu.RUnlock()

	for _, h := range hs {
		if err := d.call(h, e); err != nil {
			d.metrics.HandlerFailed(string(e.Type))
			d.log.Error("event handler failed",
				zap.String("type", string(e.Type)),
				zap.Stringer("id", e.ID),
				zap.String("user", e.UserID),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) call(h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(d.ctx, e)
}
