package engine

import (
	"context"
	"sync"

	"loyaltykit/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

type subscription struct {
	id   int64
	kind core.NotificationKind
	fn   func(context.Context, core.Notification)
}

type queued struct {
	ctx context.Context
	n   core.Notification
}

// EventBus provides thread-safe pub/sub of notifications with sync and async
// dispatch. Subscribing with an empty kind receives every notification.
//
// Async dispatch runs on a single worker so handlers observe notifications in
// publish order. Publish blocks while the queue is full; after Close it drops.
type EventBus struct {
	mode   DispatchMode
	mu     sync.RWMutex
	subs   map[core.NotificationKind]map[int64]subscription
	nextID int64

	queue     chan queued
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func NewEventBus(mode DispatchMode) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	eb := &EventBus{
		mode:   mode,
		subs:   make(map[core.NotificationKind]map[int64]subscription),
		queue:  make(chan queued, 2048),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if mode == DispatchAsync {
		go eb.run()
	} else {
		close(eb.done)
	}
	return eb
}

func (e *EventBus) run() {
	defer close(e.done)
	for {
		select {
		case q := <-e.queue:
			e.dispatchSync(q.ctx, q.n)
		case <-e.ctx.Done():
			for {
				select {
				case q := <-e.queue:
					e.dispatchSync(q.ctx, q.n)
				default:
					return
				}
			}
		}
	}
}

// Close stops accepting notifications and waits until the queued ones have
// been delivered.
func (e *EventBus) Close() {
	e.closeOnce.Do(e.cancel)
	<-e.done
}

// Subscribe registers a handler for a notification kind. Returns unsubscribe func.
func (e *EventBus) Subscribe(kind core.NotificationKind, handler func(context.Context, core.Notification)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[kind] == nil {
		e.subs[kind] = make(map[int64]subscription)
	}
	e.subs[kind][id] = subscription{id: id, kind: kind, fn: handler}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if m := e.subs[kind]; m != nil {
			delete(m, id)
		}
	}
}

// SubscribeAll registers a handler for every kind.
func (e *EventBus) SubscribeAll(handler func(context.Context, core.Notification)) func() {
	return e.Subscribe("", handler)
}

// Publish sends a notification to subscribers. Handlers of an async bus get
// a context detached from the caller's cancellation.
func (e *EventBus) Publish(ctx context.Context, n core.Notification) {
	if e.mode != DispatchAsync {
		e.dispatchSync(ctx, n)
		return
	}
	if e.ctx.Err() != nil {
		return
	}
	select {
	case e.queue <- queued{ctx: context.WithoutCancel(ctx), n: n}:
	case <-e.ctx.Done():
	}
}

func (e *EventBus) dispatchSync(ctx context.Context, n core.Notification) {
	e.mu.RLock()
	// copy to avoid holding lock during callbacks
	handlers := make([]func(context.Context, core.Notification), 0, len(e.subs[n.Kind])+len(e.subs[""]))
	for _, s := range e.subs[n.Kind] {
		handlers = append(handlers, s.fn)
	}
	for _, s := range e.subs[""] {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, n)
	}
}

var _ Notifier = (*EventBus)(nil)
