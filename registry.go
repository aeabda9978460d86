package enginelink

import (
	"sync"

	"go.uber.org/zap"

	"github.com/mediafx/enginelink/wire"
)

// EventCallback receives a decoded event envelope for a subscribed category.
// Callbacks run on the channel's dispatch goroutine, in registration order
// per category and in wire arrival order across the channel.
type EventCallback func(ev *wire.Envelope)

// RequestHandler receives an engine-initiated request. Handlers respond via
// Channel.Reply using the request envelope's sequence id.
type RequestHandler func(req *wire.Envelope)

type subscription struct {
	id       int
	category string
	fn       EventCallback
}

// listenerRegistry holds per-category callback lists. Registration order is
// preserved per category; unsubscribe removes by the id returned from
// subscribe (callbacks are not comparable in Go).
type listenerRegistry struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{
		subs: make(map[string][]subscription),
	}
}

func (r *listenerRegistry) subscribe(category string, fn EventCallback) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.subs[category] = append(r.subs[category], subscription{id: id, category: category, fn: fn})
	return id
}

func (r *listenerRegistry) unsubscribe(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for category, subs := range r.subs {
		for i, sub := range subs {
			if sub.id == id {
				r.subs[category] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// dispatch invokes every callback registered for the category. A panicking
// callback must not take down the dispatch goroutine or starve later
// callbacks, so each invocation is isolated.
func (r *listenerRegistry) dispatch(category string, ev *wire.Envelope, log *zap.Logger) {
	r.mu.RLock()
	subs := make([]subscription, len(r.subs[category]))
	copy(subs, r.subs[category])
	r.mu.RUnlock()

	if len(subs) == 0 {
		// No subscribers is not an error; the event is dropped.
		log.Debug("event without subscribers", zap.String("category", category))
		return
	}

	for _, sub := range subs {
		invokeCallback(sub, ev, log)
	}
}

func invokeCallback(sub subscription, ev *wire.Envelope, log *zap.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("event listener panicked",
				zap.String("category", sub.category),
				zap.Int("listener", sub.id),
				zap.Any("panic", rec))
		}
	}()
	sub.fn(ev)
}
