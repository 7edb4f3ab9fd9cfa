package events

import (
	"context"
	"sync"
)

// Handler processes a single fact. Delivery is at-least-once: handlers must
// be idempotent with respect to redelivery.
type Handler func(ctx context.Context, fact Fact) error

// Publisher is the emitting half of the choreography bus. Publish is
// fire-and-forget from the publisher's perspective; an error means the fact
// could not be handed to the transport, not that a consumer failed.
// PublishAll hands a buffered batch to the transport in one call.
type Publisher interface {
	Publish(ctx context.Context, fact Fact) error
	PublishAll(ctx context.Context, facts []Fact) error
}

// Bus is a publish/subscribe channel for lifecycle facts. Ordering is
// guaranteed only for same-type facts from a single publisher; handlers for
// distinct fact types may observe any interleaving.
type Bus interface {
	Publisher
	Subscribe(factType FactType, handler Handler)
}

// Dispatcher routes decoded facts to the handlers registered for their type.
// It is the explicit dispatch table shared by the in-process bus and the
// Kafka consumer adapter.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[FactType][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[FactType][]Handler),
	}
}

func (d *Dispatcher) Register(factType FactType, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[factType] = append(d.handlers[factType], handler)
}

// Dispatch invokes every handler registered for the fact's type. The first
// handler error aborts dispatch and is returned so transports can retry;
// handlers already invoked will see the fact again on redelivery, which is
// why they must be idempotent.
func (d *Dispatcher) Dispatch(ctx context.Context, fact Fact) error {
	d.mu.RLock()
	handlers := d.handlers[fact.FactType()]
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, fact); err != nil {
			return err
		}
	}
	return nil
}
