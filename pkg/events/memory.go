package events

import (
	"context"
	"wayfare/pkg/logger"
)

// MemoryBus dispatches facts to subscribers in-process, synchronously and in
// registration order. It backs single-deployment setups and tests; handler
// failures are logged, not propagated, matching the fire-and-forget publish
// contract.
type MemoryBus struct {
	dispatcher *Dispatcher
	log        *logger.Logger
}

func NewMemoryBus(log *logger.Logger) *MemoryBus {
	return &MemoryBus{
		dispatcher: NewDispatcher(),
		log:        log,
	}
}

func (b *MemoryBus) Subscribe(factType FactType, handler Handler) {
	b.dispatcher.Register(factType, handler)
}

// Dispatcher exposes the underlying dispatch table so services can attach
// their reactors through the same Register hook the Kafka consumers use.
func (b *MemoryBus) Dispatcher() *Dispatcher {
	return b.dispatcher
}

func (b *MemoryBus) Publish(ctx context.Context, fact Fact) error {
	if err := b.dispatcher.Dispatch(ctx, fact); err != nil {
		b.log.Error("Fact handler failed",
			"fact_type", fact.FactType(),
			"key", fact.Key(),
			"error", err,
		)
	}
	return nil
}

// PublishAll dispatches each fact in order. There is no transport to batch
// for, so it is Publish in a loop.
func (b *MemoryBus) PublishAll(ctx context.Context, facts []Fact) error {
	for _, fact := range facts {
		if err := b.Publish(ctx, fact); err != nil {
			return err
		}
	}
	return nil
}
