package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"orderflow/internal/interfaces"
)

// Bus is a synchronous in-process event bus. Published envelopes are recorded
// for assertions and, when subscribers are registered, dispatched inline.
// Dispatch errors are collected rather than returned so the publisher sees the
// same fire-and-forget behavior as the real bus.
type Bus struct {
	mu          sync.Mutex
	published   []interfaces.Envelope
	subscribers map[string][]interfaces.EventHandler

	// FailNext makes the next Publish return an error; tests use it to verify
	// publication is best-effort on the workflow path.
	FailNext bool
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]interfaces.EventHandler)}
}

// Subscribe registers a handler for a detail type. Unlike the broker there is
// no pattern matching; tests subscribe to exact types.
func (b *Bus) Subscribe(detailType string, handler interfaces.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[detailType] = append(b.subscribers[detailType], handler)
}

func (b *Bus) Publish(ctx context.Context, source, detailType, tenantID string, detail any) error {
	b.mu.Lock()
	if b.FailNext {
		b.FailNext = false
		b.mu.Unlock()
		return errors.New("bus unavailable")
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	env := interfaces.Envelope{
		Source:     source,
		DetailType: detailType,
		TenantID:   tenantID,
		Detail:     raw,
	}
	b.published = append(b.published, env)
	handlers := append([]interfaces.EventHandler{}, b.subscribers[detailType]...)
	b.mu.Unlock()

	for _, h := range handlers {
		// Handler failures are the consumer's problem, as on the real bus.
		_ = h(ctx, env)
	}
	return nil
}

// Published returns a copy of every envelope published so far.
func (b *Bus) Published() []interfaces.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]interfaces.Envelope{}, b.published...)
}

// PublishedOf filters published envelopes by detail type.
func (b *Bus) PublishedOf(detailType string) []interfaces.Envelope {
	var out []interfaces.Envelope
	for _, env := range b.Published() {
		if env.DetailType == detailType {
			out = append(out, env)
		}
	}
	return out
}

// Redeliver re-dispatches a recorded envelope to its subscribers, simulating
// the at-least-once bus delivering a duplicate.
func (b *Bus) Redeliver(ctx context.Context, env interfaces.Envelope) {
	b.mu.Lock()
	handlers := append([]interfaces.EventHandler{}, b.subscribers[env.DetailType]...)
	b.mu.Unlock()
	for _, h := range handlers {
		_ = h(ctx, env)
	}
}
