package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/types"
)

// MemoryBroker dispatches events to in-process subscribers synchronously,
// in subscription order. A handler error is logged and does not stop the
// remaining handlers.
type MemoryBroker struct {
	ctx    context.Context
	logger types.Logger
	source string

	mu            sync.RWMutex
	subscriptions map[string][]types.EventHandler

	started int32
}

func NewMemoryBroker(ctx context.Context, logger types.Logger, source string) *MemoryBroker {
	return &MemoryBroker{
		ctx:           ctx,
		logger:        logger,
		source:        source,
		subscriptions: make(map[string][]types.EventHandler),
	}
}

func (b *MemoryBroker) Publish(event string, payload interface{}) error {
	if event == "" {
		return types.ErrEventNameIsEmpty
	}

	message := &types.EventMessage{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now(),
		Source:    b.source,
		MessageID: uuid.NewString(),
	}

	b.mu.RLock()
	handlers := make([]types.EventHandler, len(b.subscriptions[event]))
	copy(handlers, b.subscriptions[event])
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(message); err != nil {
			b.logger.Warn("Event handler failed",
				zap.String("event", event),
				zap.String("message_id", message.MessageID),
				zap.Error(err))
		}
	}

	return nil
}

func (b *MemoryBroker) Subscribe(event string, handler types.EventHandler) error {
	if event == "" {
		return types.ErrEventNameIsEmpty
	}
	if handler == nil {
		return types.ErrEventHandlerIsNil
	}

	b.mu.Lock()
	b.subscriptions[event] = append(b.subscriptions[event], handler)
	b.mu.Unlock()

	return nil
}

func (b *MemoryBroker) Unsubscribe(event string) error {
	if event == "" {
		return types.ErrEventNameIsEmpty
	}

	b.mu.Lock()
	delete(b.subscriptions, event)
	b.mu.Unlock()

	return nil
}

func (b *MemoryBroker) Start() error {
	if !atomic.CompareAndSwapInt32(&b.started, 0, 1) {
		return types.ErrAlreadyRunning
	}
	return nil
}

func (b *MemoryBroker) Stop() error {
	if !atomic.CompareAndSwapInt32(&b.started, 1, 0) {
		return types.ErrNotRunning
	}
	return nil
}

func (b *MemoryBroker) IsRunning() bool {
	return atomic.LoadInt32(&b.started) == 1
}
