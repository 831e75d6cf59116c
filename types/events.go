package types

import (
	"time"
)

const (
	EventSweepCompleted        = "cache.sweep.completed"
	EventFlushCompleted        = "cache.flush.completed"
	EventPatternFlushCompleted = "cache.flush_pattern.completed"
)

type EventBroker interface {
	LifecycleManager
	Publish(event string, payload interface{}) error
	Subscribe(event string, handler EventHandler) error
	Unsubscribe(event string) error
}

type EventHandler func(msg *EventMessage) error
type EventBrokerCreator func(config interface{}) (EventBroker, error)

type EventMessage struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	MessageID string      `json:"message_id"`
}
