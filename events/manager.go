package events

import (
	"context"

	"github.com/saiset-co/sai-cache/types"
)

var customBrokerCreators = make(map[string]types.EventBrokerCreator)

func RegisterEventBroker(brokerName string, creator types.EventBrokerCreator) {
	customBrokerCreators[brokerName] = creator
}

// NewEventBroker builds the broker selected by the events config. The
// source string stamps every published message, typically the service name.
func NewEventBroker(ctx context.Context, logger types.Logger, config *types.EventsConfig, source string) (types.EventBroker, error) {
	if config == nil || !config.Enabled {
		return nil, types.ErrEventsIsDisabled
	}

	brokerName := "memory"
	if config.Type != "" {
		brokerName = config.Type
	}

	switch brokerName {
	case "memory":
		return NewMemoryBroker(ctx, logger, source), nil
	case "websocket":
		return NewWebSocketBroker(ctx, logger, config, source)
	default:
		if creator, exists := customBrokerCreators[brokerName]; exists {
			return creator(config.Config)
		}
		return nil, types.Errorf(types.ErrEventsTypeUnknown, "type: %s", brokerName)
	}
}
