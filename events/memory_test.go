package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/logger"
	"github.com/saiset-co/sai-cache/types"
)

func newTestBroker(t *testing.T) *MemoryBroker {
	t.Helper()
	return NewMemoryBroker(context.Background(), logger.NewZapWrapper(zap.NewNop()), "test-cache")
}

func TestMemoryBrokerPublishSubscribe(t *testing.T) {
	broker := newTestBroker(t)

	var received []*types.EventMessage
	require.NoError(t, broker.Subscribe(types.EventSweepCompleted, func(msg *types.EventMessage) error {
		received = append(received, msg)
		return nil
	}))

	require.NoError(t, broker.Publish(types.EventSweepCompleted, map[string]int{"deleted": 3}))
	require.NoError(t, broker.Publish(types.EventFlushCompleted, nil))

	require.Len(t, received, 1)
	require.Equal(t, types.EventSweepCompleted, received[0].Event)
	require.Equal(t, "test-cache", received[0].Source)
	require.NotEmpty(t, received[0].MessageID)
	require.False(t, received[0].Timestamp.IsZero())
}

func TestMemoryBrokerHandlerErrorDoesNotStopDispatch(t *testing.T) {
	broker := newTestBroker(t)

	calls := 0
	require.NoError(t, broker.Subscribe("evt", func(*types.EventMessage) error {
		calls++
		return errors.New("handler failed")
	}))
	require.NoError(t, broker.Subscribe("evt", func(*types.EventMessage) error {
		calls++
		return nil
	}))

	require.NoError(t, broker.Publish("evt", nil))
	require.Equal(t, 2, calls)
}

func TestMemoryBrokerUnsubscribe(t *testing.T) {
	broker := newTestBroker(t)

	calls := 0
	require.NoError(t, broker.Subscribe("evt", func(*types.EventMessage) error {
		calls++
		return nil
	}))

	require.NoError(t, broker.Unsubscribe("evt"))
	require.NoError(t, broker.Publish("evt", nil))
	require.Zero(t, calls)
}

func TestMemoryBrokerValidation(t *testing.T) {
	broker := newTestBroker(t)

	require.ErrorIs(t, broker.Publish("", nil), types.ErrEventNameIsEmpty)
	require.ErrorIs(t, broker.Subscribe("", nil), types.ErrEventNameIsEmpty)
	require.ErrorIs(t, broker.Subscribe("evt", nil), types.ErrEventHandlerIsNil)
	require.ErrorIs(t, broker.Unsubscribe(""), types.ErrEventNameIsEmpty)
}

func TestMemoryBrokerLifecycle(t *testing.T) {
	broker := newTestBroker(t)

	require.False(t, broker.IsRunning())
	require.NoError(t, broker.Start())
	require.True(t, broker.IsRunning())
	require.ErrorIs(t, broker.Start(), types.ErrAlreadyRunning)
	require.NoError(t, broker.Stop())
	require.ErrorIs(t, broker.Stop(), types.ErrNotRunning)
}

func TestNewEventBrokerFactory(t *testing.T) {
	log := logger.NewZapWrapper(zap.NewNop())

	_, err := NewEventBroker(context.Background(), log, nil, "svc")
	require.ErrorIs(t, err, types.ErrEventsIsDisabled)

	_, err = NewEventBroker(context.Background(), log, &types.EventsConfig{Enabled: false}, "svc")
	require.ErrorIs(t, err, types.ErrEventsIsDisabled)

	broker, err := NewEventBroker(context.Background(), log, &types.EventsConfig{Enabled: true}, "svc")
	require.NoError(t, err)
	require.IsType(t, &MemoryBroker{}, broker)

	_, err = NewEventBroker(context.Background(), log, &types.EventsConfig{Enabled: true, Type: "kafka"}, "svc")
	require.ErrorIs(t, err, types.ErrEventsTypeUnknown)
}
