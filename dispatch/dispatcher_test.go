package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"channel-gateway/domain"
	"channel-gateway/errors"
	"channel-gateway/mocks"
	"channel-gateway/observability"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testEvent() domain.Event {
	return domain.Event{
		Channel: "chat-42",
		Name:    "message-starred",
		Payload: json.RawMessage(`{"messageId":"m1"}`),
	}
}

func TestDispatch_FanoutToAllCurrentSubscribers(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockRegistry(ctrl)
	monitoring := observability.NewMonitoring()
	dispatcher := NewDispatcher(log, mockRegistry, nil, monitoring)

	evt := testEvent()
	wantFrame := domain.Frame{Event: "message-starred", Channel: "chat-42", Data: evt.Payload}

	// Two sockets are subscribed at dispatch time.
	mockRegistry.EXPECT().CurrentSubscribers(domain.ChannelName("chat-42")).
		Return([]domain.SocketID{"s1", "s2"}).Times(1)
	mockRegistry.EXPECT().Emit(domain.SocketID("s1"), wantFrame).Return(nil).Times(1)
	mockRegistry.EXPECT().Emit(domain.SocketID("s2"), wantFrame).Return(nil).Times(1)

	req.NoError(dispatcher.Dispatch(context.Background(), evt))

	// A socket joining one tick later is not in the snapshot: a second
	// dispatch with three subscribers reaches three, the first stays two.
	mockRegistry.EXPECT().CurrentSubscribers(domain.ChannelName("chat-42")).
		Return([]domain.SocketID{"s1", "s2", "s3"}).Times(1)
	mockRegistry.EXPECT().Emit(gomock.Any(), wantFrame).Return(nil).Times(3)
	req.NoError(dispatcher.Dispatch(context.Background(), evt))

	stats := monitoring.Snapshot()
	req.Equal(uint64(2), stats.EventsDispatched)
	req.Equal(uint64(5), stats.FramesDelivered)
}

func TestDispatch_MissingFieldNamesFirstOffender(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No expectations: the transport must never be called on validation
	// failure.
	mockRegistry := mocks.NewMockRegistry(ctrl)
	dispatcher := NewDispatcher(log, mockRegistry, nil, observability.NewMonitoring())

	tests := []struct {
		name      string
		event     domain.Event
		wantField string
	}{
		{"Missing channel", domain.Event{Name: "e", Payload: json.RawMessage(`{}`)}, "channel"},
		{"Missing event name", domain.Event{Channel: "chat-42", Payload: json.RawMessage(`{}`)}, "event"},
		{"Missing payload", domain.Event{Channel: "chat-42", Name: "e"}, "payload"},
		{"Null payload", domain.Event{Channel: "chat-42", Name: "e", Payload: json.RawMessage(`null`)}, "payload"},
		{"Everything missing blames channel first", domain.Event{}, "channel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dispatcher.Dispatch(context.Background(), tt.event)
			var missing errors.MissingFieldError
			req.ErrorAs(err, &missing)
			req.Equal(tt.wantField, missing.Field)
		})
	}
}

func TestDispatch_TransportUnavailable(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	dispatcher := NewDispatcher(log, nil, nil, observability.NewMonitoring())

	err := dispatcher.Dispatch(context.Background(), testEvent())
	req.ErrorIs(err, errors.ErrTransportUnavailable)
}

func TestDispatch_PartialEmitFailureIsSwallowed(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockRegistry(ctrl)
	monitoring := observability.NewMonitoring()
	dispatcher := NewDispatcher(log, mockRegistry, nil, monitoring)

	evt := testEvent()
	mockRegistry.EXPECT().CurrentSubscribers(evt.Channel).
		Return([]domain.SocketID{"s1", "s2"}).Times(1)
	mockRegistry.EXPECT().Emit(domain.SocketID("s1"), gomock.Any()).
		Return(errors.ErrTransportUnavailable).Times(1)
	mockRegistry.EXPECT().Emit(domain.SocketID("s2"), gomock.Any()).Return(nil).Times(1)

	// One socket failing does not fail the call.
	req.NoError(dispatcher.Dispatch(context.Background(), evt))
	req.Equal(uint64(1), monitoring.Snapshot().FramesDelivered)
}

func TestDispatch_ForwardsToPublisher(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockRegistry(ctrl)
	mockPublisher := mocks.NewMockPublisher(ctrl)
	dispatcher := NewDispatcher(log, mockRegistry, mockPublisher, observability.NewMonitoring())

	evt := testEvent()
	mockRegistry.EXPECT().CurrentSubscribers(evt.Channel).Return(nil).Times(2)
	mockPublisher.EXPECT().Publish(gomock.Any(), evt).Return(nil).Times(1)

	req.NoError(dispatcher.Dispatch(context.Background(), evt))

	// DispatchLocal replays a remote event without re-publishing it.
	req.NoError(dispatcher.DispatchLocal(context.Background(), evt))
}
