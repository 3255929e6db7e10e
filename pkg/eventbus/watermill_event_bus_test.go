package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/pkg/channels/gochannel"
	"github.com/caseflow/caseflow/pkg/eventbus"
	"github.com/caseflow/caseflow/pkg/events"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	defer func() {
		require.NoError(t, bus.Close())
	}()

	received := make(chan any, 1)

	err = bus.Handle(events.WorkItemCompletedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	published := events.WorkItemCompleted{
		BaseEvent:    events.NewBaseEvent(events.WorkItemCompletedEvent, "case-1"),
		WorkItemID:   "wi-1",
		TaskSlug:     "review",
		ClosedByUser: "dana",
	}
	require.NoError(t, bus.Publish(ctx, "case-1", published))

	select {
	case event := <-received:
		completed, ok := event.(*events.WorkItemCompleted)
		require.True(t, ok)
		assert.Equal(t, "wi-1", completed.WorkItemID)
		assert.Equal(t, "case-1", completed.CaseID)
		assert.Equal(t, "dana", completed.ClosedByUser)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestGenerateID(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	assert.NotEmpty(t, bus.GenerateID())
	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
