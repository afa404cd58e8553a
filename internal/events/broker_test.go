package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitmate-app/splitmate-sync/logger"
	"github.com/splitmate-app/splitmate-sync/types"
)

func init() {
	logger.IsTest = true
}

func testEvent(eventType types.EventType, groupID string) types.Event {
	return types.Event{
		BaseEvent: types.BaseEvent{
			ID:        "test-event",
			Type:      eventType,
			GroupID:   groupID,
			Timestamp: time.Now(),
			Version:   1,
		},
		Metadata: types.EventMetadata{Source: types.SourceLocal},
	}
}

func TestBroker_PublishAndSubscribe(t *testing.T) {
	resetMetricsForTesting()
	broker := NewBroker()
	ctx := context.Background()

	ch, err := broker.Subscribe(ctx, "sub-1")
	require.NoError(t, err)

	event := testEvent(types.EventTypeExpenseCreated, "group-1")
	require.NoError(t, broker.Publish(ctx, event))

	select {
	case got := <-ch:
		assert.Equal(t, types.EventTypeExpenseCreated, got.Type)
		assert.Equal(t, "group-1", got.GroupID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroker_TypeFilters(t *testing.T) {
	resetMetricsForTesting()
	broker := NewBroker()
	ctx := context.Background()

	ch, err := broker.Subscribe(ctx, "expense-only", types.EventTypeExpenseCreated)
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, testEvent(types.EventTypeGroupUpdated, "g1")))
	require.NoError(t, broker.Publish(ctx, testEvent(types.EventTypeExpenseCreated, "g1")))

	select {
	case got := <-ch:
		// The group event must have been filtered out.
		assert.Equal(t, types.EventTypeExpenseCreated, got.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case extra, ok := <-ch:
		if ok {
			t.Fatalf("unexpected extra event: %v", extra.Type)
		}
	default:
	}
}

func TestBroker_NoReplayForLateSubscribers(t *testing.T) {
	resetMetricsForTesting()
	broker := NewBroker()
	ctx := context.Background()

	require.NoError(t, broker.Publish(ctx, testEvent(types.EventTypeExpenseCreated, "g1")))

	ch, err := broker.Subscribe(ctx, "late")
	require.NoError(t, err)

	select {
	case got := <-ch:
		t.Fatalf("late subscriber should not receive earlier event, got %v", got.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_DuplicateSubscriberRejected(t *testing.T) {
	resetMetricsForTesting()
	broker := NewBroker()
	ctx := context.Background()

	_, err := broker.Subscribe(ctx, "dup")
	require.NoError(t, err)

	_, err = broker.Subscribe(ctx, "dup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestBroker_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	resetMetricsForTesting()
	broker := NewBroker(Config{PublishTimeout: time.Second, EventBufferSize: 1})
	ctx := context.Background()

	_, err := broker.Subscribe(ctx, "slow")
	require.NoError(t, err)

	// Nobody drains the channel; second publish must not block, the event
	// is dropped for the stalled subscriber.
	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, broker.Publish(ctx, testEvent(types.EventTypeExpenseCreated, "g1")))
		require.NoError(t, broker.Publish(ctx, testEvent(types.EventTypeExpenseUpdated, "g1")))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	resetMetricsForTesting()
	broker := NewBroker()
	ctx := context.Background()

	ch, err := broker.Subscribe(ctx, "sub")
	require.NoError(t, err)
	require.NoError(t, broker.Unsubscribe(ctx, "sub"))

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	err = broker.Unsubscribe(ctx, "sub")
	require.Error(t, err)
}

func TestBroker_Shutdown(t *testing.T) {
	resetMetricsForTesting()
	broker := NewBroker()
	ctx := context.Background()

	ch, err := broker.Subscribe(ctx, "sub")
	require.NoError(t, err)

	require.NoError(t, broker.Shutdown(ctx))

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after shutdown")

	err = broker.Publish(ctx, testEvent(types.EventTypeExpenseCreated, "g1"))
	require.Error(t, err)

	_, err = broker.Subscribe(ctx, "another")
	require.Error(t, err)
}

func TestBroker_PublishSetsDefaults(t *testing.T) {
	resetMetricsForTesting()
	broker := NewBroker()
	ctx := context.Background()

	ch, err := broker.Subscribe(ctx, "sub")
	require.NoError(t, err)

	event := types.Event{
		BaseEvent: types.BaseEvent{Type: types.EventTypeGroupCreated, GroupID: "g1"},
	}
	require.NoError(t, broker.Publish(ctx, event))

	got := <-ch
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, 1, got.Version)
}
