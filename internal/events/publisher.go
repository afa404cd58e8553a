package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/splitmate-app/splitmate-sync/errors"
	"github.com/splitmate-app/splitmate-sync/types"
)

// PublishEventWithContext is a helper to publish events with consistent
// structure. It constructs a standard types.Event from the payload and
// publishes it using the provided publisher.
func PublishEventWithContext(publisher types.EventPublisher, ctx context.Context, eventType types.EventType, groupID string, userID string, payload interface{}, source string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ServerError, "failed to marshal event payload")
	}

	event := types.Event{
		BaseEvent: types.BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			GroupID:   groupID,
			UserID:    userID,
			Timestamp: time.Now(),
			Version:   1,
		},
		Metadata: types.EventMetadata{
			Source: source,
		},
		Payload: data,
	}

	if err := publisher.Publish(ctx, event); err != nil {
		return apperrors.Wrap(err, apperrors.ServerError, "failed to publish event")
	}

	return nil
}
