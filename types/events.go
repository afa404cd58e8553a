package types

import (
	"context"
	"encoding/json"
	"time"

	"github.com/splitmate-app/splitmate-sync/errors"
)

type EventType string

const (
	CategoryGroup   = "GROUP"
	CategoryExpense = "EXPENSE"
	CategoryShare   = "SHARE"
	CategoryMember  = "MEMBER"
	CategoryQueue   = "QUEUE"
)

const (
	// Group events
	EventTypeGroupCreated EventType = CategoryGroup + "_CREATED"
	EventTypeGroupUpdated EventType = CategoryGroup + "_UPDATED"
	EventTypeGroupDeleted EventType = CategoryGroup + "_DELETED"

	// Expense events
	EventTypeExpenseCreated EventType = CategoryExpense + "_CREATED"
	EventTypeExpenseUpdated EventType = CategoryExpense + "_UPDATED"
	EventTypeExpenseDeleted EventType = CategoryExpense + "_DELETED"

	// Share events
	EventTypeShareCreated EventType = CategoryShare + "_CREATED"
	EventTypeShareUpdated EventType = CategoryShare + "_UPDATED"
	EventTypeShareDeleted EventType = CategoryShare + "_DELETED"

	// Member events
	EventTypeMemberAdded   EventType = CategoryMember + "_ADDED"
	EventTypeMemberRemoved EventType = CategoryMember + "_REMOVED"

	// Outbox events
	EventTypeQueueItemAdded EventType = CategoryQueue + "_ITEM_ADDED"
)

// Event sources recorded in metadata, distinguishing local writes from
// changes absorbed off the remote change stream.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// BaseEvent carries the fields common to every domain event.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	GroupID   string    `json:"groupId"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Version   int       `json:"version"`
}

// EventMetadata for tracking and debugging
type EventMetadata struct {
	CorrelationID string            `json:"correlationId,omitempty"`
	Source        string            `json:"source"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// Event is an immutable, timestamped domain event. Events are not persisted;
// a subscriber not listening at emission time never sees the event.
type Event struct {
	BaseEvent
	Metadata EventMetadata   `json:"metadata"`
	Payload  json.RawMessage `json:"payload"`
}

// Validate checks the event for required fields.
func (e Event) Validate() error {
	if e.ID == "" {
		return errors.ValidationFailed("invalid event", "event ID is required")
	}
	if e.Type == "" {
		return errors.ValidationFailed("invalid event", "event type is required")
	}
	if e.Timestamp.IsZero() {
		return errors.ValidationFailed("invalid event", "timestamp is required")
	}
	return nil
}

// EventPublisher is the in-process broadcast bus contract. Publishing is
// fire-and-forget: it never blocks on subscriber processing, and subscriber
// errors never unwind into the publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	PublishBatch(ctx context.Context, events []Event) error
	Subscribe(ctx context.Context, subscriberID string, filters ...EventType) (<-chan Event, error)
	Unsubscribe(ctx context.Context, subscriberID string) error
}

// EventHandler processes events routed to it by type.
type EventHandler interface {
	HandleEvent(ctx context.Context, event Event) error
	SupportedEvents() []EventType
}

// EntityEventPayload accompanies entity create/update events.
type EntityEventPayload struct {
	EntityID string `json:"entityId"`
	GroupID  string `json:"groupId,omitempty"`
}

// EntityDeletedPayload carries the id plus parent id, since the entity row
// is gone by the time a delete event is observed.
type EntityDeletedPayload struct {
	EntityID string `json:"entityId"`
	GroupID  string `json:"groupId"`
}

// MemberEventPayload accompanies member added/removed events.
type MemberEventPayload struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

// QueueItemAddedPayload accompanies outbox enqueue events.
type QueueItemAddedPayload struct {
	EntityType EntityType    `json:"entityType"`
	EntityID   string        `json:"entityId"`
	Operation  OperationType `json:"operationType"`
}
