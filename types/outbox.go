package types

import (
	"fmt"
	"strings"
	"time"
)

// EntityType identifies which kind of entity an outbox entry refers to.
// The set is closed; the upload dispatcher switches over it exhaustively.
type EntityType string

const (
	EntityTypeGroup        EntityType = "group"
	EntityTypeGroupMember  EntityType = "group_member"
	EntityTypeExpense      EntityType = "expense"
	EntityTypeExpenseShare EntityType = "expense_share"
)

// ParseEntityType validates a stored entity-type tag. Rows carrying a tag
// outside the closed set are permanent failures, never retried blindly.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityTypeGroup, EntityTypeGroupMember, EntityTypeExpense, EntityTypeExpenseShare:
		return EntityType(s), nil
	default:
		return "", fmt.Errorf("unknown entity type %q", s)
	}
}

// OperationType is the pending mutation kind recorded in the outbox.
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// OutboxEntry is one durable pending mutation. At most one entry exists per
// (owner, entity type, entity id); re-enqueueing replaces the row in place
// and resets the retry budget.
type OutboxEntry struct {
	ID         int64             `json:"id"`
	OwnerID    string            `json:"ownerId"`
	EntityType EntityType        `json:"entityType"`
	EntityID   string            `json:"entityId"`
	Operation  OperationType     `json:"operationType"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	RetryCount int               `json:"retryCount"`
	LastError  string            `json:"lastError,omitempty"`
	// Version increments on every coalescing replacement. Processing uses it
	// to detect an entry that was re-enqueued while its snapshot was in
	// flight, so completion never drops a newer pending mutation.
	Version int64 `json:"version"`
}

// MetadataGroupID is the metadata key carrying the parent group id, needed
// when the entity itself is about to be deleted and unavailable for re-lookup.
const MetadataGroupID = "groupId"

// GroupID returns the parent group id recorded in the entry metadata, if any.
func (e *OutboxEntry) GroupID() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[MetadataGroupID]
}

// JoinEntityID builds the composite outbox entity id for rows keyed by two
// ids (membership: group/user, share: expense/user).
func JoinEntityID(parentID, childID string) string {
	return parentID + "/" + childID
}

// SplitEntityID is the inverse of JoinEntityID.
func SplitEntityID(id string) (parentID, childID string, ok bool) {
	return strings.Cut(id, "/")
}

// ProcessResult summarizes one ProcessQueue batch.
type ProcessResult struct {
	TotalProcessed int `json:"totalProcessed"`
	SuccessCount   int `json:"successCount"`
	FailureCount   int `json:"failureCount"`
}
