// Package store defines the local persistence contracts consumed by the
// sync engine. Implementations live in subpackages; the engine never touches
// a database driver directly.
package store

import (
	"context"
	"time"

	"github.com/splitmate-app/splitmate-sync/types"
)

// Store provides a unified interface for all local data operations.
// RunInTx yields a transaction-scoped Store so an entity mutation and its
// outbox enqueue commit or roll back together.
type Store interface {
	Groups() GroupStore
	Members() MemberStore
	Expenses() ExpenseStore
	Shares() ShareStore
	Settlements() SettlementStore
	Outbox() OutboxStore

	RunInTx(ctx context.Context, fn func(Store) error) error
	Close() error
}

// GroupStore handles group rows.
type GroupStore interface {
	// Get returns a group; soft-deleted rows are excluded unless
	// includeDeleted is set.
	Get(ctx context.Context, id string, includeDeleted bool) (*types.Group, error)
	// InsertIgnore inserts the group if absent and reports whether a row was
	// written. Concurrent initial sync and listener delivery both insert.
	InsertIgnore(ctx context.Context, group *types.Group) (bool, error)
	Update(ctx context.Context, group *types.Group) error
	// SetUpdatedAt rewrites only the conflict-resolution timestamp, used to
	// reconcile the remote-assigned clock into the local copy after a push.
	SetUpdatedAt(ctx context.Context, id string, updatedAt time.Time) error
	SoftDelete(ctx context.Context, id string, deletedAt time.Time) error
	// HardDelete removes the row and everything under it (members, expenses,
	// shares) once the remote delete is confirmed.
	HardDelete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*types.Group, error)
}

// MemberStore handles group membership rows.
type MemberStore interface {
	Get(ctx context.Context, groupID, userID string) (*types.GroupMember, error)
	InsertIgnore(ctx context.Context, member *types.GroupMember) (bool, error)
	Update(ctx context.Context, member *types.GroupMember) error
	Delete(ctx context.Context, groupID, userID string) error
	ListByGroup(ctx context.Context, groupID string) ([]*types.GroupMember, error)
}

// ExpenseStore handles expense rows.
type ExpenseStore interface {
	Get(ctx context.Context, id string, includeDeleted bool) (*types.Expense, error)
	InsertIgnore(ctx context.Context, expense *types.Expense) (bool, error)
	Update(ctx context.Context, expense *types.Expense) error
	SetUpdatedAt(ctx context.Context, id string, updatedAt time.Time) error
	SoftDelete(ctx context.Context, id string, deletedAt time.Time) error
	// HardDelete removes the expense row and its shares.
	HardDelete(ctx context.Context, id string) error
	ListByGroup(ctx context.Context, groupID string) ([]*types.Expense, error)
}

// ShareStore handles per-user expense share rows.
type ShareStore interface {
	Get(ctx context.Context, expenseID, userID string) (*types.ExpenseShare, error)
	InsertIgnore(ctx context.Context, share *types.ExpenseShare) (bool, error)
	Update(ctx context.Context, share *types.ExpenseShare) error
	ListByExpense(ctx context.Context, expenseID string) ([]*types.ExpenseShare, error)
	DeleteByExpense(ctx context.Context, expenseID string) error
}

// SettlementStore handles recorded settlement payments.
type SettlementStore interface {
	Insert(ctx context.Context, settlement *types.Settlement) error
	ListByGroup(ctx context.Context, groupID string) ([]*types.Settlement, error)
}

// OutboxStore handles the durable upload queue.
type OutboxStore interface {
	// Enqueue inserts or replaces the entry for (owner, entity type, entity
	// id). Replacement overwrites operation, metadata and creation time, and
	// resets retry bookkeeping.
	Enqueue(ctx context.Context, entry *types.OutboxEntry) error
	// Pending returns entries for the owner, oldest first. limit <= 0 means
	// no limit.
	Pending(ctx context.Context, ownerID string, limit int) ([]*types.OutboxEntry, error)
	// Delete removes the entry only if it still carries the given version; a
	// row re-coalesced since the snapshot was read stays pending.
	Delete(ctx context.Context, id int64, version int64) error
	// MarkFailed records the failure and the new retry count on the entry.
	// Like Delete, it is a no-op when the entry's version has moved on.
	MarkFailed(ctx context.Context, id int64, version int64, retryCount int, lastError string) error
	CountPending(ctx context.Context, ownerID string) (int, error)
}
