// Package remote defines the contract with the hosted document store. The
// engine talks to this interface only; the Firestore implementation lives
// alongside it and test doubles live in mocks/.
package remote

import (
	"context"
	"time"

	"github.com/splitmate-app/splitmate-sync/types"
)

// ChangeKind classifies a single document change delivered by a watch.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// GroupChange is one group document change from the global watch.
type GroupChange struct {
	Kind  ChangeKind
	Group *types.Group
}

// ExpenseChange is one expense document change from a focused group watch.
type ExpenseChange struct {
	Kind    ChangeKind
	Expense *types.Expense
}

// Client is the remote document store. Save operations are upserts keyed by
// entity id, so replaying a push after a crash is safe. Each Save returns the
// server-assigned updatedAt so the caller can reconcile the local clock.
type Client interface {
	SaveGroup(ctx context.Context, group *types.Group) (time.Time, error)
	DeleteGroup(ctx context.Context, groupID string) error

	SaveMember(ctx context.Context, member *types.GroupMember) (time.Time, error)
	DeleteMember(ctx context.Context, groupID, userID string) error

	// SaveExpense upserts the expense document and replaces its shares
	// subcollection with the given set.
	SaveExpense(ctx context.Context, expense *types.Expense, shares []*types.ExpenseShare) (time.Time, error)
	DeleteExpense(ctx context.Context, groupID, expenseID string) error

	SaveShare(ctx context.Context, groupID string, share *types.ExpenseShare) (time.Time, error)
	DeleteShare(ctx context.Context, groupID, expenseID, userID string) error

	FetchGroup(ctx context.Context, groupID string) (*types.Group, error)
	FetchMembers(ctx context.Context, groupID string) ([]*types.GroupMember, error)
	FetchExpenses(ctx context.Context, groupID string) ([]*types.Expense, error)
	FetchShares(ctx context.Context, groupID, expenseID string) ([]*types.ExpenseShare, error)

	// WatchGroups streams changes to every group the user belongs to. The
	// channel closes when ctx is cancelled or the stream fails.
	WatchGroups(ctx context.Context, userID string) (<-chan GroupChange, error)
	// WatchExpenses streams changes to one group's expense list.
	WatchExpenses(ctx context.Context, groupID string) (<-chan ExpenseChange, error)

	Close() error
}
