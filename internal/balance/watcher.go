package balance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/splitmate-app/splitmate-sync/internal/store"
	"github.com/splitmate-app/splitmate-sync/logger"
	"github.com/splitmate-app/splitmate-sync/types"
)

// Snapshot is one recomputed balance state for a group.
type Snapshot struct {
	GroupID     string             `json:"groupId"`
	Balances    map[string]float64 `json:"balances"`
	Settlements []Transfer         `json:"settlements"`
	ComputedAt  time.Time          `json:"computedAt"`
}

// Watcher recomputes a group's balances whenever a relevant event crosses
// the bus: an initial snapshot on subscribe, then one per triggering event.
// Expense and member events are filtered by group id; share events trigger
// recomputation regardless of origin, trading wasted work for correctness.
type Watcher struct {
	store     store.Store
	publisher types.EventPublisher
	log       *zap.SugaredLogger
}

func NewWatcher(st store.Store, publisher types.EventPublisher) *Watcher {
	return &Watcher{
		store:     st,
		publisher: publisher,
		log:       logger.GetLogger().Named("balance"),
	}
}

var watchedEvents = []types.EventType{
	types.EventTypeExpenseCreated,
	types.EventTypeExpenseUpdated,
	types.EventTypeExpenseDeleted,
	types.EventTypeShareCreated,
	types.EventTypeShareUpdated,
	types.EventTypeShareDeleted,
	types.EventTypeMemberAdded,
	types.EventTypeMemberRemoved,
}

// Watch returns a channel of snapshots for the group: the current state
// immediately, then a recomputed one after each relevant event. Delivery is
// coalesced: a slow consumer sees the latest snapshot, never a backlog. The
// channel closes when ctx is cancelled or the bus shuts down.
func (w *Watcher) Watch(ctx context.Context, groupID string) (<-chan Snapshot, error) {
	subscriberID := "balance-" + groupID + "-" + uuid.New().String()
	eventCh, err := w.publisher.Subscribe(ctx, subscriberID, watchedEvents...)
	if err != nil {
		return nil, err
	}

	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		defer func() {
			if err := w.publisher.Unsubscribe(context.Background(), subscriberID); err != nil {
				w.log.Debugw("Balance watcher unsubscribe", "error", err)
			}
		}()

		w.emit(ctx, groupID, out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-eventCh:
				if !ok {
					return
				}
				if !relevant(event, groupID) {
					continue
				}
				w.emit(ctx, groupID, out)
			}
		}
	}()
	return out, nil
}

// Compute builds the group's balance state on demand.
func (w *Watcher) Compute(ctx context.Context, groupID string) (*Snapshot, error) {
	members, err := w.store.Members().ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	expenses, err := w.store.Expenses().ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	var shares []*types.ExpenseShare
	for _, expense := range expenses {
		expenseShares, err := w.store.Shares().ListByExpense(ctx, expense.ID)
		if err != nil {
			return nil, err
		}
		shares = append(shares, expenseShares...)
	}
	settlements, err := w.store.Settlements().ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	balances := CalculateNetBalances(members, expenses, shares)
	ApplySettlements(balances, settlements)
	return &Snapshot{
		GroupID:     groupID,
		Balances:    balances,
		Settlements: CalculateSettlements(balances),
		ComputedAt:  time.Now(),
	}, nil
}

func (w *Watcher) emit(ctx context.Context, groupID string, out chan Snapshot) {
	snapshot, err := w.Compute(ctx, groupID)
	if err != nil {
		w.log.Warnw("Balance recomputation failed", "groupId", groupID, "error", err)
		return
	}
	select {
	case out <- *snapshot:
	default:
		// Drop the stale pending snapshot in favor of the fresh one.
		select {
		case <-out:
		default:
		}
		out <- *snapshot
	}
}

func relevant(event types.Event, groupID string) bool {
	switch event.Type {
	case types.EventTypeShareCreated, types.EventTypeShareUpdated, types.EventTypeShareDeleted:
		return true
	default:
		return event.GroupID == groupID
	}
}
