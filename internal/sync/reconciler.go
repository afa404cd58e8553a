package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/splitmate-app/splitmate-sync/internal/events"
	"github.com/splitmate-app/splitmate-sync/internal/remote"
	"github.com/splitmate-app/splitmate-sync/internal/store"
	"github.com/splitmate-app/splitmate-sync/logger"
	"github.com/splitmate-app/splitmate-sync/types"
)

// Reconciler owns the remote→local half of synchronization. It maintains two
// listener scopes: a global watch on the user's group list and a focused
// watch on one group's expense list. Every merge follows the same rule: the
// remote copy wins iff its updatedAt is strictly after the local copy's.
type Reconciler struct {
	store     store.Store
	remote    remote.Client
	publisher types.EventPublisher
	log       *zap.SugaredLogger
	metrics   *metrics

	mu            stdsync.Mutex
	baseCtx       context.Context
	globalCancel  context.CancelFunc
	focusedGroup  string
	focusedCancel context.CancelFunc
	// lastActivity is the "needs refresh" marker: the lastActivityAt value of
	// each group at the time its expenses were last fetched. Kept separately
	// from the stored row because lastActivityAt can advance remotely without
	// the group document itself winning a merge.
	lastActivity map[string]time.Time

	wg stdsync.WaitGroup
}

func NewReconciler(st store.Store, rc remote.Client, publisher types.EventPublisher) *Reconciler {
	return &Reconciler{
		store:        st,
		remote:       rc,
		publisher:    publisher,
		log:          logger.GetLogger().Named("reconciler"),
		metrics:      newMetrics(),
		lastActivity: make(map[string]time.Time),
	}
}

// Start opens the global watch on the user's group list. It returns an error
// if the reconciler is already running.
func (r *Reconciler) Start(ctx context.Context, userID string) error {
	r.mu.Lock()
	if r.globalCancel != nil {
		r.mu.Unlock()
		return fmt.Errorf("reconciler already started")
	}
	wctx, cancel := context.WithCancel(ctx)
	ch, err := r.remote.WatchGroups(wctx, userID)
	if err != nil {
		cancel()
		r.mu.Unlock()
		return err
	}
	r.baseCtx = ctx
	r.globalCancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.consumeGroupChanges(wctx, ch)
	}()
	r.log.Infow("Global group watch started", "userId", userID)
	return nil
}

// Focus switches the focused expense watch to the given group, cancelling
// any previous one. An empty group id just drops the current focus.
func (r *Reconciler) Focus(groupID string) error {
	r.mu.Lock()
	if r.baseCtx == nil {
		r.mu.Unlock()
		return fmt.Errorf("reconciler not started")
	}
	if r.focusedCancel != nil {
		r.focusedCancel()
		r.focusedCancel = nil
	}
	r.focusedGroup = groupID
	if groupID == "" {
		r.mu.Unlock()
		return nil
	}

	wctx, cancel := context.WithCancel(r.baseCtx)
	ch, err := r.remote.WatchExpenses(wctx, groupID)
	if err != nil {
		cancel()
		r.focusedGroup = ""
		r.mu.Unlock()
		return err
	}
	r.focusedCancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.consumeExpenseChanges(wctx, groupID, ch)
	}()
	r.log.Infow("Focused expense watch started", "groupId", groupID)
	return nil
}

// FocusedGroup returns the group currently holding the expense watch.
func (r *Reconciler) FocusedGroup() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focusedGroup
}

// Stop cancels both watches and waits for their consumers to drain.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if r.focusedCancel != nil {
		r.focusedCancel()
		r.focusedCancel = nil
	}
	if r.globalCancel != nil {
		r.globalCancel()
		r.globalCancel = nil
	}
	r.focusedGroup = ""
	r.baseCtx = nil
	r.mu.Unlock()

	r.wg.Wait()
	r.log.Info("Reconciler stopped")
}

func (r *Reconciler) consumeGroupChanges(ctx context.Context, ch <-chan remote.GroupChange) {
	for change := range ch {
		if ctx.Err() != nil {
			return
		}
		switch change.Kind {
		case remote.ChangeRemoved:
			r.handleGroupRemoved(ctx, change.Group)
		default:
			r.mergeGroup(ctx, change.Group)
		}
	}
}

func (r *Reconciler) consumeExpenseChanges(ctx context.Context, groupID string, ch <-chan remote.ExpenseChange) {
	for change := range ch {
		if ctx.Err() != nil {
			return
		}
		switch change.Kind {
		case remote.ChangeRemoved:
			r.handleExpenseRemoved(ctx, groupID, change.Expense.ID)
		default:
			r.mergeExpense(ctx, groupID, change.Expense)
		}
	}
}

// mergeGroup applies one remote group document: insert if unseen, overwrite
// if strictly newer, then merge membership and decide whether the group's
// expenses need a one-shot refresh.
func (r *Reconciler) mergeGroup(ctx context.Context, remoteGroup *types.Group) {
	inserted, err := r.store.Groups().InsertIgnore(ctx, remoteGroup)
	if err != nil {
		r.log.Errorw("Failed to insert remote group", "groupId", remoteGroup.ID, "error", err)
		return
	}

	upserted := inserted
	if inserted {
		r.metrics.remoteChanges.WithLabelValues("group", "inserted").Inc()
		r.publish(ctx, types.EventTypeGroupCreated, remoteGroup.ID, remoteGroup.CreatedBy,
			types.EntityEventPayload{EntityID: remoteGroup.ID})
	} else {
		local, err := r.store.Groups().Get(ctx, remoteGroup.ID, true)
		if err != nil {
			r.log.Errorw("Failed to load local group", "groupId", remoteGroup.ID, "error", err)
			return
		}
		if remoteGroup.UpdatedAt.After(local.UpdatedAt) {
			// The personal flag never travels; keep whatever is set locally.
			merged := *remoteGroup
			merged.IsPersonal = local.IsPersonal
			if err := r.store.Groups().Update(ctx, &merged); err != nil {
				r.log.Errorw("Failed to overwrite local group", "groupId", remoteGroup.ID, "error", err)
				return
			}
			upserted = true
			r.metrics.remoteChanges.WithLabelValues("group", "updated").Inc()
			r.publish(ctx, types.EventTypeGroupUpdated, remoteGroup.ID, remoteGroup.CreatedBy,
				types.EntityEventPayload{EntityID: remoteGroup.ID})
		} else {
			r.metrics.remoteChanges.WithLabelValues("group", "unchanged").Inc()
		}
	}

	if upserted {
		r.mergeMembers(ctx, remoteGroup.ID)
	}
	r.maybeRefreshExpenses(ctx, remoteGroup, inserted)
}

// maybeRefreshExpenses triggers a one-shot expense download when the group's
// lastActivityAt advanced since the last fetch and the group is not under
// the focused watch. Newly inserted groups always fetch once to bootstrap.
func (r *Reconciler) maybeRefreshExpenses(ctx context.Context, remoteGroup *types.Group, inserted bool) {
	r.mu.Lock()
	prev, seen := r.lastActivity[remoteGroup.ID]
	focused := r.focusedGroup == remoteGroup.ID
	r.mu.Unlock()

	advanced := inserted || !seen || remoteGroup.LastActivityAt.After(prev)
	if !advanced || focused {
		if advanced {
			// The focused watch already delivers these expenses.
			r.markRefreshed(remoteGroup.ID, remoteGroup.LastActivityAt)
		}
		return
	}

	if err := r.refreshExpenses(ctx, remoteGroup.ID); err != nil {
		r.log.Warnw("One-shot expense refresh failed", "groupId", remoteGroup.ID, "error", err)
		return
	}
	r.markRefreshed(remoteGroup.ID, remoteGroup.LastActivityAt)
}

func (r *Reconciler) markRefreshed(groupID string, at time.Time) {
	r.mu.Lock()
	r.lastActivity[groupID] = at
	r.mu.Unlock()
}

func (r *Reconciler) refreshExpenses(ctx context.Context, groupID string) error {
	expenses, err := r.remote.FetchExpenses(ctx, groupID)
	if err != nil {
		return err
	}
	for _, expense := range expenses {
		r.mergeExpense(ctx, groupID, expense)
	}
	return nil
}

// mergeMembers downloads the group's membership and merges it row by row.
// Added events fire only for rows that did not already exist locally.
func (r *Reconciler) mergeMembers(ctx context.Context, groupID string) {
	members, err := r.remote.FetchMembers(ctx, groupID)
	if err != nil {
		r.log.Warnw("Failed to fetch remote members", "groupId", groupID, "error", err)
		return
	}
	for _, member := range members {
		inserted, err := r.store.Members().InsertIgnore(ctx, member)
		if err != nil {
			r.log.Errorw("Failed to insert remote member", "groupId", groupID, "userId", member.UserID, "error", err)
			continue
		}
		if inserted {
			r.metrics.remoteChanges.WithLabelValues("member", "inserted").Inc()
			r.publish(ctx, types.EventTypeMemberAdded, groupID, member.UserID,
				types.MemberEventPayload{GroupID: groupID, UserID: member.UserID})
			continue
		}

		local, err := r.store.Members().Get(ctx, groupID, member.UserID)
		if err != nil {
			r.log.Errorw("Failed to load local member", "groupId", groupID, "userId", member.UserID, "error", err)
			continue
		}
		if member.UpdatedAt.After(local.UpdatedAt) {
			if err := r.store.Members().Update(ctx, member); err != nil {
				r.log.Errorw("Failed to overwrite local member", "groupId", groupID, "userId", member.UserID, "error", err)
				continue
			}
			r.metrics.remoteChanges.WithLabelValues("member", "updated").Inc()
		}
	}
}

// mergeExpense applies one remote expense with the LWW rule; inserts and
// overwrites both pull the expense's per-user shares down afterwards.
func (r *Reconciler) mergeExpense(ctx context.Context, groupID string, remoteExpense *types.Expense) {
	inserted, err := r.store.Expenses().InsertIgnore(ctx, remoteExpense)
	if err != nil {
		r.log.Errorw("Failed to insert remote expense", "expenseId", remoteExpense.ID, "error", err)
		return
	}

	changed := inserted
	if inserted {
		r.metrics.remoteChanges.WithLabelValues("expense", "inserted").Inc()
		r.publish(ctx, types.EventTypeExpenseCreated, groupID, remoteExpense.PaidBy,
			types.EntityEventPayload{EntityID: remoteExpense.ID, GroupID: groupID})
	} else {
		local, err := r.store.Expenses().Get(ctx, remoteExpense.ID, true)
		if err != nil {
			r.log.Errorw("Failed to load local expense", "expenseId", remoteExpense.ID, "error", err)
			return
		}
		if remoteExpense.UpdatedAt.After(local.UpdatedAt) {
			if err := r.store.Expenses().Update(ctx, remoteExpense); err != nil {
				r.log.Errorw("Failed to overwrite local expense", "expenseId", remoteExpense.ID, "error", err)
				return
			}
			changed = true
			r.metrics.remoteChanges.WithLabelValues("expense", "updated").Inc()
			r.publish(ctx, types.EventTypeExpenseUpdated, groupID, remoteExpense.PaidBy,
				types.EntityEventPayload{EntityID: remoteExpense.ID, GroupID: groupID})
		} else {
			r.metrics.remoteChanges.WithLabelValues("expense", "unchanged").Inc()
		}
	}

	if changed {
		r.mergeShares(ctx, groupID, remoteExpense.ID)
	}
}

func (r *Reconciler) mergeShares(ctx context.Context, groupID, expenseID string) {
	shares, err := r.remote.FetchShares(ctx, groupID, expenseID)
	if err != nil {
		r.log.Warnw("Failed to fetch remote shares", "expenseId", expenseID, "error", err)
		return
	}
	for _, share := range shares {
		inserted, err := r.store.Shares().InsertIgnore(ctx, share)
		if err != nil {
			r.log.Errorw("Failed to insert remote share", "expenseId", expenseID, "userId", share.UserID, "error", err)
			continue
		}
		if inserted {
			r.metrics.remoteChanges.WithLabelValues("share", "inserted").Inc()
			r.publish(ctx, types.EventTypeShareCreated, groupID, share.UserID,
				types.EntityEventPayload{EntityID: types.JoinEntityID(expenseID, share.UserID), GroupID: groupID})
			continue
		}

		local, err := r.store.Shares().Get(ctx, expenseID, share.UserID)
		if err != nil {
			r.log.Errorw("Failed to load local share", "expenseId", expenseID, "userId", share.UserID, "error", err)
			continue
		}
		if share.UpdatedAt.After(local.UpdatedAt) {
			if err := r.store.Shares().Update(ctx, share); err != nil {
				r.log.Errorw("Failed to overwrite local share", "expenseId", expenseID, "userId", share.UserID, "error", err)
				continue
			}
			r.metrics.remoteChanges.WithLabelValues("share", "updated").Inc()
			r.publish(ctx, types.EventTypeShareUpdated, groupID, share.UserID,
				types.EntityEventPayload{EntityID: types.JoinEntityID(expenseID, share.UserID), GroupID: groupID})
		}
	}
}

// handleGroupRemoved mirrors a remote group deletion as a local soft delete,
// keeping the tombstone until the owning flows hard-delete it.
func (r *Reconciler) handleGroupRemoved(ctx context.Context, remoteGroup *types.Group) {
	err := r.store.Groups().SoftDelete(ctx, remoteGroup.ID, time.Now())
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		r.log.Errorw("Failed to soft-delete removed group", "groupId", remoteGroup.ID, "error", err)
		return
	}
	r.metrics.remoteChanges.WithLabelValues("group", "removed").Inc()
	r.publish(ctx, types.EventTypeGroupDeleted, remoteGroup.ID, "",
		types.EntityDeletedPayload{EntityID: remoteGroup.ID, GroupID: remoteGroup.ID})
}

func (r *Reconciler) handleExpenseRemoved(ctx context.Context, groupID, expenseID string) {
	err := r.store.Expenses().HardDelete(ctx, expenseID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		r.log.Errorw("Failed to delete removed expense", "expenseId", expenseID, "error", err)
		return
	}
	r.metrics.remoteChanges.WithLabelValues("expense", "removed").Inc()
	r.publish(ctx, types.EventTypeExpenseDeleted, groupID, "",
		types.EntityDeletedPayload{EntityID: expenseID, GroupID: groupID})
}

func (r *Reconciler) publish(ctx context.Context, eventType types.EventType, groupID, userID string, payload interface{}) {
	if err := events.PublishEventWithContext(r.publisher, ctx, eventType, groupID, userID, payload, types.SourceRemote); err != nil {
		r.log.Warnw("Failed to publish reconciliation event", "eventType", eventType, "groupId", groupID, "error", err)
	}
}
