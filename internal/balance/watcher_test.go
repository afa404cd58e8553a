package balance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/splitmate-app/splitmate-sync/errors"
	"github.com/splitmate-app/splitmate-sync/internal/events"
	storemocks "github.com/splitmate-app/splitmate-sync/internal/store/mocks"
	"github.com/splitmate-app/splitmate-sync/internal/store/sqlite"
	"github.com/splitmate-app/splitmate-sync/logger"
	"github.com/splitmate-app/splitmate-sync/types"
)

func init() {
	logger.IsTest = true
}

type watcherFixture struct {
	store   *sqlite.SQLiteStore
	events  *events.Service
	watcher *Watcher
}

func newWatcherFixture(t *testing.T) *watcherFixture {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := events.NewService()
	t.Cleanup(func() { svc.Shutdown(context.Background()) })

	return &watcherFixture{
		store:   st,
		events:  svc,
		watcher: NewWatcher(st, svc),
	}
}

func (f *watcherFixture) seedGroup(t *testing.T, groupID string, userIDs ...string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err := f.store.Groups().InsertIgnore(ctx, &types.Group{
		ID: groupID, Name: "Group " + groupID, CreatedBy: userIDs[0], Currency: "USD",
		LastActivityAt: now, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	for _, userID := range userIDs {
		_, err := f.store.Members().InsertIgnore(ctx, &types.GroupMember{
			GroupID: groupID, UserID: userID, Role: "member",
			CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
	}
}

func (f *watcherFixture) seedExpense(t *testing.T, groupID, expenseID, paidBy string, amount float64, splitWith ...string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err := f.store.Expenses().InsertIgnore(ctx, &types.Expense{
		ID: expenseID, GroupID: groupID, PaidBy: paidBy, Description: "Test expense",
		Amount: amount, Currency: "USD", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	per := amount / float64(len(splitWith))
	for _, userID := range splitWith {
		_, err := f.store.Shares().InsertIgnore(ctx, &types.ExpenseShare{
			ExpenseID: expenseID, UserID: userID, Amount: per,
			CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
	}
}

func waitSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snapshot := <-ch:
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a balance snapshot")
		return Snapshot{}
	}
}

func publishExpenseEvent(t *testing.T, svc *events.Service, groupID string) {
	t.Helper()
	err := events.PublishEventWithContext(svc, context.Background(), types.EventTypeExpenseCreated,
		groupID, "alice", types.EntityEventPayload{EntityID: "x", GroupID: groupID}, types.SourceLocal)
	require.NoError(t, err)
}

func TestWatch_EmitsInitialSnapshot(t *testing.T) {
	f := newWatcherFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.seedGroup(t, "g1", "alice", "bob")
	f.seedExpense(t, "g1", "e1", "alice", 100, "alice", "bob")

	ch, err := f.watcher.Watch(ctx, "g1")
	require.NoError(t, err)

	snapshot := waitSnapshot(t, ch)
	assert.Equal(t, "g1", snapshot.GroupID)
	assert.InDelta(t, 50, snapshot.Balances["alice"], Epsilon)
	assert.InDelta(t, -50, snapshot.Balances["bob"], Epsilon)
	require.Len(t, snapshot.Settlements, 1)
	assert.Equal(t, Transfer{From: "bob", To: "alice", Amount: 50}, snapshot.Settlements[0])
}

func TestWatch_RecomputesOnRelevantEvent(t *testing.T) {
	f := newWatcherFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.seedGroup(t, "g1", "alice", "bob")

	ch, err := f.watcher.Watch(ctx, "g1")
	require.NoError(t, err)

	initial := waitSnapshot(t, ch)
	assert.InDelta(t, 0, initial.Balances["alice"], Epsilon)

	// New expense lands, then its event crosses the bus.
	f.seedExpense(t, "g1", "e1", "alice", 80, "alice", "bob")
	publishExpenseEvent(t, f.events, "g1")

	updated := waitSnapshot(t, ch)
	assert.InDelta(t, 40, updated.Balances["alice"], Epsilon)
	assert.InDelta(t, -40, updated.Balances["bob"], Epsilon)
}

func TestWatch_FiltersOtherGroupsExpenseEvents(t *testing.T) {
	f := newWatcherFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.seedGroup(t, "g1", "alice", "bob")
	f.seedGroup(t, "g2", "carol")

	ch, err := f.watcher.Watch(ctx, "g1")
	require.NoError(t, err)
	waitSnapshot(t, ch)

	publishExpenseEvent(t, f.events, "g2")

	select {
	case snapshot := <-ch:
		t.Fatalf("unexpected snapshot for another group's event: %+v", snapshot)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatch_ShareEventsAlwaysRecompute(t *testing.T) {
	f := newWatcherFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.seedGroup(t, "g1", "alice", "bob")

	ch, err := f.watcher.Watch(ctx, "g1")
	require.NoError(t, err)
	waitSnapshot(t, ch)

	// Share events carry no reliable group id and recompute conservatively.
	err = events.PublishEventWithContext(f.events, ctx, types.EventTypeShareUpdated,
		"", "bob", types.EntityEventPayload{EntityID: "e9/bob"}, types.SourceRemote)
	require.NoError(t, err)

	waitSnapshot(t, ch)
}

func TestWatch_AppliesRecordedSettlements(t *testing.T) {
	f := newWatcherFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.seedGroup(t, "g1", "alice", "bob")
	f.seedExpense(t, "g1", "e1", "alice", 100, "alice", "bob")

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, f.store.Settlements().Insert(ctx, &types.Settlement{
		ID: "s1", GroupID: "g1", PayerID: "bob", PayeeID: "alice", Amount: 50,
		CreatedAt: now, UpdatedAt: now,
	}))

	ch, err := f.watcher.Watch(ctx, "g1")
	require.NoError(t, err)

	snapshot := waitSnapshot(t, ch)
	assert.InDelta(t, 0, snapshot.Balances["alice"], Epsilon)
	assert.InDelta(t, 0, snapshot.Balances["bob"], Epsilon)
	assert.Empty(t, snapshot.Settlements)
}

func TestWatch_ChannelClosesOnCancel(t *testing.T) {
	f := newWatcherFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.seedGroup(t, "g1", "alice")

	ch, err := f.watcher.Watch(ctx, "g1")
	require.NoError(t, err)
	waitSnapshot(t, ch)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCompute_PropagatesStoreErrors(t *testing.T) {
	st := new(storemocks.Store)
	st.MemberStore.On("ListByGroup", mock.Anything, "g1").
		Return(nil, apperrors.NewDatabaseError(errors.New("disk I/O error")))

	watcher := NewWatcher(st, events.NewService())

	_, err := watcher.Compute(context.Background(), "g1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	st.MemberStore.AssertExpectations(t)
}
