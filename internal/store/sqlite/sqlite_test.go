package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitmate-app/splitmate-sync/internal/store"
	"github.com/splitmate-app/splitmate-sync/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testGroup(id string) *types.Group {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &types.Group{
		ID:             id,
		Name:           "Trip to Lisbon",
		CreatedBy:      "user-1",
		Currency:       "EUR",
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func testExpense(id, groupID string) *types.Expense {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &types.Expense{
		ID:          id,
		GroupID:     groupID,
		PaidBy:      "user-1",
		Description: "Dinner",
		Amount:      42.50,
		Currency:    "EUR",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestGroupStore_CRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g := testGroup("g1")
	inserted, err := s.Groups().InsertIgnore(ctx, g)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Insert-or-ignore tolerates the replay of an initial sync.
	inserted, err = s.Groups().InsertIgnore(ctx, g)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.Groups().Get(ctx, "g1", false)
	require.NoError(t, err)
	assert.Equal(t, "Trip to Lisbon", got.Name)
	assert.True(t, got.UpdatedAt.Equal(g.UpdatedAt))

	g.Name = "Lisbon 2024"
	g.UpdatedAt = g.UpdatedAt.Add(time.Minute)
	require.NoError(t, s.Groups().Update(ctx, g))

	got, err = s.Groups().Get(ctx, "g1", false)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon 2024", got.Name)

	_, err = s.Groups().Get(ctx, "missing", false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGroupStore_SoftDeleteVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, insertGroup(t, s, "g1"))
	when := time.Now().UTC()
	require.NoError(t, s.Groups().SoftDelete(ctx, "g1", when))

	_, err := s.Groups().Get(ctx, "g1", false)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Groups().Get(ctx, "g1", true)
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
}

func TestGroupStore_HardDeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, insertGroup(t, s, "g1"))
	_, err := s.Expenses().InsertIgnore(ctx, testExpense("e1", "g1"))
	require.NoError(t, err)
	_, err = s.Shares().InsertIgnore(ctx, &types.ExpenseShare{
		ExpenseID: "e1", UserID: "user-1", Amount: 42.50,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, s.Groups().HardDelete(ctx, "g1"))

	_, err = s.Expenses().Get(ctx, "e1", true)
	assert.ErrorIs(t, err, store.ErrNotFound)
	shares, err := s.Shares().ListByExpense(ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, shares)
}

func TestExpenseStore_SetUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, insertGroup(t, s, "g1"))
	_, err := s.Expenses().InsertIgnore(ctx, testExpense("e1", "g1"))
	require.NoError(t, err)

	serverTime := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Expenses().SetUpdatedAt(ctx, "e1", serverTime))

	got, err := s.Expenses().Get(ctx, "e1", false)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(serverTime))
}

func TestOutbox_CoalescingResetsRetryBudget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Outbox().Enqueue(ctx, &types.OutboxEntry{
		OwnerID:    "user-1",
		EntityType: types.EntityTypeExpense,
		EntityID:   "e1",
		Operation:  types.OperationCreate,
	}))

	entries, err := s.Outbox().Pending(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Simulate a couple of failed upload attempts.
	require.NoError(t, s.Outbox().MarkFailed(ctx, entries[0].ID, entries[0].Version, 2, "network unreachable"))

	// A second local edit coalesces into the same row with a fresh budget.
	require.NoError(t, s.Outbox().Enqueue(ctx, &types.OutboxEntry{
		OwnerID:    "user-1",
		EntityType: types.EntityTypeExpense,
		EntityID:   "e1",
		Operation:  types.OperationUpdate,
	}))

	entries, err = s.Outbox().Pending(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.OperationUpdate, entries[0].Operation)
	assert.Equal(t, 0, entries[0].RetryCount)
	assert.Empty(t, entries[0].LastError)
}

func TestOutbox_VersionGuardsCompletionOfReplacedEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Outbox().Enqueue(ctx, &types.OutboxEntry{
		OwnerID:    "user-1",
		EntityType: types.EntityTypeExpense,
		EntityID:   "e1",
		Operation:  types.OperationCreate,
	}))
	snapshot, err := s.Outbox().Pending(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, int64(0), snapshot[0].Version)

	// Coalescing replacement bumps the version in place.
	require.NoError(t, s.Outbox().Enqueue(ctx, &types.OutboxEntry{
		OwnerID:    "user-1",
		EntityType: types.EntityTypeExpense,
		EntityID:   "e1",
		Operation:  types.OperationUpdate,
	}))
	entries, err := s.Outbox().Pending(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, snapshot[0].ID, entries[0].ID)
	assert.Equal(t, int64(1), entries[0].Version)

	// Completing or failing against the stale snapshot leaves the fresh
	// replacement untouched.
	require.NoError(t, s.Outbox().Delete(ctx, snapshot[0].ID, snapshot[0].Version))
	require.NoError(t, s.Outbox().MarkFailed(ctx, snapshot[0].ID, snapshot[0].Version, 3, "stale failure"))

	entries, err = s.Outbox().Pending(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.OperationUpdate, entries[0].Operation)
	assert.Equal(t, 0, entries[0].RetryCount)
	assert.Empty(t, entries[0].LastError)

	// With the current version the delete goes through.
	require.NoError(t, s.Outbox().Delete(ctx, entries[0].ID, entries[0].Version))
	entries, err = s.Outbox().Pending(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOutbox_PendingOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Outbox().Enqueue(ctx, &types.OutboxEntry{
			OwnerID:    "user-1",
			EntityType: types.EntityTypeExpense,
			EntityID:   fmt.Sprintf("e%d", i),
			Operation:  types.OperationCreate,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}
	// A different owner's entry stays out of user-1's batch.
	require.NoError(t, s.Outbox().Enqueue(ctx, &types.OutboxEntry{
		OwnerID:    "user-2",
		EntityType: types.EntityTypeExpense,
		EntityID:   "other",
		Operation:  types.OperationCreate,
	}))

	entries, err := s.Outbox().Pending(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "e0", entries[0].EntityID)
	assert.Equal(t, "e2", entries[2].EntityID)

	limited, err := s.Outbox().Pending(ctx, "user-1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	count, err := s.Outbox().CountPending(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestOutbox_MetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Outbox().Enqueue(ctx, &types.OutboxEntry{
		OwnerID:    "user-1",
		EntityType: types.EntityTypeExpense,
		EntityID:   "e1",
		Operation:  types.OperationDelete,
		Metadata:   map[string]string{types.MetadataGroupID: "g1"},
	}))

	entries, err := s.Outbox().Pending(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "g1", entries[0].GroupID())
}

func TestRunInTx_RollsBackBothWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, insertGroup(t, s, "g1"))

	boom := fmt.Errorf("boom")
	err := s.RunInTx(ctx, func(tx store.Store) error {
		if _, err := tx.Expenses().InsertIgnore(ctx, testExpense("e1", "g1")); err != nil {
			return err
		}
		if err := tx.Outbox().Enqueue(ctx, &types.OutboxEntry{
			OwnerID:    "user-1",
			EntityType: types.EntityTypeExpense,
			EntityID:   "e1",
			Operation:  types.OperationCreate,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Neither the entity write nor the enqueue survived.
	_, err = s.Expenses().Get(ctx, "e1", true)
	assert.ErrorIs(t, err, store.ErrNotFound)
	count, err := s.Outbox().CountPending(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunInTx_CommitsBothWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, insertGroup(t, s, "g1"))

	err := s.RunInTx(ctx, func(tx store.Store) error {
		if _, err := tx.Expenses().InsertIgnore(ctx, testExpense("e1", "g1")); err != nil {
			return err
		}
		return tx.Outbox().Enqueue(ctx, &types.OutboxEntry{
			OwnerID:    "user-1",
			EntityType: types.EntityTypeExpense,
			EntityID:   "e1",
			Operation:  types.OperationCreate,
		})
	})
	require.NoError(t, err)

	_, err = s.Expenses().Get(ctx, "e1", false)
	require.NoError(t, err)
	count, err := s.Outbox().CountPending(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func insertGroup(t *testing.T, s *SQLiteStore, id string) error {
	t.Helper()
	_, err := s.Groups().InsertIgnore(context.Background(), testGroup(id))
	return err
}
