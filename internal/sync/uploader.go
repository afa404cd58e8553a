// Package sync implements the synchronization engine: the durable upload
// queue and its processor, the realtime reconciliation service absorbing
// remote changes, and the coordinator that ties triggers to queue drains.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/splitmate-app/splitmate-sync/config"
	apperrors "github.com/splitmate-app/splitmate-sync/errors"
	"github.com/splitmate-app/splitmate-sync/internal/events"
	"github.com/splitmate-app/splitmate-sync/internal/remote"
	"github.com/splitmate-app/splitmate-sync/internal/store"
	"github.com/splitmate-app/splitmate-sync/logger"
	"github.com/splitmate-app/splitmate-sync/types"
)

// Uploader owns the local→remote half of synchronization: it enqueues
// pending mutations atomically with their entity writes and drains the
// queue against the remote store.
type Uploader struct {
	store     store.Store
	remote    remote.Client
	publisher types.EventPublisher
	cfg       config.SyncConfig
	log       *zap.SugaredLogger
	metrics   *metrics
	processMu stdsync.Mutex
}

func NewUploader(st store.Store, rc remote.Client, publisher types.EventPublisher, cfg config.SyncConfig) *Uploader {
	return &Uploader{
		store:     st,
		remote:    rc,
		publisher: publisher,
		cfg:       cfg,
		log:       logger.GetLogger().Named("uploader"),
		metrics:   newMetrics(),
	}
}

// Enqueue applies the entity mutation and records the pending upload in one
// transaction, so a crash can never leave an edit without its queue entry or
// vice versa. For a personal group, entries of type group or group_member are
// silently skipped while the mutation still commits; expenses under a
// personal group enqueue normally.
func (u *Uploader) Enqueue(ctx context.Context, entry *types.OutboxEntry, mutate func(store.Store) error) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	skipped := false
	err := u.store.RunInTx(ctx, func(tx store.Store) error {
		if mutate != nil {
			if err := mutate(tx); err != nil {
				return err
			}
		}
		skip, err := u.personalGroupExcluded(ctx, tx, entry)
		if err != nil {
			return err
		}
		if skip {
			skipped = true
			return nil
		}
		return tx.Outbox().Enqueue(ctx, entry)
	})
	if err != nil {
		return err
	}
	if skipped {
		u.log.Debugw("Skipped enqueue for personal group entity",
			"entityType", entry.EntityType, "entityId", entry.EntityID)
		return nil
	}

	// Fire-and-forget: the entry is durable regardless of whether anyone
	// hears about it.
	payload := types.QueueItemAddedPayload{
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Operation:  entry.Operation,
	}
	if err := events.PublishEventWithContext(u.publisher, ctx, types.EventTypeQueueItemAdded,
		entry.GroupID(), entry.OwnerID, payload, types.SourceLocal); err != nil {
		u.log.Warnw("Failed to publish queue item event", "entryEntityId", entry.EntityID, "error", err)
	}
	return nil
}

func validateEntry(entry *types.OutboxEntry) error {
	if entry.OwnerID == "" {
		return apperrors.ValidationFailed("invalid outbox entry", "owner id is required")
	}
	if entry.EntityID == "" {
		return apperrors.ValidationFailed("invalid outbox entry", "entity id is required")
	}
	if _, err := types.ParseEntityType(string(entry.EntityType)); err != nil {
		return apperrors.ValidationFailed("invalid outbox entry", err.Error())
	}
	switch entry.Operation {
	case types.OperationCreate, types.OperationUpdate, types.OperationDelete:
		return nil
	default:
		return apperrors.ValidationFailed("invalid outbox entry", fmt.Sprintf("unknown operation %q", entry.Operation))
	}
}

// personalGroupExcluded reports whether the entry targets the metadata or
// membership of a personal group, which is never transmitted.
func (u *Uploader) personalGroupExcluded(ctx context.Context, tx store.Store, entry *types.OutboxEntry) (bool, error) {
	var groupID string
	switch entry.EntityType {
	case types.EntityTypeGroup:
		groupID = entry.EntityID
	case types.EntityTypeGroupMember:
		gid, _, ok := types.SplitEntityID(entry.EntityID)
		if !ok {
			return false, apperrors.ValidationFailed("invalid outbox entry", "malformed member entity id")
		}
		groupID = gid
	default:
		return false, nil
	}

	group, err := tx.Groups().Get(ctx, groupID, true)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return group.IsPersonal, nil
}

// ProcessQueue drains the owner's pending entries oldest-first. Invocations
// are single-flight: a call that finds a drain already running returns an
// empty result immediately instead of queueing behind it.
//
// Each entry succeeds or fails independently. Entries whose retry budget is
// exhausted are left in place, counted as failures, and skipped.
func (u *Uploader) ProcessQueue(ctx context.Context, ownerID string) (*types.ProcessResult, error) {
	if !u.processMu.TryLock() {
		u.log.Debugw("Queue drain already in flight", "ownerId", ownerID)
		return &types.ProcessResult{}, nil
	}
	defer u.processMu.Unlock()

	start := time.Now()
	defer func() {
		u.metrics.batchDuration.Observe(time.Since(start).Seconds())
	}()

	entries, err := u.store.Outbox().Pending(ctx, ownerID, u.cfg.QueueBatchLimit)
	if err != nil {
		return nil, err
	}

	result := &types.ProcessResult{}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.TotalProcessed++

		if entry.RetryCount >= u.cfg.MaxUploadRetries {
			result.FailureCount++
			u.metrics.entriesProcessed.WithLabelValues("dormant", string(entry.EntityType)).Inc()
			continue
		}

		if err := u.processEntry(ctx, entry); err != nil {
			result.FailureCount++
			u.metrics.entriesProcessed.WithLabelValues("failure", string(entry.EntityType)).Inc()
			nextRetry := entry.RetryCount + 1
			if !apperrors.IsRetryable(err) {
				// A retry cannot fix a permanent rejection; park the entry
				// immediately instead of burning the remaining attempts.
				nextRetry = u.cfg.MaxUploadRetries
			}
			u.log.Warnw("Upload entry failed",
				"entryId", entry.ID,
				"entityType", entry.EntityType,
				"entityId", entry.EntityID,
				"operation", entry.Operation,
				"retryCount", nextRetry,
				"retryable", apperrors.IsRetryable(err),
				"error", err,
			)
			if mfErr := u.store.Outbox().MarkFailed(ctx, entry.ID, entry.Version, nextRetry, err.Error()); mfErr != nil {
				u.log.Errorw("Failed to record entry failure", "entryId", entry.ID, "error", mfErr)
			}
			continue
		}

		// Version-guarded: an entry re-enqueued while this push was in flight
		// keeps its row, so the newer mutation uploads on the next pass.
		if err := u.store.Outbox().Delete(ctx, entry.ID, entry.Version); err != nil {
			// The push landed; a duplicate on the next pass is a safe upsert.
			result.FailureCount++
			u.log.Errorw("Failed to remove completed entry", "entryId", entry.ID, "error", err)
			continue
		}
		result.SuccessCount++
		u.metrics.entriesProcessed.WithLabelValues("success", string(entry.EntityType)).Inc()
	}

	if pending, err := u.store.Outbox().CountPending(ctx, ownerID); err == nil {
		u.metrics.pendingEntries.Set(float64(pending))
	}

	if result.TotalProcessed > 0 {
		u.log.Infow("Upload queue batch complete",
			"ownerId", ownerID,
			"total", result.TotalProcessed,
			"succeeded", result.SuccessCount,
			"failed", result.FailureCount,
			"duration", time.Since(start),
		)
	}
	return result, nil
}

// PendingCount exposes the queue depth for diagnostics.
func (u *Uploader) PendingCount(ctx context.Context, ownerID string) (int, error) {
	return u.store.Outbox().CountPending(ctx, ownerID)
}

func (u *Uploader) processEntry(ctx context.Context, entry *types.OutboxEntry) error {
	switch entry.EntityType {
	case types.EntityTypeExpense:
		return u.pushExpense(ctx, entry)
	case types.EntityTypeGroup:
		return u.pushGroup(ctx, entry)
	case types.EntityTypeGroupMember:
		return u.pushMember(ctx, entry)
	case types.EntityTypeExpenseShare:
		return u.pushShare(ctx, entry)
	default:
		return apperrors.RemotePermanent(nil, fmt.Sprintf("unrecognized entity type %q", entry.EntityType))
	}
}

func (u *Uploader) pushGroup(ctx context.Context, entry *types.OutboxEntry) error {
	if entry.Operation == types.OperationDelete {
		if err := u.remote.DeleteGroup(ctx, entry.EntityID); err != nil {
			return err
		}
		if err := u.store.Groups().HardDelete(ctx, entry.EntityID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return nil
	}

	// Always push the latest local state, not the state at enqueue time.
	group, err := u.store.Groups().Get(ctx, entry.EntityID, true)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if group.IsPersonal {
		// No-op success; the group was flipped personal after enqueue.
		return nil
	}

	serverTime, err := u.remote.SaveGroup(ctx, group)
	if err != nil {
		return err
	}
	// Clock reconciliation: adopt the remote-assigned updatedAt so a later
	// pull does not mistake our own write for a newer local edit.
	return u.store.Groups().SetUpdatedAt(ctx, group.ID, serverTime)
}

func (u *Uploader) pushMember(ctx context.Context, entry *types.OutboxEntry) error {
	groupID, userID, ok := types.SplitEntityID(entry.EntityID)
	if !ok {
		return apperrors.RemotePermanent(nil, fmt.Sprintf("malformed member entity id %q", entry.EntityID))
	}

	if entry.Operation == types.OperationDelete {
		if err := u.remote.DeleteMember(ctx, groupID, userID); err != nil {
			return err
		}
		if err := u.store.Members().Delete(ctx, groupID, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return nil
	}

	group, err := u.store.Groups().Get(ctx, groupID, true)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err == nil && group.IsPersonal {
		return nil
	}

	member, err := u.store.Members().Get(ctx, groupID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	serverTime, err := u.remote.SaveMember(ctx, member)
	if err != nil {
		return err
	}
	member.UpdatedAt = serverTime
	return u.store.Members().Update(ctx, member)
}

func (u *Uploader) pushExpense(ctx context.Context, entry *types.OutboxEntry) error {
	if entry.Operation == types.OperationDelete {
		groupID := entry.GroupID()
		if groupID == "" {
			return apperrors.RemotePermanent(nil, "expense delete entry is missing group id metadata")
		}
		if err := u.remote.DeleteExpense(ctx, groupID, entry.EntityID); err != nil {
			return err
		}
		if err := u.store.Expenses().HardDelete(ctx, entry.EntityID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return nil
	}

	expense, err := u.store.Expenses().Get(ctx, entry.EntityID, true)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	shares, err := u.store.Shares().ListByExpense(ctx, expense.ID)
	if err != nil {
		return err
	}

	serverTime, err := u.remote.SaveExpense(ctx, expense, shares)
	if err != nil {
		return err
	}
	return u.store.Expenses().SetUpdatedAt(ctx, expense.ID, serverTime)
}

func (u *Uploader) pushShare(ctx context.Context, entry *types.OutboxEntry) error {
	expenseID, userID, ok := types.SplitEntityID(entry.EntityID)
	if !ok {
		return apperrors.RemotePermanent(nil, fmt.Sprintf("malformed share entity id %q", entry.EntityID))
	}
	groupID := entry.GroupID()
	if groupID == "" {
		return apperrors.RemotePermanent(nil, "share entry is missing group id metadata")
	}

	if entry.Operation == types.OperationDelete {
		return u.remote.DeleteShare(ctx, groupID, expenseID, userID)
	}

	share, err := u.store.Shares().Get(ctx, expenseID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	serverTime, err := u.remote.SaveShare(ctx, groupID, share)
	if err != nil {
		return err
	}
	share.UpdatedAt = serverTime
	return u.store.Shares().Update(ctx, share)
}
