package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/splitmate-app/splitmate-sync/types"
)

type outboxStore struct {
	q querier
}

// Enqueue inserts or replaces the pending entry for the entity. The upsert
// keys on (owner_id, entity_type, entity_id); replacing resets retry
// bookkeeping so a type change (create -> update) gets a fresh budget, and
// bumps version so an in-flight processing pass can tell the row changed.
func (s *outboxStore) Enqueue(ctx context.Context, entry *types.OutboxEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	var metadata interface{}
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal outbox metadata: %w", err)
		}
		metadata = string(raw)
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sync_queue (owner_id, entity_type, entity_id, operation_type, metadata, created_at, retry_count, last_error, version)
		VALUES (?, ?, ?, ?, ?, ?, 0, NULL, 0)
		ON CONFLICT (owner_id, entity_type, entity_id) DO UPDATE SET
			operation_type = excluded.operation_type,
			metadata = excluded.metadata,
			created_at = excluded.created_at,
			retry_count = 0,
			last_error = NULL,
			version = sync_queue.version + 1`,
		entry.OwnerID, string(entry.EntityType), entry.EntityID, string(entry.Operation),
		metadata, encodeTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox entry: %w", err)
	}
	return nil
}

func (s *outboxStore) Pending(ctx context.Context, ownerID string, limit int) ([]*types.OutboxEntry, error) {
	query := `
		SELECT id, owner_id, entity_type, entity_id, operation_type, metadata, created_at, retry_count, last_error, version
		FROM sync_queue WHERE owner_id = ? ORDER BY created_at ASC, id ASC`
	args := []interface{}{ownerID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending entries: %w", err)
	}
	defer rows.Close()

	var entries []*types.OutboxEntry
	for rows.Next() {
		var (
			e          types.OutboxEntry
			entityType string
			operation  string
			metadata   sql.NullString
			createdAt  string
			lastError  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &entityType, &e.EntityID, &operation, &metadata, &createdAt, &e.RetryCount, &lastError, &e.Version); err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}

		// The tag is persisted as text, so validate it on the way out; the
		// dispatcher relies on the closed set.
		e.EntityType = types.EntityType(entityType)
		e.Operation = types.OperationType(operation)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal outbox metadata: %w", err)
			}
		}
		if e.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, err
		}
		e.LastError = lastError.String

		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Delete removes the entry only while it still matches the version it was
// read at. An entry re-coalesced mid-push keeps its row, so the newer
// mutation stays pending for the next pass.
func (s *outboxStore) Delete(ctx context.Context, id int64, version int64) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE id = ? AND version = ?`, id, version)
	if err != nil {
		return fmt.Errorf("failed to delete outbox entry: %w", err)
	}
	return nil
}

// MarkFailed records the failure under the same version guard: a row that
// was replaced mid-push keeps its fresh retry budget and error state.
func (s *outboxStore) MarkFailed(ctx context.Context, id int64, version int64, retryCount int, lastError string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE sync_queue SET retry_count = ?, last_error = ? WHERE id = ? AND version = ?`,
		retryCount, lastError, id, version,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry failed: %w", err)
	}
	return nil
}

func (s *outboxStore) CountPending(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE owner_id = ?`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending entries: %w", err)
	}
	return count, nil
}
