package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/splitmate-app/splitmate-sync/internal/store"
	"github.com/splitmate-app/splitmate-sync/types"
)

type groupStore struct {
	q querier
}

const groupColumns = `id, name, created_by, currency, is_personal, last_activity_at, created_at, updated_at, deleted_at`

func scanGroup(row interface{ Scan(...interface{}) error }) (*types.Group, error) {
	var (
		g                                    types.Group
		isPersonal                           int
		lastActivityAt, createdAt, updatedAt string
		deletedAt                            sql.NullString
	)
	err := row.Scan(&g.ID, &g.Name, &g.CreatedBy, &g.Currency, &isPersonal, &lastActivityAt, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}

	g.IsPersonal = isPersonal != 0
	if g.LastActivityAt, err = decodeTime(lastActivityAt); err != nil {
		return nil, err
	}
	if g.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, err
	}
	if g.DeletedAt, err = decodeNullableTime(deletedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *groupStore) Get(ctx context.Context, id string, includeDeleted bool) (*types.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = ?`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	return scanGroup(s.q.QueryRowContext(ctx, query, id))
}

func (s *groupStore) InsertIgnore(ctx context.Context, group *types.Group) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO groups (`+groupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID, group.Name, group.CreatedBy, group.Currency, boolToInt(group.IsPersonal),
		encodeTime(group.LastActivityAt), encodeTime(group.CreatedAt), encodeTime(group.UpdatedAt),
		encodeNullableTime(group.DeletedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *groupStore) Update(ctx context.Context, group *types.Group) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE groups
		SET name = ?, created_by = ?, currency = ?, is_personal = ?,
		    last_activity_at = ?, updated_at = ?, deleted_at = ?
		WHERE id = ?`,
		group.Name, group.CreatedBy, group.Currency, boolToInt(group.IsPersonal),
		encodeTime(group.LastActivityAt), encodeTime(group.UpdatedAt),
		encodeNullableTime(group.DeletedAt), group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return requireRow(res)
}

func (s *groupStore) SetUpdatedAt(ctx context.Context, id string, updatedAt time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE groups SET updated_at = ? WHERE id = ?`,
		encodeTime(updatedAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set group updated_at: %w", err)
	}
	return requireRow(res)
}

func (s *groupStore) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE groups SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		encodeTime(deletedAt), encodeTime(deletedAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete group: %w", err)
	}
	return requireRow(res)
}

func (s *groupStore) HardDelete(ctx context.Context, id string) error {
	// Members, expenses and shares go with the group via ON DELETE CASCADE.
	_, err := s.q.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to hard-delete group: %w", err)
	}
	return nil
}

func (s *groupStore) ListByUser(ctx context.Context, userID string) ([]*types.Group, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT g.id, g.name, g.created_by, g.currency, g.is_personal,
		       g.last_activity_at, g.created_at, g.updated_at, g.deleted_at
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ? AND g.deleted_at IS NULL
		ORDER BY g.last_activity_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*types.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// requireRow maps "zero rows affected" to store.ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
