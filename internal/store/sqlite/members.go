package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/splitmate-app/splitmate-sync/internal/store"
	"github.com/splitmate-app/splitmate-sync/types"
)

type memberStore struct {
	q querier
}

const memberColumns = `group_id, user_id, role, created_at, updated_at`

func scanMember(row interface{ Scan(...interface{}) error }) (*types.GroupMember, error) {
	var (
		m                    types.GroupMember
		createdAt, updatedAt string
	)
	err := row.Scan(&m.GroupID, &m.UserID, &m.Role, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	if m.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *memberStore) Get(ctx context.Context, groupID, userID string) (*types.GroupMember, error) {
	return scanMember(s.q.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	))
}

func (s *memberStore) InsertIgnore(ctx context.Context, member *types.GroupMember) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO group_members (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?)`,
		member.GroupID, member.UserID, member.Role,
		encodeTime(member.CreatedAt), encodeTime(member.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *memberStore) Update(ctx context.Context, member *types.GroupMember) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE group_members SET role = ?, updated_at = ?
		WHERE group_id = ? AND user_id = ?`,
		member.Role, encodeTime(member.UpdatedAt), member.GroupID, member.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	return requireRow(res)
}

func (s *memberStore) Delete(ctx context.Context, groupID, userID string) error {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return requireRow(res)
}

func (s *memberStore) ListByGroup(ctx context.Context, groupID string) ([]*types.GroupMember, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM group_members WHERE group_id = ? ORDER BY user_id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*types.GroupMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
