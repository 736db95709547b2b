package store

import (
	"context"
	"fmt"
	"time"

	"adforge/internal/domain"
)

// ClaimRun は running のランの実行リースを owner として取得、または延長します。
// 他の owner の有効なリースが残っている場合と、ランが running でない場合は false を返します。
func (s *SQLiteStore) ClaimRun(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `UPDATE workflow_runs SET lease_owner = ?, lease_until = ?
		WHERE id = ? AND status = ?
			AND (lease_owner = '' OR lease_owner = ? OR lease_until IS NULL OR lease_until < ?)`,
		owner, formatTime(now.Add(ttl)), id, string(domain.RunStatusRunning), owner, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("failed to claim run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// ReleaseRun は owner が保持しているリースを手放します。他の owner のリースには触れません。
func (s *SQLiteStore) ReleaseRun(ctx context.Context, id, owner string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE workflow_runs SET lease_owner = '', lease_until = NULL
		WHERE id = ? AND lease_owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to release run %s: %w", id, err)
	}
	return nil
}
