package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"adforge/internal/domain"
)

// ListContents は生成レコードを新しい順に返し、条件に合う総件数も返します。
func (s *SQLiteStore) ListContents(ctx context.Context, filter domain.ContentFilter) ([]domain.GeneratedContent, int, error) {
	var conds []string
	var args []any
	if filter.Kind != "" {
		conds = append(conds, "content_kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.ApprovalStatus != "" {
		conds = append(conds, "approval_status = ?")
		args = append(args, string(filter.ApprovalStatus))
	}
	if filter.Standalone {
		conds = append(conds, "run_id = ''")
	}
	var where string
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generated_contents`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count contents: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+contentColumns+` FROM generated_contents`+where+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contents: %w", err)
	}
	defer rows.Close()

	var contents []domain.GeneratedContent
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan content: %w", err)
		}
		contents = append(contents, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return contents, total, nil
}

// ReviewContent は completed の生成レコードに承認または却下を記録し、履歴を 1 件追加します。
// rec の ContentID、Action、Reason、ID は呼び出し側が設定し、残りはここで埋めます。
func (s *SQLiteStore) ReviewContent(ctx context.Context, rec *domain.ApprovalRecord) (*domain.GeneratedContent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin review of content %s: %w", rec.ContentID, err)
	}
	defer func() { _ = tx.Rollback() }()

	c, err := scanContent(tx.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM generated_contents WHERE id = ?`, rec.ContentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %s: %w", rec.ContentID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read content %s: %w", rec.ContentID, err)
	}
	if c.Status != domain.ContentStatusCompleted {
		return nil, fmt.Errorf("%w: content %s is %s", domain.ErrContentNotReviewable, c.ID, c.Status)
	}

	now := s.now()
	rec.ContentKind = c.Kind
	rec.PreviousStatus = c.ApprovalStatus
	rec.CreatedAt = now

	reason := ""
	if rec.Action == domain.ApprovalRejected {
		reason = rec.Reason
	}
	if _, err := tx.ExecContext(ctx, `UPDATE generated_contents
		SET approval_status = ?, rejection_reason = ?, reviewed_at = ?, updated_at = ? WHERE id = ?`,
		string(rec.Action), reason, formatTime(now), formatTime(now), c.ID); err != nil {
		return nil, fmt.Errorf("failed to update approval of content %s: %w", c.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO approval_history
		(id, content_id, content_kind, action, reason, previous_status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, c.ID, string(c.Kind), string(rec.Action), rec.Reason, string(rec.PreviousStatus), formatTime(now)); err != nil {
		return nil, fmt.Errorf("failed to record approval history of content %s: %w", c.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit review of content %s: %w", c.ID, err)
	}

	c.ApprovalStatus = rec.Action
	c.RejectionReason = reason
	c.ReviewedAt = &now
	c.UpdatedAt = now
	return c, nil
}

// ListApprovalHistory は生成レコードのレビュー履歴を古い順に返します。
func (s *SQLiteStore) ListApprovalHistory(ctx context.Context, contentID string) ([]domain.ApprovalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content_id, content_kind, action, reason, previous_status, created_at
		FROM approval_history WHERE content_id = ? ORDER BY created_at ASC, id ASC`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval history: %w", err)
	}
	defer rows.Close()

	var history []domain.ApprovalRecord
	for rows.Next() {
		var (
			r                        domain.ApprovalRecord
			kind, action, prev, when string
		)
		if err := rows.Scan(&r.ID, &r.ContentID, &kind, &action, &r.Reason, &prev, &when); err != nil {
			return nil, fmt.Errorf("failed to scan approval record: %w", err)
		}
		r.ContentKind = domain.ContentKind(kind)
		r.Action = domain.ApprovalStatus(action)
		r.PreviousStatus = domain.ApprovalStatus(prev)
		if r.CreatedAt, err = parseTime(when); err != nil {
			return nil, err
		}
		history = append(history, r)
	}
	return history, rows.Err()
}
