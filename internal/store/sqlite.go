package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"adforge/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore は WorkflowRun / GeneratedContent / Critique を SQLite に永続化します。
// フェーズ遷移ごとに独立した 1 回の書き込みを行い、フェーズを跨ぐトランザクションは持ちません。
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore はデータベースを開き、スキーマを作成します。
// path に ":memory:" を指定するとプロセス内のみのデータベースになります。
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// 単一コネクションで書き込みを直列化する。:memory: の共有にも必要。
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close はデータベース接続を閉じます。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS workflow_runs (
			id TEXT PRIMARY KEY,
			content_kind TEXT NOT NULL,
			initial_prompt TEXT NOT NULL,
			prompt TEXT NOT NULL,
			brand TEXT NOT NULL,
			status TEXT NOT NULL,
			current_step TEXT NOT NULL,
			iteration_count INTEGER NOT NULL DEFAULT 0,
			max_iterations INTEGER NOT NULL,
			score_threshold REAL NOT NULL,
			generated_content_id TEXT NOT NULL DEFAULT '',
			critique_id TEXT NOT NULL DEFAULT '',
			final_scores TEXT,
			threshold_met INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			cancel_requested INTEGER NOT NULL DEFAULT 0,
			lease_owner TEXT NOT NULL DEFAULT '',
			lease_until TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			completed_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_runs_status ON workflow_runs (status, created_at);`,
		`CREATE TABLE IF NOT EXISTS generated_contents (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL DEFAULT '',
			iteration INTEGER NOT NULL DEFAULT 0,
			content_kind TEXT NOT NULL,
			prompt TEXT NOT NULL,
			media_url TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			brand TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			approval_status TEXT NOT NULL DEFAULT '',
			rejection_reason TEXT NOT NULL DEFAULT '',
			reviewed_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_generated_contents_run ON generated_contents (run_id, iteration);`,
		`CREATE TABLE IF NOT EXISTS critiques (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL DEFAULT '',
			content_id TEXT NOT NULL DEFAULT '',
			media_url TEXT NOT NULL,
			content_kind TEXT NOT NULL,
			caption TEXT NOT NULL,
			brand_colors TEXT NOT NULL,
			brand_fit REAL NOT NULL,
			visual_quality REAL NOT NULL,
			message_clarity REAL NOT NULL,
			tone_of_voice REAL NOT NULL,
			safety REAL NOT NULL,
			brand_validation TEXT NOT NULL,
			safety_breakdown TEXT NOT NULL,
			summary TEXT NOT NULL,
			refinement_suggestion TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_critiques_created ON critiques (created_at);`,
		`CREATE TABLE IF NOT EXISTS approval_history (
			id TEXT PRIMARY KEY,
			content_id TEXT NOT NULL,
			content_kind TEXT NOT NULL,
			action TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			previous_status TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_approval_history_content ON approval_history (content_id, created_at);`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return s.addMissingColumns(ctx)
}

// addedColumns は初期スキーマの後に追加された列です。古いデータベースファイルには ALTER TABLE で追加します。
var addedColumns = []struct {
	table, column, decl string
}{
	{"workflow_runs", "lease_owner", "TEXT NOT NULL DEFAULT ''"},
	{"workflow_runs", "lease_until", "TEXT"},
	{"generated_contents", "approval_status", "TEXT NOT NULL DEFAULT ''"},
	{"generated_contents", "rejection_reason", "TEXT NOT NULL DEFAULT ''"},
	{"generated_contents", "reviewed_at", "TEXT"},
}

func (s *SQLiteStore) addMissingColumns(ctx context.Context) error {
	for _, c := range addedColumns {
		var n int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.column).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", c.table, err)
		}
		if n > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, c.table, c.column, c.decl)); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

// --- WorkflowRun ---

const runColumns = `id, content_kind, initial_prompt, prompt, brand, status, current_step, iteration_count,
	max_iterations, score_threshold, generated_content_id, critique_id, final_scores, threshold_met,
	error_message, cancel_requested, created_at, updated_at, completed_at`

// CreateRun は新しいランを保存します。CreatedAt/UpdatedAt が未設定なら現在時刻を入れます。
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.WorkflowRun) error {
	now := s.now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	brand, err := json.Marshal(run.Brand)
	if err != nil {
		return fmt.Errorf("failed to encode brand assets: %w", err)
	}
	scores, err := encodeScores(run.FinalScores)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO workflow_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.ContentKind), run.InitialPrompt, run.Prompt, string(brand),
		string(run.Status), string(run.CurrentStep), run.IterationCount,
		run.MaxIterations, run.ScoreThreshold, run.GeneratedContentID, run.CritiqueID, scores,
		run.ThresholdMet, run.ErrorMessage, run.CancelRequested,
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt), formatTimePtr(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun は ID でランを取得します。存在しない場合は domain.ErrNotFound を返します。
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.WorkflowRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM workflow_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	return run, nil
}

// UpdateRun は running 中のランの可変フィールドを書き込みます。
// 終了済みのランは更新できず、cancel_requested は RequestCancel 以外から変更されません。
func (s *SQLiteStore) UpdateRun(ctx context.Context, run *domain.WorkflowRun) error {
	run.UpdatedAt = s.now()
	if run.Status.Terminal() && run.CompletedAt == nil {
		t := run.UpdatedAt
		run.CompletedAt = &t
	}

	scores, err := encodeScores(run.FinalScores)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE workflow_runs
		SET prompt = ?, status = ?, current_step = ?, iteration_count = ?, generated_content_id = ?,
			critique_id = ?, final_scores = ?, threshold_met = ?, error_message = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		run.Prompt, string(run.Status), string(run.CurrentStep), run.IterationCount, run.GeneratedContentID,
		run.CritiqueID, scores, run.ThresholdMet, run.ErrorMessage, formatTime(run.UpdatedAt), formatTimePtr(run.CompletedAt),
		run.ID, string(domain.RunStatusRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.ID, err)
	}
	return s.checkRunUpdated(ctx, res, run.ID)
}

func (s *SQLiteStore) checkRunUpdated(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	current, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("run %s is already %s and can no longer be modified", id, current.Status)
}

// RequestCancel は running 中のランにキャンセル要求を記録し、最新の状態を返します。
// 終了済みのランに対しては何も変更せずにその状態を返します。
func (s *SQLiteStore) RequestCancel(ctx context.Context, id string) (*domain.WorkflowRun, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE workflow_runs SET cancel_requested = 1, updated_at = ?
		WHERE id = ? AND status = ?`, formatTime(s.now()), id, string(domain.RunStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("failed to request cancel for run %s: %w", id, err)
	}
	return s.GetRun(ctx, id)
}

// ListRuns は新しい順にランを返し、フィルタ条件に合う総件数も返します。
func (s *SQLiteStore) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.WorkflowRun, int, error) {
	var where string
	var args []any
	if filter.Status != "" {
		where = " WHERE status = ?"
		args = append(args, string(filter.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflow_runs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM workflow_runs`+where+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.WorkflowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// --- GeneratedContent ---

const contentColumns = `id, run_id, iteration, content_kind, prompt, media_url, status, brand, error_message,
	approval_status, rejection_reason, reviewed_at, created_at, updated_at`

// CreateContent は pending の生成レコードを保存します。
func (s *SQLiteStore) CreateContent(ctx context.Context, c *domain.GeneratedContent) error {
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	brand, err := json.Marshal(c.Brand)
	if err != nil {
		return fmt.Errorf("failed to encode brand assets: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO generated_contents (`+contentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.RunID, c.Iteration, string(c.Kind), c.Prompt, c.MediaURL, string(c.Status), string(brand),
		c.ErrorMessage, string(c.ApprovalStatus), c.RejectionReason, formatTimePtr(c.ReviewedAt),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert content %s: %w", c.ID, err)
	}
	return nil
}

// GetContent は ID で生成レコードを取得します。
func (s *SQLiteStore) GetContent(ctx context.Context, id string) (*domain.GeneratedContent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM generated_contents WHERE id = ?`, id)
	c, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read content %s: %w", id, err)
	}
	return c, nil
}

// CompleteContent は pending の生成レコードを終了状態へ遷移させます。
// completed の場合はメディア URL が必須です。pending 以外のレコードは変更できません。
func (s *SQLiteStore) CompleteContent(ctx context.Context, id string, status domain.ContentStatus, mediaURL, errMsg string) error {
	if status == domain.ContentStatusPending {
		return fmt.Errorf("content %s: cannot transition back to pending", id)
	}
	if status == domain.ContentStatusCompleted && mediaURL == "" {
		return fmt.Errorf("content %s: completed content requires a media url", id)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE generated_contents
		SET status = ?, media_url = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(status), mediaURL, errMsg, formatTime(s.now()), id, string(domain.ContentStatusPending))
	if err != nil {
		return fmt.Errorf("failed to update content %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		current, err := s.GetContent(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("content %s is already %s", id, current.Status)
	}
	return nil
}

// ListContentsByRun はランの生成履歴をイテレーション順に返します。
func (s *SQLiteStore) ListContentsByRun(ctx context.Context, runID string) ([]domain.GeneratedContent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+contentColumns+` FROM generated_contents
		WHERE run_id = ? ORDER BY iteration ASC, created_at ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contents: %w", err)
	}
	defer rows.Close()

	var contents []domain.GeneratedContent
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		contents = append(contents, *c)
	}
	return contents, rows.Err()
}

// --- Critique ---

const critiqueColumns = `id, run_id, content_id, media_url, content_kind, caption, brand_colors,
	brand_fit, visual_quality, message_clarity, tone_of_voice, safety,
	brand_validation, safety_breakdown, summary, refinement_suggestion, created_at`

// CreateCritique はスコアと共に評価レコードを一度に保存します。
func (s *SQLiteStore) CreateCritique(ctx context.Context, c *domain.Critique) error {
	if err := c.Scores.Validate(); err != nil {
		return fmt.Errorf("critique %s: %w", c.ID, err)
	}
	c.CreatedAt = s.now()

	colors, err := json.Marshal(nonNil(c.BrandColors))
	if err != nil {
		return err
	}
	validation, err := json.Marshal(c.BrandValidation)
	if err != nil {
		return err
	}
	breakdown, err := json.Marshal(c.SafetyBreakdown)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO critiques (`+critiqueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.RunID, c.ContentID, c.MediaURL, string(c.ContentKind), c.Caption, string(colors),
		c.Scores.BrandFit, c.Scores.VisualQuality, c.Scores.MessageClarity, c.Scores.ToneOfVoice, c.Scores.Safety,
		string(validation), string(breakdown), c.Summary, c.RefinementSuggestion, formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert critique %s: %w", c.ID, err)
	}
	return nil
}

// GetCritique は ID で評価レコードを取得します。
func (s *SQLiteStore) GetCritique(ctx context.Context, id string) (*domain.Critique, error) {
	c, err := scanCritique(s.db.QueryRowContext(ctx, `SELECT `+critiqueColumns+` FROM critiques WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("critique %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read critique %s: %w", id, err)
	}
	return c, nil
}

// ListCritiques は評価レコードを新しい順に返し、総件数も返します。
func (s *SQLiteStore) ListCritiques(ctx context.Context, limit, offset int) ([]domain.Critique, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM critiques`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count critiques: %w", err)
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+critiqueColumns+` FROM critiques
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list critiques: %w", err)
	}
	defer rows.Close()

	var critiques []domain.Critique
	for rows.Next() {
		c, err := scanCritique(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan critique: %w", err)
		}
		critiques = append(critiques, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return critiques, total, nil
}

func scanCritique(sc scanner) (*domain.Critique, error) {
	var (
		c                                 domain.Critique
		kind, colors, validation, breakdn string
		created                           string
	)
	err := sc.Scan(
		&c.ID, &c.RunID, &c.ContentID, &c.MediaURL, &kind, &c.Caption, &colors,
		&c.Scores.BrandFit, &c.Scores.VisualQuality, &c.Scores.MessageClarity, &c.Scores.ToneOfVoice, &c.Scores.Safety,
		&validation, &breakdn, &c.Summary, &c.RefinementSuggestion, &created,
	)
	if err != nil {
		return nil, err
	}

	c.ContentKind = domain.ContentKind(kind)
	if err := json.Unmarshal([]byte(colors), &c.BrandColors); err != nil {
		return nil, fmt.Errorf("failed to decode brand colors: %w", err)
	}
	if err := json.Unmarshal([]byte(validation), &c.BrandValidation); err != nil {
		return nil, fmt.Errorf("failed to decode brand validation: %w", err)
	}
	if err := json.Unmarshal([]byte(breakdn), &c.SafetyBreakdown); err != nil {
		return nil, fmt.Errorf("failed to decode safety breakdown: %w", err)
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &c, nil
}

// --- helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*domain.WorkflowRun, error) {
	var (
		run                           domain.WorkflowRun
		kind, brand, status, step     string
		scores                        sql.NullString
		created, updated              string
		completed                     sql.NullString
		thresholdMet, cancelRequested bool
	)
	err := sc.Scan(&run.ID, &kind, &run.InitialPrompt, &run.Prompt, &brand, &status, &step, &run.IterationCount,
		&run.MaxIterations, &run.ScoreThreshold, &run.GeneratedContentID, &run.CritiqueID, &scores, &thresholdMet,
		&run.ErrorMessage, &cancelRequested, &created, &updated, &completed)
	if err != nil {
		return nil, err
	}

	run.ContentKind = domain.ContentKind(kind)
	run.Status = domain.RunStatus(status)
	run.CurrentStep = domain.RunStep(step)
	run.ThresholdMet = thresholdMet
	run.CancelRequested = cancelRequested

	if err := json.Unmarshal([]byte(brand), &run.Brand); err != nil {
		return nil, fmt.Errorf("failed to decode brand assets: %w", err)
	}
	if scores.Valid && scores.String != "" {
		if err := json.Unmarshal([]byte(scores.String), &run.FinalScores); err != nil {
			return nil, fmt.Errorf("failed to decode final scores: %w", err)
		}
	}
	if run.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if run.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if completed.Valid && completed.String != "" {
		t, err := parseTime(completed.String)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &t
	}
	return &run, nil
}

func scanContent(sc scanner) (*domain.GeneratedContent, error) {
	var (
		c                             domain.GeneratedContent
		kind, status, brand, approval string
		reviewed                      sql.NullString
		created, updated              string
	)
	err := sc.Scan(&c.ID, &c.RunID, &c.Iteration, &kind, &c.Prompt, &c.MediaURL, &status, &brand,
		&c.ErrorMessage, &approval, &c.RejectionReason, &reviewed, &created, &updated)
	if err != nil {
		return nil, err
	}
	c.Kind = domain.ContentKind(kind)
	c.Status = domain.ContentStatus(status)
	c.ApprovalStatus = domain.ApprovalStatus(approval)
	if reviewed.Valid && reviewed.String != "" {
		t, err := parseTime(reviewed.String)
		if err != nil {
			return nil, err
		}
		c.ReviewedAt = &t
	}
	if err := json.Unmarshal([]byte(brand), &c.Brand); err != nil {
		return nil, fmt.Errorf("failed to decode brand assets: %w", err)
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &c, nil
}

func encodeScores(scores map[string]float64) (sql.NullString, error) {
	if scores == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(scores)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode final scores: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// timeLayout は固定長のため、文字列比較での並び替えが時刻順と一致します。
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
