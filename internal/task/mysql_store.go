package task

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	xerrors "MathAgent/internal/errors"
)

// MySQLStore 使用 MySQL 的 task_states 表记录任务状态，表结构由
// storage/mysql 的迁移维护。
type MySQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewMySQLStore 基于已迁移的连接创建 MySQLStore。Close 会关闭 db。
func NewMySQLStore(db *sql.DB) (*MySQLStore, error) {
	if db == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL 连接不能为空")
	}
	return &MySQLStore{db: db, now: time.Now}, nil
}

const taskColumns = `id, query, preferences, status, attempts, max_retries, last_error, error_code,
        session_id, answer, success, counter, rounds, result_detail, created_at, updated_at`

// resultDetail 是 result_detail 列中的 JSON 结构。
type resultDetail struct {
	Trace       json.RawMessage `json:"trace,omitempty"`
	Diagnostics json.RawMessage `json:"diagnostics,omitempty"`
}

// Create 插入新的任务记录。
func (s *MySQLStore) Create(ctx context.Context, task *Task) error {
	if task == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "task 不能为空")
	}
	if strings.TrimSpace(task.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "任务 ID 不能为空")
	}

	now := s.now().Unix()
	if task.CreatedAt == 0 {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	prefs, err := marshalNullable(task.Preferences, len(task.Preferences) == 0)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码任务偏好失败")
	}

	const stmt = `INSERT INTO task_states
        (id, query, preferences, status, attempts, max_retries, last_error, error_code, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, '', '', ?, ?)`

	_, err = s.db.ExecContext(ctx, stmt,
		task.ID,
		task.Query,
		prefs,
		task.Status,
		task.Attempts,
		task.MaxRetries,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrTaskConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入任务失败")
	}
	return nil
}

// Get 查询指定任务。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM task_states WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务失败")
	}
	return task, nil
}

// Claim 将任务标记为运行中并返回最新状态。
func (s *MySQLStore) Claim(ctx context.Context, id string) (*Task, error) {
	const updateStmt = `UPDATE task_states SET status = ?, attempts = attempts + 1, updated_at = ?, last_error = '', error_code = ''
        WHERE id = ? AND status IN (?, ?) AND attempts < max_retries`

	res, err := s.db.ExecContext(ctx, updateStmt,
		StatusRunning,
		s.now().Unix(),
		id,
		StatusPending,
		StatusFailed,
	)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新任务状态失败")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "获取影响行数失败")
	}
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected > 0 {
		return task, nil
	}
	switch {
	case task.Status == StatusSucceeded:
		return task, ErrTaskCompleted
	case task.Status != StatusRunning && task.Attempts >= task.MaxRetries:
		return task, ErrTaskExhausted
	default:
		return task, ErrTaskConflict
	}
}

// MarkSucceeded 将任务标记为成功。
func (s *MySQLStore) MarkSucceeded(ctx context.Context, id string, result ExecutionResult) error {
	return s.update(ctx, id, StatusSucceeded, "", "", &result)
}

// MarkFailed 将任务标记为失败；非终态回到 pending 等待重投。
func (s *MySQLStore) MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, result *ExecutionResult, terminal bool) error {
	status := StatusPending
	if terminal {
		status = StatusFailed
	}
	return s.update(ctx, id, status, string(code), lastError, result)
}

func (s *MySQLStore) update(ctx context.Context, id string, status Status, code, lastError string, result *ExecutionResult) error {
	var (
		res sql.Result
		err error
	)
	now := s.now().Unix()
	if result == nil {
		res, err = s.db.ExecContext(ctx,
			`UPDATE task_states SET status = ?, last_error = ?, error_code = ?, updated_at = ? WHERE id = ?`,
			status, lastError, code, now, id)
	} else {
		detail, encErr := encodeDetail(result)
		if encErr != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, encErr, "编码会话轨迹失败")
		}
		res, err = s.db.ExecContext(ctx,
			`UPDATE task_states SET status = ?, last_error = ?, error_code = ?, session_id = ?, answer = ?, success = ?,
        counter = ?, rounds = ?, result_detail = ?, updated_at = ? WHERE id = ?`,
			status, lastError, code, result.SessionID, result.Answer, result.Success,
			result.Counter, result.Rounds, detail, now, id)
	}
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新任务结果失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// List 返回符合过滤条件的任务。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Task, error) {
	opts.applyDefaults()

	query := `SELECT ` + taskColumns + ` FROM task_states`
	clause, filterArgs := buildFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}
	if opts.Order == SortByUpdatedAsc {
		query += " ORDER BY updated_at ASC, created_at ASC, id ASC"
	} else {
		query += " ORDER BY updated_at DESC, created_at DESC, id ASC"
	}
	query += " LIMIT ? OFFSET ?"
	args := append(filterArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务列表失败")
	}
	defer rows.Close()

	tasks := make([]*Task, 0, opts.Limit)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析任务记录失败")
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历任务失败")
	}
	return tasks, nil
}

// Stats 返回符合过滤条件的任务聚合信息。
func (s *MySQLStore) Stats(ctx context.Context, opts ListOptions) (TaskStats, error) {
	opts.applyDefaults()

	query := `SELECT
        COUNT(*) AS total,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS running,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS succeeded,
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed,
        COALESCE(MIN(updated_at), 0) AS oldest,
        COALESCE(MAX(updated_at), 0) AS newest
        FROM task_states`

	clause, filterArgs := buildFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}
	args := []any{string(StatusPending), string(StatusRunning), string(StatusSucceeded), string(StatusFailed)}
	args = append(args, filterArgs...)

	var stats TaskStats
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Running,
		&stats.Succeeded,
		&stats.Failed,
		&stats.OldestUpdatedAt,
		&stats.NewestUpdatedAt,
	); err != nil {
		return TaskStats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务统计失败")
	}
	return stats, nil
}

// Close 关闭底层数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		task      Task
		result    ExecutionResult
		prefs     sql.NullString
		sessionID sql.NullString
		answer    sql.NullString
		success   sql.NullBool
		counter   sql.NullInt64
		rounds    sql.NullInt64
		detail    sql.NullString
	)
	if err := row.Scan(
		&task.ID,
		&task.Query,
		&prefs,
		&task.Status,
		&task.Attempts,
		&task.MaxRetries,
		&task.LastError,
		&task.ErrorCode,
		&sessionID,
		&answer,
		&success,
		&counter,
		&rounds,
		&detail,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if prefs.Valid && strings.TrimSpace(prefs.String) != "" {
		if err := json.Unmarshal([]byte(prefs.String), &task.Preferences); err != nil {
			return nil, fmt.Errorf("解析任务偏好失败: %w", err)
		}
	}
	if !sessionID.Valid || (sessionID.String == "" && answer.String == "") {
		return &task, nil
	}
	result.SessionID = sessionID.String
	result.Answer = answer.String
	result.Success = success.Bool
	result.Counter = int(counter.Int64)
	result.Rounds = int(rounds.Int64)
	if detail.Valid && detail.String != "" {
		if err := decodeDetail(detail.String, &result); err != nil {
			return nil, err
		}
	}
	task.Result = &result
	return &task, nil
}

func encodeDetail(result *ExecutionResult) (sql.NullString, error) {
	var d resultDetail
	var err error
	if len(result.Trace) > 0 {
		if d.Trace, err = json.Marshal(result.Trace); err != nil {
			return sql.NullString{}, err
		}
	}
	if len(result.Diagnostics) > 0 {
		if d.Diagnostics, err = json.Marshal(result.Diagnostics); err != nil {
			return sql.NullString{}, err
		}
	}
	return marshalNullable(d, d.Trace == nil && d.Diagnostics == nil)
}

func decodeDetail(raw string, result *ExecutionResult) error {
	var d resultDetail
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return fmt.Errorf("解析会话轨迹失败: %w", err)
	}
	if len(d.Trace) > 0 {
		if err := json.Unmarshal(d.Trace, &result.Trace); err != nil {
			return fmt.Errorf("解析会话轨迹失败: %w", err)
		}
	}
	if len(d.Diagnostics) > 0 {
		if err := json.Unmarshal(d.Diagnostics, &result.Diagnostics); err != nil {
			return fmt.Errorf("解析会话诊断失败: %w", err)
		}
	}
	return nil
}

func marshalNullable(v any, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func buildFilterClause(opts ListOptions) (string, []any) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 6)

	if len(opts.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(opts.Statuses)), ",")
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", placeholders))
		for _, status := range opts.Statuses {
			args = append(args, status)
		}
	}
	if opts.UpdatedGTE > 0 {
		conditions = append(conditions, "updated_at >= ?")
		args = append(args, opts.UpdatedGTE)
	}
	if opts.UpdatedLTE > 0 {
		conditions = append(conditions, "updated_at <= ?")
		args = append(args, opts.UpdatedLTE)
	}
	if opts.HasResult != nil {
		if *opts.HasResult {
			conditions = append(conditions, "(session_id <> '' OR answer <> '')")
		} else {
			conditions = append(conditions, "(COALESCE(session_id, '') = '' AND COALESCE(answer, '') = '')")
		}
	}
	if opts.Query != "" {
		pattern := "%" + opts.Query + "%"
		conditions = append(conditions, "(query LIKE ? OR answer LIKE ?)")
		args = append(args, pattern, pattern)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return strings.Join(conditions, " AND "), args
}

var _ Store = (*MySQLStore)(nil)
