package tasks

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store はタスクと添付ファイルのメタデータをSQLiteに保存します。
type Store struct {
	db *sql.DB
}

// NewStore はタスクストアを作成します。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create は新しいタスクを登録します。
func (s *Store) Create(ctx context.Context, userID, title, description string, status Status, dueDate *time.Time) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      status,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		Attachments: []Attachment{},
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, description, status, due_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.Title, task.Description, string(task.Status),
		task.DueDate, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Get は指定ユーザーのタスクを1件取得します（添付メタデータ込み）。
func (s *Store) Get(ctx context.Context, userID, taskID string) (*Task, error) {
	task, err := s.scanTask(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, description, status, due_date, created_at, updated_at
		 FROM tasks WHERE id = ? AND user_id = ?`,
		taskID, userID,
	))
	if err != nil {
		return nil, err
	}
	if err := s.loadAttachments(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// List は指定ユーザーのタスクを条件で絞り込んで返します。
// 時間条件は日付計算が絡むためGo側で適用します。
func (s *Store) List(ctx context.Context, userID string, filter ListFilter) ([]*Task, error) {
	query := `SELECT id, user_id, title, description, status, due_date, created_at, updated_at
	          FROM tasks WHERE user_id = ?`
	args := []any{userID}
	switch filter.Status {
	case "", "all":
	default:
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	result := []*Task{}
	for rows.Next() {
		task, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		if !filter.matchTime(task, now) {
			continue
		}
		result = append(result, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, task := range result {
		if err := s.loadAttachments(ctx, task); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Update はタスクの項目を部分更新します。nil の項目は変更しません。
func (s *Store) Update(ctx context.Context, userID, taskID string, title, description *string, status *Status, dueDate *time.Time, clearDueDate bool) (*Task, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if title != nil {
		task.Title = *title
	}
	if description != nil {
		task.Description = *description
	}
	if status != nil {
		task.Status = *status
	}
	if clearDueDate {
		task.DueDate = nil
	} else if dueDate != nil {
		task.DueDate = dueDate
	}
	task.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, due_date = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		task.Title, task.Description, string(task.Status), task.DueDate, task.UpdatedAt,
		task.ID, task.UserID,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Delete はタスクを削除し、紐づいていた添付の保存名一覧を返します。
// 添付メタデータは外部キーのカスケードで一緒に消えます。
// 実ファイルの削除は呼び出し側の責務です。
func (s *Store) Delete(ctx context.Context, userID, taskID string) ([]string, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	filenames := make([]string, 0, len(task.Attachments))
	for _, a := range task.Attachments {
		filenames = append(filenames, a.Filename)
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return filenames, nil
}

// AddAttachment は添付ファイルのメタデータを登録します。
func (s *Store) AddAttachment(ctx context.Context, userID, taskID string, attachment *Attachment) error {
	// タスクの存在と所有者を先に確認する
	if _, err := s.Get(ctx, userID, taskID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attachments (filename, task_id, original_name, content_type, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		attachment.Filename, taskID, attachment.OriginalName, attachment.ContentType,
		attachment.Size, attachment.CreatedAt,
	)
	return err
}

// GetAttachment は指定ユーザーのタスクに紐づく添付メタデータを取得します。
func (s *Store) GetAttachment(ctx context.Context, userID, taskID, filename string) (*Attachment, error) {
	attachment := &Attachment{}
	err := s.db.QueryRowContext(ctx,
		`SELECT a.filename, a.original_name, a.content_type, a.size, a.created_at
		 FROM attachments a JOIN tasks t ON a.task_id = t.id
		 WHERE a.filename = ? AND a.task_id = ? AND t.user_id = ?`,
		filename, taskID, userID,
	).Scan(&attachment.Filename, &attachment.OriginalName, &attachment.ContentType,
		&attachment.Size, &attachment.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return attachment, nil
}

// DeleteAttachment は添付メタデータを削除します。
func (s *Store) DeleteAttachment(ctx context.Context, userID, taskID, filename string) error {
	if _, err := s.GetAttachment(ctx, userID, taskID, filename); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM attachments WHERE filename = ? AND task_id = ?`, filename, taskID)
	return err
}

// AllAttachmentFilenames は全ユーザーの添付保存名を返します（孤児掃除用）。
func (s *Store) AllAttachmentFilenames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename FROM attachments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		known[name] = struct{}{}
	}
	return known, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanTask(row rowScanner) (*Task, error) {
	task := &Task{Attachments: []Attachment{}}
	var status string
	var dueDate sql.NullTime
	err := row.Scan(&task.ID, &task.UserID, &task.Title, &task.Description,
		&status, &dueDate, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	task.Status = Status(status)
	if dueDate.Valid {
		t := dueDate.Time
		task.DueDate = &t
	}
	return task, nil
}

func (s *Store) loadAttachments(ctx context.Context, task *Task) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, original_name, content_type, size, created_at
		 FROM attachments WHERE task_id = ? ORDER BY created_at`,
		task.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.Filename, &a.OriginalName, &a.ContentType, &a.Size, &a.CreatedAt); err != nil {
			return err
		}
		task.Attachments = append(task.Attachments, a)
	}
	return rows.Err()
}
