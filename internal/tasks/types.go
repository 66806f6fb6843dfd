// Package tasks はタスクと添付ファイルのCRUD機能を提供します。
// すべてのエンドポイントは認証済みユーザーのみがアクセスでき、
// タスクは所有ユーザーにのみ見えます。
package tasks

import (
	"errors"
	"time"
)

// ErrNotFound は対象のタスク・添付ファイルが存在しない場合に返されます。
var ErrNotFound = errors.New("not found")

// Status はタスクの進行状態を表します。
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// ValidStatus は status が定義済みの値かどうかを判定します。
func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// Task は1件のタスクを表します。
type Task struct {
	ID          string       `json:"id"`
	UserID      string       `json:"-"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      Status       `json:"status"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment はタスクに紐づく添付ファイルのメタデータです。
// Filename はディスク上の保存名（UUIDベース）、OriginalName は
// アップロード時の元のファイル名です。
type Attachment struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ListFilter はタスク一覧の絞り込み条件です。
type ListFilter struct {
	Status string // all, todo, in_progress, done
	Time   string // any, today, week, overdue
}

// matchTime は時間条件にタスクが合致するかを判定します。
func (f ListFilter) matchTime(task *Task, now time.Time) bool {
	switch f.Time {
	case "", "any":
		return true
	case "overdue":
		return task.DueDate != nil && task.DueDate.Before(now) && task.Status != StatusDone
	case "today":
		if task.DueDate == nil {
			return false
		}
		y1, m1, d1 := task.DueDate.Local().Date()
		y2, m2, d2 := now.Local().Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case "week":
		return task.DueDate != nil && !task.DueDate.Before(now) && task.DueDate.Before(now.AddDate(0, 0, 7))
	default:
		return true
	}
}
