package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/task-manager/internal/auth"
)

// TaskStore はハンドラーが利用するタスク永続化のインターフェースです。
type TaskStore interface {
	Create(ctx context.Context, userID, title, description string, status Status, dueDate *time.Time) (*Task, error)
	Get(ctx context.Context, userID, taskID string) (*Task, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]*Task, error)
	Update(ctx context.Context, userID, taskID string, title, description *string, status *Status, dueDate *time.Time, clearDueDate bool) (*Task, error)
	Delete(ctx context.Context, userID, taskID string) ([]string, error)
	AddAttachment(ctx context.Context, userID, taskID string, attachment *Attachment) error
	GetAttachment(ctx context.Context, userID, taskID, filename string) (*Attachment, error)
	DeleteAttachment(ctx context.Context, userID, taskID, filename string) error
}

// FileStore は添付ファイル本体の保存先のインターフェースです。
type FileStore interface {
	Save(filename string, r io.Reader) (int64, error)
	Open(filename string) (*os.File, int64, error)
	Delete(filename string) error
}

// AttachmentPurger はタスク削除時の添付ファイル一括削除を
// リクエスト外（非同期）で行うためのインターフェースです。
type AttachmentPurger interface {
	PurgeAttachments(ctx context.Context, filenames []string) error
}

// HandlerOptions はタスクハンドラーの設定です。
type HandlerOptions struct {
	MaxUploadSize int64
	// Purger が nil の場合、添付ファイルはリクエスト内で同期削除します。
	Purger AttachmentPurger
}

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      Status  `json:"status"`
	DueDate     *string `json:"dueDate"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *Status `json:"status"`
	DueDate     *string `json:"dueDate"` // RFC3339。空文字列で期日を解除
}

// ListHandler は GET /api/tasks のハンドラーを返します。
func ListHandler(store TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := mustIdentity(c)
		if identity == nil {
			return
		}
		filter := ListFilter{
			Status: c.DefaultQuery("filter", "all"),
			Time:   c.DefaultQuery("time", "any"),
		}
		result, err := store.List(c.Request.Context(), identity.ID, filter)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// CreateHandler は POST /api/tasks のハンドラーを返します。
func CreateHandler(store TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := mustIdentity(c)
		if identity == nil {
			return
		}

		var req createTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
			return
		}

		status := req.Status
		if status == "" {
			status = StatusTodo
		}
		if !ValidStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}

		dueDate, _, err := parseDueDate(req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dueDate"})
			return
		}

		task, err := store.Create(c.Request.Context(), identity.ID, req.Title, req.Description, status, dueDate)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusCreated, task)
	}
}

// GetHandler は GET /api/tasks/:id のハンドラーを返します。
func GetHandler(store TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := mustIdentity(c)
		if identity == nil {
			return
		}
		task, err := store.Get(c.Request.Context(), identity.ID, c.Param("id"))
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

// UpdateHandler は PUT /api/tasks/:id のハンドラーを返します。
func UpdateHandler(store TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := mustIdentity(c)
		if identity == nil {
			return
		}

		var req updateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Title != nil && *req.Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
			return
		}
		if req.Status != nil && !ValidStatus(*req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}

		dueDate, clearDueDate, err := parseDueDate(req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dueDate"})
			return
		}

		task, err := store.Update(c.Request.Context(), identity.ID, c.Param("id"),
			req.Title, req.Description, req.Status, dueDate, clearDueDate)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

// DeleteHandler は DELETE /api/tasks/:id のハンドラーを返します。
// 添付ファイルの実体削除は可能ならキュー経由で行い、応答を待たせません。
func DeleteHandler(store TaskStore, files FileStore, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := mustIdentity(c)
		if identity == nil {
			return
		}

		filenames, err := store.Delete(c.Request.Context(), identity.ID, c.Param("id"))
		if err != nil {
			respondStoreError(c, err)
			return
		}

		if len(filenames) > 0 {
			purgeFiles(c.Request.Context(), files, opts.Purger, filenames)
		}
		c.Status(http.StatusNoContent)
	}
}

// UploadAttachmentHandler は POST /api/tasks/:id/attachments のハンドラーを返します。
func UploadAttachmentHandler(store TaskStore, files FileStore, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := mustIdentity(c)
		if identity == nil {
			return
		}

		header, err := c.FormFile("attachment")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "attachment file required"})
			return
		}
		if opts.MaxUploadSize > 0 && header.Size > opts.MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}

		src, err := header.Open()
		if err != nil {
			respondStoreError(c, err)
			return
		}
		defer src.Close()

		// 先頭バイトから実際のコンテンツタイプを判定する
		mtype, err := mimetype.DetectReader(src)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			respondStoreError(c, err)
			return
		}

		filename := uuid.NewString() + filepath.Ext(header.Filename)
		size, err := files.Save(filename, src)
		if err != nil {
			respondStoreError(c, err)
			return
		}

		attachment := &Attachment{
			Filename:     filename,
			OriginalName: header.Filename,
			ContentType:  mtype.String(),
			Size:         size,
			CreatedAt:    time.Now().UTC(),
		}
		if err := store.AddAttachment(c.Request.Context(), identity.ID, c.Param("id"), attachment); err != nil {
			// メタデータ登録に失敗したら実体も残さない
			_ = files.Delete(filename)
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusCreated, attachment)
	}
}

// DownloadAttachmentHandler は GET /api/tasks/:id/attachments/:filename のハンドラーを返します。
func DownloadAttachmentHandler(store TaskStore, files FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := mustIdentity(c)
		if identity == nil {
			return
		}

		attachment, err := store.GetAttachment(c.Request.Context(), identity.ID, c.Param("id"), c.Param("filename"))
		if err != nil {
			respondStoreError(c, err)
			return
		}

		file, size, err := files.Open(attachment.Filename)
		if err != nil {
			if os.IsNotExist(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Attachment not found"})
				return
			}
			respondStoreError(c, err)
			return
		}
		defer file.Close()

		encodedName := url.PathEscape(attachment.OriginalName)
		c.Header("Content-Disposition",
			fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", attachment.OriginalName, encodedName))
		c.Header("Cache-Control", "no-store")
		c.DataFromReader(http.StatusOK, size, attachment.ContentType, file, nil)
	}
}

// DeleteAttachmentHandler は DELETE /api/tasks/:id/attachments/:filename のハンドラーを返します。
func DeleteAttachmentHandler(store TaskStore, files FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := mustIdentity(c)
		if identity == nil {
			return
		}

		filename := c.Param("filename")
		if err := store.DeleteAttachment(c.Request.Context(), identity.ID, c.Param("id"), filename); err != nil {
			respondStoreError(c, err)
			return
		}
		if err := files.Delete(filename); err != nil {
			log.Printf("failed to delete attachment file %s: %v", filename, err)
		}
		c.Status(http.StatusNoContent)
	}
}

// respondStoreError はストア層のエラーをHTTPレスポンスに変換します。
// 想定外のエラーは原因をログにのみ残し、クライアントには一般的な
// メッセージを返します。
func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	log.Printf("tasks: internal error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// mustIdentity はコンテキストから同一性情報を取り出します。
// 厳格ミドルウェアの後段でしか呼ばれない想定ですが、配線ミスで
// 未認証のまま到達した場合も 401 で止めます。
func mustIdentity(c *gin.Context) *auth.Identity {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil
	}
	return identity
}

// parseDueDate は dueDate 文字列を解釈します。
// nil は「変更なし」、空文字列は「期日解除」を意味します。
func parseDueDate(value *string) (*time.Time, bool, error) {
	if value == nil {
		return nil, false, nil
	}
	if *value == "" {
		return nil, true, nil
	}
	parsed, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, false, err
	}
	return &parsed, false, nil
}

func purgeFiles(ctx context.Context, files FileStore, purger AttachmentPurger, filenames []string) {
	if purger != nil {
		err := purger.PurgeAttachments(ctx, filenames)
		if err == nil {
			return
		}
		log.Printf("failed to enqueue attachment purge, deleting inline: %v", err)
	}
	for _, name := range filenames {
		if err := files.Delete(name); err != nil {
			log.Printf("failed to delete attachment file %s: %v", name, err)
		}
	}
}
