package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

const (
	taskTypePurge = "attachments:purge"
	taskTypeSweep = "attachments:sweep"

	queueName = "attachments"
)

// AttachmentIndex はデータベース上で参照されている添付保存名の
// 一覧を提供します。
type AttachmentIndex interface {
	AllAttachmentFilenames(ctx context.Context) (map[string]struct{}, error)
}

// FileStore は添付ファイル実体の削除と列挙を提供します。
type FileStore interface {
	Delete(filename string) error
	List() ([]string, error)
}

// Manager はジョブの投入とワーカーの実行を担います。
type Manager struct {
	client    *asynq.Client
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	store     *Store
	index     AttachmentIndex
	files     FileStore
	logger    *log.Logger
}

// purgePayload は削除ジョブのペイロードです。
type purgePayload struct {
	Filenames []string `json:"filenames"`
}

// NewManager は Manager を初期化します。
func NewManager(redisURL string, index AttachmentIndex, files FileStore, store *Store, logger *log.Logger) (*Manager, error) {
	if index == nil {
		return nil, errors.New("index is nil")
	}
	if files == nil {
		return nil, errors.New("files is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)
	scheduler := asynq.NewScheduler(opt, nil)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client:    client,
		server:    server,
		scheduler: scheduler,
		mux:       mux,
		store:     store,
		index:     index,
		files:     files,
		logger:    logger,
	}
	mux.HandleFunc(taskTypePurge, manager.handlePurge)
	mux.HandleFunc(taskTypeSweep, manager.handleSweep)
	return manager, nil
}

// StartWorkers はワーカーと定期掃除スケジューラーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() error {
	sweepTask := asynq.NewTask(taskTypeSweep, nil, asynq.Queue(queueName))
	if _, err := m.scheduler.Register("@every 1h", sweepTask); err != nil {
		return err
	}

	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			m.logger.Printf("asynq server stopped with error: %v", err)
		}
	}()
	go func() {
		if err := m.scheduler.Run(); err != nil {
			m.logger.Printf("asynq scheduler stopped with error: %v", err)
		}
	}()
	return nil
}

// Shutdown はスケジューラー・サーバー・クライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.scheduler.Shutdown()
	m.server.Shutdown()
	return m.client.Close()
}

// PurgeAttachments は添付ファイルの削除ジョブをキューに投入します。
// tasks.AttachmentPurger として利用されます。
func (m *Manager) PurgeAttachments(ctx context.Context, filenames []string) error {
	if len(filenames) == 0 {
		return nil
	}
	body, err := json.Marshal(purgePayload{Filenames: filenames})
	if err != nil {
		return err
	}
	task := asynq.NewTask(taskTypePurge, body, asynq.Queue(queueName))
	_, err = m.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
	return err
}

// LastSweep は直近の孤児掃除の結果を返します。
func (m *Manager) LastSweep(ctx context.Context) (*SweepRecord, error) {
	return m.store.LastSweep(ctx)
}

func (m *Manager) handlePurge(ctx context.Context, task *asynq.Task) error {
	var payload purgePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	var failed int
	for _, name := range payload.Filenames {
		if err := m.files.Delete(name); err != nil {
			m.logger.Printf("purge: failed to delete %s: %v", name, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("purge: %d of %d deletions failed", failed, len(payload.Filenames))
	}
	return nil
}

// handleSweep はディスク上の添付ファイルとメタデータを突き合わせ、
// どのタスクからも参照されていないファイルを削除します。
func (m *Manager) handleSweep(ctx context.Context, task *asynq.Task) error {
	known, err := m.index.AllAttachmentFilenames(ctx)
	if err != nil {
		return err
	}
	onDisk, err := m.files.List()
	if err != nil {
		return err
	}

	record := &SweepRecord{
		RanAt:   time.Now().UTC(),
		Scanned: len(onDisk),
	}
	for _, name := range Orphans(known, onDisk) {
		if err := m.files.Delete(name); err != nil {
			m.logger.Printf("sweep: failed to delete %s: %v", name, err)
			record.Failed++
			continue
		}
		record.Removed++
	}

	if err := m.store.SaveSweep(ctx, record); err != nil {
		m.logger.Printf("sweep: failed to save record: %v", err)
	}
	return nil
}

// Orphans は既知の保存名集合に含まれないディスク上のファイル名を返します。
func Orphans(known map[string]struct{}, onDisk []string) []string {
	var orphans []string
	for _, name := range onDisk {
		if _, ok := known[name]; !ok {
			orphans = append(orphans, name)
		}
	}
	return orphans
}
