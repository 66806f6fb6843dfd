package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/task-manager/internal/auth"
	"github.com/yourusername/task-manager/internal/config"
	"github.com/yourusername/task-manager/internal/jobs"
	"github.com/yourusername/task-manager/internal/storage"
	"github.com/yourusername/task-manager/internal/tasks"
)

// jobsManager はタスク削除時の添付パージと掃除記録の参照をまとめた
// インターフェースです。Redis未設定時は nil になります。
type jobsManager interface {
	tasks.AttachmentPurger
	LastSweep(ctx context.Context) (*jobs.SweepRecord, error)
}

// setupJobs は添付ファイルメンテナンス用のジョブ基盤を初期化します。
// QUEUE_REDIS_URL が未設定の場合は nil を返し、ファイル削除は
// リクエスト内で同期実行されます。
func setupJobs(cfg *config.Config, taskStore *tasks.Store, files *storage.Files) jobsManager {
	if cfg.QueueRedisURL == "" {
		log.Printf("QUEUE_REDIS_URL not set; attachment maintenance queue disabled")
		return nil
	}

	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		log.Fatalf("Failed to parse redis url: %v", err)
	}
	redisClient := redis.NewClient(opt)
	store := jobs.NewStore(redisClient, 24*time.Hour)

	manager, err := jobs.NewManager(cfg.QueueRedisURL, taskStore, files, store, log.Default())
	if err != nil {
		log.Fatalf("Failed to init jobs manager: %v", err)
	}
	if err := manager.StartWorkers(); err != nil {
		log.Fatalf("Failed to start jobs workers: %v", err)
	}
	return manager
}

// setupMaintenanceRoutes はメンテナンス状態の参照エンドポイントを配線します。
func setupMaintenanceRoutes(api *gin.RouterGroup, tokens *auth.TokenService, manager jobsManager) {
	if manager == nil {
		return
	}

	api.GET("/maintenance/last-sweep", auth.RequireAuth(tokens), func(c *gin.Context) {
		record, err := manager.LastSweep(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "No sweep has run yet"})
			return
		}
		c.JSON(http.StatusOK, record)
	})
}
