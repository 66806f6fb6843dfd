// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/task-manager/internal/auth"
	"github.com/yourusername/task-manager/internal/config"
	"github.com/yourusername/task-manager/internal/storage"
	"github.com/yourusername/task-manager/internal/tasks"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// データベースと添付ファイル置き場の準備
	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	files, err := storage.NewFiles(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Failed to prepare upload dir: %v", err)
	}

	// トークン署名鍵。未設定の場合は起動ごとにランダム生成する
	// （再起動で既存セッションはすべて無効になる）
	secret := cfg.JWTSecret
	if secret == "" {
		secret = randomSecret()
		log.Printf("JWT_SECRET not set; using a random secret, sessions will not survive restarts")
	}
	tokens := auth.NewTokenService([]byte(secret), cfg.TokenLifetime)

	userStore := auth.NewStore(db)
	taskStore := tasks.NewStore(db)

	// 非同期ジョブの準備（Redis未設定なら無効のまま動く）
	manager := setupJobs(cfg, taskStore, files)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
	}
	router.Use(cors.New(corsConfig))

	// ルーティングの設定
	setupRoutes(router, cfg, userStore, taskStore, files, tokens, manager)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "task-manager-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループと認証周りの配線を行います。
func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	userStore *auth.Store,
	taskStore *tasks.Store,
	files *storage.Files,
	tokens *auth.TokenService,
	manager jobsManager,
) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	secureCookies := cfg.GinMode == gin.ReleaseMode
	authHandler := auth.NewHandler(userStore, tokens, secureCookies, log.Default())

	opts := tasks.HandlerOptions{
		MaxUploadSize: cfg.MaxUploadSize,
	}
	if manager != nil {
		opts.Purger = manager
	}

	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/logout", authHandler.Logout)
			// /me は寛容モードのミドルウェアの後段で自分で有無を確認する
			authRoutes.GET("/me", auth.Identify(tokens), authHandler.Me)
		}

		// タスクAPIは厳格モードで保護する。未認証のリクエストは
		// ハンドラーに到達する前に 401 で拒否される
		taskRoutes := api.Group("/tasks")
		taskRoutes.Use(auth.RequireAuth(tokens))
		{
			taskRoutes.GET("", tasks.ListHandler(taskStore))
			taskRoutes.POST("", tasks.CreateHandler(taskStore))
			taskRoutes.GET("/:id", tasks.GetHandler(taskStore))
			taskRoutes.PUT("/:id", tasks.UpdateHandler(taskStore))
			taskRoutes.DELETE("/:id", tasks.DeleteHandler(taskStore, files, opts))
			taskRoutes.POST("/:id/attachments", tasks.UploadAttachmentHandler(taskStore, files, opts))
			taskRoutes.GET("/:id/attachments/:filename", tasks.DownloadAttachmentHandler(taskStore, files))
			taskRoutes.DELETE("/:id/attachments/:filename", tasks.DeleteAttachmentHandler(taskStore, files))
		}

		setupMaintenanceRoutes(api, tokens, manager)
	}
}

// randomSecret は開発用のランダムな署名鍵を生成します。
func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Failed to generate random secret: %v", err)
	}
	return hex.EncodeToString(buf)
}
