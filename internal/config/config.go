// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// 認証設定
	JWTSecret     string        // セッショントークン署名用の秘密鍵
	TokenLifetime time.Duration // セッショントークンの有効期間

	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// 永続化設定
	DatabasePath string // SQLiteデータベースファイルのパス
	UploadDir    string // 添付ファイルの保存先ディレクトリ

	// ファイル制限
	MaxUploadSize int64 // 添付ファイル1件の最大サイズ（バイト）

	// ジョブ/キュー設定
	QueueRedisURL string // Asynq用Redis接続URL（空文字で非同期処理を無効化）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// 認証設定
		JWTSecret:     getEnv("JWT_SECRET", ""),
		TokenLifetime: time.Duration(getEnvAsInt("TOKEN_LIFETIME_MINUTES", 120)) * time.Minute,

		// サーバー設定
		Port:    getEnv("PORT", "4000"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		// 永続化設定
		DatabasePath: getEnv("DATABASE_PATH", "data/tasks.db"),
		UploadDir:    getEnv("UPLOAD_DIR", "data/uploads"),

		// ファイル制限
		MaxUploadSize: getEnvAsInt64("MAX_UPLOAD_SIZE", 10485760), // 10MB

		// ジョブ/キュー設定
		QueueRedisURL: getEnv("QUEUE_REDIS_URL", ""),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	// ローカル開発では署名鍵は任意（未設定なら起動時にランダム生成する）
	// 本番環境では厳格にチェックする
	if c.GinMode == "release" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in release mode")
		}
	}
	if c.TokenLifetime <= 0 {
		return fmt.Errorf("TOKEN_LIFETIME_MINUTES must be positive")
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
