// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// データベース設定
	MongoURI      string // MongoDB接続URI
	MongoDatabase string // 使用するデータベース名

	// セッション設定
	SessionSecret string // セッションクッキー署名用の秘密鍵

	// サーバー設定
	Port          string // APIサーバーのポート番号
	GinMode       string // Ginの実行モード (debug, release, test)
	PublicBaseURL string // フロントエンドから見た公開ベースURL

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ルートガード設定
	ProtectedPaths string // ログイン必須のパスプレフィックス（カンマ区切り）
	LoginPath      string // 未ログイン時のリダイレクト先

	// ログイン試行制限設定
	ThrottleRedisURL string // 試行回数をRedisで共有する場合の接続URL（空ならメモリ内）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		// データベース設定
		MongoURI:      getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "auth_starter"),

		// セッション設定
		SessionSecret: getEnv("SESSION_SECRET", ""),

		// サーバー設定
		Port:          getEnv("PORT", "8080"),
		GinMode:       getEnv("GIN_MODE", "debug"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		// ルートガード設定
		ProtectedPaths: getEnv("PROTECTED_PATHS", "/profile"),
		LoginPath:      getEnv("LOGIN_PATH", "/auth/login"),

		// ログイン試行制限設定
		ThrottleRedisURL: getEnv("LOGIN_THROTTLE_REDIS_URL", ""),
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
	// ローカル開発ではセッション秘密鍵は任意
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required in release mode")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.PublicBaseURL == "" {
			return fmt.Errorf("PUBLIC_BASE_URL is required in release mode")
		}
	}

	return nil
}

// ProtectedPathList はカンマ区切りの保護パス設定をスライスに変換して返します。
func (c *Config) ProtectedPathList() []string {
	parts := strings.Split(c.ProtectedPaths, ",")
	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			paths = append(paths, trimmed)
		}
	}
	return paths
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
