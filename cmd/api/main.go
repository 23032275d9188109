// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yourusername/auth-starter/internal/account"
	"github.com/yourusername/auth-starter/internal/auth"
	"github.com/yourusername/auth-starter/internal/config"
	"github.com/yourusername/auth-starter/internal/db"
	"github.com/yourusername/auth-starter/internal/throttle"
	"github.com/yourusername/auth-starter/internal/user"
	"github.com/yourusername/auth-starter/internal/validation"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// バリデーションエラーのフィールド名をJSONタグに揃える
	validation.Setup()

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// ログ相関用のリクエストIDを付与
	router.Use(requestID())

	// セッションストアの設定（クッキー署名鍵は必須）
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   auth.SessionMaxAgeSeconds(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

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
		"Authorization",
		"X-CSRF-Token", // CSRF保護用ヘッダー
	}
	// フロントエンドがレスポンスヘッダーから CSRF トークンを読み取れるように公開
	corsConfig.ExposeHeaders = []string{"X-CSRF-Token", "X-Request-Id"}
	router.Use(cors.New(corsConfig))

	// 永続化ゲートウェイ（接続は最初のリクエストで確立される）
	gateway := db.NewGateway(cfg.MongoURI, cfg.MongoDatabase)
	users := user.NewStore(gateway)

	// emailのユニークインデックスを先行作成する。起動時にDBへ到達
	// できなくても遅延接続で処理は継続できるため、失敗は警告に留める
	indexCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := users.EnsureIndexes(indexCtx); err != nil {
		log.Printf("WARN: failed to ensure indexes (will retry on demand): %v", err)
	}
	cancel()

	// ルーティングの設定
	setupRoutes(router, cfg, users)

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
		"service": "auth-starter-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, users *user.Store) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	authManager := auth.NewManager(users, newThrottleStore(cfg))
	accountService := account.NewService(users)

	// ページ向けルートガード。保護対象パスへの未ログインアクセスを
	// callbackUrl付きでログインページへ誘導する
	guard := auth.NewGuard(cfg.ProtectedPathList(), cfg.LoginPath)
	router.Use(authManager.PageGuard(guard))

	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			// 登録とログインはセッション未生成なので CSRF 検証は不要
			authRoutes.POST("/register", account.RegisterHandler(accountService))
			authRoutes.POST("/login", authManager.Login)
			authRoutes.POST("/logout",
				authManager.RequireLogin(),
				authManager.VerifyCSRF(),
				authManager.Logout,
			)
			authRoutes.GET("/session",
				authManager.RequireLogin(),
				authManager.Session,
			)
			authRoutes.POST("/session/refresh",
				authManager.RequireLogin(),
				authManager.VerifyCSRF(),
				authManager.RefreshSession,
			)
		}

		userRoutes := api.Group("/user")
		userRoutes.Use(authManager.RequireLogin(), authManager.VerifyCSRF())
		{
			userRoutes.GET("/profile", account.ProfileHandler(accountService))
			userRoutes.PUT("/profile", account.ProfileUpdateHandler(accountService))
		}
	}
}

// newThrottleStore はログイン試行制限ストアを作成します。
// Redis URLが設定されていればインスタンス間で共有し、なければメモリ内で管理します。
func newThrottleStore(cfg *config.Config) throttle.Store {
	policy := throttle.DefaultPolicy()
	if cfg.ThrottleRedisURL == "" {
		return throttle.NewMemoryStore(policy)
	}

	opts, err := redis.ParseURL(cfg.ThrottleRedisURL)
	if err != nil {
		log.Printf("WARN: invalid LOGIN_THROTTLE_REDIS_URL, falling back to in-memory throttle: %v", err)
		return throttle.NewMemoryStore(policy)
	}
	return throttle.NewRedisStore(redis.NewClient(opts), policy)
}

// requestID は各リクエストにX-Request-Idを付与するミドルウェアです。
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-Id", id)
		c.Next()
	}
}
