package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/auth-starter/internal/throttle"
	"github.com/yourusername/auth-starter/internal/user"
	"github.com/yourusername/auth-starter/internal/validation"
)

// 未登録メールと誤パスワードで同一のメッセージを返し、
// アカウントの存在を推測できないようにする。
const invalidCredentialsMessage = "メールアドレスまたはパスワードが正しくありません"

// UserFinder は認証に必要なユーザー検索を提供します。
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	FindByID(ctx context.Context, id string) (*user.User, error)
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	users    UserFinder
	attempts throttle.Store
}

// NewManager は認証マネージャーを作成します。
func NewManager(users UserFinder, attempts throttle.Store) *Manager {
	return &Manager{
		users:    users,
		attempts: attempts,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login は POST /api/auth/login のハンドラーです。
// 資格情報の検証に成功するとセッションクッキーを発行します。
func (m *Manager) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		body := gin.H{
			"code":    "INVALID_INPUT",
			"message": "email と password を JSON で送ってください",
		}
		if fields := validation.Describe(err); len(fields) > 0 {
			body["errors"] = fields
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}

	ctx := c.Request.Context()
	ip := c.ClientIP()

	retryAfter, err := m.attempts.Check(ctx, ip)
	if err != nil {
		// 試行制限ストアの障害でログイン自体を止めない
		log.Printf("WARN: throttle check failed: %v", err)
	}
	if retryAfter > 0 {
		// Retry-After は秒数またはHTTP-Date形式が推奨されているため秒数で返す
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":    "TOO_MANY_ATTEMPTS",
			"message": "一定時間後に再度お試しください",
		})
		return
	}

	u, err := m.users.FindByEmail(ctx, user.NormalizeEmail(req.Email))
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		log.Printf("ERROR: failed to look up user at login: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました",
		})
		return
	}

	// 存在しないメールとパスワード不一致は同一のレスポンスに畳み込む
	if u == nil || !user.VerifyPassword(u.Password, req.Password) {
		remaining, recordErr := m.attempts.RecordFailure(ctx, ip)
		if recordErr != nil {
			log.Printf("WARN: throttle record failed: %v", recordErr)
		}
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":              "INVALID_CREDENTIALS",
			"message":           invalidCredentialsMessage,
			"remainingAttempts": remaining,
		})
		return
	}

	if err := m.attempts.Reset(ctx, ip); err != nil {
		log.Printf("WARN: throttle reset failed: %v", err)
	}

	token, err := generateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "TOKEN_GENERATION_FAILED",
			"message": "CSRF トークンの生成に失敗しました",
		})
		return
	}

	session := sessions.Default(c)
	now := time.Now()
	session.Set(sessionKeyUserID, u.ID.Hex())
	session.Set(sessionKeyFirstName, u.FirstName)
	session.Set(sessionKeyLastName, u.LastName)
	session.Set(sessionKeyEmail, u.Email)
	session.Set(sessionKeyIssuedAt, now.Unix())
	session.Set(sessionKeyLastActive, now.Unix())
	session.Set(sessionKeyCSRF, token)

	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "セッションの保存に失敗しました",
		})
		return
	}

	c.Header(csrfHeader, token)
	c.JSON(http.StatusOK, gin.H{
		"message": "ログインしました",
		"user":    u.Public(),
	})
}

// Logout は POST /api/auth/logout のハンドラーです。
func (m *Manager) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "セッションの削除に失敗しました",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// Session は GET /api/auth/session のハンドラーです。
// セッションに保持しているスナップショットをそのまま返します。
func (m *Manager) Session(c *gin.Context) {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "UNAUTHORIZED",
			"message": "ログインが必要です",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": principal})
}

// RefreshSession は POST /api/auth/session/refresh のハンドラーです。
// ユーザーレコードを読み直し、セッションのスナップショットを書き換えます。
// プロフィール更新後はクライアントがこれを呼んで表示名を追従させます。
func (m *Manager) RefreshSession(c *gin.Context) {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "UNAUTHORIZED",
			"message": "ログインが必要です",
		})
		return
	}

	u, err := m.users.FindByID(c.Request.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// 参照先のユーザーが消えたセッションは破棄する
			session := sessions.Default(c)
			session.Clear()
			_ = session.Save()
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "USER_NOT_FOUND",
				"message": "ユーザーが見つかりません",
			})
			return
		}
		log.Printf("ERROR: failed to reload user for session refresh: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました",
		})
		return
	}

	session := sessions.Default(c)
	session.Set(sessionKeyFirstName, u.FirstName)
	session.Set(sessionKeyLastName, u.LastName)
	session.Set(sessionKeyEmail, u.Email)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "セッションの保存に失敗しました",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "セッションを更新しました",
		"user":    u.Public(),
	})
}

// RequireLogin はセッションを検証するミドルウェアを返します。
// 検証に通るとPrincipalをコンテキストに設定します。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		principal, ok := readPrincipal(session)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "ログインが必要です",
			})
			return
		}

		now := time.Now()
		issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
		lastActive := readUnix(session.Get(sessionKeyLastActive))

		if issuedAt.IsZero() || now.Sub(issuedAt) > maxSessionLifetime {
			session.Clear()
			_ = session.Save()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "SESSION_EXPIRED",
				"message": "セッションの有効期限が切れました",
			})
			return
		}

		if lastActive.IsZero() || now.Sub(lastActive) > idleTimeout {
			session.Clear()
			_ = session.Save()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "SESSION_IDLE_TIMEOUT",
				"message": "しばらく操作がなかったため再ログインしてください",
			})
			return
		}

		session.Set(sessionKeyLastActive, now.Unix())
		_ = session.Save()
		c.Set(ContextPrincipalKey, principal)
		c.Next()
	}
}

// VerifyCSRF は X-CSRF-Token ヘッダーを検証するミドルウェアです。
func (m *Manager) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		session := sessions.Default(c)
		expected, ok := session.Get(sessionKeyCSRF).(string)
		if !ok || expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_MISSING",
				"message": "CSRF トークンが設定されていません",
			})
			return
		}

		received := c.GetHeader(csrfHeader)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_INVALID",
				"message": "CSRF トークンが一致しません",
			})
			return
		}

		c.Next()
	}
}

// hasValidSession はページガード用に、現在のリクエストが有効な
// セッションを持つかだけを判定します。lastActiveの更新は行いません。
func (m *Manager) hasValidSession(c *gin.Context) bool {
	session := sessions.Default(c)
	if _, ok := readPrincipal(session); !ok {
		return false
	}

	now := time.Now()
	issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
	if issuedAt.IsZero() || now.Sub(issuedAt) > maxSessionLifetime {
		return false
	}
	lastActive := readUnix(session.Get(sessionKeyLastActive))
	if lastActive.IsZero() || now.Sub(lastActive) > idleTimeout {
		return false
	}
	return true
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
