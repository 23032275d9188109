// Package auth は認証・セッション管理機能を提供します。
package auth

import (
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	SessionCookieName    = "app_session"
	sessionKeyUserID     = "user_id"
	sessionKeyEmail      = "email"
	sessionKeyFirstName  = "first_name"
	sessionKeyLastName   = "last_name"
	sessionKeyIssuedAt   = "issued_at"
	sessionKeyLastActive = "last_activity"
	sessionKeyCSRF       = "csrf_token"

	csrfHeader = "X-CSRF-Token"
)

var (
	maxSessionLifetime = 12 * time.Hour
	idleTimeout        = 30 * time.Minute
)

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(maxSessionLifetime.Seconds())
}

// ContextPrincipalKey は、ハンドラー間でログイン済みユーザー情報を共有するためのキーです。
const ContextPrincipalKey = "auth.principal"

// Principal はセッションに保持されるユーザースナップショットです。
// ログイン時（またはリフレッシュ時）のユーザーレコードの複製であり、
// プロフィール更新後は明示的にリフレッシュしない限り古い値のままです。
type Principal struct {
	UserID    string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PrincipalFromContext はRequireLoginが設定したPrincipalを取り出します。
func PrincipalFromContext(c *gin.Context) (Principal, bool) {
	v, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return Principal{}, false
	}
	principal, ok := v.(Principal)
	return principal, ok
}

// readPrincipal はセッションからスナップショットを復元します。
// ユーザーIDが無い場合はfalseを返します。有効期限の判定は行いません。
func readPrincipal(session sessions.Session) (Principal, bool) {
	userID, ok := session.Get(sessionKeyUserID).(string)
	if !ok || userID == "" {
		return Principal{}, false
	}

	principal := Principal{UserID: userID}
	if v, ok := session.Get(sessionKeyFirstName).(string); ok {
		principal.FirstName = v
	}
	if v, ok := session.Get(sessionKeyLastName).(string); ok {
		principal.LastName = v
	}
	if v, ok := session.Get(sessionKeyEmail).(string); ok {
		principal.Email = v
	}
	if issuedAt := readUnix(session.Get(sessionKeyIssuedAt)); !issuedAt.IsZero() {
		principal.ExpiresAt = issuedAt.Add(maxSessionLifetime)
	}
	return principal, true
}

func readUnix(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}
