package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// Guard は保護対象パスへのアクセス可否を判定します。
// 判定自体は純粋な関数で、リクエストやセッションには依存しません。
type Guard struct {
	prefixes  []string
	loginPath string
}

// NewGuard はGuardを作成します。prefixesに前方一致するパスが保護対象です。
func NewGuard(prefixes []string, loginPath string) *Guard {
	return &Guard{
		prefixes:  prefixes,
		loginPath: loginPath,
	}
}

// Decision はガードの判定結果です。Allowがfalseの場合はRedirectToへ誘導します。
type Decision struct {
	Allow      bool
	RedirectTo string
}

// Decide はパスと認証状態から通過かリダイレクトかを決定します。
// リダイレクト先には元のパスをcallbackUrlとして付与し、
// ログイン後に戻れるようにします。
func (g *Guard) Decide(path string, authenticated bool) Decision {
	if !g.isProtected(path) || authenticated {
		return Decision{Allow: true}
	}

	query := url.Values{}
	query.Set("callbackUrl", path)
	return Decision{
		Allow:      false,
		RedirectTo: g.loginPath + "?" + query.Encode(),
	}
}

func (g *Guard) isProtected(path string) bool {
	for _, prefix := range g.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// PageGuard はGuardの判定をリクエスト処理の前段に組み込むミドルウェアを返します。
// 全リクエストに対して一度だけ実行され、保護対象以外は素通しします。
func (m *Manager) PageGuard(guard *Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := guard.Decide(c.Request.URL.Path, m.hasValidSession(c))
		if decision.Allow {
			c.Next()
			return
		}
		c.Redirect(http.StatusTemporaryRedirect, decision.RedirectTo)
		c.Abort()
	}
}
