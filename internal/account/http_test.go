package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/yourusername/auth-starter/internal/auth"
	"github.com/yourusername/auth-starter/internal/throttle"
	"github.com/yourusername/auth-starter/internal/user"
	"github.com/yourusername/auth-starter/internal/validation"
)

type stubRegisterService struct {
	result user.PublicUser
	err    error
}

func (s *stubRegisterService) Register(_ context.Context, _ RegisterInput) (user.PublicUser, error) {
	return s.result, s.err
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func newRegisterRouter(svc RegisterService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validation.Setup()
	router := gin.New()
	router.POST("/api/auth/register", RegisterHandler(svc))
	return router
}

func TestRegisterHandlerSuccess(t *testing.T) {
	svc := &stubRegisterService{
		result: user.PublicUser{
			ID:        bson.NewObjectID().Hex(),
			FirstName: "Ann",
			LastName:  "Lee",
			Email:     "ann@test.com",
		},
	}
	router := newRegisterRouter(svc)

	rec := postJSON(router, "/api/auth/register",
		`{"firstName":"Ann","lastName":"Lee","email":"ann@test.com","password":"Secret123!"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("response leaked password field: %s", rec.Body.String())
	}

	var payload struct {
		User user.PublicUser `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.User.ID == "" || payload.User.Email != "ann@test.com" {
		t.Fatalf("unexpected user payload: %#v", payload.User)
	}
}

func TestRegisterHandlerInvalidInput(t *testing.T) {
	router := newRegisterRouter(&stubRegisterService{})

	rec := postJSON(router, "/api/auth/register",
		`{"firstName":"","lastName":"Lee","email":"bad","password":"short"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Code   string                  `json:"code"`
		Errors []validation.FieldError `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.Code != "INVALID_INPUT" {
		t.Fatalf("unexpected code: %s", payload.Code)
	}
	if len(payload.Errors) == 0 {
		t.Fatalf("expected field errors: %s", rec.Body.String())
	}
}

func TestRegisterHandlerPasswordMismatch(t *testing.T) {
	router := newRegisterRouter(&stubRegisterService{})

	rec := postJSON(router, "/api/auth/register",
		`{"firstName":"Ann","lastName":"Lee","email":"ann@test.com","password":"Secret123!","confirmPassword":"Different1!"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRegisterHandlerConflict(t *testing.T) {
	router := newRegisterRouter(&stubRegisterService{err: user.ErrEmailExists})

	rec := postJSON(router, "/api/auth/register",
		`{"firstName":"Ann","lastName":"Lee","email":"ann@test.com","password":"Secret123!"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != "EMAIL_EXISTS" {
		t.Fatalf("unexpected code: %v", payload["code"])
	}
}

func TestRegisterHandlerInternalError(t *testing.T) {
	router := newRegisterRouter(&stubRegisterService{err: errors.New("mongo down")})

	rec := postJSON(router, "/api/auth/register",
		`{"firstName":"Ann","lastName":"Lee","email":"ann@test.com","password":"Secret123!"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	// 内部エラーの詳細は漏らさない
	if strings.Contains(rec.Body.String(), "mongo down") {
		t.Fatalf("response leaked internal error detail: %s", rec.Body.String())
	}
}

// newAppRouter はcmd/apiと同じ構成のルーターをメモリ内ストアで組み立てます。
func newAppRouter(store *memStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validation.Setup()

	router := gin.New()
	cookieStore := cookie.NewStore([]byte("test-secret"))
	router.Use(sessions.Sessions(auth.SessionCookieName, cookieStore))

	manager := auth.NewManager(store, throttle.NewMemoryStore(throttle.DefaultPolicy()))
	service := NewService(store)

	router.Use(manager.PageGuard(auth.NewGuard([]string{"/profile"}, "/auth/login")))

	api := router.Group("/api")
	authRoutes := api.Group("/auth")
	authRoutes.POST("/register", RegisterHandler(service))
	authRoutes.POST("/login", manager.Login)

	userRoutes := api.Group("/user")
	userRoutes.Use(manager.RequireLogin(), manager.VerifyCSRF())
	userRoutes.GET("/profile", ProfileHandler(service))
	userRoutes.PUT("/profile", ProfileUpdateHandler(service))

	return router
}

func request(router *gin.Engine, method, path, body string, cookies []*http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestProfileUpdateRequiresSession(t *testing.T) {
	router := newAppRouter(&memStore{})

	rec := request(router, http.MethodPut, "/api/user/profile",
		`{"firstName":"Ann","lastName":"Lee","email":"ann@test.com"}`, nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRegisterLoginUpdateFlow(t *testing.T) {
	store := &memStore{}
	router := newAppRouter(store)

	// 登録
	registered := request(router, http.MethodPost, "/api/auth/register",
		`{"firstName":"Ann","lastName":"Lee","email":"ann@test.com","password":"Secret123!"}`, nil, nil)
	if registered.Code != http.StatusCreated {
		t.Fatalf("register failed: %d body=%s", registered.Code, registered.Body.String())
	}

	// ログイン
	login := request(router, http.MethodPost, "/api/auth/login",
		`{"email":"ann@test.com","password":"Secret123!"}`, nil, nil)
	if login.Code != http.StatusOK {
		t.Fatalf("login failed: %d body=%s", login.Code, login.Body.String())
	}
	cookies := login.Result().Cookies()
	csrf := login.Header().Get("X-CSRF-Token")

	// プロフィール取得
	profile := request(router, http.MethodGet, "/api/user/profile", "", cookies, nil)
	if profile.Code != http.StatusOK {
		t.Fatalf("profile get failed: %d body=%s", profile.Code, profile.Body.String())
	}
	cookies = profile.Result().Cookies()

	// メールアドレスを変更
	updated := request(router, http.MethodPut, "/api/user/profile",
		`{"firstName":"Ann","lastName":"Lee","email":"ann2@test.com"}`, cookies,
		map[string]string{"X-CSRF-Token": csrf})
	if updated.Code != http.StatusOK {
		t.Fatalf("profile update failed: %d body=%s", updated.Code, updated.Body.String())
	}
	if !strings.Contains(updated.Body.String(), "ann2@test.com") {
		t.Fatalf("expected updated email in response: %s", updated.Body.String())
	}

	// 旧メールアドレスではログインできない
	oldLogin := request(router, http.MethodPost, "/api/auth/login",
		`{"email":"ann@test.com","password":"Secret123!"}`, nil, nil)
	if oldLogin.Code != http.StatusUnauthorized {
		t.Fatalf("expected old email to be rejected, got %d", oldLogin.Code)
	}

	// 新メールアドレスでログインできる
	newLogin := request(router, http.MethodPost, "/api/auth/login",
		`{"email":"ann2@test.com","password":"Secret123!"}`, nil, nil)
	if newLogin.Code != http.StatusOK {
		t.Fatalf("expected new email to log in, got %d body=%s", newLogin.Code, newLogin.Body.String())
	}
}

func TestProfileUpdateConflictOverHTTP(t *testing.T) {
	store := &memStore{}
	router := newAppRouter(store)

	for _, body := range []string{
		`{"firstName":"Ann","lastName":"Lee","email":"ann@test.com","password":"Secret123!"}`,
		`{"firstName":"Bob","lastName":"Kim","email":"bob@test.com","password":"Another123!"}`,
	} {
		if rec := request(router, http.MethodPost, "/api/auth/register", body, nil, nil); rec.Code != http.StatusCreated {
			t.Fatalf("register failed: %d body=%s", rec.Code, rec.Body.String())
		}
	}

	login := request(router, http.MethodPost, "/api/auth/login",
		`{"email":"bob@test.com","password":"Another123!"}`, nil, nil)
	if login.Code != http.StatusOK {
		t.Fatalf("login failed: %d", login.Code)
	}

	rec := request(router, http.MethodPut, "/api/user/profile",
		`{"firstName":"Bob","lastName":"Kim","email":"ann@test.com"}`,
		login.Result().Cookies(),
		map[string]string{"X-CSRF-Token": login.Header().Get("X-CSRF-Token")})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}
}
