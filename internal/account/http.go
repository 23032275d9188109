package account

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/auth-starter/internal/auth"
	"github.com/yourusername/auth-starter/internal/user"
	"github.com/yourusername/auth-starter/internal/validation"
)

// RegisterService はユーザー登録を提供します。
type RegisterService interface {
	Register(ctx context.Context, in RegisterInput) (user.PublicUser, error)
}

// ProfileService はプロフィールの取得と更新を提供します。
type ProfileService interface {
	Profile(ctx context.Context, userID string) (user.PublicUser, error)
	UpdateProfile(ctx context.Context, userID, currentEmail string, in ProfileInput) (user.PublicUser, error)
}

type registerRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	// 確認用パスワードはUI側で検証済みのため任意。送られてきた場合のみ照合する。
	ConfirmPassword string `json:"confirmPassword" binding:"omitempty,eqfield=Password"`
}

type profileUpdateRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
}

// RegisterHandler は POST /api/auth/register のハンドラーを返します。
func RegisterHandler(svc RegisterService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalidInput(c, err)
			return
		}

		created, err := svc.Register(c.Request.Context(), RegisterInput{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Password:  req.Password,
		})
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "ユーザー登録が完了しました",
			"user":    created,
		})
	}
}

// ProfileHandler は GET /api/user/profile のハンドラーを返します。
func ProfileHandler(svc ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := auth.PrincipalFromContext(c)
		if !ok {
			respondUnauthorized(c)
			return
		}

		profile, err := svc.Profile(c.Request.Context(), principal.UserID)
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": profile})
	}
}

// ProfileUpdateHandler は PUT /api/user/profile のハンドラーを返します。
// セッションのスナップショットは更新しません。更新後の表示名を
// 反映するにはクライアントがセッションリフレッシュを呼び出します。
func ProfileUpdateHandler(svc ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := auth.PrincipalFromContext(c)
		if !ok {
			respondUnauthorized(c)
			return
		}

		var req profileUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalidInput(c, err)
			return
		}

		updated, err := svc.UpdateProfile(c.Request.Context(), principal.UserID, principal.Email, ProfileInput{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
		})
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "プロフィールを更新しました",
			"user":    updated,
		})
	}
}

func respondInvalidInput(c *gin.Context, err error) {
	body := gin.H{
		"code":    "INVALID_INPUT",
		"message": "入力内容に誤りがあります",
	}
	if fields := validation.Describe(err); len(fields) > 0 {
		body["errors"] = fields
	}
	c.JSON(http.StatusBadRequest, body)
}

func respondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"code":    "UNAUTHORIZED",
		"message": "ログインが必要です",
	})
}

func respondWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, user.ErrEmailExists):
		c.JSON(http.StatusConflict, gin.H{
			"code":    "EMAIL_EXISTS",
			"message": "このメールアドレスは既に使用されています",
		})
	case errors.Is(err, user.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "USER_NOT_FOUND",
			"message": "ユーザーが見つかりません",
		})
	default:
		// 詳細はログにのみ残し、呼び出し元には返さない
		log.Printf("ERROR: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました",
		})
	}
}
