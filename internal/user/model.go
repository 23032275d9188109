// Package user はユーザーエンティティとその永続化を提供します。
package user

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User はusersコレクションに保存されるユーザーレコードです。
// Passwordにはbcryptハッシュのみを保持し、平文は保存しません。
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	FirstName string        `bson:"firstName"`
	LastName  string        `bson:"lastName"`
	Email     string        `bson:"email"`
	Password  string        `bson:"password"`
	CreatedAt time.Time     `bson:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt"`
}

// PublicUser はAPIレスポンスに含めてよいフィールドのみを持つビューです。
// パスワードハッシュは決して含めません。
type PublicUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// Public はレスポンス用のサニタイズ済みビューを返します。
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID.Hex(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

// NormalizeEmail はメールアドレスを比較・保存用の正規形（小文字）に変換します。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
