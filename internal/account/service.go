// Package account はユーザー登録とプロフィール管理を提供します。
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourusername/auth-starter/internal/user"
)

// Store はサービスが必要とするユーザーレコード操作です。
type Store interface {
	Create(ctx context.Context, u *user.User) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	FindByID(ctx context.Context, id string) (*user.User, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	UpdateProfile(ctx context.Context, id, firstName, lastName, email string) (*user.User, error)
}

// RegisterInput は登録時の入力です。Passwordは平文で受け取り、
// このサービス内でハッシュ化してからストアへ渡します。
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// ProfileInput はプロフィール更新時の入力です。
type ProfileInput struct {
	FirstName string
	LastName  string
	Email     string
}

// Service はアカウント操作のビジネスロジックを実装します。
type Service struct {
	store Store
}

// NewService はServiceを作成します。
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Register は新規ユーザーを作成します。
// メールアドレスの重複時はuser.ErrEmailExistsを返します。
// レコードはすべての検証を通過した後にのみ書き込まれます。
func (s *Service) Register(ctx context.Context, in RegisterInput) (user.PublicUser, error) {
	email := user.NormalizeEmail(in.Email)

	// 事前チェック。取りこぼした競合はストレージ層の
	// ユニークインデックスがErrEmailExistsとして返す。
	existing, err := s.store.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return user.PublicUser{}, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return user.PublicUser{}, user.ErrEmailExists
	}

	// ハッシュ化してから書き込む。平文がストアに渡ることはない。
	hashed, err := user.HashPassword(in.Password)
	if err != nil {
		return user.PublicUser{}, fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := s.store.Create(ctx, &user.User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     email,
		Password:  hashed,
	})
	if err != nil {
		return user.PublicUser{}, err
	}

	return created.Public(), nil
}

// Profile は現在のユーザーレコードを返します。
func (s *Service) Profile(ctx context.Context, userID string) (user.PublicUser, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return user.PublicUser{}, err
	}
	return u.Public(), nil
}

// UpdateProfile は氏名とメールアドレスを更新します。
// currentEmailはセッション上のメールアドレスで、変更がある場合のみ
// 自分自身を除いた一意性チェックを行います。
// セッションのスナップショットはこのメソッドでは更新されません。
// 呼び出し側が明示的にセッションをリフレッシュする必要があります。
func (s *Service) UpdateProfile(ctx context.Context, userID, currentEmail string, in ProfileInput) (user.PublicUser, error) {
	email := user.NormalizeEmail(in.Email)

	if email != user.NormalizeEmail(currentEmail) {
		taken, err := s.store.EmailTaken(ctx, email, userID)
		if err != nil {
			return user.PublicUser{}, fmt.Errorf("failed to check email uniqueness: %w", err)
		}
		if taken {
			return user.PublicUser{}, user.ErrEmailExists
		}
	}

	updated, err := s.store.UpdateProfile(ctx, userID, in.FirstName, in.LastName, email)
	if err != nil {
		return user.PublicUser{}, err
	}

	return updated.Public(), nil
}
