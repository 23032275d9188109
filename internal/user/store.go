package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/yourusername/auth-starter/internal/db"
)

const collectionName = "users"

// Store はusersコレクションへのアクセスを提供します。
type Store struct {
	gateway *db.Gateway
}

// NewStore はStoreを作成します。接続は最初の操作時に確立されます。
func NewStore(gateway *db.Gateway) *Store {
	return &Store{gateway: gateway}
}

func (s *Store) collection(ctx context.Context) (*mongo.Collection, error) {
	return s.gateway.Collection(ctx, collectionName)
}

// EnsureIndexes はemailのユニークインデックスを作成します。
// チェックと書き込みの間の競合はこの制約がストレージ層で防ぎます。
func (s *Store) EnsureIndexes(ctx context.Context) error {
	col, err := s.collection(ctx)
	if err != nil {
		return err
	}

	_, err = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create email index: %w", err)
	}
	return nil
}

// Create はユーザーレコードを新規作成します。
// Passwordにはハッシュ済みの値が渡されている前提です（平文の変換は
// 呼び出し側の責務）。メールアドレスが衝突した場合はErrEmailExistsを返します。
func (s *Store) Create(ctx context.Context, u *User) (*User, error) {
	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u.Email = NormalizeEmail(u.Email)
	u.CreatedAt = now
	u.UpdatedAt = now

	result, err := col.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	if oid, ok := result.InsertedID.(bson.ObjectID); ok {
		u.ID = oid
	}
	return u, nil
}

// FindByEmail は正規化済みメールアドレスでユーザーを検索します。
// 見つからない場合はErrNotFoundを返します。
func (s *Store) FindByEmail(ctx context.Context, email string) (*User, error) {
	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	var u User
	err = col.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &u, nil
}

// FindByID は16進文字列のIDでユーザーを検索します。
func (s *Store) FindByID(ctx context.Context, id string) (*User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	var u User
	err = col.FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user by id: %w", err)
	}
	return &u, nil
}

// EmailTaken はexcludeID以外のユーザーがそのメールアドレスを
// 使用しているかを返します。プロフィール更新時の自分自身を除いた
// 一意性チェックに使用します。
func (s *Store) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	col, err := s.collection(ctx)
	if err != nil {
		return false, err
	}

	filter := bson.M{"email": NormalizeEmail(email)}
	if excludeID != "" {
		oid, err := bson.ObjectIDFromHex(excludeID)
		if err == nil {
			filter["_id"] = bson.M{"$ne": oid}
		}
	}

	count, err := col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	return count > 0, nil
}

// UpdateProfile は氏名とメールアドレスを更新し、更新後のレコードを返します。
// 対象が存在しない場合はErrNotFound、メールアドレスが他ユーザーと
// 衝突した場合はErrEmailExistsを返します。
func (s *Store) UpdateProfile(ctx context.Context, id, firstName, lastName, email string) (*User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	col, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	update := bson.M{"$set": bson.M{
		"firstName": firstName,
		"lastName":  lastName,
		"email":     NormalizeEmail(email),
		"updatedAt": time.Now().UTC(),
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated User
	err = col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &updated, nil
}
