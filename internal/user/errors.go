package user

import "errors"

var (
	// ErrEmailExists は同一メールアドレスのユーザーが既に存在する場合に返されます。
	ErrEmailExists = errors.New("user with this email already exists")

	// ErrNotFound は対象のユーザーが存在しない場合に返されます。
	ErrNotFound = errors.New("user not found")
)
