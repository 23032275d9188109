// Package validation はリクエストバリデーションのエラー整形を提供します。
// 制約自体はリクエスト構造体のbindingタグで一度だけ定義し、
// このパッケージはその検証結果をフィールド単位のエラーに変換します。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FieldError は1フィールド分のバリデーションエラーです。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Setup はginのバリデーターにJSONタグ名の解決を登録します。
// エラー内のフィールド名をGoのフィールド名ではなくAPI上の名前にします。
// プロセス起動時に一度だけ呼び出してください。
func Setup() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
}

// Describe はバインディングエラーをフィールド単位のエラー一覧に変換します。
// validator由来でないエラー（JSON構文エラー等）の場合はnilを返します。
func Describe(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return fields
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必須項目です"
	case "email":
		return "メールアドレスの形式が正しくありません"
	case "min":
		return fmt.Sprintf("%s文字以上で入力してください", fe.Param())
	case "eqfield":
		return "パスワードが一致しません"
	default:
		return "入力値が不正です"
	}
}
