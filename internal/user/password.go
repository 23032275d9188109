package user

import "golang.org/x/crypto/bcrypt"

// HashPassword は平文パスワードから一方向ハッシュを生成します。
// 保存前に呼び出す明示的な変換ステップであり、ストア側で暗黙に
// 変換されることはありません。
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword は候補の平文を同じ方法でハッシュ化して比較します。
// ハッシュから元のパスワードを復元することはできません。
func VerifyPassword(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
