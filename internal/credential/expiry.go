package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresAt はクレデンシャルがJWTの場合にexpクレームの時刻を返す。
// 署名は検証しない。JWTでない（不透明トークン）かexpがない場合はfalseを返す。
func ExpiresAt(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired はクレデンシャルがnow時点で期限切れかを返す。
// 期限が読み取れないクレデンシャルは期限切れとみなさない。
func Expired(token string, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	if !ok {
		return false
	}
	return !now.Before(exp)
}
