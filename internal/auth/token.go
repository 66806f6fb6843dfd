package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken は署名不正・構造不正・期限切れのトークンで返されます。
var ErrInvalidToken = errors.New("invalid token")

// Identity は検証済みトークンから復元したユーザーの同一性情報です。
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Claims はセッショントークンに埋め込む情報です。
// sub にユーザーID、username にユーザー名を持ちます。
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// TokenService は署名付きセッショントークンの発行と検証を行います。
// 署名鍵はプロセス起動時に一度だけ渡し、以後変更しません。
type TokenService struct {
	secret   []byte
	lifetime time.Duration
}

// NewTokenService はトークンサービスを作成します。
func NewTokenService(secret []byte, lifetime time.Duration) *TokenService {
	return &TokenService{secret: secret, lifetime: lifetime}
}

// Lifetime はトークンの有効期間を返します（クッキーのMaxAge用）。
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue はユーザーIDとユーザー名を埋め込んだHS256署名トークンを発行します。
func (s *TokenService) Issue(userID, username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
		Username: username,
	})
	return token.SignedString(s.secret)
}

// Verify はトークンの署名と有効期限を検証し、同一性情報を返します。
// 署名不正・構造不正・期限切れはすべて ErrInvalidToken になります。
func (s *TokenService) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{ID: claims.Subject, Username: claims.Username}, nil
}
