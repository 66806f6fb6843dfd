package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CookieName はセッショントークンを格納するクッキー名です。
const CookieName = "token"

// contextIdentityKey はリクエストコンテキストに同一性情報を載せるキーです。
const contextIdentityKey = "auth.identity"

// Identify はトークンを検証できた場合のみ同一性情報をコンテキストに載せる
// 寛容モードのミドルウェアを返します。クッキーが無い・検証に失敗した場合も
// リクエストはそのまま通し、拒否するかどうかは後段のハンドラーに委ねます。
func Identify(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity, ok := identityFromRequest(c, tokens); ok {
			c.Set(contextIdentityKey, identity)
		}
		c.Next()
	}
}

// RequireAuth はトークンを検証できない場合に 401 で即座に拒否する
// 厳格モードのミドルウェアを返します。保護リソース配下はすべて
// このミドルウェアを通します。
func RequireAuth(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFromRequest(c, tokens)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}
		c.Set(contextIdentityKey, identity)
		c.Next()
	}
}

// IdentityFrom はコンテキストから検証済みの同一性情報を取り出します。
func IdentityFrom(c *gin.Context) (*Identity, bool) {
	value, exists := c.Get(contextIdentityKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*Identity)
	return identity, ok
}

// identityFromRequest はクッキーからトークンを取り出して検証します。
// 抽出と検証のロジックは寛容・厳格の両モードで共有します。
func identityFromRequest(c *gin.Context, tokens *TokenService) (*Identity, bool) {
	tokenString, err := c.Cookie(CookieName)
	if err != nil || tokenString == "" {
		return nil, false
	}
	identity, err := tokens.Verify(tokenString)
	if err != nil {
		return nil, false
	}
	return identity, true
}
