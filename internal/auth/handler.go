package auth

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler は認証エンドポイント群をまとめた構造体です。
// ドメイン処理はストアとトークンサービスに委譲し、ここでは
// 入力の検証とHTTPレスポンスへの変換だけを行います。
type Handler struct {
	store         *Store
	tokens        *TokenService
	secureCookies bool
	logger        *log.Logger
}

// NewHandler は認証ハンドラーを作成します。
// secureCookies は本番環境（release モード）で true にします。
func NewHandler(store *Store, tokens *TokenService, secureCookies bool, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		store:         store,
		tokens:        tokens,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register は POST /api/auth/register のハンドラーです。
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	user, err := h.store.CreateUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
			return
		}
		// 原因はログにのみ残し、クライアントには一般的なメッセージを返す
		h.logger.Printf("failed to create user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	if err := h.setTokenCookie(c, user.ID, user.Username); err != nil {
		h.logger.Printf("failed to issue token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"createdAt": user.CreatedAt.Format(time.RFC3339),
	})
}

// Login は POST /api/auth/login のハンドラーです。
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	user, err := h.store.ValidatePassword(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.logger.Printf("failed to validate password: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	if err := h.setTokenCookie(c, user.ID, user.Username); err != nil {
		h.logger.Printf("failed to issue token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       user.ID,
		"username": user.Username,
	})
}

// Logout は POST /api/auth/logout のハンドラーです。
// セッションはサーバー側に持たないため、クッキーの破棄を指示するだけです。
// セッションが無くても常に 204 を返します（冪等）。
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", h.secureCookies, true)
	c.Status(http.StatusNoContent)
}

// Me は GET /api/auth/me のハンドラーです。
// 寛容モードのミドルウェアの後段で動き、同一性情報の有無を自分で確認します。
func (h *Handler) Me(c *gin.Context) {
	identity, ok := IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       identity.ID,
		"username": identity.Username,
	})
}

// setTokenCookie はトークンを発行してHTTP-onlyクッキーとして設定します。
func (h *Handler) setTokenCookie(c *gin.Context, userID, username string) error {
	token, err := h.tokens.Issue(userID, username)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(h.tokens.Lifetime().Seconds()), "/", "", h.secureCookies, true)
	return nil
}
