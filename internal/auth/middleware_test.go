package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newMiddlewareRouter(t *testing.T, middleware gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", middleware, func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"identity": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"identity": identity.Username})
	})
	return router
}

func TestIdentifyWithoutCookie(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), 2*time.Hour)
	router := newMiddlewareRouter(t, Identify(svc))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// 寛容モードはクッキーが無くてもリクエストを通す
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"identity":null}` {
		t.Fatalf("expected no identity, got %s", body)
	}
}

func TestIdentifyWithInvalidToken(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), 2*time.Hour)
	router := newMiddlewareRouter(t, Identify(svc))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-token"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"identity":null}` {
		t.Fatalf("expected no identity, got %s", body)
	}
}

func TestIdentifyWithValidToken(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), 2*time.Hour)
	router := newMiddlewareRouter(t, Identify(svc))

	token, err := svc.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"identity":"alice"}` {
		t.Fatalf("expected alice identity, got %s", body)
	}
}

func TestRequireAuthRejectsWithoutCookie(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), 2*time.Hour)
	router := newMiddlewareRouter(t, RequireAuth(svc))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), 2*time.Hour)
	router := newMiddlewareRouter(t, RequireAuth(svc))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-token"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthPassesValidToken(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), 2*time.Hour)
	router := newMiddlewareRouter(t, RequireAuth(svc))

	token, err := svc.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"identity":"alice"}` {
		t.Fatalf("expected alice identity, got %s", body)
	}
}
