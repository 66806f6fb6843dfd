package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), 2*time.Hour)

	token, err := svc.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	identity, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if identity.ID != "user-1" {
		t.Fatalf("identity.ID = %q, want %q", identity.ID, "user-1")
	}
	if identity.Username != "alice" {
		t.Fatalf("identity.Username = %q, want %q", identity.Username, "alice")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	// 負の有効期間で発行時点から期限切れのトークンを作る
	svc := NewTokenService([]byte("test-secret"), -time.Minute)

	token, err := svc.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), 2*time.Hour)

	token, err := svc.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	// 署名部分の1バイトを書き換える
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token structure: %q", token)
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := svc.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewTokenService([]byte("secret-a"), 2*time.Hour)
	verifier := NewTokenService([]byte("secret-b"), 2*time.Hour)

	token, err := issuer.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), 2*time.Hour)

	for _, token := range []string{"", "garbage", "a.b", "a.b.c"} {
		if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", token, err)
		}
	}
}
