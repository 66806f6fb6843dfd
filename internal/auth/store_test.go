package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yourusername/task-manager/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestCreateUserAndValidate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected a non-empty user id")
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected username: %q", user.Username)
	}
	if user.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}
	if user.PasswordHash == "secret123" {
		t.Fatal("password stored as plaintext")
	}

	validated, err := store.ValidatePassword(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("ValidatePassword returned error: %v", err)
	}
	if validated.ID != user.ID {
		t.Fatalf("validated id = %q, want %q", validated.ID, user.ID)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("first CreateUser returned error: %v", err)
	}

	_, err := store.CreateUser(ctx, "alice", "other")
	if !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}
}

func TestValidatePasswordUniformFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	// パスワード不一致とユーザー不在は同じエラーで区別できない
	_, wrongPass := store.ValidatePassword(ctx, "alice", "wrong")
	_, noUser := store.ValidatePassword(ctx, "nobody", "anything")

	if !errors.Is(wrongPass, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPass)
	}
	if !errors.Is(noUser, ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", noUser)
	}
	if wrongPass != noUser {
		t.Fatalf("expected identical errors, got %v and %v", wrongPass, noUser)
	}
}

func TestConcurrentRegistrationSingleWinner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const attempts = 8
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.CreateUser(ctx, "alice", "secret123")
		}(i)
	}
	wg.Wait()

	var succeeded, duplicated int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrDuplicateUser):
			duplicated++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly 1 successful registration, got %d", succeeded)
	}
	if duplicated != attempts-1 {
		t.Fatalf("expected %d duplicate errors, got %d", attempts-1, duplicated)
	}
}
