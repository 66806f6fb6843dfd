// Package auth は認証・認可機能を提供します。
// ユーザー資格情報の保存、セッショントークンの発行/検証、
// 保護ルート用のミドルウェアをまとめています。
package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrDuplicateUser は同名ユーザーが既に存在する場合に返されます。
	ErrDuplicateUser = errors.New("user already exists")
	// ErrInvalidCredentials はユーザー不在とパスワード不一致の両方で返されます。
	// ユーザー名の存在を推測されないよう、2つのケースを区別しません。
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User は登録済みアカウントを表します。
// PasswordHash は外部にシリアライズしてはいけません。
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Store はユーザー資格情報を所有するストアです。
type Store struct {
	db *sql.DB
}

// NewStore は資格情報ストアを作成します。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// dummyHash はユーザー不在時にも bcrypt 比較を1回走らせるためのハッシュです。
// 不在とパスワード不一致で応答時間の桁が変わらないようにします。
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// CreateUser はパスワードをハッシュ化して新規ユーザーを登録します。
// ユーザー名の重複チェックは username のUNIQUE制約による挿入時の
// 単一アトミック操作で行い、同名の同時登録は1件だけ成功します。
func (s *Store) CreateUser(ctx context.Context, username, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}

	return user, nil
}

// ValidatePassword はユーザー名とパスワードを検証します。
// 不一致・不在のいずれも ErrInvalidCredentials を返します。
func (s *Store) ValidatePassword(ctx context.Context, username, password string) (*User, error) {
	user := &User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// 不在でも比較コストを揃える
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// isUniqueViolation はSQLiteのUNIQUE制約違反かどうかを判定します。
func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
