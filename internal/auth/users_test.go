package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/keithlinneman/linnemanlabs-cms/internal/sqlstore"
)

func newTestUsers(t *testing.T) *Users {
	t.Helper()
	db, err := sqlstore.Open(context.Background(), sqlstore.Options{
		Path: filepath.Join(t.TempDir(), "users.sqlite"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqlstore.Close(db) })
	u, err := NewUsers(db)
	if err != nil {
		t.Fatalf("NewUsers: %v", err)
	}
	if err := u.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return u
}

func TestCreateUser_HashesPassword(t *testing.T) {
	u := newTestUsers(t)
	user, err := u.CreateUser(context.Background(), "  admin ", "hunter2")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "admin" {
		t.Fatalf("username = %q, want trimmed", user.Username)
	}
	if user.Password == "hunter2" {
		t.Fatal("password stored in plaintext")
	}
	cost, err := bcrypt.Cost([]byte(user.Password))
	if err != nil || cost != PasswordCost {
		t.Fatalf("bcrypt cost = %d, %v", cost, err)
	}
	if user.CreatedOn.IsZero() {
		t.Fatal("created_on not set")
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	u := newTestUsers(t)
	ctx := context.Background()
	if _, err := u.CreateUser(ctx, "admin", "a"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := u.CreateUser(ctx, "admin", "b"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("err = %v, want ErrUserExists", err)
	}
}

func TestCreateUser_Invalid(t *testing.T) {
	u := newTestUsers(t)
	tests := []struct{ name, user, pass string }{
		{"empty user", "", "pw"},
		{"blank user", "   ", "pw"},
		{"space in user", "ad min", "pw"},
		{"empty password", "admin", ""},
		{"long password", "admin", strings.Repeat("x", 73)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := u.CreateUser(context.Background(), tt.user, tt.pass); !errors.Is(err, ErrInvalidUser) {
				t.Fatalf("err = %v, want ErrInvalidUser", err)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	u := newTestUsers(t)
	ctx := context.Background()
	if _, err := u.CreateUser(ctx, "admin", "correct horse"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	user, err := u.Verify(ctx, "admin", "correct horse")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.Username != "admin" {
		t.Fatalf("user = %+v", user)
	}

	if _, err := u.Verify(ctx, "admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := u.Verify(ctx, "nobody", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	u := newTestUsers(t)
	ctx := context.Background()
	if _, err := u.CreateUser(ctx, "admin", "pw"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := u.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := u.Verify(ctx, "admin", "pw"); err != nil {
		t.Fatalf("user lost after re-migrate: %v", err)
	}
}
