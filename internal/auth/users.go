package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/keithlinneman/linnemanlabs-cms/internal/xerrors"
)

// PasswordCost is the bcrypt work factor for new hashes.
const PasswordCost = bcrypt.DefaultCost

// User is a row of the users table. Password holds the bcrypt hash.
type User struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Username  string    `gorm:"column:username;type:text;not null;uniqueIndex"`
	Password  string    `gorm:"column:password;type:text;not null"`
	CreatedOn time.Time `gorm:"column:created_on;autoCreateTime"`
}

func (User) TableName() string { return "users" }

// Users reads and writes the users table.
type Users struct {
	db *gorm.DB
	// dummyHash is compared against when the user is unknown so a miss
	// costs about the same as a wrong password.
	dummyHash []byte
}

func NewUsers(db *gorm.DB) (*Users, error) {
	h, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), PasswordCost)
	if err != nil {
		return nil, xerrors.Wrap(err, "prepare dummy hash")
	}
	return &Users{db: db, dummyHash: h}, nil
}

// Migrate creates the users table when missing.
func (u *Users) Migrate(ctx context.Context) error {
	if err := u.db.WithContext(ctx).AutoMigrate(&User{}); err != nil {
		return xerrors.Wrap(err, "migrate users table")
	}
	return nil
}

// ValidateCredentials checks the shape of a new username and password.
func ValidateCredentials(username, password string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username is empty", ErrInvalidUser)
	case strings.IndexFunc(username, unicode.IsSpace) >= 0:
		return fmt.Errorf("%w: username contains whitespace", ErrInvalidUser)
	case password == "":
		return fmt.Errorf("%w: password is empty", ErrInvalidUser)
	case len(password) > 72:
		return fmt.Errorf("%w: password longer than 72 bytes", ErrInvalidUser)
	}
	return nil
}

// CreateUser hashes password and inserts the user. The username is trimmed
// of surrounding space before validation.
func (u *Users) CreateUser(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if err := ValidateCredentials(username, password); err != nil {
		return User{}, err
	}

	var n int64
	if err := u.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return User{}, xerrors.Wrap(err, "check existing user")
	}
	if n > 0 {
		return User{}, fmt.Errorf("%w: %s", ErrUserExists, username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return User{}, xerrors.Wrap(err, "hash password")
	}
	user := User{Username: username, Password: string(hash)}
	if err := u.db.WithContext(ctx).Create(&user).Error; err != nil {
		// A concurrent create can still lose the race on the unique index.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return User{}, fmt.Errorf("%w: %s", ErrUserExists, username)
		}
		return User{}, xerrors.Wrapf(err, "insert user %s", username)
	}
	return user, nil
}

// Verify returns the user when password matches. Unknown users and wrong
// passwords both return ErrInvalidCredentials.
func (u *Users) Verify(ctx context.Context, username, password string) (User, error) {
	var user User
	err := u.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(u.dummyHash, []byte(password))
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, xerrors.Wrap(err, "lookup user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}
