// Package identity is the authentication collaborator. The rest of the
// application only ever sees a User and the narrow Provider contract; the
// local implementation keeps bcrypt password hashes behind the Accounts
// port and issues HS256 session tokens.
package identity

import (
	"context"
	"errors"
	"strings"
)

// User is an authenticated principal. UID is the sole tenant-isolation key
// for everything persisted in the document store.
type User struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Account is a stored credential record.
type Account struct {
	UID          string `bson:"_id"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"passwordHash"`
}

// Accounts is the credential storage port, implemented by the store
// adapters alongside the document contract.
type Accounts interface {
	CreateAccount(ctx context.Context, a Account) error
	AccountByEmail(ctx context.Context, email string) (Account, bool, error)
}

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWeakPassword       = errors.New("password too short")
)

// NormalizeEmail lowercases and trims an email for case-insensitive lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
