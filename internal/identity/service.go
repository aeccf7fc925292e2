package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// AuthListener is called with (user, true) on sign-in and (user, false) on
// sign-out. Listeners drive session lifecycle: a session opens on the first
// event for a user and tears down on the sign-out event.
type AuthListener func(u User, signedIn bool)

// Service is the local identity provider: bcrypt credentials behind the
// Accounts port, JWT session tokens, and auth-change notification.
type Service struct {
	accounts Accounts
	secret   string
	tokenTTL time.Duration

	mu        sync.Mutex
	listeners []AuthListener
}

func NewService(accounts Accounts, secret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		accounts: accounts,
		secret:   secret,
		tokenTTL: tokenTTL,
	}
}

// OnAuthChange registers a listener for sign-in and sign-out events.
func (s *Service) OnAuthChange(fn AuthListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Service) notify(u User, signedIn bool) {
	s.mu.Lock()
	listeners := append([]AuthListener(nil), s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(u, signedIn)
	}
}

// Register creates an account and signs the new user in.
func (s *Service) Register(ctx context.Context, email, password string) (User, string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, "", ErrInvalidCredentials
	}
	if len(password) < minPasswordLength {
		return User{}, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return User{}, "", fmt.Errorf("hash password: %w", err)
	}

	account := Account{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		return User{}, "", err
	}

	u := User{UID: account.UID, Email: account.Email}
	token, err := GenerateToken(s.secret, u, s.tokenTTL)
	if err != nil {
		return User{}, "", fmt.Errorf("generate token: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "uid", u.UID)
	s.notify(u, true)
	return u, token, nil
}

// SignIn checks credentials and returns the user with a fresh token.
func (s *Service) SignIn(ctx context.Context, email, password string) (User, string, error) {
	account, found, err := s.accounts.AccountByEmail(ctx, email)
	if err != nil {
		return User{}, "", fmt.Errorf("look up account: %w", err)
	}
	if !found {
		return User{}, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return User{}, "", ErrInvalidCredentials
	}

	u := User{UID: account.UID, Email: account.Email}
	token, err := GenerateToken(s.secret, u, s.tokenTTL)
	if err != nil {
		return User{}, "", fmt.Errorf("generate token: %w", err)
	}

	slog.InfoContext(ctx, "User signed in", "uid", u.UID)
	s.notify(u, true)
	return u, token, nil
}

// Verify validates a session token and returns its user.
func (s *Service) Verify(tokenStr string) (User, error) {
	return ParseToken(s.secret, tokenStr)
}

// SignOut notifies listeners so the user's session tears down. Issued
// tokens stay valid until expiry; there is no revocation list.
func (s *Service) SignOut(ctx context.Context, u User) {
	slog.InfoContext(ctx, "User signed out", "uid", u.UID)
	s.notify(u, false)
}
