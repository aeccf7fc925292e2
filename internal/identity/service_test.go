package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: make(map[string]Account)}
}

func (f *fakeAccounts) CreateAccount(_ context.Context, a Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := NormalizeEmail(a.Email)
	if _, ok := f.accounts[key]; ok {
		return ErrEmailTaken
	}
	f.accounts[key] = a
	return nil
}

func (f *fakeAccounts) AccountByEmail(_ context.Context, email string) (Account, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[NormalizeEmail(email)]
	return a, ok, nil
}

func TestRegisterAndSignIn(t *testing.T) {
	svc := NewService(newFakeAccounts(), "test-secret", time.Hour)
	ctx := context.Background()

	u, token, err := svc.Register(ctx, "Ana@Example.com", "segredo-forte")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.UID == "" || u.Email != "ana@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if token == "" {
		t.Fatalf("expected token")
	}

	// Verify round-trips the same user.
	got, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.UID != u.UID || got.Email != u.Email {
		t.Fatalf("verify mismatch: %+v", got)
	}

	// Email lookup is case-insensitive on sign-in.
	u2, _, err := svc.SignIn(ctx, "ANA@example.COM", "segredo-forte")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if u2.UID != u.UID {
		t.Fatalf("sign in returned different uid")
	}
}

func TestRegisterRejectsDuplicateAndWeakPassword(t *testing.T) {
	svc := NewService(newFakeAccounts(), "test-secret", time.Hour)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "ana@example.com", "segredo-forte"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Register(ctx, "ANA@example.com", "outra-senha-1"); err != ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, _, err := svc.Register(ctx, "bob@example.com", "curta"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	svc := NewService(newFakeAccounts(), "test-secret", time.Hour)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "ana@example.com", "segredo-forte"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "ana@example.com", "errada-errada"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "ninguem@example.com", "segredo-forte"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	svc := NewService(newFakeAccounts(), "test-secret", time.Hour)
	ctx := context.Background()
	_, token, err := svc.Register(ctx, "ana@example.com", "segredo-forte")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Verify("not-a-token"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	// Token signed with a different secret is rejected.
	other := NewService(newFakeAccounts(), "other-secret", time.Hour)
	if _, err := other.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken across secrets, got %v", err)
	}

	// Expired token is rejected.
	past := time.Now().Add(-time.Hour)
	claims := &Claims{
		UID:   "u1",
		Email: "a@b.c",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(past),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign expired: %v", err)
	}
	if _, err := svc.Verify(expired); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired, got %v", err)
	}
}

func TestAuthChangeNotifications(t *testing.T) {
	svc := NewService(newFakeAccounts(), "test-secret", time.Hour)
	ctx := context.Background()

	type event struct {
		uid      string
		signedIn bool
	}
	var mu sync.Mutex
	var events []event
	svc.OnAuthChange(func(u User, signedIn bool) {
		mu.Lock()
		events = append(events, event{uid: u.UID, signedIn: signedIn})
		mu.Unlock()
	})

	u, _, err := svc.Register(ctx, "ana@example.com", "segredo-forte")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	svc.SignOut(ctx, u)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !events[0].signedIn || events[0].uid != u.UID {
		t.Fatalf("first event: %+v", events[0])
	}
	if events[1].signedIn || events[1].uid != u.UID {
		t.Fatalf("second event: %+v", events[1])
	}
}
