package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"hedgeye-alert-monitor/internal/retry"
	"hedgeye-alert-monitor/internal/types"
)

type fakeAuthenticator struct {
	calls map[string]int
	// failuresBefore maps an email to the number of attempts that fail
	// before one succeeds. Missing entries succeed immediately.
	failuresBefore map[string]int
	// alwaysFail marks accounts that never log in.
	alwaysFail map[string]bool
}

func newFakeAuthenticator() *fakeAuthenticator {
	return &fakeAuthenticator{
		calls:          map[string]int{},
		failuresBefore: map[string]int{},
		alwaysFail:     map[string]bool{},
	}
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, account types.Account) (*types.Session, error) {
	f.calls[account.Email]++
	if f.alwaysFail[account.Email] {
		return nil, errors.New("invalid credentials")
	}
	if f.calls[account.Email] <= f.failuresBefore[account.Email] {
		return nil, errors.New("transient login failure")
	}
	return &types.Session{Account: account, EstablishedAt: time.Now()}, nil
}

func testRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 1.5,
		Jitter:        0,
	}
}

func twoAccounts() []types.Account {
	return []types.Account{
		{Email: "first@example.com", Password: "pw1"},
		{Email: "second@example.com", Password: "pw2"},
	}
}

func TestAuthenticateAllLogsInEveryAccount(t *testing.T) {
	auth := newFakeAuthenticator()
	pool := NewPool(auth, twoAccounts(), testRetryConfig())

	sessions, err := pool.AuthenticateAll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].Account.Email != "first@example.com" || sessions[1].Account.Email != "second@example.com" {
		t.Error("Expected sessions in registration order")
	}
	if !pool.Authenticated() {
		t.Error("Expected pool to report authenticated")
	}
}

func TestAuthenticateAllIsIdempotent(t *testing.T) {
	auth := newFakeAuthenticator()
	pool := NewPool(auth, twoAccounts(), testRetryConfig())

	first, err := pool.AuthenticateAll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second, err := pool.AuthenticateAll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(second) != len(first) {
		t.Fatalf("Expected identical session set, got %d vs %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Error("Expected the same sessions back on the second call")
		}
	}
	for email, calls := range auth.calls {
		if calls != 1 {
			t.Errorf("Expected 1 login for %s, got %d", email, calls)
		}
	}
}

func TestAuthenticateAllRetriesTransientFailures(t *testing.T) {
	auth := newFakeAuthenticator()
	auth.failuresBefore["first@example.com"] = 2
	pool := NewPool(auth, twoAccounts(), testRetryConfig())

	sessions, err := pool.AuthenticateAll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if auth.calls["first@example.com"] != 3 {
		t.Errorf("Expected 3 attempts for the flaky account, got %d", auth.calls["first@example.com"])
	}
}

func TestAuthenticateAllSkipsExhaustedAccount(t *testing.T) {
	auth := newFakeAuthenticator()
	auth.alwaysFail["first@example.com"] = true
	pool := NewPool(auth, twoAccounts(), testRetryConfig())

	sessions, err := pool.AuthenticateAll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error on partial success, got %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	if sessions[0].Account.Email != "second@example.com" {
		t.Errorf("Expected the healthy account's session, got %s", sessions[0].Account.Email)
	}
	if auth.calls["first@example.com"] != 3 {
		t.Errorf("Expected full retry budget spent on the failing account, got %d", auth.calls["first@example.com"])
	}
	if !pool.Authenticated() {
		t.Error("Expected pool to report authenticated even on partial success")
	}
}

func TestAuthenticateAllStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	auth := newFakeAuthenticator()
	auth.alwaysFail["first@example.com"] = true
	pool := NewPool(auth, twoAccounts(), testRetryConfig())

	_, err := pool.AuthenticateAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if pool.Authenticated() {
		t.Error("Expected pool to stay unauthenticated after cancellation")
	}
}

func TestDropRemovesOnlyTheDeadSession(t *testing.T) {
	auth := newFakeAuthenticator()
	pool := NewPool(auth, twoAccounts(), testRetryConfig())

	sessions, err := pool.AuthenticateAll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	pool.Drop(sessions[0])

	remaining := pool.Sessions()
	if len(remaining) != 1 {
		t.Fatalf("Expected 1 session after drop, got %d", len(remaining))
	}
	if remaining[0] != sessions[1] {
		t.Error("Expected the other session to survive")
	}

	// Dropping an unknown session is a no-op.
	pool.Drop(&types.Session{})
	if len(pool.Sessions()) != 1 {
		t.Error("Expected drop of unknown session to change nothing")
	}
}

func TestResetForcesReAuthentication(t *testing.T) {
	auth := newFakeAuthenticator()
	pool := NewPool(auth, twoAccounts(), testRetryConfig())

	if _, err := pool.AuthenticateAll(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	pool.Reset()
	if pool.Authenticated() {
		t.Error("Expected pool to report unauthenticated after Reset")
	}
	if len(pool.Sessions()) != 0 {
		t.Error("Expected no sessions after Reset")
	}

	if _, err := pool.AuthenticateAll(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if auth.calls["first@example.com"] != 2 {
		t.Errorf("Expected a fresh login after Reset, got %d calls", auth.calls["first@example.com"])
	}
}
