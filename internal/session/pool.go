package session

import (
	"context"
	"errors"

	"hedgeye-alert-monitor/internal/interfaces"
	"hedgeye-alert-monitor/internal/logger"
	"hedgeye-alert-monitor/internal/retry"
	"hedgeye-alert-monitor/internal/types"
)

// Pool owns the set of authenticated sessions, one per account. Sessions are
// established once per trading day before open and discarded after close;
// they are never reused across days. The monitor loop is the only caller, so
// the pool carries no locking.
type Pool struct {
	auth     interfaces.Authenticator
	accounts []types.Account
	retryCfg retry.Config

	sessions      []*types.Session
	authenticated bool
}

// NewPool creates a session pool over the configured accounts.
func NewPool(auth interfaces.Authenticator, accounts []types.Account, retryCfg retry.Config) *Pool {
	return &Pool{
		auth:     auth,
		accounts: accounts,
		retryCfg: retryCfg,
	}
}

// AuthenticateAll establishes a session for every account, in registration
// order. Each account gets the full retry budget with growing jittered
// think-time between attempts; an account that exhausts its budget is logged
// and skipped, it does not abort the others. Idempotent until Reset: a second
// call returns the existing session set untouched.
//
// The returned error is non-nil only when the context is cancelled mid-login.
func (p *Pool) AuthenticateAll(ctx context.Context) ([]*types.Session, error) {
	if p.authenticated {
		logger.Debug(ctx, "Session pool already authenticated", "sessions", len(p.sessions))
		return p.sessions, nil
	}

	p.sessions = p.sessions[:0]
	for i, account := range p.accounts {
		s, err := retry.DoWithResult(ctx, p.retryCfg, func() (*types.Session, error) {
			return p.auth.Authenticate(ctx, account)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return p.sessions, err
			}
			logger.ErrorWithErr(ctx, "Account login failed after all attempts, skipping for the day", err,
				"account", account.Email,
				"attempts", p.retryCfg.MaxAttempts,
			)
			continue
		}
		logger.Info(ctx, "Account logged in", "account", account.Email, "position", i+1, "total", len(p.accounts))
		p.sessions = append(p.sessions, s)
	}

	p.authenticated = true
	logger.Info(ctx, "Session pool ready", "sessions", len(p.sessions), "accounts", len(p.accounts))
	return p.sessions, nil
}

// Sessions returns the live session set in registration order.
func (p *Pool) Sessions() []*types.Session {
	return p.sessions
}

// Authenticated reports whether AuthenticateAll has run since the last Reset.
func (p *Pool) Authenticated() bool {
	return p.authenticated
}

// Drop removes a dead session from the active set for the remainder of the
// day. The account comes back at the next day's login window.
func (p *Pool) Drop(dead *types.Session) {
	for i, s := range p.sessions {
		if s == dead {
			p.sessions = append(p.sessions[:i], p.sessions[i+1:]...)
			return
		}
	}
}

// Reset discards all sessions. Must be called once the closed phase begins so
// the next pre-open window re-authenticates from scratch.
func (p *Pool) Reset() {
	p.sessions = nil
	p.authenticated = false
}
