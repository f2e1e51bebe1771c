package feedobs

import (
	"context"

	"hedgeye-alert-monitor/internal/interfaces"
	"hedgeye-alert-monitor/internal/logger"
	"hedgeye-alert-monitor/internal/trace"
	"hedgeye-alert-monitor/internal/types"
)

// observableExtractor wraps an Extractor with observability (logging & tracing)
type observableExtractor struct {
	extractor interfaces.Extractor
}

// Compile-time interface check
var _ interfaces.Extractor = (*observableExtractor)(nil)

// WrapExtractor wraps an extractor with observability middleware
func WrapExtractor(extractor interfaces.Extractor) interfaces.Extractor {
	return &observableExtractor{
		extractor: extractor,
	}
}

// LatestAlert fetches the latest alert with observability
func (oe *observableExtractor) LatestAlert(ctx context.Context, session *types.Session) (*types.AlertRecord, error) {
	ctx, span := trace.StartSpan(ctx, "extractor.LatestAlert")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Polling feed", "account", session.Account.Email)

	alert, err := oe.extractor.LatestAlert(ctx, session)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Feed extraction failed", err, "account", session.Account.Email)
		return nil, err
	}

	if alert == nil {
		logger.DebugSkip(ctx, 1, "No relevant alert on feed", "account", session.Account.Email)
		return nil, nil
	}

	logger.DebugSkip(ctx, 1, "Alert extracted", "account", session.Account.Email, "title", alert.Title)
	return alert, nil
}

// observableAuthenticator wraps an Authenticator with observability
type observableAuthenticator struct {
	auth interfaces.Authenticator
}

var _ interfaces.Authenticator = (*observableAuthenticator)(nil)

// WrapAuthenticator wraps an authenticator with observability middleware
func WrapAuthenticator(auth interfaces.Authenticator) interfaces.Authenticator {
	return &observableAuthenticator{
		auth: auth,
	}
}

// Authenticate establishes a session with observability
func (oa *observableAuthenticator) Authenticate(ctx context.Context, account types.Account) (*types.Session, error) {
	ctx, span := trace.StartSpan(ctx, "authenticator.Authenticate")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Authenticating account", "account", account.Email)

	session, err := oa.auth.Authenticate(ctx, account)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Authentication attempt failed", err, "account", account.Email)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Account authenticated", "account", account.Email)
	return session, nil
}
