package interfaces

import (
	"context"

	"hedgeye-alert-monitor/internal/types"
)

// Authenticator establishes an authenticated feed session for one account.
type Authenticator interface {
	Authenticate(ctx context.Context, account types.Account) (*types.Session, error)
}
