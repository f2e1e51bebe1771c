package interfaces

import (
	"context"

	"hedgeye-alert-monitor/internal/types"
)

// Extractor fetches the single most-recent alert from the feed using an
// authenticated session. A nil record with nil error means "nothing relevant";
// an error is reserved for genuine transport or parse failures.
type Extractor interface {
	LatestAlert(ctx context.Context, session *types.Session) (*types.AlertRecord, error)
}
