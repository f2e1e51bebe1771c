package interfaces

import (
	"context"

	"hedgeye-alert-monitor/internal/types"
)

// Dispatcher normalizes a new alert into a Signal and forwards it to the
// configured sinks. Sink delivery is best-effort; a returned error reports
// which deliveries failed but the alert is still considered dispatched.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *types.AlertRecord) (types.Signal, error)
}

// SignalSink receives the structured signal payload (message-bus style).
type SignalSink interface {
	SendSignal(ctx context.Context, signal types.Signal) error
}

// MessageSink receives a preformatted multi-line text message.
type MessageSink interface {
	SendMessage(ctx context.Context, message string) error
}
