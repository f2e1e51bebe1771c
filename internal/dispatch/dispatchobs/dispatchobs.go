package dispatchobs

import (
	"context"

	"hedgeye-alert-monitor/internal/interfaces"
	"hedgeye-alert-monitor/internal/logger"
	"hedgeye-alert-monitor/internal/trace"
	"hedgeye-alert-monitor/internal/types"
)

// observableDispatcher wraps a Dispatcher with observability (logging & tracing)
type observableDispatcher struct {
	dispatcher interfaces.Dispatcher
}

// Compile-time interface check
var _ interfaces.Dispatcher = (*observableDispatcher)(nil)

// Wrap wraps a dispatcher with observability middleware
func Wrap(dispatcher interfaces.Dispatcher) interfaces.Dispatcher {
	return &observableDispatcher{
		dispatcher: dispatcher,
	}
}

// Dispatch forwards an alert with observability
func (od *observableDispatcher) Dispatch(ctx context.Context, alert *types.AlertRecord) (types.Signal, error) {
	ctx, span := trace.StartSpan(ctx, "dispatcher.Dispatch")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Dispatching alert", "title", alert.Title, "price", alert.Price)

	signal, err := od.dispatcher.Dispatch(ctx, alert)
	if err != nil {
		// Partial delivery: the signal is still returned and the alert is
		// still considered dispatched.
		logger.ErrorWithErrSkip(ctx, 1, "Dispatch completed with sink failures", err, "title", alert.Title)
		return signal, err
	}

	logger.InfoSkip(ctx, 1, "Alert dispatched to all sinks",
		"title", alert.Title,
		"signal_type", string(signal.Type),
		"ticker", signal.Ticker,
	)
	return signal, nil
}
