package dispatch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"hedgeye-alert-monitor/internal/interfaces"
	"hedgeye-alert-monitor/internal/logger"
	"hedgeye-alert-monitor/internal/types"
)

const (
	signalName   = "Hedgeye"
	signalSender = "hedgeye"

	timestampLayout = "2006-01-02 15:04:05 MST-0700"
)

// tickerPattern matches the first run of 1-5 uppercase letters followed, after
// optional whitespace, by a dollar sign ("AAPL $150.25").
var tickerPattern = regexp.MustCompile(`\b([A-Z]{1,5})\b\s*\$`)

// cashtagPattern matches the cashtag form ("$AAPL"), used when no
// price-prefixed token exists.
var cashtagPattern = regexp.MustCompile(`\$\s*([A-Z]{1,5})\b`)

// Dispatcher turns a new alert into a normalized signal and forwards it to the
// message bus and the notification channel. Both deliveries are independent
// and best-effort.
type Dispatcher struct {
	bus      interfaces.SignalSink
	notifier interfaces.MessageSink
}

var _ interfaces.Dispatcher = (*Dispatcher)(nil)

func New(bus interfaces.SignalSink, notifier interfaces.MessageSink) *Dispatcher {
	return &Dispatcher{bus: bus, notifier: notifier}
}

// Classify derives the signal direction from the alert title. "buy" is
// checked before "sell"; first match wins.
func Classify(title string) types.SignalType {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "buy"):
		return types.SignalBuy
	case strings.Contains(lower, "sell"):
		return types.SignalSell
	default:
		return types.SignalNone
	}
}

// ExtractTicker scans the title left-to-right for a ticker token: first a run
// of uppercase letters preceding a dollar amount, then the cashtag form.
// Returns the sentinel "-" when neither exists.
func ExtractTicker(title string) string {
	if m := tickerPattern.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	if m := cashtagPattern.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return types.NoTicker
}

// BuildSignal derives the normalized signal for an alert. Deterministic on
// the title alone.
func BuildSignal(alert *types.AlertRecord) types.Signal {
	return types.Signal{
		Name:   signalName,
		Type:   Classify(alert.Title),
		Ticker: ExtractTicker(alert.Title),
		Sender: signalSender,
	}
}

// ComposeMessage renders the human-readable notification text.
func ComposeMessage(alert *types.AlertRecord) string {
	return fmt.Sprintf("Title: %s\nPrice: %s\nCreated At: %s\nCurrent Time: %s",
		alert.Title,
		alert.Price,
		alert.CreatedAt.Format(timestampLayout),
		alert.ObservedAt.Format(timestampLayout),
	)
}

// Dispatch builds the signal and message for the alert and sends them to both
// sinks. A failure in one sink never prevents the attempt on the other; all
// failures are joined into the returned error for the caller's containment
// layer. Neither delivery is retried here.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *types.AlertRecord) (types.Signal, error) {
	signal := BuildSignal(alert)
	message := ComposeMessage(alert)

	var errs []error
	if err := d.notifier.SendMessage(ctx, message); err != nil {
		logger.ErrorWithErr(ctx, "Notification sink delivery failed", err, "title", alert.Title)
		errs = append(errs, fmt.Errorf("notification sink: %w", err))
	}
	if err := d.bus.SendSignal(ctx, signal); err != nil {
		logger.ErrorWithErr(ctx, "Message bus delivery failed", err, "title", alert.Title, "ticker", signal.Ticker)
		errs = append(errs, fmt.Errorf("message bus: %w", err))
	}

	return signal, errors.Join(errs...)
}
