package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"hedgeye-alert-monitor/internal/interfaces"
	"hedgeye-alert-monitor/internal/types"
)

// WSBus delivers structured signal payloads to the message-bus websocket
// endpoint. Each delivery dials a fresh connection, writes one JSON frame and
// closes; the server does not acknowledge and we do not wait for one.
type WSBus struct {
	url    string
	dialer *websocket.Dialer
}

var _ interfaces.SignalSink = (*WSBus)(nil)

// NewWSBus creates a websocket signal sink for the given server URL.
func NewWSBus(url string) *WSBus {
	return &WSBus{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// SendSignal writes the signal as a single JSON message.
func (w *WSBus) SendSignal(ctx context.Context, signal types.Signal) error {
	conn, _, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s failed: %w", w.url, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}

	if err := conn.WriteJSON(signal); err != nil {
		return fmt.Errorf("websocket write failed: %w", err)
	}

	// Best-effort close handshake; the payload is already flushed.
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}
