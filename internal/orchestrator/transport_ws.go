package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

type wsDialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// WebSocketTransport sends the request as a JSON text frame and reads one
// event per text frame until the server closes the socket.
type WebSocketTransport struct {
	URL     string
	Headers http.Header
	dialer  wsDialer
}

// NewWebSocketTransport returns a WebSocketTransport for rawURL. http and
// https schemes are rewritten to ws and wss.
func NewWebSocketTransport(rawURL string) (*WebSocketTransport, error) {
	wsURL, err := webSocketURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &WebSocketTransport{URL: wsURL, dialer: websocket.DefaultDialer}, nil
}

func webSocketURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse orchestrator URL: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("unsupported orchestrator URL scheme")
	}
	return parsed.String(), nil
}

// Stream implements Transport.
func (t *WebSocketTransport) Stream(ctx context.Context, req Request, fn func(Event) error) error {
	conn, _, err := t.dialer.DialContext(ctx, t.URL, t.Headers)
	if err != nil {
		return fmt.Errorf("dial orchestrator websocket: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var e Event
		if err := json.Unmarshal(msg, &e); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}
