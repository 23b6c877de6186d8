// Package orchestrator talks to the external multi-agent article writer and
// folds its event stream into a run record.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/articlebench/internal/logging"
	"github.com/ShayCichocki/articlebench/pkg/models"
)

// Event types emitted by the writer pipeline.
const (
	EventMessage    = "message"
	EventResearcher = "researcher"
	EventProducts   = "products"
	EventMarketing  = "marketing"
	EventWriter     = "writer"
	EventEditor     = "editor"
	EventPartial    = "partial"
	EventError      = "error"
)

// ErrPipeline wraps an error event reported by the writer pipeline.
var ErrPipeline = errors.New("orchestrator reported an error")

// Event is one step reported by the writer pipeline.
type Event struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Payload returns the event's data, falling back to its message encoded as a
// JSON string when the pipeline sent no structured data.
func (e Event) Payload() json.RawMessage {
	if len(e.Data) > 0 && string(e.Data) != "null" {
		return e.Data
	}
	if e.Message == "" {
		return nil
	}
	b, _ := json.Marshal(e.Message)
	return b
}

// Request is the body sent to the writer pipeline.
type Request struct {
	Request      string `json:"request"`
	Instructions string `json:"instructions"`
}

// Transport streams the pipeline's events for a single request.
// fn is called for every event in arrival order; a non-nil return stops the
// stream and is returned by Stream.
type Transport interface {
	Stream(ctx context.Context, req Request, fn func(Event) error) error
}

// Transport kinds returned by ParseTransport.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

var transportNames = map[string]string{
	"":          TransportHTTP,
	"http":      TransportHTTP,
	"websocket": TransportWebSocket,
	"ws":        TransportWebSocket,
}

// ParseTransport resolves a configured transport name, including the empty
// default and the "ws" alias, to a transport kind.
func ParseTransport(name string) (string, error) {
	kind, ok := transportNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown orchestrator transport %q", name)
	}
	return kind, nil
}

// NewTransport builds the transport named by kind (see ParseTransport).
func NewTransport(kind, url string) (Transport, error) {
	k, err := ParseTransport(kind)
	if err != nil {
		return nil, err
	}
	if k == TransportWebSocket {
		return NewWebSocketTransport(url)
	}
	return NewHTTPTransport(url), nil
}

// Client runs writing requests against the pipeline.
type Client struct {
	transport Transport
	timeout   time.Duration
	logger    *zap.Logger
}

// NewClient creates a Client. A zero timeout means no per-request deadline.
func NewClient(t Transport, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		transport: t,
		timeout:   timeout,
		logger:    logging.OrNop(logger).Named("orchestrator"),
	}
}

// Run sends one writing request and collects the researcher, product and
// writer outputs into a run record. When the editor sends the article back
// for rework the pipeline emits several writer events; the last one wins.
func (c *Client) Run(ctx context.Context, request, instructions string) (*models.RunRecord, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	q := models.Query{Request: request, Instructions: instructions}
	var rc models.Context
	var response json.RawMessage

	err := c.transport.Stream(ctx, Request(q), func(e Event) error {
		switch e.Type {
		case EventResearcher:
			rc.Research = e.Payload()
		case EventProducts, EventMarketing:
			rc.Products = e.Payload()
		case EventWriter:
			response = e.Payload()
		case EventError:
			return fmt.Errorf("%w: %s", ErrPipeline, e.Message)
		default:
			c.logger.Debug("pipeline event", zap.String("type", e.Type), zap.String("message", e.Message))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return models.NewRunRecord(q, rc, response)
}
