package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Keep-alive connections of the shared HTTP transport wind down lazily.
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// fakeTransport replays a fixed list of events.
type fakeTransport struct {
	events []Event
	err    error
	got    Request
}

func (f *fakeTransport) Stream(ctx context.Context, req Request, fn func(Event) error) error {
	f.got = req
	for _, e := range f.events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return f.err
}

func TestClient_Run_CollectsOutputs(t *testing.T) {
	ft := &fakeTransport{events: []Event{
		{Type: EventMessage, Message: "Starting research agent task..."},
		{Type: EventResearcher, Data: []byte(`{"web":[{"url":"https://example.com"}]}`)},
		{Type: EventMarketing, Data: []byte(`[{"id":"1","title":"TrailMaster X4 Tent"}]`)},
		{Type: EventWriter, Data: []byte(`{"article":"draft one"}`)},
		{Type: EventEditor, Data: []byte(`{"decision":"reject"}`)},
		{Type: EventWriter, Data: []byte(`{"article":"draft two"}`)},
	}}

	c := NewClient(ft, time.Minute, nil)
	rec, err := c.Run(context.Background(), "Write about camping", "Mention the tent")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if ft.got.Request != "Write about camping" || ft.got.Instructions != "Mention the tent" {
		t.Errorf("transport got %+v", ft.got)
	}

	wantQuery := `{"request":"Write about camping","instructions":"Mention the tent"}`
	if rec.Query != wantQuery {
		t.Errorf("Query = %s, want %s", rec.Query, wantQuery)
	}
	wantContext := `{"research":{"web":[{"url":"https://example.com"}]},"products":[{"id":"1","title":"TrailMaster X4 Tent"}]}`
	if rec.Context != wantContext {
		t.Errorf("Context = %s, want %s", rec.Context, wantContext)
	}
	if rec.Response != `{"article":"draft two"}` {
		t.Errorf("Response = %s, want last writer output", rec.Response)
	}
}

func TestClient_Run_NoWriter(t *testing.T) {
	ft := &fakeTransport{events: []Event{
		{Type: EventResearcher, Message: "nothing found"},
	}}
	rec, err := NewClient(ft, 0, nil).Run(context.Background(), "r", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.Response != "null" {
		t.Errorf("Response = %s, want null", rec.Response)
	}
	if rec.Context != `{"research":"nothing found"}` {
		t.Errorf("Context = %s", rec.Context)
	}
}

func TestClient_Run_ErrorEvent(t *testing.T) {
	ft := &fakeTransport{events: []Event{
		{Type: EventError, Message: "researcher failed"},
		{Type: EventWriter, Data: []byte(`"never seen"`)},
	}}
	_, err := NewClient(ft, 0, nil).Run(context.Background(), "r", "")
	if !errors.Is(err, ErrPipeline) {
		t.Fatalf("err = %v, want ErrPipeline", err)
	}
}

func TestClient_Run_TransportError(t *testing.T) {
	boom := errors.New("connection reset")
	ft := &fakeTransport{err: boom}
	_, err := NewClient(ft, 0, nil).Run(context.Background(), "r", "")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestEvent_Payload(t *testing.T) {
	tests := []struct {
		name string
		e    Event
		want string
	}{
		{"data wins", Event{Data: []byte(`{"a":1}`), Message: "m"}, `{"a":1}`},
		{"null data falls back", Event{Data: []byte(`null`), Message: "m"}, `"m"`},
		{"message only", Event{Message: "hi \"there\""}, `"hi \"there\""`},
		{"empty", Event{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(tt.e.Payload()); got != tt.want {
				t.Errorf("Payload() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewTransport(t *testing.T) {
	if tr, err := NewTransport("http", "http://x/api"); err != nil {
		t.Errorf("http: %v", err)
	} else if _, ok := tr.(*HTTPTransport); !ok {
		t.Errorf("http: got %T", tr)
	}

	tr, err := NewTransport("websocket", "https://x/api")
	if err != nil {
		t.Fatalf("websocket: %v", err)
	}
	ws, ok := tr.(*WebSocketTransport)
	if !ok {
		t.Fatalf("websocket: got %T", tr)
	}
	if ws.URL != "wss://x/api" {
		t.Errorf("websocket URL = %q", ws.URL)
	}

	tr, err = NewTransport("ws", "http://x/api")
	if err != nil {
		t.Fatalf("ws alias: %v", err)
	}
	if _, ok := tr.(*WebSocketTransport); !ok {
		t.Errorf("ws alias: got %T", tr)
	}

	if _, err := NewTransport("carrier-pigeon", "x"); err == nil {
		t.Error("expected error for unknown transport")
	}
	if _, err := NewTransport("websocket", "ftp://x"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func TestParseTransport(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", TransportHTTP, false},
		{"http", TransportHTTP, false},
		{"HTTP", TransportHTTP, false},
		{"websocket", TransportWebSocket, false},
		{"ws", TransportWebSocket, false},
		{"grpc", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTransport(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTransport(%q) err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTransport(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
