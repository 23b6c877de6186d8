package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func collect(t *testing.T, tr Transport, req Request) ([]Event, error) {
	t.Helper()
	var got []Event
	err := tr.Stream(context.Background(), req, func(e Event) error {
		got = append(got, e)
		return nil
	})
	return got, err
}

func TestHTTPTransport_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Request != "tents" {
			t.Errorf("request = %q", req.Request)
		}
		if r.Header.Get("X-Trace") != "abc" {
			t.Errorf("missing custom header")
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"type":"message","message":"start"}`+"\n\n")
		io.WriteString(w, `{"type":"writer","data":{"article":"hi"}}`+"\n")
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL)
	tr.Headers = http.Header{"X-Trace": []string{"abc"}}

	got, err := collect(t, tr, Request{Request: "tents"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[1].Type != EventWriter || string(got[1].Data) != `{"article":"hi"}` {
		t.Errorf("second event = %+v", got[1])
	}
}

func TestHTTPTransport_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "deployment not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := collect(t, NewHTTPTransport(srv.URL), Request{Request: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 404") || !strings.Contains(err.Error(), "deployment not found") {
		t.Errorf("err = %v", err)
	}
}

func TestHTTPTransport_MalformedEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{\"type\":\"message\"}\nnot json\n")
	}))
	defer srv.Close()

	_, err := collect(t, NewHTTPTransport(srv.URL), Request{Request: "x"})
	if err == nil || !strings.Contains(err.Error(), "decode event 2") {
		t.Fatalf("err = %v, want decode event 2", err)
	}
}

func newWSServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func TestWebSocketTransport_Stream(t *testing.T) {
	srv := newWSServer(t, func(conn *websocket.Conn) {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("read request: %v", err)
			return
		}
		conn.WriteJSON(Event{Type: EventResearcher, Data: json.RawMessage(`{"q":"` + req.Request + `"}`)})
		conn.WriteJSON(Event{Type: EventWriter, Message: "article body"})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		// Wait for the client to close its side.
		conn.ReadMessage()
	})
	defer srv.Close()

	tr, err := NewWebSocketTransport(srv.URL)
	if err != nil {
		t.Fatalf("NewWebSocketTransport failed: %v", err)
	}

	got, err := collect(t, tr, Request{Request: "boots"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if string(got[0].Data) != `{"q":"boots"}` {
		t.Errorf("first event data = %s", got[0].Data)
	}
	if got[1].Message != "article body" {
		t.Errorf("second event = %+v", got[1])
	}
}

func TestWebSocketTransport_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := newWSServer(t, func(conn *websocket.Conn) {
		var req Request
		conn.ReadJSON(&req)
		// Never send anything; hold the socket open until the test ends.
		<-release
	})
	defer srv.Close()
	defer close(release)

	tr, err := NewWebSocketTransport(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = tr.Stream(ctx, Request{Request: "x"}, func(Event) error { return nil })
	if err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}
