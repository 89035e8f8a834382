package feed

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/swgo/server/internal/awareness"
	"github.com/swgo/server/internal/object"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + Path + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func expectClose(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.CloseGoingAway {
		t.Fatalf("expected going-away close, got %v", err)
	}
}

func TestFeedStreamsEngineEvents(t *testing.T) {
	hub := NewHub(16, time.Second, zaptest.NewLogger(t))
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	all := dial(t, srv, "")
	only2 := dial(t, srv, "?observer=2")
	waitClients(t, hub, 2)

	e := awareness.New(awareness.DefaultOptions(), hub, zaptest.NewLogger(t))
	a := object.NewCreature(1, object.PlanetTatooine, 0, 0, 0, 50)
	b := object.NewCreature(2, object.PlanetTatooine, 10, 0, 0, 0)
	for _, o := range []*object.Object{a, b} {
		if err := e.Register(o); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Tick(); err != nil {
		t.Fatal(err)
	}

	want := []Message{
		{Type: "enter", Observer: 1, Target: 2, Tick: 1},
		{Type: "enter", Observer: 2, Target: 1, Tick: 1},
	}
	for _, w := range want {
		if got := read(t, all); got != w {
			t.Fatalf("got %+v, want %+v", got, w)
		}
	}
	if got := read(t, only2); got != want[1] {
		t.Fatalf("filtered client got %+v", got)
	}

	e.Shutdown()
	if got := read(t, only2); got.Type != "leave" || got.Observer != 2 || got.Target != 1 {
		t.Fatalf("filtered client got %+v on shutdown", got)
	}
	expectClose(t, only2)
	for i := 0; i < 2; i++ {
		if got := read(t, all); got.Type != "leave" {
			t.Fatalf("got %+v on shutdown", got)
		}
	}
	expectClose(t, all)
	waitClients(t, hub, 0)
}

func TestFeedDropsSlowClient(t *testing.T) {
	hub := NewHub(1, time.Second, zaptest.NewLogger(t))
	c := newClient(9, nil, nil, 1)
	if !hub.add(c) {
		t.Fatal("add rejected")
	}
	hub.BeginBatch(3)
	hub.OnEnter(1, 2)
	hub.OnEnter(2, 1)
	hub.EndBatch()

	if hub.Clients() != 0 {
		t.Fatalf("slow client kept")
	}
	select {
	case <-c.closeCh:
	default:
		t.Fatalf("slow client not closed")
	}
	if len(c.out) != 1 {
		t.Fatalf("queue holds %d messages, want 1", len(c.out))
	}
}

func TestFeedFilterSkipsOtherObservers(t *testing.T) {
	hub := NewHub(4, time.Second, zaptest.NewLogger(t))
	id := object.ID(7)
	c := newClient(1, nil, &id, 4)
	hub.add(c)
	hub.OnEnter(1, 7)
	hub.OnLeave(7, 1)
	if len(c.out) != 1 {
		t.Fatalf("filtered client queued %d messages, want 1", len(c.out))
	}
	if got := string(<-c.out); got != `{"type":"leave","observer":7,"target":1,"tick":0}` {
		t.Fatalf("wire format = %s", got)
	}
}

func TestFeedRejectsBadObserver(t *testing.T) {
	hub := NewHub(4, time.Second, zaptest.NewLogger(t))
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + Path + "?observer=abc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestFeedClosedHubRefusesClients(t *testing.T) {
	hub := NewHub(4, time.Second, zaptest.NewLogger(t))
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	if err := hub.Close(); err != nil {
		t.Fatal(err)
	}
	conn := dial(t, srv, "")
	expectClose(t, conn)
	if hub.Clients() != 0 {
		t.Fatalf("closed hub accepted a client")
	}
}
