// Package feed streams awareness events to websocket clients. A Hub is an
// awareness.Sink: the scheduler hands it each tick's events and the hub fans
// them out without ever blocking on a client.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/swgo/server/internal/object"
)

// Path is where the hub serves its websocket endpoint.
const Path = "/awareness"

// Message is one event on the wire.
type Message struct {
	Type     string    `json:"type"`
	Observer object.ID `json:"observer"`
	Target   object.ID `json:"target"`
	Tick     uint64    `json:"tick"`
}

type route struct {
	pattern string
	handler http.Handler
}

type Hub struct {
	log          *zap.Logger
	upgrader     websocket.Upgrader
	queueSize    int
	writeTimeout time.Duration
	nextID       atomic.Uint64

	mu      sync.Mutex
	clients map[uint64]*client
	closed  bool
	routes  []route

	// Scheduler goroutine only.
	tick    uint64
	inBatch bool
	pending []Message
}

func NewHub(queueSize int, writeTimeout time.Duration, log *zap.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Hub{
		log:          log.With(zap.String("component", "feed")),
		queueSize:    queueSize,
		writeTimeout: writeTimeout,
		clients:      make(map[uint64]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // debug tooling only
		},
	}
}

// ---- awareness.Sink ----

func (h *Hub) OnEnter(observer, target object.ID) {
	h.push(Message{Type: "enter", Observer: observer, Target: target, Tick: h.tick})
}

func (h *Hub) OnLeave(observer, target object.ID) {
	h.push(Message{Type: "leave", Observer: observer, Target: target, Tick: h.tick})
}

func (h *Hub) BeginBatch(tick uint64) {
	h.tick = tick
	h.inBatch = true
}

func (h *Hub) EndBatch() {
	h.inBatch = false
	h.broadcast(h.pending)
	h.pending = h.pending[:0]
}

func (h *Hub) push(m Message) {
	if h.inBatch {
		h.pending = append(h.pending, m)
		return
	}
	h.broadcast([]Message{m})
}

// broadcast encodes each message once and queues it on every matching
// client. A client whose queue is full is disconnected.
func (h *Hub) broadcast(msgs []Message) {
	if len(msgs) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			h.log.Error("encode feed message", zap.Error(err))
			continue
		}
		for id, c := range h.clients {
			if !c.wants(m) {
				continue
			}
			select {
			case c.out <- data:
			default:
				h.log.Warn("feed client too slow, disconnecting",
					zap.Uint64("client", id),
					zap.Int("queue", cap(c.out)),
				)
				c.close()
				delete(h.clients, id)
			}
		}
	}
}

// Close disconnects every client and rejects new ones. It is called by the
// engine once the final leave wave has been delivered.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
	h.log.Info("awareness feed closed")
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	if c, ok := h.clients[id]; ok {
		c.close()
		delete(h.clients, id)
	}
	h.mu.Unlock()
}

// ---- http ----

// Handler returns a mux serving the feed at Path plus the mounted routes.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, h)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, rt := range h.routes {
		mux.Handle(rt.pattern, rt.handler)
	}
	return mux
}

// Handle mounts another handler on the feed listener. Routes added after
// Serve starts are not picked up.
func (h *Hub) Handle(pattern string, handler http.Handler) {
	h.mu.Lock()
	h.routes = append(h.routes, route{pattern: pattern, handler: handler})
	h.mu.Unlock()
}

func (h *Hub) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var filter *object.ID
	if v := r.URL.Query().Get("observer"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(rw, "bad observer id", http.StatusBadRequest)
			return
		}
		id := object.ID(n)
		filter = &id
	}

	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	c := newClient(h.nextID.Add(1), conn, filter, h.queueSize)
	if !h.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	log := h.log.With(zap.Uint64("client", c.id), zap.String("ip", r.RemoteAddr))
	log.Info("feed client connected")

	go c.writeLoop(h.writeTimeout, log)

	// Clients only listen; reading detects disconnects and handles control frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c.id)
	log.Info("feed client disconnected")
}

// Serve runs an HTTP server for the hub until ctx is done.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	h.log.Info("awareness feed listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
