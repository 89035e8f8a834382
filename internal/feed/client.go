package feed

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/swgo/server/internal/object"
)

// client is one websocket subscriber. The hub queues encoded messages on out;
// writeLoop owns the connection's write side.
type client struct {
	id        uint64
	conn      *websocket.Conn
	observer  object.ID
	filtered  bool
	out       chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newClient(id uint64, conn *websocket.Conn, filter *object.ID, queueSize int) *client {
	c := &client{
		id:      id,
		conn:    conn,
		out:     make(chan []byte, queueSize),
		closeCh: make(chan struct{}),
	}
	if filter != nil {
		c.observer, c.filtered = *filter, true
	}
	return c
}

func (c *client) wants(m Message) bool {
	return !c.filtered || m.Observer == c.observer
}

// close signals writeLoop to flush a close frame and drop the connection.
func (c *client) close() {
	c.closeOnce.Do(func() { close(c.closeCh) })
}

func (c *client) writeLoop(timeout time.Duration, log *zap.Logger) {
	defer c.conn.Close()
	for {
		select {
		case data := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("feed write failed", zap.Error(err))
				c.close()
				return
			}
		case <-c.closeCh:
			// Deliver what was queued before the close, then say goodbye.
			for {
				select {
				case data := <-c.out:
					_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
					if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
						return
					}
				default:
					_ = c.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"),
						time.Now().Add(time.Second))
					return
				}
			}
		}
	}
}
