package ws

import (
	"sync"
	"time"

	"roomrelay/internal/relay"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// clientConn is the relay.Peer of one websocket. Frames are queued by Deliver
// and written by a single writePump goroutine.
type clientConn struct {
	rawConn *websocket.Conn
	send    chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

var _ relay.Peer = (*clientConn)(nil)

func newClientConn(raw *websocket.Conn, queueSize int) *clientConn {
	return &clientConn{
		rawConn: raw,
		send:    make(chan []byte, queueSize),
		done:    make(chan struct{}),
	}
}

// Deliver queues frame without blocking.
func (c *clientConn) Deliver(frame []byte) error {
	select {
	case <-c.done:
		return relay.ErrPeerClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return relay.ErrPeerClosed
	default:
		return relay.ErrPeerQueueFull
	}
}

// Close stops the write pump, which sends a close frame and drops the socket.
func (c *clientConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// writePump is the only writer of rawConn.
func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.rawConn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.TextMessage, frame); err != nil {
				zap.L().Debug("ws.write", zap.Error(err))
				c.Close()
				return
			}

		case <-ticker.C:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.drain()
			_ = c.rawConn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// drain flushes frames queued before Close, e.g. a final error reply.
func (c *clientConn) drain() {
	for {
		select {
		case frame := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
