// Package ws provides the WebSocket transport behind the broadcast hub.
// Each connection becomes one hub subscriber; dead or slow connections are
// detected by the write pump and the ping/pong heartbeat and dropped without
// affecting running jobs.
package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/veedran/reelsmith/internal/broadcast"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
	sendBuffer     = 64
)

var (
	errClientClosed = errors.New("websocket client closed")
	errSlowConsumer = errors.New("websocket send buffer full")
)

var pongMessage = []byte(`{"type":"pong"}`)

// Client adapts one websocket connection to broadcast.Subscriber.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Send queues the event for delivery. It fails when the client is closed or
// when the client cannot keep up with the event rate; the hub drops the
// subscriber on either error. A client that falls behind is also closed, so
// the peer sees the disconnect and can reconnect for a fresh snapshot.
func (c *Client) Send(event broadcast.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *Client) enqueue(payload []byte) error {
	select {
	case <-c.closed:
		return errClientClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.closed:
		return errClientClosed
	default:
		c.close()
		return errSlowConsumer
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// writePump drains the send queue onto the connection and pings the peer on
// a fixed cadence so idle connections are verified even while no job emits
// events.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames until the connection dies. The only
// application message a client may send is a liveness "ping", answered with
// a JSON pong. Pong control frames extend the read deadline.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if isPing(message) {
			_ = c.enqueue(pongMessage)
		}
	}
}

func isPing(message []byte) bool {
	trimmed := string(message)
	return trimmed == "ping" || trimmed == `{"type":"ping"}`
}
