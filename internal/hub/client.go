package hub

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/service"
)

// Client binds one WebSocket connection to the hub: a read pump feeding
// inbound events into the hub's queue and a write pump draining the send
// channel back to the peer.
//
// The send channel is never closed. Deferred work (the history reply on
// join, a late broadcast snapshot) may still deliver into it after the
// client is gone; those messages land in the buffer and are discarded with
// it. The write pump is told to exit through the done channel instead.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	session *service.Session
	stop    sync.Once
}

// NewClient creates a client for an upgraded connection with a fresh
// connection identifier. The session starts unjoined.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	send := make(chan []byte, 256)
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    send,
		done:    make(chan struct{}),
		session: service.NewSession(newConnID(), send),
	}
}

// newConnID generates a random connection identifier.
func newConnID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process is in serious trouble;
		// fall back to a timestamp so the connection still works.
		return "conn-" + time.Now().UTC().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}

// ConnID returns the client's connection identifier.
func (c *Client) ConnID() string { return c.session.ConnID() }

// Session returns the client's per-connection state.
func (c *Client) Session() *service.Session { return c.session }

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

// Stop signals the write pump to send a close frame and exit. The send
// channel stays open. Called by the hub during unregister.
func (c *Client) Stop() {
	c.stop.Do(func() { close(c.done) })
}

// readPump moves messages from the WebSocket connection to the hub. A read
// error of any kind, including the transport closing, triggers the same
// unregister cleanup as an explicit leave. The unregister must reach the
// hub even under load: session cleanup runs only on the hub goroutine, so
// this blocks rather than falling back to cleaning up from here.
func (c *Client) readPump() {
	logCtx := logrus.WithField("conn", c.ConnID())
	defer func() {
		if !c.hub.QueueMessageWait(HubMessage{Type: "unregister", Client: c}) {
			// Hub already stopped; the whole process is shutting down.
			c.Stop()
		}
		c.conn.Close()
		logCtx.Info("Read pump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.hub.QueueMessage(HubMessage{Type: "event", Client: c, RawData: message})
	}
}

// writePump moves messages from the send channel to the WebSocket
// connection and keeps the connection alive with pings.
func (c *Client) writePump() {
	logCtx := logrus.WithField("conn", c.ConnID())
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logCtx.Info("Write pump exited")
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logCtx.WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
