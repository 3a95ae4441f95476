package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Event represents a real-time event sent via WebSocket
type Event struct {
	Type    string      `json:"type"`    // "message", "closed"
	Payload interface{} `json:"payload"` // event-specific data
}

// Client streams one room subscription over a WebSocket connection
type Client struct {
	conn   *websocket.Conn
	sub    *Subscription
	userID string
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, sub *Subscription, userID string) *Client {
	return &Client{
		conn:   conn,
		sub:    sub,
		userID: userID,
	}
}

// ReadPump reads messages from the WebSocket (handles pong/close).
// Returning ends the subscription.
func (c *Client) ReadPump() {
	defer func() {
		c.sub.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		// Client messages are ignored (server-push only)
	}
}

// WritePump sends the subscription feed to the WebSocket
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	feed := c.sub.Messages()
	for {
		select {
		case msg, ok := <-feed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				if err := c.sub.Err(); err != nil {
					c.writeEvent(&Event{Type: "closed", Payload: err.Error()}) //nolint:errcheck
				}
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.writeEvent(&Event{Type: "message", Payload: msg.ToResponse()}); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeEvent(event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
