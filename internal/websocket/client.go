package websocket

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 64
	maxMessageSize = 4096
)

// Client is one signed-in device. Send is closed by the Manager only; every
// value written to it becomes one text frame holding one JSON message.
type Client struct {
	ID       string
	UserID   string
	DeviceID string
	Conn     *websocket.Conn
	Manager  *Manager
	Send     chan []byte
}

func NewClient(id, userID, deviceID string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		DeviceID: deviceID,
		Conn:     conn,
		Manager:  manager,
		Send:     make(chan []byte, sendBufferSize),
	}
}

// ReadPump forwards device requests to the Manager until the connection
// fails or stops answering pings.
func (c *Client) ReadPump() {
	defer func() {
		c.Manager.Unregister <- c
		c.Conn.Close()
	}()

	extend := func() error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.Manager.pongWait))
	}

	c.Conn.SetReadLimit(maxMessageSize)
	extend()
	c.Conn.SetPongHandler(func(string) error { return extend() })

	for {
		kind, payload, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Manager.logger.Warn(context.Background(), "websocket read failed",
					"client_id", c.ID, "user_id", c.UserID, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		c.Manager.HandleMessage <- &ClientMessage{Client: c, Message: payload}
	}
}

// WritePump drains Send and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ping := time.NewTicker(c.Manager.pingPeriod)
	defer func() {
		ping.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.Manager.logger.Debug(context.Background(), "websocket write failed",
					"client_id", c.ID, "error", err)
				return
			}

		case <-ping.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
