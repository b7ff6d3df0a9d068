package gateway

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuf    = 64
)

// Client is a single dashboard WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// clientRequest is the only inbound message clients send: a replay
// request after reconnecting with the last sequence number they saw.
type clientRequest struct {
	Type    string `json:"type"` // "replay"
	FromSeq int64  `json:"from_seq"`
}

// HandleWS registers an upgraded connection with the hub and starts its
// pumps. If afterSeq >= 0 the client is backfilled from the replay
// buffer; otherwise it gets the latest frame.
func (h *Hub) HandleWS(conn *websocket.Conn, afterSeq int64) {
	c := &Client{conn: conn, send: make(chan []byte, sendBuf), hub: h}
	h.addClient(c)

	go c.writePump()
	go c.readPump()

	if afterSeq >= 0 {
		c.backfill(afterSeq)
	} else if latest := h.Latest(); latest != nil {
		c.send <- latest
	}
}

func (c *Client) backfill(afterSeq int64) {
	for _, frame := range c.hub.replay.After(afterSeq) {
		select {
		case c.send <- frame:
		default:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			// Coalesce queued frames into one write, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
		log.Printf("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req clientRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		if req.Type == "replay" {
			c.backfill(req.FromSeq)
		}
	}
}
