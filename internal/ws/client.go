package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dev mode; lock down per deployment.
	},
}

// Command is a frame the client sends to manage its message streams.
type Command struct {
	Action         string `json:"action"` // "subscribe" or "unsubscribe"
	ConversationID string `json:"conversation_id"`
}

// Frame is what the server pushes: the full latest state of one stream.
type Frame struct {
	Type           string `json:"type"` // "conversations" or "messages"
	ConversationID string `json:"conversation_id,omitempty"`
	Data           any    `json:"data"`
}

type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	userKey string

	// ctx spans the connection; cancelling it detaches every watch.
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	subscriptions map[string]context.CancelFunc
}

// ServeWs upgrades the request and starts streaming for an
// authenticated user key.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userKey string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		userKey:       userKey,
		ctx:           ctx,
		cancel:        cancel,
		subscriptions: make(map[string]context.CancelFunc),
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
	go client.streamConversations()
}

// streamConversations pushes the user's conversation list on connect and
// after every change.
func (c *Client) streamConversations() {
	ch, err := c.hub.store.WatchConversations(c.ctx, c.userKey)
	if err != nil {
		log.Printf("ws: watch conversations for %s: %v", c.userKey, err)
		return
	}
	for summaries := range ch {
		c.push(Frame{Type: "conversations", Data: summaries})
	}
}

func (c *Client) subscribe(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscriptions[conversationID]; ok {
		return
	}

	subCtx, subCancel := context.WithCancel(c.ctx)
	ch, err := c.hub.store.WatchMessages(subCtx, conversationID)
	if err != nil {
		log.Printf("ws: watch messages %s: %v", conversationID, err)
		subCancel()
		return
	}
	c.subscriptions[conversationID] = subCancel

	go func() {
		for messages := range ch {
			c.push(Frame{Type: "messages", ConversationID: conversationID, Data: messages})
		}
	}()
}

func (c *Client) unsubscribe(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.subscriptions[conversationID]; ok {
		cancel()
		delete(c.subscriptions, conversationID)
	}
}

func (c *Client) push(f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		log.Printf("ws: marshal frame: %v", err)
		return
	}
	select {
	case c.send <- payload:
	case <-c.ctx.Done():
	}
}

// readPump consumes subscribe/unsubscribe commands until the connection
// drops, then unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read: %v", err)
			}
			break
		}

		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			log.Printf("ws: bad command: %v", err)
			continue
		}
		switch cmd.Action {
		case "subscribe":
			c.subscribe(cmd.ConversationID)
		case "unsubscribe":
			c.unsubscribe(cmd.ConversationID)
		}
	}
}

// writePump forwards frames to the connection and keeps it alive with
// pings. It exits when the client context is cancelled; the send
// channel is never closed, so a late watch delivery cannot panic.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
