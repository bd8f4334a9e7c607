// Package ws streams live conversation and message state to connected
// clients. Every client automatically receives its own conversation
// list; message streams for individual conversations are attached and
// detached with subscribe/unsubscribe frames.
package ws

import (
	"github.com/lqv/messenger/internal/convstore"
)

type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	store *convstore.Store
}

func NewHub(store *convstore.Store) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		store:      store,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				// Cancelling the client context tears down its watches
				// and stops the write pump.
				client.cancel()
			}
		}
	}
}
