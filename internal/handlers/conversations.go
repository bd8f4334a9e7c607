package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/lqv/messenger/internal/convstore"
	"github.com/lqv/messenger/internal/directory"
	"github.com/lqv/messenger/internal/identity"
	"github.com/lqv/messenger/internal/middleware"
	"github.com/lqv/messenger/internal/models"
)

type ConversationHandler struct {
	Store *convstore.Store
	Users *directory.Service
}

// MessagePayload is the inbound wire form of a message. The server
// fills in the id (when absent), sender and timestamp.
type MessagePayload struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Body      string  `json:"body"`
	MediaURL  string  `json:"media_url"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

func (p MessagePayload) toMessage() models.Message {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	kind := models.MessageKind(p.Type)
	if p.Type == "" {
		kind = models.KindText
	}
	return models.Message{
		ID:        id,
		Kind:      kind,
		Text:      p.Body,
		MediaURL:  p.MediaURL,
		Longitude: p.Longitude,
		Latitude:  p.Latitude,
		SentAt:    time.Now().UTC(),
	}
}

func (h *ConversationHandler) currentIdentity(r *http.Request) (convstore.Identity, error) {
	key := middleware.UserKey(r.Context())
	profile, err := h.Users.Profile(r.Context(), key)
	if err != nil {
		return convstore.Identity{}, err
	}
	return convstore.Identity{Key: key, Name: profile.FirstName + " " + profile.LastName}, nil
}

// StartConversation finds the existing conversation with the target
// user or creates one seeded with the request's message.
func (h *ConversationHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	type StartRequest struct {
		OtherUserEmail string         `json:"other_user_email"`
		Name           string         `json:"name"`
		Message        MessagePayload `json:"message"`
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	current, err := h.currentIdentity(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	otherKey := identity.Canonicalize(req.OtherUserEmail)
	msg := req.Message.toMessage()

	conversationID, found, err := h.Store.FindConversation(r.Context(), current.Key, otherKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if found {
		if err := h.Store.SendMessage(r.Context(), conversationID, current, otherKey, req.Name, msg); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": conversationID})
		return
	}

	conversationID, err = h.Store.CreateConversation(r.Context(), current, otherKey, req.Name, msg)
	if errors.Is(err, convstore.ErrUserNotFound) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": conversationID})
}

func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	type SendRequest struct {
		OtherUserEmail string         `json:"other_user_email"`
		Name           string         `json:"name"`
		Message        MessagePayload `json:"message"`
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	current, err := h.currentIdentity(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	otherKey := identity.Canonicalize(req.OtherUserEmail)
	err = h.Store.SendMessage(r.Context(), conversationID, current, otherKey, req.Name, req.Message.toMessage())
	if errors.Is(err, convstore.ErrConversationNotFound) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *ConversationHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	userKey := middleware.UserKey(r.Context())

	summaries, err := h.Store.Conversations(r.Context(), userKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}

	json.NewEncoder(w).Encode(summaries)
}

func (h *ConversationHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	messages, err := h.Store.Messages(r.Context(), conversationID)
	if errors.Is(err, convstore.ErrConversationNotFound) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	json.NewEncoder(w).Encode(messages)
}

func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]
	userKey := middleware.UserKey(r.Context())

	if err := h.Store.DeleteConversation(r.Context(), userKey, conversationID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
