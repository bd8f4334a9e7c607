package models

import "time"

// User is a registered account. Email is the raw address as entered;
// everything stored under the user's node is keyed by its canonical form.
type User struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"-"`
}

func (u User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

// Profile is the document stored at users/{key}.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DirectoryEntry is one element of the global "users" list.
type DirectoryEntry struct {
	Name  string `json:"name"`
	Email string `json:"email"` // canonical key, not the raw address
}

// LatestMessage is the denormalized snapshot cached inside a
// conversation summary.
type LatestMessage struct {
	Date    string `json:"date"`
	Message string `json:"message"`
	IsRead  bool   `json:"is_read"`
}

// ConversationSummary is one participant's view of a conversation,
// stored in that participant's users/{key}/conversations list.
type ConversationSummary struct {
	ID             string        `json:"id"`
	OtherUserEmail string        `json:"other_user_email"`
	Name           string        `json:"name"`
	LatestMessage  LatestMessage `json:"latest_message"`
}

// MessageRecord is the flat stored form of a message, one element of a
// conversation's {id}/messages list. Field names are part of the wire
// format and must not change.
type MessageRecord struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Date        string `json:"date"`
	SenderEmail string `json:"sender_email"`
	IsRead      bool   `json:"is_read"`
	Name        string `json:"name"`
}

type MessageKind string

const (
	KindText     MessageKind = "text"
	KindPhoto    MessageKind = "photo"
	KindVideo    MessageKind = "video"
	KindLocation MessageKind = "location"
)

// Message is the typed in-memory form. Exactly one payload group is
// meaningful for a given Kind: Text for text, MediaURL for photo and
// video, Longitude/Latitude for location. Kinds outside the constants
// above are carried but encode to empty content.
type Message struct {
	ID         string      `json:"id"`
	SenderKey  string      `json:"sender_key"`
	SenderName string      `json:"sender_name"`
	Kind       MessageKind `json:"kind"`
	Text       string      `json:"text,omitempty"`
	MediaURL   string      `json:"media_url,omitempty"`
	Longitude  float64     `json:"longitude,omitempty"`
	Latitude   float64     `json:"latitude,omitempty"`
	SentAt     time.Time   `json:"sent_at"`
	Read       bool        `json:"read"`
}
