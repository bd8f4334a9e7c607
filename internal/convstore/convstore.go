// Package convstore owns the mapping between users, conversations and
// messages: an append-only message log per conversation plus one
// denormalized summary per participant, kept consistent on every write.
package convstore

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/lqv/messenger/internal/codec"
	"github.com/lqv/messenger/internal/docstore"
	"github.com/lqv/messenger/internal/models"
)

// Identity names the acting user: canonical key plus the display name
// recorded on everything they write. Callers pass it explicitly; the
// store keeps no ambient session state.
type Identity struct {
	Key  string
	Name string
}

type Store struct {
	db *docstore.Store
}

func New(db *docstore.Store) *Store {
	return &Store{db: db}
}

func userPath(key string) string          { return "users/" + key }
func conversationsPath(key string) string { return "users/" + key + "/conversations" }
func messagesPath(id string) string       { return id + "/messages" }

// ConversationID derives the stable conversation id from the id of the
// message that created it, so the caller knows the id before the write
// lands.
func ConversationID(firstMessageID string) string {
	return "conversation_" + firstMessageID
}

// CreateConversation starts a conversation between current and
// otherKey with first as its only message. The sender summary, the
// mirrored recipient summary and the new message log commit as one
// transaction. Returns ErrUserNotFound when current has no directory
// node.
func (s *Store) CreateConversation(ctx context.Context, current Identity, otherKey, otherName string, first models.Message) (string, error) {
	first.SenderKey = current.Key
	first.SenderName = current.Name
	record := codec.Encode(first)

	conversationID := ConversationID(first.ID)
	latest := models.LatestMessage{
		Date:    record.Date,
		Message: record.Content,
		IsRead:  false,
	}

	err := s.db.Update(ctx, func(tx *docstore.Tx) error {
		var profile models.Profile
		if err := tx.Get(userPath(current.Key), &profile); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if err := upsertSummary(tx, current.Key, conversationID, Identity{Key: otherKey, Name: otherName}, latest); err != nil {
			return err
		}
		if err := upsertSummary(tx, otherKey, conversationID, current, latest); err != nil {
			return err
		}

		return tx.Set(messagesPath(conversationID), []models.MessageRecord{record})
	})
	if err != nil {
		return "", err
	}
	return conversationID, nil
}

// SendMessage appends msg to the conversation log and refreshes the
// latest-message snapshot in both participants' summaries. A summary
// entry missing for this id (lost to an earlier partial failure) is
// synthesized rather than left absent. The log append and both summary
// updates commit together, so a summary can never point at a message
// the log does not hold.
func (s *Store) SendMessage(ctx context.Context, conversationID string, current Identity, otherKey, otherName string, msg models.Message) error {
	msg.SenderKey = current.Key
	msg.SenderName = current.Name
	record := codec.Encode(msg)

	latest := models.LatestMessage{
		Date:    record.Date,
		Message: record.Content,
		IsRead:  false,
	}

	return s.db.Update(ctx, func(tx *docstore.Tx) error {
		var records []models.MessageRecord
		if err := tx.Get(messagesPath(conversationID), &records); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return ErrConversationNotFound
			}
			return err
		}
		records = append(records, record)
		if err := tx.Set(messagesPath(conversationID), records); err != nil {
			return err
		}

		if err := upsertSummary(tx, current.Key, conversationID, Identity{Key: otherKey, Name: otherName}, latest); err != nil {
			return err
		}
		return upsertSummary(tx, otherKey, conversationID, current, latest)
	})
}

// upsertSummary updates the latest-message snapshot in owner's summary
// for conversationID, creating the entry (pointing at counterpart) when
// it is missing.
func upsertSummary(tx *docstore.Tx, ownerKey, conversationID string, counterpart Identity, latest models.LatestMessage) error {
	path := conversationsPath(ownerKey)

	var summaries []models.ConversationSummary
	if err := tx.Get(path, &summaries); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}

	updated := false
	for i := range summaries {
		if summaries[i].ID == conversationID {
			summaries[i].LatestMessage = latest
			updated = true
			break
		}
	}
	if !updated {
		summaries = append(summaries, models.ConversationSummary{
			ID:             conversationID,
			OtherUserEmail: counterpart.Key,
			Name:           counterpart.Name,
			LatestMessage:  latest,
		})
	}

	return tx.Set(path, summaries)
}

// FindConversation looks for an existing conversation between sender and
// recipient by scanning the recipient's summaries for an entry pointing
// back at the sender. Absence is not an error.
func (s *Store) FindConversation(ctx context.Context, senderKey, recipientKey string) (string, bool, error) {
	var summaries []models.ConversationSummary
	err := s.db.Get(ctx, conversationsPath(recipientKey), &summaries)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	for _, summary := range summaries {
		if summary.OtherUserEmail == senderKey {
			return summary.ID, true, nil
		}
	}
	return "", false, nil
}

// Conversations returns the current snapshot of userKey's summaries.
// Malformed entries are dropped one by one, never failing the list.
func (s *Store) Conversations(ctx context.Context, userKey string) ([]models.ConversationSummary, error) {
	var raw json.RawMessage
	err := s.db.Get(ctx, conversationsPath(userKey), &raw)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSummaries(raw), nil
}

// WatchConversations emits the decoded summary list now and after every
// change, until ctx is cancelled.
func (s *Store) WatchConversations(ctx context.Context, userKey string) (<-chan []models.ConversationSummary, error) {
	raws, err := s.db.Watch(ctx, conversationsPath(userKey))
	if err != nil {
		return nil, err
	}

	out := make(chan []models.ConversationSummary, 1)
	go func() {
		defer close(out)
		for raw := range raws {
			select {
			case out <- decodeSummaries(raw):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Messages returns the conversation log in chronological (insertion)
// order. Malformed entries are dropped individually.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var raw json.RawMessage
	err := s.db.Get(ctx, messagesPath(conversationID), &raw)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeMessages(raw), nil
}

// WatchMessages emits the decoded log now and after every append, until
// ctx is cancelled.
func (s *Store) WatchMessages(ctx context.Context, conversationID string) (<-chan []models.Message, error) {
	raws, err := s.db.Watch(ctx, messagesPath(conversationID))
	if err != nil {
		return nil, err
	}

	out := make(chan []models.Message, 1)
	go func() {
		defer close(out)
		for raw := range raws {
			select {
			case out <- decodeMessages(raw):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// DeleteConversation removes userKey's summary entry for conversationID.
// The counterpart's summary and the shared log stay untouched, and a
// missing entry is a no-op success, never the removal of an unrelated
// entry.
func (s *Store) DeleteConversation(ctx context.Context, userKey, conversationID string) error {
	return s.db.Update(ctx, func(tx *docstore.Tx) error {
		path := conversationsPath(userKey)

		var summaries []models.ConversationSummary
		if err := tx.Get(path, &summaries); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return nil
			}
			return err
		}

		kept := summaries[:0]
		for _, summary := range summaries {
			if summary.ID != conversationID {
				kept = append(kept, summary)
			}
		}
		if len(kept) == len(summaries) {
			return nil
		}
		return tx.Set(path, kept)
	})
}

func decodeSummaries(raw json.RawMessage) []models.ConversationSummary {
	if raw == nil {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Printf("convstore: summary list is not an array: %v", err)
		return nil
	}

	summaries := make([]models.ConversationSummary, 0, len(items))
	for _, item := range items {
		var summary models.ConversationSummary
		if err := json.Unmarshal(item, &summary); err != nil {
			log.Printf("convstore: dropping malformed summary: %v", err)
			continue
		}
		if summary.ID == "" || summary.OtherUserEmail == "" {
			log.Printf("convstore: dropping summary with missing fields")
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

func decodeMessages(raw json.RawMessage) []models.Message {
	if raw == nil {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Printf("convstore: message list is not an array: %v", err)
		return nil
	}

	messages := make([]models.Message, 0, len(items))
	for _, item := range items {
		var record models.MessageRecord
		if err := json.Unmarshal(item, &record); err != nil {
			log.Printf("convstore: dropping malformed message record: %v", err)
			continue
		}
		msg, err := codec.Decode(record)
		if err != nil {
			log.Printf("convstore: dropping undecodable message: %v", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}
