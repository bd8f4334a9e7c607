// Package codec converts typed messages to and from their flat stored
// record form.
package codec

import (
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lqv/messenger/internal/models"
)

// DateLayout is the fixed-width timestamp format used in stored records.
// Always UTC, millisecond resolution, so lexical order equals
// chronological order.
const DateLayout = "2006-01-02T15:04:05.000Z"

// FormatDate renders t in the stored-record layout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate is the inverse of FormatDate.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DecodeError reports a single malformed stored record. Callers drop the
// offending record and keep the rest of the collection.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message: field %q: %s", e.Field, e.Reason)
}

// Encode flattens a message into its stored record. Content depends only
// on the kind: text body verbatim, media URL for photo/video, a
// "<longitude>,<latitude>" pair for location. Any other kind is
// unsupported and encodes to empty content.
func Encode(m models.Message) models.MessageRecord {
	var content string
	switch m.Kind {
	case models.KindText:
		content = m.Text
	case models.KindPhoto, models.KindVideo:
		content = m.MediaURL
	case models.KindLocation:
		content = strconv.FormatFloat(m.Longitude, 'f', -1, 64) + "," +
			strconv.FormatFloat(m.Latitude, 'f', -1, 64)
	default:
		log.Printf("codec: unsupported message kind %q, storing empty content", m.Kind)
	}

	return models.MessageRecord{
		ID:          m.ID,
		Type:        string(m.Kind),
		Content:     content,
		Date:        FormatDate(m.SentAt),
		SenderEmail: m.SenderKey,
		IsRead:      m.Read,
		Name:        m.SenderName,
	}
}

// Decode rebuilds a typed message from a stored record. Types other than
// photo, video and location are read back as text, matching how the
// records have always been interpreted.
func Decode(r models.MessageRecord) (models.Message, error) {
	if r.ID == "" {
		return models.Message{}, &DecodeError{Field: "id", Reason: "missing"}
	}
	if r.SenderEmail == "" {
		return models.Message{}, &DecodeError{Field: "sender_email", Reason: "missing"}
	}

	sentAt, err := ParseDate(r.Date)
	if err != nil {
		return models.Message{}, &DecodeError{Field: "date", Reason: err.Error()}
	}

	m := models.Message{
		ID:         r.ID,
		SenderKey:  r.SenderEmail,
		SenderName: r.Name,
		SentAt:     sentAt,
		Read:       r.IsRead,
	}

	switch models.MessageKind(r.Type) {
	case models.KindPhoto, models.KindVideo:
		u, err := url.Parse(r.Content)
		if err != nil || !u.IsAbs() {
			return models.Message{}, &DecodeError{Field: "content", Reason: "not an absolute URL"}
		}
		m.Kind = models.MessageKind(r.Type)
		m.MediaURL = r.Content
	case models.KindLocation:
		parts := strings.Split(r.Content, ",")
		if len(parts) != 2 {
			return models.Message{}, &DecodeError{Field: "content", Reason: "location is not two comma-separated floats"}
		}
		lon, lonErr := strconv.ParseFloat(parts[0], 64)
		lat, latErr := strconv.ParseFloat(parts[1], 64)
		if lonErr != nil || latErr != nil {
			return models.Message{}, &DecodeError{Field: "content", Reason: "location is not two comma-separated floats"}
		}
		m.Kind = models.KindLocation
		m.Longitude = lon
		m.Latitude = lat
	default:
		m.Kind = models.KindText
		m.Text = r.Content
	}

	return m, nil
}
