package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/lqv/messenger/internal/models"
)

var sentAt = time.Date(2024, 3, 20, 14, 30, 5, 250*int(time.Millisecond), time.UTC)

func TestEncodeDecodeText(t *testing.T) {
	msg := models.Message{
		ID:         "m1",
		SenderKey:  "a-x-com",
		SenderName: "Alice A",
		Kind:       models.KindText,
		Text:       "hello there",
		SentAt:     sentAt,
	}

	record := Encode(msg)
	if record.Type != "text" || record.Content != "hello there" {
		t.Errorf("unexpected record: %+v", record)
	}

	got, err := Decode(record)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != msg {
		t.Errorf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestEncodeDecodePhotoAndVideo(t *testing.T) {
	for _, kind := range []models.MessageKind{models.KindPhoto, models.KindVideo} {
		msg := models.Message{
			ID:         "m2",
			SenderKey:  "a-x-com",
			SenderName: "Alice A",
			Kind:       kind,
			MediaURL:   "https://blobs.example.com/message_images/m2.png",
			SentAt:     sentAt,
		}

		record := Encode(msg)
		if record.Content != msg.MediaURL {
			t.Errorf("%s content = %q, want URL", kind, record.Content)
		}

		got, err := Decode(record)
		if err != nil {
			t.Fatalf("Decode %s failed: %v", kind, err)
		}
		if got != msg {
			t.Errorf("%s round trip mismatch: got %+v want %+v", kind, got, msg)
		}
	}
}

func TestEncodeDecodeLocation(t *testing.T) {
	msg := models.Message{
		ID:         "m3",
		SenderKey:  "a-x-com",
		SenderName: "Alice A",
		Kind:       models.KindLocation,
		Longitude:  -122.41,
		Latitude:   37.77,
		SentAt:     sentAt,
	}

	record := Encode(msg)
	if record.Content != "-122.41,37.77" {
		t.Errorf("location content = %q", record.Content)
	}

	got, err := Decode(record)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != msg {
		t.Errorf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestEncodeUnsupportedKind(t *testing.T) {
	msg := models.Message{
		ID:        "m4",
		SenderKey: "a-x-com",
		Kind:      "audio",
		SentAt:    sentAt,
	}

	record := Encode(msg)
	if record.Content != "" {
		t.Errorf("unsupported kind should encode empty content, got %q", record.Content)
	}
	if record.Type != "audio" {
		t.Errorf("type should be preserved, got %q", record.Type)
	}
}

func TestDecodeFailures(t *testing.T) {
	base := models.MessageRecord{
		ID:          "m5",
		Type:        "text",
		Content:     "hi",
		Date:        FormatDate(sentAt),
		SenderEmail: "a-x-com",
		Name:        "Alice A",
	}

	cases := []struct {
		name   string
		mutate func(r *models.MessageRecord)
	}{
		{"missing id", func(r *models.MessageRecord) { r.ID = "" }},
		{"missing sender", func(r *models.MessageRecord) { r.SenderEmail = "" }},
		{"bad date", func(r *models.MessageRecord) { r.Date = "2024-03-20" }},
		{"relative media url", func(r *models.MessageRecord) { r.Type = "photo"; r.Content = "images/x.png" }},
		{"location one part", func(r *models.MessageRecord) { r.Type = "location"; r.Content = "12.5" }},
		{"location three parts", func(r *models.MessageRecord) { r.Type = "location"; r.Content = "1,2,3" }},
		{"location not floats", func(r *models.MessageRecord) { r.Type = "location"; r.Content = "here,there" }},
	}

	for _, tc := range cases {
		record := base
		tc.mutate(&record)

		_, err := Decode(record)
		if err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
			continue
		}
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Errorf("%s: expected *DecodeError, got %T", tc.name, err)
		}
	}
}

func TestDateOrdering(t *testing.T) {
	earlier := FormatDate(sentAt)
	later := FormatDate(sentAt.Add(50 * time.Millisecond))
	if !(earlier < later) {
		t.Errorf("formatted dates should order lexically: %q vs %q", earlier, later)
	}
}
