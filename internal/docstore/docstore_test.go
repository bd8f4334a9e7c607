package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", nil)
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := map[string]string{"first_name": "Alice", "last_name": "A"}
	if err := s.Set(ctx, "users/a-x-com", doc); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got map[string]string
	if err := s.Get(ctx, "users/a-x-com", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got["first_name"] != "Alice" {
		t.Errorf("got %v", got)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	var v any
	err := s.Get(context.Background(), "nope", &v)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Update(ctx, func(tx *Tx) error {
		if err := tx.Set("a", 1); err != nil {
			return err
		}
		if err := tx.Set("b", 2); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error back, got %v", err)
	}

	var v int
	if err := s.Get(ctx, "a", &v); !errors.Is(err, ErrNotFound) {
		t.Errorf("write should have rolled back, got %v", err)
	}
}

func TestUpdateMultiPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *Tx) error {
		if err := tx.Set("a", "one"); err != nil {
			return err
		}
		return tx.Set("b", "two")
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var a, b string
	if err := s.Get(ctx, "a", &a); err != nil || a != "one" {
		t.Errorf("a = %q, err %v", a, err)
	}
	if err := s.Get(ctx, "b", &b); err != nil || b != "two" {
		t.Errorf("b = %q, err %v", b, err)
	}
}

func TestDeleteMissingIsNoOp(t *testing.T) {
	s := newTestStore(t)
	if err := s.Delete(context.Background(), "ghost"); err != nil {
		t.Errorf("delete of absent path should succeed, got %v", err)
	}
}

func TestWatchEmitsCurrentThenChanges(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Set(ctx, "doc", "v1"); err != nil {
		t.Fatal(err)
	}

	ch, err := s.Watch(ctx, "doc")
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	first := recvRaw(t, ch)
	if string(first) != `"v1"` {
		t.Errorf("initial state = %s", first)
	}

	if err := s.Set(ctx, "doc", "v2"); err != nil {
		t.Fatal(err)
	}

	// Latest state wins; wait until the update lands.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw, ok := <-ch:
			if !ok {
				t.Fatal("channel closed early")
			}
			if string(raw) == `"v2"` {
				return
			}
		case <-deadline:
			t.Fatal("never observed updated state")
		}
	}
}

func TestWatchMissingDocument(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Watch(ctx, "absent")
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if raw := recvRaw(t, ch); raw != nil {
		t.Errorf("expected nil state for absent document, got %s", raw)
	}
}

func TestWatchCancelClosesChannel(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := s.Watch(ctx, "doc")
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	recvRaw(t, ch)

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// One buffered delivery may still be in flight; the next
			// read must observe the close.
			if _, ok := <-ch; ok {
				t.Error("channel should be closed after cancel")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func recvRaw(t *testing.T, ch <-chan json.RawMessage) json.RawMessage {
	t.Helper()
	select {
	case raw := <-ch:
		return raw
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch delivery")
		return nil
	}
}
