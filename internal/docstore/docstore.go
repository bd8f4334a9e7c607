// Package docstore is a path-addressed JSON document store backed by
// SQLite. It provides the three primitives the conversation layer
// needs from its database: point reads, multi-document transactional
// writes, and live watches on a path.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/lqv/messenger/internal/notify"
)

var (
	ErrNotFound = errors.New("docstore: document not found")
	ErrTimeout  = errors.New("docstore: operation timed out")
	ErrConflict = errors.New("docstore: concurrent update conflict")
	ErrClosed   = errors.New("docstore: store is closed")
)

// DefaultTimeout bounds every remote round-trip so a dead database
// surfaces as ErrTimeout instead of a hang.
const DefaultTimeout = 10 * time.Second

type Store struct {
	db       *sql.DB
	notifier notify.Notifier
	timeout  time.Duration

	watch *watchRegistry
}

// New opens (or creates) the store at dataSourceName. A nil notifier
// gets the in-process loopback; pass a Redis notifier when several
// instances share the database.
func New(dataSourceName string, notifier notify.Notifier) (*Store, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}
	// One connection: ":memory:" databases are per-connection, and a
	// single writer keeps transactions serialized without busy retries.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if _, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			path TEXT PRIMARY KEY,
			body TEXT NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}

	if notifier == nil {
		notifier = notify.NewLoopback()
	}

	s := &Store{
		db:       db,
		notifier: notifier,
		timeout:  DefaultTimeout,
		watch:    newWatchRegistry(),
	}
	go s.dispatch()
	return s, nil
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return ErrConflict
		}
	}
	return err
}

// Get unmarshals the document at path into v.
func (s *Store) Get(ctx context.Context, path string, v any) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	raw, err := s.getRaw(ctx, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (s *Store) getRaw(ctx context.Context, path string) (json.RawMessage, error) {
	var body string
	err := s.db.QueryRowContext(ctx, "SELECT body FROM documents WHERE path = ?", path).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return json.RawMessage(body), nil
}

// Set writes a single document.
func (s *Store) Set(ctx context.Context, path string, v any) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.Set(path, v)
	})
}

// Delete removes a single document. Deleting an absent path is a no-op.
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.Delete(path)
	})
}

// Tx is a transactional view of the store. All writes made through it
// commit together or not at all.
type Tx struct {
	ctx     context.Context
	tx      *sql.Tx
	changed []string
}

func (t *Tx) Get(path string, v any) error {
	var body string
	err := t.tx.QueryRowContext(t.ctx, "SELECT body FROM documents WHERE path = ?", path).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return mapErr(err)
	}
	return json.Unmarshal([]byte(body), v)
}

func (t *Tx) Set(path string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal document %q: %w", path, err)
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO documents (path, body) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET body = excluded.body
	`, path, string(body))
	if err != nil {
		return mapErr(err)
	}
	t.changed = append(t.changed, path)
	return nil
}

func (t *Tx) Delete(path string) error {
	_, err := t.tx.ExecContext(t.ctx, "DELETE FROM documents WHERE path = ?", path)
	if err != nil {
		return mapErr(err)
	}
	t.changed = append(t.changed, path)
	return nil
}

// Update runs fn inside one transaction and, after commit, announces
// every written path to the notifier.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}

	t := &Tx{ctx: ctx, tx: tx}
	if err := fn(t); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr(err)
	}

	s.announce(t.changed)
	return nil
}

func (s *Store) announce(paths []string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		if seen[path] {
			continue
		}
		seen[path] = true
		if err := s.notifier.Publish(ctx, path); err != nil {
			log.Printf("docstore: publish change for %q: %v", path, err)
		}
	}
}

// dispatch turns incoming change notifications into watcher deliveries.
func (s *Store) dispatch() {
	for path := range s.notifier.C() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		raw, err := s.getRaw(ctx, path)
		cancel()
		if err != nil && !errors.Is(err, ErrNotFound) {
			log.Printf("docstore: re-read %q after change: %v", path, err)
			continue
		}
		s.watch.deliver(path, raw)
	}
}

// Watch subscribes to the document at path. The channel carries the
// current state immediately and the latest state after every committed
// change; a nil value means the document does not exist. Slow consumers
// only ever see the most recent state. Cancelling ctx detaches the
// watch and closes the channel.
func (s *Store) Watch(ctx context.Context, path string) (<-chan json.RawMessage, error) {
	opCtx, cancel := s.opContext(ctx)
	raw, err := s.getRaw(opCtx, path)
	cancel()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	w, err := s.watch.add(path, raw)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		s.watch.remove(w)
	}()

	return w.ch, nil
}

func (s *Store) Close() error {
	s.notifier.Close()
	s.watch.closeAll()
	return s.db.Close()
}
