package docstore

import (
	"encoding/json"
	"sync"
)

type watcher struct {
	path string
	ch   chan json.RawMessage
}

// watchRegistry tracks the live watchers per path. All channel sends and
// the final close happen under the registry lock, so a delivery can
// never race a detach.
type watchRegistry struct {
	mu       sync.Mutex
	watchers map[string][]*watcher
	closed   bool
}

func newWatchRegistry() *watchRegistry {
	return &watchRegistry{watchers: make(map[string][]*watcher)}
}

func (r *watchRegistry) add(path string, current json.RawMessage) (*watcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	w := &watcher{path: path, ch: make(chan json.RawMessage, 1)}
	w.ch <- current
	r.watchers[path] = append(r.watchers[path], w)
	return w, nil
}

func (r *watchRegistry) remove(w *watcher) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.watchers[w.path]
	for i, candidate := range list {
		if candidate == w {
			r.watchers[w.path] = append(list[:i], list[i+1:]...)
			close(w.ch)
			return
		}
	}
}

func (r *watchRegistry) deliver(path string, raw json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range r.watchers[path] {
		pushLatest(w.ch, raw)
	}
}

func (r *watchRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true

	for _, list := range r.watchers {
		for _, w := range list {
			close(w.ch)
		}
	}
	r.watchers = make(map[string][]*watcher)
}

// pushLatest replaces whatever is buffered so the consumer always reads
// the newest state, never a backlog.
func pushLatest(ch chan json.RawMessage, raw json.RawMessage) {
	for {
		select {
		case ch <- raw:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
