// Package notify fans document-change notifications out to every
// process watching the same database. The document store publishes the
// path of every committed change and re-reads state when a path comes
// back in on the subscription side.
package notify

import "context"

type Notifier interface {
	// Publish announces that the document at path changed.
	Publish(ctx context.Context, path string) error
	// C yields changed paths, including the ones this process published.
	C() <-chan string
	Close() error
}
