package notify

import "context"

// Loopback is the single-process notifier: published paths come straight
// back on C. It is the default when no Redis address is configured.
type Loopback struct {
	ch chan string
}

func NewLoopback() *Loopback {
	return &Loopback{ch: make(chan string, 64)}
}

func (l *Loopback) Publish(ctx context.Context, path string) error {
	select {
	case l.ch <- path:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loopback) C() <-chan string {
	return l.ch
}

func (l *Loopback) Close() error {
	close(l.ch)
	return nil
}
