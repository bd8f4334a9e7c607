package notify

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

const changeChannel = "messenger-changes"

// Redis broadcasts change paths over a pub/sub channel so that several
// server instances sharing one database keep their watches fresh. Like
// every subscriber, the publishing instance receives its own messages,
// which is what drives its local watchers.
type Redis struct {
	client *redis.Client
	pubsub *redis.PubSub
	ch     chan string
	done   chan struct{}
}

func NewRedis(addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}

	r := &Redis{
		client: client,
		pubsub: client.Subscribe(context.Background(), changeChannel),
		ch:     make(chan string, 64),
		done:   make(chan struct{}),
	}
	go r.receive()
	return r, nil
}

func (r *Redis) receive() {
	defer close(r.ch)
	for msg := range r.pubsub.Channel() {
		select {
		case r.ch <- msg.Payload:
		case <-r.done:
			return
		}
	}
}

func (r *Redis) Publish(ctx context.Context, path string) error {
	if err := r.client.Publish(ctx, changeChannel, path).Err(); err != nil {
		log.Printf("notify: redis publish %q: %v", path, err)
		return err
	}
	return nil
}

func (r *Redis) C() <-chan string {
	return r.ch
}

func (r *Redis) Close() error {
	close(r.done)
	if err := r.pubsub.Close(); err != nil {
		return err
	}
	return r.client.Close()
}
