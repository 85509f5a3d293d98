package chainclient

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// TipPushChannel is the pub/sub channel the node (or an adjacent watcher)
// publishes to when a new block is seen; the indexer subscribes to it only
// as a wake hint, never as a source of truth (§4.2).
const TipPushChannel = "zord:tip"

// TipPush wraps a Redis client configured for pub/sub tip notifications.
// It degrades gracefully to "always disabled" when no address is
// configured, mirroring the teacher's cache.Cache degradation shape.
type TipPush struct {
	client  *redis.Client
	enabled bool
}

// NewTipPush builds a TipPush client for addr ("host:port"). An empty addr
// yields a disabled TipPush: Publish does nothing and Subscribe returns nil.
func NewTipPush(addr string) *TipPush {
	if addr == "" {
		return &TipPush{enabled: false}
	}
	return &TipPush{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		enabled: true,
	}
}

// Enabled reports whether a tip-push endpoint was configured.
func (t *TipPush) Enabled() bool { return t.enabled }

// Publish announces a new tip height. Best-effort: publish failures are
// logged, never fatal, since the signal is never a source of truth.
func (t *TipPush) Publish(ctx context.Context, height uint64) {
	if !t.enabled {
		return
	}
	if err := t.client.Publish(ctx, TipPushChannel, height).Err(); err != nil {
		log.Printf("chainclient: tip-push publish failed: %v", err)
	}
}

// Subscribe returns a channel that receives a value every time a tip-push
// notification arrives. The caller must cancel ctx to stop the
// subscription. Returns nil if tip-push is disabled.
func (t *TipPush) Subscribe(ctx context.Context) <-chan struct{} {
	if !t.enabled {
		return nil
	}
	sub := t.client.Subscribe(ctx, TipPushChannel)
	out := make(chan struct{}, 1)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

// Close releases the underlying Redis client, if any.
func (t *TipPush) Close() error {
	if !t.enabled {
		return nil
	}
	return t.client.Close()
}
