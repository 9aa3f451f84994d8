package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hedgescan/hedgescan/internal/domain"
)

const (
	// streamCap trims the evaluation stream with XADD MAXLEN ~. At one
	// entry per cycle it keeps several days of history.
	streamCap int64 = 10000

	// payloadField names the single stream entry field carrying the
	// serialized evaluation.
	payloadField = "body"

	// subscribeBuffer absorbs publish bursts while a subscriber catches up.
	subscribeBuffer = 128
)

// SignalBus implements domain.SignalBus on two Redis primitives: Pub/Sub
// fans evaluation batches out to live subscribers (the WebSocket hub,
// monitor replicas), a capped stream keeps replayable history for restarts.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus on the shared client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.rdb}
}

var _ domain.SignalBus = (*SignalBus)(nil)

// Publish fans payload out to the channel's current subscribers. Nobody
// listening is not an error.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a Pub/Sub subscription and returns the payload channel.
// The subscription confirmation is awaited before returning, so a successful
// call means messages are flowing. Cancelling ctx closes everything down and
// closes the returned channel.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := sb.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscribeBuffer)
	go sb.pump(ctx, sub, out)
	return out, nil
}

// pump copies subscription messages to out until ctx ends or the
// subscription drops.
func (sb *SignalBus) pump(ctx context.Context, sub *redis.PubSub, out chan<- []byte) {
	defer close(out)
	defer sub.Close()

	in := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

// StreamAppend appends payload to the capped stream.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamCap,
		Approx: true,
		Values: map[string]any{payloadField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: xadd %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries with IDs strictly after lastID,
// oldest first. "0" reads from the beginning. It never blocks; no entries
// means an empty result, not an error.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	start := "-"
	if lastID != "" && lastID != "-" {
		start = "(" + lastID
	}

	entries, err := sb.rdb.XRangeN(ctx, stream, start, "+", int64(count)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: xrange %s: %w", stream, err)
	}

	msgs := make([]domain.StreamMessage, 0, len(entries))
	for _, e := range entries {
		body, ok := entryPayload(e)
		if !ok {
			continue
		}
		msgs = append(msgs, domain.StreamMessage{ID: e.ID, Payload: body})
	}
	return msgs, nil
}

// entryPayload pulls the payload field out of one stream entry. go-redis
// decodes stream values as strings.
func entryPayload(e redis.XMessage) ([]byte, bool) {
	v, ok := e.Values[payloadField]
	if !ok {
		return nil, false
	}
	switch body := v.(type) {
	case string:
		return []byte(body), true
	case []byte:
		return body, true
	}
	return nil, false
}
