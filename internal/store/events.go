// internal/store/events.go
package store

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Tables that emit change events.
const (
	TableMessages       = "messages"
	TableBarterRequests = "barter_requests"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is a change notification for one row. Record carries the row as
// written (JSON), and may be empty for deletes.
type Event struct {
	Table  string          `json:"table"`
	Type   EventType       `json:"type"`
	Record json.RawMessage `json:"record,omitempty"`
}

// Subscription is one live feed of events for a single table. Events()
// is closed when the feed ends, whether by Close or by transport failure;
// consumers are expected to re-subscribe.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Bus carries change notifications between the store gateway and live
// sync sessions.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, table string) (Subscription, error)
}

// RedisBus implements Bus over Redis pub/sub, one channel per table.
type RedisBus struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewRedisBus(rdb *redis.Client, log zerolog.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, log: log.With().Str("component", "bus").Logger()}
}

func channelFor(table string) string { return "store:" + table }

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channelFor(ev.Table), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, table string) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, channelFor(table))

	// force the SUBSCRIBE round trip so a dead redis fails here, not
	// silently on the first missed event
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{ps: ps, out: make(chan Event, 64)}
	go func() {
		defer close(sub.out)
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping undecodable event")
				continue
			}
			select {
			case sub.out <- ev:
			default:
				// slow consumer; it self-heals via refresh, so drop
				b.log.Warn().Str("table", table).Msg("event buffer full, dropping event")
			}
		}
	}()
	return sub, nil
}

type redisSubscription struct {
	ps  *redis.PubSub
	out chan Event
}

func (s *redisSubscription) Events() <-chan Event { return s.out }
func (s *redisSubscription) Close() error         { return s.ps.Close() }
