package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"quiz-room-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

const subscriberBuffer = 8

// Notifier fans out changes across instances over Redis pub/sub, one channel per game.
type Notifier struct {
	client *redis.Client
	log    *slog.Logger
}

func NewNotifier(client *redis.Client, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{client: client, log: log}
}

func (n *Notifier) Publish(ctx context.Context, change domain.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := n.client.Publish(ctx, changesChannel(change.GameID), payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Subscribe returns once Redis confirmed the subscription, so no change published afterwards is missed.
func (n *Notifier) Subscribe(ctx context.Context, gameID string) (<-chan domain.Change, func(), error) {
	ps := n.client.Subscribe(ctx, changesChannel(gameID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe changes: %w", err)
	}

	out := make(chan domain.Change, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				cancel()
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change domain.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					n.log.Warn("drop malformed change", "game", gameID, "err", err)
					continue
				}
				deliver(out, change)
			}
		}
	}()
	return out, cancel, nil
}

// deliver drops the oldest pending change when the reader fell behind.
func deliver(ch chan domain.Change, change domain.Change) {
	select {
	case ch <- change:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- change
	}
}

func changesChannel(gameID string) string {
	return "quiz:changes:" + gameID
}
