package memory

import (
	"context"
	"sync"

	"quiz-room-service/internal/domain"
)

const subscriberBuffer = 8

// Broker is an in-process app.Notifier.
type Broker struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Change]struct{}
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[string]map[chan domain.Change]struct{})}
}

// Publish never blocks: a subscriber that fell behind loses its oldest pending change.
// Changes carry no state, so dropping one only delays a refresh.
func (b *Broker) Publish(_ context.Context, change domain.Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers[change.GameID] {
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
	return nil
}

func (b *Broker) Subscribe(_ context.Context, gameID string) (<-chan domain.Change, func(), error) {
	ch := make(chan domain.Change, subscriberBuffer)

	b.mu.Lock()
	subs, ok := b.subscribers[gameID]
	if !ok {
		subs = make(map[chan domain.Change]struct{})
		b.subscribers[gameID] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs, ok := b.subscribers[gameID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(b.subscribers, gameID)
		}
	}
	return ch, cancel, nil
}

// Subscribers reports how many listeners a game has.
func (b *Broker) Subscribers(gameID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[gameID])
}
