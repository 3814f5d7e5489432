package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"quiz-room-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ShuffleStore keeps option orders in one hash per player:
// HSETNX quiz:shuffles:{playerID} {questionIndex} {json order}
type ShuffleStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewShuffleStore expires a player's hash ttl after its last write; zero keeps it forever.
func NewShuffleStore(client *redis.Client, ttl time.Duration) *ShuffleStore {
	return &ShuffleStore{client: client, ttl: ttl}
}

func (s *ShuffleStore) InsertShuffleIfAbsent(ctx context.Context, shuffle domain.OptionShuffle) (domain.OptionShuffle, error) {
	payload, err := json.Marshal(shuffle.ShuffledOrder)
	if err != nil {
		return domain.OptionShuffle{}, fmt.Errorf("encode shuffle: %w", err)
	}
	key := shuffleKey(shuffle.PlayerID)
	field := strconv.Itoa(shuffle.QuestionIndex)

	created, err := s.client.HSetNX(ctx, key, field, payload).Result()
	if err != nil {
		return domain.OptionShuffle{}, fmt.Errorf("hsetnx shuffle: %w", err)
	}
	if created {
		if s.ttl > 0 {
			_ = s.client.Expire(ctx, key, s.ttl).Err()
		}
		return shuffle, nil
	}

	raw, err := s.client.HGet(ctx, key, field).Bytes()
	if err != nil {
		return domain.OptionShuffle{}, fmt.Errorf("hget shuffle: %w", err)
	}
	var order []int
	if err := json.Unmarshal(raw, &order); err != nil {
		return domain.OptionShuffle{}, fmt.Errorf("decode shuffle: %w", err)
	}
	shuffle.ShuffledOrder = order
	return shuffle, nil
}

func shuffleKey(playerID string) string {
	return "quiz:shuffles:" + playerID
}
