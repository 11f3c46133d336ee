package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupRepository remembers event ids for a bounded window using
// SET NX with a TTL. First sighting wins the set and returns true.
type DedupRepository struct {
	client *redis.Client
}

func NewDedupRepository(client *redis.Client) *DedupRepository {
	return &DedupRepository{
		client: client,
	}
}

func (r *DedupRepository) CheckAndMark(ctx context.Context, eventID string, window time.Duration) (bool, error) {
	key := fmt.Sprintf("events:dedup:%s", eventID)

	first, err := r.client.SetNX(ctx, key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event id in Redis: %w", err)
	}

	return first, nil
}
