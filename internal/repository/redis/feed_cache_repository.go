package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"novafeed/business/feed"

	"github.com/redis/go-redis/v9"
)

// FeedCacheRepository caches one ranked candidate list per user,
// plus a post -> users reverse index so a post deletion can drop every
// cached list that contains it.
type FeedCacheRepository struct {
	client *redis.Client
}

func NewFeedCacheRepository(client *redis.Client) *FeedCacheRepository {
	return &FeedCacheRepository{
		client: client,
	}
}

func candidatesKey(userID string) string {
	return fmt.Sprintf("feed:candidates:%s", userID)
}

func postIndexKey(postID string) string {
	return fmt.Sprintf("feed:postindex:%s", postID)
}

func (r *FeedCacheRepository) Get(ctx context.Context, userID string) (*feed.CachedFeed, bool) {
	raw, err := r.client.Get(ctx, candidatesKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}

	var cached feed.CachedFeed
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false
	}

	return &cached, true
}

func (r *FeedCacheRepository) Set(ctx context.Context, userID string, cached feed.CachedFeed, ttl time.Duration) error {
	raw, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal cached feed: %w", err)
	}

	if err := r.client.Set(ctx, candidatesKey(userID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cached feed: %w", err)
	}

	// reverse index entries outlive the page slightly so late
	// invalidations still find their targets
	pipe := r.client.Pipeline()
	for _, c := range cached.Candidates {
		key := postIndexKey(c.PostID)
		pipe.SAdd(ctx, key, userID)
		pipe.Expire(ctx, key, 2*ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index cached feed posts: %w", err)
	}

	return nil
}

func (r *FeedCacheRepository) InvalidatePost(ctx context.Context, postID string) error {
	users, err := r.client.SMembers(ctx, postIndexKey(postID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to read post index: %w", err)
	}

	if len(users) > 0 {
		keys := make([]string, 0, len(users))
		for _, userID := range users {
			keys = append(keys, candidatesKey(userID))
		}
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to drop cached feeds: %w", err)
		}
	}

	if err := r.client.Del(ctx, postIndexKey(postID)).Err(); err != nil {
		return fmt.Errorf("failed to drop post index: %w", err)
	}

	return nil
}
