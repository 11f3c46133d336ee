package consumer

import (
	"context"
	"strings"
	"time"

	"novafeed/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRouter builds the consumer router shared by the events and CDC
// handlers. Retry keeps redelivering transient failures with backoff;
// acknowledgement only happens after a handler returns nil, which
// preserves at-least-once semantics end to end.
func NewRouter() (*message.Router, error) {
	wmLogger := watermill.NewStdLogger(false, false)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, err
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      5,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     10 * time.Second,
			Multiplier:      2.0,
			Logger:          wmLogger,
		}.Middleware,
	)

	return router, nil
}

// NewGroupSubscriber returns a Redis Streams subscriber bound to one
// consumer group. Groups partition the stream across instances; no
// two consumers of a group see the same entry.
func NewGroupSubscriber(client *redis.Client, group, consumerName string) (message.Subscriber, error) {
	if consumerName == "" {
		consumerName = "novafeed-" + uuid.NewString()[:8]
	}

	return rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  rstream.DefaultMarshallerUnmarshaller{},
		ConsumerGroup: group,
		Consumer:      consumerName,
	}, watermill.NewStdLogger(false, false))
}

// EnsureGroupAtTail creates the consumer group at the stream tail if
// it does not exist yet, so a first deploy does not replay history.
func EnsureGroupAtTail(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return err
	}
	logger.Info("created consumer group at stream tail", "stream", stream, "group", group)
	return nil
}
