package consumer

import (
	"context"
	"errors"

	"novafeed/business/aggregate"
	"novafeed/domain"
	"novafeed/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
)

type EventIngester interface {
	Ingest(ctx context.Context, payload []byte) (*domain.InteractionEvent, error)
}

// RegisterEventsHandler wires the interaction-events stream into the
// Event Log Writer and the aggregation batcher. A message is only
// acknowledged after the durable append; malformed payloads are
// dropped (acked) so the bus does not redeliver garbage forever.
func RegisterEventsHandler(
	router *message.Router,
	subscriber message.Subscriber,
	topic string,
	ingester EventIngester,
	batcher *aggregate.Batcher,
) {
	router.AddNoPublisherHandler(
		"events_ingest",
		topic,
		subscriber,
		func(msg *message.Message) error {
			event, err := ingester.Ingest(msg.Context(), msg.Payload)
			if err != nil {
				if errors.Is(err, domain.ErrInvalidPayload) {
					logger.Warn("dropping malformed event message",
						"message_uuid", msg.UUID,
						"error", err,
					)
					return nil
				}
				// storage unavailable or similar: nack for redelivery
				return err
			}
			if event == nil {
				// duplicate inside the dedup window
				return nil
			}

			return batcher.Add(msg.Context(), *event)
		},
	)
}
