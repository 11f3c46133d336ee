package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"novafeed/domain"
	"novafeed/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
)

type CDCApplier interface {
	Apply(ctx context.Context, rec domain.CDCRecord) (domain.ApplyOutcome, error)
}

// RegisterCDCHandler wires the change feed into the replicator. Stale
// records are no-ops; dead-lettered records are acknowledged because
// they have already been persisted for reconciliation; only transient
// failures are redelivered.
func RegisterCDCHandler(
	router *message.Router,
	subscriber message.Subscriber,
	topic string,
	applier CDCApplier,
) {
	router.AddNoPublisherHandler(
		"cdc_replicate",
		topic,
		subscriber,
		func(msg *message.Message) error {
			var rec domain.CDCRecord
			if err := json.Unmarshal(msg.Payload, &rec); err != nil {
				logger.Warn("dropping malformed cdc message",
					"message_uuid", msg.UUID,
					"error", err,
				)
				return nil
			}

			outcome, err := applier.Apply(msg.Context(), rec)
			if err != nil {
				if errors.Is(err, domain.ErrInvalidPayload) {
					logger.Warn("dropping invalid cdc record",
						"entity_type", rec.EntityType,
						"entity_id", rec.EntityID,
						"error", err,
					)
					return nil
				}
				if errors.Is(err, domain.ErrReplicaConflict) {
					// parked in the dead-letter table; ack
					return nil
				}
				return err
			}

			if outcome == domain.OutcomeSkippedStale {
				logger.Debug("stale cdc record skipped",
					"entity_type", rec.EntityType,
					"entity_id", rec.EntityID,
					"version", rec.Version,
				)
			}

			return nil
		},
	)
}
