package postgres

import (
	"context"
	"fmt"
	"time"

	"novafeed/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventLogRepository struct {
	DB *gorm.DB
}

func NewEventLogRepository(db *gorm.DB) *EventLogRepository {
	return &EventLogRepository{DB: db}
}

// AppendEvent writes one event. No read-before-write; a replayed
// event_id that slipped past the dedup window is absorbed by the
// primary key instead of failing the consumer.
func (r *EventLogRepository) AppendEvent(ctx context.Context, event domain.InteractionEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	err := r.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		},
	).Create(&event).Error
	if err != nil {
		return fmt.Errorf("failed to append interaction event: %w", err)
	}

	return nil
}

// DeleteEventsBefore removes whole partition days past the cutoff.
func (r *EventLogRepository) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	res := r.DB.WithContext(ctx).
		Where("partition_day < ?", cutoff.Truncate(24*time.Hour)).
		Delete(&domain.InteractionEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired events: %w", res.Error)
	}

	return res.RowsAffected, nil
}
