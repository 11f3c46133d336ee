package postgres

import (
	"context"
	"fmt"
	"time"

	"novafeed/business/aggregate"
	"novafeed/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RollupRepository struct {
	DB *gorm.DB
}

func NewRollupRepository(db *gorm.DB) *RollupRepository {
	return &RollupRepository{DB: db}
}

// IncrementPostMetrics applies one commutative delta as a single
// atomic upsert. Counters are only ever added to, never overwritten,
// so concurrent applies for the same key cannot lose increments.
func (r *RollupRepository) IncrementPostMetrics(ctx context.Context, key aggregate.PostWindowKey, delta aggregate.MetricDelta) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	row := domain.PostMetricRollup{
		PostID:      key.PostID,
		WindowStart: key.WindowStart,
		Views:       delta.Views,
		Likes:       delta.Likes,
		Comments:    delta.Comments,
		Shares:      delta.Shares,
		DwellMsSum:  delta.DwellMsSum,
		Exposures:   delta.Exposures,
	}

	err := r.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "post_id"}, {Name: "window_start"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"views":        gorm.Expr("post_metric_rollups.views + excluded.views"),
				"likes":        gorm.Expr("post_metric_rollups.likes + excluded.likes"),
				"comments":     gorm.Expr("post_metric_rollups.comments + excluded.comments"),
				"shares":       gorm.Expr("post_metric_rollups.shares + excluded.shares"),
				"dwell_ms_sum": gorm.Expr("post_metric_rollups.dwell_ms_sum + excluded.dwell_ms_sum"),
				"exposures":    gorm.Expr("post_metric_rollups.exposures + excluded.exposures"),
			}),
		},
	).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to increment post metric rollup: %w", err)
	}

	return nil
}

func (r *RollupRepository) IncrementAffinity(ctx context.Context, key aggregate.UserAuthorKey, delta aggregate.AffinityDelta) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	row := domain.UserAuthorAffinity{
		UserID:              key.UserID,
		AuthorID:            key.AuthorID,
		Likes:               delta.Likes,
		Comments:            delta.Comments,
		Views:               delta.Views,
		DwellMs:             delta.DwellMs,
		LastInteractionTime: delta.LastInteraction,
	}

	err := r.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "author_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"likes":                 gorm.Expr("user_author_affinities.likes + excluded.likes"),
				"comments":              gorm.Expr("user_author_affinities.comments + excluded.comments"),
				"views":                 gorm.Expr("user_author_affinities.views + excluded.views"),
				"dwell_ms":              gorm.Expr("user_author_affinities.dwell_ms + excluded.dwell_ms"),
				"last_interaction_time": gorm.Expr("GREATEST(user_author_affinities.last_interaction_time, excluded.last_interaction_time)"),
			}),
		},
	).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to increment user author affinity: %w", err)
	}

	return nil
}

func (r *RollupRepository) DeleteRollupsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	res := r.DB.WithContext(ctx).
		Where("window_start < ?", cutoff).
		Delete(&domain.PostMetricRollup{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired rollups: %w", res.Error)
	}

	return res.RowsAffected, nil
}

func (r *RollupRepository) DeleteAffinitiesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	res := r.DB.WithContext(ctx).
		Where("last_interaction_time < ?", cutoff).
		Delete(&domain.UserAuthorAffinity{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired affinities: %w", res.Error)
	}

	return res.RowsAffected, nil
}
