package postgres

import (
	"context"
	"fmt"
	"time"

	"novafeed/business/feed"
	"novafeed/domain"

	"gorm.io/gorm"
)

// FeedRepository serves the three candidate sources and the batched
// engagement lookup. Read-only; ranking never mutates persisted state.
// Every ordered query carries a unique trailing sort key: rows tied on
// the primary key at the LIMIT boundary must resolve the same way on
// every execution or repeated rankings of one snapshot diverge.
type FeedRepository struct {
	DB *gorm.DB
}

func NewFeedRepository(db *gorm.DB) *FeedRepository {
	return &FeedRepository{DB: db}
}

func (r *FeedRepository) RecentPostsByFollowed(ctx context.Context, userID string, since time.Time, limit int) ([]feed.SourcePost, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rows []feed.SourcePost
	err := r.DB.WithContext(ctx).
		Table("post_replicas AS p").
		Select("p.post_id AS post_id, p.author_id AS author_id, p.created_at AS created_at").
		Joins("JOIN follow_replicas AS f ON f.followee_id = p.author_id AND f.deleted = false").
		Where("f.follower_id = ? AND p.deleted = false AND p.created_at >= ?", userID, since).
		Order("p.created_at DESC, p.post_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query social candidates: %w", err)
	}

	return rows, nil
}

type trendingRow struct {
	PostID    string
	AuthorID  string
	CreatedAt time.Time
	Views     int64
	Likes     int64
	Comments  int64
	Shares    int64
	Exposures int64
}

func (r *FeedRepository) TopEngagedPosts(ctx context.Context, since time.Time, limit int) ([]feed.TrendingPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rows []trendingRow
	err := r.DB.WithContext(ctx).
		Table("post_metric_rollups AS m").
		Select(`m.post_id AS post_id,
			p.author_id AS author_id,
			p.created_at AS created_at,
			SUM(m.views) AS views,
			SUM(m.likes) AS likes,
			SUM(m.comments) AS comments,
			SUM(m.shares) AS shares,
			SUM(m.exposures) AS exposures`).
		Joins("JOIN post_replicas AS p ON p.post_id = m.post_id AND p.deleted = false").
		Where("m.window_start >= ?", since).
		Group("m.post_id, p.author_id, p.created_at").
		Order("(SUM(m.views) + 4*SUM(m.likes) + 6*SUM(m.comments) + 8*SUM(m.shares)) / GREATEST(SUM(m.exposures), 1) DESC, m.post_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query trending candidates: %w", err)
	}

	out := make([]feed.TrendingPost, 0, len(rows))
	for _, row := range rows {
		out = append(out, feed.TrendingPost{
			SourcePost: feed.SourcePost{
				PostID:    row.PostID,
				AuthorID:  row.AuthorID,
				CreatedAt: row.CreatedAt,
			},
			Totals: domain.EngagementTotals{
				PostID:    row.PostID,
				Views:     row.Views,
				Likes:     row.Likes,
				Comments:  row.Comments,
				Shares:    row.Shares,
				Exposures: row.Exposures,
			},
		})
	}

	return out, nil
}

func (r *FeedRepository) TopAuthors(ctx context.Context, userID string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var authors []string
	err := r.DB.WithContext(ctx).
		Table("user_author_affinities").
		Where("user_id = ?", userID).
		Order("likes*3 + comments*4 + views + dwell_ms/60000 DESC, author_id ASC").
		Limit(limit).
		Pluck("author_id", &authors).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query top affinity authors: %w", err)
	}

	return authors, nil
}

func (r *FeedRepository) RecentPostsByAuthors(ctx context.Context, authorIDs []string, since time.Time, limit int) ([]feed.SourcePost, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if len(authorIDs) == 0 {
		return nil, nil
	}

	var rows []feed.SourcePost
	err := r.DB.WithContext(ctx).
		Table("post_replicas").
		Select("post_id, author_id, created_at").
		Where("author_id IN ? AND deleted = false AND created_at >= ?", authorIDs, since).
		Order("created_at DESC, post_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query affinity candidates: %w", err)
	}

	return rows, nil
}

func (r *FeedRepository) EngagementTotals(ctx context.Context, postIDs []string, since time.Time) (map[string]domain.EngagementTotals, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if len(postIDs) == 0 {
		return map[string]domain.EngagementTotals{}, nil
	}

	var rows []domain.EngagementTotals
	err := r.DB.WithContext(ctx).
		Table("post_metric_rollups").
		Select(`post_id,
			SUM(views) AS views,
			SUM(likes) AS likes,
			SUM(comments) AS comments,
			SUM(shares) AS shares,
			SUM(exposures) AS exposures`).
		Where("post_id IN ? AND window_start >= ?", postIDs, since).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query engagement totals: %w", err)
	}

	out := make(map[string]domain.EngagementTotals, len(rows))
	for _, row := range rows {
		out[row.PostID] = row
	}

	return out, nil
}
