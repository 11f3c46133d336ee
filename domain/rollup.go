package domain

import (
	"time"
)

// CREATE TABLE public.post_metric_rollups (
//     post_id         TEXT NOT NULL,
//     window_start    TIMESTAMPTZ NOT NULL,
//     views           BIGINT DEFAULT 0,
//     likes           BIGINT DEFAULT 0,
//     comments        BIGINT DEFAULT 0,
//     shares          BIGINT DEFAULT 0,
//     dwell_ms_sum    BIGINT DEFAULT 0,
//     exposures       BIGINT DEFAULT 0,
//     PRIMARY KEY (post_id, window_start)
// );

// PostMetricRollup is one hourly engagement bucket for a post. All
// counters are additive; the aggregator only ever applies increments.
type PostMetricRollup struct {
	PostID      string    `gorm:"column:post_id;primaryKey" json:"post_id"`
	WindowStart time.Time `gorm:"column:window_start;primaryKey" json:"window_start"`
	Views       int64     `gorm:"column:views;default:0" json:"views"`
	Likes       int64     `gorm:"column:likes;default:0" json:"likes"`
	Comments    int64     `gorm:"column:comments;default:0" json:"comments"`
	Shares      int64     `gorm:"column:shares;default:0" json:"shares"`
	DwellMsSum  int64     `gorm:"column:dwell_ms_sum;default:0" json:"dwell_ms_sum"`
	Exposures   int64     `gorm:"column:exposures;default:0" json:"exposures"`
}

func (PostMetricRollup) TableName() string {
	return "post_metric_rollups"
}

// UserAuthorAffinity accumulates one user's interactions with one
// author over a rolling horizon. Row existence implies at least one
// interaction inside the horizon.
type UserAuthorAffinity struct {
	UserID              string    `gorm:"column:user_id;primaryKey" json:"user_id"`
	AuthorID            string    `gorm:"column:author_id;primaryKey" json:"author_id"`
	Likes               int64     `gorm:"column:likes;default:0" json:"likes"`
	Comments            int64     `gorm:"column:comments;default:0" json:"comments"`
	Views               int64     `gorm:"column:views;default:0" json:"views"`
	DwellMs             int64     `gorm:"column:dwell_ms;default:0" json:"dwell_ms"`
	LastInteractionTime time.Time `gorm:"column:last_interaction_time;not null" json:"last_interaction_time"`
}

func (UserAuthorAffinity) TableName() string {
	return "user_author_affinities"
}

// EngagementTotals is the summed rollup counters for a post over a
// query window. Computed, never persisted.
type EngagementTotals struct {
	PostID    string `json:"post_id"`
	Views     int64  `json:"views"`
	Likes     int64  `json:"likes"`
	Comments  int64  `json:"comments"`
	Shares    int64  `json:"shares"`
	Exposures int64  `json:"exposures"`
}

// AggregationReport summarizes one micro-batch.
type AggregationReport struct {
	Events      int `json:"events"`
	KeysApplied int `json:"keys_applied"`
	KeysFailed  int `json:"keys_failed"`
}

// ExpiredCounts reports one retention sweep.
type ExpiredCounts struct {
	Events     int64 `json:"events"`
	Rollups    int64 `json:"rollups"`
	Affinities int64 `json:"affinities"`
}
