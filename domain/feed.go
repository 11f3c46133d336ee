package domain

import (
	"time"
)

const (
	SourceSocial   = "social"
	SourceTrending = "trending"
	SourceAffinity = "affinity"
)

// RankedCandidate is one post considered for a feed page. Computed per
// request, never persisted. After cross-source dedup, Source names the
// source whose instance won.
type RankedCandidate struct {
	PostID          string    `json:"post_id"`
	AuthorID        string    `json:"author_id,omitempty"`
	Source          string    `json:"source"`
	SourcePriority  float64   `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	FreshnessScore  float64   `json:"freshness_score"`
	EngagementScore float64   `json:"engagement_score"`
	CombinedScore   float64   `json:"combined_score"`
}

// FeedPage is one ranked page of a user's feed. Partial is set when at
// least one candidate source failed and the page was served from the
// remaining ones.
type FeedPage struct {
	Items      []RankedCandidate `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
	Partial    bool              `json:"partial"`
}
