package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EntityPost    = "post"
	EntityFollow  = "follow"
	EntityLike    = "like"
	EntityComment = "comment"
)

// CDCRecord is one change record from the primary store's change feed.
// It is consumed once, applied to the replica, then discarded.
type CDCRecord struct {
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Version    int64             `json:"version"`
	Fields     datatypes.JSONMap `json:"fields"`
	Deleted    bool              `json:"deleted"`
}

func ValidEntityType(entityType string) bool {
	switch entityType {
	case EntityPost, EntityFollow, EntityLike, EntityComment:
		return true
	}
	return false
}

type ApplyOutcome int

const (
	OutcomeApplied ApplyOutcome = iota
	OutcomeSkippedStale
)

func (o ApplyOutcome) String() string {
	if o == OutcomeSkippedStale {
		return "skipped_stale"
	}
	return "applied"
}

// Replica rows keep the latest applied source version per entity.
// Invariant: version is monotonically non-decreasing; a record with
// version <= the stored one is a no-op. Deletes are soft so rows stay
// queryable for audit; candidate reads filter on deleted = false.

type PostReplica struct {
	PostID    string    `gorm:"column:post_id;primaryKey"`
	AuthorID  string    `gorm:"column:author_id;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
	Version   int64     `gorm:"column:version;not null"`
	Deleted   bool      `gorm:"column:deleted;default:false"`
}

func (PostReplica) TableName() string {
	return "post_replicas"
}

type FollowReplica struct {
	FollowerID string `gorm:"column:follower_id;primaryKey"`
	FolloweeID string `gorm:"column:followee_id;primaryKey"`
	Version    int64  `gorm:"column:version;not null"`
	Deleted    bool   `gorm:"column:deleted;default:false"`
}

func (FollowReplica) TableName() string {
	return "follow_replicas"
}

type LikeReplica struct {
	PostID  string `gorm:"column:post_id;primaryKey"`
	UserID  string `gorm:"column:user_id;primaryKey"`
	Version int64  `gorm:"column:version;not null"`
	Deleted bool   `gorm:"column:deleted;default:false"`
}

func (LikeReplica) TableName() string {
	return "like_replicas"
}

type CommentReplica struct {
	CommentID string `gorm:"column:comment_id;primaryKey"`
	PostID    string `gorm:"column:post_id;not null;index"`
	UserID    string `gorm:"column:user_id;not null"`
	Version   int64  `gorm:"column:version;not null"`
	Deleted   bool   `gorm:"column:deleted;default:false"`
}

func (CommentReplica) TableName() string {
	return "comment_replicas"
}

// CDCDeadLetter holds records that could not be applied after bounded
// retries. Kept for manual reconciliation.
type CDCDeadLetter struct {
	ID         uint              `gorm:"primaryKey"`
	EntityType string            `gorm:"column:entity_type;not null"`
	EntityID   string            `gorm:"column:entity_id;not null"`
	Version    int64             `gorm:"column:version;not null"`
	Payload    datatypes.JSONMap `gorm:"column:payload;type:jsonb"`
	LastError  string            `gorm:"column:last_error;type:text"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (CDCDeadLetter) TableName() string {
	return "cdc_dead_letters"
}
