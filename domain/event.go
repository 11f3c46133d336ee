package domain

import (
	"time"
)

// CREATE TABLE public.interaction_events (
//     event_id        TEXT PRIMARY KEY,
//     event_time      TIMESTAMPTZ NOT NULL,
//     partition_day   DATE NOT NULL,
//     user_id         TEXT NOT NULL,
//     post_id         TEXT NOT NULL,
//     author_id       TEXT,
//     action          TEXT NOT NULL,
//     dwell_ms        BIGINT DEFAULT 0
// );
// CREATE INDEX idx_interaction_events_partition_day ON interaction_events (partition_day);

const (
	ActionImpression = "impression"
	ActionView       = "view"
	ActionLike       = "like"
	ActionComment    = "comment"
	ActionShare      = "share"
)

// InteractionEvent is one row of the append-only event log. Rows are
// never updated; the retention sweeper removes whole partition days.
type InteractionEvent struct {
	EventID      string    `gorm:"column:event_id;primaryKey" json:"event_id"`
	EventTime    time.Time `gorm:"column:event_time;not null" json:"event_time"`
	PartitionDay time.Time `gorm:"column:partition_day;not null;index" json:"partition_day"`
	UserID       string    `gorm:"column:user_id;not null" json:"user_id"`
	PostID       string    `gorm:"column:post_id;not null" json:"post_id"`
	AuthorID     string    `gorm:"column:author_id" json:"author_id"`
	Action       string    `gorm:"column:action;not null" json:"action"`
	DwellMs      int64     `gorm:"column:dwell_ms;default:0" json:"dwell_ms"`
}

func (InteractionEvent) TableName() string {
	return "interaction_events"
}

func ValidAction(action string) bool {
	switch action {
	case ActionImpression, ActionView, ActionLike, ActionComment, ActionShare:
		return true
	}
	return false
}
