package postgres

import (
	"context"
	"fmt"

	"novafeed/business/replicate"
	"novafeed/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReplicaRepository struct {
	DB *gorm.DB
}

func NewReplicaRepository(db *gorm.DB) *ReplicaRepository {
	return &ReplicaRepository{DB: db}
}

// ApplyIfNewer maps the record onto its typed replica table and
// performs the version-guarded upsert in a single statement:
// INSERT ... ON CONFLICT DO UPDATE ... WHERE version < excluded.version.
// Zero rows affected on an existing entity means the record was stale.
func (r *ReplicaRepository) ApplyIfNewer(ctx context.Context, rec domain.CDCRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}

	switch rec.EntityType {
	case domain.EntityPost:
		row := domain.PostReplica{
			PostID:    rec.EntityID,
			AuthorID:  replicate.FieldString(rec.Fields, "author_id"),
			CreatedAt: replicate.FieldTime(rec.Fields, "created_at"),
			Version:   rec.Version,
			Deleted:   rec.Deleted,
		}
		return r.upsert(ctx, "post_replicas",
			[]clause.Column{{Name: "post_id"}},
			map[string]interface{}{
				"author_id":  gorm.Expr("excluded.author_id"),
				"created_at": gorm.Expr("excluded.created_at"),
				"version":    gorm.Expr("excluded.version"),
				"deleted":    gorm.Expr("excluded.deleted"),
			},
			&row,
		)

	case domain.EntityFollow:
		row := domain.FollowReplica{
			FollowerID: replicate.FieldString(rec.Fields, "follower_id"),
			FolloweeID: replicate.FieldString(rec.Fields, "followee_id"),
			Version:    rec.Version,
			Deleted:    rec.Deleted,
		}
		return r.upsert(ctx, "follow_replicas",
			[]clause.Column{{Name: "follower_id"}, {Name: "followee_id"}},
			map[string]interface{}{
				"version": gorm.Expr("excluded.version"),
				"deleted": gorm.Expr("excluded.deleted"),
			},
			&row,
		)

	case domain.EntityLike:
		row := domain.LikeReplica{
			PostID:  replicate.FieldString(rec.Fields, "post_id"),
			UserID:  replicate.FieldString(rec.Fields, "user_id"),
			Version: rec.Version,
			Deleted: rec.Deleted,
		}
		return r.upsert(ctx, "like_replicas",
			[]clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			map[string]interface{}{
				"version": gorm.Expr("excluded.version"),
				"deleted": gorm.Expr("excluded.deleted"),
			},
			&row,
		)

	case domain.EntityComment:
		row := domain.CommentReplica{
			CommentID: rec.EntityID,
			PostID:    replicate.FieldString(rec.Fields, "post_id"),
			UserID:    replicate.FieldString(rec.Fields, "user_id"),
			Version:   rec.Version,
			Deleted:   rec.Deleted,
		}
		return r.upsert(ctx, "comment_replicas",
			[]clause.Column{{Name: "comment_id"}},
			map[string]interface{}{
				"post_id": gorm.Expr("excluded.post_id"),
				"user_id": gorm.Expr("excluded.user_id"),
				"version": gorm.Expr("excluded.version"),
				"deleted": gorm.Expr("excluded.deleted"),
			},
			&row,
		)
	}

	return false, fmt.Errorf("unknown entity_type %q", rec.EntityType)
}

func (r *ReplicaRepository) upsert(
	ctx context.Context,
	table string,
	conflictColumns []clause.Column,
	assignments map[string]interface{},
	row interface{},
) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   conflictColumns,
			DoUpdates: clause.Assignments(assignments),
			Where: clause.Where{
				Exprs: []clause.Expression{
					gorm.Expr(table + ".version < excluded.version"),
				},
			},
		},
	).Create(row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to upsert %s: %w", table, res.Error)
	}

	return res.RowsAffected > 0, nil
}
