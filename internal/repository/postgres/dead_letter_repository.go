package postgres

import (
	"context"
	"fmt"

	"novafeed/domain"

	"gorm.io/gorm"
)

type DeadLetterRepository struct {
	DB *gorm.DB
}

func NewDeadLetterRepository(db *gorm.DB) *DeadLetterRepository {
	return &DeadLetterRepository{DB: db}
}

func (r *DeadLetterRepository) Save(ctx context.Context, record domain.CDCDeadLetter) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to save cdc dead letter: %w", err)
	}

	return nil
}
