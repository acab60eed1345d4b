package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/gradelab/grader-go-api/internal/models"
)

// GradingHistoryRepository defines persistence operations for graded batches.
type GradingHistoryRepository interface {
	Create(ctx context.Context, batch *models.GradingBatch) error
	ListByStudent(ctx context.Context, studentID int) ([]models.GradingBatch, error)
}

type gradingHistoryRepository struct {
	db *gorm.DB
}

// NewGradingHistoryRepository instantiates the repository.
func NewGradingHistoryRepository(db *gorm.DB) GradingHistoryRepository {
	return &gradingHistoryRepository{db: db}
}

func (r *gradingHistoryRepository) Create(ctx context.Context, batch *models.GradingBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *gradingHistoryRepository) ListByStudent(ctx context.Context, studentID int) ([]models.GradingBatch, error) {
	var batches []models.GradingBatch
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}
