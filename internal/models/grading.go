package models

import (
	"time"

	"gorm.io/datatypes"
)

// GradingBatch persists the outcome of one batch grading request for audit.
type GradingBatch struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	StudentID  int            `gorm:"index" json:"student_id"`
	TotalScore int            `json:"total_score"`
	Questions  datatypes.JSON `gorm:"type:json" json:"questions"`
	CreatedAt  time.Time      `json:"created_at"`
}
