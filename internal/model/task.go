package model

import "time"

// Task types. Anything outside the known care actions is TypeOther.
const (
	TypeWater = "Water"
	TypeLight = "Light"
	TypePrune = "Prune"
	TypeOther = "Other"
)

// Task is a single care action for a plant, due at a point in time.
// IntervalDays nil means one-shot. A completed task is immutable history:
// completion creates a successor task instead of moving the due date.
type Task struct {
	ID           uint `gorm:"primaryKey"`
	PlantID      uint `gorm:"index"`
	Type         string
	Title        string
	DueAt        time.Time
	IntervalDays *int
	Completed    bool `gorm:"default:false"`
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Recurring reports whether completing the task should chain a successor.
func (t *Task) Recurring() bool {
	return t.IntervalDays != nil && *t.IntervalDays > 0
}
