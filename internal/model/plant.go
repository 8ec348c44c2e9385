package model

import "time"

// Plant is a houseplant tracked by a user. Care metadata comes either from the
// catalog lookup or from manual entry and is informational only; the watering
// benchmark is what task generation derives its interval from.
type Plant struct {
	ID              uint `gorm:"primaryKey"`
	UserID          uint `gorm:"index"`
	Name            string
	ScientificNames []string `gorm:"serializer:json"`
	ImageURL        string
	Watering        string
	BenchmarkValue  string   // e.g. "7" or "7-10"
	BenchmarkUnit   string   // e.g. "days"
	Sunlight        []string `gorm:"serializer:json"`
	Description     string
	CatalogID       *int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Tasks           []Task `gorm:"foreignKey:PlantID"`
}
