package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"plant-care-bot/internal/model"
)

// PlantRepository handles CRUD for plants.
type PlantRepository struct {
	db *gorm.DB
}

func NewPlantRepository(db *gorm.DB) *PlantRepository {
	return &PlantRepository{db: db}
}

func (r *PlantRepository) Create(ctx context.Context, plant *model.Plant) error {
	if err := r.db.WithContext(ctx).Create(plant).Error; err != nil {
		return fmt.Errorf("create plant: %w", err)
	}
	return nil
}

func (r *PlantRepository) FindByID(ctx context.Context, userID, plantID uint) (*model.Plant, error) {
	var plant model.Plant
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, plantID).First(&plant).Error; err != nil {
		return nil, err
	}
	return &plant, nil
}

func (r *PlantRepository) ListByUser(ctx context.Context, userID uint) ([]model.Plant, error) {
	var plants []model.Plant
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&plants).Error; err != nil {
		return nil, err
	}
	return plants, nil
}

func (r *PlantRepository) ListAll(ctx context.Context) ([]model.Plant, error) {
	var plants []model.Plant
	if err := r.db.WithContext(ctx).Find(&plants).Error; err != nil {
		return nil, err
	}
	return plants, nil
}

func (r *PlantRepository) Update(ctx context.Context, plantID uint, updates map[string]interface{}) error {
	if err := r.db.WithContext(ctx).Model(&model.Plant{}).Where("id = ?", plantID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("update plant: %w", err)
	}
	return nil
}

// Delete removes a plant and all of its tasks in one transaction.
func (r *PlantRepository) Delete(ctx context.Context, userID, plantID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ? AND id = ?", userID, plantID).Delete(&model.Plant{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("plant_id = ?", plantID).Delete(&model.Task{}).Error
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return err
		}
		return fmt.Errorf("delete plant: %w", err)
	}
	return nil
}
