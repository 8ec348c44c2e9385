package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"plant-care-bot/internal/config"
	"plant-care-bot/internal/model"
	"plant-care-bot/internal/repository"
)

// PlantInput represents data required to register a plant, either picked from
// the catalog or entered manually.
type PlantInput struct {
	Name            string
	ScientificNames []string
	ImageURL        string
	Watering        string
	BenchmarkValue  string
	BenchmarkUnit   string
	Sunlight        []string
	Description     string
	CatalogID       *int
}

// PlantService owns the plant lifecycle: registration with the initial
// watering task series, updates, and cascade deletion.
type PlantService struct {
	plantRepo   *repository.PlantRepository
	taskRepo    *repository.TaskRepository
	reminders   *ReminderService
	horizonDays int
	at          config.ReminderTime
	now         func() time.Time
}

func NewPlantService(plantRepo *repository.PlantRepository, taskRepo *repository.TaskRepository, reminders *ReminderService, horizonDays int, at config.ReminderTime) *PlantService {
	return &PlantService{
		plantRepo:   plantRepo,
		taskRepo:    taskRepo,
		reminders:   reminders,
		horizonDays: horizonDays,
		at:          at,
		now:         time.Now,
	}
}

// AddPlant validates and persists a plant, then pre-generates its watering
// tasks over the horizon and schedules their reminders. Reminder failures do
// not fail the call.
func (s *PlantService) AddPlant(ctx context.Context, user *model.User, input PlantInput) (*model.Plant, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("plant name is required: %w", ErrValidation)
	}

	plant := model.Plant{
		UserID:          user.ID,
		Name:            name,
		ScientificNames: input.ScientificNames,
		ImageURL:        input.ImageURL,
		Watering:        input.Watering,
		BenchmarkValue:  input.BenchmarkValue,
		BenchmarkUnit:   input.BenchmarkUnit,
		Sunlight:        input.Sunlight,
		Description:     input.Description,
		CatalogID:       input.CatalogID,
	}
	if err := s.plantRepo.Create(ctx, &plant); err != nil {
		return nil, err
	}

	now := s.now()
	interval := ParseInterval(input.BenchmarkValue)
	series := GenerateSeries(interval, s.horizonDays, now, s.at, now)

	tasks := make([]model.Task, len(series))
	for i, due := range series {
		tasks[i] = model.Task{
			PlantID:      plant.ID,
			Type:         model.TypeWater,
			Title:        fmt.Sprintf("Полить %s", name),
			DueAt:        due,
			IntervalDays: &interval,
		}
	}
	if err := s.taskRepo.CreateBatch(ctx, tasks); err != nil {
		return nil, err
	}

	log.Printf("[info] plant created id=%d user=%d interval=%dd tasks=%d", plant.ID, user.ID, interval, len(tasks))

	for i := range tasks {
		s.reminders.ScheduleForTask(&tasks[i], &plant, user, now)
	}

	return &plant, nil
}

func (s *PlantService) GetPlant(ctx context.Context, user *model.User, plantID uint) (*model.Plant, error) {
	plant, err := s.plantRepo.FindByID(ctx, user.ID, plantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plant %d: %w", plantID, ErrNotFound)
		}
		return nil, err
	}
	return plant, nil
}

func (s *PlantService) ListPlants(ctx context.Context, user *model.User) ([]model.Plant, error) {
	return s.plantRepo.ListByUser(ctx, user.ID)
}

// UpdatePlant applies a field patch. Care metadata changes do not rewrite the
// existing task chain; the next completion picks the interval up from the
// tasks themselves.
func (s *PlantService) UpdatePlant(ctx context.Context, user *model.User, plantID uint, updates map[string]interface{}) error {
	if _, err := s.GetPlant(ctx, user, plantID); err != nil {
		return err
	}
	return s.plantRepo.Update(ctx, plantID, updates)
}

// DeletePlant removes the plant with all of its tasks, then cancels the
// plant's scheduled reminders.
func (s *PlantService) DeletePlant(ctx context.Context, user *model.User, plantID uint) error {
	if err := s.plantRepo.Delete(ctx, user.ID, plantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("plant %d: %w", plantID, ErrNotFound)
		}
		return err
	}

	s.reminders.CancelForPlant(plantID)
	log.Printf("[info] plant deleted id=%d user=%d", plantID, user.ID)
	return nil
}
