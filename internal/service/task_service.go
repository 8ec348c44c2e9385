package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"plant-care-bot/internal/model"
	"plant-care-bot/internal/repository"
)

// TaskInput represents data required to create a manual task.
type TaskInput struct {
	PlantID      uint
	Type         string
	Title        string
	DueAt        time.Time
	IntervalDays *int
}

// TaskService owns task completion with successor chaining, manual task CRUD,
// and the derived task views.
type TaskService struct {
	taskRepo       *repository.TaskRepository
	plantRepo      *repository.PlantRepository
	reminders      *ReminderService
	upcomingWindow int
	now            func() time.Time
}

func NewTaskService(taskRepo *repository.TaskRepository, plantRepo *repository.PlantRepository, reminders *ReminderService, upcomingWindow int) *TaskService {
	return &TaskService{
		taskRepo:       taskRepo,
		plantRepo:      plantRepo,
		reminders:      reminders,
		upcomingWindow: upcomingWindow,
		now:            time.Now,
	}
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
		}
		return nil, err
	}
	// Ownership check: the task must belong to one of the user's plants.
	if _, err := s.plantRepo.FindByID(ctx, user.ID, task.PlantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
		}
		return nil, err
	}
	return task, nil
}

// Complete marks a task done and, for interval-bearing tasks, creates exactly
// one successor. The successor anchors to the latest due date among the
// plant's other pending same-type tasks; with none left it anchors to the
// completed task's own due date. Anchoring to due dates rather than "now"
// keeps the chain spaced by the interval even when tasks are completed late
// or out of order. Returns the completed task and the successor (nil for
// one-shot tasks).
func (s *TaskService) Complete(ctx context.Context, user *model.User, taskID uint, completedAt time.Time) (*model.Task, *model.Task, error) {
	task, err := s.GetTask(ctx, user, taskID)
	if err != nil {
		return nil, nil, err
	}
	if task.Completed {
		return nil, nil, fmt.Errorf("task %d is already completed: %w", taskID, ErrValidation)
	}

	if err := s.taskRepo.MarkCompleted(ctx, task, completedAt); err != nil {
		return nil, nil, err
	}
	s.reminders.CancelForTask(task.ID)
	log.Printf("[info] task completed id=%d plant=%d", task.ID, task.PlantID)

	if !task.Recurring() {
		return task, nil, nil
	}

	pending, err := s.taskRepo.ListPendingByPlant(ctx, task.PlantID)
	if err != nil {
		// The completion is durable; the missing successor is repaired by the
		// next reconciliation pass.
		log.Printf("list pending for chain of task %d: %v", task.ID, err)
		return task, nil, nil
	}

	anchor := task.DueAt
	found := false
	for _, p := range pending {
		if p.ID == task.ID || p.Type != task.Type {
			continue
		}
		if !found || p.DueAt.After(anchor) {
			anchor = p.DueAt
			found = true
		}
	}

	interval := *task.IntervalDays
	successor := &model.Task{
		PlantID:      task.PlantID,
		Type:         task.Type,
		Title:        task.Title,
		DueAt:        anchor.Add(time.Duration(interval) * 24 * time.Hour),
		IntervalDays: task.IntervalDays,
	}
	if err := s.taskRepo.Create(ctx, successor); err != nil {
		log.Printf("create successor for task %d: %v", task.ID, err)
		return task, nil, nil
	}
	log.Printf("[info] successor task id=%d plant=%d due=%s", successor.ID, successor.PlantID, successor.DueAt.Format("2006-01-02"))

	if plant, perr := s.plantRepo.FindByID(ctx, user.ID, task.PlantID); perr == nil {
		s.reminders.ScheduleForTask(successor, plant, user, s.now())
	}

	return task, successor, nil
}

// Add creates a manual task (one-shot unless IntervalDays is set) and
// schedules its reminder.
func (s *TaskService) Add(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("task title is required: %w", ErrValidation)
	}
	plant, err := s.plantRepo.FindByID(ctx, user.ID, input.PlantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plant %d: %w", input.PlantID, ErrNotFound)
		}
		return nil, err
	}

	taskType := input.Type
	switch taskType {
	case model.TypeWater, model.TypeLight, model.TypePrune:
	default:
		taskType = model.TypeOther
	}

	task := &model.Task{
		PlantID:      plant.ID,
		Type:         taskType,
		Title:        input.Title,
		DueAt:        input.DueAt,
		IntervalDays: input.IntervalDays,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}

	s.reminders.ScheduleForTask(task, plant, user, s.now())
	return task, nil
}

// Update is a permissive patch passthrough used by the presentation layer.
// A changed due date gets its reminder refreshed.
func (s *TaskService) Update(ctx context.Context, user *model.User, taskID uint, updates map[string]interface{}) error {
	task, err := s.GetTask(ctx, user, taskID)
	if err != nil {
		return err
	}
	if err := s.taskRepo.Update(ctx, taskID, updates); err != nil {
		return err
	}
	if _, ok := updates["due_at"]; !ok {
		return nil
	}

	fresh, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		log.Printf("[warn] task %d updated but reload failed, reminder left stale: %v", taskID, err)
		return nil
	}
	s.reminders.CancelForTask(taskID)
	if plant, perr := s.plantRepo.FindByID(ctx, user.ID, task.PlantID); perr == nil {
		s.reminders.ScheduleForTask(fresh, plant, user, s.now())
	}
	return nil
}

// DueToday returns the user's tasks due on the current calendar day.
func (s *TaskService) DueToday(ctx context.Context, user *model.User, now time.Time) ([]model.Task, error) {
	tasks, err := s.taskRepo.ListPendingForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return TasksDueToday(tasks, now), nil
}

// Upcoming returns the user's tasks due within the configured window.
func (s *TaskService) Upcoming(ctx context.Context, user *model.User, now time.Time) ([]model.Task, error) {
	tasks, err := s.taskRepo.ListPendingForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return UpcomingTasks(tasks, now, s.upcomingWindow), nil
}

// Overdue returns the user's tasks due before start of today.
func (s *TaskService) Overdue(ctx context.Context, user *model.User, now time.Time) ([]model.Task, error) {
	tasks, err := s.taskRepo.ListPendingForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return OverdueTasks(tasks, now), nil
}

// ForPlant returns a plant's pending tasks.
func (s *TaskService) ForPlant(ctx context.Context, user *model.User, plantID uint) ([]model.Task, error) {
	if _, err := s.plantRepo.FindByID(ctx, user.ID, plantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plant %d: %w", plantID, ErrNotFound)
		}
		return nil, err
	}
	return s.taskRepo.ListPendingByPlant(ctx, plantID)
}
