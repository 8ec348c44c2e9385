package service

import (
	"context"
	"log"
	"sync"
	"time"

	"plant-care-bot/internal/config"
	"plant-care-bot/internal/model"
	"plant-care-bot/internal/notify"
	"plant-care-bot/internal/repository"
)

// AlertScheduler is the platform reminder surface the reconciler drives.
// *notify.Scheduler satisfies it; tests substitute a fake.
type AlertScheduler interface {
	Schedule(alert notify.Alert, trigger time.Time) (notify.Handle, error)
	Cancel(handle notify.Handle)
	CancelAll()
	ListScheduled() []notify.Scheduled
}

// ReminderService keeps the scheduled alert set consistent with the pending
// task set. The task store is the source of truth; the alert set is a
// disposable projection that RescheduleAll can rebuild from scratch at any
// time, which is the recovery path for every partial failure in this package.
type ReminderService struct {
	taskRepo  *repository.TaskRepository
	plantRepo *repository.PlantRepository
	userRepo  *repository.UserRepository
	scheduler AlertScheduler
	at        config.ReminderTime

	mu     sync.Mutex
	byTask map[uint]notify.Handle
}

func NewReminderService(taskRepo *repository.TaskRepository, plantRepo *repository.PlantRepository, userRepo *repository.UserRepository, scheduler AlertScheduler, at config.ReminderTime) *ReminderService {
	return &ReminderService{
		taskRepo:  taskRepo,
		plantRepo: plantRepo,
		userRepo:  userRepo,
		scheduler: scheduler,
		at:        at,
		byTask:    make(map[uint]notify.Handle),
	}
}

// ScheduleForTask schedules the single alert for a pending task. Returns false
// without error when nothing was scheduled: notifications disabled, task
// completed, or the trigger under the minimum lead. None of these may fail the
// caller's mutation.
func (s *ReminderService) ScheduleForTask(task *model.Task, plant *model.Plant, user *model.User, now time.Time) (notify.Handle, bool) {
	if task == nil || plant == nil || user == nil {
		return 0, false
	}
	if task.Completed {
		return 0, false
	}
	if !user.NotificationsEnabled {
		log.Printf("[info] notifications disabled for user %d, skip task %d", user.ID, task.ID)
		return 0, false
	}

	trigger := NormalizeTrigger(task.DueAt, s.at)
	if !trigger.After(now.Add(minLeadTime)) {
		log.Printf("[info] trigger %s for task %d is too soon, skip", trigger.Format(time.RFC3339), task.ID)
		return 0, false
	}

	// One live alert per task: drop a stale one before scheduling.
	s.CancelForTask(task.ID)

	handle, err := s.scheduler.Schedule(notify.Alert{
		TaskID:    task.ID,
		PlantID:   plant.ID,
		PlantName: plant.Name,
		ChatID:    user.TelegramID,
	}, trigger)
	if err != nil {
		log.Printf("schedule alert for task %d: %v", task.ID, err)
		return 0, false
	}

	s.mu.Lock()
	s.byTask[task.ID] = handle
	s.mu.Unlock()
	return handle, true
}

// CancelForTask cancels a task's alert by its remembered handle, falling back
// to a payload scan for handles scheduled before this process learned of them.
func (s *ReminderService) CancelForTask(taskID uint) {
	s.mu.Lock()
	handle, ok := s.byTask[taskID]
	delete(s.byTask, taskID)
	s.mu.Unlock()

	if ok {
		s.scheduler.Cancel(handle)
		return
	}
	for _, entry := range s.scheduler.ListScheduled() {
		if entry.Alert.TaskID == taskID {
			s.scheduler.Cancel(entry.Handle)
		}
	}
}

// CancelForPlant cancels every alert whose payload carries the plant id.
func (s *ReminderService) CancelForPlant(plantID uint) {
	for _, entry := range s.scheduler.ListScheduled() {
		if entry.Alert.PlantID != plantID {
			continue
		}
		s.scheduler.Cancel(entry.Handle)
		s.mu.Lock()
		delete(s.byTask, entry.Alert.TaskID)
		s.mu.Unlock()
	}
}

// RescheduleAll cancels every scheduled alert and rebuilds the set from all
// pending tasks. Idempotent; intended to run at process start and on a timer
// to repair drift (lost platform state, crashes between completion and
// successor creation, prior scheduling bugs). Returns how many alerts were
// scheduled.
func (s *ReminderService) RescheduleAll(ctx context.Context, now time.Time) (int, error) {
	s.scheduler.CancelAll()
	s.mu.Lock()
	s.byTask = make(map[uint]notify.Handle)
	s.mu.Unlock()

	tasks, err := s.taskRepo.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	plants, err := s.plantRepo.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	plantByID := make(map[uint]*model.Plant, len(plants))
	for i := range plants {
		plantByID[plants[i].ID] = &plants[i]
	}
	userByID := make(map[uint]*model.User, len(users))
	for i := range users {
		userByID[users[i].ID] = &users[i]
	}

	scheduled := 0
	for i := range tasks {
		task := &tasks[i]
		plant, ok := plantByID[task.PlantID]
		if !ok {
			log.Printf("task %d references missing plant %d, skip", task.ID, task.PlantID)
			continue
		}
		user, ok := userByID[plant.UserID]
		if !ok {
			continue
		}
		if _, ok := s.ScheduleForTask(task, plant, user, now); ok {
			scheduled++
		}
	}

	log.Printf("[info] reconciled reminders: %d scheduled from %d pending tasks", scheduled, len(tasks))
	return scheduled, nil
}
