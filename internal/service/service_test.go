package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"plant-care-bot/internal/config"
	"plant-care-bot/internal/model"
	"plant-care-bot/internal/notify"
	"plant-care-bot/internal/repository"
)

var dbSeq int64

// fakeScheduler records alerts instead of driving cron, so tests can inspect
// the scheduled set directly.
type fakeScheduler struct {
	mu      sync.Mutex
	nextID  notify.Handle
	entries map[notify.Handle]notify.Scheduled
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{entries: make(map[notify.Handle]notify.Scheduled)}
}

func (f *fakeScheduler) Schedule(alert notify.Alert, trigger time.Time) (notify.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.entries[f.nextID] = notify.Scheduled{Handle: f.nextID, Trigger: trigger, Alert: alert}
	return f.nextID, nil
}

func (f *fakeScheduler) Cancel(handle notify.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, handle)
}

func (f *fakeScheduler) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[notify.Handle]notify.Scheduled)
}

func (f *fakeScheduler) ListScheduled() []notify.Scheduled {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notify.Scheduled, 0, len(f.entries))
	for _, entry := range f.entries {
		out = append(out, entry)
	}
	return out
}

func (f *fakeScheduler) countForPlant(plantID uint) int {
	n := 0
	for _, entry := range f.ListScheduled() {
		if entry.Alert.PlantID == plantID {
			n++
		}
	}
	return n
}

type testEnv struct {
	users     *repository.UserRepository
	plants    *repository.PlantRepository
	tasks     *repository.TaskRepository
	fake      *fakeScheduler
	reminders *ReminderService
	plantSvc  *PlantService
	taskSvc   *TaskService
	user      *model.User
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := repository.NewDB(dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	plantRepo := repository.NewPlantRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	at := config.ReminderTime{Hour: 18}
	fake := newFakeScheduler()

	reminders := NewReminderService(taskRepo, plantRepo, userRepo, fake, at)
	plantSvc := NewPlantService(plantRepo, taskRepo, reminders, 90, at)
	plantSvc.now = func() time.Time { return now }
	taskSvc := NewTaskService(taskRepo, plantRepo, reminders, 3)
	taskSvc.now = func() time.Time { return now }

	user, err := userRepo.UpsertFromTelegram(context.Background(), 42, "Test", "", "test")
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}

	return &testEnv{
		users:     userRepo,
		plants:    plantRepo,
		tasks:     taskRepo,
		fake:      fake,
		reminders: reminders,
		plantSvc:  plantSvc,
		taskSvc:   taskSvc,
		user:      user,
		now:       now,
	}
}

func (e *testEnv) addPlant(t *testing.T, name, benchmark string) *model.Plant {
	t.Helper()
	plant, err := e.plantSvc.AddPlant(context.Background(), e.user, PlantInput{
		Name:           name,
		BenchmarkValue: benchmark,
		BenchmarkUnit:  "days",
	})
	if err != nil {
		t.Fatalf("add plant: %v", err)
	}
	return plant
}
