package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"plant-care-bot/internal/model"
)

func TestScheduleForTaskMinimumLead(t *testing.T) {
	env := newTestEnv(t)

	plant := &model.Plant{ID: 1, UserID: env.user.ID, Name: "Aloe"}
	// Trigger lands 30 seconds after "now": below the one-minute lead.
	now := time.Date(2026, 3, 10, 17, 59, 30, 0, time.UTC)
	task := &model.Task{ID: 1, PlantID: plant.ID, DueAt: now}

	env.fake.CancelAll()
	if _, ok := env.reminders.ScheduleForTask(task, plant, env.user, now); ok {
		t.Error("scheduled an alert under the minimum lead time")
	}
	if got := len(env.fake.ListScheduled()); got != 0 {
		t.Errorf("%d alerts scheduled, want 0", got)
	}
}

func TestScheduleForTaskSkipsWhenNotificationsDisabled(t *testing.T) {
	env := newTestEnv(t)

	user := *env.user
	user.NotificationsEnabled = false
	plant := &model.Plant{ID: 1, UserID: user.ID, Name: "Aloe"}
	task := &model.Task{ID: 1, PlantID: plant.ID, DueAt: env.now.AddDate(0, 0, 3)}

	if _, ok := env.reminders.ScheduleForTask(task, plant, &user, env.now); ok {
		t.Error("scheduled an alert with notifications disabled")
	}
	if got := len(env.fake.ListScheduled()); got != 0 {
		t.Errorf("%d alerts scheduled, want 0", got)
	}
}

func TestScheduleForTaskKeepsSingleAlert(t *testing.T) {
	env := newTestEnv(t)

	plant := &model.Plant{ID: 1, UserID: env.user.ID, Name: "Aloe"}
	task := &model.Task{ID: 1, PlantID: plant.ID, DueAt: env.now.AddDate(0, 0, 3)}

	if _, ok := env.reminders.ScheduleForTask(task, plant, env.user, env.now); !ok {
		t.Fatal("first schedule failed")
	}
	if _, ok := env.reminders.ScheduleForTask(task, plant, env.user, env.now); !ok {
		t.Fatal("second schedule failed")
	}

	count := 0
	for _, entry := range env.fake.ListScheduled() {
		if entry.Alert.TaskID == task.ID {
			count++
		}
	}
	if count != 1 {
		t.Errorf("%d alerts for one task, want 1", count)
	}
}

func TestScheduleForTaskNormalizesTrigger(t *testing.T) {
	env := newTestEnv(t)

	plant := &model.Plant{ID: 1, UserID: env.user.ID, Name: "Aloe"}
	due := time.Date(2026, 3, 14, 9, 13, 7, 0, time.UTC)
	task := &model.Task{ID: 1, PlantID: plant.ID, DueAt: due}

	if _, ok := env.reminders.ScheduleForTask(task, plant, env.user, env.now); !ok {
		t.Fatal("schedule failed")
	}

	entries := env.fake.ListScheduled()
	if len(entries) != 1 {
		t.Fatalf("%d alerts, want 1", len(entries))
	}
	want := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	if !entries[0].Trigger.Equal(want) {
		t.Errorf("trigger %v, want %v", entries[0].Trigger, want)
	}
}

func TestCancelForPlantFiltersByPayload(t *testing.T) {
	env := newTestEnv(t)

	aloe := &model.Plant{ID: 1, UserID: env.user.ID, Name: "Aloe"}
	ficus := &model.Plant{ID: 2, UserID: env.user.ID, Name: "Ficus"}
	env.reminders.ScheduleForTask(&model.Task{ID: 1, PlantID: 1, DueAt: env.now.AddDate(0, 0, 3)}, aloe, env.user, env.now)
	env.reminders.ScheduleForTask(&model.Task{ID: 2, PlantID: 1, DueAt: env.now.AddDate(0, 0, 10)}, aloe, env.user, env.now)
	env.reminders.ScheduleForTask(&model.Task{ID: 3, PlantID: 2, DueAt: env.now.AddDate(0, 0, 5)}, ficus, env.user, env.now)

	env.reminders.CancelForPlant(1)

	if got := env.fake.countForPlant(1); got != 0 {
		t.Errorf("%d alerts remain for plant 1, want 0", got)
	}
	if got := env.fake.countForPlant(2); got != 1 {
		t.Errorf("%d alerts remain for plant 2, want 1", got)
	}
}

func TestRescheduleAllIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addPlant(t, "Aloe Vera", "7")
	env.addPlant(t, "Ficus", "10")

	first, err := env.reminders.RescheduleAll(ctx, env.now)
	if err != nil {
		t.Fatalf("first reschedule: %v", err)
	}
	firstSet := scheduledSet(env.fake)

	second, err := env.reminders.RescheduleAll(ctx, env.now)
	if err != nil {
		t.Fatalf("second reschedule: %v", err)
	}
	secondSet := scheduledSet(env.fake)

	if first != second {
		t.Errorf("reschedule counts differ: %d vs %d", first, second)
	}
	if len(firstSet) != len(secondSet) {
		t.Fatalf("scheduled sets differ in size: %d vs %d", len(firstSet), len(secondSet))
	}
	for i := range firstSet {
		if firstSet[i] != secondSet[i] {
			t.Errorf("scheduled set differs at %d: %v vs %v", i, firstSet[i], secondSet[i])
		}
	}
}

func TestRescheduleAllSkipsCompletedTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plant := env.addPlant(t, "Aloe Vera", "7")
	tasks, err := env.tasks.ListPendingByPlant(ctx, plant.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	completedID := tasks[0].ID
	if _, _, err := env.taskSvc.Complete(ctx, env.user, completedID, env.now); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := env.reminders.RescheduleAll(ctx, env.now); err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	for _, entry := range env.fake.ListScheduled() {
		if entry.Alert.TaskID == completedID {
			t.Errorf("completed task %d has a live alert after reconciliation", completedID)
		}
	}
}

type schedKey struct {
	taskID  uint
	trigger time.Time
}

func scheduledSet(f *fakeScheduler) []schedKey {
	entries := f.ListScheduled()
	keys := make([]schedKey, len(entries))
	for i, entry := range entries {
		keys[i] = schedKey{taskID: entry.Alert.TaskID, trigger: entry.Trigger}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].taskID != keys[j].taskID {
			return keys[i].taskID < keys[j].taskID
		}
		return keys[i].trigger.Before(keys[j].trigger)
	})
	return keys
}
