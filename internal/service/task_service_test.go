package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"plant-care-bot/internal/model"
)

func TestCompleteAnchorsToLatestPendingTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plant := env.addPlant(t, "Aloe Vera", "7")
	tasks, err := env.tasks.ListPendingByPlant(ctx, plant.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	first, last := tasks[0], tasks[len(tasks)-1]

	completed, successor, err := env.taskSvc.Complete(ctx, env.user, first.ID, env.now)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !completed.Completed || completed.CompletedAt == nil {
		t.Error("task not marked completed")
	}
	if successor == nil {
		t.Fatal("no successor created")
	}

	// Chain anchors to the latest pending task, not to the completed one.
	want := last.DueAt.Add(7 * 24 * time.Hour)
	if !successor.DueAt.Equal(want) {
		t.Errorf("successor due %v, want %v (latest pending + interval)", successor.DueAt, want)
	}

	all, err := env.tasks.ListByPlant(ctx, plant.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(all) != 14 {
		t.Errorf("got %d tasks after completion, want 14 (13 original + 1 successor)", len(all))
	}
}

func TestCompleteOverdueAnchorsToDueDateNotNow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plant := env.addPlant(t, "Basil", "7")

	// A pruning task due yesterday; no other pending Prune task exists, so the
	// chain must anchor to its own (overdue) due date, not to today.
	interval := 3
	yesterday := env.now.Add(-16 * time.Hour) // 2026-03-09 18:00
	task, err := env.taskSvc.Add(ctx, env.user, TaskInput{
		PlantID:      plant.ID,
		Type:         model.TypePrune,
		Title:        "Подрезать базилик",
		DueAt:        yesterday,
		IntervalDays: &interval,
	})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	_, successor, err := env.taskSvc.Complete(ctx, env.user, task.ID, env.now)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if successor == nil {
		t.Fatal("no successor created")
	}

	want := yesterday.Add(3 * 24 * time.Hour)
	if !successor.DueAt.Equal(want) {
		t.Errorf("successor due %v, want %v (own due date + interval)", successor.DueAt, want)
	}
	if successor.Type != model.TypePrune {
		t.Errorf("successor type %q, want %q", successor.Type, model.TypePrune)
	}
}

func TestCompleteOneShotTaskHasNoSuccessor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plant := env.addPlant(t, "Fern", "7")
	task, err := env.taskSvc.Add(ctx, env.user, TaskInput{
		PlantID: plant.ID,
		Type:    model.TypeOther,
		Title:   "Пересадить",
		DueAt:   env.now.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	_, successor, err := env.taskSvc.Complete(ctx, env.user, task.ID, env.now)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if successor != nil {
		t.Errorf("one-shot task produced successor %d", successor.ID)
	}
}

func TestCompleteUnknownTask(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.taskSvc.Complete(context.Background(), env.user, 999, env.now)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got error %v, want ErrNotFound", err)
	}
}

func TestCompleteTwiceRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plant := env.addPlant(t, "Ivy", "7")
	tasks, err := env.tasks.ListPendingByPlant(ctx, plant.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}

	if _, _, err := env.taskSvc.Complete(ctx, env.user, tasks[0].ID, env.now); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	before, _ := env.tasks.ListByPlant(ctx, plant.ID)

	_, _, err = env.taskSvc.Complete(ctx, env.user, tasks[0].ID, env.now)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("got error %v, want ErrValidation", err)
	}

	after, _ := env.tasks.ListByPlant(ctx, plant.ID)
	if len(after) != len(before) {
		t.Errorf("second complete changed task count: %d -> %d", len(before), len(after))
	}
}

func TestCompleteCancelsTaskAlert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plant := env.addPlant(t, "Palm", "7")
	tasks, err := env.tasks.ListPendingByPlant(ctx, plant.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	target := tasks[0].ID

	if _, _, err := env.taskSvc.Complete(ctx, env.user, target, env.now); err != nil {
		t.Fatalf("complete: %v", err)
	}

	for _, entry := range env.fake.ListScheduled() {
		if entry.Alert.TaskID == target {
			t.Errorf("completed task %d still has a live alert", target)
		}
	}
}

func TestUpdateTaskDueDateRefreshesAlert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plant := env.addPlant(t, "Cactus", "7")
	tasks, err := env.tasks.ListPendingByPlant(ctx, plant.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	target := tasks[0]

	newDue := env.now.AddDate(0, 0, 20)
	err = env.taskSvc.Update(ctx, env.user, target.ID, map[string]interface{}{"due_at": newDue})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}

	var triggers []time.Time
	for _, entry := range env.fake.ListScheduled() {
		if entry.Alert.TaskID == target.ID {
			triggers = append(triggers, entry.Trigger)
		}
	}
	if len(triggers) != 1 {
		t.Fatalf("%d alerts for moved task, want 1", len(triggers))
	}
	want := time.Date(2026, 3, 30, 18, 0, 0, 0, time.UTC)
	if !triggers[0].Equal(want) {
		t.Errorf("alert trigger %v, want %v", triggers[0], want)
	}
}

func TestTaskViewsThroughService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plant := env.addPlant(t, "Rose", "7")

	interval := 7
	overdueTask, err := env.taskSvc.Add(ctx, env.user, TaskInput{
		PlantID:      plant.ID,
		Type:         model.TypeWater,
		Title:        "Полить розу",
		DueAt:        env.now.Add(-72 * time.Hour),
		IntervalDays: &interval,
	})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	overdue, err := env.taskSvc.Overdue(ctx, env.user, env.now)
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != overdueTask.ID {
		t.Errorf("overdue = %v, want [%d]", taskIDs(overdue), overdueTask.ID)
	}

	upcoming, err := env.taskSvc.Upcoming(ctx, env.user, env.now)
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	// Window is 3 days, series interval 7: only the first watering qualifies.
	if len(upcoming) != 1 {
		t.Errorf("got %d upcoming tasks, want 1", len(upcoming))
	}

	forPlant, err := env.taskSvc.ForPlant(ctx, env.user, plant.ID)
	if err != nil {
		t.Fatalf("for plant: %v", err)
	}
	if len(forPlant) != 14 {
		t.Errorf("got %d tasks for plant, want 14", len(forPlant))
	}
}
