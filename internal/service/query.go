package service

import (
	"sort"
	"time"

	"plant-care-bot/internal/model"
)

// Derived views over a task slice. All exclude completed tasks and compare at
// day granularity: "now" is truncated to start of day so an 09:00 check and a
// 23:00 check agree on what counts as today.

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// UpcomingTasks returns pending tasks due between today and now+windowDays,
// ascending by due date.
func UpcomingTasks(tasks []model.Task, now time.Time, windowDays int) []model.Task {
	from := startOfDay(now)
	until := from.AddDate(0, 0, windowDays+1)

	var out []model.Task
	for _, task := range tasks {
		if task.Completed {
			continue
		}
		if !task.DueAt.Before(from) && task.DueAt.Before(until) {
			out = append(out, task)
		}
	}
	sortByDue(out)
	return out
}

// OverdueTasks returns pending tasks due strictly before start of today,
// ascending by due date.
func OverdueTasks(tasks []model.Task, now time.Time) []model.Task {
	today := startOfDay(now)

	var out []model.Task
	for _, task := range tasks {
		if task.Completed {
			continue
		}
		if task.DueAt.Before(today) {
			out = append(out, task)
		}
	}
	sortByDue(out)
	return out
}

// TasksDueToday returns pending tasks due on the same calendar day as now.
func TasksDueToday(tasks []model.Task, now time.Time) []model.Task {
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	var out []model.Task
	for _, task := range tasks {
		if task.Completed {
			continue
		}
		if !task.DueAt.Before(today) && task.DueAt.Before(tomorrow) {
			out = append(out, task)
		}
	}
	sortByDue(out)
	return out
}

// TasksForPlant returns a plant's pending tasks, ascending by due date.
func TasksForPlant(tasks []model.Task, plantID uint) []model.Task {
	var out []model.Task
	for _, task := range tasks {
		if task.Completed || task.PlantID != plantID {
			continue
		}
		out = append(out, task)
	}
	sortByDue(out)
	return out
}

func sortByDue(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].DueAt.Equal(tasks[j].DueAt) {
			return tasks[i].DueAt.Before(tasks[j].DueAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
