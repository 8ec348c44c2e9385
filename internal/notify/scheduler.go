package notify

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Alert is the payload carried by a scheduled reminder. The task id ties the
// alert back to its task; the plant id is what per-plant cancellation filters on.
type Alert struct {
	TaskID    uint
	PlantID   uint
	PlantName string
	ChatID    int64
}

// Handle identifies one scheduled alert. Opaque to callers.
type Handle = cron.EntryID

// Scheduled describes a currently scheduled alert.
type Scheduled struct {
	Handle  Handle
	Trigger time.Time
	Alert   Alert
}

// Sender delivers a fired alert to the user.
type Sender interface {
	SendAlert(alert Alert) error
}

// Scheduler wraps cron-based jobs and keeps a table of one-shot alerts.
// It is the process-local stand-in for a platform notification service:
// state lives only in memory, so the reconciler rebuilds it on every start.
type Scheduler struct {
	cron   *cron.Cron
	mu     sync.Mutex
	sender Sender
	alerts map[Handle]Scheduled
}

func NewScheduler(loc *time.Location) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		alerts: make(map[Handle]Scheduled),
	}
}

// SetSender wires the delivery channel. Must be called before Start.
func (s *Scheduler) SetSender(sender Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
}

// fireOnce triggers exactly once at the given instant.
type fireOnce struct {
	at time.Time
}

func (f fireOnce) Next(t time.Time) time.Time {
	if t.Before(f.at) {
		return f.at
	}
	return time.Time{}
}

// Schedule registers a one-shot alert. Triggers in the past are rejected,
// matching platform services that refuse already-elapsed notifications.
func (s *Scheduler) Schedule(alert Alert, trigger time.Time) (Handle, error) {
	if !trigger.After(time.Now()) {
		return 0, fmt.Errorf("trigger %s is in the past", trigger.Format(time.RFC3339))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id cron.EntryID
	id = s.cron.Schedule(fireOnce{at: trigger}, cron.FuncJob(func() {
		s.fire(id)
	}))
	s.alerts[id] = Scheduled{Handle: id, Trigger: trigger, Alert: alert}
	return id, nil
}

func (s *Scheduler) fire(id Handle) {
	s.mu.Lock()
	entry, ok := s.alerts[id]
	sender := s.sender
	delete(s.alerts, id)
	s.mu.Unlock()
	s.cron.Remove(id)

	if !ok {
		return
	}
	if sender == nil {
		log.Printf("alert %d fired with no sender configured", id)
		return
	}
	if err := sender.SendAlert(entry.Alert); err != nil {
		log.Printf("send alert for task %d: %v", entry.Alert.TaskID, err)
	}
}

// Cancel removes a scheduled alert. Unknown handles are ignored.
func (s *Scheduler) Cancel(id Handle) {
	s.mu.Lock()
	delete(s.alerts, id)
	s.mu.Unlock()
	s.cron.Remove(id)
}

// CancelAll drops every scheduled alert. Interval jobs are unaffected.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	handles := make([]Handle, 0, len(s.alerts))
	for id := range s.alerts {
		handles = append(handles, id)
	}
	s.alerts = make(map[Handle]Scheduled)
	s.mu.Unlock()

	for _, id := range handles {
		s.cron.Remove(id)
	}
}

// ListScheduled returns a snapshot of pending alerts.
func (s *Scheduler) ListScheduled() []Scheduled {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Scheduled, 0, len(s.alerts))
	for _, entry := range s.alerts {
		out = append(out, entry)
	}
	return out
}

// Every registers a periodic job every given duration.
func (s *Scheduler) Every(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return s.cron.AddFunc(spec, job)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
