package services

import (
	"testing"
	"time"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/infrastructure/config"
	"github.com/taskmaster/agenda/internal/ports"
)

func TestReminderFiresOnceAtLeadTime(t *testing.T) {
	h := newHarness(t)
	h.seedState(t, func(st *state.State) {
		st.Tasks = []entities.Task{
			{ID: "alarm", Title: "Call", Date: "2024-03-10", Time: "09:15", Alarm: true},
			{ID: "silent", Title: "Read", Date: "2024-03-10", Time: "09:15"},
			{ID: "done", Title: "Done", Date: "2024-03-10", Time: "09:15", Alarm: true, Status: entities.TaskStatusDone},
		}
		st.Exams = []entities.Exam{{ID: "exam", Type: "Dentist", Date: "2024-03-10", Time: "09:15"}}
	})
	svc := NewReminderService(h.store, h.pub, h.clock, time.UTC, config.RemindersConfig{LeadTime: 15 * time.Minute}, h.log)

	fired := svc.Check()
	if len(fired) != 2 {
		t.Fatalf("fired = %+v, want task and exam", fired)
	}
	kinds := map[string]bool{}
	for _, r := range fired {
		kinds[r.Kind+":"+r.ID] = true
		if r.Minutes != 15 {
			t.Errorf("minutes = %d, want 15", r.Minutes)
		}
	}
	if !kinds["task:alarm"] || !kinds["exam:exam"] {
		t.Errorf("fired = %v", kinds)
	}

	if again := svc.Check(); len(again) != 0 {
		t.Errorf("second check fired %+v", again)
	}
	if events := h.pub.ofKind(ports.EventReminder); len(events) != 2 {
		t.Errorf("reminder events = %d, want 2", len(events))
	}
}

func TestReminderWindow(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		want    int
	}{
		{"too early", -time.Minute, 0},
		{"at lead", 0, 1},
		{"within the lead minute", -59 * time.Second, 1},
		{"past lead", time.Minute, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.seedState(t, func(st *state.State) {
				st.Tasks = []entities.Task{{ID: "t", Date: "2024-03-10", Time: "09:15", Alarm: true}}
			})
			h.clock.Advance(tt.advance)
			svc := NewReminderService(h.store, h.pub, h.clock, time.UTC, config.RemindersConfig{LeadTime: 15 * time.Minute}, h.log)
			if got := len(svc.Check()); got != tt.want {
				t.Errorf("fired %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReminderUntimedIsDueAtMidnight(t *testing.T) {
	h := newHarness(t)
	h.clock = newFakeClock(time.Date(2024, 3, 10, 23, 45, 0, 0, time.UTC))
	h.seedState(t, func(st *state.State) {
		st.Tasks = []entities.Task{{ID: "t", Date: "2024-03-11", Alarm: true}}
	})
	svc := NewReminderService(h.store, h.pub, h.clock, time.UTC, config.RemindersConfig{LeadTime: 15 * time.Minute}, h.log)

	if got := len(svc.Check()); got != 1 {
		t.Errorf("fired %d, want 1", got)
	}
}
