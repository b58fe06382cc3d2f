package entities

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestProjectTaskStopwatch(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	task := ProjectTask{ID: "t", State: ProjectTaskTodo}

	if err := task.Start(t0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := task.Start(t0); !errors.Is(err, ErrTimerAlreadyRunning) {
		t.Errorf("second Start() error = %v", err)
	}
	if got := task.Elapsed(t0.Add(time.Minute)); got != time.Minute {
		t.Errorf("Elapsed() = %v, want 1m", got)
	}
	if err := task.Pause(t0.Add(2 * time.Minute)); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if task.TimeSpent != 2*time.Minute || task.IsRunning || task.StartTime != nil || task.State != ProjectTaskPaused {
		t.Errorf("after pause = %+v", task)
	}
	if err := task.Pause(t0); !errors.Is(err, ErrTimerNotRunning) {
		t.Errorf("Pause() when stopped error = %v", err)
	}

	if err := task.Start(t0.Add(time.Hour)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := task.Finish(t0.Add(time.Hour + 30*time.Second)); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if task.TimeSpent != 2*time.Minute+30*time.Second || !task.IsDone() || task.IsRunning {
		t.Errorf("after finish = %+v", task)
	}
	if err := task.Start(t0); !errors.Is(err, ErrTaskAlreadyCompleted) {
		t.Errorf("Start() on done error = %v", err)
	}
	if err := task.Finish(t0); !errors.Is(err, ErrTaskAlreadyCompleted) {
		t.Errorf("Finish() on done error = %v", err)
	}
}

func TestProjectTaskNeverLosesTimeToClockSkew(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	start := t0.Add(time.Hour)
	task := ProjectTask{TimeSpent: time.Minute, IsRunning: true, StartTime: &start}

	if got := task.Elapsed(t0); got != time.Minute {
		t.Errorf("Elapsed() = %v, want 1m", got)
	}
	if added := task.Recover(t0); added != 0 || task.TimeSpent != time.Minute {
		t.Errorf("Recover() added %v, time spent %v", added, task.TimeSpent)
	}
	if added := task.Recover(t0); added != 0 {
		t.Errorf("Recover() on stopped task added %v", added)
	}
}

func TestTaskAdvanceAndOverdue(t *testing.T) {
	task := Task{Status: TaskStatusPending, Date: "2024-03-09"}
	task.Advance()
	if task.Status != TaskStatusInProgress {
		t.Errorf("status = %s", task.Status)
	}
	task.Advance()
	task.Advance()
	if task.Status != TaskStatusDone {
		t.Errorf("status = %s", task.Status)
	}

	now := time.Date(2024, 3, 10, 0, 30, 0, 0, time.UTC)
	if task.IsOverdue(now) {
		t.Error("done task reported overdue")
	}
	task.Reopen()
	if !task.IsOverdue(now) {
		t.Error("yesterday's pending task not overdue")
	}
	task.Date = "2024-03-10"
	if task.IsOverdue(now) {
		t.Error("today's task reported overdue")
	}
}

func TestDue(t *testing.T) {
	tests := []struct {
		date, clock string
		want        time.Time
		ok          bool
	}{
		{"2024-03-10", "14:30", time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC), true},
		{"2024-03-10", "", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), true},
		{"not a date", "10:00", time.Time{}, false},
	}
	for _, tt := range tests {
		e := Exam{Date: tt.date, Time: tt.clock}
		got, ok := e.Due(time.UTC)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("Due(%q, %q) = %v, %v; want %v, %v", tt.date, tt.clock, got, ok, tt.want, tt.ok)
		}
	}
}

func TestShoppingTotal(t *testing.T) {
	items := []ShoppingItem{
		{Quantity: 3, UnitPrice: 1.25},
		{Quantity: 2, UnitPrice: 4},
		{Quantity: 10, UnitPrice: 9.99, Purchased: true},
		{Quantity: 1},
	}
	if got := ShoppingTotal(items); math.Abs(got-11.75) > 1e-9 {
		t.Errorf("ShoppingTotal() = %v, want 11.75", got)
	}
	if got := ShoppingTotal(nil); got != 0 {
		t.Errorf("ShoppingTotal(nil) = %v", got)
	}
}

func TestProjectCloneIsDeep(t *testing.T) {
	start := time.Now()
	p := Project{ID: "p", Tasks: []ProjectTask{{ID: "t", StartTime: &start}}}

	c := p.Clone()
	c.Tasks[0].Name = "changed"
	*c.Tasks[0].StartTime = start.Add(time.Hour)

	if p.Tasks[0].Name != "" || !p.Tasks[0].StartTime.Equal(start) {
		t.Error("clone shares memory with the original")
	}
}
