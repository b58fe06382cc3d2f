package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/ports"
)

func TestTaskServiceSaveCreatesWithDefaults(t *testing.T) {
	h := newHarness(t)
	svc := NewTaskService(h.coord, h.tasks, h.clock, h.log)

	task, err := svc.Save(context.Background(), ports.TaskForm{
		Title: "  Pay rent ",
		Date:  "2024-03-11",
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if task.ID == "" {
		t.Error("expected a generated id")
	}
	if task.Title != "Pay rent" {
		t.Errorf("title = %q", task.Title)
	}
	if task.Priority != entities.PriorityNormal || task.Status != entities.TaskStatusPending {
		t.Errorf("defaults = %s/%s, want normal/pending", task.Priority, task.Status)
	}
	if !task.CreatedAt.Equal(h.clock.Now()) {
		t.Errorf("created_at = %v", task.CreatedAt)
	}
	if _, ok := h.tasks.get(task.ID); !ok {
		t.Error("task was not persisted")
	}
}

func TestTaskServiceSaveUpdateKeepsCreatedAndStatus(t *testing.T) {
	h := newHarness(t)
	svc := NewTaskService(h.coord, h.tasks, h.clock, h.log)
	ctx := context.Background()

	created, err := svc.Save(ctx, ports.TaskForm{Title: "Draft", Date: "2024-03-11"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := svc.Advance(ctx, created.ID); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	h.clock.Advance(time.Hour)
	updated, err := svc.Save(ctx, ports.TaskForm{ID: created.ID, Title: "Final", Date: "2024-03-12", Time: "08:30"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}
	if updated.Status != entities.TaskStatusInProgress {
		t.Errorf("status = %s, want in_progress", updated.Status)
	}
	if got := svc.List(ctx, ports.TaskFilter{}); len(got) != 1 {
		t.Errorf("List() returned %d tasks, want 1", len(got))
	}
}

func TestTaskServiceValidation(t *testing.T) {
	h := newHarness(t)
	svc := NewTaskService(h.coord, h.tasks, h.clock, h.log)

	tests := []struct {
		name string
		form ports.TaskForm
	}{
		{"missing title", ports.TaskForm{Date: "2024-03-11"}},
		{"bad date", ports.TaskForm{Title: "x", Date: "11/03/2024"}},
		{"bad time", ports.TaskForm{Title: "x", Date: "2024-03-11", Time: "25:99"}},
		{"bad priority", ports.TaskForm{Title: "x", Date: "2024-03-11", Priority: "critical"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Save(context.Background(), tt.form)
			if !errors.Is(err, entities.ErrValidation) {
				t.Errorf("Save() error = %v, want ErrValidation", err)
			}
		})
	}
	if n := len(h.journal.list()); n != 0 {
		t.Errorf("remote calls = %d, want 0", n)
	}
}

func TestTaskServiceSaveRollsBackOnPersistFailure(t *testing.T) {
	h := newHarness(t)
	svc := NewTaskService(h.coord, h.tasks, h.clock, h.log)
	h.tasks.upsertErr = errRemote

	_, err := svc.Save(context.Background(), ports.TaskForm{Title: "Lost", Date: "2024-03-11"})
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("Save() error = %v, want ErrPersistFailed", err)
	}
	if got := svc.List(context.Background(), ports.TaskFilter{}); len(got) != 0 {
		t.Errorf("tasks after rollback = %+v, want none", got)
	}
}

func TestTaskServiceStatusTransitions(t *testing.T) {
	h := newHarness(t)
	svc := NewTaskService(h.coord, h.tasks, h.clock, h.log)
	ctx := context.Background()

	task, err := svc.Save(ctx, ports.TaskForm{Title: "Study", Date: "2024-03-11"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	want := []entities.TaskStatus{entities.TaskStatusInProgress, entities.TaskStatusDone, entities.TaskStatusDone}
	for i, status := range want {
		got, err := svc.Advance(ctx, task.ID)
		if err != nil {
			t.Fatalf("Advance() #%d error = %v", i, err)
		}
		if got.Status != status {
			t.Errorf("Advance() #%d status = %s, want %s", i, got.Status, status)
		}
	}

	reopened, err := svc.Reopen(ctx, task.ID)
	if err != nil || reopened.Status != entities.TaskStatusPending {
		t.Errorf("Reopen() = %s, %v", reopened.Status, err)
	}

	if _, err := svc.SetStatus(ctx, task.ID, "archived"); !errors.Is(err, entities.ErrValidation) {
		t.Errorf("SetStatus(archived) error = %v, want ErrValidation", err)
	}
	if _, err := svc.Advance(ctx, "missing"); !errors.Is(err, entities.ErrTaskNotFound) {
		t.Errorf("Advance(missing) error = %v, want ErrTaskNotFound", err)
	}
}

func TestTaskServiceListOrderAndFilter(t *testing.T) {
	h := newHarness(t)
	svc := NewTaskService(h.coord, h.tasks, h.clock, h.log)
	ctx := context.Background()

	forms := []ports.TaskForm{
		{Title: "later", Date: "2024-03-12", Priority: "urgent"},
		{Title: "evening", Date: "2024-03-11", Time: "18:00"},
		{Title: "untimed", Date: "2024-03-11"},
		{Title: "morning", Date: "2024-03-11", Time: "07:00", Priority: "urgent"},
	}
	for _, f := range forms {
		if _, err := svc.Save(ctx, f); err != nil {
			t.Fatalf("Save(%s) error = %v", f.Title, err)
		}
	}

	var titles []string
	for _, task := range svc.List(ctx, ports.TaskFilter{}) {
		titles = append(titles, task.Title)
	}
	want := []string{"untimed", "morning", "evening", "later"}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("order = %v, want %v", titles, want)
		}
	}

	urgent := entities.PriorityUrgent
	if got := svc.List(ctx, ports.TaskFilter{Priority: &urgent, Date: "2024-03-11"}); len(got) != 1 || got[0].Title != "morning" {
		t.Errorf("filtered = %+v", got)
	}
}

func TestTaskServiceDelete(t *testing.T) {
	h := newHarness(t)
	svc := NewTaskService(h.coord, h.tasks, h.clock, h.log)
	ctx := context.Background()

	task, err := svc.Save(ctx, ports.TaskForm{Title: "Temp", Date: "2024-03-11"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := svc.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if h.tasks.count() != 0 {
		t.Error("task row still present")
	}
	if err := svc.Delete(ctx, task.ID); !errors.Is(err, entities.ErrTaskNotFound) {
		t.Errorf("second Delete() error = %v, want ErrTaskNotFound", err)
	}
}
