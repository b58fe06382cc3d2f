package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

const collectionTasks = "tasks"

// TaskService handles agenda task operations
type TaskService struct {
	coord  *Coordinator
	repo   ports.TaskRepository
	clock  Clock
	logger *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(coord *Coordinator, repo ports.TaskRepository, clock Clock, logger *logger.Logger) *TaskService {
	return &TaskService{
		coord:  coord,
		repo:   repo,
		clock:  clock,
		logger: logger.WithComponent("tasks"),
	}
}

var _ ports.TaskService = (*TaskService)(nil)

// List returns the tasks matching filter in agenda order.
func (s *TaskService) List(ctx context.Context, filter ports.TaskFilter) []entities.Task {
	var out []entities.Task
	s.coord.Store().Read(func(st *state.State) {
		for _, t := range st.Tasks {
			if filter.Status != nil && t.Status != *filter.Status {
				continue
			}
			if filter.Priority != nil && t.Priority != *filter.Priority {
				continue
			}
			if filter.Date != "" && t.Date != filter.Date {
				continue
			}
			out = append(out, t)
		}
	})
	if out == nil {
		out = []entities.Task{}
	}
	return out
}

// Save creates the task, or updates it when form.ID names an existing task.
func (s *TaskService) Save(ctx context.Context, form ports.TaskForm) (entities.Task, error) {
	if err := validateForm(form); err != nil {
		return entities.Task{}, err
	}

	now := s.clock.Now()
	task := entities.Task{
		ID:          form.ID,
		Title:       strings.TrimSpace(form.Title),
		Description: strings.TrimSpace(form.Description),
		Date:        form.Date,
		Time:        form.Time,
		Priority:    entities.Priority(form.Priority),
		Status:      entities.TaskStatus(form.Status),
		Alarm:       form.Alarm,
		UpdatedAt:   now,
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Priority == "" {
		task.Priority = entities.PriorityNormal
	}

	op := "create"
	s.coord.Store().Read(func(st *state.State) {
		if _, ok := st.FindTask(task.ID); ok {
			op = "update"
		}
	})

	err := s.coord.Apply(ctx, Mutation{
		Op:         op,
		Collection: collectionTasks,
		Mutate: func(st *state.State) (state.Restore, error) {
			restore := state.CaptureTasks(st)
			if i, ok := st.FindTask(task.ID); ok {
				task.CreatedAt = st.Tasks[i].CreatedAt
				if task.Status == "" {
					task.Status = st.Tasks[i].Status
				}
				st.Tasks[i] = task
			} else {
				task.CreatedAt = now
				if task.Status == "" {
					task.Status = entities.TaskStatusPending
				}
				st.Tasks = append(st.Tasks, task)
			}
			sortTasks(st.Tasks)
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			_, err := s.repo.Upsert(ctx, task)
			return err
		},
		Refresh: s.refresh,
	})
	if err != nil {
		return entities.Task{}, err
	}

	s.logger.Infow("Task saved", "task_id", task.ID, "op", op, "title", task.Title)
	return s.current(task), nil
}

// Delete removes the task.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	err := s.coord.Apply(ctx, Mutation{
		Op:         "delete",
		Collection: collectionTasks,
		Mutate: func(st *state.State) (state.Restore, error) {
			i, ok := st.FindTask(id)
			if !ok {
				return nil, fmt.Errorf("task %s: %w", id, entities.ErrTaskNotFound)
			}
			restore := state.CaptureTasks(st)
			st.Tasks = slices.Delete(st.Tasks, i, i+1)
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			return s.repo.Delete(ctx, id)
		},
		Refresh: s.refresh,
	})
	if err != nil {
		return err
	}

	s.logger.Infow("Task deleted", "task_id", id)
	return nil
}

// SetStatus moves the task to any status.
func (s *TaskService) SetStatus(ctx context.Context, id string, status entities.TaskStatus) (entities.Task, error) {
	if !status.IsValid() {
		return entities.Task{}, invalid("unknown status %q", status)
	}
	return s.change(ctx, "status", id, func(t *entities.Task) { t.Status = status })
}

// Advance moves the task one step along pending, in_progress, done.
func (s *TaskService) Advance(ctx context.Context, id string) (entities.Task, error) {
	return s.change(ctx, "advance", id, (*entities.Task).Advance)
}

// Reopen moves the task back to pending.
func (s *TaskService) Reopen(ctx context.Context, id string) (entities.Task, error) {
	return s.change(ctx, "reopen", id, (*entities.Task).Reopen)
}

func (s *TaskService) change(ctx context.Context, op, id string, fn func(*entities.Task)) (entities.Task, error) {
	var updated entities.Task
	err := s.coord.Apply(ctx, Mutation{
		Op:         op,
		Collection: collectionTasks,
		Mutate: func(st *state.State) (state.Restore, error) {
			i, ok := st.FindTask(id)
			if !ok {
				return nil, fmt.Errorf("task %s: %w", id, entities.ErrTaskNotFound)
			}
			restore := state.CaptureTasks(st)
			fn(&st.Tasks[i])
			st.Tasks[i].UpdatedAt = s.clock.Now()
			updated = st.Tasks[i]
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			_, err := s.repo.Upsert(ctx, updated)
			return err
		},
		Refresh: s.refresh,
	})
	if err != nil {
		return entities.Task{}, err
	}
	return s.current(updated), nil
}

// refresh reloads the collection so server-generated fields are reconciled.
func (s *TaskService) refresh(ctx context.Context) error {
	tasks, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	sortTasks(tasks)
	return s.coord.Store().Update(func(st *state.State) error {
		st.Tasks = tasks
		return nil
	})
}

// current returns the stored copy of task, which may have been refreshed.
func (s *TaskService) current(task entities.Task) entities.Task {
	s.coord.Store().Read(func(st *state.State) {
		if i, ok := st.FindTask(task.ID); ok {
			task = st.Tasks[i]
		}
	})
	return task
}

// sortTasks keeps the local order identical to the load order.
func sortTasks(tasks []entities.Task) {
	slices.SortStableFunc(tasks, func(a, b entities.Task) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		if c := strings.Compare(a.Time, b.Time); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
