package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

const collectionProjects = "projects"

// ProjectService handles project and project task operations
type ProjectService struct {
	coord    *Coordinator
	projects ports.ProjectRepository
	tasks    ports.ProjectTaskRepository
	clock    Clock
	logger   *logger.Logger
}

// NewProjectService creates a new project service
func NewProjectService(coord *Coordinator, projects ports.ProjectRepository, tasks ports.ProjectTaskRepository, clock Clock, logger *logger.Logger) *ProjectService {
	return &ProjectService{
		coord:    coord,
		projects: projects,
		tasks:    tasks,
		clock:    clock,
		logger:   logger.WithComponent("projects"),
	}
}

var _ ports.ProjectService = (*ProjectService)(nil)

// List returns every project with its tasks.
func (s *ProjectService) List(ctx context.Context) []entities.Project {
	out := []entities.Project{}
	s.coord.Store().Read(func(st *state.State) {
		for _, p := range st.Projects {
			out = append(out, p.Clone())
		}
	})
	return out
}

// Get returns one project with its tasks.
func (s *ProjectService) Get(ctx context.Context, id string) (entities.Project, error) {
	var (
		project entities.Project
		found   bool
	)
	s.coord.Store().Read(func(st *state.State) {
		if i, ok := st.FindProject(id); ok {
			project, found = st.Projects[i].Clone(), true
		}
	})
	if !found {
		return entities.Project{}, fmt.Errorf("project %s: %w", id, entities.ErrProjectNotFound)
	}
	return project, nil
}

// Save creates the project, or renames it when form.ID names an existing project.
func (s *ProjectService) Save(ctx context.Context, form ports.ProjectForm) (entities.Project, error) {
	if err := validateForm(form); err != nil {
		return entities.Project{}, err
	}

	now := s.clock.Now()
	row := entities.Project{
		ID:          form.ID,
		Name:        strings.TrimSpace(form.Name),
		Description: strings.TrimSpace(form.Description),
		UpdatedAt:   now,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}

	op := "create"
	s.coord.Store().Read(func(st *state.State) {
		if _, ok := st.FindProject(row.ID); ok {
			op = "update"
		}
	})

	err := s.coord.Apply(ctx, Mutation{
		Op:         op,
		Collection: collectionProjects,
		Mutate: func(st *state.State) (state.Restore, error) {
			if i, ok := st.FindProject(row.ID); ok {
				restore := state.CaptureProject(st, row.ID)
				row.CreatedAt = st.Projects[i].CreatedAt
				state.ReplaceProjectRow(st, row)
				return restore, nil
			}
			restore := state.CaptureProjects(st)
			row.CreatedAt = now
			project := row
			project.Tasks = []entities.ProjectTask{}
			st.Projects = append(st.Projects, project)
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			_, err := s.projects.Upsert(ctx, row)
			return err
		},
		Refresh: s.refreshRows,
	})
	if err != nil {
		return entities.Project{}, err
	}

	s.logger.Infow("Project saved", "project_id", row.ID, "op", op, "name", row.Name)
	return s.Get(ctx, row.ID)
}

// Delete removes the project after removing each of its tasks. When a
// child delete fails the children already removed are written back and the
// project row is left in place.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	var (
		children []entities.ProjectTask
		deleted  []entities.ProjectTask
	)

	err := s.coord.Apply(ctx, Mutation{
		Op:         "delete",
		Collection: collectionProjects,
		Mutate: func(st *state.State) (state.Restore, error) {
			i, ok := st.FindProject(id)
			if !ok {
				return nil, fmt.Errorf("project %s: %w", id, entities.ErrProjectNotFound)
			}
			restore := state.CaptureProject(st, id)
			for _, t := range st.Projects[i].Tasks {
				children = append(children, t.Clone())
			}
			st.Projects = slices.Delete(st.Projects, i, i+1)
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			for _, t := range children {
				if err := s.tasks.Delete(ctx, t.ID); err != nil {
					return fmt.Errorf("delete project task %s: %w", t.ID, err)
				}
				deleted = append(deleted, t)
			}
			return s.projects.Delete(ctx, id)
		},
		OnFailure: func(ctx context.Context, _ error) error {
			var errs error
			for _, t := range deleted {
				if _, err := s.tasks.Upsert(ctx, t); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("restore project task %s: %w", t.ID, err))
				}
			}
			if len(deleted) > 0 {
				s.logger.Warnw("Restored project tasks after failed project delete",
					"project_id", id,
					"restored", len(deleted),
					"failed", len(multierr.Errors(errs)),
				)
			}
			return errs
		},
	})
	if err != nil {
		return err
	}

	s.logger.Infow("Project deleted", "project_id", id, "tasks", len(children))
	return nil
}

// SaveTask creates a task in the project, or edits it when form.ID names one.
// Timing fields are owned by the timer and never change here.
func (s *ProjectService) SaveTask(ctx context.Context, projectID string, form ports.ProjectTaskForm) (entities.ProjectTask, error) {
	if err := validateForm(form); err != nil {
		return entities.ProjectTask{}, err
	}

	now := s.clock.Now()
	task := entities.ProjectTask{
		ID:          form.ID,
		ProjectID:   projectID,
		Name:        strings.TrimSpace(form.Name),
		Description: strings.TrimSpace(form.Description),
		State:       entities.ProjectTaskState(form.State),
		UpdatedAt:   now,
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	op := "create_task"
	s.coord.Store().Read(func(st *state.State) {
		if i, ok := st.FindProject(projectID); ok {
			if _, ok := st.Projects[i].FindTask(task.ID); ok {
				op = "update_task"
			}
		}
	})

	err := s.coord.Apply(ctx, Mutation{
		Op:         op,
		Collection: collectionProjects,
		Mutate: func(st *state.State) (state.Restore, error) {
			pi, ok := st.FindProject(projectID)
			if !ok {
				return nil, fmt.Errorf("project %s: %w", projectID, entities.ErrProjectNotFound)
			}
			project := &st.Projects[pi]

			if ti, ok := project.FindTask(task.ID); ok {
				cur := project.Tasks[ti]
				if task.State == "" {
					task.State = cur.State
				}
				if cur.IsRunning && task.State != cur.State {
					return nil, fmt.Errorf("change state of task %s: %w", task.ID, entities.ErrTimerAlreadyRunning)
				}
				task.TimeSpent = cur.TimeSpent
				task.IsRunning = cur.IsRunning
				task.StartTime = cur.Clone().StartTime
				task.CreatedAt = cur.CreatedAt

				restore := state.CaptureProject(st, projectID)
				project.Tasks[ti] = task
				return restore, nil
			}

			if task.State == "" {
				task.State = entities.ProjectTaskTodo
			}
			task.CreatedAt = now
			restore := state.CaptureProject(st, projectID)
			project.Tasks = append(project.Tasks, task)
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			_, err := s.tasks.Upsert(ctx, task)
			return err
		},
	})
	if err != nil {
		return entities.ProjectTask{}, err
	}

	s.logger.Infow("Project task saved", "project_id", projectID, "task_id", task.ID, "op", op)
	return task, nil
}

// DeleteTask removes the task row and then touches the project row.
func (s *ProjectService) DeleteTask(ctx context.Context, projectID, taskID string) error {
	var (
		removed     entities.ProjectTask
		row         entities.Project
		taskDeleted bool
	)

	err := s.coord.Apply(ctx, Mutation{
		Op:         "delete_task",
		Collection: collectionProjects,
		Mutate: func(st *state.State) (state.Restore, error) {
			pi, ok := st.FindProject(projectID)
			if !ok {
				return nil, fmt.Errorf("project %s: %w", projectID, entities.ErrProjectNotFound)
			}
			ti, ok := st.Projects[pi].FindTask(taskID)
			if !ok {
				return nil, fmt.Errorf("task %s in project %s: %w", taskID, projectID, entities.ErrProjectTaskNotFound)
			}
			restore := state.CaptureProject(st, projectID)
			project := &st.Projects[pi]
			removed = project.Tasks[ti].Clone()
			project.Tasks = slices.Delete(project.Tasks, ti, ti+1)
			project.UpdatedAt = s.clock.Now()
			row = projectRow(*project)
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			if err := s.tasks.Delete(ctx, taskID); err != nil {
				return err
			}
			taskDeleted = true
			_, err := s.projects.Upsert(ctx, row)
			return err
		},
		OnFailure: func(ctx context.Context, _ error) error {
			if !taskDeleted {
				return nil
			}
			if _, err := s.tasks.Upsert(ctx, removed); err != nil {
				return fmt.Errorf("restore project task %s: %w", taskID, err)
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	s.logger.Infow("Project task deleted", "project_id", projectID, "task_id", taskID)
	return nil
}

// refreshRows reloads the project rows and keeps the local task lists.
func (s *ProjectService) refreshRows(ctx context.Context) error {
	rows, err := s.projects.Load(ctx)
	if err != nil {
		return err
	}
	return s.coord.Store().Update(func(st *state.State) error {
		for _, row := range rows {
			state.ReplaceProjectRow(st, row)
		}
		return nil
	})
}

// projectRow strips the tasks from p.
func projectRow(p entities.Project) entities.Project {
	p.Tasks = nil
	return p
}
