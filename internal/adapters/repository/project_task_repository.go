package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/ports"
)

const projectTaskColumns = `id, project_id, title, description, state, time_spent, is_running, start_time, created_at, updated_at`

// projectTaskRow keeps time_spent as whole milliseconds and start_time as epoch milliseconds.
type projectTaskRow struct {
	ID          string         `db:"id"`
	ProjectID   string         `db:"project_id"`
	Title       string         `db:"title"`
	Description sql.NullString `db:"description"`
	State       sql.NullString `db:"state"`
	TimeSpent   sql.NullInt64  `db:"time_spent"`
	IsRunning   sql.NullBool   `db:"is_running"`
	StartTime   sql.NullInt64  `db:"start_time"`
	CreatedAt   timestamp      `db:"created_at"`
	UpdatedAt   timestamp      `db:"updated_at"`
}

// toEntity keeps isRunning and startTime consistent: a running row without a
// start time is loaded as stopped.
func (r projectTaskRow) toEntity() entities.ProjectTask {
	start := timeFromMillis(r.StartTime)
	running := r.IsRunning.Bool && start != nil
	if !running {
		start = nil
	}
	return entities.ProjectTask{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Name:        r.Title,
		Description: r.Description.String,
		State:       ProjectTaskStateFromRow(r.State.String),
		TimeSpent:   durationFromMillis(r.TimeSpent),
		IsRunning:   running,
		StartTime:   start,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

// ProjectTaskRepositoryImpl implements the ProjectTaskRepository interface
type ProjectTaskRepositoryImpl struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewProjectTaskRepository creates a new project task repository
func NewProjectTaskRepository(db *sqlx.DB) *ProjectTaskRepositoryImpl {
	return &ProjectTaskRepositoryImpl{db: db, now: time.Now}
}

var _ ports.ProjectTaskRepository = (*ProjectTaskRepositoryImpl)(nil)

// Load returns the tasks of every project in creation order.
func (r *ProjectTaskRepositoryImpl) Load(ctx context.Context) ([]entities.ProjectTask, error) {
	query := `
		SELECT ` + projectTaskColumns + `
		FROM project_tasks
		ORDER BY created_at, id`

	var rows []projectTaskRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load project tasks: %w", err)
	}
	return projectTasks(rows), nil
}

// LoadByProject returns the tasks of one project in creation order.
func (r *ProjectTaskRepositoryImpl) LoadByProject(ctx context.Context, projectID string) ([]entities.ProjectTask, error) {
	query := r.db.Rebind(`
		SELECT ` + projectTaskColumns + `
		FROM project_tasks
		WHERE project_id = ?
		ORDER BY created_at, id`)

	var rows []projectTaskRow
	if err := r.db.SelectContext(ctx, &rows, query, projectID); err != nil {
		return nil, fmt.Errorf("load tasks of project %s: %w", projectID, err)
	}
	return projectTasks(rows), nil
}

// Upsert inserts the task or overwrites the row with the same id. Time
// values are floored to whole milliseconds.
func (r *ProjectTaskRepositoryImpl) Upsert(ctx context.Context, task entities.ProjectTask) (entities.ProjectTask, error) {
	now := stamp(r.now())
	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	start := task.StartTime
	if !task.IsRunning {
		start = nil
	}

	query := r.db.Rebind(`
		INSERT INTO project_tasks (` + projectTaskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			project_id = excluded.project_id,
			title = excluded.title,
			description = excluded.description,
			state = excluded.state,
			time_spent = excluded.time_spent,
			is_running = excluded.is_running,
			start_time = excluded.start_time,
			updated_at = excluded.updated_at
		RETURNING ` + projectTaskColumns)

	var row projectTaskRow
	err := r.db.QueryRowxContext(ctx, query,
		task.ID, task.ProjectID, task.Name, task.Description, ProjectTaskStateToRow(task.State),
		millis(task.TimeSpent), task.IsRunning && start != nil, epochMillis(start),
		stamp(createdAt), now,
	).StructScan(&row)
	if err != nil {
		return entities.ProjectTask{}, fmt.Errorf("upsert project task %s: %w", task.ID, err)
	}

	return row.toEntity(), nil
}

// Delete removes the task. Deleting a missing id is not an error.
func (r *ProjectTaskRepositoryImpl) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM project_tasks WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete project task %s: %w", id, err)
	}
	return nil
}

func projectTasks(rows []projectTaskRow) []entities.ProjectTask {
	tasks := make([]entities.ProjectTask, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toEntity())
	}
	return tasks
}
