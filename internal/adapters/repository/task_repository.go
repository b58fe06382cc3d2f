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

const taskColumns = `id, title, description, date, time, priority, status, alarm, created_at, updated_at`

type taskRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description sql.NullString `db:"description"`
	Date        sql.NullString `db:"date"`
	Time        sql.NullString `db:"time"`
	Priority    sql.NullString `db:"priority"`
	Status      sql.NullString `db:"status"`
	Alarm       sql.NullBool   `db:"alarm"`
	CreatedAt   timestamp      `db:"created_at"`
	UpdatedAt   timestamp      `db:"updated_at"`
}

func (r taskRow) toEntity() entities.Task {
	return entities.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description.String,
		Date:        r.Date.String,
		Time:        r.Time.String,
		Priority:    PriorityFromRow(r.Priority.String),
		Status:      StatusFromRow(r.Status.String),
		Alarm:       r.Alarm.Bool,
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

// TaskRepositoryImpl implements the TaskRepository interface
type TaskRepositoryImpl struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sqlx.DB) *TaskRepositoryImpl {
	return &TaskRepositoryImpl{db: db, now: time.Now}
}

var _ ports.TaskRepository = (*TaskRepositoryImpl)(nil)

// Load returns every task ordered by day and time; untimed tasks come first within a day.
func (r *TaskRepositoryImpl) Load(ctx context.Context) ([]entities.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		ORDER BY COALESCE(date, ''), COALESCE(time, ''), created_at, id`

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	tasks := make([]entities.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toEntity())
	}
	return tasks, nil
}

// Upsert inserts the task or overwrites the row with the same id.
func (r *TaskRepositoryImpl) Upsert(ctx context.Context, task entities.Task) (entities.Task, error) {
	now := stamp(r.now())
	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := r.db.Rebind(`
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			date = excluded.date,
			time = excluded.time,
			priority = excluded.priority,
			status = excluded.status,
			alarm = excluded.alarm,
			updated_at = excluded.updated_at
		RETURNING ` + taskColumns)

	var row taskRow
	err := r.db.QueryRowxContext(ctx, query,
		task.ID, task.Title, task.Description, nullString(task.Date), nullString(task.Time),
		PriorityToRow(task.Priority), StatusToRow(task.Status), task.Alarm, stamp(createdAt), now,
	).StructScan(&row)
	if err != nil {
		return entities.Task{}, fmt.Errorf("upsert task %s: %w", task.ID, err)
	}

	return row.toEntity(), nil
}

// Delete removes the task. Deleting a missing id is not an error.
func (r *TaskRepositoryImpl) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM tasks WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}
