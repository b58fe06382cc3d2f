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

const projectColumns = `id, name, description, created_at, updated_at`

type projectRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	CreatedAt   timestamp      `db:"created_at"`
	UpdatedAt   timestamp      `db:"updated_at"`
}

func (r projectRow) toEntity() entities.Project {
	return entities.Project{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description.String,
		Tasks:       []entities.ProjectTask{},
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

// ProjectRepositoryImpl implements the ProjectRepository interface
type ProjectRepositoryImpl struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sqlx.DB) *ProjectRepositoryImpl {
	return &ProjectRepositoryImpl{db: db, now: time.Now}
}

var _ ports.ProjectRepository = (*ProjectRepositoryImpl)(nil)

// Load returns every project row in creation order, without tasks.
func (r *ProjectRepositoryImpl) Load(ctx context.Context) ([]entities.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		ORDER BY created_at, id`

	var rows []projectRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}

	projects := make([]entities.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.toEntity())
	}
	return projects, nil
}

// Upsert inserts the project row or overwrites the row with the same id.
// The returned project carries no tasks.
func (r *ProjectRepositoryImpl) Upsert(ctx context.Context, project entities.Project) (entities.Project, error) {
	now := stamp(r.now())
	createdAt := project.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := r.db.Rebind(`
		INSERT INTO projects (` + projectColumns + `)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			updated_at = excluded.updated_at
		RETURNING ` + projectColumns)

	var row projectRow
	err := r.db.QueryRowxContext(ctx, query,
		project.ID, project.Name, project.Description, stamp(createdAt), now,
	).StructScan(&row)
	if err != nil {
		return entities.Project{}, fmt.Errorf("upsert project %s: %w", project.ID, err)
	}

	return row.toEntity(), nil
}

// Delete removes the project row. Its tasks must be deleted first.
func (r *ProjectRepositoryImpl) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM projects WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}
