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

const examColumns = `id, title, description, date, time, location, created_at, updated_at`

// examRow stores the exam type in title and the notes in description.
type examRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description sql.NullString `db:"description"`
	Date        sql.NullString `db:"date"`
	Time        sql.NullString `db:"time"`
	Location    sql.NullString `db:"location"`
	CreatedAt   timestamp      `db:"created_at"`
	UpdatedAt   timestamp      `db:"updated_at"`
}

func (r examRow) toEntity() entities.Exam {
	return entities.Exam{
		ID:        r.ID,
		Type:      r.Title,
		Date:      r.Date.String,
		Time:      r.Time.String,
		Location:  r.Location.String,
		Notes:     r.Description.String,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

// ExamRepositoryImpl implements the ExamRepository interface
type ExamRepositoryImpl struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewExamRepository creates a new exam repository
func NewExamRepository(db *sqlx.DB) *ExamRepositoryImpl {
	return &ExamRepositoryImpl{db: db, now: time.Now}
}

var _ ports.ExamRepository = (*ExamRepositoryImpl)(nil)

// Load returns every exam ordered by day and time.
func (r *ExamRepositoryImpl) Load(ctx context.Context) ([]entities.Exam, error) {
	query := `
		SELECT ` + examColumns + `
		FROM exams
		ORDER BY COALESCE(date, ''), COALESCE(time, ''), created_at, id`

	var rows []examRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load exams: %w", err)
	}

	exams := make([]entities.Exam, 0, len(rows))
	for _, row := range rows {
		exams = append(exams, row.toEntity())
	}
	return exams, nil
}

// Upsert inserts the exam or overwrites the row with the same id.
// FileName has no column and is dropped.
func (r *ExamRepositoryImpl) Upsert(ctx context.Context, exam entities.Exam) (entities.Exam, error) {
	now := stamp(r.now())
	createdAt := exam.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := r.db.Rebind(`
		INSERT INTO exams (` + examColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			date = excluded.date,
			time = excluded.time,
			location = excluded.location,
			updated_at = excluded.updated_at
		RETURNING ` + examColumns)

	var row examRow
	err := r.db.QueryRowxContext(ctx, query,
		exam.ID, exam.Type, exam.Notes, nullString(exam.Date), nullString(exam.Time),
		exam.Location, stamp(createdAt), now,
	).StructScan(&row)
	if err != nil {
		return entities.Exam{}, fmt.Errorf("upsert exam %s: %w", exam.ID, err)
	}

	return row.toEntity(), nil
}

// Delete removes the exam. Deleting a missing id is not an error.
func (r *ExamRepositoryImpl) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM exams WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete exam %s: %w", id, err)
	}
	return nil
}
