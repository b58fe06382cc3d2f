package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/agenda/internal/ports"
)

// NewGateway wires one repository per collection over a shared handle.
func NewGateway(db *sqlx.DB) ports.Gateway {
	return ports.Gateway{
		Tasks:        NewTaskRepository(db),
		Exams:        NewExamRepository(db),
		Shopping:     NewShoppingRepository(db),
		Projects:     NewProjectRepository(db),
		ProjectTasks: NewProjectTaskRepository(db),
	}
}
