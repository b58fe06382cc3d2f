package ports

import (
	"context"
	"time"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
)

// StateService loads the agenda and exposes read-only snapshots of it
type StateService interface {
	Load(ctx context.Context) error
	Snapshot() state.Snapshot
	Ready() bool
}

// TaskService interface for agenda task operations
type TaskService interface {
	List(ctx context.Context, filter TaskFilter) []entities.Task
	Save(ctx context.Context, form TaskForm) (entities.Task, error)
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status entities.TaskStatus) (entities.Task, error)
	Advance(ctx context.Context, id string) (entities.Task, error)
	Reopen(ctx context.Context, id string) (entities.Task, error)
}

// ExamService interface for exam operations
type ExamService interface {
	List(ctx context.Context) []entities.Exam
	Save(ctx context.Context, form ExamForm) (entities.Exam, error)
	Delete(ctx context.Context, id string) error
}

// ShoppingService interface for shopping list operations
type ShoppingService interface {
	Lists(ctx context.Context) []ShoppingList
	Items(ctx context.Context, list string) (ShoppingList, error)
	Add(ctx context.Context, list string, form ShoppingItemForm) (entities.ShoppingItem, error)
	Update(ctx context.Context, list, id string, form ShoppingItemForm) (entities.ShoppingItem, error)
	Toggle(ctx context.Context, list, id string) (entities.ShoppingItem, error)
	Delete(ctx context.Context, list, id string) error
}

// ProjectService interface for project and project task operations
type ProjectService interface {
	List(ctx context.Context) []entities.Project
	Get(ctx context.Context, id string) (entities.Project, error)
	Save(ctx context.Context, form ProjectForm) (entities.Project, error)
	Delete(ctx context.Context, id string) error
	SaveTask(ctx context.Context, projectID string, form ProjectTaskForm) (entities.ProjectTask, error)
	DeleteTask(ctx context.Context, projectID, taskID string) error
}

// TimerService interface for project task stopwatches
type TimerService interface {
	Start(ctx context.Context, projectID, taskID string) (entities.ProjectTask, error)
	Pause(ctx context.Context, projectID, taskID string) (entities.ProjectTask, error)
	Finish(ctx context.Context, projectID, taskID string) (entities.ProjectTask, error)
	Running() []RunningTimer
	RecoverOrphans(ctx context.Context) (RecoveryReport, error)
	Run(ctx context.Context) error
}

// DashboardService interface for the summary view
type DashboardService interface {
	Build(ctx context.Context) Dashboard
}

// PomodoroService interface for the focus timer
type PomodoroService interface {
	Status() PomodoroStatus
	Start() PomodoroStatus
	Pause() PomodoroStatus
	Reset() PomodoroStatus
	Configure(settings PomodoroSettings) (PomodoroStatus, error)
}

// Filter types

type TaskFilter struct {
	Status   *entities.TaskStatus
	Priority *entities.Priority
	Date     string
}

// Request types

type TaskForm struct {
	ID          string `json:"id"`
	Title       string `json:"title" validate:"required,max=500"`
	Description string `json:"description" validate:"max=2000"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"time" validate:"omitempty,datetime=15:04"`
	Priority    string `json:"priority" validate:"omitempty,oneof=urgent normal low"`
	Status      string `json:"status" validate:"omitempty,oneof=pending in_progress done"`
	Alarm       bool   `json:"alarm"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress done"`
}

type ExamForm struct {
	ID       string `json:"id"`
	Type     string `json:"type" validate:"required,max=200"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string `json:"time" validate:"omitempty,datetime=15:04"`
	Location string `json:"location" validate:"max=500"`
	Notes    string `json:"notes" validate:"max=2000"`
	FileName string `json:"file_name" validate:"max=255"`
}

type ShoppingItemForm struct {
	Name      string   `json:"name" validate:"required,max=200"`
	Quantity  int      `json:"quantity" validate:"omitempty,min=1"`
	UnitPrice *float64 `json:"unit_price" validate:"omitempty,min=0"`
	Purchased *bool    `json:"purchased"`
}

type ProjectForm struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=1000"`
}

type ProjectTaskForm struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=1000"`
	State       string `json:"state" validate:"omitempty,oneof=todo paused done"`
}

type PomodoroSettings struct {
	FocusMinutes int `json:"focus_minutes" validate:"required,min=1,max=180"`
	BreakMinutes int `json:"break_minutes" validate:"required,min=1,max=60"`
}

// Response types

type ShoppingList struct {
	Name  string                  `json:"name"`
	Items []entities.ShoppingItem `json:"items"`
	Total float64                 `json:"total"`
}

type RunningTimer struct {
	ProjectID string        `json:"project_id"`
	TaskID    string        `json:"task_id"`
	Elapsed   time.Duration `json:"elapsed"`
}

type RecoveryReport struct {
	Recovered int           `json:"recovered"`
	Added     time.Duration `json:"added"`
	Failed    int           `json:"failed"`
}

type ProjectSummary struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Tasks   int           `json:"tasks"`
	Done    int           `json:"done"`
	Tracked time.Duration `json:"tracked"`
	Running bool          `json:"running"`
}

type Dashboard struct {
	Today         []entities.Task  `json:"today"`
	Urgent        []entities.Task  `json:"urgent"`
	Overdue       []entities.Task  `json:"overdue"`
	UpcomingExams []entities.Exam  `json:"upcoming_exams"`
	Projects      []ProjectSummary `json:"projects"`
	ShoppingTotal float64          `json:"shopping_total"`
	Degraded      bool             `json:"degraded"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

type PomodoroMode string

const (
	PomodoroFocus PomodoroMode = "focus"
	PomodoroBreak PomodoroMode = "break"
)

type PomodoroStatus struct {
	Mode      PomodoroMode  `json:"mode"`
	Running   bool          `json:"running"`
	Remaining time.Duration `json:"remaining"`
	Focus     time.Duration `json:"focus"`
	Break     time.Duration `json:"break"`
	Cycles    int           `json:"cycles"`
}
