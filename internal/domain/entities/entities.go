package entities

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrValidation           = errors.New("validation failed")
	ErrTaskNotFound         = errors.New("task not found")
	ErrExamNotFound         = errors.New("exam not found")
	ErrItemNotFound         = errors.New("shopping item not found")
	ErrListNotFound         = errors.New("shopping list not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrProjectTaskNotFound  = errors.New("project task not found")
	ErrTimerAlreadyRunning  = errors.New("timer is already running")
	ErrTimerNotRunning      = errors.New("timer is not running")
	ErrTaskAlreadyCompleted = errors.New("task is already completed")
)

// Enums and types
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// TaskStatus is the canonical, UI-facing status vocabulary.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// ProjectTaskState is the lifecycle of a time-tracked project task.
type ProjectTaskState string

const (
	ProjectTaskTodo   ProjectTaskState = "todo"
	ProjectTaskPaused ProjectTaskState = "paused"
	ProjectTaskDone   ProjectTaskState = "done"
)

// DateLayout and TimeLayout are the wire formats of calendar days and clock times.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Task represents a dated agenda entry
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	Alarm       bool       `json:"alarm"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Exam represents a scheduled exam or appointment
type Exam struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Location  string    `json:"location"`
	Notes     string    `json:"notes"`
	FileName  string    `json:"file_name,omitempty"` // display only, never persisted
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShoppingItem is one line of a named shopping list
type ShoppingItem struct {
	ID        string    `json:"id"`
	List      string    `json:"list"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Purchased bool      `json:"purchased"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project groups time-tracked tasks
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Tasks       []ProjectTask `json:"tasks"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProjectTask is a stopwatch-tracked unit of work owned by exactly one project
type ProjectTask struct {
	ID          string           `json:"id"`
	ProjectID   string           `json:"project_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	State       ProjectTaskState `json:"state"`
	TimeSpent   time.Duration    `json:"time_spent"`
	IsRunning   bool             `json:"is_running"`
	StartTime   *time.Time       `json:"start_time"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Business logic methods for Task
func (t *Task) IsDone() bool {
	return t.Status == TaskStatusDone
}

// Due returns the instant the task is due, in loc. Tasks without a time are due at midnight.
func (t *Task) Due(loc *time.Location) (time.Time, bool) {
	return dueAt(t.Date, t.Time, loc)
}

func (t *Task) IsOverdue(now time.Time) bool {
	if t.IsDone() {
		return false
	}
	day, err := time.ParseInLocation(DateLayout, t.Date, now.Location())
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return day.Before(today)
}

// Advance moves the task one step forward: pending -> in_progress -> done.
func (t *Task) Advance() {
	switch t.Status {
	case TaskStatusPending:
		t.Status = TaskStatusInProgress
	case TaskStatusInProgress:
		t.Status = TaskStatusDone
	}
}

func (t *Task) Reopen() {
	t.Status = TaskStatusPending
}

// Business logic methods for Exam
func (e *Exam) Due(loc *time.Location) (time.Time, bool) {
	return dueAt(e.Date, e.Time, loc)
}

// Business logic methods for ShoppingItem
func (i *ShoppingItem) Total() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// ShoppingTotal sums quantity x unit price over the items still to buy.
func ShoppingTotal(items []ShoppingItem) float64 {
	total := 0.0
	for i := range items {
		if items[i].Purchased {
			continue
		}
		total += items[i].Total()
	}
	return total
}

// Business logic methods for Project
func (p *Project) FindTask(id string) (int, bool) {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// TrackedTime is the effective elapsed time across every task of the project.
func (p *Project) TrackedTime(now time.Time) time.Duration {
	var total time.Duration
	for i := range p.Tasks {
		total += p.Tasks[i].Elapsed(now)
	}
	return total
}

// Clone copies the project deeply enough that mutating the copy's tasks
// never reaches the original.
func (p Project) Clone() Project {
	if p.Tasks != nil {
		tasks := make([]ProjectTask, len(p.Tasks))
		for i := range p.Tasks {
			tasks[i] = p.Tasks[i].Clone()
		}
		p.Tasks = tasks
	}
	return p
}

// Business logic methods for ProjectTask
func (t ProjectTask) Clone() ProjectTask {
	if t.StartTime != nil {
		start := *t.StartTime
		t.StartTime = &start
	}
	return t
}

func (t *ProjectTask) IsDone() bool {
	return t.State == ProjectTaskDone
}

// Elapsed returns timeSpent plus the running segment, if any.
func (t *ProjectTask) Elapsed(now time.Time) time.Duration {
	if !t.IsRunning || t.StartTime == nil {
		return t.TimeSpent
	}
	return t.TimeSpent + segment(*t.StartTime, now)
}

// Start marks the stopwatch as running from now.
func (t *ProjectTask) Start(now time.Time) error {
	if t.IsDone() {
		return ErrTaskAlreadyCompleted
	}
	if t.IsRunning {
		return ErrTimerAlreadyRunning
	}
	start := now
	t.StartTime = &start
	t.IsRunning = true
	return nil
}

// Pause folds the running segment into TimeSpent.
func (t *ProjectTask) Pause(now time.Time) error {
	if !t.IsRunning {
		return ErrTimerNotRunning
	}
	t.accrue(now)
	t.State = ProjectTaskPaused
	return nil
}

// Finish accrues any running segment and marks the task done. Done is terminal.
func (t *ProjectTask) Finish(now time.Time) error {
	if t.IsDone() && !t.IsRunning {
		return ErrTaskAlreadyCompleted
	}
	if t.IsRunning {
		t.accrue(now)
	}
	t.State = ProjectTaskDone
	return nil
}

// Recover closes a stopwatch left running by a previous session and
// returns the duration it added.
func (t *ProjectTask) Recover(now time.Time) time.Duration {
	if !t.IsRunning {
		return 0
	}
	return t.accrue(now)
}

func (t *ProjectTask) accrue(now time.Time) time.Duration {
	var delta time.Duration
	if t.StartTime != nil {
		delta = segment(*t.StartTime, now)
	}
	t.TimeSpent += delta
	t.IsRunning = false
	t.StartTime = nil
	return delta
}

// segment never goes negative so TimeSpent stays monotonic under clock skew.
func segment(start, now time.Time) time.Duration {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}

func dueAt(date, clock string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, false
	}
	if clock == "" {
		return day, true
	}
	hm, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return day, true
	}
	return day.Add(time.Duration(hm.Hour())*time.Hour + time.Duration(hm.Minute())*time.Minute), true
}

// Utility methods
func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityNormal, PriorityLow:
		return true
	default:
		return false
	}
}

func (ts TaskStatus) IsValid() bool {
	switch ts {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

func (s ProjectTaskState) IsValid() bool {
	switch s {
	case ProjectTaskTodo, ProjectTaskPaused, ProjectTaskDone:
		return true
	default:
		return false
	}
}
