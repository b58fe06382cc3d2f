package ports

import (
	"context"
	"errors"
	"time"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
)

// ErrCacheMiss is returned by a SnapshotCache that holds nothing yet.
var ErrCacheMiss = errors.New("snapshot cache is empty")

// TaskRepository defines the persistence gateway for tasks
type TaskRepository interface {
	Load(ctx context.Context) ([]entities.Task, error)
	Upsert(ctx context.Context, task entities.Task) (entities.Task, error)
	Delete(ctx context.Context, id string) error
}

// ExamRepository defines the persistence gateway for exams
type ExamRepository interface {
	Load(ctx context.Context) ([]entities.Exam, error)
	Upsert(ctx context.Context, exam entities.Exam) (entities.Exam, error)
	Delete(ctx context.Context, id string) error
}

// ShoppingRepository defines the persistence gateway for shopping items of every list
type ShoppingRepository interface {
	Load(ctx context.Context) ([]entities.ShoppingItem, error)
	Upsert(ctx context.Context, item entities.ShoppingItem) (entities.ShoppingItem, error)
	Delete(ctx context.Context, id string) error
}

// ProjectRepository defines the persistence gateway for project rows.
// Loaded projects carry no tasks; those come from ProjectTaskRepository.
type ProjectRepository interface {
	Load(ctx context.Context) ([]entities.Project, error)
	Upsert(ctx context.Context, project entities.Project) (entities.Project, error)
	Delete(ctx context.Context, id string) error
}

// ProjectTaskRepository defines the persistence gateway for time-tracked project tasks
type ProjectTaskRepository interface {
	Load(ctx context.Context) ([]entities.ProjectTask, error)
	LoadByProject(ctx context.Context, projectID string) ([]entities.ProjectTask, error)
	Upsert(ctx context.Context, task entities.ProjectTask) (entities.ProjectTask, error)
	Delete(ctx context.Context, id string) error
}

// Gateway bundles every collection repository.
type Gateway struct {
	Tasks        TaskRepository
	Exams        ExamRepository
	Shopping     ShoppingRepository
	Projects     ProjectRepository
	ProjectTasks ProjectTaskRepository
}

// SnapshotCache keeps the last-known-good copy of the state for degraded starts.
type SnapshotCache interface {
	Save(ctx context.Context, data state.Data) error
	Load(ctx context.Context) (state.Data, time.Time, error)
	Close() error
}

// EventKind classifies what a subscriber should do with an Event
type EventKind string

const (
	EventChange   EventKind = "change"
	EventNotice   EventKind = "notice"
	EventTick     EventKind = "tick"
	EventReminder EventKind = "reminder"
	EventPomodoro EventKind = "pomodoro"
)

// Event is the render signal sent to presentation clients.
type Event struct {
	Kind       EventKind   `json:"kind"`
	Collection string      `json:"collection,omitempty"`
	Op         string      `json:"op,omitempty"`
	Level      string      `json:"level,omitempty"`
	Message    string      `json:"message,omitempty"`
	Version    uint64      `json:"version,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	At         time.Time   `json:"at"`
}

// Publisher delivers render events. Publish must never block the caller.
type Publisher interface {
	Publish(event Event)
}

// Metrics records the outcome of state synchronization work
type Metrics interface {
	MutationApplied(collection, op string, err error)
	RolledBack(collection, op string)
	Autosaved(rows int, err error)
	OrphanRecovered(d time.Duration)
}
