// Package state holds the in-memory agenda tree owned by one application
// instance. Every mutation goes through Store.Update so the optimistic
// coordinator can capture a restore point first.
package state

import (
	"slices"
	"sync"
	"time"

	"github.com/taskmaster/agenda/internal/domain/entities"
)

// Data is the persisted-facing part of the state: every entity collection.
type Data struct {
	Tasks    []entities.Task                    `json:"tasks"`
	Exams    []entities.Exam                    `json:"exams"`
	Shopping map[string][]entities.ShoppingItem `json:"shopping"`
	Projects []entities.Project                 `json:"projects"`
}

// State is Data plus session bookkeeping.
type State struct {
	Data

	// Degraded is set when the last load fell back to a cached or empty snapshot.
	Degraded bool
	Notice   string
	Ready    bool
	LoadedAt time.Time
	Version  uint64
}

// Snapshot is an immutable copy of the state handed to readers and the cache.
type Snapshot struct {
	Data
	Degraded bool      `json:"degraded"`
	Notice   string    `json:"notice,omitempty"`
	Ready    bool      `json:"ready"`
	LoadedAt time.Time `json:"loaded_at"`
	Version  uint64    `json:"version"`
}

// Store guards the State.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore creates an empty store with the given shopping list partitions.
func NewStore(lists []string) *Store {
	s := &Store{}
	s.state.Shopping = make(map[string][]entities.ShoppingItem, len(lists))
	for _, l := range lists {
		s.state.Shopping[l] = []entities.ShoppingItem{}
	}
	return s
}

// Read runs fn with a read lock. fn must not retain references into the state.
func (s *Store) Read(fn func(st *State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.state)
}

// Update runs fn under the write lock and bumps the version when fn succeeds.
func (s *Store) Update(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(&s.state); err != nil {
		return err
	}
	s.state.Version++
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Data:     s.state.Data.Clone(),
		Degraded: s.state.Degraded,
		Notice:   s.state.Notice,
		Ready:    s.state.Ready,
		LoadedAt: s.state.LoadedAt,
		Version:  s.state.Version,
	}
}

// Version returns the mutation counter.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Version
}

// Clone deep-copies every collection.
func (d Data) Clone() Data {
	out := Data{
		Tasks:    slices.Clone(d.Tasks),
		Exams:    slices.Clone(d.Exams),
		Projects: cloneProjects(d.Projects),
	}
	if d.Shopping != nil {
		out.Shopping = make(map[string][]entities.ShoppingItem, len(d.Shopping))
		for list, items := range d.Shopping {
			out.Shopping[list] = slices.Clone(items)
		}
	}
	return out
}

// Lists returns the shopping list partitions in a stable order.
func (d *Data) Lists() []string {
	lists := make([]string, 0, len(d.Shopping))
	for l := range d.Shopping {
		lists = append(lists, l)
	}
	slices.Sort(lists)
	return lists
}

// FindTask returns the index of the task with id.
func (d *Data) FindTask(id string) (int, bool) {
	i := slices.IndexFunc(d.Tasks, func(t entities.Task) bool { return t.ID == id })
	return i, i >= 0
}

// FindExam returns the index of the exam with id.
func (d *Data) FindExam(id string) (int, bool) {
	i := slices.IndexFunc(d.Exams, func(e entities.Exam) bool { return e.ID == id })
	return i, i >= 0
}

// FindProject returns the index of the project with id.
func (d *Data) FindProject(id string) (int, bool) {
	i := slices.IndexFunc(d.Projects, func(p entities.Project) bool { return p.ID == id })
	return i, i >= 0
}

// FindItem returns the index of the item with id inside list.
func (d *Data) FindItem(list, id string) (int, bool) {
	i := slices.IndexFunc(d.Shopping[list], func(it entities.ShoppingItem) bool { return it.ID == id })
	return i, i >= 0
}

func cloneProjects(projects []entities.Project) []entities.Project {
	if projects == nil {
		return nil
	}
	out := make([]entities.Project, len(projects))
	for i := range projects {
		out[i] = projects[i].Clone()
	}
	return out
}
