package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

var errRemote = errors.New("remote unavailable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// journal records remote calls across repositories in order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...interface{}) {
	j.mu.Lock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// memRepo is an in-memory repository with failure injection.
type memRepo[T any] struct {
	name    string
	id      func(T) string
	journal *journal

	mu        sync.Mutex
	rows      map[string]T
	order     []string
	loadErr   error
	upsertErr error
	deleteErr map[string]error
	upsertFor map[string]error

	// onUpsert runs before each upsert takes the repo lock. Set it before
	// the repo is shared.
	onUpsert func(T)
}

func newMemRepo[T any](name string, j *journal, id func(T) string) *memRepo[T] {
	return &memRepo[T]{
		name:      name,
		id:        id,
		journal:   j,
		rows:      make(map[string]T),
		deleteErr: make(map[string]error),
		upsertFor: make(map[string]error),
	}
}

func (r *memRepo[T]) seed(rows ...T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		id := r.id(row)
		if _, ok := r.rows[id]; !ok {
			r.order = append(r.order, id)
		}
		r.rows[id] = row
	}
}

func (r *memRepo[T]) Load(ctx context.Context) ([]T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	out := make([]T, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.rows[id])
	}
	return out, nil
}

func (r *memRepo[T]) Upsert(ctx context.Context, row T) (T, error) {
	if r.onUpsert != nil {
		r.onUpsert(row)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.id(row)
	r.journal.add("upsert %s %s", r.name, id)
	if err := r.upsertFor[id]; err != nil {
		return row, err
	}
	if r.upsertErr != nil {
		return row, r.upsertErr
	}
	if _, ok := r.rows[id]; !ok {
		r.order = append(r.order, id)
	}
	r.rows[id] = row
	return row, nil
}

func (r *memRepo[T]) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal.add("delete %s %s", r.name, id)
	if err := r.deleteErr[id]; err != nil {
		return err
	}
	delete(r.rows, id)
	for i, cur := range r.order {
		if cur == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memRepo[T]) get(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	return row, ok
}

func (r *memRepo[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type projectTaskRepo struct {
	*memRepo[entities.ProjectTask]
}

func (r projectTaskRepo) LoadByProject(ctx context.Context, projectID string) ([]entities.ProjectTask, error) {
	all, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	var out []entities.ProjectTask
	for _, t := range all {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.Event
}

func (p *recordingPublisher) Publish(e ports.Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) all() []ports.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.Event(nil), p.events...)
}

func (p *recordingPublisher) ofKind(kind ports.EventKind) []ports.Event {
	var out []ports.Event
	for _, e := range p.all() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type memCache struct {
	mu      sync.Mutex
	data    *state.Data
	savedAt time.Time
	saves   int
	loadErr error
}

func (c *memCache) Save(ctx context.Context, data state.Data) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := data.Clone()
	c.data = &d
	c.savedAt = time.Now()
	c.saves++
	return nil
}

func (c *memCache) Load(ctx context.Context) (state.Data, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return state.Data{}, time.Time{}, c.loadErr
	}
	if c.data == nil {
		return state.Data{}, time.Time{}, ports.ErrCacheMiss
	}
	return c.data.Clone(), c.savedAt, nil
}

func (c *memCache) Close() error { return nil }

func (c *memCache) saveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

type countingMetrics struct {
	mu        sync.Mutex
	applied   int
	failed    int
	rollbacks int
	autosaved int
	orphans   int
	recovered time.Duration
}

func (m *countingMetrics) MutationApplied(collection, op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failed++
		return
	}
	m.applied++
}

func (m *countingMetrics) RolledBack(collection, op string) {
	m.mu.Lock()
	m.rollbacks++
	m.mu.Unlock()
}

func (m *countingMetrics) Autosaved(rows int, err error) {
	m.mu.Lock()
	m.autosaved += rows
	m.mu.Unlock()
}

func (m *countingMetrics) OrphanRecovered(d time.Duration) {
	m.mu.Lock()
	m.orphans++
	m.recovered += d
	m.mu.Unlock()
}

var testLists = []string{"supermarket", "pharmacy"}

// harness wires every service over in-memory fakes.
type harness struct {
	clock   *fakeClock
	journal *journal
	store   *state.Store
	pub     *recordingPublisher
	cache   *memCache
	metrics *countingMetrics
	log     *logger.Logger
	coord   *Coordinator

	tasks        *memRepo[entities.Task]
	exams        *memRepo[entities.Exam]
	shopping     *memRepo[entities.ShoppingItem]
	projects     *memRepo[entities.Project]
	projectTasks projectTaskRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:   newFakeClock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)),
		journal: &journal{},
		store:   state.NewStore(testLists),
		pub:     &recordingPublisher{},
		cache:   &memCache{},
		metrics: &countingMetrics{},
		log:     logger.NewNop(),
	}
	h.coord = NewCoordinator(h.store, h.pub, h.cache, h.metrics, h.log)

	h.tasks = newMemRepo("tasks", h.journal, func(t entities.Task) string { return t.ID })
	h.exams = newMemRepo("exams", h.journal, func(e entities.Exam) string { return e.ID })
	h.shopping = newMemRepo("shopping_items", h.journal, func(i entities.ShoppingItem) string { return i.ID })
	h.projects = newMemRepo("projects", h.journal, func(p entities.Project) string { return p.ID })
	h.projectTasks = projectTaskRepo{newMemRepo("project_tasks", h.journal, func(t entities.ProjectTask) string { return t.ID })}
	return h
}

func (h *harness) gateway() ports.Gateway {
	return ports.Gateway{
		Tasks:        h.tasks,
		Exams:        h.exams,
		Shopping:     h.shopping,
		Projects:     h.projects,
		ProjectTasks: h.projectTasks,
	}
}

// seedState puts data straight into the store, bypassing the coordinator.
func (h *harness) seedState(t *testing.T, fn func(st *state.State)) {
	t.Helper()
	if err := h.store.Update(func(st *state.State) error {
		fn(st)
		return nil
	}); err != nil {
		t.Fatalf("seed state: %v", err)
	}
}
