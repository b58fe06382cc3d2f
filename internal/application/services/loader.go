package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

// StateService loads every collection into the store at startup
type StateService struct {
	coord  *Coordinator
	gw     ports.Gateway
	cache  ports.SnapshotCache
	timers *TimerService
	lists  []string
	clock  Clock
	logger *logger.Logger
}

// NewStateService creates a new state loader. timers may be nil, in which
// case orphaned stopwatches are left for the next start.
func NewStateService(coord *Coordinator, gw ports.Gateway, cache ports.SnapshotCache, timers *TimerService, lists []string, clock Clock, logger *logger.Logger) *StateService {
	return &StateService{
		coord:  coord,
		gw:     gw,
		cache:  cache,
		timers: timers,
		lists:  lists,
		clock:  clock,
		logger: logger.WithComponent("loader"),
	}
}

var _ ports.StateService = (*StateService)(nil)

// Load fetches all collections concurrently. When the store cannot be
// reached the last cached snapshot is used, or empty collections when there
// is none, and the state is marked degraded. Load only fails when ctx is done.
func (s *StateService) Load(ctx context.Context) error {
	started := s.clock.Now()

	data, err := s.fetch(ctx)
	degraded, notice := false, ""
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.WithError(err).Errorw("Failed to load agenda, falling back to cached snapshot")
		data, notice = s.fallback(ctx)
		degraded = true
	}

	_ = s.coord.Store().Update(func(st *state.State) error {
		data.Exams = mergeFileNames(data.Exams, st.Exams)
		st.Data = data
		st.Degraded = degraded
		st.Notice = notice
		st.Ready = false
		st.LoadedAt = s.clock.Now()
		return nil
	})

	switch {
	case degraded:
		// The store is unreachable; close the stopwatches locally only. The
		// next healthy load recovers the same rows from their stored start.
		for _, o := range closeOrphans(s.coord.Store(), s.clock.Now()) {
			s.logger.Warnw("Closed orphaned timer locally",
				"project_id", o.task.ProjectID,
				"task_id", o.task.ID,
				"recovered", o.added.String(),
			)
		}
	case s.timers != nil:
		if _, err := s.timers.RecoverOrphans(ctx); err != nil {
			s.logger.WithError(err).Warn("Some orphaned timers could not be persisted")
		}
	}

	_ = s.coord.Store().Update(func(st *state.State) error {
		st.Ready = true
		return nil
	})

	s.coord.Render("all", "load")
	if degraded {
		s.coord.Notify("warning", notice)
	}
	s.coord.Mirror(ctx)

	snap := s.coord.Store().Snapshot()
	s.logger.Infow("Agenda loaded",
		"tasks", len(snap.Tasks),
		"exams", len(snap.Exams),
		"projects", len(snap.Projects),
		"lists", len(snap.Shopping),
		"degraded", degraded,
		"took", s.clock.Now().Sub(started).String(),
	)
	return nil
}

// Snapshot returns a copy of the loaded state.
func (s *StateService) Snapshot() state.Snapshot {
	return s.coord.Store().Snapshot()
}

// Ready reports whether the first load has completed.
func (s *StateService) Ready() bool {
	ready := false
	s.coord.Store().Read(func(st *state.State) { ready = st.Ready })
	return ready
}

func (s *StateService) fetch(ctx context.Context) (state.Data, error) {
	var (
		tasks        []entities.Task
		exams        []entities.Exam
		items        []entities.ShoppingItem
		projects     []entities.Project
		projectTasks []entities.ProjectTask
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if tasks, err = s.gw.Tasks.Load(gctx); err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if exams, err = s.gw.Exams.Load(gctx); err != nil {
			return fmt.Errorf("load exams: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if items, err = s.gw.Shopping.Load(gctx); err != nil {
			return fmt.Errorf("load shopping items: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if projects, err = s.gw.Projects.Load(gctx); err != nil {
			return fmt.Errorf("load projects: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if projectTasks, err = s.gw.ProjectTasks.Load(gctx); err != nil {
			return fmt.Errorf("load project tasks: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return state.Data{}, err
	}

	return state.Data{
		Tasks:    nonNil(tasks),
		Exams:    nonNil(exams),
		Shopping: s.partition(items),
		Projects: s.attach(projects, projectTasks),
	}, nil
}

func (s *StateService) fallback(ctx context.Context) (state.Data, string) {
	cached, savedAt, err := s.cache.Load(ctx)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			s.logger.WithError(err).Warn("Failed to read snapshot cache")
		}
		return state.Data{
			Tasks:    []entities.Task{},
			Exams:    []entities.Exam{},
			Shopping: s.partition(nil),
			Projects: []entities.Project{},
		}, "Could not reach the database. Starting with an empty agenda; changes may not be saved."
	}

	for _, l := range s.lists {
		if cached.Shopping == nil {
			cached.Shopping = make(map[string][]entities.ShoppingItem)
		}
		if _, ok := cached.Shopping[l]; !ok {
			cached.Shopping[l] = []entities.ShoppingItem{}
		}
	}
	cached.Tasks = nonNil(cached.Tasks)
	cached.Exams = nonNil(cached.Exams)
	cached.Projects = nonNil(cached.Projects)

	return cached, fmt.Sprintf("Could not reach the database. Showing the copy saved %s; changes may not be saved.",
		savedAt.Local().Format(time.DateTime))
}

// partition groups items by list. Configured lists always exist; items of
// other lists are kept under their own name.
func (s *StateService) partition(items []entities.ShoppingItem) map[string][]entities.ShoppingItem {
	out := make(map[string][]entities.ShoppingItem, len(s.lists))
	for _, l := range s.lists {
		out[l] = []entities.ShoppingItem{}
	}
	for _, it := range items {
		if _, ok := out[it.List]; !ok {
			s.logger.Debugw("Shopping item in unconfigured list", "list", it.List, "item_id", it.ID)
		}
		out[it.List] = append(out[it.List], it)
	}
	return out
}

// attach nests each project task under its project. Tasks whose project
// does not exist are dropped.
func (s *StateService) attach(projects []entities.Project, tasks []entities.ProjectTask) []entities.Project {
	index := make(map[string]int, len(projects))
	for i := range projects {
		projects[i].Tasks = []entities.ProjectTask{}
		index[projects[i].ID] = i
	}
	for _, t := range tasks {
		i, ok := index[t.ProjectID]
		if !ok {
			s.logger.Warnw("Dropping project task without project", "task_id", t.ID, "project_id", t.ProjectID)
			continue
		}
		projects[i].Tasks = append(projects[i].Tasks, t)
	}
	return nonNil(projects)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
