package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/infrastructure/config"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

const shutdownAutosaveTimeout = 5 * time.Second

// TimerService drives the project task stopwatches
type TimerService struct {
	coord     *Coordinator
	projects  ports.ProjectRepository
	tasks     ports.ProjectTaskRepository
	clock     Clock
	publisher ports.Publisher
	metrics   ports.Metrics
	logger    *logger.Logger

	tick     time.Duration
	autosave time.Duration

	// rows serializes task row writes so autosave never lands after a pause.
	rows sync.Map
}

// NewTimerService creates a new timer service
func NewTimerService(
	coord *Coordinator,
	projects ports.ProjectRepository,
	tasks ports.ProjectTaskRepository,
	clock Clock,
	publisher ports.Publisher,
	metrics ports.Metrics,
	cfg config.TimersConfig,
	logger *logger.Logger,
) *TimerService {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Autosave <= 0 {
		cfg.Autosave = 5 * time.Second
	}
	return &TimerService{
		coord:     coord,
		projects:  projects,
		tasks:     tasks,
		clock:     clock,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.WithComponent("timer"),
		tick:      cfg.Tick,
		autosave:  cfg.Autosave,
	}
}

var _ ports.TimerService = (*TimerService)(nil)

// Start runs the stopwatch of a task. The project row is touched first,
// then the task row is written.
func (s *TimerService) Start(ctx context.Context, projectID, taskID string) (entities.ProjectTask, error) {
	var (
		task entities.ProjectTask
		row  entities.Project
	)

	err := s.coord.Apply(ctx, Mutation{
		Op:         "start",
		Collection: collectionProjects,
		Mutate: func(st *state.State) (state.Restore, error) {
			project, t, err := locate(st, projectID, taskID)
			if err != nil {
				return nil, err
			}
			if t.IsDone() {
				return nil, fmt.Errorf("start task %s: %w", taskID, entities.ErrTaskAlreadyCompleted)
			}
			if t.IsRunning {
				return nil, fmt.Errorf("start task %s: %w", taskID, entities.ErrTimerAlreadyRunning)
			}

			restore := state.CaptureProject(st, projectID)
			now := s.clock.Now()
			if err := t.Start(now); err != nil {
				return nil, err
			}
			t.UpdatedAt = now
			project.UpdatedAt = now
			task = t.Clone()
			row = projectRow(*project)
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			if _, err := s.projects.Upsert(ctx, row); err != nil {
				return err
			}
			_, err := s.tasks.Upsert(ctx, task)
			return err
		},
	})
	if err != nil {
		return entities.ProjectTask{}, err
	}

	s.logger.Infow("Timer started", "project_id", projectID, "task_id", taskID, "time_spent", task.TimeSpent)
	return task, nil
}

// Pause stops the stopwatch and folds the running segment into the spent time.
func (s *TimerService) Pause(ctx context.Context, projectID, taskID string) (entities.ProjectTask, error) {
	task, err := s.stop(ctx, "pause", projectID, taskID, func(t *entities.ProjectTask, now time.Time) error {
		if !t.IsRunning {
			return fmt.Errorf("pause task %s: %w", taskID, entities.ErrTimerNotRunning)
		}
		return t.Pause(now)
	})
	if err != nil {
		return entities.ProjectTask{}, err
	}

	s.logger.Infow("Timer paused", "project_id", projectID, "task_id", taskID, "time_spent", task.TimeSpent)
	return task, nil
}

// Finish accrues any running segment and marks the task done.
func (s *TimerService) Finish(ctx context.Context, projectID, taskID string) (entities.ProjectTask, error) {
	task, err := s.stop(ctx, "finish", projectID, taskID, func(t *entities.ProjectTask, now time.Time) error {
		if t.IsDone() && !t.IsRunning {
			return fmt.Errorf("finish task %s: %w", taskID, entities.ErrTaskAlreadyCompleted)
		}
		return t.Finish(now)
	})
	if err != nil {
		return entities.ProjectTask{}, err
	}

	s.logger.Infow("Timer finished", "project_id", projectID, "task_id", taskID, "time_spent", task.TimeSpent)
	return task, nil
}

// stop applies a transition that ends with the stopwatch stopped. The
// transition must leave t untouched when it fails.
func (s *TimerService) stop(ctx context.Context, op, projectID, taskID string, transition func(t *entities.ProjectTask, now time.Time) error) (entities.ProjectTask, error) {
	var task entities.ProjectTask

	err := s.coord.Apply(ctx, Mutation{
		Op:         op,
		Collection: collectionProjects,
		Mutate: func(st *state.State) (state.Restore, error) {
			_, t, err := locate(st, projectID, taskID)
			if err != nil {
				return nil, err
			}
			restore := state.CaptureProject(st, projectID)
			now := s.clock.Now()
			if err := transition(t, now); err != nil {
				return nil, err
			}
			t.UpdatedAt = now
			task = t.Clone()
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			mu := s.rowLock(task.ID)
			mu.Lock()
			defer mu.Unlock()
			_, err := s.tasks.Upsert(ctx, task)
			return err
		},
	})
	return task, err
}

func (s *TimerService) rowLock(taskID string) *sync.Mutex {
	mu, _ := s.rows.LoadOrStore(taskID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Running returns every running stopwatch with its display elapsed time.
func (s *TimerService) Running() []ports.RunningTimer {
	now := s.clock.Now()
	running := []ports.RunningTimer{}
	s.coord.Store().Read(func(st *state.State) {
		for _, p := range st.Projects {
			for i := range p.Tasks {
				if !p.Tasks[i].IsRunning {
					continue
				}
				running = append(running, ports.RunningTimer{
					ProjectID: p.ID,
					TaskID:    p.Tasks[i].ID,
					Elapsed:   p.Tasks[i].Elapsed(now),
				})
			}
		}
	})
	return running
}

// Tick publishes the elapsed time of every running stopwatch. Nothing is persisted.
func (s *TimerService) Tick() []ports.RunningTimer {
	running := s.Running()
	if len(running) > 0 {
		s.publisher.Publish(ports.Event{
			Kind: ports.EventTick,
			Data: running,
			At:   s.clock.Now(),
		})
	}
	return running
}

// Autosave writes every running task row as it is. Failures are logged and
// never roll anything back.
func (s *TimerService) Autosave(ctx context.Context) error {
	var running []entities.ProjectTask
	s.coord.Store().Read(func(st *state.State) {
		for _, p := range st.Projects {
			for _, t := range p.Tasks {
				if t.IsRunning {
					running = append(running, t.Clone())
				}
			}
		}
	})
	if len(running) == 0 {
		return nil
	}

	var (
		errs  error
		saved int
	)
	for _, t := range running {
		ok, err := s.saveRunning(ctx, t)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("autosave task %s: %w", t.ID, err))
			continue
		}
		if ok {
			saved++
		}
	}

	s.metrics.Autosaved(saved, errs)
	if errs != nil {
		s.logger.WithError(errs).Warnw("Timer autosave failed", "saved", saved, "failed", len(multierr.Errors(errs)))
		return errs
	}
	s.logger.Debugw("Timers autosaved", "saved", saved)
	return nil
}

// saveRunning writes t unless it stopped since the scan. A stop that
// persists concurrently waits for the row lock, so its row is written last.
func (s *TimerService) saveRunning(ctx context.Context, t entities.ProjectTask) (bool, error) {
	mu := s.rowLock(t.ID)
	mu.Lock()
	defer mu.Unlock()

	if !s.stillRunning(t) {
		return false, nil
	}
	if _, err := s.tasks.Upsert(ctx, t); err != nil {
		return false, err
	}
	return true, nil
}

func (s *TimerService) stillRunning(t entities.ProjectTask) bool {
	running := false
	s.coord.Store().Read(func(st *state.State) {
		pi, ok := st.FindProject(t.ProjectID)
		if !ok {
			return
		}
		ti, ok := st.Projects[pi].FindTask(t.ID)
		if !ok {
			return
		}
		cur := st.Projects[pi].Tasks[ti]
		running = cur.IsRunning && cur.StartTime != nil && t.StartTime != nil && cur.StartTime.Equal(*t.StartTime)
	})
	return running
}

type orphan struct {
	task  entities.ProjectTask
	added time.Duration
}

// closeOrphans stops every running stopwatch in the store, accruing the
// time since its start.
func closeOrphans(store *state.Store, now time.Time) []orphan {
	var orphans []orphan
	_ = store.Update(func(st *state.State) error {
		for pi := range st.Projects {
			tasks := st.Projects[pi].Tasks
			for ti := range tasks {
				if !tasks[ti].IsRunning {
					continue
				}
				added := tasks[ti].Recover(now)
				tasks[ti].UpdatedAt = now
				orphans = append(orphans, orphan{task: tasks[ti].Clone(), added: added})
			}
		}
		return nil
	})
	return orphans
}

// RecoverOrphans closes every stopwatch left running by a previous session,
// adding the time since its start, and persists the result.
func (s *TimerService) RecoverOrphans(ctx context.Context) (ports.RecoveryReport, error) {
	orphans := closeOrphans(s.coord.Store(), s.clock.Now())

	var report ports.RecoveryReport
	if len(orphans) == 0 {
		return report, nil
	}

	var errs error
	for _, o := range orphans {
		report.Recovered++
		report.Added += o.added
		s.metrics.OrphanRecovered(o.added)
		s.logger.Warnw("Recovered orphaned timer",
			"project_id", o.task.ProjectID,
			"task_id", o.task.ID,
			"recovered", o.added.String(),
			"time_spent", o.task.TimeSpent.String(),
		)

		if _, err := s.tasks.Upsert(ctx, o.task); err != nil {
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("persist recovered task %s: %w", o.task.ID, err))
		}
	}

	s.coord.Render(collectionProjects, "recover")
	if errs != nil {
		s.logger.WithError(errs).Errorw("Failed to persist recovered timers", "failed", report.Failed)
		s.coord.Notify("warning", fmt.Sprintf("%d recovered timers could not be saved", report.Failed))
	}
	return report, errs
}

// Run publishes ticks and schedules autosaves until ctx is cancelled. At
// most one autosave is pending at a time.
func (s *TimerService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	var pending *time.Timer
	var save <-chan time.Time

	s.logger.Infow("Timer loop started", "tick", s.tick.String(), "autosave", s.autosave.String())

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			s.flush(ctx)
			s.logger.Info("Timer loop stopped")
			return nil

		case <-ticker.C:
			if running := s.Tick(); len(running) > 0 && save == nil {
				pending = time.NewTimer(s.autosave)
				save = pending.C
			}

		case <-save:
			pending, save = nil, nil
			_ = s.Autosave(ctx)
		}
	}
}

// flush runs a last autosave on shutdown.
func (s *TimerService) flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownAutosaveTimeout)
	defer cancel()
	_ = s.Autosave(ctx)
}

// locate returns pointers into st for the project and task.
func locate(st *state.State, projectID, taskID string) (*entities.Project, *entities.ProjectTask, error) {
	pi, ok := st.FindProject(projectID)
	if !ok {
		return nil, nil, fmt.Errorf("project %s: %w", projectID, entities.ErrProjectNotFound)
	}
	project := &st.Projects[pi]
	ti, ok := project.FindTask(taskID)
	if !ok {
		return nil, nil, fmt.Errorf("task %s in project %s: %w", taskID, projectID, entities.ErrProjectTaskNotFound)
	}
	return project, &project.Tasks[ti], nil
}
