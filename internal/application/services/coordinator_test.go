package services

import (
	"context"
	"errors"
	"testing"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/ports"
)

func TestCoordinatorRendersBeforePersisting(t *testing.T) {
	h := newHarness(t)

	var eventsAtPersist int
	err := h.coord.Apply(context.Background(), Mutation{
		Op:         "create",
		Collection: collectionTasks,
		Mutate: func(st *state.State) (state.Restore, error) {
			restore := state.CaptureTasks(st)
			st.Tasks = append(st.Tasks, entities.Task{ID: "t1", Title: "Write report"})
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			eventsAtPersist = len(h.pub.ofKind(ports.EventChange))
			var visible bool
			h.store.Read(func(st *state.State) { _, visible = st.FindTask("t1") })
			if !visible {
				t.Error("local change not visible while persisting")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if eventsAtPersist != 1 {
		t.Errorf("change events before persist = %d, want 1", eventsAtPersist)
	}
	if h.cache.saveCount() != 1 {
		t.Errorf("cache saves = %d, want 1", h.cache.saveCount())
	}
	if h.metrics.applied != 1 || h.metrics.rollbacks != 0 {
		t.Errorf("metrics applied=%d rollbacks=%d", h.metrics.applied, h.metrics.rollbacks)
	}
}

func TestCoordinatorRollbackRestoresState(t *testing.T) {
	h := newHarness(t)
	h.seedState(t, func(st *state.State) {
		st.Tasks = []entities.Task{{ID: "t1", Title: "Existing", Status: entities.TaskStatusPending}}
	})
	before := h.store.Snapshot()

	err := h.coord.Apply(context.Background(), Mutation{
		Op:         "update",
		Collection: collectionTasks,
		Mutate: func(st *state.State) (state.Restore, error) {
			restore := state.CaptureTasks(st)
			st.Tasks[0].Title = "Changed"
			st.Tasks = append(st.Tasks, entities.Task{ID: "t2"})
			return restore, nil
		},
		Persist: func(ctx context.Context) error { return errRemote },
	})
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("Apply() error = %v, want ErrPersistFailed", err)
	}
	if !errors.Is(err, errRemote) {
		t.Errorf("Apply() error = %v, want the remote cause wrapped", err)
	}

	after := h.store.Snapshot()
	if len(after.Tasks) != 1 || after.Tasks[0].Title != before.Tasks[0].Title {
		t.Errorf("tasks after rollback = %+v, want %+v", after.Tasks, before.Tasks)
	}

	changes := h.pub.ofKind(ports.EventChange)
	if len(changes) != 2 || changes[1].Op != "rollback" {
		t.Errorf("change events = %+v, want mutation then rollback", changes)
	}
	notices := h.pub.ofKind(ports.EventNotice)
	if len(notices) != 1 || notices[0].Level != "error" {
		t.Errorf("notices = %+v, want one error notice", notices)
	}
	if h.metrics.rollbacks != 1 {
		t.Errorf("rollbacks = %d, want 1", h.metrics.rollbacks)
	}
	if h.cache.saveCount() != 0 {
		t.Errorf("cache saves = %d, want 0 after rollback", h.cache.saveCount())
	}
}

func TestCoordinatorMutateErrorChangesNothing(t *testing.T) {
	h := newHarness(t)
	persisted := false

	err := h.coord.Apply(context.Background(), Mutation{
		Op:         "delete",
		Collection: collectionTasks,
		Mutate: func(st *state.State) (state.Restore, error) {
			return nil, entities.ErrTaskNotFound
		},
		Persist: func(ctx context.Context) error {
			persisted = true
			return nil
		},
	})
	if !errors.Is(err, entities.ErrTaskNotFound) {
		t.Fatalf("Apply() error = %v, want ErrTaskNotFound", err)
	}
	if persisted {
		t.Error("Persist ran after Mutate failed")
	}
	if n := len(h.pub.all()); n != 0 {
		t.Errorf("published %d events, want 0", n)
	}
	if v := h.store.Version(); v != 0 {
		t.Errorf("version = %d, want 0", v)
	}
}

func TestCoordinatorCompensationErrorsAreReported(t *testing.T) {
	h := newHarness(t)
	compensateErr := errors.New("compensation failed")

	err := h.coord.Apply(context.Background(), Mutation{
		Op:         "delete",
		Collection: collectionProjects,
		Mutate: func(st *state.State) (state.Restore, error) {
			return state.CaptureProjects(st), nil
		},
		Persist: func(ctx context.Context) error { return errRemote },
		OnFailure: func(ctx context.Context, cause error) error {
			if !errors.Is(cause, errRemote) {
				t.Errorf("OnFailure cause = %v", cause)
			}
			return compensateErr
		},
	})
	if !errors.Is(err, errRemote) || !errors.Is(err, compensateErr) {
		t.Errorf("Apply() error = %v, want both causes", err)
	}
}

func TestCoordinatorRefreshFailureIsOnlyLogged(t *testing.T) {
	h := newHarness(t)

	err := h.coord.Apply(context.Background(), Mutation{
		Op:         "create",
		Collection: collectionTasks,
		Mutate: func(st *state.State) (state.Restore, error) {
			return state.CaptureTasks(st), nil
		},
		Persist: func(ctx context.Context) error { return nil },
		Refresh: func(ctx context.Context) error { return errRemote },
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	warned := false
	for _, e := range h.log.Recent("warn") {
		if e.Message == "Refresh after write failed" {
			warned = true
		}
	}
	if !warned {
		t.Error("refresh failure was not logged")
	}
}

func TestCoordinatorSkipsMirrorWhenDegraded(t *testing.T) {
	h := newHarness(t)
	h.seedState(t, func(st *state.State) { st.Degraded = true })

	h.coord.Mirror(context.Background())

	if h.cache.saveCount() != 0 {
		t.Error("degraded state was written to the cache")
	}
}
