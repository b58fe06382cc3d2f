package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

// ErrPersistFailed wraps every error returned after a local change was rolled back.
var ErrPersistFailed = errors.New("could not save changes")

// Mutation describes one optimistic change.
type Mutation struct {
	Op         string
	Collection string

	// Mutate runs under the state lock. It must check everything that can
	// fail before touching the state, capture a restore point and then
	// apply the change. An error means nothing was changed.
	Mutate func(st *state.State) (state.Restore, error)

	// Persist writes the change remotely. The state lock is not held.
	Persist func(ctx context.Context) error

	// Refresh optionally reloads the collection after a successful write.
	// Its failures are only logged.
	Refresh func(ctx context.Context) error

	// OnFailure runs before the local restore when Persist fails, for
	// compensating remote writes that already succeeded.
	OnFailure func(ctx context.Context, cause error) error
}

// Coordinator applies mutations locally first, renders, persists and rolls
// back the local change when persisting fails.
type Coordinator struct {
	store     *state.Store
	publisher ports.Publisher
	cache     ports.SnapshotCache
	metrics   ports.Metrics
	logger    *logger.Logger
}

// NewCoordinator creates a coordinator over store.
func NewCoordinator(store *state.Store, publisher ports.Publisher, cache ports.SnapshotCache, metrics ports.Metrics, logger *logger.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		publisher: publisher,
		cache:     cache,
		metrics:   metrics,
		logger:    logger.WithComponent("coordinator"),
	}
}

// Apply runs the mutation. Local mutation happens before the render, which
// happens before the remote call.
func (c *Coordinator) Apply(ctx context.Context, m Mutation) error {
	var restore state.Restore
	err := c.store.Update(func(st *state.State) error {
		r, err := m.Mutate(st)
		if err != nil {
			return err
		}
		restore = r
		return nil
	})
	if err != nil {
		return err
	}

	c.Render(m.Collection, m.Op)

	if m.Persist != nil {
		if err := m.Persist(ctx); err != nil {
			return c.rollback(ctx, m, restore, err)
		}
	}

	c.metrics.MutationApplied(m.Collection, m.Op, nil)
	c.logger.LogMutation(m.Collection, m.Op, nil)

	if m.Refresh != nil {
		if err := m.Refresh(ctx); err != nil {
			c.logger.WithError(err).Warnw("Refresh after write failed", "collection", m.Collection, "op", m.Op)
		} else {
			c.Render(m.Collection, "refresh")
		}
	}

	c.Mirror(ctx)
	return nil
}

func (c *Coordinator) rollback(ctx context.Context, m Mutation, restore state.Restore, cause error) error {
	if m.OnFailure != nil {
		cause = multierr.Append(cause, m.OnFailure(ctx, cause))
	}

	_ = c.store.Update(func(st *state.State) error {
		if restore != nil {
			restore(st)
		}
		return nil
	})

	c.metrics.RolledBack(m.Collection, m.Op)
	c.metrics.MutationApplied(m.Collection, m.Op, cause)
	c.logger.LogMutation(m.Collection, m.Op, cause)

	c.Render(m.Collection, "rollback")
	c.Notify("error", fmt.Sprintf("Could not save %s, the change was undone", m.Collection))

	return fmt.Errorf("%w: %s %s: %w", ErrPersistFailed, m.Op, m.Collection, cause)
}

// Render signals that a collection changed and must be redrawn.
func (c *Coordinator) Render(collection, op string) {
	c.publisher.Publish(ports.Event{
		Kind:       ports.EventChange,
		Collection: collection,
		Op:         op,
		Version:    c.store.Version(),
	})
}

// Notify publishes a user-facing notice.
func (c *Coordinator) Notify(level, message string) {
	c.publisher.Publish(ports.Event{
		Kind:    ports.EventNotice,
		Level:   level,
		Message: message,
	})
}

// Mirror copies the current state into the snapshot cache. Failures are only logged.
func (c *Coordinator) Mirror(ctx context.Context) {
	snap := c.store.Snapshot()
	if snap.Degraded {
		return
	}
	if err := c.cache.Save(context.WithoutCancel(ctx), snap.Data); err != nil {
		c.logger.WithError(err).Warn("Failed to mirror state to snapshot cache")
	}
}

// Store exposes the state store the coordinator mutates.
func (c *Coordinator) Store() *state.Store {
	return c.store
}
