package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/infrastructure/config"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

// Reminder is the payload of a reminder event.
type Reminder struct {
	Kind    string    `json:"kind"`
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Due     time.Time `json:"due"`
	Minutes int       `json:"minutes"`
}

// ReminderService announces tasks with an alarm and exams shortly before they are due
type ReminderService struct {
	store     *state.Store
	publisher ports.Publisher
	clock     Clock
	loc       *time.Location
	logger    *logger.Logger

	lead     time.Duration
	interval time.Duration

	mu    sync.Mutex
	fired map[string]bool
}

// NewReminderService creates a new reminder service
func NewReminderService(store *state.Store, publisher ports.Publisher, clock Clock, loc *time.Location, cfg config.RemindersConfig, logger *logger.Logger) *ReminderService {
	if loc == nil {
		loc = time.Local
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = 15 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &ReminderService{
		store:     store,
		publisher: publisher,
		clock:     clock,
		loc:       loc,
		logger:    logger.WithComponent("reminders"),
		lead:      cfg.LeadTime,
		interval:  cfg.Interval,
		fired:     make(map[string]bool),
	}
}

// Check fires the reminders that are due now. Each entry fires at most once
// per process.
func (s *ReminderService) Check() []Reminder {
	now := s.clock.Now().In(s.loc)
	lead := int(s.lead / time.Minute)

	var candidates []Reminder
	s.store.Read(func(st *state.State) {
		for _, t := range st.Tasks {
			if !t.Alarm || t.IsDone() {
				continue
			}
			if due, ok := t.Due(s.loc); ok {
				candidates = append(candidates, Reminder{Kind: "task", ID: t.ID, Title: t.Title, Due: due})
			}
		}
		for _, e := range st.Exams {
			if due, ok := e.Due(s.loc); ok {
				candidates = append(candidates, Reminder{Kind: "exam", ID: e.ID, Title: e.Type, Due: due})
			}
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	var fired []Reminder
	for _, r := range candidates {
		minutes := int(math.Floor(r.Due.Sub(now).Minutes()))
		if minutes < 0 || minutes != lead {
			continue
		}
		key := r.Kind + ":" + r.ID
		if s.fired[key] {
			continue
		}
		s.fired[key] = true
		r.Minutes = minutes
		fired = append(fired, r)

		s.publisher.Publish(ports.Event{
			Kind:    ports.EventReminder,
			Level:   "info",
			Message: fmt.Sprintf("%s starts in %d minutes", r.Title, minutes),
			Data:    r,
			At:      now,
		})
		s.logger.Infow("Reminder fired", "kind", r.Kind, "id", r.ID, "due", r.Due)
	}
	return fired
}

// Run checks for reminders every interval until ctx is cancelled.
func (s *ReminderService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Check()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Check()
		}
	}
}
