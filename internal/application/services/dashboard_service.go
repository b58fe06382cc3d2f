package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/ports"
)

const upcomingExamLimit = 3

// DashboardService builds the summary view from the loaded state
type DashboardService struct {
	store *state.Store
	clock Clock
	loc   *time.Location
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(store *state.Store, clock Clock, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{store: store, clock: clock, loc: loc}
}

var _ ports.DashboardService = (*DashboardService)(nil)

// Build computes today's, urgent and overdue tasks, the next exams, the
// tracked time per project and the open shopping total.
func (s *DashboardService) Build(ctx context.Context) ports.Dashboard {
	now := s.clock.Now().In(s.loc)
	today := now.Format(entities.DateLayout)

	d := ports.Dashboard{
		Today:         []entities.Task{},
		Urgent:        []entities.Task{},
		Overdue:       []entities.Task{},
		UpcomingExams: []entities.Exam{},
		Projects:      []ports.ProjectSummary{},
		GeneratedAt:   now,
	}

	s.store.Read(func(st *state.State) {
		d.Degraded = st.Degraded

		for _, t := range st.Tasks {
			if t.IsDone() {
				continue
			}
			if t.Date == today {
				d.Today = append(d.Today, t)
			}
			if t.Priority == entities.PriorityUrgent {
				d.Urgent = append(d.Urgent, t)
			}
			if t.IsOverdue(now) {
				d.Overdue = append(d.Overdue, t)
			}
		}

		for _, e := range st.Exams {
			if e.Date >= today {
				d.UpcomingExams = append(d.UpcomingExams, e)
			}
		}

		for _, p := range st.Projects {
			summary := ports.ProjectSummary{
				ID:      p.ID,
				Name:    p.Name,
				Tasks:   len(p.Tasks),
				Tracked: p.TrackedTime(now),
			}
			for i := range p.Tasks {
				if p.Tasks[i].IsDone() {
					summary.Done++
				}
				if p.Tasks[i].IsRunning {
					summary.Running = true
				}
			}
			d.Projects = append(d.Projects, summary)
		}

		for _, items := range st.Shopping {
			d.ShoppingTotal += entities.ShoppingTotal(items)
		}
	})

	slices.SortStableFunc(d.UpcomingExams, func(a, b entities.Exam) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.Time, b.Time)
	})
	if len(d.UpcomingExams) > upcomingExamLimit {
		d.UpcomingExams = d.UpcomingExams[:upcomingExamLimit]
	}

	return d
}
