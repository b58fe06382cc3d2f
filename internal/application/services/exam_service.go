package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

const collectionExams = "exams"

// ExamService handles exam operations
type ExamService struct {
	coord  *Coordinator
	repo   ports.ExamRepository
	clock  Clock
	logger *logger.Logger
}

// NewExamService creates a new exam service
func NewExamService(coord *Coordinator, repo ports.ExamRepository, clock Clock, logger *logger.Logger) *ExamService {
	return &ExamService{
		coord:  coord,
		repo:   repo,
		clock:  clock,
		logger: logger.WithComponent("exams"),
	}
}

var _ ports.ExamService = (*ExamService)(nil)

// List returns every exam in agenda order.
func (s *ExamService) List(ctx context.Context) []entities.Exam {
	var out []entities.Exam
	s.coord.Store().Read(func(st *state.State) {
		out = slices.Clone(st.Exams)
	})
	if out == nil {
		out = []entities.Exam{}
	}
	return out
}

// Save creates the exam, or updates it when form.ID names an existing exam.
func (s *ExamService) Save(ctx context.Context, form ports.ExamForm) (entities.Exam, error) {
	if err := validateForm(form); err != nil {
		return entities.Exam{}, err
	}

	now := s.clock.Now()
	exam := entities.Exam{
		ID:        form.ID,
		Type:      strings.TrimSpace(form.Type),
		Date:      form.Date,
		Time:      form.Time,
		Location:  strings.TrimSpace(form.Location),
		Notes:     strings.TrimSpace(form.Notes),
		FileName:  form.FileName,
		UpdatedAt: now,
	}
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}

	op := "create"
	s.coord.Store().Read(func(st *state.State) {
		if _, ok := st.FindExam(exam.ID); ok {
			op = "update"
		}
	})

	err := s.coord.Apply(ctx, Mutation{
		Op:         op,
		Collection: collectionExams,
		Mutate: func(st *state.State) (state.Restore, error) {
			restore := state.CaptureExams(st)
			if i, ok := st.FindExam(exam.ID); ok {
				exam.CreatedAt = st.Exams[i].CreatedAt
				if exam.FileName == "" {
					exam.FileName = st.Exams[i].FileName
				}
				st.Exams[i] = exam
			} else {
				exam.CreatedAt = now
				st.Exams = append(st.Exams, exam)
			}
			sortExams(st.Exams)
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			_, err := s.repo.Upsert(ctx, exam)
			return err
		},
		Refresh: s.refresh,
	})
	if err != nil {
		return entities.Exam{}, err
	}

	s.logger.Infow("Exam saved", "exam_id", exam.ID, "op", op, "type", exam.Type)
	return s.current(exam), nil
}

// Delete removes the exam.
func (s *ExamService) Delete(ctx context.Context, id string) error {
	err := s.coord.Apply(ctx, Mutation{
		Op:         "delete",
		Collection: collectionExams,
		Mutate: func(st *state.State) (state.Restore, error) {
			i, ok := st.FindExam(id)
			if !ok {
				return nil, fmt.Errorf("exam %s: %w", id, entities.ErrExamNotFound)
			}
			restore := state.CaptureExams(st)
			st.Exams = slices.Delete(st.Exams, i, i+1)
			return restore, nil
		},
		Persist: func(ctx context.Context) error {
			return s.repo.Delete(ctx, id)
		},
		Refresh: s.refresh,
	})
	if err != nil {
		return err
	}

	s.logger.Infow("Exam deleted", "exam_id", id)
	return nil
}

// refresh reloads exams. The attachment name only lives locally, so it is
// carried over from the current copy.
func (s *ExamService) refresh(ctx context.Context) error {
	exams, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	sortExams(exams)
	return s.coord.Store().Update(func(st *state.State) error {
		st.Exams = mergeFileNames(exams, st.Exams)
		return nil
	})
}

func (s *ExamService) current(exam entities.Exam) entities.Exam {
	s.coord.Store().Read(func(st *state.State) {
		if i, ok := st.FindExam(exam.ID); ok {
			exam = st.Exams[i]
		}
	})
	return exam
}

// mergeFileNames copies FileName from previous into the matching loaded exams.
func mergeFileNames(loaded, previous []entities.Exam) []entities.Exam {
	names := make(map[string]string, len(previous))
	for _, e := range previous {
		if e.FileName != "" {
			names[e.ID] = e.FileName
		}
	}
	for i := range loaded {
		if name, ok := names[loaded[i].ID]; ok {
			loaded[i].FileName = name
		}
	}
	return loaded
}

func sortExams(exams []entities.Exam) {
	slices.SortStableFunc(exams, func(a, b entities.Exam) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		if c := strings.Compare(a.Time, b.Time); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
