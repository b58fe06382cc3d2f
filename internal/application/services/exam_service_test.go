package services

import (
	"context"
	"errors"
	"testing"

	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/ports"
)

func TestExamServiceKeepsFileNameAcrossRefresh(t *testing.T) {
	h := newHarness(t)
	svc := NewExamService(h.coord, h.exams, h.clock, h.log)
	ctx := context.Background()

	exam, err := svc.Save(ctx, ports.ExamForm{Type: "MRI", Date: "2024-03-20", Time: "10:00", FileName: "order.pdf"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if exam.FileName != "order.pdf" {
		t.Errorf("file name = %q after refresh", exam.FileName)
	}

	updated, err := svc.Save(ctx, ports.ExamForm{ID: exam.ID, Type: "MRI", Date: "2024-03-21"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if updated.FileName != "order.pdf" {
		t.Errorf("file name = %q, want it kept on update", updated.FileName)
	}
	if !updated.CreatedAt.Equal(exam.CreatedAt) {
		t.Error("created_at changed on update")
	}
}

func TestExamServiceValidationAndDelete(t *testing.T) {
	h := newHarness(t)
	svc := NewExamService(h.coord, h.exams, h.clock, h.log)
	ctx := context.Background()

	if _, err := svc.Save(ctx, ports.ExamForm{Date: "2024-03-20"}); !errors.Is(err, entities.ErrValidation) {
		t.Errorf("Save(no type) error = %v", err)
	}

	exam, err := svc.Save(ctx, ports.ExamForm{Type: "X-ray", Date: "2024-03-20"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := svc.Delete(ctx, exam.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := svc.List(ctx); len(got) != 0 {
		t.Errorf("List() = %+v", got)
	}
	if err := svc.Delete(ctx, exam.ID); !errors.Is(err, entities.ErrExamNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
}
