package http

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

// ExamHandler handles exam requests
type ExamHandler struct {
	examService ports.ExamService
	logger      *logger.Logger
}

// NewExamHandler creates a new exam handler
func NewExamHandler(examService ports.ExamService, logger *logger.Logger) *ExamHandler {
	return &ExamHandler{
		examService: examService,
		logger:      logger,
	}
}

// ListExams godoc
// @Summary List exams
// @Tags exams
// @Produce json
// @Success 200 {array} entities.Exam
// @Security BearerAuth
// @Router /exams [get]
func (h *ExamHandler) ListExams(c echo.Context) error {
	return c.JSON(http.StatusOK, h.examService.List(c.Request().Context()))
}

// CreateExam godoc
// @Summary Create an exam
// @Tags exams
// @Accept json
// @Produce json
// @Param request body ports.ExamForm true "Exam data"
// @Success 201 {object} entities.Exam
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Security BearerAuth
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c echo.Context) error {
	var form ports.ExamForm
	if err := c.Bind(&form); err != nil {
		return badRequest()
	}
	form.ID = ""

	exam, err := h.examService.Save(c.Request().Context(), form)
	if err != nil {
		return fail(h.logger, c, "Create exam failed", err)
	}
	return c.JSON(http.StatusCreated, exam)
}

// UpdateExam godoc
// @Summary Update an exam
// @Tags exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param request body ports.ExamForm true "Exam data"
// @Success 200 {object} entities.Exam
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /exams/{id} [put]
func (h *ExamHandler) UpdateExam(c echo.Context) error {
	id := c.Param("id")
	known := slices.ContainsFunc(h.examService.List(c.Request().Context()), func(e entities.Exam) bool { return e.ID == id })
	if !known {
		return echo.NewHTTPError(http.StatusNotFound, "Exam not found")
	}

	var form ports.ExamForm
	if err := c.Bind(&form); err != nil {
		return badRequest()
	}
	form.ID = id

	exam, err := h.examService.Save(c.Request().Context(), form)
	if err != nil {
		return fail(h.logger, c, "Update exam failed", err)
	}
	return c.JSON(http.StatusOK, exam)
}

// DeleteExam godoc
// @Summary Delete an exam
// @Tags exams
// @Param id path string true "Exam ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /exams/{id} [delete]
func (h *ExamHandler) DeleteExam(c echo.Context) error {
	if err := h.examService.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return fail(h.logger, c, "Delete exam failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
