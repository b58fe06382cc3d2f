package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

// TimeHandler handles project task stopwatch requests
type TimeHandler struct {
	timerService ports.TimerService
	logger       *logger.Logger
}

// NewTimeHandler creates a new time handler
func NewTimeHandler(timerService ports.TimerService, logger *logger.Logger) *TimeHandler {
	return &TimeHandler{
		timerService: timerService,
		logger:       logger,
	}
}

// StartTimer godoc
// @Summary Start the stopwatch of a project task
// @Tags timers
// @Produce json
// @Param id path string true "Project ID"
// @Param taskId path string true "Task ID"
// @Success 200 {object} entities.ProjectTask
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/tasks/{taskId}/start [post]
func (h *TimeHandler) StartTimer(c echo.Context) error {
	task, err := h.timerService.Start(c.Request().Context(), c.Param("id"), c.Param("taskId"))
	if err != nil {
		return fail(h.logger, c, "Start timer failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// PauseTimer godoc
// @Summary Pause the stopwatch of a project task
// @Tags timers
// @Produce json
// @Param id path string true "Project ID"
// @Param taskId path string true "Task ID"
// @Success 200 {object} entities.ProjectTask
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/tasks/{taskId}/pause [post]
func (h *TimeHandler) PauseTimer(c echo.Context) error {
	task, err := h.timerService.Pause(c.Request().Context(), c.Param("id"), c.Param("taskId"))
	if err != nil {
		return fail(h.logger, c, "Pause timer failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// FinishTimer godoc
// @Summary Finish a project task
// @Tags timers
// @Produce json
// @Param id path string true "Project ID"
// @Param taskId path string true "Task ID"
// @Success 200 {object} entities.ProjectTask
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/tasks/{taskId}/finish [post]
func (h *TimeHandler) FinishTimer(c echo.Context) error {
	task, err := h.timerService.Finish(c.Request().Context(), c.Param("id"), c.Param("taskId"))
	if err != nil {
		return fail(h.logger, c, "Finish timer failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// ListRunning godoc
// @Summary List running stopwatches
// @Tags timers
// @Produce json
// @Success 200 {array} ports.RunningTimer
// @Security BearerAuth
// @Router /timers [get]
func (h *TimeHandler) ListRunning(c echo.Context) error {
	return c.JSON(http.StatusOK, h.timerService.Running())
}
