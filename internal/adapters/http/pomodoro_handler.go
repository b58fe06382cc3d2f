package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

// PomodoroHandler handles focus timer requests
type PomodoroHandler struct {
	pomodoroService ports.PomodoroService
	logger          *logger.Logger
}

// NewPomodoroHandler creates a new pomodoro handler
func NewPomodoroHandler(pomodoroService ports.PomodoroService, logger *logger.Logger) *PomodoroHandler {
	return &PomodoroHandler{
		pomodoroService: pomodoroService,
		logger:          logger,
	}
}

// GetStatus godoc
// @Summary Get the pomodoro timer
// @Tags pomodoro
// @Produce json
// @Success 200 {object} ports.PomodoroStatus
// @Security BearerAuth
// @Router /pomodoro [get]
func (h *PomodoroHandler) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.pomodoroService.Status())
}

// Start godoc
// @Summary Start or resume the pomodoro timer
// @Tags pomodoro
// @Produce json
// @Success 200 {object} ports.PomodoroStatus
// @Security BearerAuth
// @Router /pomodoro/start [post]
func (h *PomodoroHandler) Start(c echo.Context) error {
	return c.JSON(http.StatusOK, h.pomodoroService.Start())
}

// Pause godoc
// @Summary Pause the pomodoro timer
// @Tags pomodoro
// @Produce json
// @Success 200 {object} ports.PomodoroStatus
// @Security BearerAuth
// @Router /pomodoro/pause [post]
func (h *PomodoroHandler) Pause(c echo.Context) error {
	return c.JSON(http.StatusOK, h.pomodoroService.Pause())
}

// Reset godoc
// @Summary Reset the current pomodoro session
// @Tags pomodoro
// @Produce json
// @Success 200 {object} ports.PomodoroStatus
// @Security BearerAuth
// @Router /pomodoro/reset [post]
func (h *PomodoroHandler) Reset(c echo.Context) error {
	return c.JSON(http.StatusOK, h.pomodoroService.Reset())
}

// Configure godoc
// @Summary Change focus and break durations
// @Tags pomodoro
// @Accept json
// @Produce json
// @Param request body ports.PomodoroSettings true "Durations in minutes"
// @Success 200 {object} ports.PomodoroStatus
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /pomodoro/settings [put]
func (h *PomodoroHandler) Configure(c echo.Context) error {
	var settings ports.PomodoroSettings
	if err := c.Bind(&settings); err != nil {
		return badRequest()
	}

	status, err := h.pomodoroService.Configure(settings)
	if err != nil {
		return fail(h.logger, c, "Configure pomodoro failed", err)
	}
	return c.JSON(http.StatusOK, status)
}
