package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

// TaskHandler handles agenda task requests
type TaskHandler struct {
	taskService ports.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService ports.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// ListTasks godoc
// @Summary List tasks
// @Description List tasks ordered by date, time and creation
// @Tags tasks
// @Produce json
// @Param status query string false "pending, in_progress or done"
// @Param priority query string false "urgent, normal or low"
// @Param date query string false "YYYY-MM-DD"
// @Success 200 {array} entities.Task
// @Security BearerAuth
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	filter := ports.TaskFilter{Date: c.QueryParam("date")}

	if status := c.QueryParam("status"); status != "" {
		s := entities.TaskStatus(status)
		if !s.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid status parameter")
		}
		filter.Status = &s
	}
	if priority := c.QueryParam("priority"); priority != "" {
		p := entities.Priority(priority)
		if !p.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid priority parameter")
		}
		filter.Priority = &p
	}

	return c.JSON(http.StatusOK, h.taskService.List(c.Request().Context(), filter))
}

// CreateTask godoc
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.TaskForm true "Task data"
// @Success 201 {object} entities.Task
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var form ports.TaskForm
	if err := c.Bind(&form); err != nil {
		return badRequest()
	}
	form.ID = ""

	task, err := h.taskService.Save(c.Request().Context(), form)
	if err != nil {
		return fail(h.logger, c, "Create task failed", err)
	}
	return c.JSON(http.StatusCreated, task)
}

// UpdateTask godoc
// @Summary Update a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body ports.TaskForm true "Task data"
// @Success 200 {object} entities.Task
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	id := c.Param("id")
	if !h.exists(c, id) {
		return echo.NewHTTPError(http.StatusNotFound, "Task not found")
	}

	var form ports.TaskForm
	if err := c.Bind(&form); err != nil {
		return badRequest()
	}
	form.ID = id

	task, err := h.taskService.Save(c.Request().Context(), form)
	if err != nil {
		return fail(h.logger, c, "Update task failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// DeleteTask godoc
// @Summary Delete a task
// @Tags tasks
// @Param id path string true "Task ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	if err := h.taskService.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return fail(h.logger, c, "Delete task failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetStatus godoc
// @Summary Set the status of a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body ports.StatusRequest true "New status"
// @Success 200 {object} entities.Task
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/status [post]
func (h *TaskHandler) SetStatus(c echo.Context) error {
	var req ports.StatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.SetStatus(c.Request().Context(), c.Param("id"), entities.TaskStatus(req.Status))
	if err != nil {
		return fail(h.logger, c, "Set task status failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// AdvanceTask godoc
// @Summary Move a task to its next status
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} entities.Task
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/advance [post]
func (h *TaskHandler) AdvanceTask(c echo.Context) error {
	task, err := h.taskService.Advance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(h.logger, c, "Advance task failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// ReopenTask godoc
// @Summary Move a task back to pending
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} entities.Task
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/reopen [post]
func (h *TaskHandler) ReopenTask(c echo.Context) error {
	task, err := h.taskService.Reopen(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(h.logger, c, "Reopen task failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// exists keeps PUT from creating tasks under a client-chosen id.
func (h *TaskHandler) exists(c echo.Context, id string) bool {
	for _, t := range h.taskService.List(c.Request().Context(), ports.TaskFilter{}) {
		if t.ID == id {
			return true
		}
	}
	return false
}
