package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

// ProjectHandler handles project and project task requests
type ProjectHandler struct {
	projectService ports.ProjectService
	logger         *logger.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projectService ports.ProjectService, logger *logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		logger:         logger,
	}
}

// ListProjects godoc
// @Summary List projects with their tasks
// @Tags projects
// @Produce json
// @Success 200 {array} entities.Project
// @Security BearerAuth
// @Router /projects [get]
func (h *ProjectHandler) ListProjects(c echo.Context) error {
	return c.JSON(http.StatusOK, h.projectService.List(c.Request().Context()))
}

// CreateProject godoc
// @Summary Create a new project
// @Description Create a new project with the provided details
// @Tags projects
// @Accept json
// @Produce json
// @Param request body ports.ProjectForm true "Project data"
// @Success 201 {object} entities.Project
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects [post]
func (h *ProjectHandler) CreateProject(c echo.Context) error {
	var form ports.ProjectForm
	if err := c.Bind(&form); err != nil {
		return badRequest()
	}
	form.ID = ""

	project, err := h.projectService.Save(c.Request().Context(), form)
	if err != nil {
		return fail(h.logger, c, "Create project failed", err)
	}
	return c.JSON(http.StatusCreated, project)
}

// GetProject godoc
// @Summary Get project by ID
// @Description Get project information by project ID
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} entities.Project
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [get]
func (h *ProjectHandler) GetProject(c echo.Context) error {
	project, err := h.projectService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(h.logger, c, "Get project failed", err)
	}
	return c.JSON(http.StatusOK, project)
}

// UpdateProject godoc
// @Summary Rename a project
// @Tags projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body ports.ProjectForm true "Project data"
// @Success 200 {object} entities.Project
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [put]
func (h *ProjectHandler) UpdateProject(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.projectService.Get(c.Request().Context(), id); err != nil {
		return fail(h.logger, c, "Update project failed", err)
	}

	var form ports.ProjectForm
	if err := c.Bind(&form); err != nil {
		return badRequest()
	}
	form.ID = id

	project, err := h.projectService.Save(c.Request().Context(), form)
	if err != nil {
		return fail(h.logger, c, "Update project failed", err)
	}
	return c.JSON(http.StatusOK, project)
}

// DeleteProject godoc
// @Summary Delete a project and all of its tasks
// @Tags projects
// @Param id path string true "Project ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c echo.Context) error {
	if err := h.projectService.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return fail(h.logger, c, "Delete project failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateProjectTask godoc
// @Summary Add a task to a project
// @Tags projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body ports.ProjectTaskForm true "Task data"
// @Success 201 {object} entities.ProjectTask
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/tasks [post]
func (h *ProjectHandler) CreateProjectTask(c echo.Context) error {
	var form ports.ProjectTaskForm
	if err := c.Bind(&form); err != nil {
		return badRequest()
	}
	form.ID = ""

	task, err := h.projectService.SaveTask(c.Request().Context(), c.Param("id"), form)
	if err != nil {
		return fail(h.logger, c, "Create project task failed", err)
	}
	return c.JSON(http.StatusCreated, task)
}

// UpdateProjectTask godoc
// @Summary Edit a project task
// @Tags projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param taskId path string true "Task ID"
// @Param request body ports.ProjectTaskForm true "Task data"
// @Success 200 {object} entities.ProjectTask
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/tasks/{taskId} [put]
func (h *ProjectHandler) UpdateProjectTask(c echo.Context) error {
	projectID, taskID := c.Param("id"), c.Param("taskId")
	project, err := h.projectService.Get(c.Request().Context(), projectID)
	if err != nil {
		return fail(h.logger, c, "Update project task failed", err)
	}
	if _, ok := project.FindTask(taskID); !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Project task not found")
	}

	var form ports.ProjectTaskForm
	if err := c.Bind(&form); err != nil {
		return badRequest()
	}
	form.ID = taskID

	task, err := h.projectService.SaveTask(c.Request().Context(), projectID, form)
	if err != nil {
		return fail(h.logger, c, "Update project task failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// DeleteProjectTask godoc
// @Summary Remove a task from a project
// @Tags projects
// @Param id path string true "Project ID"
// @Param taskId path string true "Task ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/tasks/{taskId} [delete]
func (h *ProjectHandler) DeleteProjectTask(c echo.Context) error {
	if err := h.projectService.DeleteTask(c.Request().Context(), c.Param("id"), c.Param("taskId")); err != nil {
		return fail(h.logger, c, "Delete project task failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
