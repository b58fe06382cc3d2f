package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/agenda/internal/application/services"
	"github.com/taskmaster/agenda/internal/domain/entities"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

const keepAliveInterval = 15 * time.Second

// Subscriber hands out event streams for connected clients
type Subscriber interface {
	Subscribe() chan ports.Event
	Unsubscribe(ch chan ports.Event)
}

// StateHandler serves the loaded state, dashboard, logs and the event stream
type StateHandler struct {
	stateService     ports.StateService
	dashboardService ports.DashboardService
	events           Subscriber
	logger           *logger.Logger
}

// NewStateHandler creates a new state handler
func NewStateHandler(stateService ports.StateService, dashboardService ports.DashboardService, events Subscriber, logger *logger.Logger) *StateHandler {
	return &StateHandler{
		stateService:     stateService,
		dashboardService: dashboardService,
		events:           events,
		logger:           logger,
	}
}

// GetState godoc
// @Summary Get the whole agenda
// @Description Returns every collection plus the degraded flag and notice
// @Tags state
// @Produce json
// @Success 200 {object} state.Snapshot
// @Security BearerAuth
// @Router /state [get]
func (h *StateHandler) GetState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.stateService.Snapshot())
}

// GetDashboard godoc
// @Summary Get the dashboard summary
// @Tags state
// @Produce json
// @Success 200 {object} ports.Dashboard
// @Security BearerAuth
// @Router /dashboard [get]
func (h *StateHandler) GetDashboard(c echo.Context) error {
	return c.JSON(http.StatusOK, h.dashboardService.Build(c.Request().Context()))
}

// GetLogs godoc
// @Summary Get recent log entries
// @Description Returns the most recent log entries, oldest first
// @Tags state
// @Produce json
// @Param level query string false "Only entries of this level (debug, info, warn, error)"
// @Success 200 {array} logger.Entry
// @Security BearerAuth
// @Router /logs [get]
func (h *StateHandler) GetLogs(c echo.Context) error {
	entries := h.logger.Recent(c.QueryParam("level"))
	if entries == nil {
		entries = []logger.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// Events godoc
// @Summary Stream render events
// @Description Server-sent events: change, notice, tick, reminder and pomodoro
// @Tags state
// @Produce text/event-stream
// @Success 200 {object} ports.Event
// @Security BearerAuth
// @Router /events [get]
func (h *StateHandler) Events(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ch := h.events.Subscribe()
	defer h.events.Unsubscribe(ch)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.logger.WithError(err).Warn("Failed to encode event")
				continue
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", e.Kind, data); err != nil {
				return nil
			}
			res.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

// httpError maps a service error to the matching HTTP status.
func httpError(err error) *echo.HTTPError {
	return echo.NewHTTPError(statusFor(err), err.Error()).SetInternal(err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrTaskNotFound),
		errors.Is(err, entities.ErrExamNotFound),
		errors.Is(err, entities.ErrItemNotFound),
		errors.Is(err, entities.ErrListNotFound),
		errors.Is(err, entities.ErrProjectNotFound),
		errors.Is(err, entities.ErrProjectTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrTimerAlreadyRunning),
		errors.Is(err, entities.ErrTimerNotRunning),
		errors.Is(err, entities.ErrTaskAlreadyCompleted):
		return http.StatusConflict
	case errors.Is(err, services.ErrPersistFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail logs the error at a level matching its status and returns the HTTP error.
func fail(log *logger.Logger, c echo.Context, msg string, err error) error {
	he := httpError(err)
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		log = log.WithRequestID(id)
	}
	fields := []interface{}{"error", err.Error(), "path", c.Path(), "status", he.Code}
	if he.Code >= http.StatusInternalServerError {
		log.Errorw(msg, fields...)
	} else {
		log.Debugw(msg, fields...)
	}
	return he
}

func badRequest() error {
	return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
}

// Request/Response types

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
