package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/taskmaster/agenda/docs"
	httpHandlers "github.com/taskmaster/agenda/internal/adapters/http"
	"github.com/taskmaster/agenda/internal/infrastructure/config"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/infrastructure/metrics"
	"github.com/taskmaster/agenda/internal/ports"
)

const eventsPath = "/api/v1/events"

// HealthChecker reports whether the database answers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	GetConnectionInfo() map[string]interface{}
}

// Services bundles everything the HTTP layer calls into
type Services struct {
	State     ports.StateService
	Dashboard ports.DashboardService
	Tasks     ports.TaskService
	Exams     ports.ExamService
	Shopping  ports.ShoppingService
	Projects  ports.ProjectService
	Timers    ports.TimerService
	Pomodoro  ports.PomodoroService
	Events    httpHandlers.Subscriber
}

// Server represents the HTTP server
type Server struct {
	echo    *echo.Echo
	config  *config.Config
	logger  *logger.Logger
	db      HealthChecker
	state   ports.StateService
	metrics *metrics.Metrics
	events  httpHandlers.Subscriber
	started time.Time
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance. m may be nil when metrics are disabled.
func New(cfg *config.Config, db HealthChecker, svc Services, m *metrics.Metrics, appLogger *logger.Logger) *Server {
	e := echo.New()

	// Set custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.App.IsDevelopment()

	httpLogger := appLogger.WithComponent("http")

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(httpLogger)

	server := &Server{
		echo:    e,
		config:  cfg,
		logger:  httpLogger,
		db:      db,
		state:   svc.State,
		metrics: m,
		events:  svc.Events,
		started: time.Now(),
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup metrics
	if cfg.Metrics.Enabled && m != nil {
		server.setupMetrics()
	}

	// Setup routes
	server.setupRoutes(svc)

	return server
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID middleware
	s.echo.Use(middleware.RequestID())

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"user_agent", values.UserAgent,
				"request_id", values.RequestID,
			}
			if client := clientFromContext(c); client != "" {
				fields = append(fields, "client", client)
			}

			if values.Error != nil && values.Status >= http.StatusInternalServerError {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Errorw("HTTP request failed", fields...)
			} else {
				s.logger.Debugw("HTTP request", fields...)
			}

			return nil
		},
	}))

	// CORS middleware
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPost, http.MethodDelete},
	}))

	// Rate limiting middleware
	if s.config.Security.RateLimitRequests > 0 {
		window := s.config.Security.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: isEventStream,
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(float64(s.config.Security.RateLimitRequests) / window.Seconds()),
				Burst:     s.config.Security.RateLimitRequests,
				ExpiresIn: 3 * time.Minute,
			}),
			IdentifierExtractor: func(ctx echo.Context) (string, error) {
				return ctx.RealIP(), nil
			},
			ErrorHandler: func(context echo.Context, err error) error {
				return context.JSON(http.StatusForbidden, httpHandlers.ErrorResponse{Message: "rate limit exceeded"})
			},
			DenyHandler: func(context echo.Context, identifier string, err error) error {
				return context.JSON(http.StatusTooManyRequests, httpHandlers.ErrorResponse{Message: "rate limit exceeded"})
			},
		}))
	}

	// Security headers
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	}))

	// Timeout middleware; the event stream is long-lived
	if s.config.Server.RequestTimeout > 0 {
		s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Skipper:      isEventStream,
			Timeout:      s.config.Server.RequestTimeout,
			ErrorMessage: `{"message":"request timed out"}`,
		}))
	}
}

func isEventStream(c echo.Context) bool {
	return c.Request().URL.Path == eventsPath
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(svc Services) {
	stateHandler := httpHandlers.NewStateHandler(svc.State, svc.Dashboard, svc.Events, s.logger)
	taskHandler := httpHandlers.NewTaskHandler(svc.Tasks, s.logger)
	examHandler := httpHandlers.NewExamHandler(svc.Exams, s.logger)
	shoppingHandler := httpHandlers.NewShoppingHandler(svc.Shopping, s.logger)
	projectHandler := httpHandlers.NewProjectHandler(svc.Projects, s.logger)
	timeHandler := httpHandlers.NewTimeHandler(svc.Timers, s.logger)
	pomodoroHandler := httpHandlers.NewPomodoroHandler(svc.Pomodoro, s.logger)

	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	if s.config.Security.APISecret != "" {
		v1.Use(s.authMiddleware([]byte(s.config.Security.APISecret), s.config.Security.TokenIssuer))
	}

	v1.GET("/state", stateHandler.GetState)
	v1.GET("/dashboard", stateHandler.GetDashboard)
	v1.GET("/logs", stateHandler.GetLogs)
	v1.GET("/events", stateHandler.Events)

	// Agenda task routes
	taskGroup := v1.Group("/tasks")
	taskGroup.GET("", taskHandler.ListTasks)
	taskGroup.POST("", taskHandler.CreateTask)
	taskGroup.PUT("/:id", taskHandler.UpdateTask)
	taskGroup.DELETE("/:id", taskHandler.DeleteTask)
	taskGroup.POST("/:id/status", taskHandler.SetStatus)
	taskGroup.POST("/:id/advance", taskHandler.AdvanceTask)
	taskGroup.POST("/:id/reopen", taskHandler.ReopenTask)

	// Exam routes
	examGroup := v1.Group("/exams")
	examGroup.GET("", examHandler.ListExams)
	examGroup.POST("", examHandler.CreateExam)
	examGroup.PUT("/:id", examHandler.UpdateExam)
	examGroup.DELETE("/:id", examHandler.DeleteExam)

	// Shopping routes
	shoppingGroup := v1.Group("/shopping")
	shoppingGroup.GET("", shoppingHandler.ListLists)
	shoppingGroup.GET("/:list", shoppingHandler.GetList)
	shoppingGroup.POST("/:list/items", shoppingHandler.AddItem)
	shoppingGroup.PUT("/:list/items/:id", shoppingHandler.UpdateItem)
	shoppingGroup.DELETE("/:list/items/:id", shoppingHandler.DeleteItem)
	shoppingGroup.POST("/:list/items/:id/toggle", shoppingHandler.ToggleItem)

	// Project routes
	projectGroup := v1.Group("/projects")
	projectGroup.GET("", projectHandler.ListProjects)
	projectGroup.POST("", projectHandler.CreateProject)
	projectGroup.GET("/:id", projectHandler.GetProject)
	projectGroup.PUT("/:id", projectHandler.UpdateProject)
	projectGroup.DELETE("/:id", projectHandler.DeleteProject)
	projectGroup.POST("/:id/tasks", projectHandler.CreateProjectTask)
	projectGroup.PUT("/:id/tasks/:taskId", projectHandler.UpdateProjectTask)
	projectGroup.DELETE("/:id/tasks/:taskId", projectHandler.DeleteProjectTask)

	// Time tracking routes
	projectGroup.POST("/:id/tasks/:taskId/start", timeHandler.StartTimer)
	projectGroup.POST("/:id/tasks/:taskId/pause", timeHandler.PauseTimer)
	projectGroup.POST("/:id/tasks/:taskId/finish", timeHandler.FinishTimer)
	v1.GET("/timers", timeHandler.ListRunning)

	// Pomodoro routes
	pomodoroGroup := v1.Group("/pomodoro")
	pomodoroGroup.GET("", pomodoroHandler.GetStatus)
	pomodoroGroup.POST("/start", pomodoroHandler.Start)
	pomodoroGroup.POST("/pause", pomodoroHandler.Pause)
	pomodoroGroup.POST("/reset", pomodoroHandler.Reset)
	pomodoroGroup.PUT("/settings", pomodoroHandler.Configure)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			s.metrics.ObserveRequest(c.Request().Method, path, status, time.Since(start))

			return err
		}
	})

	path := s.config.Metrics.Path
	if path == "" {
		path = "/metrics"
	}
	s.echo.GET(path, echo.WrapHandler(s.metrics.Handler()))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	// Database health check
	if err := s.db.HealthCheck(c.Request().Context()); err != nil {
		status = "error"
		checks["database"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["database"] = map[string]interface{}{
			"status": "ok",
			"stats":  s.db.GetConnectionInfo(),
		}
	}

	snapshot := s.state.Snapshot()
	checks["state"] = map[string]interface{}{
		"ready":     s.state.Ready(),
		"degraded":  snapshot.Degraded,
		"version":   snapshot.Version,
		"loaded_at": snapshot.LoadedAt,
	}
	if snapshot.Degraded && status == "ok" {
		status = "degraded"
	}

	if hub, ok := s.events.(interface {
		Subscribers() int
		Dropped() uint64
	}); ok {
		checks["events"] = map[string]interface{}{
			"subscribers": hub.Subscribers(),
			"dropped":     hub.Dropped(),
		}
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
			"go":  runtime.Version(),
		},
	}

	if status == "error" {
		return c.JSON(http.StatusServiceUnavailable, response)
	}
	return c.JSON(http.StatusOK, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if !s.state.Ready() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "state_not_loaded",
		})
	}

	if err := s.db.HealthCheck(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)

	srv := &http.Server{
		Addr:         address,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}
	if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		var he *echo.HTTPError
		var ve validator.ValidationErrors
		switch {
		case errors.As(err, &he):
			code = he.Code
			msg = httpHandlers.ErrorResponse{Message: fmt.Sprint(he.Message)}
		case errors.As(err, &ve):
			code = http.StatusBadRequest
			msg = map[string]string{"message": "validation failed", "details": ve.Error()}
		default:
			msg = httpHandlers.ErrorResponse{Message: http.StatusText(code)}
		}

		if code == http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err.Error(), "path", c.Request().URL.Path)
		}

		// Send response
		if !c.Response().Committed {
			if c.Request().Method == http.MethodHead {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err.Error())
			}
		}
	}
}
