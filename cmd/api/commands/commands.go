package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taskmaster/agenda/internal/adapters/cache"
	"github.com/taskmaster/agenda/internal/adapters/repository"
	"github.com/taskmaster/agenda/internal/application/services"
	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/infrastructure/config"
	"github.com/taskmaster/agenda/internal/infrastructure/credential"
	"github.com/taskmaster/agenda/internal/infrastructure/database"
	"github.com/taskmaster/agenda/internal/infrastructure/events"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/infrastructure/metrics"
	"github.com/taskmaster/agenda/internal/infrastructure/server"
	"github.com/taskmaster/agenda/internal/ports"
)

// Build information, set with -ldflags.
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "development"
)

var configFile string

// AddFlags registers the flags shared by every command
func AddFlags(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")
}

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the agenda API server",
		Long:  "Load the agenda, recover orphaned timers and serve the HTTP API with its event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(database.MigrateUp)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(database.MigrateDown)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showMigrationVersion()
		},
	})

	return migrateCmd
}

// NewTimersCommand creates the timer maintenance command
func NewTimersCommand() *cobra.Command {
	timersCmd := &cobra.Command{
		Use:   "timers",
		Short: "Project task timer commands",
	}

	timersCmd.AddCommand(&cobra.Command{
		Use:   "recover",
		Short: "Close timers left running by a previous session",
		Long:  "Credit the time since each orphaned timer started, pause it and save it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return recoverTimers(cmd.Context())
		},
	})

	return timersCmd
}

// NewTokenCommand creates the command that issues API bearer tokens
func NewTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an API client",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _ := cmd.Flags().GetString("client")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if ttl < 0 {
				ttl = cfg.Security.TokenTTL
			}

			token, err := server.IssueToken([]byte(cfg.Security.APISecret), cfg.Security.TokenIssuer, client, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	tokenCmd.Flags().String("client", "cli", "Client name recorded in the token")
	tokenCmd.Flags().Duration("ttl", -1, "Token lifetime; 0 never expires (default security.token_ttl)")
	return tokenCmd
}

// NewSecretCommand creates the keyring management command
func NewSecretCommand() *cobra.Command {
	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the database password in the OS keyring",
	}

	secretCmd.AddCommand(&cobra.Command{
		Use:   "set [password]",
		Short: "Store the database password; reads stdin when no argument is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, key, err := openKeyring()
			if err != nil {
				return err
			}

			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}

			if err := store.Set(key, password); err != nil {
				return err
			}
			fmt.Printf("Stored %q in the keyring\n", key)
			return nil
		},
	})

	secretCmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored database password",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, key, err := openKeyring()
			if err != nil {
				return err
			}
			return store.Delete(key)
		},
	})

	return secretCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print agenda version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Agenda %s\n", Version)
			fmt.Printf("Build Date: %s\n", BuildDate)
			fmt.Printf("Git Commit: %s\n", GitCommit)
		},
	}
}

func openKeyring() (*credential.Store, string, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, "", err
	}
	store, err := credential.Open(cfg.Database.Keyring)
	if err != nil {
		return nil, "", err
	}
	return store, cfg.Database.Keyring.Key, nil
}

// app holds everything wired from one configuration.
type app struct {
	cfg     *config.Config
	logger  *logger.Logger
	db      *database.DB
	cache   ports.SnapshotCache
	hub     *events.Hub
	metrics *metrics.Metrics
	loc     *time.Location

	store     *state.Store
	coord     *services.Coordinator
	state     *services.StateService
	tasks     *services.TaskService
	exams     *services.ExamService
	shopping  *services.ShoppingService
	projects  *services.ProjectService
	timers    *services.TimerService
	dashboard *services.DashboardService
	reminders *services.ReminderService
	pomodoro  *services.PomodoroService
}

// connect loads configuration, the logger and the database.
func connect() (*config.Config, *logger.Logger, *database.DB, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, nil, err
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := credential.ResolveDatabasePassword(&cfg.Database); err != nil {
		appLogger.WithError(err).Warn("Could not read the database password from the keyring")
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		_ = appLogger.Close()
		return nil, nil, nil, err
	}
	return cfg, appLogger, db, nil
}

// newApp wires the services. recoverOnLoad controls whether loading the
// state also closes orphaned timers.
func newApp(ctx context.Context, cfg *config.Config, appLogger *logger.Logger, db *database.DB, recoverOnLoad bool) (*app, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	snapshots, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		appLogger.WithError(err).Warn("Snapshot cache unavailable, continuing without it")
		snapshots = cache.Nop{}
	}

	a := &app{
		cfg:    cfg,
		logger: appLogger,
		db:     db,
		cache:  snapshots,
		hub:    events.NewHub(),
		loc:    loc,
		store:  state.NewStore(cfg.Shopping.Lists),
	}

	var syncMetrics ports.Metrics = metrics.Nop{}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
		syncMetrics = a.metrics
	}

	gw := repository.NewGateway(db.DB)
	clock := services.SystemClock

	a.coord = services.NewCoordinator(a.store, a.hub, a.cache, syncMetrics, appLogger)
	a.tasks = services.NewTaskService(a.coord, gw.Tasks, clock, appLogger)
	a.exams = services.NewExamService(a.coord, gw.Exams, clock, appLogger)
	a.shopping = services.NewShoppingService(a.coord, gw.Shopping, clock, appLogger)
	a.projects = services.NewProjectService(a.coord, gw.Projects, gw.ProjectTasks, clock, appLogger)
	a.timers = services.NewTimerService(a.coord, gw.Projects, gw.ProjectTasks, clock, a.hub, syncMetrics, cfg.Timers, appLogger)
	a.dashboard = services.NewDashboardService(a.store, clock, loc)
	a.reminders = services.NewReminderService(a.store, a.hub, clock, loc, cfg.Reminders, appLogger)
	a.pomodoro = services.NewPomodoroService(a.hub, clock, cfg.Pomodoro, appLogger)

	recovery := a.timers
	if !recoverOnLoad {
		recovery = nil
	}
	a.state = services.NewStateService(a.coord, gw, a.cache, recovery, cfg.Shopping.Lists, clock, appLogger)

	return a, nil
}

func (a *app) close() {
	if err := a.cache.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close snapshot cache")
	}
}

// lockInstance keeps two servers from sharing one SQLite file.
func lockInstance(cfg config.DatabaseConfig) (*flock.Flock, error) {
	if cfg.Driver != "sqlite" || cfg.DSN != "" {
		return nil, nil
	}

	lock := flock.New(cfg.Path + ".instance.lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", cfg.Path, err)
	}
	if !locked {
		return nil, fmt.Errorf("another agenda server is using %s", cfg.Path)
	}
	return lock, nil
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, appLogger, db, err := connect()
	if err != nil {
		return err
	}
	defer appLogger.Close()
	defer db.Close()

	lock, err := lockInstance(cfg.Database)
	if err != nil {
		return err
	}
	if lock != nil {
		defer lock.Unlock()
	}

	if cfg.Database.MigrateOnStart {
		if err := db.Migrate(database.MigrateUp); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg, appLogger, db, true)
	if err != nil {
		return err
	}
	defer a.close()

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = a.state.Load(loadCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to load agenda: %w", err)
	}

	srv := server.New(cfg, db, server.Services{
		State:     a.state,
		Dashboard: a.dashboard,
		Tasks:     a.tasks,
		Exams:     a.exams,
		Shopping:  a.shopping,
		Projects:  a.projects,
		Timers:    a.timers,
		Pomodoro:  a.pomodoro,
		Events:    a.hub,
	}, a.metrics, appLogger)

	appLogger.Infow("Starting agenda API server",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
		"driver", cfg.Database.Driver,
		"cache", cfg.Cache.Backend,
		"auth", cfg.Security.APISecret != "",
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	})
	g.Go(func() error {
		return a.timers.Run(gctx)
	})
	g.Go(func() error {
		return a.pomodoro.Run(gctx, time.Second)
	})
	if cfg.Reminders.Enabled {
		g.Go(func() error {
			return a.reminders.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	appLogger.Info("Agenda API server stopped")
	return nil
}

func runMigration(direction database.MigrateDirection) error {
	cfg, appLogger, db, err := connect()
	if err != nil {
		return err
	}
	defer appLogger.Close()
	defer db.Close()

	if err := db.Migrate(direction); err != nil {
		return err
	}

	fmt.Printf("Migration %s completed successfully (%s)\n", direction, cfg.Database.Driver)
	return nil
}

func showMigrationVersion() error {
	_, appLogger, db, err := connect()
	if err != nil {
		return err
	}
	defer appLogger.Close()
	defer db.Close()

	version, dirty, err := db.MigrationVersion()
	if err != nil {
		return err
	}

	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
	return nil
}

func recoverTimers(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, time.Minute)
	defer cancel()

	cfg, appLogger, db, err := connect()
	if err != nil {
		return err
	}
	defer appLogger.Close()
	defer db.Close()

	a, err := newApp(ctx, cfg, appLogger, db, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.state.Load(ctx); err != nil {
		return err
	}
	if a.state.Snapshot().Degraded {
		return errors.New("database unreachable; nothing was recovered")
	}

	report, err := a.timers.RecoverOrphans(ctx)
	fmt.Printf("Recovered timers: %d\n", report.Recovered)
	fmt.Printf("Time credited: %s\n", report.Added)
	if report.Failed > 0 {
		fmt.Printf("Failed to save: %d\n", report.Failed)
	}
	return err
}
