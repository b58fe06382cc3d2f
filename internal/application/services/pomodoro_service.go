package services

import (
	"context"
	"sync"
	"time"

	"github.com/taskmaster/agenda/internal/infrastructure/config"
	"github.com/taskmaster/agenda/internal/infrastructure/logger"
	"github.com/taskmaster/agenda/internal/ports"
)

// PomodoroService is an in-memory focus/break timer
type PomodoroService struct {
	publisher ports.Publisher
	clock     Clock
	logger    *logger.Logger

	mu        sync.Mutex
	focus     time.Duration
	brk       time.Duration
	mode      ports.PomodoroMode
	running   bool
	endsAt    time.Time
	remaining time.Duration
	cycles    int
}

// NewPomodoroService creates a new pomodoro timer in focus mode
func NewPomodoroService(publisher ports.Publisher, clock Clock, cfg config.PomodoroConfig, logger *logger.Logger) *PomodoroService {
	if cfg.Focus <= 0 {
		cfg.Focus = 25 * time.Minute
	}
	if cfg.Break <= 0 {
		cfg.Break = 5 * time.Minute
	}
	return &PomodoroService{
		publisher: publisher,
		clock:     clock,
		logger:    logger.WithComponent("pomodoro"),
		focus:     cfg.Focus,
		brk:       cfg.Break,
		mode:      ports.PomodoroFocus,
		remaining: cfg.Focus,
	}
}

var _ ports.PomodoroService = (*PomodoroService)(nil)

// Status returns the current mode and remaining time.
func (s *PomodoroService) Status() ports.PomodoroStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance(s.clock.Now())
	return s.status()
}

// Start resumes the countdown. Starting a running timer is a no-op.
func (s *PomodoroService) Start() ports.PomodoroStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.running = true
		s.endsAt = s.clock.Now().Add(s.remaining)
		s.logger.Debugw("Pomodoro started", "mode", s.mode, "remaining", s.remaining.String())
	}
	return s.status()
}

// Pause freezes the countdown.
func (s *PomodoroService) Pause() ports.PomodoroStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.advance(now)
	if s.running {
		s.remaining = max(s.endsAt.Sub(now), 0)
		s.running = false
	}
	return s.status()
}

// Reset stops the countdown and restores the full duration of the current mode.
func (s *PomodoroService) Reset() ports.PomodoroStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.remaining = s.length(s.mode)
	return s.status()
}

// Configure changes the focus and break durations. A stopped timer picks up
// the new duration of its current mode immediately.
func (s *PomodoroService) Configure(settings ports.PomodoroSettings) (ports.PomodoroStatus, error) {
	if err := validateForm(settings); err != nil {
		return ports.PomodoroStatus{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus = time.Duration(settings.FocusMinutes) * time.Minute
	s.brk = time.Duration(settings.BreakMinutes) * time.Minute
	if !s.running {
		s.remaining = s.length(s.mode)
	}
	return s.status(), nil
}

// Run completes sessions as they run out, until ctx is cancelled.
func (s *PomodoroService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Status()
		}
	}
}

// advance completes the running session when its end has passed.
func (s *PomodoroService) advance(now time.Time) {
	if !s.running || now.Before(s.endsAt) {
		return
	}

	finished := s.mode
	s.running = false
	if finished == ports.PomodoroFocus {
		s.cycles++
		s.mode = ports.PomodoroBreak
	} else {
		s.mode = ports.PomodoroFocus
	}
	s.remaining = s.length(s.mode)

	message := "Focus session complete, take a break"
	if finished == ports.PomodoroBreak {
		message = "Break is over, back to focus"
	}
	s.publisher.Publish(ports.Event{
		Kind:    ports.EventPomodoro,
		Level:   "info",
		Message: message,
		Data:    s.status(),
		At:      now,
	})
	s.logger.Infow("Pomodoro session complete", "finished", finished, "cycles", s.cycles)
}

func (s *PomodoroService) length(mode ports.PomodoroMode) time.Duration {
	if mode == ports.PomodoroBreak {
		return s.brk
	}
	return s.focus
}

func (s *PomodoroService) status() ports.PomodoroStatus {
	remaining := s.remaining
	if s.running {
		remaining = max(s.endsAt.Sub(s.clock.Now()), 0)
	}
	return ports.PomodoroStatus{
		Mode:      s.mode,
		Running:   s.running,
		Remaining: remaining,
		Focus:     s.focus,
		Break:     s.brk,
		Cycles:    s.cycles,
	}
}
