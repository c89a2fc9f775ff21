package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"operatorMonitor/internal/metrics"
	"operatorMonitor/internal/model"
)

// ErrMaxReconnectAttempts is returned once the configured attempt budget
// is spent.
var ErrMaxReconnectAttempts = errors.New("maximum reconnection attempts reached")

// MaxReconnectDelay caps the backoff between attempts.
const MaxReconnectDelay = 300 * time.Second

// ReconnectDelay returns min(base*2^(attempt-1), MaxReconnectDelay).
func ReconnectDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= MaxReconnectDelay {
			break
		}
		delay *= 2
	}
	if delay > MaxReconnectDelay {
		return MaxReconnectDelay
	}
	return delay
}

// HealthChecker reports whether the chain gateway is reachable.
type HealthChecker interface {
	IsConnected(ctx context.Context) bool
}

// Listener runs live polling until it fails or ctx ends.
type Listener interface {
	Listen(ctx context.Context, from model.BlockRef, interval time.Duration) error
}

// BlockTracker reports the highest block a listener has handled.
type BlockTracker interface {
	LastSeenBlock() (uint64, bool)
}

// SupervisorConfig holds reconnection settings. MaxAttempts 0 means
// unbounded.
type SupervisorConfig struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// Supervisor restarts live polling after connection loss.
type Supervisor struct {
	cfg      SupervisorConfig
	listener Listener
	health   HealthChecker
	logger   *zap.Logger
	sleep    func(context.Context, time.Duration) error
	attempts int
}

func NewSupervisor(listener Listener, health HealthChecker, cfg SupervisorConfig, logger *zap.Logger) *Supervisor {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		cfg:      cfg,
		listener: listener,
		health:   health,
		logger:   logger.Named("supervisor"),
		sleep:    sleepContext,
	}
}

// Attempts returns the number of attempts since the last success.
func (s *Supervisor) Attempts() int {
	return s.attempts
}

// AttemptReconnect waits the backoff delay for the next attempt and probes
// the connection. The counter resets on success.
func (s *Supervisor) AttemptReconnect(ctx context.Context) (bool, error) {
	s.attempts++
	if s.cfg.MaxAttempts > 0 && s.attempts > s.cfg.MaxAttempts {
		metrics.ReconnectAttemptsTotal.WithLabelValues("exhausted").Inc()
		return false, fmt.Errorf("%w (%d)", ErrMaxReconnectAttempts, s.cfg.MaxAttempts)
	}

	delay := ReconnectDelay(s.cfg.BaseDelay, s.attempts)
	s.logger.Info("reconnecting",
		zap.Int("attempt", s.attempts),
		zap.Int("max_attempts", s.cfg.MaxAttempts),
		zap.Duration("delay", delay),
	)
	if err := s.sleep(ctx, delay); err != nil {
		return false, err
	}

	if s.health.IsConnected(ctx) {
		metrics.ReconnectAttemptsTotal.WithLabelValues("success").Inc()
		s.logger.Info("reconnected", zap.Int("attempt", s.attempts))
		s.attempts = 0
		return true, nil
	}
	metrics.ReconnectAttemptsTotal.WithLabelValues("failure").Inc()
	s.logger.Warn("reconnection failed", zap.Int("attempt", s.attempts))
	return false, nil
}

// Run keeps live polling alive. A restarted session resumes after the last
// block the listener handled, or from the original block when none was seen.
// Cancellation ends Run with nil.
func (s *Supervisor) Run(ctx context.Context, from model.BlockRef, interval time.Duration) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if !s.health.IsConnected(ctx) {
			s.logger.Warn("connection lost")
			if err := s.reconnect(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			continue
		}

		err := s.listener.Listen(ctx, from, interval)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.logger.Warn("listener stopped", zap.Error(err))
		}
		from = s.resumeFrom(from)

		if err := s.reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (s *Supervisor) resumeFrom(from model.BlockRef) model.BlockRef {
	tracker, ok := s.listener.(BlockTracker)
	if !ok {
		return from
	}
	if last, seen := tracker.LastSeenBlock(); seen {
		s.logger.Info("resuming after last seen block", zap.Uint64("from", last+1))
		return model.AtBlock(last + 1)
	}
	return from
}

func (s *Supervisor) reconnect(ctx context.Context) error {
	for {
		ok, err := s.AttemptReconnect(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}
