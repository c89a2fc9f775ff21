package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"operatorMonitor/internal/metrics"
	"operatorMonitor/internal/model"
)

// Notifier is one delivery channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, message string, event *model.ChainEvent) error
	TestConnection(ctx context.Context) error
}

// Fanout delivers to every primary channel and falls back to the fallback
// channels, in order, only when no primary succeeded.
type Fanout struct {
	primary  []Notifier
	fallback []Notifier
	logger   *zap.Logger
}

func NewFanout(logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{logger: logger}
}

// AddPrimary registers a channel that receives every message.
func (f *Fanout) AddPrimary(n Notifier) {
	f.primary = append(f.primary, n)
	f.logger.Info("added primary notifier", zap.String("notifier", n.Name()))
}

// AddFallback registers a channel used only when every primary failed.
func (f *Fanout) AddFallback(n Notifier) {
	f.fallback = append(f.fallback, n)
	f.logger.Info("added fallback notifier", zap.String("notifier", n.Name()))
}

// Send returns true if at least one channel delivered the message.
func (f *Fanout) Send(ctx context.Context, message string, event *model.ChainEvent) bool {
	delivered := 0
	for _, n := range f.primary {
		if err := f.deliver(ctx, n, message, event); err != nil {
			f.logger.Warn("notifier failed", zap.String("notifier", n.Name()), zap.Error(err))
			continue
		}
		delivered++
	}

	if delivered == 0 && len(f.fallback) > 0 {
		if len(f.primary) > 0 {
			f.logger.Warn("all primary notifiers failed, trying fallbacks")
		}
		for _, n := range f.fallback {
			if err := f.deliver(ctx, n, message, event); err != nil {
				f.logger.Warn("fallback notifier failed", zap.String("notifier", n.Name()), zap.Error(err))
				continue
			}
			delivered++
			break
		}
	}

	if delivered == 0 {
		f.logger.Error("all notification channels failed")
		return false
	}
	f.logger.Debug("notification sent", zap.Int("channels", delivered))
	return true
}

// deliver converts a panicking channel into an error.
func (f *Fanout) deliver(ctx context.Context, n Notifier, message string, event *model.ChainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.NotificationsTotal.WithLabelValues(n.Name(), result).Inc()
	}()
	return n.Send(ctx, message, event)
}

// ConnectionResult is the outcome of testing one channel.
type ConnectionResult struct {
	Name     string
	Fallback bool
	Err      error
}

// TestConnections tests every channel, primaries first.
func (f *Fanout) TestConnections(ctx context.Context) []ConnectionResult {
	results := make([]ConnectionResult, 0, len(f.primary)+len(f.fallback))
	for _, n := range f.primary {
		results = append(results, ConnectionResult{Name: n.Name(), Err: n.TestConnection(ctx)})
	}
	for _, n := range f.fallback {
		results = append(results, ConnectionResult{Name: n.Name(), Fallback: true, Err: n.TestConnection(ctx)})
	}
	return results
}

// Channels lists the configured channel names.
func (f *Fanout) Channels() []string {
	names := make([]string, 0, len(f.primary)+len(f.fallback))
	for _, n := range f.primary {
		names = append(names, n.Name())
	}
	for _, n := range f.fallback {
		names = append(names, n.Name()+" (fallback)")
	}
	return names
}
