package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"operatorMonitor/internal/contracts"
	"operatorMonitor/internal/metrics"
	"operatorMonitor/internal/model"
)

// ErrPollingStalled is returned by Listen after too many consecutive
// iterations in which every filter failed.
var ErrPollingStalled = errors.New("live polling stalled")

const cleanupTimeout = 10 * time.Second

// State is the lifecycle state of a Monitor.
type State int32

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// FilterGateway is the node-side filter API used for live polling.
type FilterGateway interface {
	NewFilter(ctx context.Context, fromBlock *uint64, address common.Address, topic0 common.Hash) (string, error)
	FilterChanges(ctx context.Context, id string) ([]types.Log, error)
	UninstallFilter(ctx context.Context, id string) (bool, error)
}

// EventHandler consumes events observed by the monitor.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev model.ChainEvent)
}

// CursorStore persists the highest block the monitor has seen.
type CursorStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, block uint64) error
}

// Config holds live polling settings.
type Config struct {
	// PollFailureLimit is the number of consecutive failed iterations
	// after which Listen gives up. Zero disables the limit.
	PollFailureLimit int
	Cursor           CursorStore
}

// Monitor polls node-side filters for every (contract, event) pair and
// routes decoded events to a handler.
type Monitor struct {
	gateway FilterGateway
	handles []*contracts.Handle
	lookup  contracts.Lookup
	handler EventHandler
	cfg     Config
	logger  *zap.Logger
	state   atomic.Int32
	sleep   func(context.Context, time.Duration) error

	mu       sync.Mutex
	lastSeen uint64
}

type liveFilter struct {
	id     string
	handle *contracts.Handle
	event  string
}

type pollResult struct {
	events []model.ChainEvent
	err    error
}

// New builds a Monitor over the given contract handles.
func New(gateway FilterGateway, handles []*contracts.Handle, handler EventHandler, cfg Config, logger *zap.Logger) (*Monitor, error) {
	if gateway == nil {
		return nil, fmt.Errorf("filter gateway is nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("event handler is nil")
	}
	if len(handles) == 0 {
		return nil, fmt.Errorf("at least one contract is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		gateway: gateway,
		handles: handles,
		lookup:  contracts.NewLookup(handles),
		handler: handler,
		cfg:     cfg,
		logger:  logger.Named("monitor"),
		sleep:   sleepContext,
	}, nil
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

// LastSeenBlock returns the highest block observed in live polling.
func (m *Monitor) LastSeenBlock() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeen, m.lastSeen > 0
}

// Listen creates the filters and polls them until ctx is cancelled or
// polling stalls. Filters are uninstalled before it returns.
func (m *Monitor) Listen(ctx context.Context, from model.BlockRef, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if !m.state.CompareAndSwap(int32(Idle), int32(Polling)) {
		return fmt.Errorf("monitor is already polling")
	}
	defer m.state.Store(int32(Idle))

	filters, err := m.createFilters(ctx, from)
	if err != nil {
		return err
	}
	defer m.uninstall(ctx, filters)

	m.logger.Info("listening",
		zap.Int("filters", len(filters)),
		zap.Stringer("from", from),
		zap.Duration("interval", interval),
	)

	failures := 0
	for {
		failed := m.pollOnce(ctx, filters)
		if err := ctx.Err(); err != nil {
			return err
		}

		wait := interval
		if failed {
			failures++
			wait = 2 * interval
			m.logger.Warn("poll iteration failed", zap.Int("consecutive", failures))
			if m.cfg.PollFailureLimit > 0 && failures >= m.cfg.PollFailureLimit {
				return fmt.Errorf("%w after %d iterations", ErrPollingStalled, failures)
			}
		} else {
			failures = 0
		}

		if err := m.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (m *Monitor) createFilters(ctx context.Context, from model.BlockRef) ([]liveFilter, error) {
	var fromBlock *uint64
	if !from.Latest {
		n := from.Number
		fromBlock = &n
	}

	filters := make([]liveFilter, 0)
	for _, h := range m.handles {
		for _, event := range h.EventTypes() {
			topic, ok := h.Topic(event)
			if !ok {
				m.logger.Warn("event has no topic", zap.String("contract", h.Name()), zap.String("event", event))
				continue
			}
			id, err := m.gateway.NewFilter(ctx, fromBlock, h.Address(), topic)
			if err != nil {
				m.uninstall(ctx, filters)
				return nil, fmt.Errorf("create filter %s.%s: %w", h.Name(), event, err)
			}
			filters = append(filters, liveFilter{id: id, handle: h, event: event})
		}
	}
	return filters, nil
}

func (m *Monitor) uninstall(ctx context.Context, filters []liveFilter) {
	if len(filters) == 0 {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	for _, f := range filters {
		if _, err := m.gateway.UninstallFilter(cleanupCtx, f.id); err != nil {
			m.logger.Debug("uninstall filter failed", zap.String("filter", f.id), zap.Error(err))
		}
	}
}

// pollOnce polls every filter concurrently, then hands events to the
// handler in filter order. It reports whether every filter failed.
func (m *Monitor) pollOnce(ctx context.Context, filters []liveFilter) bool {
	metrics.PollIterationsTotal.Inc()

	results := make([]pollResult, len(filters))
	var wg sync.WaitGroup
	for i, f := range filters {
		wg.Add(1)
		go func(i int, f liveFilter) {
			defer wg.Done()
			results[i] = m.pollFilter(ctx, f)
		}(i, f)
	}
	wg.Wait()

	failed := 0
	var highest uint64
	for i, res := range results {
		f := filters[i]
		if res.err != nil {
			failed++
			metrics.PollErrorsTotal.WithLabelValues(f.handle.Name(), f.event).Inc()
			m.logger.Warn("poll filter failed",
				zap.String("contract", f.handle.Name()),
				zap.String("event", f.event),
				zap.Error(res.err),
			)
			continue
		}
		for _, ev := range res.events {
			if ctx.Err() != nil {
				return false
			}
			m.handler.HandleEvent(ctx, ev)
			if ev.BlockNumber > highest {
				highest = ev.BlockNumber
			}
		}
	}

	if highest > 0 {
		m.advance(ctx, highest)
	}
	return len(filters) > 0 && failed == len(filters)
}

func (m *Monitor) pollFilter(ctx context.Context, f liveFilter) pollResult {
	logs, err := m.gateway.FilterChanges(ctx, f.id)
	if err != nil {
		return pollResult{err: err}
	}

	events := make([]model.ChainEvent, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		ev, err := f.handle.DecodeLog(log)
		if err != nil {
			m.logger.Debug("skip undecodable log",
				zap.String("contract", f.handle.Name()),
				zap.String("tx", log.TxHash.Hex()),
				zap.Error(err),
			)
			continue
		}
		events = append(events, m.lookup.Attribute(ev))
	}
	return pollResult{events: events}
}

func (m *Monitor) advance(ctx context.Context, block uint64) {
	m.mu.Lock()
	if block <= m.lastSeen {
		m.mu.Unlock()
		return
	}
	m.lastSeen = block
	m.mu.Unlock()

	metrics.LastSeenBlock.Set(float64(block))
	if m.cfg.Cursor == nil {
		return
	}
	if err := m.cfg.Cursor.Save(ctx, block); err != nil {
		m.logger.Warn("save cursor failed", zap.Uint64("block", block), zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
