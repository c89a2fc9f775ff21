package monitor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"operatorMonitor/internal/contracts"
	"operatorMonitor/internal/model"
)

var (
	escrowAddr = common.HexToAddress("0x5555555555555555555555555555555555555555")
	otherAddr  = common.HexToAddress("0x9999999999999999999999999999999999999999")
	userAddr   = common.HexToAddress("0x6666666666666666666666666666666666666666")
)

type fakeFilter struct {
	from    *uint64
	address common.Address
	topic   common.Hash
	calls   int
}

type fakeGateway struct {
	mu          sync.Mutex
	filters     map[string]*fakeFilter
	order       []string
	uninstalled []string
	createFail  int
	changes     func(f *fakeFilter) ([]types.Log, error)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{filters: make(map[string]*fakeFilter)}
}

func (g *fakeGateway) NewFilter(_ context.Context, from *uint64, address common.Address, topic0 common.Hash) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createFail > 0 && len(g.order)+1 == g.createFail {
		return "", errors.New("filter limit")
	}
	id := fmt.Sprintf("0x%d", len(g.order)+1)
	g.filters[id] = &fakeFilter{from: from, address: address, topic: topic0}
	g.order = append(g.order, id)
	return id, nil
}

func (g *fakeGateway) FilterChanges(_ context.Context, id string) ([]types.Log, error) {
	g.mu.Lock()
	f, ok := g.filters[id]
	if ok {
		f.calls++
	}
	g.mu.Unlock()
	if !ok {
		return nil, errors.New("filter not found")
	}
	if g.changes == nil {
		return nil, nil
	}
	return g.changes(f)
}

func (g *fakeGateway) UninstallFilter(_ context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.uninstalled = append(g.uninstalled, id)
	return true, nil
}

type recordingHandler struct {
	mu      sync.Mutex
	events  []model.ChainEvent
	onEvent func()
}

func (h *recordingHandler) HandleEvent(_ context.Context, ev model.ChainEvent) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	if h.onEvent != nil {
		h.onEvent()
	}
}

func escrowHandle(t *testing.T) *contracts.Handle {
	t.Helper()
	parsed, err := contracts.BuiltinABI(contracts.KindEscrow)
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	kind, err := contracts.NewABIKind(contracts.KindEscrow, parsed, []string{"Deposited", "Withdrawn"})
	if err != nil {
		t.Fatalf("kind: %v", err)
	}
	return contracts.NewHandle("escrow", escrowAddr, kind, nil)
}

func depositedLog(t *testing.T, h *contracts.Handle, address common.Address, block uint64) types.Log {
	t.Helper()
	parsed, err := contracts.BuiltinABI(contracts.KindEscrow)
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	ev := parsed.Events["Deposited"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(7))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return types.Log{
		Address:     address,
		Topics:      []common.Hash{ev.ID, common.BytesToHash(userAddr.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash(fmt.Sprintf("0x%x", block)),
	}
}

func TestListenIsolatesFailingFilter(t *testing.T) {
	h := escrowHandle(t)
	deposited, _ := h.Topic("Deposited")
	logs := []types.Log{
		depositedLog(t, h, escrowAddr, 10),
		depositedLog(t, h, otherAddr, 11),
	}

	gw := newFakeGateway()
	gw.changes = func(f *fakeFilter) ([]types.Log, error) {
		if f.topic != deposited {
			return nil, errors.New("withdrawn filter broken")
		}
		if f.calls == 1 {
			return logs, nil
		}
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := &recordingHandler{}
	handler.onEvent = func() {
		handler.mu.Lock()
		n := len(handler.events)
		handler.mu.Unlock()
		if n == 2 {
			cancel()
		}
	}

	m, err := New(gw, []*contracts.Handle{h}, handler, Config{}, nil)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	m.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	err = m.Listen(ctx, model.LatestBlock(), time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}

	if len(handler.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(handler.events))
	}
	first, second := handler.events[0], handler.events[1]
	if first.ContractName != contracts.KindEscrow || first.Args["user"] != userAddr {
		t.Fatalf("first event mismatch: %+v", first)
	}
	if second.ContractName != model.UnknownContract || second.ContractAddress != otherAddr || second.LogAddress != otherAddr {
		t.Fatalf("second event should be unknown: %+v", second)
	}
	if !reflect.DeepEqual(gw.uninstalled, gw.order) {
		t.Fatalf("uninstalled %v, created %v", gw.uninstalled, gw.order)
	}
	if m.State() != Idle {
		t.Fatalf("expected idle state after listen, got %s", m.State())
	}
	if last, ok := m.LastSeenBlock(); !ok || last != 11 {
		t.Fatalf("last seen mismatch: %d %v", last, ok)
	}
}

func TestListenDoublesSleepAfterFailedIteration(t *testing.T) {
	h := escrowHandle(t)
	gw := newFakeGateway()
	gw.changes = func(f *fakeFilter) ([]types.Log, error) {
		if f.calls == 1 {
			return nil, errors.New("node unavailable")
		}
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m, err := New(gw, []*contracts.Handle{h}, &recordingHandler{}, Config{}, nil)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	var sleeps []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		if len(sleeps) == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	if err := m.Listen(ctx, model.LatestBlock(), time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	want := []time.Duration{2 * time.Second, time.Second, time.Second}
	if !reflect.DeepEqual(sleeps, want) {
		t.Fatalf("sleeps mismatch: %v != %v", sleeps, want)
	}
}

func TestListenPartialFailureKeepsInterval(t *testing.T) {
	h := escrowHandle(t)
	deposited, _ := h.Topic("Deposited")
	gw := newFakeGateway()
	gw.changes = func(f *fakeFilter) ([]types.Log, error) {
		if f.topic == deposited {
			return nil, errors.New("broken")
		}
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m, err := New(gw, []*contracts.Handle{h}, &recordingHandler{}, Config{PollFailureLimit: 1}, nil)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	var sleeps []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		cancel()
		return ctx.Err()
	}

	if err := m.Listen(ctx, model.LatestBlock(), time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !reflect.DeepEqual(sleeps, []time.Duration{time.Second}) {
		t.Fatalf("sleeps mismatch: %v", sleeps)
	}
}

func TestListenStallsAfterFailureLimit(t *testing.T) {
	h := escrowHandle(t)
	gw := newFakeGateway()
	gw.changes = func(*fakeFilter) ([]types.Log, error) {
		return nil, errors.New("filter not found")
	}

	m, err := New(gw, []*contracts.Handle{h}, &recordingHandler{}, Config{PollFailureLimit: 3}, nil)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	var sleeps []time.Duration
	m.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	err = m.Listen(context.Background(), model.AtBlock(5), 10*time.Millisecond)
	if !errors.Is(err, ErrPollingStalled) {
		t.Fatalf("expected stalled error, got %v", err)
	}
	if len(sleeps) != 2 || sleeps[0] != 20*time.Millisecond {
		t.Fatalf("sleeps mismatch: %v", sleeps)
	}
	if len(gw.uninstalled) != 2 {
		t.Fatalf("expected filters uninstalled, got %v", gw.uninstalled)
	}
}

func TestListenCleansUpOnCreateFailure(t *testing.T) {
	h := escrowHandle(t)
	gw := newFakeGateway()
	gw.createFail = 2

	m, err := New(gw, []*contracts.Handle{h}, &recordingHandler{}, Config{}, nil)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	if err := m.Listen(context.Background(), model.LatestBlock(), time.Second); err == nil {
		t.Fatalf("expected create failure")
	}
	if !reflect.DeepEqual(gw.uninstalled, []string{"0x1"}) {
		t.Fatalf("uninstalled mismatch: %v", gw.uninstalled)
	}
	if m.State() != Idle {
		t.Fatalf("expected idle state, got %s", m.State())
	}
}

func TestListenSavesCursor(t *testing.T) {
	h := escrowHandle(t)
	deposited, _ := h.Topic("Deposited")
	gw := newFakeGateway()
	gw.changes = func(f *fakeFilter) ([]types.Log, error) {
		if f.topic == deposited && f.calls == 1 {
			return []types.Log{depositedLog(t, h, escrowAddr, 42)}, nil
		}
		return nil, nil
	}

	cursor := NewFileCursor(filepath.Join(t.TempDir(), "cursor.json"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m, err := New(gw, []*contracts.Handle{h}, &recordingHandler{}, Config{Cursor: cursor}, nil)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	m.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	_ = m.Listen(ctx, model.LatestBlock(), time.Second)

	next, ok, err := ResumeFrom(context.Background(), cursor, 0)
	if err != nil || !ok || next != 43 {
		t.Fatalf("resume mismatch: %d %v %v", next, ok, err)
	}
}

func TestNewRequiresHandles(t *testing.T) {
	if _, err := New(newFakeGateway(), nil, &recordingHandler{}, Config{}, nil); err == nil {
		t.Fatalf("expected error without handles")
	}
}

func TestListenWithoutFailureLimitKeepsPolling(t *testing.T) {
	h := escrowHandle(t)
	gw := newFakeGateway()
	gw.changes = func(*fakeFilter) ([]types.Log, error) {
		return nil, errors.New("node unavailable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m, err := New(gw, []*contracts.Handle{h}, &recordingHandler{}, Config{}, nil)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	iterations := 0
	m.sleep = func(ctx context.Context, _ time.Duration) error {
		iterations++
		if iterations == 25 {
			cancel()
		}
		return ctx.Err()
	}

	if err := m.Listen(ctx, model.LatestBlock(), time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if iterations != 25 {
		t.Fatalf("expected 25 iterations, got %d", iterations)
	}
}
