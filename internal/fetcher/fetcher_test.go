package fetcher

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"operatorMonitor/internal/model"
)

type fakeBlocks struct {
	latest uint64
	calls  int
}

func (f *fakeBlocks) LatestBlockNumber(context.Context) (uint64, error) {
	f.calls++
	return f.latest, nil
}

type call struct {
	event    string
	from, to uint64
}

type fakeSource struct {
	name   string
	events []string
	// blocks holds the block numbers at which each event was emitted.
	blocks map[string][]uint64
	// failures is the number of leading calls that fail per event; -1 fails forever.
	failures map[string]int

	mu    sync.Mutex
	calls []call
	seen  map[string]int
}

func (f *fakeSource) Name() string         { return f.name }
func (f *fakeSource) EventTypes() []string { return f.events }

func (f *fakeSource) HistoricalEvents(_ context.Context, event string, from, to uint64) ([]model.ChainEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{event: event, from: from, to: to})
	if f.seen == nil {
		f.seen = make(map[string]int)
	}
	f.seen[event]++
	if n, ok := f.failures[event]; ok && (n < 0 || f.seen[event] <= n) {
		return nil, errors.New("rpc unavailable")
	}

	var out []model.ChainEvent
	for i, block := range f.blocks[event] {
		if block < from || block > to {
			continue
		}
		out = append(out, model.ChainEvent{
			ContractName: f.name,
			EventName:    event,
			BlockNumber:  block,
			TxIndex:      uint(i),
		})
	}
	return out, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestFetcher(t *testing.T, chunk, retries int, blocks BlockSource) *Fetcher {
	t.Helper()
	f, err := New(Config{ChunkSize: chunk, MaxRetries: retries, RetryBase: time.Millisecond, Concurrency: 4}, blocks, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	return f
}

func eventKeys(events []model.ChainEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, fmt.Sprintf("%s@%d/%d", ev.EventName, ev.BlockNumber, ev.TxIndex))
	}
	return out
}

func TestFetchEndToEnd(t *testing.T) {
	src := &fakeSource{
		name:   "Registry",
		events: []string{"OperatorRegistered"},
		blocks: map[string][]uint64{"OperatorRegistered": {210, 120}},
	}
	f := newTestFetcher(t, 50, 3, &fakeBlocks{latest: 1000})

	events, err := f.Fetch(context.Background(), []Source{src}, Request{
		From:      model.AtBlock(100),
		To:        model.AtBlock(249),
		MaxEvents: 10,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(events) != 2 || events[0].BlockNumber != 120 || events[1].BlockNumber != 210 {
		t.Fatalf("events mismatch: %v", eventKeys(events))
	}

	wantCalls := []call{
		{"OperatorRegistered", 100, 149},
		{"OperatorRegistered", 150, 199},
		{"OperatorRegistered", 200, 249},
	}
	if !reflect.DeepEqual(src.calls, wantCalls) {
		t.Fatalf("calls mismatch: %+v", src.calls)
	}
}

func TestFetchInvertedRange(t *testing.T) {
	src := &fakeSource{name: "Registry", events: []string{"OperatorRegistered"}}
	f := newTestFetcher(t, 50, 3, &fakeBlocks{})

	events, err := f.Fetch(context.Background(), []Source{src}, Request{
		From: model.AtBlock(300),
		To:   model.AtBlock(299),
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", eventKeys(events))
	}
	if src.callCount() != 0 {
		t.Fatalf("expected no queries, got %d", src.callCount())
	}
}

func TestFetchDropsExhaustedQueries(t *testing.T) {
	flaky := &fakeSource{
		name:     "TaiyiEscrow",
		events:   []string{"Deposited", "Withdrawn"},
		blocks:   map[string][]uint64{"Deposited": {5}, "Withdrawn": {7, 15}},
		failures: map[string]int{"Deposited": -1},
	}
	healthy := &fakeSource{
		name:   "Registry",
		events: []string{"OperatorRegistered"},
		blocks: map[string][]uint64{"OperatorRegistered": {3}},
	}
	f := newTestFetcher(t, 10, 2, &fakeBlocks{})

	events, err := f.Fetch(context.Background(), []Source{flaky, healthy}, Request{
		From: model.AtBlock(0),
		To:   model.AtBlock(19),
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	want := []string{"OperatorRegistered@3/0", "Withdrawn@7/0", "Withdrawn@15/1"}
	if !reflect.DeepEqual(eventKeys(events), want) {
		t.Fatalf("events mismatch: %v", eventKeys(events))
	}
	if flaky.seen["Deposited"] != 4 {
		t.Fatalf("expected 2 attempts per window, got %d", flaky.seen["Deposited"])
	}
}

func TestFetchRetriesTransientFailure(t *testing.T) {
	src := &fakeSource{
		name:     "TaiyiCore",
		events:   []string{"TipReceived"},
		blocks:   map[string][]uint64{"TipReceived": {42}},
		failures: map[string]int{"TipReceived": 2},
	}
	f := newTestFetcher(t, 100, 3, &fakeBlocks{})

	events, err := f.Fetch(context.Background(), []Source{src}, Request{
		From: model.AtBlock(0),
		To:   model.AtBlock(99),
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 1 || events[0].BlockNumber != 42 {
		t.Fatalf("events mismatch: %v", eventKeys(events))
	}
	if src.seen["TipReceived"] != 3 {
		t.Fatalf("expected 3 attempts, got %d", src.seen["TipReceived"])
	}
}

func TestFetchKeepsMostRecent(t *testing.T) {
	src := &fakeSource{
		name:   "Registry",
		events: []string{"OperatorRegistered", "OperatorSlashed"},
		blocks: map[string][]uint64{
			"OperatorRegistered": {90, 10, 55},
			"OperatorSlashed":    {30, 75, 5},
		},
	}
	f := newTestFetcher(t, 25, 1, &fakeBlocks{})

	events, err := f.Fetch(context.Background(), []Source{src}, Request{
		From:      model.AtBlock(0),
		To:        model.AtBlock(99),
		MaxEvents: 3,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	want := []string{"OperatorRegistered@55/2", "OperatorSlashed@75/1", "OperatorRegistered@90/0"}
	if !reflect.DeepEqual(eventKeys(events), want) {
		t.Fatalf("events mismatch: %v", eventKeys(events))
	}
}

func TestFetchResolvesLatestOnce(t *testing.T) {
	src := &fakeSource{
		name:   "Registry",
		events: []string{"OperatorRegistered"},
		blocks: map[string][]uint64{"OperatorRegistered": {500, 501}},
	}
	blocks := &fakeBlocks{latest: 500}
	f := newTestFetcher(t, 1000, 1, blocks)

	events, err := f.Fetch(context.Background(), []Source{src}, Request{
		From: model.AtBlock(0),
		To:   model.LatestBlock(),
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 1 || events[0].BlockNumber != 500 {
		t.Fatalf("events mismatch: %v", eventKeys(events))
	}
	if blocks.calls != 1 {
		t.Fatalf("expected one head lookup, got %d", blocks.calls)
	}
}

func TestFetchContractFilter(t *testing.T) {
	registry := &fakeSource{
		name:   "Registry",
		events: []string{"OperatorRegistered"},
		blocks: map[string][]uint64{"OperatorRegistered": {1}},
	}
	escrow := &fakeSource{
		name:   "TaiyiEscrow",
		events: []string{"Deposited"},
		blocks: map[string][]uint64{"Deposited": {2}},
	}
	f := newTestFetcher(t, 10, 1, &fakeBlocks{})

	events, err := f.Fetch(context.Background(), []Source{registry, escrow}, Request{
		From:           model.AtBlock(0),
		To:             model.AtBlock(9),
		ContractFilter: "taiyiescrow",
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 1 || events[0].EventName != "Deposited" {
		t.Fatalf("events mismatch: %v", eventKeys(events))
	}
	if registry.callCount() != 0 {
		t.Fatalf("filtered contract was queried")
	}

	events, err = f.Fetch(context.Background(), []Source{registry, escrow}, Request{
		From:           model.AtBlock(0),
		To:             model.AtBlock(9),
		ContractFilter: "Nope",
	})
	if err != nil {
		t.Fatalf("unmatched filter should not fail: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty result, got %v", eventKeys(events))
	}
}

func TestNewRejectsChunkSize(t *testing.T) {
	for _, size := range []int{0, -5} {
		if _, err := New(Config{ChunkSize: size}, &fakeBlocks{}, nil); !errors.Is(err, ErrInvalidChunkSize) {
			t.Fatalf("chunk %d: expected ErrInvalidChunkSize, got %v", size, err)
		}
	}
}

func TestFetchCancelled(t *testing.T) {
	src := &fakeSource{
		name:     "Registry",
		events:   []string{"OperatorRegistered"},
		failures: map[string]int{"OperatorRegistered": -1},
	}
	f, err := New(Config{ChunkSize: 10, MaxRetries: 5, RetryBase: time.Hour}, &fakeBlocks{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := f.Fetch(ctx, []Source{src}, Request{From: model.AtBlock(0), To: model.AtBlock(9)}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
