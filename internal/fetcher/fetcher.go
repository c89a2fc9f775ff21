package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"operatorMonitor/internal/metrics"
	"operatorMonitor/internal/model"
)

// ErrInvalidChunkSize is returned by New when the chunk size is not positive.
var ErrInvalidChunkSize = errors.New("chunk size must be greater than zero")

// Source is a contract whose events can be queried over a block range.
type Source interface {
	Name() string
	EventTypes() []string
	HistoricalEvents(ctx context.Context, event string, from, to uint64) ([]model.ChainEvent, error)
}

// BlockSource resolves the chain head.
type BlockSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Config holds backfill settings.
type Config struct {
	ChunkSize   int
	MaxRetries  int
	RetryBase   time.Duration
	Concurrency int
}

// Request describes one backfill.
type Request struct {
	From           model.BlockRef
	To             model.BlockRef
	MaxEvents      int
	ContractFilter string
}

// Fetcher retrieves historical events over arbitrary block ranges.
type Fetcher struct {
	cfg    Config
	blocks BlockSource
	logger *zap.Logger
}

// New builds a Fetcher. A non-positive chunk size is a configuration error.
func New(cfg Config, blocks BlockSource, logger *zap.Logger) (*Fetcher, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, cfg.ChunkSize)
	}
	if blocks == nil {
		return nil, fmt.Errorf("block source is nil")
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, blocks: blocks, logger: logger}, nil
}

type triple struct {
	source Source
	event  string
}

// Fetch returns the events of the given sources in the requested range,
// sorted by (block, tx index) and capped to the most recent MaxEvents.
// A query that keeps failing after all retries is dropped; the rest of the
// backfill still contributes.
func (f *Fetcher) Fetch(ctx context.Context, sources []Source, req Request) ([]model.ChainEvent, error) {
	to, err := f.resolve(ctx, req.To)
	if err != nil {
		return nil, fmt.Errorf("resolve to block: %w", err)
	}
	from := to
	if !req.From.Latest {
		from = req.From.Number
	}

	if req.ContractFilter != "" {
		sources = filterSources(sources, req.ContractFilter)
		if len(sources) == 0 {
			f.logger.Warn("no contracts match filter", zap.String("filter", req.ContractFilter))
			return []model.ChainEvent{}, nil
		}
	}

	if from > to {
		f.logger.Info("empty block range", zap.Uint64("from", from), zap.Uint64("to", to))
		return []model.ChainEvent{}, nil
	}

	windows, err := SplitRange(from, to, uint64(f.cfg.ChunkSize))
	if err != nil {
		return nil, err
	}

	var triples []triple
	for _, src := range sources {
		for _, event := range src.EventTypes() {
			triples = append(triples, triple{source: src, event: event})
		}
	}

	f.logger.Info("backfill start",
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("windows", len(windows)),
		zap.Int("queries_per_window", len(triples)),
	)

	var all []model.ChainEvent
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		events, err := f.fetchWindow(ctx, w, triples)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
		metrics.FetchWindowsTotal.Inc()

		f.logger.Debug("window complete", zap.Uint64("from", w.From), zap.Uint64("to", w.To), zap.Int("events", len(events)))
	}

	model.SortEvents(all)
	if req.MaxEvents > 0 && len(all) > req.MaxEvents {
		f.logger.Info("truncating backfill to most recent events",
			zap.Int("retrieved", len(all)),
			zap.Int("max_events", req.MaxEvents),
		)
		all = all[len(all)-req.MaxEvents:]
	}
	if all == nil {
		all = []model.ChainEvent{}
	}

	return all, nil
}

// fetchWindow queries every triple of one window concurrently. Each triple
// writes only its own slot, so results need no locking.
func (f *Fetcher) fetchWindow(ctx context.Context, w Window, triples []triple) ([]model.ChainEvent, error) {
	results := make([][]model.ChainEvent, len(triples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, t := range triples {
		i, t := i, t
		g.Go(func() error {
			events, err := f.queryWithRetry(gctx, w, t)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				metrics.FetchDroppedTotal.WithLabelValues(t.source.Name(), t.event).Inc()
				f.logger.Error("dropping window after retries",
					zap.String("contract", t.source.Name()),
					zap.String("event", t.event),
					zap.Uint64("from", w.From),
					zap.Uint64("to", w.To),
					zap.Int("attempts", f.cfg.MaxRetries),
					zap.Error(err),
				)
				return nil
			}
			results[i] = events
			metrics.FetchEventsTotal.WithLabelValues(t.source.Name(), t.event).Add(float64(len(events)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.ChainEvent
	for _, events := range results {
		out = append(out, events...)
	}
	return out, nil
}

func (f *Fetcher) queryWithRetry(ctx context.Context, w Window, t triple) ([]model.ChainEvent, error) {
	var events []model.ChainEvent
	err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBase, func(ctx context.Context, attempt int) error {
		var err error
		events, err = t.source.HistoricalEvents(ctx, t.event, w.From, w.To)
		if err != nil {
			metrics.FetchRetriesTotal.WithLabelValues(t.source.Name(), t.event).Inc()
			f.logger.Warn("historical query failed",
				zap.String("contract", t.source.Name()),
				zap.String("event", t.event),
				zap.Uint64("from", w.From),
				zap.Uint64("to", w.To),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		}
		return err
	})
	return events, err
}

func (f *Fetcher) resolve(ctx context.Context, ref model.BlockRef) (uint64, error) {
	if !ref.Latest {
		return ref.Number, nil
	}
	return f.blocks.LatestBlockNumber(ctx)
}

func filterSources(sources []Source, name string) []Source {
	out := make([]Source, 0, len(sources))
	for _, src := range sources {
		if strings.EqualFold(src.Name(), name) {
			out = append(out, src)
		}
	}
	return out
}
