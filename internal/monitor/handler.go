package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"operatorMonitor/internal/calldata"
	"operatorMonitor/internal/contracts"
	"operatorMonitor/internal/metrics"
	"operatorMonitor/internal/model"
	"operatorMonitor/internal/notify"
	"operatorMonitor/internal/processor"
	"operatorMonitor/internal/storage"
)

// ErrInvalidEvent marks events missing a required field.
var ErrInvalidEvent = errors.New("invalid event")

// TxAnalyzer inspects the transaction behind an event.
type TxAnalyzer interface {
	Analyze(ctx context.Context, txHash common.Hash) (*calldata.Analysis, error)
}

// HandlerConfig wires the handler. Sink, Validators and Analyzer are optional.
type HandlerConfig struct {
	Classifier *processor.Classifier
	Formatter  *processor.Formatter
	Fanout     *notify.Fanout
	Sink       storage.EventSink
	Validators storage.ValidatorStore
	Analyzer   TxAnalyzer
	ChainID    uint64
}

// Handler validates, filters, enriches and forwards events.
type Handler struct {
	cfg    HandlerConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewHandler(cfg HandlerConfig, logger *zap.Logger) (*Handler, error) {
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is nil")
	}
	if cfg.Formatter == nil {
		return nil, fmt.Errorf("formatter is nil")
	}
	if cfg.Fanout == nil {
		return nil, fmt.Errorf("notification fanout is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{cfg: cfg, logger: logger.Named("handler"), now: time.Now}, nil
}

// ValidateEvent checks the fields every notification needs.
func ValidateEvent(ev model.ChainEvent) error {
	switch {
	case ev.EventName == "":
		return fmt.Errorf("%w: missing event_name", ErrInvalidEvent)
	case ev.Args == nil:
		return fmt.Errorf("%w: missing args", ErrInvalidEvent)
	case ev.BlockNumber == 0:
		return fmt.Errorf("%w: missing block_number", ErrInvalidEvent)
	case ev.TxHash == (common.Hash{}):
		return fmt.Errorf("%w: missing tx_hash", ErrInvalidEvent)
	case ev.LogAddress == (common.Address{}):
		return fmt.Errorf("%w: missing log_address", ErrInvalidEvent)
	}
	return nil
}

// HandleEvent processes one event. Failures are logged, never returned.
func (h *Handler) HandleEvent(ctx context.Context, ev model.ChainEvent) {
	if err := ValidateEvent(ev); err != nil {
		h.logger.Warn("skip invalid event",
			zap.String("contract", ev.ContractName),
			zap.String("event", ev.EventName),
			zap.Error(err),
		)
		h.observe(ev, "invalid")
		return
	}

	if !h.cfg.Classifier.ShouldProcess(ev) {
		h.logger.Debug("event filtered",
			zap.String("contract", ev.ContractName),
			zap.String("event", ev.EventName),
			zap.String("tx", ev.TxHash.Hex()),
		)
		h.observe(ev, "filtered")
		return
	}

	if h.cfg.Sink != nil {
		record := ev.Record(h.cfg.ChainID, h.now().UTC().Format(time.RFC3339Nano))
		if err := h.cfg.Sink.PutEvents(ctx, []model.EventRecord{record}); err != nil {
			metrics.StoreErrorsTotal.WithLabelValues("events").Inc()
			h.logger.Warn("store event failed", zap.String("tx", ev.TxHash.Hex()), zap.Error(err))
		}
	}

	analysis := h.analyze(ctx, ev)
	message := h.cfg.Formatter.Format(ev, analysis)

	if h.cfg.Fanout.Send(ctx, message, &ev) {
		h.observe(ev, "delivered")
		return
	}
	h.observe(ev, "undelivered")
	h.logger.Error("event not delivered to any channel",
		zap.String("contract", ev.ContractName),
		zap.String("event", ev.EventName),
		zap.String("tx", ev.TxHash.Hex()),
	)
}

// analyze decodes the registration calldata behind Registry.OperatorRegistered
// and records the operator's validators.
func (h *Handler) analyze(ctx context.Context, ev model.ChainEvent) *calldata.Analysis {
	if h.cfg.Analyzer == nil || ev.ContractName != contracts.KindRegistry || ev.EventName != "OperatorRegistered" {
		return nil
	}

	analysis, err := h.cfg.Analyzer.Analyze(ctx, ev.TxHash)
	if err != nil {
		h.logger.Info("no calldata analysis", zap.String("tx", ev.TxHash.Hex()), zap.Error(err))
		return nil
	}

	if h.cfg.Validators != nil {
		pubkeys := analysis.Decoded.Pubkeys()
		if err := h.cfg.Validators.StoreOperatorValidators(ctx, analysis.Operator, pubkeys); err != nil {
			metrics.StoreErrorsTotal.WithLabelValues("validators").Inc()
			h.logger.Warn("store operator validators failed",
				zap.String("operator", analysis.Operator.Hex()),
				zap.Error(err),
			)
		}
	}
	return analysis
}

func (h *Handler) observe(ev model.ChainEvent, outcome string) {
	metrics.EventsObservedTotal.WithLabelValues(ev.ContractName, ev.EventName, outcome).Inc()
}
