package processor

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"operatorMonitor/internal/contracts"
	"operatorMonitor/internal/model"
)

// Classifier decides which events are relayed.
type Classifier struct {
	middleware    common.Address
	hasMiddleware bool
	logger        *zap.Logger
}

// NewClassifier builds a classifier. A zero middleware address means none
// is configured.
func NewClassifier(middleware common.Address, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		middleware:    middleware,
		hasMiddleware: middleware != (common.Address{}),
		logger:        logger,
	}
}

// ShouldProcess reports whether an event passes the contract-specific
// filters. AllocationManager operator-set events are only admitted for the
// configured middleware AVS; events without an operator set pass. Without a
// middleware every AllocationManager event is suppressed.
func (c *Classifier) ShouldProcess(ev model.ChainEvent) bool {
	if ev.ContractName != contracts.KindAllocationManager {
		return true
	}
	if !c.hasMiddleware {
		c.logger.Warn("allocation manager event suppressed: no middleware address configured",
			zap.String("event", ev.EventName),
			zap.String("tx", ev.TxHash.Hex()),
		)
		return false
	}

	switch ev.EventName {
	case "OperatorAddedToOperatorSet", "OperatorRemovedFromOperatorSet":
		avs, ok := operatorSetAVS(ev.Args)
		if !ok {
			return true
		}
		if !strings.EqualFold(avs, c.middleware.Hex()) {
			c.logger.Debug("ignoring allocation manager event for other avs", zap.String("avs", avs))
			return false
		}
	}
	return true
}

func operatorSetAVS(args map[string]interface{}) (string, bool) {
	set, ok := args["operatorSet"].(map[string]interface{})
	if !ok {
		return "", false
	}
	switch avs := set["avs"].(type) {
	case common.Address:
		return avs.Hex(), true
	case string:
		return strings.TrimSpace(avs), avs != ""
	default:
		return "", false
	}
}
