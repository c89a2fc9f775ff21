package storage

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"operatorMonitor/internal/model"
)

// EventSink stores processed events.
type EventSink interface {
	PutEvents(ctx context.Context, records []model.EventRecord) error
}

// ValidatorStore persists operator -> validator pubkey associations.
// Operators are keyed by lowercase hex address.
type ValidatorStore interface {
	StoreOperatorValidators(ctx context.Context, operator common.Address, pubkeys []string) error
	GetOperatorValidators(ctx context.Context, operator common.Address) ([]string, error)
	GetAllOperators(ctx context.Context) (map[string][]string, error)
	Close() error
}

// OperatorKey is the canonical map key for an operator address.
func OperatorKey(operator common.Address) string {
	return strings.ToLower(operator.Hex())
}

// MergeValidators appends incoming pubkeys that are not already present,
// keeping first-seen order. Pubkeys compare case-insensitively.
func MergeValidators(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, key := range list {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			norm := strings.ToLower(key)
			if _, ok := seen[norm]; ok {
				continue
			}
			seen[norm] = struct{}{}
			out = append(out, key)
		}
	}
	return out
}
