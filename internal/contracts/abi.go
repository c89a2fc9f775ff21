package contracts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract kind names, also used as display names for their handles.
const (
	KindRegistry          = "Registry"
	KindCoordinator       = "TaiyiRegistryCoordinator"
	KindEscrow            = "TaiyiEscrow"
	KindCore              = "TaiyiCore"
	KindMiddleware        = "EigenLayerMiddleware"
	KindAllocationManager = "EigenLayerAllocationManager"
)

const registryABIJSON = `[
  {"anonymous": false, "name": "OperatorRegistered", "type": "event", "inputs": [
    {"indexed": true, "name": "registrationRoot", "type": "bytes32"},
    {"indexed": false, "name": "collateralWei", "type": "uint256"},
    {"indexed": false, "name": "owner", "type": "address"}
  ]},
  {"anonymous": false, "name": "OperatorSlashed", "type": "event", "inputs": [
    {"indexed": false, "name": "slashingType", "type": "uint8"},
    {"indexed": true, "name": "registrationRoot", "type": "bytes32"},
    {"indexed": false, "name": "owner", "type": "address"},
    {"indexed": false, "name": "challenger", "type": "address"},
    {"indexed": true, "name": "slasher", "type": "address"},
    {"indexed": false, "name": "slashAmountWei", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "OperatorUnregistered", "type": "event", "inputs": [
    {"indexed": true, "name": "registrationRoot", "type": "bytes32"}
  ]},
  {"anonymous": false, "name": "CollateralClaimed", "type": "event", "inputs": [
    {"indexed": true, "name": "registrationRoot", "type": "bytes32"},
    {"indexed": false, "name": "collateralWei", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "CollateralAdded", "type": "event", "inputs": [
    {"indexed": true, "name": "registrationRoot", "type": "bytes32"},
    {"indexed": false, "name": "collateralWei", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "OperatorOptedIn", "type": "event", "inputs": [
    {"indexed": true, "name": "registrationRoot", "type": "bytes32"},
    {"indexed": true, "name": "slasher", "type": "address"},
    {"indexed": true, "name": "committer", "type": "address"}
  ]},
  {"anonymous": false, "name": "OperatorOptedOut", "type": "event", "inputs": [
    {"indexed": true, "name": "registrationRoot", "type": "bytes32"},
    {"indexed": true, "name": "slasher", "type": "address"}
  ]}
]`

const coordinatorABIJSON = `[
  {"anonymous": false, "name": "OperatorRegistered", "type": "event", "inputs": [
    {"indexed": true, "name": "operator", "type": "address"},
    {"indexed": true, "name": "operatorId", "type": "bytes32"},
    {"indexed": false, "name": "linglongSubsetIds", "type": "uint32[]"}
  ]},
  {"anonymous": false, "name": "OperatorDeregistered", "type": "event", "inputs": [
    {"indexed": true, "name": "operator", "type": "address"},
    {"indexed": true, "name": "operatorId", "type": "bytes32"},
    {"indexed": false, "name": "linglongSubsetIds", "type": "uint32[]"}
  ]},
  {"anonymous": false, "name": "OperatorStatusChanged", "type": "event", "inputs": [
    {"indexed": true, "name": "operator", "type": "address"},
    {"indexed": false, "name": "previousStatus", "type": "uint8"},
    {"indexed": false, "name": "newStatus", "type": "uint8"}
  ]},
  {"anonymous": false, "name": "LinglongSubsetCreated", "type": "event", "inputs": [
    {"indexed": true, "name": "linglongSubsetId", "type": "uint32"},
    {"indexed": false, "name": "minStake", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "OperatorAddedToSubset", "type": "event", "inputs": [
    {"indexed": true, "name": "operator", "type": "address"},
    {"indexed": true, "name": "linglongSubsetId", "type": "uint32"}
  ]},
  {"anonymous": false, "name": "OperatorRemovedFromSubset", "type": "event", "inputs": [
    {"indexed": true, "name": "operator", "type": "address"},
    {"indexed": true, "name": "linglongSubsetId", "type": "uint32"}
  ]},
  {"anonymous": false, "name": "SocketRegistryUpdated", "type": "event", "inputs": [
    {"indexed": true, "name": "oldRegistry", "type": "address"},
    {"indexed": true, "name": "newRegistry", "type": "address"}
  ]},
  {"anonymous": false, "name": "PubkeyRegistryUpdated", "type": "event", "inputs": [
    {"indexed": true, "name": "oldRegistry", "type": "address"},
    {"indexed": true, "name": "newRegistry", "type": "address"}
  ]},
  {"anonymous": false, "name": "OperatorSocketUpdate", "type": "event", "inputs": [
    {"indexed": true, "name": "operatorId", "type": "bytes32"},
    {"indexed": false, "name": "socket", "type": "string"}
  ]},
  {"anonymous": false, "name": "RestakingMiddlewareUpdated", "type": "event", "inputs": [
    {"indexed": false, "name": "restakingProtocol", "type": "uint8"},
    {"indexed": false, "name": "newMiddleware", "type": "address"}
  ]}
]`

const escrowABIJSON = `[
  {"anonymous": false, "name": "Deposited", "type": "event", "inputs": [
    {"indexed": true, "name": "user", "type": "address"},
    {"indexed": false, "name": "amount", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "Withdrawn", "type": "event", "inputs": [
    {"indexed": true, "name": "user", "type": "address"},
    {"indexed": false, "name": "amount", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "PaymentMade", "type": "event", "inputs": [
    {"indexed": true, "name": "from", "type": "address"},
    {"indexed": false, "name": "amount", "type": "uint256"},
    {"indexed": false, "name": "isAfterExec", "type": "bool"}
  ]},
  {"anonymous": false, "name": "RequestedWithdraw", "type": "event", "inputs": [
    {"indexed": true, "name": "user", "type": "address"},
    {"indexed": false, "name": "amount", "type": "uint256"}
  ]}
]`

const coreABIJSON = `[
  {"anonymous": false, "name": "Exhausted", "type": "event", "inputs": [
    {"indexed": true, "name": "preconfer", "type": "address"},
    {"indexed": false, "name": "amount", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "TipCollected", "type": "event", "inputs": [
    {"indexed": false, "name": "amount", "type": "uint256"},
    {"indexed": false, "name": "preconfRequestHash", "type": "bytes32"}
  ]},
  {"anonymous": false, "name": "PreconfRequestExecuted", "type": "event", "inputs": [
    {"indexed": true, "name": "preconfRequestHash", "type": "bytes32"},
    {"indexed": false, "name": "tipAmount", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "TipReceived", "type": "event", "inputs": [
    {"indexed": true, "name": "preconfRequestHash", "type": "bytes32"},
    {"indexed": false, "name": "amount", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "EthSponsored", "type": "event", "inputs": [
    {"indexed": true, "name": "recipient", "type": "address"},
    {"indexed": false, "name": "amount", "type": "uint256"}
  ]}
]`

const middlewareABIJSON = `[
  {"anonymous": false, "name": "RewardsHandlerSet", "type": "event", "inputs": [
    {"indexed": false, "name": "rewardsHandler", "type": "address"}
  ]},
  {"anonymous": false, "name": "RewardsInitiatorSet", "type": "event", "inputs": [
    {"indexed": true, "name": "oldInitiator", "type": "address"},
    {"indexed": true, "name": "newInitiator", "type": "address"}
  ]},
  {"anonymous": false, "name": "ValidatorsRegistered", "type": "event", "inputs": [
    {"indexed": true, "name": "operator", "type": "address"},
    {"indexed": true, "name": "registrationRoot", "type": "bytes32"}
  ]},
  {"anonymous": false, "name": "ValidatorsUnregistered", "type": "event", "inputs": [
    {"indexed": true, "name": "operator", "type": "address"},
    {"indexed": true, "name": "registrationRoot", "type": "bytes32"}
  ]},
  {"anonymous": false, "name": "DelegationsBatchSet", "type": "event", "inputs": [
    {"indexed": true, "name": "operator", "type": "address"},
    {"indexed": true, "name": "registrationRoot", "type": "bytes32"},
    {"indexed": false, "name": "count", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "SlasherOptedIn", "type": "event", "inputs": [
    {"indexed": true, "name": "operator", "type": "address"},
    {"indexed": true, "name": "registrationRoot", "type": "bytes32"},
    {"indexed": true, "name": "delegatee", "type": "address"}
  ]}
]`

const allocationManagerABIJSON = `[
  {"anonymous": false, "name": "OperatorAddedToOperatorSet", "type": "event", "inputs": [
    {"indexed": true, "name": "operator", "type": "address"},
    {"indexed": false, "name": "operatorSet", "type": "tuple", "components": [
      {"name": "avs", "type": "address"},
      {"name": "id", "type": "uint32"}
    ]}
  ]},
  {"anonymous": false, "name": "OperatorRemovedFromOperatorSet", "type": "event", "inputs": [
    {"indexed": true, "name": "operator", "type": "address"},
    {"indexed": false, "name": "operatorSet", "type": "tuple", "components": [
      {"name": "avs", "type": "address"},
      {"name": "id", "type": "uint32"}
    ]}
  ]}
]`

type kindSpec struct {
	abiJSON string
	events  []string
}

// Event order is the monitoring order; it follows the contract source.
var builtinKinds = map[string]kindSpec{
	KindRegistry: {registryABIJSON, []string{
		"OperatorRegistered", "OperatorSlashed", "OperatorUnregistered",
		"CollateralClaimed", "CollateralAdded", "OperatorOptedIn", "OperatorOptedOut",
	}},
	KindCoordinator: {coordinatorABIJSON, []string{
		"OperatorRegistered", "OperatorDeregistered", "OperatorStatusChanged",
		"LinglongSubsetCreated", "OperatorAddedToSubset", "OperatorRemovedFromSubset",
		"SocketRegistryUpdated", "PubkeyRegistryUpdated", "OperatorSocketUpdate",
		"RestakingMiddlewareUpdated",
	}},
	KindEscrow: {escrowABIJSON, []string{
		"Deposited", "Withdrawn", "PaymentMade", "RequestedWithdraw",
	}},
	KindCore: {coreABIJSON, []string{
		"Exhausted", "TipCollected", "PreconfRequestExecuted", "TipReceived", "EthSponsored",
	}},
	KindMiddleware: {middlewareABIJSON, []string{
		"RewardsHandlerSet", "RewardsInitiatorSet", "ValidatorsRegistered",
		"ValidatorsUnregistered", "DelegationsBatchSet", "SlasherOptedIn",
	}},
	KindAllocationManager: {allocationManagerABIJSON, []string{
		"OperatorAddedToOperatorSet", "OperatorRemovedFromOperatorSet",
	}},
}

var (
	abiOnce   sync.Once
	abiCache  map[string]abi.ABI
	abiErr    error
	kindOrder = []string{
		KindRegistry, KindCoordinator, KindEscrow, KindCore, KindMiddleware, KindAllocationManager,
	}
)

// BuiltinABI returns the parsed ABI of a built-in contract kind.
func BuiltinABI(kind string) (abi.ABI, error) {
	abiOnce.Do(func() {
		abiCache = make(map[string]abi.ABI, len(builtinKinds))
		for name, entry := range builtinKinds {
			parsed, err := abi.JSON(strings.NewReader(entry.abiJSON))
			if err != nil {
				abiErr = fmt.Errorf("parse %s abi: %w", name, err)
				return
			}
			abiCache[name] = parsed
		}
	})
	if abiErr != nil {
		return abi.ABI{}, abiErr
	}
	parsed, ok := abiCache[kind]
	if !ok {
		return abi.ABI{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return parsed, nil
}
