package processor

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/params"

	"operatorMonitor/internal/calldata"
	"operatorMonitor/internal/contracts"
	"operatorMonitor/internal/model"
)

var (
	slashingTypes = map[uint8]string{0: "Fraud", 1: "Equivocation", 2: "Commitment"}

	operatorStatuses = map[uint8]string{0: "NEVER_REGISTERED", 1: "REGISTERED", 2: "DEREGISTERED"}

	restakingProtocols = map[uint8]string{0: "NONE", 1: "EIGENLAYER", 2: "SYMBIOTIC"}
)

var rule = strings.Repeat("=", 80)

// Formatter renders events as human-readable notifications.
type Formatter struct {
	explorer string
	now      func() time.Time
}

// NewFormatter builds a formatter linking transactions to the given block explorer.
func NewFormatter(explorer string) *Formatter {
	return &Formatter{
		explorer: strings.TrimRight(explorer, "/"),
		now:      time.Now,
	}
}

// Format renders an event. The calldata analysis is optional.
func (f *Formatter) Format(ev model.ChainEvent, analysis *calldata.Analysis) string {
	var b strings.Builder
	tx := ev.TxHash.Hex()

	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "🔥 EVENT DETECTED: %s\n", ev.EventName)
	fmt.Fprintf(&b, "⏰ Timestamp: %s\n", f.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "📦 Block: %d\n", ev.BlockNumber)
	fmt.Fprintf(&b, "🔗 Transaction: %s\n", tx)
	fmt.Fprintf(&b, "🌐 Block Explorer: %s/tx/%s\n", f.explorer, tx)
	fmt.Fprintf(&b, "📄 Contract: %s (%s)\n", ev.ContractName, ev.LogAddress.Hex())
	fmt.Fprintf(&b, "%s\n", rule)

	a := args(ev.Args)
	switch ev.ContractName {
	case contracts.KindRegistry:
		formatRegistry(&b, ev.EventName, a)
		if analysis != nil && analysis.Decoded != nil {
			b.WriteString("\n")
			b.WriteString(analysis.Decoded.Summary(false))
		}
	case contracts.KindCoordinator:
		formatCoordinator(&b, ev.EventName, a)
	case contracts.KindEscrow:
		formatEscrow(&b, ev.EventName, a)
	case contracts.KindAllocationManager:
		formatAllocationManager(&b, ev.EventName, a)
	default:
		formatGeneric(&b, ev.Args)
	}

	fmt.Fprintf(&b, "%s\n", rule)
	return b.String()
}

type args map[string]interface{}

func (a args) str(name string) string {
	return model.FormatArg(a[name])
}

func (a args) eth(name string) string {
	return FormatEther(a[name])
}

func (a args) enum(name string, labels map[uint8]string) string {
	if v, ok := a[name].(uint8); ok {
		if label, ok := labels[v]; ok {
			return label
		}
	}
	return fmt.Sprintf("Unknown(%s)", a.str(name))
}

func (a args) operatorSet() (string, string) {
	set, _ := a["operatorSet"].(map[string]interface{})
	return model.FormatArg(set["avs"]), model.FormatArg(set["id"])
}

func formatRegistry(b *strings.Builder, event string, a args) {
	switch event {
	case "OperatorRegistered":
		fmt.Fprintf(b, "📝 Registration Root: %s\n", a.str("registrationRoot"))
		fmt.Fprintf(b, "💰 Collateral: %s ETH\n", a.eth("collateralWei"))
		fmt.Fprintf(b, "👤 Owner: %s\n", a.str("owner"))
	case "OperatorSlashed":
		fmt.Fprintf(b, "⚡ Slashing Type: %s\n", a.enum("slashingType", slashingTypes))
		fmt.Fprintf(b, "📝 Registration Root: %s\n", a.str("registrationRoot"))
		fmt.Fprintf(b, "👤 Owner: %s\n", a.str("owner"))
		fmt.Fprintf(b, "🔍 Challenger: %s\n", a.str("challenger"))
		fmt.Fprintf(b, "⚔️  Slasher: %s\n", a.str("slasher"))
		fmt.Fprintf(b, "💸 Slashed Amount: %s ETH\n", a.eth("slashAmountWei"))
	case "OperatorUnregistered":
		fmt.Fprintf(b, "📝 Registration Root: %s\n", a.str("registrationRoot"))
	case "CollateralClaimed":
		fmt.Fprintf(b, "📝 Registration Root: %s\n", a.str("registrationRoot"))
		fmt.Fprintf(b, "💰 Claimed Amount: %s ETH\n", a.eth("collateralWei"))
	case "CollateralAdded":
		fmt.Fprintf(b, "📝 Registration Root: %s\n", a.str("registrationRoot"))
		fmt.Fprintf(b, "💰 Added Amount: %s ETH\n", a.eth("collateralWei"))
	case "OperatorOptedIn":
		fmt.Fprintf(b, "📝 Registration Root: %s\n", a.str("registrationRoot"))
		fmt.Fprintf(b, "⚔️  Slasher: %s\n", a.str("slasher"))
		fmt.Fprintf(b, "🔑 Committer: %s\n", a.str("committer"))
	case "OperatorOptedOut":
		fmt.Fprintf(b, "📝 Registration Root: %s\n", a.str("registrationRoot"))
		fmt.Fprintf(b, "⚔️  Slasher: %s\n", a.str("slasher"))
	}
}

func formatCoordinator(b *strings.Builder, event string, a args) {
	switch event {
	case "OperatorRegistered", "OperatorDeregistered":
		fmt.Fprintf(b, "👤 Operator: %s\n", a.str("operator"))
		fmt.Fprintf(b, "🆔 Operator ID: %s\n", a.str("operatorId"))
		fmt.Fprintf(b, "📋 Linglong Subset IDs: %s\n", a.str("linglongSubsetIds"))
	case "OperatorStatusChanged":
		fmt.Fprintf(b, "👤 Operator: %s\n", a.str("operator"))
		fmt.Fprintf(b, "📊 Previous Status: %s\n", a.enum("previousStatus", operatorStatuses))
		fmt.Fprintf(b, "📊 New Status: %s\n", a.enum("newStatus", operatorStatuses))
	case "LinglongSubsetCreated":
		fmt.Fprintf(b, "🆔 Linglong Subset ID: %s\n", a.str("linglongSubsetId"))
		fmt.Fprintf(b, "💰 Minimum Stake: %s ETH\n", a.eth("minStake"))
	case "OperatorAddedToSubset", "OperatorRemovedFromSubset":
		fmt.Fprintf(b, "👤 Operator: %s\n", a.str("operator"))
		fmt.Fprintf(b, "🆔 Linglong Subset ID: %s\n", a.str("linglongSubsetId"))
	case "SocketRegistryUpdated", "PubkeyRegistryUpdated":
		fmt.Fprintf(b, "🔄 Old Registry: %s\n", a.str("oldRegistry"))
		fmt.Fprintf(b, "🔄 New Registry: %s\n", a.str("newRegistry"))
	case "OperatorSocketUpdate":
		fmt.Fprintf(b, "🆔 Operator ID: %s\n", a.str("operatorId"))
		fmt.Fprintf(b, "🔌 Socket: %s\n", a.str("socket"))
	case "RestakingMiddlewareUpdated":
		fmt.Fprintf(b, "🔗 Restaking Protocol: %s\n", a.enum("restakingProtocol", restakingProtocols))
		fmt.Fprintf(b, "🔄 New Middleware: %s\n", a.str("newMiddleware"))
	}
}

func formatEscrow(b *strings.Builder, event string, a args) {
	switch event {
	case "Deposited":
		fmt.Fprintf(b, "👤 User: %s\n", a.str("user"))
		fmt.Fprintf(b, "💰 Amount: %s ETH\n", a.eth("amount"))
	case "Withdrawn":
		fmt.Fprintf(b, "👤 User: %s\n", a.str("user"))
		fmt.Fprintf(b, "💸 Amount: %s ETH\n", a.eth("amount"))
	case "PaymentMade":
		status := "⏳ Pre-execution"
		if after, _ := a["isAfterExec"].(bool); after {
			status = "✅ After Execution"
		}
		fmt.Fprintf(b, "👤 From: %s\n", a.str("from"))
		fmt.Fprintf(b, "💰 Amount: %s ETH\n", a.eth("amount"))
		fmt.Fprintf(b, "📋 Status: %s\n", status)
	case "RequestedWithdraw":
		fmt.Fprintf(b, "👤 User: %s\n", a.str("user"))
		fmt.Fprintf(b, "💰 Requested Amount: %s ETH\n", a.eth("amount"))
	}
}

func formatAllocationManager(b *strings.Builder, event string, a args) {
	switch event {
	case "OperatorAddedToOperatorSet", "OperatorRemovedFromOperatorSet":
		avs, id := a.operatorSet()
		fmt.Fprintf(b, "👤 Operator: %s\n", a.str("operator"))
		fmt.Fprintf(b, "🏢 AVS Address: %s\n", avs)
		fmt.Fprintf(b, "🆔 Operator Set ID: %s\n", id)
	}
}

func formatGeneric(b *strings.Builder, values map[string]interface{}) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("📋 Event Arguments:\n")
	for _, k := range keys {
		fmt.Fprintf(b, "   %s: %s\n", k, model.FormatArg(values[k]))
	}
}

var weiPerEther = big.NewInt(params.Ether)

// FormatEther renders a wei amount in ether without trailing zeros.
func FormatEther(v interface{}) string {
	wei, ok := v.(*big.Int)
	if !ok || wei == nil {
		return model.FormatArg(v)
	}
	s := new(big.Rat).SetFrac(wei, weiPerEther).FloatString(18)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
