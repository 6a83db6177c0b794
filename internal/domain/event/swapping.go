package event

import "github.com/swapstream/swap-indexer/internal/domain/model"

// Canonical is the chain-agnostic representation of one normalized event.
// Handlers type-switch on the concrete type.
type Canonical interface {
	EventName() string
}

// BeneficiaryShare is one commission recipient carried by a channel-ready or
// vault-swap event.
type BeneficiaryShare struct {
	Account       string
	Type          model.BeneficiaryType
	CommissionBps int
}

// DcaParams mirror model.DcaParams at the event boundary.
type DcaParams struct {
	NumberOfChunks int
	ChunkInterval  int
}

// FokParams mirror model.FokParams at the event boundary.
type FokParams struct {
	MinPriceX128  string
	RefundAddress string
	RetryDuration int
}

// CcmParams carry cross-chain-message metadata.
type CcmParams struct {
	GasBudget      string
	Message        string
	AdditionalData string
}

// SwapDepositAddressReady announces that a deposit channel is open and
// configured for swapping.
type SwapDepositAddressReady struct {
	Chain          model.Chain
	ChannelID      uint64
	DepositAddress string
	SrcAsset       model.Asset
	DestAsset      model.Asset
	DestAddress    string

	Broker              string
	BrokerCommissionBps int
	Affiliates          []BeneficiaryShare

	MaxBoostFeeBps         int
	ChannelOpeningFee      string
	SourceChainExpiryBlock int64

	Dca *DcaParams
	Fok *FokParams
}

func (SwapDepositAddressReady) EventName() string { return "Swapping.SwapDepositAddressReady" }

// Origin describes where a swap request came from.
type Origin struct {
	Kind model.OriginKind

	// Deposit-channel origin.
	ChannelID      uint64
	DepositAddress string
	DepositHeight  int64
	Broker         string

	// Vault origin. TxRef is the canonical reference derived from the
	// chain-native transaction id; nil when it is only known at settlement.
	TxRef *string

	// On-chain-account origin.
	Account string
}

// SwapRequested creates one logical swap.
type SwapRequested struct {
	RequestID   uint64
	SrcAsset    model.Asset
	DestAsset   model.Asset
	InputAmount string
	Origin      Origin
	Kind        model.RequestKind
	DestAddress *string
	Ccm         *CcmParams
	Dca         *DcaParams
	Fok         *FokParams
}

func (SwapRequested) EventName() string { return "Swapping.SwapRequested" }

// SwapScheduled opens one execution chunk of a swap request.
type SwapScheduled struct {
	SwapID      uint64
	RequestID   uint64
	InputAmount string
	Kind        model.SwapKind
	ExecuteAt   int64
}

func (SwapScheduled) EventName() string { return "Swapping.SwapScheduled" }

// SwapRescheduled retries an in-flight chunk.
type SwapRescheduled struct {
	SwapID    uint64
	ExecuteAt int64
}

func (SwapRescheduled) EventName() string { return "Swapping.SwapRescheduled" }

// SwapExecuted settles one chunk.
type SwapExecuted struct {
	SwapID             uint64
	RequestID          uint64
	InputAmount        string
	IntermediateAmount *string
	OutputAmount       string
	NetworkFee         string
	BrokerFee          string
}

func (SwapExecuted) EventName() string { return "Swapping.SwapExecuted" }

// SwapRequestCompleted closes a swap request.
type SwapRequestCompleted struct {
	RequestID uint64
}

func (SwapRequestCompleted) EventName() string { return "Swapping.SwapRequestCompleted" }

// EgressScheduled records an outbound payment (swap output or refund).
type EgressScheduled struct {
	RequestID   uint64
	Kind        model.EgressKind
	EgressChain model.Chain
	EgressID    uint64
	Asset       model.Asset
	Amount      string
	Fee         string
}

func (e EgressScheduled) EventName() string {
	if e.Kind == model.EgressRefund {
		return "Swapping.RefundEgressScheduled"
	}
	return "Swapping.SwapEgressScheduled"
}

// ModuleError is a module-indexed runtime error code.
type ModuleError struct {
	PalletIndex int
	ErrorIndex  int
}

// EgressIgnored records that an egress was computed but dropped.
type EgressIgnored struct {
	RequestID uint64
	Kind      model.EgressKind
	Asset     model.Asset
	Amount    string
	Reason    ModuleError
}

func (e EgressIgnored) EventName() string {
	if e.Kind == model.EgressRefund {
		return "Swapping.RefundEgressIgnored"
	}
	return "Swapping.SwapEgressIgnored"
}
