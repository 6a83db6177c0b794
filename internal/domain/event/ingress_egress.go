package event

import "github.com/swapstream/swap-indexer/internal/domain/model"

// DepositActionKind says what the protocol did with a finalised deposit.
type DepositActionKind string

const (
	DepositActionSwap     DepositActionKind = "SWAP"
	DepositActionBoosted  DepositActionKind = "BOOSTED"
	DepositActionNoAction DepositActionKind = "NO_ACTION"
)

// DepositAction links a finalised deposit to the swap request it funded.
type DepositAction struct {
	Kind      DepositActionKind
	RequestID *uint64
}

// DepositFinalised attaches a witnessed deposit to its swap request.
type DepositFinalised struct {
	Chain          model.Chain
	Asset          model.Asset
	Amount         string
	ChannelID      *uint64
	DepositAddress *string
	BlockHeight    int64
	TxRef          *string
	IngressFee     string
	MaxBoostFeeBps int
	Action         DepositAction
}

func (d DepositFinalised) EventName() string {
	return string(d.Chain) + "IngressEgress.DepositFinalised"
}

// DepositBoosted credits a deposit before full confirmation depth, for a fee.
type DepositBoosted struct {
	Chain          model.Chain
	Asset          model.Asset
	Amount         string
	ChannelID      *uint64
	DepositAddress *string
	BlockHeight    int64
	TxRef          *string
	IngressFee     string
	BoostFeeBps    int
	BoostFee       string
	Action         DepositAction
}

func (d DepositBoosted) EventName() string {
	return string(d.Chain) + "IngressEgress.DepositBoosted"
}

// DepositFailedDetails is the per-origin payload of a failed deposit.
// Exactly one of Channel / Vault is set.
type DepositFailedDetails struct {
	Channel *DepositFailedChannel
	Vault   *DepositFailedVault
}

// DepositFailedChannel is a failed deposit into a deposit channel.
type DepositFailedChannel struct {
	DepositAddress string
	Asset          model.Asset
	Amount         string
	TxRef          *string
}

// DepositFailedVault is a failed vault swap.
type DepositFailedVault struct {
	Asset       model.Asset
	Amount      string
	DestAsset   *model.Asset
	DestAddress *string
	TxRef       *string
	// RefAddress is the account whose signatures will resolve TxRef when it
	// is nil (reference pending at witnessing).
	RefAddress *string
	Ccm        *CcmParams
	BrokerFees []BeneficiaryShare
	Dca        *DcaParams
	Fok        *FokParams
}

// DepositFailed records a deposit rejected before a swap request existed.
type DepositFailed struct {
	Chain       model.Chain
	Reason      string
	BlockHeight int64
	Details     DepositFailedDetails
}

func (d DepositFailed) EventName() string {
	return string(d.Chain) + "IngressEgress.DepositFailed"
}

// CcmOrigin is the origin union of a CcmFailed event. Exactly one of the
// fields is set; the handler enforces this as an invariant.
type CcmOrigin struct {
	TxRef     *string
	ChannelID *uint64
}

// CcmFailed records a cross-chain-message failure. The event does not carry
// the deposit amount/asset for channel origins; the handler fetches the
// originating call from the indexer.
type CcmFailed struct {
	Chain       model.Chain
	Reason      string
	DestAddress string
	Ccm         CcmParams
	Origin      CcmOrigin
}

func (c CcmFailed) EventName() string {
	return string(c.Chain) + "IngressEgress.CcmFailed"
}

// TransactionRejectedByBroker schedules a refund broadcast for a rejected
// deposit. The handler must match exactly one FailedSwap by tx ref, channel,
// or pending vault-swap reference.
type TransactionRejectedByBroker struct {
	Chain       model.Chain
	BroadcastID uint64
	TxRef       *string
	// RefAddress identifies the deposit account for chains where the tx ref
	// is pending at witnessing.
	RefAddress *string
	ChannelID  *uint64
}

func (t TransactionRejectedByBroker) EventName() string {
	return string(t.Chain) + "IngressEgress.TransactionRejectedByBroker"
}

// BatchBroadcastRequested binds scheduled egresses to one broadcast.
type BatchBroadcastRequested struct {
	Chain       model.Chain
	BroadcastID uint64
	EgressIDs   []uint64
}

func (b BatchBroadcastRequested) EventName() string {
	return string(b.Chain) + "IngressEgress.BatchBroadcastRequested"
}

// BroadcastSuccess confirms a broadcast on the destination chain.
type BroadcastSuccess struct {
	Chain       model.Chain
	BroadcastID uint64
	TxRef       *string
}

func (b BroadcastSuccess) EventName() string {
	return string(b.Chain) + "Broadcaster.BroadcastSuccess"
}

// BroadcastAborted gives up on a broadcast after retry exhaustion.
type BroadcastAborted struct {
	Chain       model.Chain
	BroadcastID uint64
}

func (b BroadcastAborted) EventName() string {
	return string(b.Chain) + "Broadcaster.BroadcastAborted"
}

// ChainStateUpdated advances the tracked external height of a chain.
type ChainStateUpdated struct {
	Chain  model.Chain
	Height int64
}

func (c ChainStateUpdated) EventName() string {
	return string(c.Chain) + "ChainTracking.ChainStateUpdated"
}
