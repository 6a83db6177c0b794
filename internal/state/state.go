// Package state derives the externally observable lifecycle state of one
// swap from its entity graph. Derivation is pure: it reads the graph and
// the out-of-band tracker observations captured in it, and writes nothing.
package state

import (
	"time"

	"github.com/swapstream/swap-indexer/internal/domain/model"
)

// State is the lifecycle position of a swap.
type State string

const (
	StateWaiting   State = "WAITING"
	StateReceiving State = "RECEIVING"
	StateSwapping  State = "SWAPPING"
	StateSending   State = "SENDING"
	StateSent      State = "SENT"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no later event can change the state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Graph is the joined entity graph of one swap identifier, plus the
// out-of-band tracker observations relevant to it. Chunks are ordered by
// native id descending.
type Graph struct {
	Channel *model.SwapDepositChannel
	Request *model.SwapRequest
	Chunks  []model.Swap

	SwapEgress      *model.Egress
	RefundEgress    *model.Egress
	SwapBroadcast   *model.Broadcast
	RefundBroadcast *model.Broadcast

	Ignored     []model.IgnoredEgress
	FailedSwaps []model.FailedSwap
	Fees        []model.Fee

	// TrackerTxRef is the destination transaction the broadcast tracker has
	// already seen, before the success event was witnessed.
	TrackerTxRef *string
	// PendingDepositAmount is a mempool-visible but unconfirmed deposit
	// reported by the deposit watcher.
	PendingDepositAmount *string
}

// ChunkInfo is the per-chunk slice of a DCA rollup.
type ChunkInfo struct {
	NativeID           uint64
	InputAmount        string
	IntermediateAmount *string
	OutputAmount       *string
	ScheduledAt        time.Time
	ExecutedAt         *time.Time
	RetryCount         int
}

// DcaRollup folds all principal chunks into aggregate execution progress.
type DcaRollup struct {
	SwappedInputAmount        string
	SwappedIntermediateAmount string
	SwappedOutputAmount       string
	ExecutedChunks            int
	RemainingChunks           int
	LastExecutedChunk         *ChunkInfo
	CurrentChunk              *ChunkInfo
}

// DepositInfo describes the witnessed (or boosted) deposit.
type DepositInfo struct {
	Amount         string
	TransactionRef *string
	WitnessedAt    *time.Time
	WitnessedIndex *string
}

// BoostInfo describes a boosted crediting of the deposit.
type BoostInfo struct {
	EffectiveBoostFeeBps int
	MaxBoostFeeBps       int
	BoostedAt            time.Time
}

// EgressInfo describes one outbound payment and its broadcast outcome.
type EgressInfo struct {
	Amount         string
	Asset          model.Asset
	ScheduledAt    time.Time
	SucceededAt    *time.Time
	AbortedAt      *time.Time
	TransactionRef *string
}

// FailureInfo carries the reason a swap is FAILED.
type FailureInfo struct {
	Reason   string
	FailedAt time.Time
}

// FeeTotal is one line of the fee rollup, summed over (type, asset).
type FeeTotal struct {
	Type   model.FeeType
	Asset  model.Asset
	Amount string
}

// Status is the derived response: the identity fields every state shares,
// plus a per-state detail payload carrying only the fields valid for that
// state.
type Status struct {
	SwapRequestID *uint64
	SrcAsset      model.Asset
	DestAsset     model.Asset
	DestAddress   *string

	ChannelKey *string
	DcaParams  *model.DcaParams
	FokParams  *model.FokParams
	Fees       []FeeTotal

	Detail Detail
}

func (s *Status) State() State {
	return s.Detail.State()
}

// Detail is the state-specific payload of a Status. Exactly one
// implementation exists per lifecycle state.
type Detail interface {
	State() State
}

// Waiting: the channel is open and nothing has arrived.
type Waiting struct{}

func (Waiting) State() State { return StateWaiting }

// Receiving: a deposit is inbound. Deposit stays nil while the watcher has
// only seen it in the mempool; once witnessed or boosted it is populated.
type Receiving struct {
	Deposit *DepositInfo
	Boost   *BoostInfo
}

func (Receiving) State() State { return StateReceiving }

// Swapping: at least one chunk has been scheduled against the deposit.
type Swapping struct {
	Deposit *DepositInfo
	Boost   *BoostInfo
	Dca     *DcaRollup
}

func (Swapping) State() State { return StateSwapping }

// Sending: an egress exists but no broadcast outcome is known yet.
type Sending struct {
	Deposit      *DepositInfo
	Boost        *BoostInfo
	Dca          *DcaRollup
	SwapEgress   *EgressInfo
	RefundEgress *EgressInfo
}

func (Sending) State() State { return StateSending }

// Sent: the broadcast tracker saw the outbound transaction before the
// success event was witnessed; its reference is on the egress.
type Sent struct {
	Deposit      *DepositInfo
	Boost        *BoostInfo
	Dca          *DcaRollup
	SwapEgress   *EgressInfo
	RefundEgress *EgressInfo
}

func (Sent) State() State { return StateSent }

// Completed: a broadcast succeeded.
type Completed struct {
	Deposit      *DepositInfo
	Boost        *BoostInfo
	Dca          *DcaRollup
	SwapEgress   *EgressInfo
	RefundEgress *EgressInfo
	CompletedAt  *time.Time
}

func (Completed) State() State { return StateCompleted }

// Failed: the swap cannot complete.
type Failed struct {
	Deposit      *DepositInfo
	Boost        *BoostInfo
	Dca          *DcaRollup
	SwapEgress   *EgressInfo
	RefundEgress *EgressInfo
	Failure      *FailureInfo
}

func (Failed) State() State { return StateFailed }
