package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/swapstream/swap-indexer/internal/domain/model"
)

// TxBeginner abstracts the ability to begin a database transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// ChannelRepository provides access to deposit channels and their
// swap-specific configuration.
type ChannelRepository interface {
	// UpsertDepositChannelTx is keyed by (chain, deposit_address,
	// issued_block); replays return the existing row id.
	UpsertDepositChannelTx(ctx context.Context, tx *sql.Tx, c *model.DepositChannel) (uuid.UUID, error)
	// UpsertSwapDepositChannelTx is keyed by (issued_block, chain,
	// channel_id) and replaces the beneficiary list on conflict.
	UpsertSwapDepositChannelTx(ctx context.Context, tx *sql.Tx, c *model.SwapDepositChannel) (uuid.UUID, error)

	// GetDepositChannelTx returns the latest-issued deposit channel for an
	// address, or nil when none exists.
	GetDepositChannelTx(ctx context.Context, tx *sql.Tx, chain model.Chain, depositAddress string) (*model.DepositChannel, error)
	// FindLatestSwapChannelTx resolves (chain, channel id, deposit address)
	// ordered by issued block descending; nil when none matches.
	FindLatestSwapChannelTx(ctx context.Context, tx *sql.Tx, chain model.Chain, channelID uint64, depositAddress string) (*model.SwapDepositChannel, error)
	// FindLatestSwapChannelByAddressTx resolves the latest swap channel for
	// a deposit address alone.
	FindLatestSwapChannelByAddressTx(ctx context.Context, tx *sql.Tx, chain model.Chain, depositAddress string) (*model.SwapDepositChannel, error)

	GetSwapChannelByKey(ctx context.Context, key model.ChannelKey) (*model.SwapDepositChannel, error)
	GetSwapChannelByID(ctx context.Context, id uuid.UUID) (*model.SwapDepositChannel, error)
}

// DepositAttach carries the deposit fields attached to a swap request when
// its deposit is finalised or boosted.
type DepositAttach struct {
	Amount               string
	At                   time.Time
	BlockIndex           string
	TxRef                *string
	Boosted              bool
	EffectiveBoostFeeBps *int
	MaxBoostFeeBps       *int
}

// SwapRequestRepository provides access to logical swap requests.
type SwapRequestRepository interface {
	// CreateTx is keyed by native_id; replays return the existing row id.
	CreateTx(ctx context.Context, tx *sql.Tx, r *model.SwapRequest) (uuid.UUID, error)
	GetByNativeIDTx(ctx context.Context, tx *sql.Tx, nativeID uint64) (*model.SwapRequest, error)
	GetByNativeID(ctx context.Context, nativeID uint64) (*model.SwapRequest, error)
	GetByTransactionRef(ctx context.Context, ref string) (*model.SwapRequest, error)

	AttachDepositTx(ctx context.Context, tx *sql.Tx, nativeID uint64, attach DepositAttach) error
	SetEgressTx(ctx context.Context, tx *sql.Tx, nativeID uint64, kind model.EgressKind, egressID uuid.UUID) error
	CompleteTx(ctx context.Context, tx *sql.Tx, nativeID uint64, at time.Time, blockIndex string) error

	// ListFinalisedByChannel returns requests with a finalised deposit under
	// a channel, most recent block index first.
	ListFinalisedByChannel(ctx context.Context, channelID uuid.UUID) ([]model.SwapRequest, error)
	// LatestByChannel returns the most recently requested swap under a
	// channel, or nil.
	LatestByChannel(ctx context.Context, channelID uuid.UUID) (*model.SwapRequest, error)
	UpdateDepositTxRefTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, ref string) error
}

// ExecutedSwap carries the settlement fields of one chunk.
type ExecutedSwap struct {
	InputAmount        string
	IntermediateAmount *string
	OutputAmount       string
	At                 time.Time
	BlockIndex         string
}

// SwapRepository provides access to DCA execution chunks.
type SwapRepository interface {
	// CreateTx is keyed by native_id; replaying is a no-op.
	CreateTx(ctx context.Context, tx *sql.Tx, s *model.Swap) (uuid.UUID, error)
	GetByNativeIDTx(ctx context.Context, tx *sql.Tx, nativeID uint64) (*model.Swap, error)
	ExecuteTx(ctx context.Context, tx *sql.Tx, nativeID uint64, exec ExecutedSwap) error
	RescheduleTx(ctx context.Context, tx *sql.Tx, nativeID uint64, at time.Time, blockIndex string) error
	// ListByRequest returns chunks in descending native id order.
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.Swap, error)
}

// EgressRepository provides access to scheduled outbound payments.
type EgressRepository interface {
	// CreateTx is keyed by (chain, native_id, kind); replays return the
	// existing row id.
	CreateTx(ctx context.Context, tx *sql.Tx, e *model.Egress) (uuid.UUID, error)
	// BindBroadcastTx attaches a broadcast to every listed egress id.
	BindBroadcastTx(ctx context.Context, tx *sql.Tx, chain model.Chain, nativeIDs []uint64, broadcastID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Egress, error)
}

// BroadcastRepository provides access to destination-chain broadcasts.
type BroadcastRepository interface {
	// CreateTx is keyed by (chain, native_id); replays return the existing
	// row id.
	CreateTx(ctx context.Context, tx *sql.Tx, b *model.Broadcast) (uuid.UUID, error)
	// MarkSucceededTx and MarkAbortedTx are idempotent and mutually
	// exclusive: a broadcast that already carries a terminal timestamp is
	// left untouched.
	MarkSucceededTx(ctx context.Context, tx *sql.Tx, chain model.Chain, nativeID uint64, at time.Time, blockIndex string, txRef *string) error
	MarkAbortedTx(ctx context.Context, tx *sql.Tx, chain model.Chain, nativeID uint64, at time.Time, blockIndex string) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Broadcast, error)
}

// FailedSwapRepository provides access to terminal deposit failures.
type FailedSwapRepository interface {
	// CreateTx is keyed by (reason, failed_block_index); replays return the
	// existing row id.
	CreateTx(ctx context.Context, tx *sql.Tx, f *model.FailedSwap) (uuid.UUID, error)
	SetRefundBroadcastTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, broadcastID uuid.UUID) error
	UpdateDepositTxRefTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, ref string) error

	FindByTxRefTx(ctx context.Context, tx *sql.Tx, chain model.Chain, ref string) ([]model.FailedSwap, error)
	FindByChannelNativeIDTx(ctx context.Context, tx *sql.Tx, chain model.Chain, channelID uint64) ([]model.FailedSwap, error)
	// FindPendingVaultByAddressTx returns vault-swap failures whose tx ref
	// is still pending resolution for the given deposit account.
	FindPendingVaultByAddressTx(ctx context.Context, tx *sql.Tx, chain model.Chain, address string) ([]model.FailedSwap, error)
	ListByChannel(ctx context.Context, channelID uuid.UUID) ([]model.FailedSwap, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.FailedSwap, error)
}

// IgnoredEgressRepository provides access to protocol-ignored egresses.
type IgnoredEgressRepository interface {
	// CreateTx is keyed by (swap_request_id, kind); replaying is a no-op.
	CreateTx(ctx context.Context, tx *sql.Tx, e *model.IgnoredEgress) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.IgnoredEgress, error)
}

// StateChainErrorRepository resolves module-indexed runtime error codes.
type StateChainErrorRepository interface {
	// ResolveTx maps (spec version, pallet index, error index) to a row id,
	// falling back to the unknown-error sentinel when the code has no entry.
	ResolveTx(ctx context.Context, tx *sql.Tx, specVersion, palletIndex, errorIndex int) (uuid.UUID, error)
	UpsertTx(ctx context.Context, tx *sql.Tx, e *model.StateChainError) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.StateChainError, error)
}

// PendingTxRefRepository provides access to reconciliation work items.
type PendingTxRefRepository interface {
	CreateForChannelTx(ctx context.Context, tx *sql.Tx, channelID uuid.UUID, chain model.Chain, address string) error
	CreateForVaultSwapTx(ctx context.Context, tx *sql.Tx, failedSwapID uuid.UUID, chain model.Chain, address string) error
	// Next returns one pending work item, or nil when the queue is empty.
	// No ordering is guaranteed.
	Next(ctx context.Context) (*model.PendingTxRef, error)
	DeleteTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
}

// ChainTrackingRepository tracks the latest witnessed external height.
type ChainTrackingRepository interface {
	UpsertTx(ctx context.Context, tx *sql.Tx, t *model.ChainTracking) error
	GetTx(ctx context.Context, tx *sql.Tx, chain model.Chain) (*model.ChainTracking, error)
}

// FeeRepository stores fee lines for requests and chunks.
type FeeRepository interface {
	// AddTx is keyed by (swap_request_id, type, asset, block_index);
	// replaying is a no-op.
	AddTx(ctx context.Context, tx *sql.Tx, f *model.Fee) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.Fee, error)
}

// CursorRepository persists the ingest position so processing resumes after
// restart without gaps.
type CursorRepository interface {
	Get(ctx context.Context, id string) (int64, bool, error)
	SetTx(ctx context.Context, tx *sql.Tx, id string, height int64) error
}
