package model

import (
	"time"

	"github.com/google/uuid"
)

type OriginKind string

const (
	OriginDepositChannel OriginKind = "DEPOSIT_CHANNEL"
	OriginVault          OriginKind = "VAULT"
	OriginOnChainAccount OriginKind = "ON_CHAIN"
	OriginInternal       OriginKind = "INTERNAL"
)

type RequestKind string

const (
	RequestRegular          RequestKind = "REGULAR"
	RequestNetworkFee       RequestKind = "NETWORK_FEE"
	RequestIngressEgressFee RequestKind = "INGRESS_EGRESS_FEE"
)

// SwapRequest is one logical swap, keyed by its chain-native numeric id and
// created exactly once. Deposit-related fields are attached later by the
// deposit-finalised / deposit-boosted handlers.
type SwapRequest struct {
	ID        uuid.UUID   `db:"id"`
	NativeID  uint64      `db:"native_id"`
	SrcAsset  Asset       `db:"src_asset"`
	DestAsset Asset       `db:"dest_asset"`
	Origin    OriginKind  `db:"origin_kind"`
	Kind      RequestKind `db:"request_kind"`

	SwapInputAmount string  `db:"swap_input_amount"` // NUMERIC(78,0) as string
	DestAddress     *string `db:"dest_address"`

	SwapDepositChannelID *uuid.UUID `db:"swap_deposit_channel_id"`
	OnChainAccount       *string    `db:"on_chain_account"`

	DepositAmount          *string    `db:"deposit_amount"`
	DepositFinalisedAt     *time.Time `db:"deposit_finalised_at"`
	DepositFinalisedIndex  *string    `db:"deposit_finalised_block_index"`
	DepositTransactionRef  *string    `db:"deposit_transaction_ref"`
	DepositBoostedAt       *time.Time `db:"deposit_boosted_at"`
	DepositBoostedIndex    *string    `db:"deposit_boosted_block_index"`
	EffectiveBoostFeeBps   *int       `db:"effective_boost_fee_bps"`
	MaxBoostFeeBps         int        `db:"max_boost_fee_bps"`

	DcaNumberOfChunks *int    `db:"dca_number_of_chunks"`
	DcaChunkInterval  *int    `db:"dca_chunk_interval"`
	FokMinPriceX128   *string `db:"fok_min_price_x128"`
	FokRefundAddress  *string `db:"fok_refund_address"`
	FokRetryDuration  *int    `db:"fok_retry_duration"`

	CcmGasBudget      *string `db:"ccm_gas_budget"` // NUMERIC(78,0) as string
	CcmMessage        *string `db:"ccm_message"`    // 0x-hex
	CcmAdditionalData *string `db:"ccm_additional_data"`

	SwapEgressID   *uuid.UUID `db:"swap_egress_id"`
	RefundEgressID *uuid.UUID `db:"refund_egress_id"`

	RequestedAt         time.Time  `db:"requested_at"`
	RequestedBlockIndex string     `db:"requested_block_index"`
	CompletedAt         *time.Time `db:"completed_at"`
	CompletedBlockIndex *string    `db:"completed_block_index"`

	CreatedAt time.Time `db:"created_at"`
}

// Dca returns the request's DCA parameters, or nil when unchunked.
func (r *SwapRequest) Dca() *DcaParams {
	if r.DcaNumberOfChunks == nil {
		return nil
	}
	p := DcaParams{NumberOfChunks: *r.DcaNumberOfChunks}
	if r.DcaChunkInterval != nil {
		p.ChunkInterval = *r.DcaChunkInterval
	}
	return &p
}

// Fok returns the request's fill-or-kill parameters, or nil when absent.
func (r *SwapRequest) Fok() *FokParams {
	if r.FokRefundAddress == nil {
		return nil
	}
	p := FokParams{RefundAddress: *r.FokRefundAddress}
	if r.FokMinPriceX128 != nil {
		p.MinPriceX128 = *r.FokMinPriceX128
	}
	if r.FokRetryDuration != nil {
		p.RetryDuration = *r.FokRetryDuration
	}
	return &p
}
