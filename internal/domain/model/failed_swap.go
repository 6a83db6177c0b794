package model

import (
	"time"

	"github.com/google/uuid"
)

// FailedSwap records a deposit rejected before a SwapRequest existed.
// Unique key: (reason, failed_block_index).
type FailedSwap struct {
	ID     uuid.UUID `db:"id"`
	Reason string    `db:"reason"`

	SrcChain      Chain   `db:"src_chain"`
	SrcAsset      Asset   `db:"src_asset"`
	DestChain     *Chain  `db:"dest_chain"`
	DestAsset     *Asset  `db:"dest_asset"`
	DestAddress   *string `db:"dest_address"`
	DepositAmount string  `db:"deposit_amount"` // NUMERIC(78,0) as string

	SwapDepositChannelID  *uuid.UUID `db:"swap_deposit_channel_id"`
	DepositTransactionRef *string    `db:"deposit_transaction_ref"`

	CcmGasBudget      *string `db:"ccm_gas_budget"`
	CcmMessage        *string `db:"ccm_message"`
	CcmAdditionalData *string `db:"ccm_additional_data"`

	RefundBroadcastID *uuid.UUID `db:"refund_broadcast_id"`

	FailedAt         time.Time `db:"failed_at"`
	FailedBlockIndex string    `db:"failed_block_index"`

	CreatedAt time.Time `db:"created_at"`
}
