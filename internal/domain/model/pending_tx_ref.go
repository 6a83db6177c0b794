package model

import (
	"time"

	"github.com/google/uuid"
)

// PendingTxRef is a reconciliation work item for a transaction reference
// that was not known at witnessing time. Exactly one of the two targets is
// set: a swap deposit channel (resolve refs for everything witnessed under
// it) or a single failed vault swap. Rows are deleted once resolved.
type PendingTxRef struct {
	ID uuid.UUID `db:"id"`

	SwapDepositChannelID *uuid.UUID `db:"swap_deposit_channel_id"`
	FailedVaultSwapID    *uuid.UUID `db:"failed_vault_swap_id"`

	// Address is the on-chain account whose signatures resolve the refs.
	Address string `db:"address"`
	Chain   Chain  `db:"chain"`

	CreatedAt time.Time `db:"created_at"`
}
