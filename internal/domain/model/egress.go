package model

import (
	"time"

	"github.com/google/uuid"
)

type EgressKind string

const (
	EgressSwap   EgressKind = "SWAP"
	EgressRefund EgressKind = "REFUND"
)

// Egress is a scheduled outbound payment to a destination chain, tied to at
// most one Broadcast. Unique key: (chain, native_id).
type Egress struct {
	ID       uuid.UUID  `db:"id"`
	Chain    Chain      `db:"chain"`
	NativeID uint64     `db:"native_id"`
	Kind     EgressKind `db:"kind"`
	Asset    Asset      `db:"asset"`
	Amount   string     `db:"amount"` // NUMERIC(78,0) as string
	Fee      string     `db:"fee"`

	BroadcastID *uuid.UUID `db:"broadcast_id"`

	ScheduledAt         time.Time `db:"scheduled_at"`
	ScheduledBlockIndex string    `db:"scheduled_block_index"`

	CreatedAt time.Time `db:"created_at"`
}

// Broadcast is the on-chain transaction carrying one or more egresses to
// their destination. Unique key: (chain, native_id). The succeeded and
// aborted timestamps are mutually exclusive and set at most once.
type Broadcast struct {
	ID       uuid.UUID `db:"id"`
	Chain    Chain     `db:"chain"`
	NativeID uint64    `db:"native_id"`

	RequestedAt         time.Time `db:"requested_at"`
	RequestedBlockIndex string    `db:"requested_block_index"`

	SucceededAt         *time.Time `db:"succeeded_at"`
	SucceededBlockIndex *string    `db:"succeeded_block_index"`
	AbortedAt           *time.Time `db:"aborted_at"`
	AbortedBlockIndex   *string    `db:"aborted_block_index"`

	TransactionRef *string `db:"transaction_ref"`

	CreatedAt time.Time `db:"created_at"`
}

// Terminal reports whether the broadcast reached a terminal outcome.
func (b *Broadcast) Terminal() bool {
	return b.SucceededAt != nil || b.AbortedAt != nil
}
