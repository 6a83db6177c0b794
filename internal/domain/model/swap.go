package model

import (
	"time"

	"github.com/google/uuid"
)

type SwapKind string

const (
	SwapPrincipal SwapKind = "PRINCIPAL"
	SwapGas       SwapKind = "GAS"
)

// Swap is one DCA execution chunk of a SwapRequest, keyed by its own
// chain-native id. A chunk with no executed timestamp is in flight; a chunk
// with one is settled.
type Swap struct {
	ID            uuid.UUID `db:"id"`
	NativeID      uint64    `db:"native_id"`
	SwapRequestID uuid.UUID `db:"swap_request_id"`
	Kind          SwapKind  `db:"kind"`

	InputAmount        string  `db:"input_amount"`        // NUMERIC(78,0) as string
	IntermediateAmount *string `db:"intermediate_amount"` // set when routed through the pivot asset
	OutputAmount       *string `db:"output_amount"`

	ScheduledAt         time.Time  `db:"scheduled_at"`
	ScheduledBlockIndex string     `db:"scheduled_block_index"`
	ExecutedAt          *time.Time `db:"executed_at"`
	ExecutedBlockIndex  *string    `db:"executed_block_index"`

	RetryCount             int        `db:"retry_count"`
	LatestRescheduledAt    *time.Time `db:"latest_rescheduled_at"`
	LatestRescheduledIndex *string    `db:"latest_rescheduled_block_index"`

	CreatedAt time.Time `db:"created_at"`
}

// Executed reports whether the chunk has settled.
func (s *Swap) Executed() bool {
	return s.ExecutedAt != nil
}
