package model

import (
	"time"

	"github.com/google/uuid"
)

// StateChainError maps a module-indexed runtime error to a human-readable
// name and docs. Unique key: (spec_version, pallet_index, error_index).
// A sentinel row named UnknownError backs codes that cannot be resolved.
type StateChainError struct {
	ID          uuid.UUID `db:"id"`
	SpecVersion int       `db:"spec_version"`
	PalletIndex int       `db:"pallet_index"`
	ErrorIndex  int       `db:"error_index"`
	Name        string    `db:"name"`
	Docs        string    `db:"docs"`
	CreatedAt   time.Time `db:"created_at"`
}

// UnknownErrorName is the Name of the sentinel StateChainError row.
const UnknownErrorName = "UnknownError"

// IgnoredEgress records that a swap or refund egress was computed but
// dropped at the protocol level (e.g. below dust), with the runtime error
// explaining why. Unique key: (swap_request_id, kind).
type IgnoredEgress struct {
	ID            uuid.UUID  `db:"id"`
	SwapRequestID uuid.UUID  `db:"swap_request_id"`
	Kind          EgressKind `db:"kind"`
	Asset         Asset      `db:"asset"`
	Amount        string     `db:"amount"` // NUMERIC(78,0) as string

	StateChainErrorID uuid.UUID `db:"state_chain_error_id"`

	IgnoredAt         time.Time `db:"ignored_at"`
	IgnoredBlockIndex string    `db:"ignored_block_index"`

	CreatedAt time.Time `db:"created_at"`
}
