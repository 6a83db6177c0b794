package model

import (
	"time"

	"github.com/google/uuid"
)

type FeeType string

const (
	FeeNetwork   FeeType = "NETWORK"
	FeeBroker    FeeType = "BROKER"
	FeeIngress   FeeType = "INGRESS"
	FeeEgress    FeeType = "EGRESS"
	FeeBoost     FeeType = "BOOST"
	FeeRefund    FeeType = "REFUND"
	FeeLiquidity FeeType = "LIQUIDITY"
)

// Fee is one fee line attached to a swap request and optionally to one of
// its chunks. Rollups sum amounts grouped by (type, asset); the grouping is
// associative and commutative so incremental re-derivation matches a full
// recomputation.
type Fee struct {
	ID            uuid.UUID  `db:"id"`
	SwapRequestID uuid.UUID  `db:"swap_request_id"`
	SwapID        *uuid.UUID `db:"swap_id"`
	Type          FeeType    `db:"type"`
	Asset         Asset      `db:"asset"`
	Amount        string     `db:"amount"` // NUMERIC(78,0) as string
	BlockIndex    string     `db:"block_index"`
	CreatedAt     time.Time  `db:"created_at"`
}
