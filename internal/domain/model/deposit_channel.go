package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DepositChannel is a reusable address allocation on a source chain. It is
// created when a channel-opened event is witnessed and immutable thereafter.
// Unique key: (chain, deposit_address, issued_block).
type DepositChannel struct {
	ID             uuid.UUID `db:"id"`
	Chain          Chain     `db:"chain"`
	DepositAddress string    `db:"deposit_address"`
	IssuedBlock    int64     `db:"issued_block"`
	IsSwapping     bool      `db:"is_swapping"`
	CreatedAt      time.Time `db:"created_at"`
}

type BeneficiaryType string

const (
	BeneficiarySubmitter BeneficiaryType = "SUBMITTER"
	BeneficiaryAffiliate BeneficiaryType = "AFFILIATE"
)

// Beneficiary is one commission recipient of a swap deposit channel.
// Rows with commission <= 0 are filtered out before storage.
type Beneficiary struct {
	ID                   uuid.UUID       `db:"id"`
	SwapDepositChannelID uuid.UUID       `db:"swap_deposit_channel_id"`
	Account              string          `db:"account"`
	Type                 BeneficiaryType `db:"type"`
	CommissionBps        int             `db:"commission_bps"`
}

// DcaParams configure chunked execution of a swap request.
type DcaParams struct {
	NumberOfChunks int `db:"number_of_chunks"`
	ChunkInterval  int `db:"chunk_interval"`
}

// FokParams are the fill-or-kill refund parameters of a channel or request.
type FokParams struct {
	MinPriceX128  string `db:"min_price_x128"` // NUMERIC(78,0) as string
	RefundAddress string `db:"refund_address"`
	RetryDuration int    `db:"retry_duration"`
}

// SwapDepositChannel is the swap-specific configuration of one channel
// instance. Unique key: (issued_block, chain, channel_id); the same native
// channel id recurs across channel re-use, with issued_block descending as
// the latest-wins tie break.
type SwapDepositChannel struct {
	ID                       uuid.UUID  `db:"id"`
	IssuedBlock              int64      `db:"issued_block"`
	Chain                    Chain      `db:"chain"`
	ChannelID                uint64     `db:"channel_id"`
	DepositAddress           string     `db:"deposit_address"`
	SrcAsset                 Asset      `db:"src_asset"`
	DestAsset                Asset      `db:"dest_asset"`
	DestAddress              string     `db:"dest_address"`
	TotalBrokerCommissionBps int        `db:"total_broker_commission_bps"`
	MaxBoostFeeBps           int        `db:"max_boost_fee_bps"`
	ChannelOpeningFee        string     `db:"channel_opening_fee"` // NUMERIC(78,0) as string
	ExpiryBlock              int64      `db:"expiry_block"`
	EstimatedExpiryAt        *time.Time `db:"estimated_expiry_at"`
	DcaNumberOfChunks        *int       `db:"dca_number_of_chunks"`
	DcaChunkInterval         *int       `db:"dca_chunk_interval"`
	FokMinPriceX128          *string    `db:"fok_min_price_x128"`
	FokRefundAddress         *string    `db:"fok_refund_address"`
	FokRetryDuration         *int       `db:"fok_retry_duration"`
	OpenedAt                 time.Time  `db:"opened_at"`
	OpenedBlockIndex         string     `db:"opened_block_index"`
	CreatedAt                time.Time  `db:"created_at"`

	Beneficiaries []Beneficiary `db:"-"`
}

// Dca returns the channel's DCA parameters, or nil when unchunked.
func (c *SwapDepositChannel) Dca() *DcaParams {
	if c.DcaNumberOfChunks == nil {
		return nil
	}
	p := DcaParams{NumberOfChunks: *c.DcaNumberOfChunks}
	if c.DcaChunkInterval != nil {
		p.ChunkInterval = *c.DcaChunkInterval
	}
	return &p
}

// Fok returns the channel's fill-or-kill parameters, or nil when absent.
func (c *SwapDepositChannel) Fok() *FokParams {
	if c.FokRefundAddress == nil {
		return nil
	}
	p := FokParams{RefundAddress: *c.FokRefundAddress}
	if c.FokMinPriceX128 != nil {
		p.MinPriceX128 = *c.FokMinPriceX128
	}
	if c.FokRetryDuration != nil {
		p.RetryDuration = *c.FokRetryDuration
	}
	return &p
}

// ChannelKey is the external identifier of a swap deposit channel, encoded
// "{issuedBlock}-{chain}-{channelID}".
type ChannelKey struct {
	IssuedBlock int64
	Chain       Chain
	ChannelID   uint64
}

func (k ChannelKey) String() string {
	return fmt.Sprintf("%d-%s-%d", k.IssuedBlock, k.Chain, k.ChannelID)
}

// ParseChannelKey parses a "{issuedBlock}-{chain}-{channelID}" identifier.
func ParseChannelKey(s string) (ChannelKey, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return ChannelKey{}, fmt.Errorf("malformed channel key %q", s)
	}
	issued, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ChannelKey{}, fmt.Errorf("malformed channel key issued block %q: %w", s, err)
	}
	chain, err := ParseChain(parts[1])
	if err != nil {
		return ChannelKey{}, fmt.Errorf("malformed channel key %q: %w", s, err)
	}
	channelID, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return ChannelKey{}, fmt.Errorf("malformed channel key id %q: %w", s, err)
	}
	return ChannelKey{IssuedBlock: issued, Chain: chain, ChannelID: channelID}, nil
}
