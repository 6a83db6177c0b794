package api

import (
	"time"

	"github.com/swapstream/swap-indexer/internal/state"
)

// swapResponse is the wire shape of GET /v2/swaps/{identifier}. Sections
// are omitted when not valid for the derived state.
type swapResponse struct {
	State string `json:"state"`

	SwapRequestID *uint64 `json:"swapId,omitempty"`
	SrcAsset      string  `json:"srcAsset,omitempty"`
	DestAsset     string  `json:"destAsset,omitempty"`
	DestAddress   *string `json:"destAddress,omitempty"`
	ChannelKey    *string `json:"depositChannelId,omitempty"`

	Deposit      *depositSection `json:"deposit,omitempty"`
	Boost        *boostSection   `json:"boost,omitempty"`
	Dca          *dcaSection     `json:"dca,omitempty"`
	DcaParams    *dcaParams      `json:"dcaParams,omitempty"`
	FokParams    *fokParams      `json:"fillOrKillParams,omitempty"`
	SwapEgress   *egressSection  `json:"swapEgress,omitempty"`
	RefundEgress *egressSection  `json:"refundEgress,omitempty"`
	Failure      *failureSection `json:"failure,omitempty"`
	Fees         []feeLine       `json:"fees"`

	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type depositSection struct {
	Amount         string     `json:"amount"`
	TransactionRef *string    `json:"transactionRef,omitempty"`
	WitnessedAt    *time.Time `json:"witnessedAt,omitempty"`
}

type boostSection struct {
	EffectiveBoostFeeBps int       `json:"effectiveBoostFeeBps"`
	MaxBoostFeeBps       int       `json:"maxBoostFeeBps"`
	BoostedAt            time.Time `json:"boostedAt"`
}

type chunkSection struct {
	InputAmount        string     `json:"inputAmount"`
	IntermediateAmount *string    `json:"intermediateAmount,omitempty"`
	OutputAmount       *string    `json:"outputAmount,omitempty"`
	ScheduledAt        time.Time  `json:"scheduledAt"`
	ExecutedAt         *time.Time `json:"executedAt,omitempty"`
	RetryCount         int        `json:"retryCount"`
}

type dcaSection struct {
	SwappedInputAmount        string        `json:"swappedInputAmount"`
	SwappedIntermediateAmount string        `json:"swappedIntermediateAmount"`
	SwappedOutputAmount       string        `json:"swappedOutputAmount"`
	ExecutedChunks            int           `json:"executedChunks"`
	RemainingChunks           int           `json:"remainingChunks"`
	LastExecutedChunk         *chunkSection `json:"lastExecutedChunk,omitempty"`
	CurrentChunk              *chunkSection `json:"currentChunk,omitempty"`
}

type dcaParams struct {
	NumberOfChunks int `json:"numberOfChunks"`
	ChunkInterval  int `json:"chunkIntervalBlocks"`
}

type fokParams struct {
	MinPriceX128  string `json:"minPriceX128"`
	RefundAddress string `json:"refundAddress"`
	RetryDuration int    `json:"retryDurationBlocks"`
}

type egressSection struct {
	Amount         string     `json:"amount"`
	Asset          string     `json:"asset"`
	ScheduledAt    time.Time  `json:"scheduledAt"`
	SucceededAt    *time.Time `json:"succeededAt,omitempty"`
	AbortedAt      *time.Time `json:"abortedAt,omitempty"`
	TransactionRef *string    `json:"transactionRef,omitempty"`
}

type failureSection struct {
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}

type feeLine struct {
	Type   string `json:"type"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func statusResponse(st *state.Status) swapResponse {
	resp := swapResponse{
		State:         string(st.State()),
		SwapRequestID: st.SwapRequestID,
		SrcAsset:      st.SrcAsset.String(),
		DestAsset:     st.DestAsset.String(),
		DestAddress:   st.DestAddress,
		ChannelKey:    st.ChannelKey,
		Fees:          []feeLine{},
	}

	if st.DcaParams != nil {
		resp.DcaParams = &dcaParams{
			NumberOfChunks: st.DcaParams.NumberOfChunks,
			ChunkInterval:  st.DcaParams.ChunkInterval,
		}
	}
	if st.FokParams != nil {
		resp.FokParams = &fokParams{
			MinPriceX128:  st.FokParams.MinPriceX128,
			RefundAddress: st.FokParams.RefundAddress,
			RetryDuration: st.FokParams.RetryDuration,
		}
	}
	for _, f := range st.Fees {
		resp.Fees = append(resp.Fees, feeLine{
			Type:   string(f.Type),
			Asset:  f.Asset.String(),
			Amount: f.Amount,
		})
	}

	switch d := st.Detail.(type) {
	case state.Receiving:
		resp.Deposit, resp.Boost = deposit(d.Deposit), boost(d.Boost)
	case state.Swapping:
		resp.Deposit, resp.Boost = deposit(d.Deposit), boost(d.Boost)
		resp.Dca = dca(d.Dca)
	case state.Sending:
		resp.Deposit, resp.Boost = deposit(d.Deposit), boost(d.Boost)
		resp.Dca = dca(d.Dca)
		resp.SwapEgress, resp.RefundEgress = egress(d.SwapEgress), egress(d.RefundEgress)
	case state.Sent:
		resp.Deposit, resp.Boost = deposit(d.Deposit), boost(d.Boost)
		resp.Dca = dca(d.Dca)
		resp.SwapEgress, resp.RefundEgress = egress(d.SwapEgress), egress(d.RefundEgress)
	case state.Completed:
		resp.Deposit, resp.Boost = deposit(d.Deposit), boost(d.Boost)
		resp.Dca = dca(d.Dca)
		resp.SwapEgress, resp.RefundEgress = egress(d.SwapEgress), egress(d.RefundEgress)
		resp.CompletedAt = d.CompletedAt
	case state.Failed:
		resp.Deposit, resp.Boost = deposit(d.Deposit), boost(d.Boost)
		resp.Dca = dca(d.Dca)
		resp.SwapEgress, resp.RefundEgress = egress(d.SwapEgress), egress(d.RefundEgress)
		if d.Failure != nil {
			resp.Failure = &failureSection{Reason: d.Failure.Reason, FailedAt: d.Failure.FailedAt}
		}
	}
	return resp
}

func deposit(d *state.DepositInfo) *depositSection {
	if d == nil {
		return nil
	}
	return &depositSection{
		Amount:         d.Amount,
		TransactionRef: d.TransactionRef,
		WitnessedAt:    d.WitnessedAt,
	}
}

func boost(b *state.BoostInfo) *boostSection {
	if b == nil {
		return nil
	}
	return &boostSection{
		EffectiveBoostFeeBps: b.EffectiveBoostFeeBps,
		MaxBoostFeeBps:       b.MaxBoostFeeBps,
		BoostedAt:            b.BoostedAt,
	}
}

func dca(d *state.DcaRollup) *dcaSection {
	if d == nil {
		return nil
	}
	return &dcaSection{
		SwappedInputAmount:        d.SwappedInputAmount,
		SwappedIntermediateAmount: d.SwappedIntermediateAmount,
		SwappedOutputAmount:       d.SwappedOutputAmount,
		ExecutedChunks:            d.ExecutedChunks,
		RemainingChunks:           d.RemainingChunks,
		LastExecutedChunk:         chunk(d.LastExecutedChunk),
		CurrentChunk:              chunk(d.CurrentChunk),
	}
}

func chunk(c *state.ChunkInfo) *chunkSection {
	if c == nil {
		return nil
	}
	return &chunkSection{
		InputAmount:        c.InputAmount,
		IntermediateAmount: c.IntermediateAmount,
		OutputAmount:       c.OutputAmount,
		ScheduledAt:        c.ScheduledAt,
		ExecutedAt:         c.ExecutedAt,
		RetryCount:         c.RetryCount,
	}
}

func egress(e *state.EgressInfo) *egressSection {
	if e == nil {
		return nil
	}
	return &egressSection{
		Amount:         e.Amount,
		Asset:          e.Asset.String(),
		ScheduledAt:    e.ScheduledAt,
		SucceededAt:    e.SucceededAt,
		AbortedAt:      e.AbortedAt,
		TransactionRef: e.TransactionRef,
	}
}
