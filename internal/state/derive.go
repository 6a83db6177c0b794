package state

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/swapstream/swap-indexer/internal/domain/model"
	"github.com/swapstream/swap-indexer/internal/fault"
)

// Derive reduces a swap's entity graph to its lifecycle state. Transition
// rules are evaluated in precedence order; the first match wins.
func Derive(g *Graph) (*Status, error) {
	st := &Status{}

	if g.Request != nil {
		st.SwapRequestID = &g.Request.NativeID
		st.SrcAsset = g.Request.SrcAsset
		st.DestAsset = g.Request.DestAsset
		st.DestAddress = g.Request.DestAddress
		st.DcaParams = g.Request.Dca()
		st.FokParams = g.Request.Fok()
	} else if g.Channel != nil {
		st.SrcAsset = g.Channel.SrcAsset
		st.DestAsset = g.Channel.DestAsset
		st.DestAddress = &g.Channel.DestAddress
		st.DcaParams = g.Channel.Dca()
		st.FokParams = g.Channel.Fok()
	}
	if g.Channel != nil {
		key := model.ChannelKey{
			IssuedBlock: g.Channel.IssuedBlock,
			Chain:       g.Channel.Chain,
			ChannelID:   g.Channel.ChannelID,
		}.String()
		st.ChannelKey = &key
	}

	deposit, boost := depositInfo(g)

	dca, err := rollupChunks(g)
	if err != nil {
		return nil, err
	}

	st.Fees, err = rollupFees(g.Fees)
	if err != nil {
		return nil, err
	}

	swapEgress := egressInfo(g.SwapEgress, g.SwapBroadcast)
	refundEgress := egressInfo(g.RefundEgress, g.RefundBroadcast)

	switch deriveState(g) {
	case StateFailed:
		st.Detail = Failed{
			Deposit:      deposit,
			Boost:        boost,
			Dca:          dca,
			SwapEgress:   swapEgress,
			RefundEgress: refundEgress,
			Failure:      failureInfo(g),
		}
	case StateCompleted:
		d := Completed{
			Deposit:      deposit,
			Boost:        boost,
			Dca:          dca,
			SwapEgress:   swapEgress,
			RefundEgress: refundEgress,
		}
		if g.Request != nil {
			d.CompletedAt = g.Request.CompletedAt
		}
		st.Detail = d
	case StateSent:
		if swapEgress != nil {
			// Surface the tracker's reference until the confirmed one lands.
			swapEgress.TransactionRef = g.TrackerTxRef
		}
		st.Detail = Sent{
			Deposit:      deposit,
			Boost:        boost,
			Dca:          dca,
			SwapEgress:   swapEgress,
			RefundEgress: refundEgress,
		}
	case StateSending:
		st.Detail = Sending{
			Deposit:      deposit,
			Boost:        boost,
			Dca:          dca,
			SwapEgress:   swapEgress,
			RefundEgress: refundEgress,
		}
	case StateSwapping:
		st.Detail = Swapping{Deposit: deposit, Boost: boost, Dca: dca}
	case StateReceiving:
		st.Detail = Receiving{Deposit: deposit, Boost: boost}
	default:
		st.Detail = Waiting{}
	}
	return st, nil
}

func depositInfo(g *Graph) (*DepositInfo, *BoostInfo) {
	if g.Request == nil {
		return nil, nil
	}
	var deposit *DepositInfo
	var boost *BoostInfo
	if g.Request.DepositAmount != nil {
		deposit = &DepositInfo{
			Amount:         *g.Request.DepositAmount,
			TransactionRef: g.Request.DepositTransactionRef,
			WitnessedAt:    g.Request.DepositFinalisedAt,
			WitnessedIndex: g.Request.DepositFinalisedIndex,
		}
	}
	if g.Request.DepositBoostedAt != nil && g.Request.EffectiveBoostFeeBps != nil {
		boost = &BoostInfo{
			EffectiveBoostFeeBps: *g.Request.EffectiveBoostFeeBps,
			MaxBoostFeeBps:       g.Request.MaxBoostFeeBps,
			BoostedAt:            *g.Request.DepositBoostedAt,
		}
	}
	return deposit, boost
}

func deriveState(g *Graph) State {
	switch {
	case len(g.FailedSwaps) > 0,
		len(g.Ignored) > 0,
		g.SwapBroadcast != nil && g.SwapBroadcast.AbortedAt != nil,
		g.RefundBroadcast != nil && g.RefundBroadcast.AbortedAt != nil:
		return StateFailed

	case g.SwapBroadcast != nil && g.SwapBroadcast.SucceededAt != nil,
		g.RefundBroadcast != nil && g.RefundBroadcast.SucceededAt != nil:
		return StateCompleted

	case g.SwapEgress != nil || g.RefundEgress != nil:
		if g.TrackerTxRef != nil {
			return StateSent
		}
		return StateSending

	case len(g.Chunks) > 0:
		return StateSwapping

	case g.Request != nil && (g.Request.DepositFinalisedAt != nil || g.Request.DepositBoostedAt != nil),
		g.PendingDepositAmount != nil:
		return StateReceiving

	default:
		return StateWaiting
	}
}

// rollupChunks folds principal chunks, descending native id, into execution
// progress. At most one chunk may be unexecuted at a time.
func rollupChunks(g *Graph) (*DcaRollup, error) {
	var principal []model.Swap
	for _, c := range g.Chunks {
		if c.Kind == model.SwapPrincipal {
			principal = append(principal, c)
		}
	}
	if len(principal) == 0 {
		return nil, nil
	}
	sort.Slice(principal, func(i, j int) bool {
		return principal[i].NativeID > principal[j].NativeID
	})

	roll := &DcaRollup{}
	input := new(big.Int)
	intermediate := new(big.Int)
	output := new(big.Int)

	for i := range principal {
		c := &principal[i]
		if !c.Executed() {
			if roll.CurrentChunk != nil {
				return nil, fault.Invariantf("swap request %d has more than one in-flight chunk",
					g.Request.NativeID)
			}
			roll.CurrentChunk = chunkInfo(c)
			continue
		}
		roll.ExecutedChunks++
		if roll.LastExecutedChunk == nil {
			roll.LastExecutedChunk = chunkInfo(c)
		}
		if err := accumulate(input, c.InputAmount); err != nil {
			return nil, err
		}
		if c.IntermediateAmount != nil {
			if err := accumulate(intermediate, *c.IntermediateAmount); err != nil {
				return nil, err
			}
		}
		if c.OutputAmount != nil {
			if err := accumulate(output, *c.OutputAmount); err != nil {
				return nil, err
			}
		}
	}

	roll.SwappedInputAmount = input.String()
	roll.SwappedIntermediateAmount = intermediate.String()
	roll.SwappedOutputAmount = output.String()

	configured := 1
	if g.Request != nil && g.Request.DcaNumberOfChunks != nil {
		configured = *g.Request.DcaNumberOfChunks
	}
	roll.RemainingChunks = configured - roll.ExecutedChunks
	if roll.RemainingChunks < 0 {
		roll.RemainingChunks = 0
	}
	return roll, nil
}

// rollupFees sums amounts grouped by (type, asset). Addition is associative
// and commutative, so folding incrementally or all at once gives the same
// totals.
func rollupFees(fees []model.Fee) ([]FeeTotal, error) {
	type key struct {
		t model.FeeType
		a model.Asset
	}
	totals := map[key]*big.Int{}
	var order []key

	for _, f := range fees {
		k := key{f.Type, f.Asset}
		if totals[k] == nil {
			totals[k] = new(big.Int)
			order = append(order, k)
		}
		if err := accumulate(totals[k], f.Amount); err != nil {
			return nil, err
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].t != order[j].t {
			return order[i].t < order[j].t
		}
		return order[i].a < order[j].a
	})

	out := make([]FeeTotal, 0, len(order))
	for _, k := range order {
		out = append(out, FeeTotal{Type: k.t, Asset: k.a, Amount: totals[k].String()})
	}
	return out, nil
}

func accumulate(sum *big.Int, amount string) error {
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return fmt.Errorf("malformed amount %q", amount)
	}
	sum.Add(sum, v)
	return nil
}

func chunkInfo(c *model.Swap) *ChunkInfo {
	return &ChunkInfo{
		NativeID:           c.NativeID,
		InputAmount:        c.InputAmount,
		IntermediateAmount: c.IntermediateAmount,
		OutputAmount:       c.OutputAmount,
		ScheduledAt:        c.ScheduledAt,
		ExecutedAt:         c.ExecutedAt,
		RetryCount:         c.RetryCount,
	}
}

func egressInfo(e *model.Egress, b *model.Broadcast) *EgressInfo {
	if e == nil {
		return nil
	}
	info := &EgressInfo{
		Amount:      e.Amount,
		Asset:       e.Asset,
		ScheduledAt: e.ScheduledAt,
	}
	if b != nil {
		info.SucceededAt = b.SucceededAt
		info.AbortedAt = b.AbortedAt
		info.TransactionRef = b.TransactionRef
	}
	return info
}

func failureInfo(g *Graph) *FailureInfo {
	if len(g.FailedSwaps) > 0 {
		f := g.FailedSwaps[0]
		return &FailureInfo{Reason: f.Reason, FailedAt: f.FailedAt}
	}
	if len(g.Ignored) > 0 {
		ig := g.Ignored[0]
		return &FailureInfo{Reason: "EgressIgnored", FailedAt: ig.IgnoredAt}
	}
	if g.SwapBroadcast != nil && g.SwapBroadcast.AbortedAt != nil {
		return &FailureInfo{Reason: "BroadcastAborted", FailedAt: *g.SwapBroadcast.AbortedAt}
	}
	if g.RefundBroadcast != nil && g.RefundBroadcast.AbortedAt != nil {
		return &FailureInfo{Reason: "BroadcastAborted", FailedAt: *g.RefundBroadcast.AbortedAt}
	}
	return nil
}
