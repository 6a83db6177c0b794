package processor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/swapstream/swap-indexer/internal/domain/event"
	"github.com/swapstream/swap-indexer/internal/domain/model"
	"github.com/swapstream/swap-indexer/internal/fault"
	"github.com/swapstream/swap-indexer/internal/store"
)

func (p *Processor) handleDepositFinalised(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.DepositFinalised) error {
	if e.Action.Kind == event.DepositActionNoAction {
		return nil
	}
	if e.Action.RequestID == nil {
		return fault.Invariantf("deposit finalised with action %s but no request id", e.Action.Kind)
	}
	requestID := *e.Action.RequestID

	req, err := p.stores.Requests.GetByNativeIDTx(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return fault.NotFound("swap request", "native id %d", requestID)
	}

	blockIndex := env.BlockIndex().String()
	maxBoost := e.MaxBoostFeeBps
	if err := p.stores.Requests.AttachDepositTx(ctx, tx, requestID, store.DepositAttach{
		Amount:         e.Amount,
		At:             env.Block.Timestamp,
		BlockIndex:     blockIndex,
		TxRef:          e.TxRef,
		MaxBoostFeeBps: &maxBoost,
	}); err != nil {
		return err
	}

	if e.IngressFee != "" && e.IngressFee != "0" {
		return p.stores.Fees.AddTx(ctx, tx, &model.Fee{
			SwapRequestID: req.ID,
			Type:          model.FeeIngress,
			Asset:         e.Asset,
			Amount:        e.IngressFee,
			BlockIndex:    blockIndex,
		})
	}
	return nil
}

func (p *Processor) handleDepositBoosted(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.DepositBoosted) error {
	if e.Action.RequestID == nil {
		return fault.Invariantf("deposit boosted with action %s but no request id", e.Action.Kind)
	}
	requestID := *e.Action.RequestID

	req, err := p.stores.Requests.GetByNativeIDTx(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return fault.NotFound("swap request", "native id %d", requestID)
	}

	blockIndex := env.BlockIndex().String()
	boostBps := e.BoostFeeBps
	if err := p.stores.Requests.AttachDepositTx(ctx, tx, requestID, store.DepositAttach{
		Amount:               e.Amount,
		At:                   env.Block.Timestamp,
		BlockIndex:           blockIndex,
		TxRef:                e.TxRef,
		Boosted:              true,
		EffectiveBoostFeeBps: &boostBps,
	}); err != nil {
		return err
	}

	if e.BoostFee != "" && e.BoostFee != "0" {
		if err := p.stores.Fees.AddTx(ctx, tx, &model.Fee{
			SwapRequestID: req.ID,
			Type:          model.FeeBoost,
			Asset:         e.Asset,
			Amount:        e.BoostFee,
			BlockIndex:    blockIndex,
		}); err != nil {
			return err
		}
	}
	if e.IngressFee != "" && e.IngressFee != "0" {
		return p.stores.Fees.AddTx(ctx, tx, &model.Fee{
			SwapRequestID: req.ID,
			Type:          model.FeeIngress,
			Asset:         e.Asset,
			Amount:        e.IngressFee,
			BlockIndex:    blockIndex,
		})
	}
	return nil
}

func (p *Processor) handleDepositFailed(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.DepositFailed) error {
	switch {
	case e.Details.Channel != nil:
		return p.depositFailedChannel(ctx, tx, env, e, e.Details.Channel)
	case e.Details.Vault != nil:
		return p.depositFailedVault(ctx, tx, env, e, e.Details.Vault)
	default:
		return fault.Invariantf("deposit failed on %s carries neither channel nor vault details", e.Chain)
	}
}

func (p *Processor) depositFailedChannel(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.DepositFailed, d *event.DepositFailedChannel) error {
	channel, err := p.stores.Channels.GetDepositChannelTx(ctx, tx, e.Chain, d.DepositAddress)
	if err != nil {
		return err
	}
	if channel == nil {
		return fault.NotFound("deposit channel", "%s address %s", e.Chain, d.DepositAddress)
	}
	// Channels opened by other products share the address space; their
	// failures are not ours to record.
	if !channel.IsSwapping {
		p.logger.Debug("skipping deposit failure on non-swapping channel",
			"chain", e.Chain, "address", d.DepositAddress)
		return nil
	}

	swapChannel, err := p.stores.Channels.FindLatestSwapChannelByAddressTx(ctx, tx, e.Chain, d.DepositAddress)
	if err != nil {
		return err
	}
	if swapChannel == nil {
		return fault.NotFound("swap deposit channel", "%s address %s", e.Chain, d.DepositAddress)
	}

	failed := &model.FailedSwap{
		Reason:                e.Reason,
		SrcChain:              e.Chain,
		SrcAsset:              d.Asset,
		DepositAmount:         d.Amount,
		SwapDepositChannelID:  &swapChannel.ID,
		DepositTransactionRef: d.TxRef,
		FailedAt:              env.Block.Timestamp,
		FailedBlockIndex:      env.BlockIndex().String(),
	}
	// The funds never left the deposit chain; any refund goes back out on it,
	// so that chain is the failure's destination regardless of where the
	// channel would have swapped to.
	destChain := e.Chain
	failed.DestChain = &destChain
	failed.DestAsset = &swapChannel.DestAsset
	failed.DestAddress = &swapChannel.DestAddress

	if _, err := p.stores.Failed.CreateTx(ctx, tx, failed); err != nil {
		return err
	}

	// No derivable reference: leave a work item for the reconciliation loop.
	if d.TxRef == nil && e.Chain.RefPendingAtWitnessing() {
		return p.stores.Pending.CreateForChannelTx(ctx, tx, swapChannel.ID, e.Chain, d.DepositAddress)
	}
	return nil
}

func (p *Processor) depositFailedVault(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.DepositFailed, d *event.DepositFailedVault) error {
	failed := &model.FailedSwap{
		Reason:                e.Reason,
		SrcChain:              e.Chain,
		SrcAsset:              d.Asset,
		DepositAmount:         d.Amount,
		DepositTransactionRef: d.TxRef,
		DestAsset:             d.DestAsset,
		DestAddress:           d.DestAddress,
		FailedAt:              env.Block.Timestamp,
		FailedBlockIndex:      env.BlockIndex().String(),
	}
	if d.DestAsset != nil {
		destChain := d.DestAsset.Chain()
		failed.DestChain = &destChain
	}
	if d.Ccm != nil {
		failed.CcmGasBudget = &d.Ccm.GasBudget
		failed.CcmMessage = &d.Ccm.Message
		failed.CcmAdditionalData = &d.Ccm.AdditionalData
	}

	id, err := p.stores.Failed.CreateTx(ctx, tx, failed)
	if err != nil {
		return err
	}

	// No derivable reference: leave a work item for the reconciliation loop.
	if d.TxRef == nil && d.RefAddress != nil && e.Chain.RefPendingAtWitnessing() {
		return p.stores.Pending.CreateForVaultSwapTx(ctx, tx, id, e.Chain, *d.RefAddress)
	}
	return nil
}

// ccmCallArgs is the subset of the originating call's payload needed to
// reconstruct the failed deposit.
type ccmCallArgs struct {
	SourceAsset    string `json:"sourceAsset"`
	DepositAmount  string `json:"depositAmount"`
	DepositAddress string `json:"depositAddress"`
}

func (p *Processor) handleCcmFailed(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.CcmFailed) error {
	if (e.Origin.TxRef == nil) == (e.Origin.ChannelID == nil) {
		return fault.Invariantf("ccm failure on %s must carry exactly one origin", e.Chain)
	}

	failed := &model.FailedSwap{
		Reason:            e.Reason,
		SrcChain:          e.Chain,
		DestAddress:       &e.DestAddress,
		CcmGasBudget:      &e.Ccm.GasBudget,
		CcmMessage:        &e.Ccm.Message,
		CcmAdditionalData: &e.Ccm.AdditionalData,
		FailedAt:          env.Block.Timestamp,
		FailedBlockIndex:  env.BlockIndex().String(),
	}

	// The event does not carry the deposit itself; the originating call does.
	if env.CallID == nil {
		return fault.Invariantf("ccm failure on %s has no originating call", e.Chain)
	}
	call, err := p.calls.GetCall(ctx, *env.CallID)
	if err != nil {
		return err
	}
	if call == nil {
		return fault.NotFound("indexer call", "%s", *env.CallID)
	}
	var args ccmCallArgs
	if err := json.Unmarshal(call.Args, &args); err != nil {
		return fmt.Errorf("decode call %s args: %w", call.ID, err)
	}
	srcAsset, err := model.ParseAsset(args.SourceAsset)
	if err != nil {
		return fault.Invariantf("call %s: %v", call.ID, err)
	}
	failed.SrcAsset = srcAsset
	failed.DepositAmount = args.DepositAmount

	switch {
	case e.Origin.TxRef != nil:
		failed.DepositTransactionRef = e.Origin.TxRef
	case e.Origin.ChannelID != nil:
		channel, err := p.stores.Channels.FindLatestSwapChannelTx(ctx, tx, e.Chain, *e.Origin.ChannelID, args.DepositAddress)
		if err != nil {
			return err
		}
		if channel == nil {
			return fault.NotFound("swap deposit channel", "%s channel %d address %s",
				e.Chain, *e.Origin.ChannelID, args.DepositAddress)
		}
		failed.SwapDepositChannelID = &channel.ID
	}

	_, err = p.stores.Failed.CreateTx(ctx, tx, failed)
	return err
}

func (p *Processor) handleTransactionRejected(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.TransactionRejectedByBroker) error {
	broadcastID, err := p.stores.Broadcasts.CreateTx(ctx, tx, &model.Broadcast{
		Chain:               e.Chain,
		NativeID:            e.BroadcastID,
		RequestedAt:         env.Block.Timestamp,
		RequestedBlockIndex: env.BlockIndex().String(),
	})
	if err != nil {
		return err
	}

	// The rejected deposit must resolve to exactly one recorded failure,
	// through whichever keys the event carries.
	seen := map[uuid.UUID]bool{}
	var candidates []model.FailedSwap
	add := func(matches []model.FailedSwap) {
		for _, m := range matches {
			if !seen[m.ID] {
				seen[m.ID] = true
				candidates = append(candidates, m)
			}
		}
	}

	if e.TxRef != nil {
		matches, err := p.stores.Failed.FindByTxRefTx(ctx, tx, e.Chain, *e.TxRef)
		if err != nil {
			return err
		}
		add(matches)
	}
	if e.ChannelID != nil {
		matches, err := p.stores.Failed.FindByChannelNativeIDTx(ctx, tx, e.Chain, *e.ChannelID)
		if err != nil {
			return err
		}
		add(matches)
	}
	if e.RefAddress != nil {
		matches, err := p.stores.Failed.FindPendingVaultByAddressTx(ctx, tx, e.Chain, *e.RefAddress)
		if err != nil {
			return err
		}
		add(matches)
	}

	if len(candidates) != 1 {
		return fault.Ambiguous(fmt.Sprintf("rejected deposit on %s broadcast %d", e.Chain, e.BroadcastID), len(candidates))
	}
	return p.stores.Failed.SetRefundBroadcastTx(ctx, tx, candidates[0].ID, broadcastID)
}
