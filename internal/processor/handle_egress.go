package processor

import (
	"context"
	"database/sql"

	"github.com/swapstream/swap-indexer/internal/domain/event"
	"github.com/swapstream/swap-indexer/internal/domain/model"
	"github.com/swapstream/swap-indexer/internal/fault"
)

func (p *Processor) handleEgressScheduled(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.EgressScheduled) error {
	req, err := p.stores.Requests.GetByNativeIDTx(ctx, tx, e.RequestID)
	if err != nil {
		return err
	}
	if req == nil {
		return fault.NotFound("swap request", "native id %d", e.RequestID)
	}

	egressID, err := p.stores.Egresses.CreateTx(ctx, tx, &model.Egress{
		Chain:               e.EgressChain,
		NativeID:            e.EgressID,
		Kind:                e.Kind,
		Asset:               e.Asset,
		Amount:              e.Amount,
		Fee:                 e.Fee,
		ScheduledAt:         env.Block.Timestamp,
		ScheduledBlockIndex: env.BlockIndex().String(),
	})
	if err != nil {
		return err
	}
	if err := p.stores.Requests.SetEgressTx(ctx, tx, e.RequestID, e.Kind, egressID); err != nil {
		return err
	}

	feeType := model.FeeEgress
	if e.Kind == model.EgressRefund {
		feeType = model.FeeRefund
	}
	if e.Fee != "" && e.Fee != "0" {
		return p.stores.Fees.AddTx(ctx, tx, &model.Fee{
			SwapRequestID: req.ID,
			Type:          feeType,
			Asset:         e.Asset,
			Amount:        e.Fee,
			BlockIndex:    env.BlockIndex().String(),
		})
	}
	return nil
}

func (p *Processor) handleEgressIgnored(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.EgressIgnored) error {
	req, err := p.stores.Requests.GetByNativeIDTx(ctx, tx, e.RequestID)
	if err != nil {
		return err
	}
	if req == nil {
		return fault.NotFound("swap request", "native id %d", e.RequestID)
	}

	errID, err := p.stores.ChainErrs.ResolveTx(ctx, tx, env.Block.SpecVersion, e.Reason.PalletIndex, e.Reason.ErrorIndex)
	if err != nil {
		return err
	}

	return p.stores.Ignored.CreateTx(ctx, tx, &model.IgnoredEgress{
		SwapRequestID:     req.ID,
		Kind:              e.Kind,
		Asset:             e.Asset,
		Amount:            e.Amount,
		StateChainErrorID: errID,
		IgnoredAt:         env.Block.Timestamp,
		IgnoredBlockIndex: env.BlockIndex().String(),
	})
}

func (p *Processor) handleBatchBroadcastRequested(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.BatchBroadcastRequested) error {
	if len(e.EgressIDs) == 0 {
		return nil
	}
	broadcastID, err := p.stores.Broadcasts.CreateTx(ctx, tx, &model.Broadcast{
		Chain:               e.Chain,
		NativeID:            e.BroadcastID,
		RequestedAt:         env.Block.Timestamp,
		RequestedBlockIndex: env.BlockIndex().String(),
	})
	if err != nil {
		return err
	}
	return p.stores.Egresses.BindBroadcastTx(ctx, tx, e.Chain, e.EgressIDs, broadcastID)
}

func (p *Processor) handleBroadcastSuccess(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.BroadcastSuccess) error {
	// Broadcasts not created by a swap egress or refund are out of scope;
	// the update silently matches zero rows for them.
	return p.stores.Broadcasts.MarkSucceededTx(ctx, tx, e.Chain, e.BroadcastID,
		env.Block.Timestamp, env.BlockIndex().String(), e.TxRef)
}

func (p *Processor) handleBroadcastAborted(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.BroadcastAborted) error {
	return p.stores.Broadcasts.MarkAbortedTx(ctx, tx, e.Chain, e.BroadcastID,
		env.Block.Timestamp, env.BlockIndex().String())
}
