package processor

import (
	"context"
	"database/sql"

	"github.com/swapstream/swap-indexer/internal/domain/event"
	"github.com/swapstream/swap-indexer/internal/domain/model"
	"github.com/swapstream/swap-indexer/internal/fault"
	"github.com/swapstream/swap-indexer/internal/store"
)

func (p *Processor) handleSwapRequested(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.SwapRequested) error {
	req := &model.SwapRequest{
		NativeID:            e.RequestID,
		SrcAsset:            e.SrcAsset,
		DestAsset:           e.DestAsset,
		Origin:              e.Origin.Kind,
		Kind:                e.Kind,
		SwapInputAmount:     e.InputAmount,
		DestAddress:         e.DestAddress,
		RequestedAt:         env.Block.Timestamp,
		RequestedBlockIndex: env.BlockIndex().String(),
	}

	srcChain := e.SrcAsset.Chain()

	var channel *model.SwapDepositChannel
	switch e.Origin.Kind {
	case model.OriginDepositChannel:
		var err error
		channel, err = p.stores.Channels.FindLatestSwapChannelTx(ctx, tx, srcChain, e.Origin.ChannelID, e.Origin.DepositAddress)
		if err != nil {
			return err
		}
		if channel == nil {
			return fault.NotFound("swap deposit channel", "%s channel %d address %s",
				srcChain, e.Origin.ChannelID, e.Origin.DepositAddress)
		}
		req.SwapDepositChannelID = &channel.ID
		req.MaxBoostFeeBps = channel.MaxBoostFeeBps
	case model.OriginVault:
		req.DepositTransactionRef = e.Origin.TxRef
	case model.OriginOnChainAccount:
		req.OnChainAccount = &e.Origin.Account
	}

	if e.Ccm != nil {
		req.CcmGasBudget = &e.Ccm.GasBudget
		req.CcmMessage = &e.Ccm.Message
		req.CcmAdditionalData = &e.Ccm.AdditionalData
	}
	if e.Dca != nil {
		req.DcaNumberOfChunks = &e.Dca.NumberOfChunks
		req.DcaChunkInterval = &e.Dca.ChunkInterval
	}
	if e.Fok != nil {
		req.FokMinPriceX128 = &e.Fok.MinPriceX128
		req.FokRefundAddress = &e.Fok.RefundAddress
		req.FokRetryDuration = &e.Fok.RetryDuration
	}

	if _, err := p.stores.Requests.CreateTx(ctx, tx, req); err != nil {
		return err
	}

	// Chains whose deposit references arrive after settlement get a
	// reconciliation work item scoped to the channel.
	if channel != nil && srcChain.RefPendingAtWitnessing() {
		return p.stores.Pending.CreateForChannelTx(ctx, tx, channel.ID, srcChain, channel.DepositAddress)
	}
	return nil
}

func (p *Processor) handleSwapScheduled(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.SwapScheduled) error {
	req, err := p.stores.Requests.GetByNativeIDTx(ctx, tx, e.RequestID)
	if err != nil {
		return err
	}
	if req == nil {
		return fault.NotFound("swap request", "native id %d", e.RequestID)
	}

	_, err = p.stores.Swaps.CreateTx(ctx, tx, &model.Swap{
		NativeID:            e.SwapID,
		SwapRequestID:       req.ID,
		Kind:                e.Kind,
		InputAmount:         e.InputAmount,
		ScheduledAt:         env.Block.Timestamp,
		ScheduledBlockIndex: env.BlockIndex().String(),
	})
	return err
}

func (p *Processor) handleSwapRescheduled(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.SwapRescheduled) error {
	s, err := p.stores.Swaps.GetByNativeIDTx(ctx, tx, e.SwapID)
	if err != nil {
		return err
	}
	if s == nil {
		return fault.NotFound("swap", "native id %d", e.SwapID)
	}
	return p.stores.Swaps.RescheduleTx(ctx, tx, e.SwapID, env.Block.Timestamp, env.BlockIndex().String())
}

func (p *Processor) handleSwapExecuted(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.SwapExecuted) error {
	s, err := p.stores.Swaps.GetByNativeIDTx(ctx, tx, e.SwapID)
	if err != nil {
		return err
	}
	if s == nil {
		return fault.NotFound("swap", "native id %d", e.SwapID)
	}

	blockIndex := env.BlockIndex().String()
	if err := p.stores.Swaps.ExecuteTx(ctx, tx, e.SwapID, store.ExecutedSwap{
		InputAmount:        e.InputAmount,
		IntermediateAmount: e.IntermediateAmount,
		OutputAmount:       e.OutputAmount,
		At:                 env.Block.Timestamp,
		BlockIndex:         blockIndex,
	}); err != nil {
		return err
	}

	// Network and broker fees are levied in the pivot asset per chunk.
	if e.NetworkFee != "" && e.NetworkFee != "0" {
		if err := p.stores.Fees.AddTx(ctx, tx, &model.Fee{
			SwapRequestID: s.SwapRequestID,
			SwapID:        &s.ID,
			Type:          model.FeeNetwork,
			Asset:         model.AssetUsdc,
			Amount:        e.NetworkFee,
			BlockIndex:    blockIndex,
		}); err != nil {
			return err
		}
	}
	if e.BrokerFee != "" && e.BrokerFee != "0" {
		if err := p.stores.Fees.AddTx(ctx, tx, &model.Fee{
			SwapRequestID: s.SwapRequestID,
			SwapID:        &s.ID,
			Type:          model.FeeBroker,
			Asset:         model.AssetUsdc,
			Amount:        e.BrokerFee,
			BlockIndex:    blockIndex,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) handleSwapRequestCompleted(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.SwapRequestCompleted) error {
	req, err := p.stores.Requests.GetByNativeIDTx(ctx, tx, e.RequestID)
	if err != nil {
		return err
	}
	if req == nil {
		return fault.NotFound("swap request", "native id %d", e.RequestID)
	}
	return p.stores.Requests.CompleteTx(ctx, tx, e.RequestID, env.Block.Timestamp, env.BlockIndex().String())
}
