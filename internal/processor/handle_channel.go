package processor

import (
	"context"
	"database/sql"

	"github.com/swapstream/swap-indexer/internal/domain/event"
	"github.com/swapstream/swap-indexer/internal/domain/model"
)

func (p *Processor) handleChannelReady(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.SwapDepositAddressReady) error {
	blockIndex := env.BlockIndex().String()

	if _, err := p.stores.Channels.UpsertDepositChannelTx(ctx, tx, &model.DepositChannel{
		Chain:          e.Chain,
		DepositAddress: e.DepositAddress,
		IssuedBlock:    env.Block.Height,
		IsSwapping:     true,
	}); err != nil {
		return err
	}

	ch := &model.SwapDepositChannel{
		IssuedBlock:       env.Block.Height,
		Chain:             e.Chain,
		ChannelID:         e.ChannelID,
		DepositAddress:    e.DepositAddress,
		SrcAsset:          e.SrcAsset,
		DestAsset:         e.DestAsset,
		DestAddress:       e.DestAddress,
		MaxBoostFeeBps:    e.MaxBoostFeeBps,
		ChannelOpeningFee: e.ChannelOpeningFee,
		ExpiryBlock:       e.SourceChainExpiryBlock,
		OpenedAt:          env.Block.Timestamp,
		OpenedBlockIndex:  blockIndex,
	}

	if e.BrokerCommissionBps > 0 {
		ch.Beneficiaries = append(ch.Beneficiaries, model.Beneficiary{
			Account:       e.Broker,
			Type:          model.BeneficiarySubmitter,
			CommissionBps: e.BrokerCommissionBps,
		})
	}
	total := e.BrokerCommissionBps
	for _, a := range e.Affiliates {
		if a.CommissionBps <= 0 {
			continue
		}
		ch.Beneficiaries = append(ch.Beneficiaries, model.Beneficiary{
			Account:       a.Account,
			Type:          model.BeneficiaryAffiliate,
			CommissionBps: a.CommissionBps,
		})
		total += a.CommissionBps
	}
	ch.TotalBrokerCommissionBps = total

	if e.Dca != nil {
		ch.DcaNumberOfChunks = &e.Dca.NumberOfChunks
		ch.DcaChunkInterval = &e.Dca.ChunkInterval
	}
	if e.Fok != nil {
		ch.FokMinPriceX128 = &e.Fok.MinPriceX128
		ch.FokRefundAddress = &e.Fok.RefundAddress
		ch.FokRetryDuration = &e.Fok.RetryDuration
	}

	// Expiry is an estimate: blocks remaining on the external chain at the
	// time the channel opened, scaled by the chain's block interval.
	tracking, err := p.stores.Tracking.GetTx(ctx, tx, e.Chain)
	if err != nil {
		return err
	}
	if tracking != nil {
		expiry := tracking.EstimateExpiry(env.Block.Timestamp, e.SourceChainExpiryBlock)
		ch.EstimatedExpiryAt = &expiry
	}

	_, err = p.stores.Channels.UpsertSwapDepositChannelTx(ctx, tx, ch)
	return err
}

func (p *Processor) handleChainStateUpdated(ctx context.Context, tx *sql.Tx, env event.Envelope, e event.ChainStateUpdated) error {
	return p.stores.Tracking.UpsertTx(ctx, tx, &model.ChainTracking{
		Chain:          e.Chain,
		ExternalHeight: e.Height,
		BlockIndex:     env.BlockIndex().String(),
	})
}
