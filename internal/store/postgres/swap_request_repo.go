package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/swapstream/swap-indexer/internal/domain/model"
	"github.com/swapstream/swap-indexer/internal/store"
)

type SwapRequestRepo struct {
	db *DB
}

func NewSwapRequestRepo(db *DB) *SwapRequestRepo {
	return &SwapRequestRepo{db: db}
}

const swapRequestColumns = `
	id, native_id, src_asset, dest_asset, origin_kind, request_kind,
	swap_input_amount, dest_address,
	swap_deposit_channel_id, on_chain_account,
	deposit_amount, deposit_finalised_at, deposit_finalised_block_index,
	deposit_transaction_ref, deposit_boosted_at, deposit_boosted_block_index,
	effective_boost_fee_bps, max_boost_fee_bps,
	dca_number_of_chunks, dca_chunk_interval,
	fok_min_price_x128, fok_refund_address, fok_retry_duration,
	ccm_gas_budget, ccm_message, ccm_additional_data,
	swap_egress_id, refund_egress_id,
	requested_at, requested_block_index, completed_at, completed_block_index,
	created_at`

func scanSwapRequest(row rowScanner) (*model.SwapRequest, error) {
	var r model.SwapRequest
	var nativeID int64
	err := row.Scan(
		&r.ID, &nativeID, &r.SrcAsset, &r.DestAsset, &r.Origin, &r.Kind,
		&r.SwapInputAmount, &r.DestAddress,
		&r.SwapDepositChannelID, &r.OnChainAccount,
		&r.DepositAmount, &r.DepositFinalisedAt, &r.DepositFinalisedIndex,
		&r.DepositTransactionRef, &r.DepositBoostedAt, &r.DepositBoostedIndex,
		&r.EffectiveBoostFeeBps, &r.MaxBoostFeeBps,
		&r.DcaNumberOfChunks, &r.DcaChunkInterval,
		&r.FokMinPriceX128, &r.FokRefundAddress, &r.FokRetryDuration,
		&r.CcmGasBudget, &r.CcmMessage, &r.CcmAdditionalData,
		&r.SwapEgressID, &r.RefundEgressID,
		&r.RequestedAt, &r.RequestedBlockIndex, &r.CompletedAt, &r.CompletedBlockIndex,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.NativeID = uint64(nativeID)
	return &r, nil
}

func (r *SwapRequestRepo) CreateTx(ctx context.Context, tx *sql.Tx, sr *model.SwapRequest) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO swap_requests (
			native_id, src_asset, dest_asset, origin_kind, request_kind,
			swap_input_amount, dest_address,
			swap_deposit_channel_id, on_chain_account,
			max_boost_fee_bps,
			dca_number_of_chunks, dca_chunk_interval,
			fok_min_price_x128, fok_refund_address, fok_retry_duration,
			ccm_gas_budget, ccm_message, ccm_additional_data,
			requested_at, requested_block_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (native_id) DO NOTHING
		RETURNING id
	`, int64(sr.NativeID), sr.SrcAsset, sr.DestAsset, sr.Origin, sr.Kind,
		sr.SwapInputAmount, sr.DestAddress,
		sr.SwapDepositChannelID, sr.OnChainAccount,
		sr.MaxBoostFeeBps,
		sr.DcaNumberOfChunks, sr.DcaChunkInterval,
		sr.FokMinPriceX128, sr.FokRefundAddress, sr.FokRetryDuration,
		sr.CcmGasBudget, sr.CcmMessage, sr.CcmAdditionalData,
		sr.RequestedAt, sr.RequestedBlockIndex,
	).Scan(&id)
	if err == sql.ErrNoRows {
		// Replay: the row already exists.
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM swap_requests WHERE native_id = $1`, int64(sr.NativeID),
		).Scan(&id)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("create swap request: %w", err)
	}
	return id, nil
}

func (r *SwapRequestRepo) GetByNativeIDTx(ctx context.Context, tx *sql.Tx, nativeID uint64) (*model.SwapRequest, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT`+swapRequestColumns+` FROM swap_requests WHERE native_id = $1`, int64(nativeID))
	sr, err := scanSwapRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swap request: %w", err)
	}
	return sr, nil
}

func (r *SwapRequestRepo) GetByNativeID(ctx context.Context, nativeID uint64) (*model.SwapRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	row := r.db.QueryRowContext(ctx,
		`SELECT`+swapRequestColumns+` FROM swap_requests WHERE native_id = $1`, int64(nativeID))
	sr, err := scanSwapRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swap request: %w", err)
	}
	return sr, nil
}

func (r *SwapRequestRepo) GetByTransactionRef(ctx context.Context, ref string) (*model.SwapRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `
		SELECT`+swapRequestColumns+`
		FROM swap_requests
		WHERE deposit_transaction_ref = $1
		ORDER BY requested_at DESC
		LIMIT 1
	`, ref)
	sr, err := scanSwapRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swap request by tx ref: %w", err)
	}
	return sr, nil
}

func (r *SwapRequestRepo) AttachDepositTx(ctx context.Context, tx *sql.Tx, nativeID uint64, attach store.DepositAttach) error {
	var err error
	if attach.Boosted {
		_, err = tx.ExecContext(ctx, `
			UPDATE swap_requests SET
				deposit_amount = $2,
				deposit_boosted_at = COALESCE(deposit_boosted_at, $3),
				deposit_boosted_block_index = COALESCE(deposit_boosted_block_index, $4),
				deposit_transaction_ref = COALESCE($5, deposit_transaction_ref),
				effective_boost_fee_bps = COALESCE($6, effective_boost_fee_bps),
				max_boost_fee_bps = COALESCE($7, max_boost_fee_bps)
			WHERE native_id = $1
		`, int64(nativeID), attach.Amount, attach.At, attach.BlockIndex,
			attach.TxRef, attach.EffectiveBoostFeeBps, attach.MaxBoostFeeBps)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE swap_requests SET
				deposit_amount = $2,
				deposit_finalised_at = COALESCE(deposit_finalised_at, $3),
				deposit_finalised_block_index = COALESCE(deposit_finalised_block_index, $4),
				deposit_transaction_ref = COALESCE($5, deposit_transaction_ref),
				max_boost_fee_bps = COALESCE($6, max_boost_fee_bps)
			WHERE native_id = $1
		`, int64(nativeID), attach.Amount, attach.At, attach.BlockIndex,
			attach.TxRef, attach.MaxBoostFeeBps)
	}
	if err != nil {
		return fmt.Errorf("attach deposit: %w", err)
	}
	return nil
}

func (r *SwapRequestRepo) SetEgressTx(ctx context.Context, tx *sql.Tx, nativeID uint64, kind model.EgressKind, egressID uuid.UUID) error {
	column := "swap_egress_id"
	if kind == model.EgressRefund {
		column = "refund_egress_id"
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE swap_requests SET `+column+` = $2 WHERE native_id = $1`,
		int64(nativeID), egressID)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	return nil
}

func (r *SwapRequestRepo) CompleteTx(ctx context.Context, tx *sql.Tx, nativeID uint64, at time.Time, blockIndex string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE swap_requests SET
			completed_at = COALESCE(completed_at, $2),
			completed_block_index = COALESCE(completed_block_index, $3)
		WHERE native_id = $1
	`, int64(nativeID), at, blockIndex)
	if err != nil {
		return fmt.Errorf("complete swap request: %w", err)
	}
	return nil
}

func (r *SwapRequestRepo) ListFinalisedByChannel(ctx context.Context, channelID uuid.UUID) ([]model.SwapRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+swapRequestColumns+`
		FROM swap_requests
		WHERE swap_deposit_channel_id = $1 AND deposit_finalised_at IS NOT NULL
		ORDER BY deposit_finalised_at DESC, native_id DESC
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list finalised by channel: %w", err)
	}
	defer rows.Close()
	return collectSwapRequests(rows)
}

func (r *SwapRequestRepo) LatestByChannel(ctx context.Context, channelID uuid.UUID) (*model.SwapRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `
		SELECT`+swapRequestColumns+`
		FROM swap_requests
		WHERE swap_deposit_channel_id = $1
		ORDER BY native_id DESC
		LIMIT 1
	`, channelID)
	sr, err := scanSwapRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest by channel: %w", err)
	}
	return sr, nil
}

func (r *SwapRequestRepo) UpdateDepositTxRefTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, ref string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE swap_requests SET deposit_transaction_ref = $2 WHERE id = $1`, id, ref)
	if err != nil {
		return fmt.Errorf("update deposit tx ref: %w", err)
	}
	return nil
}

func collectSwapRequests(rows *sql.Rows) ([]model.SwapRequest, error) {
	var out []model.SwapRequest
	for rows.Next() {
		sr, err := scanSwapRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swap request: %w", err)
		}
		out = append(out, *sr)
	}
	return out, rows.Err()
}
