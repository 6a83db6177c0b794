package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/swapstream/swap-indexer/internal/domain/model"
)

type FailedSwapRepo struct {
	db *DB
}

func NewFailedSwapRepo(db *DB) *FailedSwapRepo {
	return &FailedSwapRepo{db: db}
}

const failedSwapColumns = `
	id, reason, src_chain, src_asset, dest_chain, dest_asset, dest_address,
	deposit_amount, swap_deposit_channel_id, deposit_transaction_ref,
	ccm_gas_budget, ccm_message, ccm_additional_data,
	refund_broadcast_id, failed_at, failed_block_index, created_at`

func scanFailedSwap(row rowScanner) (*model.FailedSwap, error) {
	var f model.FailedSwap
	err := row.Scan(
		&f.ID, &f.Reason, &f.SrcChain, &f.SrcAsset, &f.DestChain, &f.DestAsset, &f.DestAddress,
		&f.DepositAmount, &f.SwapDepositChannelID, &f.DepositTransactionRef,
		&f.CcmGasBudget, &f.CcmMessage, &f.CcmAdditionalData,
		&f.RefundBroadcastID, &f.FailedAt, &f.FailedBlockIndex, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FailedSwapRepo) CreateTx(ctx context.Context, tx *sql.Tx, f *model.FailedSwap) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO failed_swaps (
			reason, src_chain, src_asset, dest_chain, dest_asset, dest_address,
			deposit_amount, swap_deposit_channel_id, deposit_transaction_ref,
			ccm_gas_budget, ccm_message, ccm_additional_data,
			failed_at, failed_block_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (reason, failed_block_index) DO NOTHING
		RETURNING id
	`, f.Reason, f.SrcChain, f.SrcAsset, f.DestChain, f.DestAsset, f.DestAddress,
		f.DepositAmount, f.SwapDepositChannelID, f.DepositTransactionRef,
		f.CcmGasBudget, f.CcmMessage, f.CcmAdditionalData,
		f.FailedAt, f.FailedBlockIndex,
	).Scan(&id)
	if err == sql.ErrNoRows {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM failed_swaps WHERE reason = $1 AND failed_block_index = $2`,
			f.Reason, f.FailedBlockIndex,
		).Scan(&id)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("create failed swap: %w", err)
	}
	return id, nil
}

func (r *FailedSwapRepo) SetRefundBroadcastTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, broadcastID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE failed_swaps SET refund_broadcast_id = $2 WHERE id = $1`, id, broadcastID)
	if err != nil {
		return fmt.Errorf("set refund broadcast: %w", err)
	}
	return nil
}

func (r *FailedSwapRepo) UpdateDepositTxRefTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, ref string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE failed_swaps SET deposit_transaction_ref = $2 WHERE id = $1`, id, ref)
	if err != nil {
		return fmt.Errorf("update failed swap tx ref: %w", err)
	}
	return nil
}

func (r *FailedSwapRepo) FindByTxRefTx(ctx context.Context, tx *sql.Tx, chain model.Chain, ref string) ([]model.FailedSwap, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT`+failedSwapColumns+`
		FROM failed_swaps
		WHERE src_chain = $1 AND deposit_transaction_ref = $2
	`, chain, ref)
	if err != nil {
		return nil, fmt.Errorf("find failed swaps by tx ref: %w", err)
	}
	defer rows.Close()
	return collectFailedSwaps(rows)
}

func (r *FailedSwapRepo) FindByChannelNativeIDTx(ctx context.Context, tx *sql.Tx, chain model.Chain, channelID uint64) ([]model.FailedSwap, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT`+failedSwapColumns+`
		FROM failed_swaps f
		WHERE f.swap_deposit_channel_id IN (
			SELECT id FROM swap_deposit_channels WHERE chain = $1 AND channel_id = $2
		)
	`, chain, int64(channelID))
	if err != nil {
		return nil, fmt.Errorf("find failed swaps by channel: %w", err)
	}
	defer rows.Close()
	return collectFailedSwaps(rows)
}

func (r *FailedSwapRepo) FindPendingVaultByAddressTx(ctx context.Context, tx *sql.Tx, chain model.Chain, address string) ([]model.FailedSwap, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT`+failedSwapColumns+`
		FROM failed_swaps f
		WHERE f.id IN (
			SELECT failed_vault_swap_id FROM pending_tx_refs
			WHERE chain = $1 AND address = $2 AND failed_vault_swap_id IS NOT NULL
		)
	`, chain, address)
	if err != nil {
		return nil, fmt.Errorf("find pending vault failures: %w", err)
	}
	defer rows.Close()
	return collectFailedSwaps(rows)
}

func (r *FailedSwapRepo) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]model.FailedSwap, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+failedSwapColumns+`
		FROM failed_swaps
		WHERE swap_deposit_channel_id = $1
		ORDER BY failed_at DESC
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list failed swaps: %w", err)
	}
	defer rows.Close()
	return collectFailedSwaps(rows)
}

func (r *FailedSwapRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.FailedSwap, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	row := r.db.QueryRowContext(ctx,
		`SELECT`+failedSwapColumns+` FROM failed_swaps WHERE id = $1`, id)
	f, err := scanFailedSwap(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get failed swap: %w", err)
	}
	return f, nil
}

func collectFailedSwaps(rows *sql.Rows) ([]model.FailedSwap, error) {
	var out []model.FailedSwap
	for rows.Next() {
		f, err := scanFailedSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed swap: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}
