package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/swapstream/swap-indexer/internal/domain/model"
)

type PendingTxRefRepo struct {
	db *DB
}

func NewPendingTxRefRepo(db *DB) *PendingTxRefRepo {
	return &PendingTxRefRepo{db: db}
}

func (r *PendingTxRefRepo) CreateForChannelTx(ctx context.Context, tx *sql.Tx, channelID uuid.UUID, chain model.Chain, address string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pending_tx_refs (swap_deposit_channel_id, chain, address)
		VALUES ($1, $2, $3)
		ON CONFLICT (swap_deposit_channel_id) DO NOTHING
	`, channelID, chain, address)
	if err != nil {
		return fmt.Errorf("create pending tx ref for channel: %w", err)
	}
	return nil
}

func (r *PendingTxRefRepo) CreateForVaultSwapTx(ctx context.Context, tx *sql.Tx, failedSwapID uuid.UUID, chain model.Chain, address string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pending_tx_refs (failed_vault_swap_id, chain, address)
		VALUES ($1, $2, $3)
		ON CONFLICT (failed_vault_swap_id) DO NOTHING
	`, failedSwapID, chain, address)
	if err != nil {
		return fmt.Errorf("create pending tx ref for vault swap: %w", err)
	}
	return nil
}

func (r *PendingTxRefRepo) Next(ctx context.Context) (*model.PendingTxRef, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	var p model.PendingTxRef
	err := r.db.QueryRowContext(ctx, `
		SELECT id, swap_deposit_channel_id, failed_vault_swap_id, address, chain, created_at
		FROM pending_tx_refs
		LIMIT 1
	`).Scan(&p.ID, &p.SwapDepositChannelID, &p.FailedVaultSwapID, &p.Address, &p.Chain, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending tx ref: %w", err)
	}
	return &p, nil
}

func (r *PendingTxRefRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_tx_refs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete pending tx ref: %w", err)
	}
	return nil
}
