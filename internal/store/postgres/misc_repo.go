package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/swapstream/swap-indexer/internal/domain/model"
)

type ChainTrackingRepo struct {
	db *DB
}

func NewChainTrackingRepo(db *DB) *ChainTrackingRepo {
	return &ChainTrackingRepo{db: db}
}

func (r *ChainTrackingRepo) UpsertTx(ctx context.Context, tx *sql.Tx, t *model.ChainTracking) error {
	// Heights can be witnessed out of order across events; never move back.
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chain_tracking (chain, external_height, block_index, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (chain) DO UPDATE SET
			external_height = GREATEST(chain_tracking.external_height, EXCLUDED.external_height),
			block_index = EXCLUDED.block_index,
			updated_at = now()
	`, t.Chain, t.ExternalHeight, t.BlockIndex)
	if err != nil {
		return fmt.Errorf("upsert chain tracking: %w", err)
	}
	return nil
}

func (r *ChainTrackingRepo) GetTx(ctx context.Context, tx *sql.Tx, chain model.Chain) (*model.ChainTracking, error) {
	var t model.ChainTracking
	err := tx.QueryRowContext(ctx, `
		SELECT chain, external_height, block_index, updated_at
		FROM chain_tracking WHERE chain = $1
	`, chain).Scan(&t.Chain, &t.ExternalHeight, &t.BlockIndex, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chain tracking: %w", err)
	}
	return &t, nil
}

type FeeRepo struct {
	db *DB
}

func NewFeeRepo(db *DB) *FeeRepo {
	return &FeeRepo{db: db}
}

func (r *FeeRepo) AddTx(ctx context.Context, tx *sql.Tx, f *model.Fee) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO fees (swap_request_id, swap_id, type, asset, amount, block_index)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (swap_request_id, type, asset, block_index) DO NOTHING
	`, f.SwapRequestID, f.SwapID, f.Type, f.Asset, f.Amount, f.BlockIndex)
	if err != nil {
		return fmt.Errorf("add fee: %w", err)
	}
	return nil
}

func (r *FeeRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.Fee, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, swap_request_id, swap_id, type, asset, amount, block_index, created_at
		FROM fees
		WHERE swap_request_id = $1
		ORDER BY block_index
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list fees: %w", err)
	}
	defer rows.Close()

	var out []model.Fee
	for rows.Next() {
		var f model.Fee
		if err := rows.Scan(&f.ID, &f.SwapRequestID, &f.SwapID, &f.Type, &f.Asset, &f.Amount, &f.BlockIndex, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fee: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type CursorRepo struct {
	db *DB
}

func NewCursorRepo(db *DB) *CursorRepo {
	return &CursorRepo{db: db}
}

func (r *CursorRepo) Get(ctx context.Context, id string) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	var height int64
	err := r.db.QueryRowContext(ctx,
		`SELECT height FROM ingest_cursors WHERE id = $1`, id).Scan(&height)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get cursor: %w", err)
	}
	return height, true, nil
}

func (r *CursorRepo) SetTx(ctx context.Context, tx *sql.Tx, id string, height int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ingest_cursors (id, height, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET height = EXCLUDED.height, updated_at = now()
	`, id, height)
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}
