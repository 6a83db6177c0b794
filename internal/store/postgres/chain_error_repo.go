package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/swapstream/swap-indexer/internal/domain/model"
)

type StateChainErrorRepo struct {
	db *DB
}

func NewStateChainErrorRepo(db *DB) *StateChainErrorRepo {
	return &StateChainErrorRepo{db: db}
}

// ResolveTx maps an error code to its row, inserting an UnknownError sentinel
// when no registry entry exists so the foreign key never dangles.
func (r *StateChainErrorRepo) ResolveTx(ctx context.Context, tx *sql.Tx, specVersion, palletIndex, errorIndex int) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM state_chain_errors
		WHERE spec_version = $1 AND pallet_index = $2 AND error_index = $3
	`, specVersion, palletIndex, errorIndex).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, fmt.Errorf("resolve state chain error: %w", err)
	}
	return r.UpsertTx(ctx, tx, &model.StateChainError{
		SpecVersion: specVersion,
		PalletIndex: palletIndex,
		ErrorIndex:  errorIndex,
		Name:        model.UnknownErrorName,
	})
}

func (r *StateChainErrorRepo) UpsertTx(ctx context.Context, tx *sql.Tx, e *model.StateChainError) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO state_chain_errors (spec_version, pallet_index, error_index, name, docs)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (spec_version, pallet_index, error_index) DO UPDATE SET
			name = CASE WHEN state_chain_errors.name = 'UnknownError' THEN EXCLUDED.name ELSE state_chain_errors.name END,
			docs = CASE WHEN state_chain_errors.name = 'UnknownError' THEN EXCLUDED.docs ELSE state_chain_errors.docs END
		RETURNING id
	`, e.SpecVersion, e.PalletIndex, e.ErrorIndex, e.Name, e.Docs).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert state chain error: %w", err)
	}
	return id, nil
}

func (r *StateChainErrorRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.StateChainError, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	var e model.StateChainError
	err := r.db.QueryRowContext(ctx, `
		SELECT id, spec_version, pallet_index, error_index, name, docs, created_at
		FROM state_chain_errors WHERE id = $1
	`, id).Scan(&e.ID, &e.SpecVersion, &e.PalletIndex, &e.ErrorIndex, &e.Name, &e.Docs, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state chain error: %w", err)
	}
	return &e, nil
}

type IgnoredEgressRepo struct {
	db *DB
}

func NewIgnoredEgressRepo(db *DB) *IgnoredEgressRepo {
	return &IgnoredEgressRepo{db: db}
}

func (r *IgnoredEgressRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.IgnoredEgress) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ignored_egresses (
			swap_request_id, kind, asset, amount, state_chain_error_id,
			ignored_at, ignored_block_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (swap_request_id, kind) DO NOTHING
	`, e.SwapRequestID, e.Kind, e.Asset, e.Amount, e.StateChainErrorID,
		e.IgnoredAt, e.IgnoredBlockIndex)
	if err != nil {
		return fmt.Errorf("create ignored egress: %w", err)
	}
	return nil
}

func (r *IgnoredEgressRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.IgnoredEgress, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, swap_request_id, kind, asset, amount, state_chain_error_id,
			ignored_at, ignored_block_index, created_at
		FROM ignored_egresses
		WHERE swap_request_id = $1
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list ignored egresses: %w", err)
	}
	defer rows.Close()

	var out []model.IgnoredEgress
	for rows.Next() {
		var e model.IgnoredEgress
		if err := rows.Scan(
			&e.ID, &e.SwapRequestID, &e.Kind, &e.Asset, &e.Amount, &e.StateChainErrorID,
			&e.IgnoredAt, &e.IgnoredBlockIndex, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ignored egress: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
