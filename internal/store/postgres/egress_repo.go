package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/swapstream/swap-indexer/internal/domain/model"
)

type EgressRepo struct {
	db *DB
}

func NewEgressRepo(db *DB) *EgressRepo {
	return &EgressRepo{db: db}
}

func (r *EgressRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.Egress) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO egresses (chain, native_id, kind, asset, amount, fee, scheduled_at, scheduled_block_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (chain, native_id, kind) DO NOTHING
		RETURNING id
	`, e.Chain, int64(e.NativeID), e.Kind, e.Asset, e.Amount, e.Fee,
		e.ScheduledAt, e.ScheduledBlockIndex,
	).Scan(&id)
	if err == sql.ErrNoRows {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM egresses WHERE chain = $1 AND native_id = $2 AND kind = $3`,
			e.Chain, int64(e.NativeID), e.Kind,
		).Scan(&id)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("create egress: %w", err)
	}
	return id, nil
}

func (r *EgressRepo) BindBroadcastTx(ctx context.Context, tx *sql.Tx, chain model.Chain, nativeIDs []uint64, broadcastID uuid.UUID) error {
	if len(nativeIDs) == 0 {
		return nil
	}
	ids := make([]int64, len(nativeIDs))
	for i, n := range nativeIDs {
		ids[i] = int64(n)
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE egresses SET broadcast_id = $3
		WHERE chain = $1 AND native_id = ANY($2)
	`, chain, pq.Array(ids), broadcastID)
	if err != nil {
		return fmt.Errorf("bind broadcast: %w", err)
	}
	return nil
}

func (r *EgressRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Egress, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	var e model.Egress
	var nativeID int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, chain, native_id, kind, asset, amount, fee, broadcast_id,
			scheduled_at, scheduled_block_index, created_at
		FROM egresses WHERE id = $1
	`, id).Scan(
		&e.ID, &e.Chain, &nativeID, &e.Kind, &e.Asset, &e.Amount, &e.Fee, &e.BroadcastID,
		&e.ScheduledAt, &e.ScheduledBlockIndex, &e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get egress: %w", err)
	}
	e.NativeID = uint64(nativeID)
	return &e, nil
}

type BroadcastRepo struct {
	db *DB
}

func NewBroadcastRepo(db *DB) *BroadcastRepo {
	return &BroadcastRepo{db: db}
}

func (r *BroadcastRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Broadcast) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO broadcasts (chain, native_id, requested_at, requested_block_index)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chain, native_id) DO NOTHING
		RETURNING id
	`, b.Chain, int64(b.NativeID), b.RequestedAt, b.RequestedBlockIndex).Scan(&id)
	if err == sql.ErrNoRows {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM broadcasts WHERE chain = $1 AND native_id = $2`,
			b.Chain, int64(b.NativeID),
		).Scan(&id)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("create broadcast: %w", err)
	}
	return id, nil
}

func (r *BroadcastRepo) MarkSucceededTx(ctx context.Context, tx *sql.Tx, chain model.Chain, nativeID uint64, at time.Time, blockIndex string, txRef *string) error {
	// A broadcast that already reached a terminal outcome is left untouched.
	_, err := tx.ExecContext(ctx, `
		UPDATE broadcasts SET
			succeeded_at = $3,
			succeeded_block_index = $4,
			transaction_ref = $5
		WHERE chain = $1 AND native_id = $2
			AND succeeded_at IS NULL AND aborted_at IS NULL
	`, chain, int64(nativeID), at, blockIndex, txRef)
	if err != nil {
		return fmt.Errorf("mark broadcast succeeded: %w", err)
	}
	return nil
}

func (r *BroadcastRepo) MarkAbortedTx(ctx context.Context, tx *sql.Tx, chain model.Chain, nativeID uint64, at time.Time, blockIndex string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE broadcasts SET
			aborted_at = $3,
			aborted_block_index = $4
		WHERE chain = $1 AND native_id = $2
			AND succeeded_at IS NULL AND aborted_at IS NULL
	`, chain, int64(nativeID), at, blockIndex)
	if err != nil {
		return fmt.Errorf("mark broadcast aborted: %w", err)
	}
	return nil
}

func (r *BroadcastRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Broadcast, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	var b model.Broadcast
	var nativeID int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, chain, native_id, requested_at, requested_block_index,
			succeeded_at, succeeded_block_index, aborted_at, aborted_block_index,
			transaction_ref, created_at
		FROM broadcasts WHERE id = $1
	`, id).Scan(
		&b.ID, &b.Chain, &nativeID, &b.RequestedAt, &b.RequestedBlockIndex,
		&b.SucceededAt, &b.SucceededBlockIndex, &b.AbortedAt, &b.AbortedBlockIndex,
		&b.TransactionRef, &b.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get broadcast: %w", err)
	}
	b.NativeID = uint64(nativeID)
	return &b, nil
}
