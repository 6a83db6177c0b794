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

type SwapRepo struct {
	db *DB
}

func NewSwapRepo(db *DB) *SwapRepo {
	return &SwapRepo{db: db}
}

const swapColumns = `
	id, native_id, swap_request_id, kind,
	input_amount, intermediate_amount, output_amount,
	scheduled_at, scheduled_block_index, executed_at, executed_block_index,
	retry_count, latest_rescheduled_at, latest_rescheduled_block_index,
	created_at`

func scanSwap(row rowScanner) (*model.Swap, error) {
	var s model.Swap
	var nativeID int64
	err := row.Scan(
		&s.ID, &nativeID, &s.SwapRequestID, &s.Kind,
		&s.InputAmount, &s.IntermediateAmount, &s.OutputAmount,
		&s.ScheduledAt, &s.ScheduledBlockIndex, &s.ExecutedAt, &s.ExecutedBlockIndex,
		&s.RetryCount, &s.LatestRescheduledAt, &s.LatestRescheduledIndex,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.NativeID = uint64(nativeID)
	return &s, nil
}

func (r *SwapRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Swap) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO swaps (
			native_id, swap_request_id, kind, input_amount,
			scheduled_at, scheduled_block_index
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (native_id) DO NOTHING
		RETURNING id
	`, int64(s.NativeID), s.SwapRequestID, s.Kind, s.InputAmount,
		s.ScheduledAt, s.ScheduledBlockIndex,
	).Scan(&id)
	if err == sql.ErrNoRows {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM swaps WHERE native_id = $1`, int64(s.NativeID),
		).Scan(&id)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("create swap: %w", err)
	}
	return id, nil
}

func (r *SwapRepo) GetByNativeIDTx(ctx context.Context, tx *sql.Tx, nativeID uint64) (*model.Swap, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT`+swapColumns+` FROM swaps WHERE native_id = $1`, int64(nativeID))
	s, err := scanSwap(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swap: %w", err)
	}
	return s, nil
}

func (r *SwapRepo) ExecuteTx(ctx context.Context, tx *sql.Tx, nativeID uint64, exec store.ExecutedSwap) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE swaps SET
			input_amount = $2,
			intermediate_amount = $3,
			output_amount = $4,
			executed_at = COALESCE(executed_at, $5),
			executed_block_index = COALESCE(executed_block_index, $6)
		WHERE native_id = $1
	`, int64(nativeID), exec.InputAmount, exec.IntermediateAmount, exec.OutputAmount,
		exec.At, exec.BlockIndex)
	if err != nil {
		return fmt.Errorf("execute swap: %w", err)
	}
	return nil
}

func (r *SwapRepo) RescheduleTx(ctx context.Context, tx *sql.Tx, nativeID uint64, at time.Time, blockIndex string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE swaps SET
			retry_count = retry_count + 1,
			latest_rescheduled_at = $2,
			latest_rescheduled_block_index = $3
		WHERE native_id = $1
	`, int64(nativeID), at, blockIndex)
	if err != nil {
		return fmt.Errorf("reschedule swap: %w", err)
	}
	return nil
}

func (r *SwapRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.Swap, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+swapColumns+`
		FROM swaps
		WHERE swap_request_id = $1
		ORDER BY native_id DESC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list swaps: %w", err)
	}
	defer rows.Close()

	var out []model.Swap
	for rows.Next() {
		s, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swap: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
