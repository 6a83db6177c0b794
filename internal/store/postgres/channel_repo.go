package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/swapstream/swap-indexer/internal/domain/model"
)

type ChannelRepo struct {
	db *DB
}

func NewChannelRepo(db *DB) *ChannelRepo {
	return &ChannelRepo{db: db}
}

func (r *ChannelRepo) UpsertDepositChannelTx(ctx context.Context, tx *sql.Tx, c *model.DepositChannel) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO deposit_channels (chain, deposit_address, issued_block, is_swapping)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chain, deposit_address, issued_block) DO UPDATE SET
			is_swapping = deposit_channels.is_swapping OR EXCLUDED.is_swapping
		RETURNING id
	`, c.Chain, c.DepositAddress, c.IssuedBlock, c.IsSwapping).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert deposit channel: %w", err)
	}
	return id, nil
}

func (r *ChannelRepo) UpsertSwapDepositChannelTx(ctx context.Context, tx *sql.Tx, c *model.SwapDepositChannel) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO swap_deposit_channels (
			issued_block, chain, channel_id, deposit_address,
			src_asset, dest_asset, dest_address,
			total_broker_commission_bps, max_boost_fee_bps, channel_opening_fee,
			expiry_block, estimated_expiry_at,
			dca_number_of_chunks, dca_chunk_interval,
			fok_min_price_x128, fok_refund_address, fok_retry_duration,
			opened_at, opened_block_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (issued_block, chain, channel_id) DO UPDATE SET
			dest_address = EXCLUDED.dest_address,
			total_broker_commission_bps = EXCLUDED.total_broker_commission_bps,
			max_boost_fee_bps = EXCLUDED.max_boost_fee_bps,
			estimated_expiry_at = EXCLUDED.estimated_expiry_at
		RETURNING id
	`, c.IssuedBlock, c.Chain, int64(c.ChannelID), c.DepositAddress,
		c.SrcAsset, c.DestAsset, c.DestAddress,
		c.TotalBrokerCommissionBps, c.MaxBoostFeeBps, c.ChannelOpeningFee,
		c.ExpiryBlock, c.EstimatedExpiryAt,
		c.DcaNumberOfChunks, c.DcaChunkInterval,
		c.FokMinPriceX128, c.FokRefundAddress, c.FokRetryDuration,
		c.OpenedAt, c.OpenedBlockIndex,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert swap deposit channel: %w", err)
	}

	// Replace the beneficiary list so replays stay idempotent.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM channel_beneficiaries WHERE swap_deposit_channel_id = $1`, id,
	); err != nil {
		return uuid.Nil, fmt.Errorf("clear channel beneficiaries: %w", err)
	}
	for _, b := range c.Beneficiaries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO channel_beneficiaries (swap_deposit_channel_id, account, type, commission_bps)
			VALUES ($1, $2, $3, $4)
		`, id, b.Account, b.Type, b.CommissionBps); err != nil {
			return uuid.Nil, fmt.Errorf("insert channel beneficiary: %w", err)
		}
	}
	return id, nil
}

func (r *ChannelRepo) GetDepositChannelTx(ctx context.Context, tx *sql.Tx, chain model.Chain, depositAddress string) (*model.DepositChannel, error) {
	var c model.DepositChannel
	err := tx.QueryRowContext(ctx, `
		SELECT id, chain, deposit_address, issued_block, is_swapping, created_at
		FROM deposit_channels
		WHERE chain = $1 AND deposit_address = $2
		ORDER BY issued_block DESC
		LIMIT 1
	`, chain, depositAddress).Scan(
		&c.ID, &c.Chain, &c.DepositAddress, &c.IssuedBlock, &c.IsSwapping, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deposit channel: %w", err)
	}
	return &c, nil
}

const swapChannelColumns = `
	id, issued_block, chain, channel_id, deposit_address,
	src_asset, dest_asset, dest_address,
	total_broker_commission_bps, max_boost_fee_bps, channel_opening_fee,
	expiry_block, estimated_expiry_at,
	dca_number_of_chunks, dca_chunk_interval,
	fok_min_price_x128, fok_refund_address, fok_retry_duration,
	opened_at, opened_block_index, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSwapChannel(row rowScanner) (*model.SwapDepositChannel, error) {
	var c model.SwapDepositChannel
	var channelID int64
	err := row.Scan(
		&c.ID, &c.IssuedBlock, &c.Chain, &channelID, &c.DepositAddress,
		&c.SrcAsset, &c.DestAsset, &c.DestAddress,
		&c.TotalBrokerCommissionBps, &c.MaxBoostFeeBps, &c.ChannelOpeningFee,
		&c.ExpiryBlock, &c.EstimatedExpiryAt,
		&c.DcaNumberOfChunks, &c.DcaChunkInterval,
		&c.FokMinPriceX128, &c.FokRefundAddress, &c.FokRetryDuration,
		&c.OpenedAt, &c.OpenedBlockIndex, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ChannelID = uint64(channelID)
	return &c, nil
}

func (r *ChannelRepo) FindLatestSwapChannelTx(ctx context.Context, tx *sql.Tx, chain model.Chain, channelID uint64, depositAddress string) (*model.SwapDepositChannel, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT`+swapChannelColumns+`
		FROM swap_deposit_channels
		WHERE chain = $1 AND channel_id = $2 AND deposit_address = $3
		ORDER BY issued_block DESC
		LIMIT 1
	`, chain, int64(channelID), depositAddress)
	c, err := scanSwapChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find swap channel: %w", err)
	}
	return c, nil
}

func (r *ChannelRepo) FindLatestSwapChannelByAddressTx(ctx context.Context, tx *sql.Tx, chain model.Chain, depositAddress string) (*model.SwapDepositChannel, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT`+swapChannelColumns+`
		FROM swap_deposit_channels
		WHERE chain = $1 AND deposit_address = $2
		ORDER BY issued_block DESC
		LIMIT 1
	`, chain, depositAddress)
	c, err := scanSwapChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find swap channel by address: %w", err)
	}
	return c, nil
}

func (r *ChannelRepo) GetSwapChannelByKey(ctx context.Context, key model.ChannelKey) (*model.SwapDepositChannel, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `
		SELECT`+swapChannelColumns+`
		FROM swap_deposit_channels
		WHERE issued_block = $1 AND chain = $2 AND channel_id = $3
	`, key.IssuedBlock, key.Chain, int64(key.ChannelID))
	c, err := scanSwapChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swap channel by key: %w", err)
	}
	if err := r.loadBeneficiaries(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ChannelRepo) GetSwapChannelByID(ctx context.Context, id uuid.UUID) (*model.SwapDepositChannel, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	row := r.db.QueryRowContext(ctx, `
		SELECT`+swapChannelColumns+`
		FROM swap_deposit_channels
		WHERE id = $1
	`, id)
	c, err := scanSwapChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swap channel: %w", err)
	}
	if err := r.loadBeneficiaries(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ChannelRepo) loadBeneficiaries(ctx context.Context, c *model.SwapDepositChannel) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, swap_deposit_channel_id, account, type, commission_bps
		FROM channel_beneficiaries
		WHERE swap_deposit_channel_id = $1
		ORDER BY type, account
	`, c.ID)
	if err != nil {
		return fmt.Errorf("load beneficiaries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b model.Beneficiary
		if err := rows.Scan(&b.ID, &b.SwapDepositChannelID, &b.Account, &b.Type, &b.CommissionBps); err != nil {
			return fmt.Errorf("scan beneficiary: %w", err)
		}
		c.Beneficiaries = append(c.Beneficiaries, b)
	}
	return rows.Err()
}
