package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/swapstream/swap-indexer/internal/domain/model"
)

// Tracker reads the keys written by the out-of-band deposit/broadcast
// watcher. The watcher observes mempools and confirmed blocks ahead of
// witnessing, so these reads let callers surface deposits and outbound
// transactions before the corresponding events arrive.
type Tracker struct {
	client *redis.Client
}

func NewTracker(url string) (*Tracker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Tracker{client: client}, nil
}

func (t *Tracker) Close() error {
	return t.client.Close()
}

// PendingDeposit is a deposit the watcher has seen but witnessing has not
// yet finalised.
type PendingDeposit struct {
	Amount        string   `json:"amount"`
	TxRefs        []string `json:"tx_refs"`
	Confirmations int      `json:"deposit_chain_block_confirmations"`
}

// PendingDeposits returns watcher-tracked deposits for a deposit address.
// A missing key means no pending deposits, not an error.
func (t *Tracker) PendingDeposits(ctx context.Context, chain model.Chain, asset model.Asset, address string) ([]PendingDeposit, error) {
	key := fmt.Sprintf("deposit:%s:%s", chain, address)
	raw, err := t.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read pending deposits: %w", err)
	}

	var out []PendingDeposit
	for _, item := range raw {
		var entry struct {
			Asset   model.Asset    `json:"asset"`
			Deposit PendingDeposit `json:"deposit"`
		}
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode pending deposit: %w", err)
		}
		if entry.Asset != asset {
			continue
		}
		out = append(out, entry.Deposit)
	}
	return out, nil
}

// PendingBroadcast is an outbound transaction the watcher has seen on the
// destination chain before the success event was witnessed.
type PendingBroadcast struct {
	TxRef string `json:"tx_ref"`
}

// PendingBroadcast returns the watcher-tracked outbound transaction for a
// broadcast, or nil when the watcher has not seen one.
func (t *Tracker) PendingBroadcast(ctx context.Context, chain model.Chain, nativeID uint64) (*PendingBroadcast, error) {
	key := fmt.Sprintf("broadcast:%s:%d", chain, nativeID)
	raw, err := t.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pending broadcast: %w", err)
	}

	var b PendingBroadcast
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("decode pending broadcast: %w", err)
	}
	return &b, nil
}
