// Package txref backfills deposit transaction references for chains where
// the reference is unknown at witnessing time. A single-threaded loop drains
// the pending_tx_refs queue one item per cycle.
package txref

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/swapstream/swap-indexer/internal/domain/model"
	"github.com/swapstream/swap-indexer/internal/fault"
	"github.com/swapstream/swap-indexer/internal/metrics"
	"github.com/swapstream/swap-indexer/internal/store"
)

const defaultInterval = 30 * time.Second

// SignatureLookup resolves the settled transaction signatures of a deposit
// account, oldest first.
type SignatureLookup interface {
	SignaturesForAddress(ctx context.Context, address string) ([]string, error)
}

// Stores bundles the repositories the queue reads and writes.
type Stores struct {
	Pending  store.PendingTxRefRepository
	Requests store.SwapRequestRepository
	Failed   store.FailedSwapRepository
	Channels store.ChannelRepository
}

type Queue struct {
	db       store.TxBeginner
	stores   Stores
	lookup   SignatureLookup
	interval time.Duration
	logger   *slog.Logger

	// sleepFn is swapped out in tests to avoid real waiting.
	sleepFn func(ctx context.Context, d time.Duration) error
}

func NewQueue(db store.TxBeginner, stores Stores, lookup SignatureLookup, interval time.Duration, logger *slog.Logger) *Queue {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Queue{
		db:       db,
		stores:   stores,
		lookup:   lookup,
		interval: interval,
		logger:   logger.With("component", "txref"),
		sleepFn:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run polls until the context is cancelled or a non-transient error occurs.
// Transient failures leave the work item pending for the next cycle; any
// other failure stops the loop for the operator to investigate.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info("tx-ref reconciliation started", "interval", q.interval)

	for {
		if err := q.sleepFn(ctx, q.interval); err != nil {
			q.logger.Info("tx-ref reconciliation stopping")
			return err
		}

		if err := q.Cycle(ctx); err != nil {
			if fault.IsTransient(err) {
				metrics.ReconcileTransientErrors.Inc()
				q.logger.Warn("transient reconciliation failure, will retry", "error", err)
				continue
			}
			q.logger.Error("reconciliation failed, stopping loop", "error", err)
			return err
		}
	}
}

// Cycle processes at most one pending work item.
func (q *Queue) Cycle(ctx context.Context) error {
	item, err := q.stores.Pending.Next(ctx)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}

	signatures, err := q.lookup.SignaturesForAddress(ctx, item.Address)
	if err != nil {
		return err
	}
	if len(signatures) == 0 {
		// Nothing settled yet; the item stays queued.
		return nil
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var done bool
	switch {
	case item.SwapDepositChannelID != nil:
		done, err = q.resolveChannel(ctx, tx, item, signatures)
	case item.FailedVaultSwapID != nil:
		done, err = q.resolveVaultSwap(ctx, tx, item, signatures)
	default:
		return fault.Invariantf("pending tx ref %s has no target", item.ID)
	}
	if err != nil {
		return err
	}

	if done {
		if err := q.stores.Pending.DeleteTx(ctx, tx, item.ID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if done {
		metrics.ReconcileItemsResolved.Inc()
		q.logger.Info("tx-ref work item resolved", "id", item.ID, "address", item.Address)
	}
	return nil
}

// resolveChannel attaches references to everything witnessed under the
// channel: finalised swap requests and recorded failures, walked in
// reverse-chronological order. Signatures are consumed front-to-back as
// deposits settle, so each target takes the oldest remaining one.
func (q *Queue) resolveChannel(ctx context.Context, tx *sql.Tx, item *model.PendingTxRef, signatures []string) (bool, error) {
	requests, err := q.stores.Requests.ListFinalisedByChannel(ctx, *item.SwapDepositChannelID)
	if err != nil {
		return false, err
	}
	failures, err := q.stores.Failed.ListByChannel(ctx, *item.SwapDepositChannelID)
	if err != nil {
		return false, err
	}

	type target struct {
		at      time.Time
		request *model.SwapRequest
		failed  *model.FailedSwap
	}
	var targets []target
	for i := range requests {
		r := &requests[i]
		if r.DepositTransactionRef != nil {
			continue
		}
		targets = append(targets, target{at: *r.DepositFinalisedAt, request: r})
	}
	for i := range failures {
		f := &failures[i]
		if f.DepositTransactionRef != nil {
			continue
		}
		targets = append(targets, target{at: f.FailedAt, failed: f})
	}
	if len(targets) == 0 {
		return true, nil
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].at.After(targets[j].at) })

	resolvedAll := true
	for _, t := range targets {
		if len(signatures) == 0 {
			resolvedAll = false
			break
		}
		ref := signatures[0]
		signatures = signatures[1:]

		if t.request != nil {
			err = q.stores.Requests.UpdateDepositTxRefTx(ctx, tx, t.request.ID, ref)
		} else {
			err = q.stores.Failed.UpdateDepositTxRefTx(ctx, tx, t.failed.ID, ref)
		}
		if err != nil {
			return false, err
		}
	}
	return resolvedAll, nil
}

// resolveVaultSwap attaches the single settled signature of a failed vault
// swap.
func (q *Queue) resolveVaultSwap(ctx context.Context, tx *sql.Tx, item *model.PendingTxRef, signatures []string) (bool, error) {
	failed, err := q.stores.Failed.GetByID(ctx, *item.FailedVaultSwapID)
	if err != nil {
		return false, err
	}
	if failed == nil {
		return false, fault.NotFound("failed vault swap", "%s", *item.FailedVaultSwapID)
	}
	if failed.DepositTransactionRef != nil {
		return true, nil
	}
	if err := q.stores.Failed.UpdateDepositTxRefTx(ctx, tx, failed.ID, signatures[0]); err != nil {
		return false, err
	}
	return true, nil
}
