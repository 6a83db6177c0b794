// Package processor applies normalized events to the entity store. Each
// event is handled inside its own database transaction; handlers are
// idempotent so a replayed event converges on the same rows.
package processor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/swapstream/swap-indexer/internal/domain/event"
	"github.com/swapstream/swap-indexer/internal/indexerclient"
	"github.com/swapstream/swap-indexer/internal/metrics"
	"github.com/swapstream/swap-indexer/internal/store"
)

// CallReader fetches the protocol call that emitted an event, for the
// handlers whose event payload alone is not sufficient.
type CallReader interface {
	GetCall(ctx context.Context, id string) (*indexerclient.Call, error)
}

// Stores bundles the repositories the handlers write through.
type Stores struct {
	Channels   store.ChannelRepository
	Requests   store.SwapRequestRepository
	Swaps      store.SwapRepository
	Egresses   store.EgressRepository
	Broadcasts store.BroadcastRepository
	Failed     store.FailedSwapRepository
	Ignored    store.IgnoredEgressRepository
	ChainErrs  store.StateChainErrorRepository
	Pending    store.PendingTxRefRepository
	Tracking   store.ChainTrackingRepository
	Fees       store.FeeRepository
}

type Processor struct {
	db     store.TxBeginner
	stores Stores
	calls  CallReader
	logger *slog.Logger
}

func New(db store.TxBeginner, stores Stores, calls CallReader, logger *slog.Logger) *Processor {
	return &Processor{
		db:     db,
		stores: stores,
		calls:  calls,
		logger: logger.With("component", "processor"),
	}
}

// Apply projects one normalized event into the store. The write happens in
// a single transaction so a handler failure leaves no partial state.
func (p *Processor) Apply(ctx context.Context, env event.Envelope, canon event.Canonical) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := p.apply(ctx, tx, env, canon); err != nil {
		metrics.EventsProcessed.WithLabelValues(env.Name, "error").Inc()
		return fmt.Errorf("%s at %s: %w", env.Name, env.BlockIndex(), err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", env.Name, err)
	}
	metrics.EventsProcessed.WithLabelValues(env.Name, "ok").Inc()
	return nil
}

func (p *Processor) apply(ctx context.Context, tx *sql.Tx, env event.Envelope, canon event.Canonical) error {
	switch e := canon.(type) {
	case event.SwapDepositAddressReady:
		return p.handleChannelReady(ctx, tx, env, e)
	case event.SwapRequested:
		return p.handleSwapRequested(ctx, tx, env, e)
	case event.SwapScheduled:
		return p.handleSwapScheduled(ctx, tx, env, e)
	case event.SwapRescheduled:
		return p.handleSwapRescheduled(ctx, tx, env, e)
	case event.SwapExecuted:
		return p.handleSwapExecuted(ctx, tx, env, e)
	case event.SwapRequestCompleted:
		return p.handleSwapRequestCompleted(ctx, tx, env, e)
	case event.EgressScheduled:
		return p.handleEgressScheduled(ctx, tx, env, e)
	case event.EgressIgnored:
		return p.handleEgressIgnored(ctx, tx, env, e)
	case event.DepositFinalised:
		return p.handleDepositFinalised(ctx, tx, env, e)
	case event.DepositBoosted:
		return p.handleDepositBoosted(ctx, tx, env, e)
	case event.DepositFailed:
		return p.handleDepositFailed(ctx, tx, env, e)
	case event.CcmFailed:
		return p.handleCcmFailed(ctx, tx, env, e)
	case event.TransactionRejectedByBroker:
		return p.handleTransactionRejected(ctx, tx, env, e)
	case event.BatchBroadcastRequested:
		return p.handleBatchBroadcastRequested(ctx, tx, env, e)
	case event.BroadcastSuccess:
		return p.handleBroadcastSuccess(ctx, tx, env, e)
	case event.BroadcastAborted:
		return p.handleBroadcastAborted(ctx, tx, env, e)
	case event.ChainStateUpdated:
		return p.handleChainStateUpdated(ctx, tx, env, e)
	default:
		return fmt.Errorf("no handler for %T", canon)
	}
}
