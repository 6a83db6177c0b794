package state

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/swapstream/swap-indexer/internal/domain/model"
	"github.com/swapstream/swap-indexer/internal/fault"
	"github.com/swapstream/swap-indexer/internal/store"
	"github.com/swapstream/swap-indexer/internal/store/redis"
)

// Tracker is the out-of-band deposit/broadcast watcher read interface.
type Tracker interface {
	PendingDeposits(ctx context.Context, chain model.Chain, asset model.Asset, address string) ([]redis.PendingDeposit, error)
	PendingBroadcast(ctx context.Context, chain model.Chain, nativeID uint64) (*redis.PendingBroadcast, error)
}

// Stores bundles the read paths the resolver joins over.
type Stores struct {
	Channels   store.ChannelRepository
	Requests   store.SwapRequestRepository
	Swaps      store.SwapRepository
	Egresses   store.EgressRepository
	Broadcasts store.BroadcastRepository
	Failed     store.FailedSwapRepository
	Ignored    store.IgnoredEgressRepository
	Fees       store.FeeRepository
}

// Resolver loads the entity graph for a swap identifier. An identifier is a
// channel key, a swap-request native id, or a transaction reference, tried
// in that order until one resolves.
type Resolver struct {
	stores  Stores
	tracker Tracker
	logger  *slog.Logger
}

func NewResolver(stores Stores, tracker Tracker, logger *slog.Logger) *Resolver {
	return &Resolver{
		stores:  stores,
		tracker: tracker,
		logger:  logger.With("component", "state"),
	}
}

// Resolve builds the graph for an identifier, or NotFound when nothing
// matches.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*Graph, error) {
	if key, err := model.ParseChannelKey(identifier); err == nil {
		g, err := r.resolveChannel(ctx, key)
		if g != nil || err != nil {
			return g, err
		}
	}

	if nativeID, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		req, err := r.stores.Requests.GetByNativeID(ctx, nativeID)
		if err != nil {
			return nil, err
		}
		if req != nil {
			return r.graphForRequest(ctx, req, nil)
		}
	}

	req, err := r.stores.Requests.GetByTransactionRef(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if req != nil {
		return r.graphForRequest(ctx, req, nil)
	}

	return nil, fault.NotFound("swap", "%s", identifier)
}

func (r *Resolver) resolveChannel(ctx context.Context, key model.ChannelKey) (*Graph, error) {
	channel, err := r.stores.Channels.GetSwapChannelByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, nil
	}

	req, err := r.stores.Requests.LatestByChannel(ctx, channel.ID)
	if err != nil {
		return nil, err
	}
	if req != nil {
		return r.graphForRequest(ctx, req, channel)
	}

	// Nothing requested yet: the channel is waiting, unless a failure or a
	// mempool-visible deposit says otherwise.
	g := &Graph{Channel: channel}
	g.FailedSwaps, err = r.stores.Failed.ListByChannel(ctx, channel.ID)
	if err != nil {
		return nil, err
	}
	if err := r.attachPendingDeposit(ctx, g, channel); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *Resolver) graphForRequest(ctx context.Context, req *model.SwapRequest, channel *model.SwapDepositChannel) (*Graph, error) {
	g := &Graph{Request: req, Channel: channel}
	var err error

	if g.Channel == nil && req.SwapDepositChannelID != nil {
		g.Channel, err = r.stores.Channels.GetSwapChannelByID(ctx, *req.SwapDepositChannelID)
		if err != nil {
			return nil, err
		}
	}

	g.Chunks, err = r.stores.Swaps.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	g.Ignored, err = r.stores.Ignored.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	g.Fees, err = r.stores.Fees.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if g.Channel != nil {
		g.FailedSwaps, err = r.stores.Failed.ListByChannel(ctx, g.Channel.ID)
		if err != nil {
			return nil, err
		}
	}

	if req.SwapEgressID != nil {
		g.SwapEgress, g.SwapBroadcast, err = r.loadEgress(ctx, *req.SwapEgressID)
		if err != nil {
			return nil, err
		}
	}
	if req.RefundEgressID != nil {
		g.RefundEgress, g.RefundBroadcast, err = r.loadEgress(ctx, *req.RefundEgressID)
		if err != nil {
			return nil, err
		}
	}

	if err := r.attachTracker(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *Resolver) loadEgress(ctx context.Context, id uuid.UUID) (*model.Egress, *model.Broadcast, error) {
	egress, err := r.stores.Egresses.GetByID(ctx, id)
	if err != nil || egress == nil {
		return egress, nil, err
	}
	if egress.BroadcastID == nil {
		return egress, nil, nil
	}
	broadcast, err := r.stores.Broadcasts.GetByID(ctx, *egress.BroadcastID)
	if err != nil {
		return egress, nil, err
	}
	return egress, broadcast, nil
}

// attachTracker augments the graph with watcher observations. Tracker
// failures degrade to the persisted view rather than failing the read.
func (r *Resolver) attachTracker(ctx context.Context, g *Graph) error {
	if r.tracker == nil {
		return nil
	}

	if g.SwapBroadcast != nil && !g.SwapBroadcast.Terminal() {
		pb, err := r.tracker.PendingBroadcast(ctx, g.SwapBroadcast.Chain, g.SwapBroadcast.NativeID)
		if err != nil {
			r.logger.Warn("broadcast tracker lookup failed", "error", err)
		} else if pb != nil {
			g.TrackerTxRef = &pb.TxRef
		}
	}

	if g.Request != nil && g.Request.DepositFinalisedAt == nil && g.Request.DepositBoostedAt == nil && g.Channel != nil {
		return r.attachPendingDeposit(ctx, g, g.Channel)
	}
	return nil
}

func (r *Resolver) attachPendingDeposit(ctx context.Context, g *Graph, channel *model.SwapDepositChannel) error {
	if r.tracker == nil {
		return nil
	}
	deposits, err := r.tracker.PendingDeposits(ctx, channel.Chain, channel.SrcAsset, channel.DepositAddress)
	if err != nil {
		r.logger.Warn("pending deposit lookup failed", "error", err)
		return nil
	}
	if len(deposits) > 0 {
		g.PendingDepositAmount = &deposits[0].Amount
	}
	return nil
}
