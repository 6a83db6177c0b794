package state

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapstream/swap-indexer/internal/domain/model"
	"github.com/swapstream/swap-indexer/internal/fault"
	"github.com/swapstream/swap-indexer/internal/store"
	"github.com/swapstream/swap-indexer/internal/store/redis"
)

type fakeChannelRepo struct {
	store.ChannelRepository
	channel *model.SwapDepositChannel
}

func (f *fakeChannelRepo) GetSwapChannelByKey(_ context.Context, key model.ChannelKey) (*model.SwapDepositChannel, error) {
	if f.channel != nil && f.channel.IssuedBlock == key.IssuedBlock &&
		f.channel.Chain == key.Chain && f.channel.ChannelID == key.ChannelID {
		return f.channel, nil
	}
	return nil, nil
}

func (f *fakeChannelRepo) GetSwapChannelByID(_ context.Context, id uuid.UUID) (*model.SwapDepositChannel, error) {
	if f.channel != nil && f.channel.ID == id {
		return f.channel, nil
	}
	return nil, nil
}

type fakeRequestRepo struct {
	store.SwapRequestRepository
	request         *model.SwapRequest
	latestByChannel *model.SwapRequest
}

func (f *fakeRequestRepo) GetByNativeID(_ context.Context, nativeID uint64) (*model.SwapRequest, error) {
	if f.request != nil && f.request.NativeID == nativeID {
		return f.request, nil
	}
	return nil, nil
}

func (f *fakeRequestRepo) GetByTransactionRef(_ context.Context, ref string) (*model.SwapRequest, error) {
	if f.request != nil && f.request.DepositTransactionRef != nil && *f.request.DepositTransactionRef == ref {
		return f.request, nil
	}
	return nil, nil
}

func (f *fakeRequestRepo) LatestByChannel(context.Context, uuid.UUID) (*model.SwapRequest, error) {
	return f.latestByChannel, nil
}

type fakeSwapRepo struct {
	store.SwapRepository
	chunks []model.Swap
}

func (f *fakeSwapRepo) ListByRequest(context.Context, uuid.UUID) ([]model.Swap, error) {
	return f.chunks, nil
}

type fakeEgressRepo struct {
	store.EgressRepository
	byID map[uuid.UUID]*model.Egress
}

func (f *fakeEgressRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Egress, error) {
	return f.byID[id], nil
}

type fakeBroadcastRepo struct {
	store.BroadcastRepository
	byID map[uuid.UUID]*model.Broadcast
}

func (f *fakeBroadcastRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Broadcast, error) {
	return f.byID[id], nil
}

type fakeFailedRepo struct {
	store.FailedSwapRepository
	byChannel []model.FailedSwap
}

func (f *fakeFailedRepo) ListByChannel(context.Context, uuid.UUID) ([]model.FailedSwap, error) {
	return f.byChannel, nil
}

type fakeIgnoredRepo struct {
	store.IgnoredEgressRepository
	byRequest []model.IgnoredEgress
}

func (f *fakeIgnoredRepo) ListByRequest(context.Context, uuid.UUID) ([]model.IgnoredEgress, error) {
	return f.byRequest, nil
}

type fakeFeeRepo struct {
	store.FeeRepository
	byRequest []model.Fee
}

func (f *fakeFeeRepo) ListByRequest(context.Context, uuid.UUID) ([]model.Fee, error) {
	return f.byRequest, nil
}

type fakeTracker struct {
	deposits  []redis.PendingDeposit
	broadcast *redis.PendingBroadcast
	err       error
}

func (f *fakeTracker) PendingDeposits(context.Context, model.Chain, model.Asset, string) ([]redis.PendingDeposit, error) {
	return f.deposits, f.err
}

func (f *fakeTracker) PendingBroadcast(context.Context, model.Chain, uint64) (*redis.PendingBroadcast, error) {
	return f.broadcast, f.err
}

type resolveEnv struct {
	service    *Service
	channels   *fakeChannelRepo
	requests   *fakeRequestRepo
	swaps      *fakeSwapRepo
	egresses   *fakeEgressRepo
	broadcasts *fakeBroadcastRepo
	failed     *fakeFailedRepo
	tracker    *fakeTracker
}

func newResolveEnv(t *testing.T) *resolveEnv {
	t.Helper()
	e := &resolveEnv{
		channels:   &fakeChannelRepo{},
		requests:   &fakeRequestRepo{},
		swaps:      &fakeSwapRepo{},
		egresses:   &fakeEgressRepo{byID: map[uuid.UUID]*model.Egress{}},
		broadcasts: &fakeBroadcastRepo{byID: map[uuid.UUID]*model.Broadcast{}},
		failed:     &fakeFailedRepo{},
		tracker:    &fakeTracker{},
	}
	resolver := NewResolver(Stores{
		Channels:   e.channels,
		Requests:   e.requests,
		Swaps:      e.swaps,
		Egresses:   e.egresses,
		Broadcasts: e.broadcasts,
		Failed:     e.failed,
		Ignored:    &fakeIgnoredRepo{},
		Fees:       &fakeFeeRepo{},
	}, e.tracker, slog.Default())
	e.service = NewService(resolver)
	return e
}

func testChannel() *model.SwapDepositChannel {
	return &model.SwapDepositChannel{
		ID:             uuid.New(),
		IssuedBlock:    1234,
		Chain:          model.ChainEthereum,
		ChannelID:      99,
		SrcAsset:       model.AssetEth,
		DestAsset:      model.AssetDot,
		DestAddress:    "14rE9MWZ6wXM7sQ4cX6VfbUoMZAp5N6SoxFjNJNJcEChhwCp",
		DepositAddress: "0x1111111111111111111111111111111111111111",
	}
}

func TestStatus_ChannelKeyWaiting(t *testing.T) {
	e := newResolveEnv(t)
	e.channels.channel = testChannel()

	st, err := e.service.Status(context.Background(), "1234-Ethereum-99")
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, st.State())
	require.NotNil(t, st.ChannelKey)
	assert.Equal(t, "1234-Ethereum-99", *st.ChannelKey)
}

func TestStatus_ChannelKeyWithWatcherDeposit(t *testing.T) {
	e := newResolveEnv(t)
	e.channels.channel = testChannel()
	e.tracker.deposits = []redis.PendingDeposit{{Amount: "2000000000000000000", Confirmations: 1}}

	st, err := e.service.Status(context.Background(), "1234-Ethereum-99")
	require.NoError(t, err)
	assert.Equal(t, StateReceiving, st.State())
	assert.Nil(t, st.SwapRequestID)
}

func TestStatus_NativeIDJoinsChannel(t *testing.T) {
	e := newResolveEnv(t)
	channel := testChannel()
	e.channels.channel = channel

	req := baseRequest()
	req.ID = uuid.New()
	req.SwapDepositChannelID = &channel.ID
	req.DepositFinalisedAt = timePtr(t1)
	e.requests.request = req

	st, err := e.service.Status(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, StateReceiving, st.State())
	require.NotNil(t, st.ChannelKey)
	assert.Equal(t, "1234-Ethereum-99", *st.ChannelKey)
	require.NotNil(t, st.SwapRequestID)
	assert.Equal(t, uint64(77), *st.SwapRequestID)
}

func TestStatus_TransactionRefFallback(t *testing.T) {
	e := newResolveEnv(t)
	req := baseRequest()
	req.ID = uuid.New()
	req.DepositTransactionRef = strPtr("0xabc123")
	req.DepositFinalisedAt = timePtr(t1)
	e.requests.request = req

	st, err := e.service.Status(context.Background(), "0xabc123")
	require.NoError(t, err)
	assert.Equal(t, StateReceiving, st.State())
}

func TestStatus_UnknownIdentifierIsNotFound(t *testing.T) {
	e := newResolveEnv(t)

	_, err := e.service.Status(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, fault.IsNotFound(err))
}

func TestStatus_TrackerUpgradesSendingToSent(t *testing.T) {
	e := newResolveEnv(t)

	egressID, broadcastID := uuid.New(), uuid.New()
	req := baseRequest()
	req.ID = uuid.New()
	req.DepositFinalisedAt = timePtr(t1)
	req.SwapEgressID = &egressID
	e.requests.request = req
	e.swaps.chunks = []model.Swap{executedChunk(1, "100", "95")}

	e.egresses.byID[egressID] = &model.Egress{
		ID:          egressID,
		Chain:       model.ChainPolkadot,
		NativeID:    12,
		Kind:        model.EgressSwap,
		Asset:       model.AssetDot,
		Amount:      "95",
		BroadcastID: &broadcastID,
		ScheduledAt: t2,
	}
	e.broadcasts.byID[broadcastID] = &model.Broadcast{
		ID:          broadcastID,
		Chain:       model.ChainPolkadot,
		NativeID:    40,
		RequestedAt: t2,
	}
	e.tracker.broadcast = &redis.PendingBroadcast{TxRef: "555-3"}

	st, err := e.service.Status(context.Background(), "77")
	require.NoError(t, err)
	require.IsType(t, Sent{}, st.Detail)
	d := st.Detail.(Sent)
	require.NotNil(t, d.SwapEgress)
	require.NotNil(t, d.SwapEgress.TransactionRef)
	assert.Equal(t, "555-3", *d.SwapEgress.TransactionRef)
}

func TestStatus_TrackerFailureDegradesToPersistedView(t *testing.T) {
	e := newResolveEnv(t)

	egressID, broadcastID := uuid.New(), uuid.New()
	req := baseRequest()
	req.ID = uuid.New()
	req.DepositFinalisedAt = timePtr(t1)
	req.SwapEgressID = &egressID
	e.requests.request = req
	e.swaps.chunks = []model.Swap{executedChunk(1, "100", "95")}

	e.egresses.byID[egressID] = &model.Egress{
		ID:          egressID,
		Chain:       model.ChainPolkadot,
		NativeID:    12,
		Kind:        model.EgressSwap,
		Asset:       model.AssetDot,
		Amount:      "95",
		BroadcastID: &broadcastID,
		ScheduledAt: t2,
	}
	e.broadcasts.byID[broadcastID] = &model.Broadcast{
		ID:          broadcastID,
		Chain:       model.ChainPolkadot,
		NativeID:    40,
		RequestedAt: t2,
	}
	e.tracker.err = errors.New("redis: connection refused")

	st, err := e.service.Status(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, StateSending, st.State())
}
