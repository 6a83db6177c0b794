package processor

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapstream/swap-indexer/internal/domain/event"
	"github.com/swapstream/swap-indexer/internal/domain/model"
	"github.com/swapstream/swap-indexer/internal/fault"
	"github.com/swapstream/swap-indexer/internal/indexerclient"
)

type testEnv struct {
	proc       *Processor
	channels   *fakeChannels
	requests   *fakeRequests
	swaps      *fakeSwaps
	egresses   *fakeEgresses
	broadcasts *fakeBroadcasts
	failed     *fakeFailed
	ignored    *fakeIgnored
	chainErrs  *fakeChainErrs
	pending    *fakePending
	tracking   *fakeTracking
	fees       *fakeFees
	calls      *fakeCalls
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		channels:   &fakeChannels{},
		requests:   newFakeRequests(),
		swaps:      newFakeSwaps(),
		egresses:   &fakeEgresses{},
		broadcasts: &fakeBroadcasts{},
		failed:     &fakeFailed{},
		ignored:    &fakeIgnored{},
		chainErrs:  &fakeChainErrs{},
		pending:    &fakePending{},
		tracking:   &fakeTracking{},
		fees:       &fakeFees{},
		calls:      &fakeCalls{},
	}
	e.proc = New(openFakeDB(t), Stores{
		Channels:   e.channels,
		Requests:   e.requests,
		Swaps:      e.swaps,
		Egresses:   e.egresses,
		Broadcasts: e.broadcasts,
		Failed:     e.failed,
		Ignored:    e.ignored,
		ChainErrs:  e.chainErrs,
		Pending:    e.pending,
		Tracking:   e.tracking,
		Fees:       e.fees,
	}, e.calls, slog.Default())
	return e
}

var blockTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func makeEnv(name string, height int64, index int) event.Envelope {
	return event.Envelope{
		Name: name,
		Block: event.Block{
			Height:      height,
			Hash:        "0xabc",
			Timestamp:   blockTime,
			SpecVersion: 180,
		},
		IndexInBlock: index,
	}
}

func TestApply_ChannelReady(t *testing.T) {
	e := newTestEnv(t)
	e.tracking.tracking = &model.ChainTracking{
		Chain:          model.ChainEthereum,
		ExternalHeight: 20123000,
	}

	ev := event.SwapDepositAddressReady{
		Chain:                  model.ChainEthereum,
		ChannelID:              12,
		DepositAddress:         "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		SrcAsset:               model.AssetEth,
		DestAsset:              model.AssetDot,
		DestAddress:            "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5",
		Broker:                 "broker-1",
		BrokerCommissionBps:    15,
		Affiliates:             []event.BeneficiaryShare{{Account: "aff-1", Type: model.BeneficiaryAffiliate, CommissionBps: 5}},
		ChannelOpeningFee:      "100",
		SourceChainExpiryBlock: 20123600,
	}

	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5000, 3), ev))

	require.Len(t, e.channels.upsertedDeposit, 1)
	dc := e.channels.upsertedDeposit[0]
	assert.True(t, dc.IsSwapping)
	assert.Equal(t, int64(5000), dc.IssuedBlock)

	require.Len(t, e.channels.upsertedSwap, 1)
	ch := e.channels.upsertedSwap[0]
	assert.Equal(t, uint64(12), ch.ChannelID)
	assert.Equal(t, 20, ch.TotalBrokerCommissionBps)
	require.Len(t, ch.Beneficiaries, 2)
	assert.Equal(t, model.BeneficiarySubmitter, ch.Beneficiaries[0].Type)
	assert.Equal(t, model.BeneficiaryAffiliate, ch.Beneficiaries[1].Type)
	assert.Equal(t, "5000-3", ch.OpenedBlockIndex)

	// 600 remaining blocks at 12s each.
	require.NotNil(t, ch.EstimatedExpiryAt)
	assert.Equal(t, blockTime.Add(600*12*time.Second), *ch.EstimatedExpiryAt)
}

func TestApply_ChannelReady_DropsZeroCommission(t *testing.T) {
	e := newTestEnv(t)
	ev := event.SwapDepositAddressReady{
		Chain:          model.ChainEthereum,
		ChannelID:      12,
		DepositAddress: "0xdead",
		SrcAsset:       model.AssetEth,
		DestAsset:      model.AssetDot,
		Affiliates:     []event.BeneficiaryShare{{Account: "aff-1", CommissionBps: 0}},
	}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 1, 0), ev))

	require.Len(t, e.channels.upsertedSwap, 1)
	assert.Empty(t, e.channels.upsertedSwap[0].Beneficiaries)
	assert.Equal(t, 0, e.channels.upsertedSwap[0].TotalBrokerCommissionBps)
	assert.Nil(t, e.channels.upsertedSwap[0].EstimatedExpiryAt)
}

func TestApply_SwapRequested_ChannelOrigin(t *testing.T) {
	e := newTestEnv(t)
	e.channels.swapChannel = &model.SwapDepositChannel{
		ID:             uuid.New(),
		Chain:          model.ChainEthereum,
		ChannelID:      12,
		MaxBoostFeeBps: 30,
	}

	ev := event.SwapRequested{
		RequestID:   4215,
		SrcAsset:    model.AssetEth,
		DestAsset:   model.AssetDot,
		InputAmount: "1000",
		Kind:        model.RequestRegular,
		Origin: event.Origin{
			Kind:           model.OriginDepositChannel,
			ChannelID:      12,
			DepositAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
			DepositHeight:  20123456,
		},
	}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5001, 0), ev))

	require.Len(t, e.requests.created, 1)
	req := e.requests.created[0]
	require.NotNil(t, req.SwapDepositChannelID)
	assert.Equal(t, e.channels.swapChannel.ID, *req.SwapDepositChannelID)
	assert.Equal(t, 30, req.MaxBoostFeeBps)

	// Ethereum references are derivable at witnessing; nothing to reconcile.
	assert.Empty(t, e.pending.forChannel)
}

func TestApply_SwapRequested_UnknownChannel(t *testing.T) {
	e := newTestEnv(t)
	ev := event.SwapRequested{
		RequestID: 4215,
		SrcAsset:  model.AssetEth,
		DestAsset: model.AssetDot,
		Origin:    event.Origin{Kind: model.OriginDepositChannel, ChannelID: 99},
	}
	err := e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5001, 0), ev)
	require.Error(t, err)
	assert.True(t, fault.IsNotFound(err))
	assert.Empty(t, e.requests.created)
}

func TestApply_SwapRequested_SolanaChannelQueuesReconciliation(t *testing.T) {
	e := newTestEnv(t)
	e.channels.swapChannel = &model.SwapDepositChannel{
		ID:             uuid.New(),
		Chain:          model.ChainSolana,
		ChannelID:      7,
		DepositAddress: "11111111111111111111111111111111",
	}

	ev := event.SwapRequested{
		RequestID:   9,
		SrcAsset:    model.AssetSol,
		DestAsset:   model.AssetEth,
		InputAmount: "5000000000",
		Origin:      event.Origin{Kind: model.OriginDepositChannel, ChannelID: 7},
	}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5002, 0), ev))

	require.Len(t, e.pending.forChannel, 1)
	assert.Equal(t, e.channels.swapChannel.ID, e.pending.forChannel[0].id)
	assert.Equal(t, model.ChainSolana, e.pending.forChannel[0].chain)
	assert.Equal(t, "11111111111111111111111111111111", e.pending.forChannel[0].address)
}

func TestApply_SwapRequested_VaultOrigin(t *testing.T) {
	e := newTestEnv(t)
	ref := "0xfeed"
	ev := event.SwapRequested{
		RequestID: 10,
		SrcAsset:  model.AssetEth,
		DestAsset: model.AssetDot,
		Origin:    event.Origin{Kind: model.OriginVault, TxRef: &ref},
	}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5003, 0), ev))

	require.Len(t, e.requests.created, 1)
	require.NotNil(t, e.requests.created[0].DepositTransactionRef)
	assert.Equal(t, ref, *e.requests.created[0].DepositTransactionRef)
	assert.Nil(t, e.requests.created[0].SwapDepositChannelID)
}

func TestApply_SwapExecuted_FeeRows(t *testing.T) {
	e := newTestEnv(t)
	reqID := uuid.New()
	e.swaps = newFakeSwaps(&model.Swap{ID: uuid.New(), NativeID: 31, SwapRequestID: reqID})
	e.proc.stores.Swaps = e.swaps

	ev := event.SwapExecuted{
		SwapID:       31,
		RequestID:    4215,
		InputAmount:  "1000",
		OutputAmount: "950",
		NetworkFee:   "10",
		BrokerFee:    "0",
	}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5004, 1), ev))

	require.Len(t, e.swaps.executed, 1)
	assert.Equal(t, "950", e.swaps.executed[0].OutputAmount)

	// Zero broker fee produces no row; network fee is levied in the pivot asset.
	require.Len(t, e.fees.added, 1)
	assert.Equal(t, model.FeeNetwork, e.fees.added[0].Type)
	assert.Equal(t, model.AssetUsdc, e.fees.added[0].Asset)
	assert.Equal(t, reqID, e.fees.added[0].SwapRequestID)
	require.NotNil(t, e.fees.added[0].SwapID)
}

func TestApply_DepositFinalised(t *testing.T) {
	t.Run("no action is skipped", func(t *testing.T) {
		e := newTestEnv(t)
		ev := event.DepositFinalised{
			Chain:  model.ChainEthereum,
			Asset:  model.AssetEth,
			Amount: "1000",
			Action: event.DepositAction{Kind: event.DepositActionNoAction},
		}
		require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5005, 0), ev))
		assert.Empty(t, e.requests.attached)
		assert.Empty(t, e.fees.added)
	})

	t.Run("swap action without request id violates invariant", func(t *testing.T) {
		e := newTestEnv(t)
		ev := event.DepositFinalised{
			Chain:  model.ChainEthereum,
			Asset:  model.AssetEth,
			Amount: "1000",
			Action: event.DepositAction{Kind: event.DepositActionSwap},
		}
		err := e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5005, 0), ev)
		require.Error(t, err)
		assert.True(t, fault.IsInvariant(err))
	})

	t.Run("unknown request", func(t *testing.T) {
		e := newTestEnv(t)
		id := uint64(4215)
		ev := event.DepositFinalised{
			Chain:  model.ChainEthereum,
			Asset:  model.AssetEth,
			Amount: "1000",
			Action: event.DepositAction{Kind: event.DepositActionSwap, RequestID: &id},
		}
		err := e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5005, 0), ev)
		require.Error(t, err)
		assert.True(t, fault.IsNotFound(err))
	})

	t.Run("attaches deposit and ingress fee", func(t *testing.T) {
		e := newTestEnv(t)
		e.requests = newFakeRequests(&model.SwapRequest{ID: uuid.New(), NativeID: 4215})
		e.proc.stores.Requests = e.requests

		id := uint64(4215)
		ref := "0xdeposit"
		ev := event.DepositFinalised{
			Chain:          model.ChainEthereum,
			Asset:          model.AssetEth,
			Amount:         "1000",
			TxRef:          &ref,
			IngressFee:     "10",
			MaxBoostFeeBps: 30,
			Action:         event.DepositAction{Kind: event.DepositActionSwap, RequestID: &id},
		}
		require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5005, 2), ev))

		require.Len(t, e.requests.attached, 1)
		at := e.requests.attached[0]
		assert.Equal(t, "1000", at.Amount)
		assert.False(t, at.Boosted)
		assert.Equal(t, "5005-2", at.BlockIndex)
		require.NotNil(t, at.MaxBoostFeeBps)
		assert.Equal(t, 30, *at.MaxBoostFeeBps)

		require.Len(t, e.fees.added, 1)
		assert.Equal(t, model.FeeIngress, e.fees.added[0].Type)
		assert.Equal(t, model.AssetEth, e.fees.added[0].Asset)
	})

	t.Run("zero ingress fee adds no row", func(t *testing.T) {
		e := newTestEnv(t)
		e.requests = newFakeRequests(&model.SwapRequest{ID: uuid.New(), NativeID: 4215})
		e.proc.stores.Requests = e.requests

		id := uint64(4215)
		ev := event.DepositFinalised{
			Chain:      model.ChainEthereum,
			Asset:      model.AssetEth,
			Amount:     "1000",
			IngressFee: "0",
			Action:     event.DepositAction{Kind: event.DepositActionSwap, RequestID: &id},
		}
		require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5005, 0), ev))
		assert.Empty(t, e.fees.added)
	})
}

func TestApply_DepositBoosted(t *testing.T) {
	e := newTestEnv(t)
	e.requests = newFakeRequests(&model.SwapRequest{ID: uuid.New(), NativeID: 77})
	e.proc.stores.Requests = e.requests

	id := uint64(77)
	ev := event.DepositBoosted{
		Chain:       model.ChainBitcoin,
		Asset:       model.AssetBtc,
		Amount:      "350000",
		IngressFee:  "50",
		BoostFee:    "175",
		BoostFeeBps: 7,
		Action:      event.DepositAction{Kind: event.DepositActionBoosted, RequestID: &id},
	}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 840000, 1), ev))

	require.Len(t, e.requests.attached, 1)
	at := e.requests.attached[0]
	assert.True(t, at.Boosted)
	require.NotNil(t, at.EffectiveBoostFeeBps)
	assert.Equal(t, 7, *at.EffectiveBoostFeeBps)

	require.Len(t, e.fees.added, 2)
	assert.Equal(t, model.FeeBoost, e.fees.added[0].Type)
	assert.Equal(t, model.FeeIngress, e.fees.added[1].Type)
}

func TestApply_DepositFailed_Channel(t *testing.T) {
	txRef := "0x1234"
	failedEvent := func() event.DepositFailed {
		return event.DepositFailed{
			Chain:       model.ChainEthereum,
			Reason:      "BelowMinimumDeposit",
			BlockHeight: 20123456,
			Details: event.DepositFailedDetails{Channel: &event.DepositFailedChannel{
				DepositAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
				Asset:          model.AssetEth,
				Amount:         "100000000000000",
				TxRef:          &txRef,
			}},
		}
	}

	t.Run("records failure with channel destination", func(t *testing.T) {
		e := newTestEnv(t)
		e.channels.depositChannel = &model.DepositChannel{ID: uuid.New(), IsSwapping: true}
		e.channels.swapChannel = &model.SwapDepositChannel{
			ID:          uuid.New(),
			DestAsset:   model.AssetDot,
			DestAddress: "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5",
		}

		ev := failedEvent()
		require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5006, 0), ev))

		require.Len(t, e.failed.created, 1)
		f := e.failed.created[0]
		assert.Equal(t, "BelowMinimumDeposit", f.Reason)
		assert.Equal(t, model.ChainEthereum, f.SrcChain)
		assert.Equal(t, "100000000000000", f.DepositAmount)
		require.NotNil(t, f.DepositTransactionRef)
		assert.Equal(t, "0x1234", *f.DepositTransactionRef)
		require.NotNil(t, f.SwapDepositChannelID)
		assert.Equal(t, e.channels.swapChannel.ID, *f.SwapDepositChannelID)

		// The deposit never left Ethereum, so the failure's destination chain
		// is Ethereum even though the channel would have swapped to Dot.
		require.NotNil(t, f.DestChain)
		assert.Equal(t, model.ChainEthereum, *f.DestChain)
		require.NotNil(t, f.DestAsset)
		assert.Equal(t, model.AssetDot, *f.DestAsset)

		// The event carried a tx ref, so there is nothing to reconcile.
		assert.Empty(t, e.pending.forChannel)
	})

	t.Run("unknown channel", func(t *testing.T) {
		e := newTestEnv(t)
		ev := failedEvent()
		err := e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5006, 0), ev)
		require.Error(t, err)
		assert.True(t, fault.IsNotFound(err))
	})

	t.Run("non-swapping channel is skipped silently", func(t *testing.T) {
		e := newTestEnv(t)
		e.channels.depositChannel = &model.DepositChannel{ID: uuid.New(), IsSwapping: false}

		ev := failedEvent()
		require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5006, 0), ev))
		assert.Empty(t, e.failed.created)
	})
}

func TestApply_DepositFailed_ChannelSolanaQueuesBackfill(t *testing.T) {
	e := newTestEnv(t)
	depositAddr := "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	e.channels.depositChannel = &model.DepositChannel{ID: uuid.New(), IsSwapping: true}
	e.channels.swapChannel = &model.SwapDepositChannel{
		ID:          uuid.New(),
		DestAsset:   model.AssetEth,
		DestAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	}

	ev := event.DepositFailed{
		Chain:       model.ChainSolana,
		Reason:      "BelowMinimumDeposit",
		BlockHeight: 310000000,
		Details: event.DepositFailedDetails{Channel: &event.DepositFailedChannel{
			DepositAddress: depositAddr,
			Asset:          model.AssetSol,
			Amount:         "5000000000",
		}},
	}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5010, 0), ev))

	require.Len(t, e.failed.created, 1)
	assert.Nil(t, e.failed.created[0].DepositTransactionRef)

	// No signature at witnessing time: the reconciliation queue owns the
	// channel-scoped backfill.
	require.Len(t, e.pending.forChannel, 1)
	assert.Equal(t, e.channels.swapChannel.ID, e.pending.forChannel[0].id)
	assert.Equal(t, model.ChainSolana, e.pending.forChannel[0].chain)
	assert.Equal(t, depositAddr, e.pending.forChannel[0].address)
}

func TestApply_DepositFailed_VaultSolana(t *testing.T) {
	e := newTestEnv(t)
	refAddr := "11111111111111111111111111111111"
	destAsset := model.AssetEth
	ev := event.DepositFailed{
		Chain:       model.ChainSolana,
		Reason:      "TransactionRejectedByBroker",
		BlockHeight: 310000000,
		Details: event.DepositFailedDetails{Vault: &event.DepositFailedVault{
			Asset:      model.AssetSol,
			Amount:     "5000000000",
			DestAsset:  &destAsset,
			RefAddress: &refAddr,
		}},
	}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5007, 0), ev))

	require.Len(t, e.failed.created, 1)
	require.NotNil(t, e.failed.created[0].DestChain)
	assert.Equal(t, model.ChainEthereum, *e.failed.created[0].DestChain)

	// No signature yet: the reconciliation queue owns the backfill.
	require.Len(t, e.pending.forVault, 1)
	assert.Equal(t, e.failed.createdID, e.pending.forVault[0].id)
	assert.Equal(t, refAddr, e.pending.forVault[0].address)
}

func TestApply_DepositFailed_VaultWithRefSkipsQueue(t *testing.T) {
	e := newTestEnv(t)
	ref := "0xabcd"
	ev := event.DepositFailed{
		Chain:  model.ChainEthereum,
		Reason: "NotEnoughToPayFees",
		Details: event.DepositFailedDetails{Vault: &event.DepositFailedVault{
			Asset:  model.AssetEth,
			Amount: "42",
			TxRef:  &ref,
		}},
	}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5008, 0), ev))
	assert.Len(t, e.failed.created, 1)
	assert.Empty(t, e.pending.forVault)
}

func TestApply_CcmFailed(t *testing.T) {
	callID := "0005001-000002"

	t.Run("requires exactly one origin", func(t *testing.T) {
		e := newTestEnv(t)
		ev := event.CcmFailed{Chain: model.ChainEthereum, Reason: "InvalidMetadata"}
		err := e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5009, 0), ev)
		require.Error(t, err)
		assert.True(t, fault.IsInvariant(err))
	})

	t.Run("channel origin reconstructs deposit from call", func(t *testing.T) {
		e := newTestEnv(t)
		e.calls.call = &indexerclient.Call{
			ID:   callID,
			Args: json.RawMessage(`{"sourceAsset":"Eth","depositAmount":"777","depositAddress":"0xdead"}`),
		}
		e.channels.swapChannel = &model.SwapDepositChannel{ID: uuid.New()}

		channelID := uint64(12)
		ev := event.CcmFailed{
			Chain:       model.ChainEthereum,
			Reason:      "InvalidMetadata",
			DestAddress: "0xdest",
			Ccm:         event.CcmParams{GasBudget: "5", Message: "0x01"},
			Origin:      event.CcmOrigin{ChannelID: &channelID},
		}
		env := makeEnv(ev.EventName(), 5009, 1)
		env.CallID = &callID

		require.NoError(t, e.proc.Apply(context.Background(), env, ev))
		require.Len(t, e.failed.created, 1)
		f := e.failed.created[0]
		assert.Equal(t, model.AssetEth, f.SrcAsset)
		assert.Equal(t, "777", f.DepositAmount)
		require.NotNil(t, f.SwapDepositChannelID)
	})

	t.Run("missing call id violates invariant", func(t *testing.T) {
		e := newTestEnv(t)
		ref := "0xfeed"
		ev := event.CcmFailed{
			Chain:  model.ChainEthereum,
			Reason: "InvalidMetadata",
			Origin: event.CcmOrigin{TxRef: &ref},
		}
		err := e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5009, 0), ev)
		require.Error(t, err)
		assert.True(t, fault.IsInvariant(err))
	})
}

func TestApply_TransactionRejected(t *testing.T) {
	ref := "0x1234"
	rejected := event.TransactionRejectedByBroker{
		Chain:       model.ChainEthereum,
		BroadcastID: 55,
		TxRef:       &ref,
	}

	t.Run("exactly one match binds the refund broadcast", func(t *testing.T) {
		e := newTestEnv(t)
		failedID := uuid.New()
		e.failed.byTxRef = []model.FailedSwap{{ID: failedID}}

		require.NoError(t, e.proc.Apply(context.Background(), makeEnv(rejected.EventName(), 5010, 0), rejected))

		require.Len(t, e.broadcasts.created, 1)
		assert.Equal(t, uint64(55), e.broadcasts.created[0].NativeID)
		require.Len(t, e.failed.refundedFailed, 1)
		assert.Equal(t, failedID, e.failed.refundedFailed[0])
		assert.Equal(t, e.broadcasts.createdID, e.failed.refundBoundTo[0])
	})

	t.Run("duplicate matches across keys collapse by id", func(t *testing.T) {
		e := newTestEnv(t)
		failedID := uuid.New()
		channelID := uint64(12)
		e.failed.byTxRef = []model.FailedSwap{{ID: failedID}}
		e.failed.byChannel = []model.FailedSwap{{ID: failedID}}

		withChannel := rejected
		withChannel.ChannelID = &channelID
		require.NoError(t, e.proc.Apply(context.Background(), makeEnv(rejected.EventName(), 5010, 0), withChannel))
		assert.Len(t, e.failed.refundedFailed, 1)
	})

	t.Run("zero matches is ambiguous", func(t *testing.T) {
		e := newTestEnv(t)
		err := e.proc.Apply(context.Background(), makeEnv(rejected.EventName(), 5010, 0), rejected)
		require.Error(t, err)
		assert.True(t, fault.IsAmbiguous(err))
	})

	t.Run("two distinct matches are ambiguous", func(t *testing.T) {
		e := newTestEnv(t)
		e.failed.byTxRef = []model.FailedSwap{{ID: uuid.New()}, {ID: uuid.New()}}
		err := e.proc.Apply(context.Background(), makeEnv(rejected.EventName(), 5010, 0), rejected)
		require.Error(t, err)
		assert.True(t, fault.IsAmbiguous(err))
		assert.Empty(t, e.failed.refundedFailed)
	})
}

func TestApply_EgressScheduled(t *testing.T) {
	e := newTestEnv(t)
	e.requests = newFakeRequests(&model.SwapRequest{ID: uuid.New(), NativeID: 4215})
	e.proc.stores.Requests = e.requests

	ev := event.EgressScheduled{
		RequestID:   4215,
		Kind:        model.EgressSwap,
		EgressChain: model.ChainPolkadot,
		EgressID:    7,
		Asset:       model.AssetDot,
		Amount:      "990",
		Fee:         "10",
	}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5011, 0), ev))

	require.Len(t, e.egresses.created, 1)
	assert.Equal(t, model.EgressSwap, e.egresses.created[0].Kind)
	_, bound := e.requests.egresses[model.EgressSwap]
	assert.True(t, bound)

	require.Len(t, e.fees.added, 1)
	assert.Equal(t, model.FeeEgress, e.fees.added[0].Type)
}

func TestApply_RefundEgressScheduled_FeeType(t *testing.T) {
	e := newTestEnv(t)
	e.requests = newFakeRequests(&model.SwapRequest{ID: uuid.New(), NativeID: 4215})
	e.proc.stores.Requests = e.requests

	ev := event.EgressScheduled{
		RequestID:   4215,
		Kind:        model.EgressRefund,
		EgressChain: model.ChainEthereum,
		EgressID:    8,
		Asset:       model.AssetEth,
		Amount:      "990",
		Fee:         "10",
	}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5011, 1), ev))
	require.Len(t, e.fees.added, 1)
	assert.Equal(t, model.FeeRefund, e.fees.added[0].Type)
}

func TestApply_EgressIgnored(t *testing.T) {
	e := newTestEnv(t)
	e.requests = newFakeRequests(&model.SwapRequest{ID: uuid.New(), NativeID: 4215})
	e.proc.stores.Requests = e.requests

	ev := event.EgressIgnored{
		RequestID: 4215,
		Kind:      model.EgressSwap,
		Asset:     model.AssetDot,
		Amount:    "100",
		Reason:    event.ModuleError{PalletIndex: 32, ErrorIndex: 10},
	}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5012, 0), ev))

	require.Len(t, e.chainErrs.resolved, 1)
	assert.Equal(t, [3]int{180, 32, 10}, e.chainErrs.resolved[0])
	require.Len(t, e.ignored.created, 1)
	assert.Equal(t, e.chainErrs.resolvedID, e.ignored.created[0].StateChainErrorID)
}

func TestApply_BatchBroadcastRequested(t *testing.T) {
	e := newTestEnv(t)

	empty := event.BatchBroadcastRequested{Chain: model.ChainEthereum, BroadcastID: 9}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(empty.EventName(), 5013, 0), empty))
	assert.Empty(t, e.broadcasts.created)

	ev := event.BatchBroadcastRequested{Chain: model.ChainEthereum, BroadcastID: 9, EgressIDs: []uint64{7, 8}}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5013, 1), ev))
	require.Len(t, e.broadcasts.created, 1)
	require.Len(t, e.egresses.bound, 1)
	assert.Equal(t, []uint64{7, 8}, e.egresses.bound[0])
}

func TestApply_BroadcastOutcomes(t *testing.T) {
	e := newTestEnv(t)
	ref := "0xfinal"

	success := event.BroadcastSuccess{Chain: model.ChainEthereum, BroadcastID: 9, TxRef: &ref}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(success.EventName(), 5014, 0), success))
	assert.Equal(t, []uint64{9}, e.broadcasts.succeeded)

	aborted := event.BroadcastAborted{Chain: model.ChainEthereum, BroadcastID: 10}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(aborted.EventName(), 5014, 1), aborted))
	assert.Equal(t, []uint64{10}, e.broadcasts.aborted)
}

func TestApply_ChainStateUpdated(t *testing.T) {
	e := newTestEnv(t)
	ev := event.ChainStateUpdated{Chain: model.ChainBitcoin, Height: 840001}
	require.NoError(t, e.proc.Apply(context.Background(), makeEnv(ev.EventName(), 5015, 0), ev))
	require.Len(t, e.tracking.upserted, 1)
	assert.Equal(t, int64(840001), e.tracking.upserted[0].ExternalHeight)
	assert.Equal(t, "5015-0", e.tracking.upserted[0].BlockIndex)
}
