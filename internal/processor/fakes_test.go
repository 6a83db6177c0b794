package processor

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/swapstream/swap-indexer/internal/domain/model"
	"github.com/swapstream/swap-indexer/internal/indexerclient"
	"github.com/swapstream/swap-indexer/internal/store"
)

// ---------------------------------------------------------------------------
// Fake sql driver. The repository fakes below never touch the database; the
// driver only has to hand out working transactions so Apply's begin/commit
// path is real. Each test gets a unique driver name via atomic counter.
// ---------------------------------------------------------------------------

var fakeDriverSeq atomic.Int64

type fakeDriver struct{ conn *fakeConn }
type fakeConn struct{}
type fakeTx struct{}

func (d *fakeDriver) Open(string) (driver.Conn, error) { return d.conn, nil }
func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{}, nil
}
func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return &fakeTx{}, nil }
func (tx *fakeTx) Commit() error              { return nil }
func (tx *fakeTx) Rollback() error            { return nil }

type fakeStmt struct{}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }
func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return driver.RowsAffected(0), nil
}
func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	return &emptyRows{}, nil
}

type emptyRows struct{}

func (r *emptyRows) Columns() []string              { return nil }
func (r *emptyRows) Close() error                   { return nil }
func (r *emptyRows) Next(dest []driver.Value) error { return io.EOF }

func openFakeDB(t *testing.T) *sql.DB {
	t.Helper()
	name := fmt.Sprintf("fake_processor_%d", fakeDriverSeq.Add(1))
	sql.Register(name, &fakeDriver{conn: &fakeConn{}})
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open fake db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ---------------------------------------------------------------------------
// Repository fakes. Unused interface methods come from the embedded nil
// interface and fail loudly if a handler reaches them unexpectedly.
// ---------------------------------------------------------------------------

type fakeChannels struct {
	store.ChannelRepository

	depositChannel *model.DepositChannel
	swapChannel    *model.SwapDepositChannel

	upsertedDeposit []*model.DepositChannel
	upsertedSwap    []*model.SwapDepositChannel
}

func (f *fakeChannels) UpsertDepositChannelTx(_ context.Context, _ *sql.Tx, c *model.DepositChannel) (uuid.UUID, error) {
	f.upsertedDeposit = append(f.upsertedDeposit, c)
	return uuid.New(), nil
}

func (f *fakeChannels) UpsertSwapDepositChannelTx(_ context.Context, _ *sql.Tx, c *model.SwapDepositChannel) (uuid.UUID, error) {
	f.upsertedSwap = append(f.upsertedSwap, c)
	return uuid.New(), nil
}

func (f *fakeChannels) GetDepositChannelTx(_ context.Context, _ *sql.Tx, _ model.Chain, _ string) (*model.DepositChannel, error) {
	return f.depositChannel, nil
}

func (f *fakeChannels) FindLatestSwapChannelTx(_ context.Context, _ *sql.Tx, _ model.Chain, _ uint64, _ string) (*model.SwapDepositChannel, error) {
	return f.swapChannel, nil
}

func (f *fakeChannels) FindLatestSwapChannelByAddressTx(_ context.Context, _ *sql.Tx, _ model.Chain, _ string) (*model.SwapDepositChannel, error) {
	return f.swapChannel, nil
}

type fakeRequests struct {
	store.SwapRequestRepository

	byNativeID map[uint64]*model.SwapRequest

	created   []*model.SwapRequest
	attached  []store.DepositAttach
	egresses  map[model.EgressKind]uuid.UUID
	completed []uint64
}

func newFakeRequests(existing ...*model.SwapRequest) *fakeRequests {
	f := &fakeRequests{
		byNativeID: map[uint64]*model.SwapRequest{},
		egresses:   map[model.EgressKind]uuid.UUID{},
	}
	for _, r := range existing {
		f.byNativeID[r.NativeID] = r
	}
	return f
}

func (f *fakeRequests) CreateTx(_ context.Context, _ *sql.Tx, r *model.SwapRequest) (uuid.UUID, error) {
	f.created = append(f.created, r)
	return uuid.New(), nil
}

func (f *fakeRequests) GetByNativeIDTx(_ context.Context, _ *sql.Tx, nativeID uint64) (*model.SwapRequest, error) {
	return f.byNativeID[nativeID], nil
}

func (f *fakeRequests) AttachDepositTx(_ context.Context, _ *sql.Tx, _ uint64, attach store.DepositAttach) error {
	f.attached = append(f.attached, attach)
	return nil
}

func (f *fakeRequests) SetEgressTx(_ context.Context, _ *sql.Tx, _ uint64, kind model.EgressKind, egressID uuid.UUID) error {
	f.egresses[kind] = egressID
	return nil
}

func (f *fakeRequests) CompleteTx(_ context.Context, _ *sql.Tx, nativeID uint64, _ time.Time, _ string) error {
	f.completed = append(f.completed, nativeID)
	return nil
}

type fakeSwaps struct {
	store.SwapRepository

	byNativeID map[uint64]*model.Swap

	created     []*model.Swap
	executed    []store.ExecutedSwap
	rescheduled []uint64
}

func newFakeSwaps(existing ...*model.Swap) *fakeSwaps {
	f := &fakeSwaps{byNativeID: map[uint64]*model.Swap{}}
	for _, s := range existing {
		f.byNativeID[s.NativeID] = s
	}
	return f
}

func (f *fakeSwaps) CreateTx(_ context.Context, _ *sql.Tx, s *model.Swap) (uuid.UUID, error) {
	f.created = append(f.created, s)
	return uuid.New(), nil
}

func (f *fakeSwaps) GetByNativeIDTx(_ context.Context, _ *sql.Tx, nativeID uint64) (*model.Swap, error) {
	return f.byNativeID[nativeID], nil
}

func (f *fakeSwaps) ExecuteTx(_ context.Context, _ *sql.Tx, _ uint64, exec store.ExecutedSwap) error {
	f.executed = append(f.executed, exec)
	return nil
}

func (f *fakeSwaps) RescheduleTx(_ context.Context, _ *sql.Tx, nativeID uint64, _ time.Time, _ string) error {
	f.rescheduled = append(f.rescheduled, nativeID)
	return nil
}

type fakeEgresses struct {
	store.EgressRepository

	created []*model.Egress
	bound   [][]uint64
}

func (f *fakeEgresses) CreateTx(_ context.Context, _ *sql.Tx, e *model.Egress) (uuid.UUID, error) {
	f.created = append(f.created, e)
	return uuid.New(), nil
}

func (f *fakeEgresses) BindBroadcastTx(_ context.Context, _ *sql.Tx, _ model.Chain, nativeIDs []uint64, _ uuid.UUID) error {
	f.bound = append(f.bound, nativeIDs)
	return nil
}

type fakeBroadcasts struct {
	store.BroadcastRepository

	created   []*model.Broadcast
	createdID uuid.UUID
	succeeded []uint64
	aborted   []uint64
}

func (f *fakeBroadcasts) CreateTx(_ context.Context, _ *sql.Tx, b *model.Broadcast) (uuid.UUID, error) {
	f.created = append(f.created, b)
	if f.createdID == uuid.Nil {
		f.createdID = uuid.New()
	}
	return f.createdID, nil
}

func (f *fakeBroadcasts) MarkSucceededTx(_ context.Context, _ *sql.Tx, _ model.Chain, nativeID uint64, _ time.Time, _ string, _ *string) error {
	f.succeeded = append(f.succeeded, nativeID)
	return nil
}

func (f *fakeBroadcasts) MarkAbortedTx(_ context.Context, _ *sql.Tx, _ model.Chain, nativeID uint64, _ time.Time, _ string) error {
	f.aborted = append(f.aborted, nativeID)
	return nil
}

type fakeFailed struct {
	store.FailedSwapRepository

	byTxRef   []model.FailedSwap
	byChannel []model.FailedSwap
	byAddress []model.FailedSwap

	created        []*model.FailedSwap
	createdID      uuid.UUID
	refundBoundTo  []uuid.UUID
	refundedFailed []uuid.UUID
}

func (f *fakeFailed) CreateTx(_ context.Context, _ *sql.Tx, fs *model.FailedSwap) (uuid.UUID, error) {
	f.created = append(f.created, fs)
	if f.createdID == uuid.Nil {
		f.createdID = uuid.New()
	}
	return f.createdID, nil
}

func (f *fakeFailed) SetRefundBroadcastTx(_ context.Context, _ *sql.Tx, id uuid.UUID, broadcastID uuid.UUID) error {
	f.refundedFailed = append(f.refundedFailed, id)
	f.refundBoundTo = append(f.refundBoundTo, broadcastID)
	return nil
}

func (f *fakeFailed) FindByTxRefTx(_ context.Context, _ *sql.Tx, _ model.Chain, _ string) ([]model.FailedSwap, error) {
	return f.byTxRef, nil
}

func (f *fakeFailed) FindByChannelNativeIDTx(_ context.Context, _ *sql.Tx, _ model.Chain, _ uint64) ([]model.FailedSwap, error) {
	return f.byChannel, nil
}

func (f *fakeFailed) FindPendingVaultByAddressTx(_ context.Context, _ *sql.Tx, _ model.Chain, _ string) ([]model.FailedSwap, error) {
	return f.byAddress, nil
}

type fakeIgnored struct {
	store.IgnoredEgressRepository

	created []*model.IgnoredEgress
}

func (f *fakeIgnored) CreateTx(_ context.Context, _ *sql.Tx, e *model.IgnoredEgress) error {
	f.created = append(f.created, e)
	return nil
}

type fakeChainErrs struct {
	store.StateChainErrorRepository

	resolvedID uuid.UUID
	resolved   [][3]int
}

func (f *fakeChainErrs) ResolveTx(_ context.Context, _ *sql.Tx, specVersion, palletIndex, errorIndex int) (uuid.UUID, error) {
	f.resolved = append(f.resolved, [3]int{specVersion, palletIndex, errorIndex})
	if f.resolvedID == uuid.Nil {
		f.resolvedID = uuid.New()
	}
	return f.resolvedID, nil
}

type pendingItem struct {
	id      uuid.UUID
	chain   model.Chain
	address string
}

type fakePending struct {
	store.PendingTxRefRepository

	forChannel []pendingItem
	forVault   []pendingItem
}

func (f *fakePending) CreateForChannelTx(_ context.Context, _ *sql.Tx, channelID uuid.UUID, chain model.Chain, address string) error {
	f.forChannel = append(f.forChannel, pendingItem{id: channelID, chain: chain, address: address})
	return nil
}

func (f *fakePending) CreateForVaultSwapTx(_ context.Context, _ *sql.Tx, failedSwapID uuid.UUID, chain model.Chain, address string) error {
	f.forVault = append(f.forVault, pendingItem{id: failedSwapID, chain: chain, address: address})
	return nil
}

type fakeTracking struct {
	store.ChainTrackingRepository

	tracking *model.ChainTracking
	upserted []*model.ChainTracking
}

func (f *fakeTracking) UpsertTx(_ context.Context, _ *sql.Tx, t *model.ChainTracking) error {
	f.upserted = append(f.upserted, t)
	return nil
}

func (f *fakeTracking) GetTx(_ context.Context, _ *sql.Tx, _ model.Chain) (*model.ChainTracking, error) {
	return f.tracking, nil
}

type fakeFees struct {
	store.FeeRepository

	added []*model.Fee
}

func (f *fakeFees) AddTx(_ context.Context, _ *sql.Tx, fee *model.Fee) error {
	f.added = append(f.added, fee)
	return nil
}

type fakeCalls struct {
	call *indexerclient.Call
	err  error
}

func (f *fakeCalls) GetCall(_ context.Context, _ string) (*indexerclient.Call, error) {
	return f.call, f.err
}
