package ingest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapstream/swap-indexer/internal/domain/event"
	"github.com/swapstream/swap-indexer/internal/fault"
	"github.com/swapstream/swap-indexer/internal/indexerclient"
	"github.com/swapstream/swap-indexer/internal/normalizer"
)

var ingestDriverSeq atomic.Int64

type ingestFakeDriver struct{ conn *ingestFakeConn }
type ingestFakeConn struct{}
type ingestFakeTx struct{}
type ingestFakeStmt struct{}
type ingestEmptyRows struct{}

func (d *ingestFakeDriver) Open(string) (driver.Conn, error) { return d.conn, nil }
func (c *ingestFakeConn) Prepare(string) (driver.Stmt, error) { return &ingestFakeStmt{}, nil }
func (c *ingestFakeConn) Close() error { return nil }
func (c *ingestFakeConn) Begin() (driver.Tx, error) { return &ingestFakeTx{}, nil }
func (tx *ingestFakeTx) Commit() error { return nil }
func (tx *ingestFakeTx) Rollback() error { return nil }
func (s *ingestFakeStmt) Close() error { return nil }
func (s *ingestFakeStmt) NumInput() int { return -1 }
func (s *ingestFakeStmt) Exec([]driver.Value) (driver.Result, error) { return driver.RowsAffected(0), nil }
func (s *ingestFakeStmt) Query([]driver.Value) (driver.Rows, error) { return &ingestEmptyRows{}, nil }
func (r *ingestEmptyRows) Columns() []string { return nil }
func (r *ingestEmptyRows) Close() error { return nil }
func (r *ingestEmptyRows) Next([]driver.Value) error { return io.EOF }

func openIngestFakeDB(t *testing.T) *sql.DB {
	t.Helper()
	name := fmt.Sprintf("fake_ingest_%d", ingestDriverSeq.Add(1))
	sql.Register(name, &ingestFakeDriver{conn: &ingestFakeConn{}})
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open fake db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeCursors struct {
	height int64
	ok     bool
	sets   []int64
}

func (f *fakeCursors) Get(context.Context, string) (int64, bool, error) {
	return f.height, f.ok, nil
}

func (f *fakeCursors) SetTx(_ context.Context, _ *sql.Tx, _ string, height int64) error {
	f.sets = append(f.sets, height)
	f.height, f.ok = height, true
	return nil
}

type fakeSource struct {
	head       int64
	blocks     map[int64]*indexerclient.Block
	requested  []int64
	eventNames []string
}

func (f *fakeSource) LatestHeight(context.Context) (int64, error) {
	return f.head, nil
}

func (f *fakeSource) GetBlock(_ context.Context, height int64, eventNames []string) (*indexerclient.Block, error) {
	f.requested = append(f.requested, height)
	f.eventNames = eventNames
	return f.blocks[height], nil
}

type fakeApplier struct {
	applied []event.Envelope
	err     error
}

func (f *fakeApplier) Apply(_ context.Context, env event.Envelope, _ event.Canonical) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, env)
	return nil
}

type loopEnv struct {
	loop    *Loop
	cursors *fakeCursors
	source  *fakeSource
	applier *fakeApplier
}

func newLoopEnv(t *testing.T, startHeight int64) *loopEnv {
	t.Helper()
	e := &loopEnv{
		cursors: &fakeCursors{},
		source:  &fakeSource{blocks: map[int64]*indexerclient.Block{}},
		applier: &fakeApplier{},
	}
	e.loop = NewLoop(
		openIngestFakeDB(t),
		e.cursors,
		e.source,
		normalizer.New(slog.Default()),
		e.applier,
		startHeight,
		time.Second,
		slog.Default(),
	)
	return e
}

func blockAt(height int64, events ...indexerclient.BlockEvent) *indexerclient.Block {
	return &indexerclient.Block{
		Height:      height,
		Hash:        fmt.Sprintf("0xblock%d", height),
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		SpecVersion: 180,
		Events:      events,
	}
}

func rescheduledEvent(index int) indexerclient.BlockEvent {
	return indexerclient.BlockEvent{
		Name:         "Swapping.SwapRescheduled",
		Args:         json.RawMessage(`{"swapId": 7, "executeAt": 20123456}`),
		IndexInBlock: index,
	}
}

func TestCatchUp_ProcessesFromStartHeight(t *testing.T) {
	e := newLoopEnv(t, 100)
	e.source.head = 102
	e.source.blocks[100] = blockAt(100, rescheduledEvent(0))
	e.source.blocks[101] = blockAt(101)
	e.source.blocks[102] = blockAt(102, rescheduledEvent(0), rescheduledEvent(1))

	require.NoError(t, e.loop.catchUp(context.Background()))

	assert.Equal(t, []int64{100, 101, 102}, e.source.requested)
	assert.Equal(t, []int64{100, 101, 102}, e.cursors.sets)
	assert.Len(t, e.applier.applied, 3)
	assert.Len(t, e.source.eventNames, 55)
}

func TestCatchUp_ResumesAfterCursor(t *testing.T) {
	e := newLoopEnv(t, 100)
	e.cursors.height, e.cursors.ok = 200, true
	e.source.head = 201
	e.source.blocks[201] = blockAt(201)

	require.NoError(t, e.loop.catchUp(context.Background()))
	assert.Equal(t, []int64{201}, e.source.requested)
	assert.Equal(t, []int64{201}, e.cursors.sets)
}

func TestCatchUp_MissingBlockHaltsWithoutCursorAdvance(t *testing.T) {
	e := newLoopEnv(t, 100)
	e.source.head = 102
	e.source.blocks[100] = blockAt(100)
	// 101 is not ingested yet; the reported head ran ahead of the indexer.

	require.NoError(t, e.loop.catchUp(context.Background()))
	assert.Equal(t, []int64{100, 101}, e.source.requested)
	assert.Equal(t, []int64{100}, e.cursors.sets)
}

func TestCatchUp_SchemaViolationStops(t *testing.T) {
	e := newLoopEnv(t, 100)
	e.source.head = 100
	e.source.blocks[100] = blockAt(100, indexerclient.BlockEvent{
		Name: "Swapping.SwapRescheduled",
		Args: json.RawMessage(`{"swapId": 7}`),
	})

	err := e.loop.catchUp(context.Background())
	require.Error(t, err)
	assert.True(t, fault.IsSchema(err))
	assert.Contains(t, err.Error(), "block 100")
	assert.Empty(t, e.applier.applied)
	assert.Empty(t, e.cursors.sets)
}

func TestCatchUp_ApplyErrorStops(t *testing.T) {
	e := newLoopEnv(t, 100)
	e.source.head = 100
	e.source.blocks[100] = blockAt(100, rescheduledEvent(0))
	fatal := errors.New("projection write failed")
	e.applier.err = fatal

	err := e.loop.catchUp(context.Background())
	require.ErrorIs(t, err, fatal)
	assert.Contains(t, err.Error(), "block 100")
	assert.Empty(t, e.cursors.sets)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	e := newLoopEnv(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	e.loop.sleepFn = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := e.loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
