// Package ingest drives event processing: it walks the indexer's blocks in
// order behind a persisted height cursor, normalizes each event, and hands
// it to the processor. Restart resumes from the cursor with no gaps.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/swapstream/swap-indexer/internal/domain/event"
	"github.com/swapstream/swap-indexer/internal/indexerclient"
	"github.com/swapstream/swap-indexer/internal/metrics"
	"github.com/swapstream/swap-indexer/internal/normalizer"
	"github.com/swapstream/swap-indexer/internal/store"
)

const (
	cursorID        = "swap-events"
	defaultInterval = 6 * time.Second
)

// BlockSource is the indexer query surface the loop consumes.
type BlockSource interface {
	LatestHeight(ctx context.Context) (int64, error)
	GetBlock(ctx context.Context, height int64, eventNames []string) (*indexerclient.Block, error)
}

// Applier projects one normalized event.
type Applier interface {
	Apply(ctx context.Context, env event.Envelope, canon event.Canonical) error
}

type Loop struct {
	db          store.TxBeginner
	cursors     store.CursorRepository
	source      BlockSource
	norm        *normalizer.Normalizer
	applier     Applier
	startHeight int64
	interval    time.Duration
	logger      *slog.Logger

	sleepFn func(ctx context.Context, d time.Duration) error
}

func NewLoop(
	db store.TxBeginner,
	cursors store.CursorRepository,
	source BlockSource,
	norm *normalizer.Normalizer,
	applier Applier,
	startHeight int64,
	interval time.Duration,
	logger *slog.Logger,
) *Loop {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Loop{
		db:          db,
		cursors:     cursors,
		source:      source,
		norm:        norm,
		applier:     applier,
		startHeight: startHeight,
		interval:    interval,
		logger:      logger.With("component", "ingest"),
		sleepFn:     sleepCtx,
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

// Run polls until the context is cancelled or processing fails. Processing
// errors stop the loop: skipping a block would leave a permanent gap in the
// projection.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("ingest started", "interval", l.interval)

	for {
		if err := l.catchUp(ctx); err != nil {
			if ctx.Err() != nil {
				l.logger.Info("ingest stopping")
				return ctx.Err()
			}
			metrics.IngestErrors.Inc()
			l.logger.Error("ingest failed, stopping loop", "error", err)
			return err
		}
		if err := l.sleepFn(ctx, l.interval); err != nil {
			l.logger.Info("ingest stopping")
			return err
		}
	}
}

// catchUp processes every block between the cursor and the indexer head.
func (l *Loop) catchUp(ctx context.Context) error {
	next, err := l.nextHeight(ctx)
	if err != nil {
		return err
	}
	head, err := l.source.LatestHeight(ctx)
	if err != nil {
		return err
	}

	for ; next <= head; next++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		processed, err := l.processBlock(ctx, next)
		if err != nil {
			return err
		}
		if !processed {
			// The indexer reported a head it has not fully ingested yet;
			// retry the same height next cycle.
			return nil
		}
	}
	return nil
}

func (l *Loop) nextHeight(ctx context.Context) (int64, error) {
	height, ok, err := l.cursors.Get(ctx, cursorID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return l.startHeight, nil
	}
	return height + 1, nil
}

func (l *Loop) processBlock(ctx context.Context, height int64) (bool, error) {
	start := time.Now()

	block, err := l.source.GetBlock(ctx, height, normalizer.EventNames())
	if err != nil {
		return false, err
	}
	if block == nil {
		return false, nil
	}

	for _, env := range block.Envelopes() {
		canon, err := l.norm.Normalize(env)
		if err != nil {
			metrics.SchemaViolations.WithLabelValues(env.Name).Inc()
			return false, fmt.Errorf("block %d: %w", height, err)
		}
		if err := l.applier.Apply(ctx, env, canon); err != nil {
			return false, fmt.Errorf("block %d: %w", height, err)
		}
	}

	if err := l.advanceCursor(ctx, height); err != nil {
		return false, err
	}

	metrics.IngestBlocksTotal.Inc()
	metrics.IngestHeight.Set(float64(height))
	metrics.IngestBlockLatency.Observe(time.Since(start).Seconds())
	if len(block.Events) > 0 {
		l.logger.Debug("block processed", "height", height, "events", len(block.Events))
	}
	return true, nil
}

func (l *Loop) advanceCursor(ctx context.Context, height int64) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := l.cursors.SetTx(ctx, tx, cursorID, height); err != nil {
		return err
	}
	return tx.Commit()
}
