// Package indexer implements the core scheduling loop: a single
// long-lived task that walks the chain one block at a time, dispatches
// every envelope it finds to the matching metaprotocol engine, and keeps
// the store's cursors in lock-step with what has actually been committed.
package indexer

import (
	"context"
	"log"
	"time"

	"github.com/zatoshilabs/zord/internal/chainclient"
	"github.com/zatoshilabs/zord/internal/coreerr"
	"github.com/zatoshilabs/zord/internal/store"
	"github.com/zatoshilabs/zord/pkg/workerpool"
)

// pollInterval is the 5-second sleep-or-tip-push interval from §4.3.
const pollInterval = 5 * time.Second

// Notifier receives a best-effort, non-blocking notification after every
// successful block commit. The live feed hub implements this; a nil
// Notifier is fine, Indexer treats it as "nobody is listening".
type Notifier interface {
	NotifyBlock(height uint64, hash string, inscriptionCount int)
}

// Indexer owns the core loop. One Indexer per process, matching the
// single-writer model in §5.
type Indexer struct {
	store   *store.Store
	chain   chainclient.Client
	pool    *workerpool.Pool
	tip     *chainclient.TipPush
	notify  Notifier
	fetcher fetcher

	stopCh chan struct{}
	doneCh chan struct{}
}

// fetcher abstracts the concurrent get_raw_transaction fan-out so tests
// can substitute a sequential version without a real worker pool.
type fetcher func(ctx context.Context, pool *workerpool.Pool, chain chainclient.Client, txids []string) ([]*chainclient.Transaction, error)

// New builds an Indexer. pool may be nil, in which case transactions are
// fetched sequentially (useful for tests and small deployments).
func New(s *store.Store, chain chainclient.Client, pool *workerpool.Pool, tip *chainclient.TipPush, notify Notifier) *Indexer {
	return &Indexer{
		store:   s,
		chain:   chain,
		pool:    pool,
		tip:     tip,
		notify:  notify,
		fetcher: fetchTransactions,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start runs the loop in its own goroutine. Call Stop to end it.
func (ix *Indexer) Start(ctx context.Context) {
	go ix.run(ctx)
}

// Stop signals the loop to exit and waits for it to do so.
func (ix *Indexer) Stop() {
	close(ix.stopCh)
	<-ix.doneCh
}

func (ix *Indexer) run(ctx context.Context) {
	defer close(ix.doneCh)

	var tipPushCh <-chan struct{}
	if ix.tip != nil {
		tipPushCh = ix.tip.Subscribe(ctx)
	}

	for {
		if err := ix.catchUp(ctx); err != nil {
			if coreerr.IsFatal(err) {
				log.Fatalf("indexer: fatal error, exiting for supervisor restart: %v", err)
			}
			log.Printf("indexer: recoverable error, backing off: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ix.stopCh:
			return
		case <-time.After(pollInterval):
		case <-tipPushCh:
		}
	}
}

// catchUp advances the core height one block at a time until it matches
// the node's reported tip, the loop is asked to stop, or a recoverable
// error interrupts progress.
func (ix *Indexer) catchUp(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ix.stopCh:
			return nil
		default:
		}

		height, err := ix.nextHeight(ctx)
		if err != nil {
			return err
		}
		if height == 0 {
			return nil // already at tip
		}
		if err := ix.processHeight(ctx, height); err != nil {
			return err
		}
	}
}

// nextHeight returns the height that should be processed next, or 0 if
// the store is already caught up to the node's reported tip.
func (ix *Indexer) nextHeight(ctx context.Context) (uint64, error) {
	tip, err := ix.chain.GetBlockCount(ctx)
	if err != nil {
		return 0, err
	}
	core, err := ix.readCoreHeight(ctx)
	if err != nil {
		return 0, err
	}
	if core >= tip {
		return 0, nil
	}
	return core + 1, nil
}
