// Package batch collects a block together with its transitive missing
// parents so the processing tier can insert an entire dependency chain in
// one pass instead of stalling on a single absent parent.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/apperr"
	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/nodeclient"
	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/store"
)

// MaxMissingDependencies is the tripwire: once a dependency batch grows past
// this size, the store has drifted too far from the node's view of the DAG
// to reconcile incrementally.
const MaxMissingDependencies = 600

// existenceChecker is the narrow slice of *store.Store a Batch needs,
// letting tests substitute a fake.
type existenceChecker interface {
	DoesBlockExist(ctx context.Context, tx *store.Tx, blockHash string) (bool, error)
}

// blockFetcher is the narrow slice of *nodeclient.Client a Batch needs.
type blockFetcher interface {
	GetBlock(ctx context.Context, hash string) (*nodeclient.RPCBlock, error)
}

// item pairs a block hash with the node's full block payload.
type item struct {
	hash  string
	block nodeclient.RPCBlock
}

// Batch is an ordered, deduplicated set of blocks awaiting insertion,
// together with the pruning point used to decide whether a candidate
// dependency is still within scope.
type Batch struct {
	db     existenceChecker
	client blockFetcher
	log    *logrus.Entry

	blocks       []item
	indexByHash  map[string]int
	pruningBlock *nodeclient.RPCBlock
}

// New constructs an empty Batch scoped to pruningBlock. pruningBlock is nil
// when no pruning-point scoping is in effect (live block-added handling).
func New(db existenceChecker, client blockFetcher, pruningBlock *nodeclient.RPCBlock, log *logrus.Entry) *Batch {
	return &Batch{
		db:           db,
		client:       client,
		log:          log,
		indexByHash:  make(map[string]int),
		pruningBlock: pruningBlock,
	}
}

// InScope reports whether block's DAA score is at or above the pruning
// point, i.e. whether it is still worth tracking. With no pruning point set,
// everything is in scope.
func (b *Batch) InScope(block *nodeclient.RPCBlock) bool {
	if b.pruningBlock == nil {
		return true
	}
	return b.pruningBlock.Header.DAAScore <= block.Header.DAAScore
}

// Has reports whether hash is already queued.
func (b *Batch) Has(hash string) bool {
	_, ok := b.indexByHash[hash]
	return ok
}

// Add queues block under hash, unless it is already queued or out of scope.
func (b *Batch) Add(hash string, block nodeclient.RPCBlock) {
	if b.Has(hash) || !b.InScope(&block) {
		return
	}
	b.indexByHash[hash] = len(b.blocks)
	b.blocks = append(b.blocks, item{hash: hash, block: block})
}

// Empty reports whether the batch holds no blocks.
func (b *Batch) Empty() bool {
	return len(b.blocks) == 0
}

// Pop removes and returns the most recently added block, LIFO, so deeper
// dependencies (added last, while walking toward the pruning horizon) drain
// before the blocks that depend on them.
func (b *Batch) Pop() (string, nodeclient.RPCBlock, bool) {
	if len(b.blocks) == 0 {
		return "", nodeclient.RPCBlock{}, false
	}
	last := b.blocks[len(b.blocks)-1]
	b.blocks = b.blocks[:len(b.blocks)-1]
	delete(b.indexByHash, last.hash)
	return last.hash, last.block, true
}

// CollectBlockAndDependencies seeds the batch with hash/block and then
// walks every already-queued block's direct parents, fetching any that are
// missing from the store, until the queue stops growing. It aborts once the
// batch exceeds MaxMissingDependencies: that many simultaneous missing
// dependencies means the store and the node have diverged too far to
// reconcile incrementally.
func (b *Batch) CollectBlockAndDependencies(ctx context.Context, tx *store.Tx, hash string, block nodeclient.RPCBlock) error {
	b.Add(hash, block)

	for i := 0; i < len(b.blocks); i++ {
		item := b.blocks[i]
		if err := b.collectDirectDependencies(ctx, tx, item.hash, item.block); err != nil {
			return err
		}
		if len(b.blocks) > MaxMissingDependencies {
			return fmt.Errorf("%w: %d missing dependencies", apperr.ErrTooManyMissingDependencies, len(b.blocks))
		}
	}
	return nil
}

func (b *Batch) collectDirectDependencies(ctx context.Context, tx *store.Tx, hash string, block nodeclient.RPCBlock) error {
	for _, parentHash := range block.Header.ParentHashes {
		exists, err := b.db.DoesBlockExist(ctx, tx, parentHash)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		parentBlock, err := b.client.GetBlock(ctx, parentHash)
		if err != nil {
			if !errors.Is(err, apperr.ErrNodeNotFound) {
				return err
			}
			b.log.WithFields(logrus.Fields{
				"parent": parentHash,
				"block":  hash,
			}).Warn("missing parent not found by node, dependency ignored")
			continue
		}

		b.Add(parentHash, *parentBlock)
		b.log.WithFields(logrus.Fields{
			"parent": parentHash,
			"block":  hash,
		}).Warn("missing parent registered for processing")
	}
	return nil
}
