// Package syncengine drives the bootstrap resync and the live notification
// handlers that keep the store's view of the DAG aligned with a node.
package syncengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/apperr"
	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/batch"
	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/nodeclient"
	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/store"
)

// backoffBlocks is subtracted from the matched prefix length at the start of
// a resync so the engine always re-verifies a small overlapping window
// instead of trusting the boundary exactly.
const backoffBlocks = 3000

// singleBlockDispatchThreshold is how far into a resync cycle's batch the
// engine stops doing full dependency-batch collection per block and falls
// back to treating each block as independent, since by then parents are
// overwhelmingly already stored.
const singleBlockDispatchThreshold = 6000

// vspcReconcileBlockCount decides when a resync cycle is short enough to run
// VSPC reconciliation; nearTipBlockCount decides when bootstrap considers
// itself caught up to the node's tip and stops looping.
const nearTipBlockCount = 10
const vspcReconcileBlockCount = 20

// dagStore is the subset of *store.Store the sync engine needs. Declaring it
// narrows what a test fake must implement.
type dagStore interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx *store.Tx) error) error
	Clear(ctx context.Context, tx *store.Tx) error
	LoadCache(ctx context.Context, tx *store.Tx, minHeight uint64) error
	DoesBlockExist(ctx context.Context, tx *store.Tx, blockHash string) (bool, error)
	InsertBlock(ctx context.Context, tx *store.Tx, blockHash string, b *store.Block) error
	BlockIDByHash(ctx context.Context, tx *store.Tx, blockHash string) (uint64, error)
	BlockHeightByHash(ctx context.Context, tx *store.Tx, blockHash string) (uint64, error)
	BlockIDsByHashes(ctx context.Context, tx *store.Tx, hashes []string) ([]uint64, error)
	BlockIDsAndHeightsByHashes(ctx context.Context, tx *store.Tx, hashes []string) ([]uint64, []uint64, error)
	UpdateBlockSelectedParent(ctx context.Context, tx *store.Tx, blockID, parentID uint64) error
	UpdateBlockMergeSet(ctx context.Context, tx *store.Tx, blockID uint64, redIDs, blueIDs []uint64) error
	UpdateBlockIsInVSPC(ctx context.Context, tx *store.Tx, updates []store.BlockVSPCUpdate) error
	UpdateBlockColors(ctx context.Context, tx *store.Tx, updates []store.BlockColorUpdate) error
	FindLatestStoredBlockIndex(ctx context.Context, tx *store.Tx, hashes []string) (int, error)
	HeightGroupSize(ctx context.Context, tx *store.Tx, height uint64) (uint32, error)
	BlockHeight(ctx context.Context, tx *store.Tx, blockID uint64) (uint64, error)
	BlockHeightGroupIndex(ctx context.Context, tx *store.Tx, blockID uint64) (uint32, error)
	InsertEdge(ctx context.Context, tx *store.Tx, e *store.Edge) error
	InsertOrUpdateHeightGroup(ctx context.Context, tx *store.Tx, hg *store.HeightGroup) error
	StoreAppConfig(ctx context.Context, tx *store.Tx, cfg *store.AppConfig) error
}

// nodeClient is the subset of *nodeclient.Client the sync engine needs.
type nodeClient interface {
	GetInfo(ctx context.Context) (*nodeclient.GetInfoResponse, error)
	GetBlockDAGInfo(ctx context.Context) (*nodeclient.GetBlockDAGInfoResponse, error)
	GetBlock(ctx context.Context, hash string) (*nodeclient.RPCBlock, error)
	GetBlocks(ctx context.Context, lowHash string) ([]nodeclient.RPCBlock, error)
	GetSink(ctx context.Context) (string, error)
	GetVirtualChainFromBlock(ctx context.Context, startHash string) (*nodeclient.GetVirtualChainFromBlockResponse, error)
	RegisterBlockAdded(ctx context.Context) (*nodeclient.BlockAddedStream, error)
	RegisterVirtualChainChanged(ctx context.Context) (*nodeclient.VirtualChainChangedStream, error)
}

// Options configures an Engine.
type Options struct {
	Network           string
	ProcessingVersion string
	ClearDB           bool
	Resync            bool
	IBDPollInterval   time.Duration
}

// Engine orchestrates resync and live processing against a store and a
// node client.
type Engine struct {
	store  dagStore
	client nodeClient
	log    *logrus.Entry
	opts   Options

	syncingMu sync.Mutex
	syncing   bool
}

// New constructs an Engine.
func New(st dagStore, client nodeClient, log *logrus.Entry, opts Options) *Engine {
	if opts.IBDPollInterval <= 0 {
		opts.IBDPollInterval = 3 * time.Second
	}
	return &Engine{store: st, client: client, log: log, opts: opts}
}

// Bootstrap registers the processing tier's and the node's versions in the
// store, waits for the node to finish its own initial block download, then
// runs the resync loop until the store's view of the DAG has caught up to
// the node's tip.
func (e *Engine) Bootstrap(ctx context.Context) error {
	info, err := e.client.GetInfo(ctx)
	if err != nil {
		return err
	}

	if err := e.registerAppConfig(ctx, info.ServerVersion); err != nil {
		return err
	}

	if err := e.waitForSyncedNode(ctx); err != nil {
		return err
	}

	return e.resyncDatabase(ctx)
}

func (e *Engine) registerAppConfig(ctx context.Context, tondidVersion string) error {
	cfg := &store.AppConfig{
		ID:                true,
		TondidVersion:     tondidVersion,
		ProcessingVersion: e.opts.ProcessingVersion,
		Network:           e.opts.Network,
	}
	e.log.WithFields(logrus.Fields{
		"processingVersion": cfg.ProcessingVersion,
		"nodeVersion":       cfg.TondidVersion,
		"network":           cfg.Network,
	}).Info("registering app config")

	return e.store.RunInTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		return e.store.StoreAppConfig(ctx, tx, cfg)
	})
}

func (e *Engine) waitForSyncedNode(ctx context.Context) error {
	cycle := 0
	for {
		info, err := e.client.GetInfo(ctx)
		if err != nil {
			return err
		}
		if info.IsSynced {
			e.log.Info("node is synced")
			return nil
		}
		if cycle == 0 {
			e.log.Info("waiting for the node to finish initial block download")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.opts.IBDPollInterval):
		}
		cycle++
	}
}

// resyncDatabase is the bootstrap resync loop: anchor on the pruning point,
// then repeatedly pull hash ranges up to the node's tip and insert them
// until the tail of a cycle is small enough to call the store caught up.
func (e *Engine) resyncDatabase(ctx context.Context) error {
	e.syncingMu.Lock()
	e.syncing = true
	e.syncingMu.Unlock()
	defer func() {
		e.syncingMu.Lock()
		e.syncing = false
		e.syncingMu.Unlock()
	}()

	return e.store.RunInTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		e.log.Info("resyncing database")

		dagInfo, err := e.client.GetBlockDAGInfo(ctx)
		if err != nil {
			return err
		}

		pruningHash := dagInfo.PruningPointHash
		if _, err := nodeclient.ParseHash(pruningHash); err != nil {
			return err
		}
		pruningBlock, err := e.client.GetBlock(ctx, pruningHash)
		if err != nil {
			return err
		}

		hasPruningBlock, err := e.store.DoesBlockExist(ctx, tx, pruningHash)
		if err != nil {
			return err
		}

		lowHash := pruningHash
		keepDatabase := hasPruningBlock && !e.opts.ClearDB

		if keepDatabase {
			e.log.WithField("pruningPoint", pruningHash).Info("pruning point already in the database, keeping it")

			pruningHeight, err := e.store.BlockHeightByHash(ctx, tx, pruningHash)
			if err != nil {
				return err
			}

			e.log.Info("loading cache")
			if err := e.store.LoadCache(ctx, tx, pruningHeight); err != nil {
				return err
			}

			e.log.Info("searching for an optimal sync starting point")
			lowHash, err = e.findOptimalSyncStartingBlock(ctx, tx, pruningHash, pruningBlock.Header.DAAScore)
			if err != nil {
				return err
			}
			if lowHash != pruningHash {
				e.log.WithField("startHash", lowHash).Info("optimal sync starting point found")
			} else {
				e.log.Info("sync starting point set at the pruning point")
			}
		} else {
			if err := e.store.Clear(ctx, tx); err != nil {
				return err
			}
			e.log.Info("database cleared")

			pruningDBBlock := &store.Block{
				BlockHash:                      pruningHash,
				Timestamp:                      pruningBlock.Header.Timestamp,
				ParentIDs:                      []uint64{},
				DAAScore:                       pruningBlock.Header.DAAScore,
				Height:                         0,
				HeightGroupIndex:               0,
				Color:                          store.ColorGray,
				IsInVirtualSelectedParentChain: true,
			}
			if err := e.store.InsertBlock(ctx, tx, pruningHash, pruningDBBlock); err != nil {
				return err
			}
			if err := e.store.InsertOrUpdateHeightGroup(ctx, tx, &store.HeightGroup{Height: 0, Size: 1}); err != nil {
				return err
			}
			e.log.WithField("pruningPoint", pruningHash).Info("pruning point added to the database")
		}

		vspcCycle := 0
		for {
			e.log.WithField("cycle", vspcCycle).Info("loading node blocks")
			hashes, err := e.getHashesToSelectedTip(ctx, lowHash)
			if err != nil {
				return err
			}
			e.log.WithFields(logrus.Fields{"cycle": vspcCycle, "count": len(hashes)}).Info("node blocks loaded")

			startIndex := 0
			if keepDatabase && vspcCycle == 0 {
				e.log.WithFields(logrus.Fields{"cycle": vspcCycle, "count": len(hashes)}).Info("syncing blocks with the database")
				if !e.opts.Resync {
					startIndex, err = e.store.FindLatestStoredBlockIndex(ctx, tx, hashes)
					if err != nil {
						return err
					}
					e.log.WithFields(logrus.Fields{"cycle": vspcCycle, "count": startIndex}).Info("blocks already exist in the database")
					startIndex = saturatingSub(startIndex, backoffBlocks)
				}
			} else {
				e.log.WithFields(logrus.Fields{"cycle": vspcCycle, "count": len(hashes)}).Info("adding blocks to the database")
			}

			totalToAdd := len(hashes) - startIndex
			for i := startIndex; i < len(hashes); i++ {
				blockHash := hashes[i]
				rpcBlock, err := e.client.GetBlock(ctx, blockHash)
				if err != nil {
					return err
				}

				if e.opts.Resync || (i-startIndex) >= singleBlockDispatchThreshold {
					if err := e.processBlock(ctx, tx, rpcBlock); err != nil {
						return err
					}
				} else {
					if err := e.processBlockAndDependencies(ctx, tx, blockHash, rpcBlock, pruningBlock); err != nil {
						return err
					}
				}

				added := i + 1 - startIndex
				if added%1000 == 0 || added == totalToAdd {
					e.log.WithFields(logrus.Fields{"cycle": vspcCycle, "added": added, "total": totalToAdd}).Info("added blocks to the database")
				}
			}

			if len(hashes) < vspcReconcileBlockCount {
				if err := e.resyncVirtualSelectedParentChain(ctx, tx); err != nil {
					return err
				}
				vspcCycle++
			}

			if vspcCycle > 1 && len(hashes) < nearTipBlockCount {
				e.log.WithFields(logrus.Fields{"cycle": vspcCycle, "count": len(hashes)}).Info("almost at tip, stopping resync")
				break
			}

			keepDatabase = true
		}

		e.log.Info("finished resyncing database")
		return nil
	})
}

func saturatingSub(a, b int) int {
	if b >= a {
		return 0
	}
	return a - b
}

// findOptimalSyncStartingBlock keeps the pruning-point fallback: searching
// backward from the pruning point for an earlier common ancestor is left as
// future work, so the resync loop always restarts at the pruning point.
func (e *Engine) findOptimalSyncStartingBlock(_ context.Context, _ *store.Tx, pruningPointHash string, _ uint64) (string, error) {
	return pruningPointHash, nil
}

func (e *Engine) getHashesToSelectedTip(ctx context.Context, lowHash string) ([]string, error) {
	blocks, err := e.client.GetBlocks(ctx, lowHash)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(blocks))
	for i, b := range blocks {
		hashes[i] = b.Header.Hash
	}
	return hashes, nil
}

// processBlockAndDependencies collects hash's full chain of missing parents
// and inserts them deepest-first, so every parent exists before its child
// is processed.
func (e *Engine) processBlockAndDependencies(ctx context.Context, tx *store.Tx, hash string, block *nodeclient.RPCBlock, pruningBlock *nodeclient.RPCBlock) error {
	b := batch.New(e.store, e.client, pruningBlock, e.log)
	if err := b.CollectBlockAndDependencies(ctx, tx, hash, *block); err != nil {
		return err
	}

	for {
		depHash, depBlock, ok := b.Pop()
		if !ok {
			break
		}
		if !b.Empty() {
			e.log.WithField("block", depHash).Warn("handling missing dependency block")
		}
		if err := e.processBlock(ctx, tx, &depBlock); err != nil {
			return err
		}
	}
	return nil
}

// processBlock inserts block if it is not already stored, then reconciles
// its selected parent and its red/blue merge-set ids from the node's verbose
// view. Block colors are set by VSPC reconciliation, not here.
func (e *Engine) processBlock(ctx context.Context, tx *store.Tx, block *nodeclient.RPCBlock) error {
	blockHash := block.Header.Hash
	e.log.WithField("block", blockHash).Debug("processing block")

	exists, err := e.store.DoesBlockExist(ctx, tx, blockHash)
	if err != nil {
		return err
	}

	if !exists {
		var existingParentHashes []string
		for _, parentHash := range block.Header.ParentHashes {
			parentExists, err := e.store.DoesBlockExist(ctx, tx, parentHash)
			if err != nil {
				return err
			}
			if parentExists {
				existingParentHashes = append(existingParentHashes, parentHash)
			} else {
				e.log.WithFields(logrus.Fields{"parent": parentHash, "block": blockHash}).Warn("parent does not exist in the store")
			}
		}

		parentIDs, parentHeights, err := e.store.BlockIDsAndHeightsByHashes(ctx, tx, existingParentHashes)
		if err != nil {
			return err
		}

		var blockHeight uint64
		for _, h := range parentHeights {
			if h+1 > blockHeight {
				blockHeight = h + 1
			}
		}

		heightGroupSize, err := e.store.HeightGroupSize(ctx, tx, blockHeight)
		if err != nil {
			return err
		}

		dbBlock := &store.Block{
			BlockHash:                      blockHash,
			Timestamp:                      block.Header.Timestamp,
			ParentIDs:                      parentIDs,
			DAAScore:                       block.Header.DAAScore,
			Height:                         blockHeight,
			HeightGroupIndex:               heightGroupSize,
			Color:                          store.ColorGray,
			IsInVirtualSelectedParentChain: false,
		}
		if err := e.store.InsertBlock(ctx, tx, blockHash, dbBlock); err != nil {
			return err
		}

		blockID, err := e.store.BlockIDByHash(ctx, tx, blockHash)
		if err != nil {
			return err
		}
		if err := e.store.InsertOrUpdateHeightGroup(ctx, tx, &store.HeightGroup{Height: blockHeight, Size: heightGroupSize + 1}); err != nil {
			return err
		}

		for _, parentID := range parentIDs {
			parentHeight, err := e.store.BlockHeight(ctx, tx, parentID)
			if err != nil {
				return err
			}
			parentGroupIndex, err := e.store.BlockHeightGroupIndex(ctx, tx, parentID)
			if err != nil {
				return err
			}
			edge := &store.Edge{
				FromBlockID:          blockID,
				ToBlockID:            parentID,
				FromHeight:           blockHeight,
				ToHeight:             parentHeight,
				FromHeightGroupIndex: heightGroupSize,
				ToHeightGroupIndex:   parentGroupIndex,
			}
			if err := e.store.InsertEdge(ctx, tx, edge); err != nil {
				return err
			}
		}
	} else {
		e.log.WithField("block", blockHash).Debug("block already exists in the store, not reprocessed")
	}

	freshBlock, err := e.client.GetBlock(ctx, blockHash)
	if err != nil {
		return err
	}

	if freshBlock.VerboseData.Hash == "" && freshBlock.VerboseData.SelectedParentHash == "" {
		e.log.WithField("block", blockHash).Warn("block is incomplete, leaving block processing")
		return nil
	}
	if freshBlock.VerboseData.IsHeaderOnly {
		e.log.WithField("block", blockHash).Warn("block is incomplete, leaving block processing")
		return nil
	}

	selectedParentID, err := e.store.BlockIDByHash(ctx, tx, freshBlock.VerboseData.SelectedParentHash)
	if err != nil {
		return fmt.Errorf("selected parent of block %s: %w", blockHash, err)
	}

	blockID, err := e.store.BlockIDByHash(ctx, tx, blockHash)
	if err != nil {
		return fmt.Errorf("id of block %s: %w", blockHash, err)
	}

	if err := e.store.UpdateBlockSelectedParent(ctx, tx, blockID, selectedParentID); err != nil {
		return fmt.Errorf("update selected parent of block %s: %w", blockHash, err)
	}

	redIDs, err := e.store.BlockIDsByHashes(ctx, tx, freshBlock.VerboseData.MergeSetRedsHashes)
	if err != nil {
		return err
	}
	blueIDs, err := e.store.BlockIDsByHashes(ctx, tx, freshBlock.VerboseData.MergeSetBluesHashes)
	if err != nil {
		return err
	}
	if err := e.store.UpdateBlockMergeSet(ctx, tx, blockID, redIDs, blueIDs); err != nil {
		return fmt.Errorf("update merge set of block %s: %w", blockHash, err)
	}

	e.log.WithField("block", blockHash).Debug("finished processing block")
	return nil
}

// resyncVirtualSelectedParentChain pulls the VSPC delta since the node's
// current sink and applies both the membership flips and the resulting
// merge-set recoloring.
func (e *Engine) resyncVirtualSelectedParentChain(ctx context.Context, tx *store.Tx) error {
	sinkHash, err := e.client.GetSink(ctx)
	if err != nil {
		return err
	}
	if _, err := nodeclient.ParseHash(sinkHash); err != nil {
		return err
	}
	return e.reconcileVirtualChain(ctx, tx, sinkHash)
}

func (e *Engine) reconcileVirtualChain(ctx context.Context, tx *store.Tx, fromHash string) error {
	delta, err := e.client.GetVirtualChainFromBlock(ctx, fromHash)
	if err != nil {
		return err
	}
	if err := e.applyVirtualChainDelta(ctx, tx, delta.RemovedChainBlockHashes, delta.AddedChainBlockHashes); err != nil {
		return err
	}
	e.log.Info("updated the virtual selected parent chain")
	return nil
}

func (e *Engine) applyVirtualChainDelta(ctx context.Context, tx *store.Tx, removedHashes, addedHashes []string) error {
	vspcFlips := make(map[uint64]bool)
	for _, h := range removedHashes {
		id, err := e.store.BlockIDByHash(ctx, tx, h)
		if err != nil {
			continue
		}
		vspcFlips[id] = false
	}
	for _, h := range addedHashes {
		id, err := e.store.BlockIDByHash(ctx, tx, h)
		if err != nil {
			continue
		}
		vspcFlips[id] = true
	}

	var vspcUpdates []store.BlockVSPCUpdate
	for id, inVSPC := range vspcFlips {
		vspcUpdates = append(vspcUpdates, store.BlockVSPCUpdate{BlockID: id, InVSPC: inVSPC})
	}
	if err := e.store.UpdateBlockIsInVSPC(ctx, tx, vspcUpdates); err != nil {
		return err
	}

	colors := make(map[uint64]store.Color)
	for _, addedHash := range addedHashes {
		addedBlock, err := e.client.GetBlock(ctx, addedHash)
		if err != nil {
			return err
		}
		for _, blueHash := range addedBlock.VerboseData.MergeSetBluesHashes {
			if id, err := e.store.BlockIDByHash(ctx, tx, blueHash); err == nil {
				colors[id] = store.ColorBlue
			}
		}
		for _, redHash := range addedBlock.VerboseData.MergeSetRedsHashes {
			if id, err := e.store.BlockIDByHash(ctx, tx, redHash); err == nil {
				colors[id] = store.ColorRed
			}
		}
	}

	var colorUpdates []store.BlockColorUpdate
	for id, color := range colors {
		colorUpdates = append(colorUpdates, store.BlockColorUpdate{BlockID: id, Color: color})
	}
	return e.store.UpdateBlockColors(ctx, tx, colorUpdates)
}

// IsSyncing reports whether the bootstrap resync is currently running.
func (e *Engine) IsSyncing() bool {
	e.syncingMu.Lock()
	defer e.syncingMu.Unlock()
	return e.syncing
}

// HandleBlockAdded processes a single live block-added notification inside
// its own transaction.
func (e *Engine) HandleBlockAdded(ctx context.Context, notification *nodeclient.BlockAddedNotification) error {
	return e.store.RunInTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		return e.processBlockAndDependencies(ctx, tx, notification.Block.Header.Hash, &notification.Block, nil)
	})
}

// HandleVirtualChainChanged applies a live VSPC-changed notification inside
// its own transaction.
func (e *Engine) HandleVirtualChainChanged(ctx context.Context, notification *nodeclient.VirtualChainChangedNotification) error {
	return e.store.RunInTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		return e.applyVirtualChainDelta(ctx, tx, notification.RemovedChainBlockHashes, notification.AddedChainBlockHashes)
	})
}

// RunLiveNotifications subscribes to the node's block-added and
// virtual-chain-changed streams and processes each as it arrives, until ctx
// is canceled or a stream ends. Each received notification is handled on its
// own goroutine, in its own transaction. Errors from individual notifications are
// logged and do not stop the loop; they mirror the upstream behavior of
// never letting one bad notification take down the whole process.
func (e *Engine) RunLiveNotifications(ctx context.Context) error {
	blockAdded, err := e.client.RegisterBlockAdded(ctx)
	if err != nil {
		return fmt.Errorf("%w: register block added: %v", apperr.ErrNodeUnavailable, err)
	}
	chainChanged, err := e.client.RegisterVirtualChainChanged(ctx)
	if err != nil {
		return fmt.Errorf("%w: register virtual chain changed: %v", apperr.ErrNodeUnavailable, err)
	}

	errCh := make(chan error, 2)

	go func() {
		for {
			notification, err := blockAdded.Recv()
			if err != nil {
				errCh <- err
				return
			}
			go func(n *nodeclient.BlockAddedNotification) {
				if err := e.HandleBlockAdded(ctx, n); err != nil {
					e.log.WithError(err).Warn("error processing block added notification")
				}
			}(notification)
		}
	}()

	go func() {
		for {
			notification, err := chainChanged.Recv()
			if err != nil {
				errCh <- err
				return
			}
			go func(n *nodeclient.VirtualChainChangedNotification) {
				if err := e.HandleVirtualChainChanged(ctx, n); err != nil {
					e.log.WithError(err).Warn("error processing virtual chain changed notification")
				}
			}(notification)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
