// Package store is the persistence layer: typed operations over the four
// tables (blocks, edges, height_groups, app_config), transactional scoping,
// and cache coherency. It exclusively owns the block-identity cache and the
// database connection; callers never mutate the cache directly.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/apperr"
	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/cache"
)

// Store is a cheaply cloneable handle: a single underlying *sql.DB and cache,
// shared by value across every goroutine that needs it. There are no
// back-pointers between Store and its callers.
type Store struct {
	db    *sql.DB
	cache *cache.BlockCache
	log   *logrus.Entry

	// txMu serializes logical transactions the way a single pooled
	// connection would: at most one run_in_transaction closure executes
	// at a time, matching the "one database connection protected by a
	// mutex" resource model.
	txMu sync.Mutex
}

// Open connects to the PostgreSQL store identified by dsn and constructs an
// empty block-identity cache.
func Open(ctx context.Context, dsn string, log *logrus.Entry) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", apperr.ErrStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: ping: %v", apperr.ErrStoreUnavailable, err)
	}
	return &Store{db: db, cache: cache.New(), log: log}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// pendingCachePut is a cache mutation requested mid-transaction, deferred
// until commit so a rolled-back transaction can never leave the shared
// cache holding a phantom entry.
type pendingCachePut struct {
	hash string
	base cache.BlockBase
}

// Tx is the scoped transaction handle passed into a RunInTransaction
// closure. It never escapes the closure.
type Tx struct {
	sqlTx   *sql.Tx
	pending []pendingCachePut
}

func (t *Tx) queueCachePut(hash string, base cache.BlockBase) {
	t.pending = append(t.pending, pendingCachePut{hash: hash, base: base})
}

// RunInTransaction acquires the connection, begins a transaction, runs fn
// with the transaction handle, and commits on success or rolls back on
// failure. Failure of fn aborts the transaction; the cache is never
// populated from an aborted transaction's work, because cache mutations
// requested during fn are only applied after a successful commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", apperr.ErrStoreUnavailable, err)
	}

	tx := &Tx{sqlTx: sqlTx}
	if err := fn(ctx, tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.log.WithError(rbErr).Warn("rollback failed after transaction error")
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", apperr.ErrStoreUnavailable, err)
	}

	for _, p := range tx.pending {
		s.cache.Put(p.hash, p.base)
	}
	return nil
}

// Clear truncates blocks, edges, and height_groups, and clears the cache.
// Must be called from within RunInTransaction; the cache is cleared
// immediately (not deferred to commit) because a clear is idempotent and
// re-deriving it from a rolled-back truncate is harmless - the next
// load_cache or does_block_exist repopulates it from whatever the database
// actually contains.
func (s *Store) Clear(ctx context.Context, tx *Tx) error {
	s.cache.Clear()
	for _, stmt := range []string{
		"TRUNCATE TABLE blocks, edges, height_groups CASCADE",
	} {
		if _, err := tx.sqlTx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: clear: %v", apperr.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// LoadCache clears the cache and repopulates it from every stored block at
// or above minHeight.
func (s *Store) LoadCache(ctx context.Context, tx *Tx, minHeight uint64) error {
	rows, err := tx.sqlTx.QueryContext(ctx,
		`SELECT id, block_hash, height FROM blocks WHERE height >= $1`, int64(minHeight))
	if err != nil {
		return fmt.Errorf("%w: load_cache: %v", apperr.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	s.cache.Clear()
	for rows.Next() {
		var id, height int64
		var hash string
		if err := rows.Scan(&id, &hash, &height); err != nil {
			return fmt.Errorf("%w: load_cache scan: %v", apperr.ErrStoreUnavailable, err)
		}
		s.cache.Put(hash, cache.BlockBase{ID: uint64(id), Height: uint64(height)})
	}
	return rows.Err()
}

// DoesBlockExist reports whether block_hash exists, checking the cache
// first and populating it on a database hit.
func (s *Store) DoesBlockExist(ctx context.Context, tx *Tx, blockHash string) (bool, error) {
	if _, ok := s.cache.Peek(blockHash); ok {
		return true, nil
	}

	var id, height int64
	err := tx.sqlTx.QueryRowContext(ctx,
		`SELECT id, height FROM blocks WHERE block_hash = $1`, blockHash).Scan(&id, &height)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: does_block_exist: %v", apperr.ErrStoreUnavailable, err)
	}

	tx.queueCachePut(blockHash, cache.BlockBase{ID: uint64(id), Height: uint64(height)})
	return true, nil
}

// InsertBlock inserts block and populates the cache with the assigned id. It
// fails if block_hash already exists (unique constraint).
func (s *Store) InsertBlock(ctx context.Context, tx *Tx, blockHash string, b *Block) error {
	parentIDsJSON, err := json.Marshal(b.ParentIDs)
	if err != nil {
		return fmt.Errorf("marshal parent_ids: %w", err)
	}
	redJSON, err := json.Marshal(emptyIfNil(b.MergeSetRedIDs))
	if err != nil {
		return fmt.Errorf("marshal merge_set_red_ids: %w", err)
	}
	blueJSON, err := json.Marshal(emptyIfNil(b.MergeSetBlueIDs))
	if err != nil {
		return fmt.Errorf("marshal merge_set_blue_ids: %w", err)
	}

	var selectedParent any
	if b.SelectedParentID != nil {
		selectedParent = int64(*b.SelectedParentID)
	}

	var id int64
	err = tx.sqlTx.QueryRowContext(ctx, `
		INSERT INTO blocks (
			block_hash, timestamp, parent_ids, daa_score, height,
			height_group_index, selected_parent_id, color,
			is_in_virtual_selected_parent_chain, merge_set_red_ids, merge_set_blue_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		blockHash, b.Timestamp, parentIDsJSON, int64(b.DAAScore), int64(b.Height),
		int32(b.HeightGroupIndex), selectedParent, string(b.Color),
		b.IsInVirtualSelectedParentChain, redJSON, blueJSON,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("%w: insert_block: %v", apperr.ErrStoreUnavailable, err)
	}

	tx.queueCachePut(blockHash, cache.BlockBase{ID: uint64(id), Height: b.Height})
	return nil
}

const blockColumns = `id, block_hash, timestamp, parent_ids, daa_score, height,
	height_group_index, selected_parent_id, color,
	is_in_virtual_selected_parent_chain, merge_set_red_ids, merge_set_blue_ids`

func scanBlock(row interface {
	Scan(dest ...any) error
}) (*Block, error) {
	var (
		id, timestamp, daaScore, height int64
		heightGroupIndex                int32
		selectedParentID                sql.NullInt64
		colorStr                        string
		isInVSPC                        bool
		parentIDsJSON, redJSON, blueJSON []byte
		blockHash                       string
	)
	if err := row.Scan(&id, &blockHash, &timestamp, &parentIDsJSON, &daaScore, &height,
		&heightGroupIndex, &selectedParentID, &colorStr, &isInVSPC, &redJSON, &blueJSON); err != nil {
		return nil, err
	}

	b := &Block{
		ID:                             uint64(id),
		BlockHash:                      blockHash,
		Timestamp:                      timestamp,
		DAAScore:                       uint64(daaScore),
		Height:                         uint64(height),
		HeightGroupIndex:               uint32(heightGroupIndex),
		Color:                          Color(colorStr),
		IsInVirtualSelectedParentChain: isInVSPC,
	}
	if selectedParentID.Valid {
		v := uint64(selectedParentID.Int64)
		b.SelectedParentID = &v
	}
	if err := json.Unmarshal(parentIDsJSON, &b.ParentIDs); err != nil {
		return nil, fmt.Errorf("unmarshal parent_ids: %w", err)
	}
	if err := json.Unmarshal(redJSON, &b.MergeSetRedIDs); err != nil {
		return nil, fmt.Errorf("unmarshal merge_set_red_ids: %w", err)
	}
	if err := json.Unmarshal(blueJSON, &b.MergeSetBlueIDs); err != nil {
		return nil, fmt.Errorf("unmarshal merge_set_blue_ids: %w", err)
	}
	return b, nil
}

// GetBlock fetches the full row for id. Fails if missing.
func (s *Store) GetBlock(ctx context.Context, tx *Tx, id uint64) (*Block, error) {
	row := tx.sqlTx.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE id = $1`, int64(id))
	b, err := scanBlock(row)
	if err != nil {
		return nil, fmt.Errorf("%w: get_block(%d): %v", apperr.ErrStoreUnavailable, id, err)
	}
	return b, nil
}

// BlockIDByHash resolves a hash to its store id, cache-first.
func (s *Store) BlockIDByHash(ctx context.Context, tx *Tx, blockHash string) (uint64, error) {
	if base, ok := s.cache.Peek(blockHash); ok {
		return base.ID, nil
	}

	var id, height int64
	err := tx.sqlTx.QueryRowContext(ctx,
		`SELECT id, height FROM blocks WHERE block_hash = $1`, blockHash).Scan(&id, &height)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: block hash %s not found", apperr.ErrConsistencyMissing, blockHash)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: block_id_by_hash: %v", apperr.ErrStoreUnavailable, err)
	}

	tx.queueCachePut(blockHash, cache.BlockBase{ID: uint64(id), Height: uint64(height)})
	return uint64(id), nil
}

// BlockHeightByHash resolves a hash to its height, cache-first.
func (s *Store) BlockHeightByHash(ctx context.Context, tx *Tx, blockHash string) (uint64, error) {
	if base, ok := s.cache.Peek(blockHash); ok {
		return base.Height, nil
	}

	var id, height int64
	err := tx.sqlTx.QueryRowContext(ctx,
		`SELECT id, height FROM blocks WHERE block_hash = $1`, blockHash).Scan(&id, &height)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: block hash %s not found", apperr.ErrConsistencyMissing, blockHash)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: block_height_by_hash: %v", apperr.ErrStoreUnavailable, err)
	}

	tx.queueCachePut(blockHash, cache.BlockBase{ID: uint64(id), Height: uint64(height)})
	return uint64(height), nil
}

// BlockIDsByHashes resolves a batch of hashes to ids, preserving order.
// Unresolved hashes are simply omitted, matching the original's
// unwrap_or_default behavior at merge-set resolution call sites.
func (s *Store) BlockIDsByHashes(ctx context.Context, tx *Tx, hashes []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(hashes))
	for _, h := range hashes {
		id, err := s.BlockIDByHash(ctx, tx, h)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// BlockIDsAndHeightsByHashes resolves a batch of hashes to (ids, heights) in
// input order, skipping any hash the store does not know about.
func (s *Store) BlockIDsAndHeightsByHashes(ctx context.Context, tx *Tx, hashes []string) ([]uint64, []uint64, error) {
	ids := make([]uint64, 0, len(hashes))
	heights := make([]uint64, 0, len(hashes))
	for _, h := range hashes {
		id, err := s.BlockIDByHash(ctx, tx, h)
		if err != nil {
			continue
		}
		height, err := s.BlockHeightByHash(ctx, tx, h)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		heights = append(heights, height)
	}
	return ids, heights, nil
}

// UpdateBlockSelectedParent overwrites a block's selected parent id.
func (s *Store) UpdateBlockSelectedParent(ctx context.Context, tx *Tx, blockID, parentID uint64) error {
	_, err := tx.sqlTx.ExecContext(ctx,
		`UPDATE blocks SET selected_parent_id = $1 WHERE id = $2`, int64(parentID), int64(blockID))
	if err != nil {
		return fmt.Errorf("%w: update_block_selected_parent: %v", apperr.ErrStoreUnavailable, err)
	}
	return nil
}

// UpdateBlockMergeSet overwrites a block's red/blue merge-set id arrays.
func (s *Store) UpdateBlockMergeSet(ctx context.Context, tx *Tx, blockID uint64, redIDs, blueIDs []uint64) error {
	redJSON, err := json.Marshal(emptyIfNil(redIDs))
	if err != nil {
		return fmt.Errorf("marshal merge_set_red_ids: %w", err)
	}
	blueJSON, err := json.Marshal(emptyIfNil(blueIDs))
	if err != nil {
		return fmt.Errorf("marshal merge_set_blue_ids: %w", err)
	}
	_, err = tx.sqlTx.ExecContext(ctx,
		`UPDATE blocks SET merge_set_red_ids = $1, merge_set_blue_ids = $2 WHERE id = $3`,
		redJSON, blueJSON, int64(blockID))
	if err != nil {
		return fmt.Errorf("%w: update_block_merge_set: %v", apperr.ErrStoreUnavailable, err)
	}
	return nil
}

// BlockVSPCUpdate pairs a block id with its new VSPC membership flag.
type BlockVSPCUpdate struct {
	BlockID uint64
	InVSPC  bool
}

// UpdateBlockIsInVSPC applies a batch of VSPC membership flips.
func (s *Store) UpdateBlockIsInVSPC(ctx context.Context, tx *Tx, updates []BlockVSPCUpdate) error {
	for _, u := range updates {
		if _, err := tx.sqlTx.ExecContext(ctx,
			`UPDATE blocks SET is_in_virtual_selected_parent_chain = $1 WHERE id = $2`,
			u.InVSPC, int64(u.BlockID)); err != nil {
			return fmt.Errorf("%w: update_block_is_in_vspc: %v", apperr.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// BlockColorUpdate pairs a block id with its new color.
type BlockColorUpdate struct {
	BlockID uint64
	Color   Color
}

// UpdateBlockColors applies a batch of color repaints.
func (s *Store) UpdateBlockColors(ctx context.Context, tx *Tx, updates []BlockColorUpdate) error {
	for _, u := range updates {
		if _, err := tx.sqlTx.ExecContext(ctx,
			`UPDATE blocks SET color = $1 WHERE id = $2`, string(u.Color), int64(u.BlockID)); err != nil {
			return fmt.Errorf("%w: update_block_colors: %v", apperr.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// BlockDAAScoreUpdate pairs a block id with its refreshed DAA score.
type BlockDAAScoreUpdate struct {
	BlockID  uint64
	DAAScore uint64
}

// UpdateBlockDAAScores applies a batch of DAA-score overwrites.
func (s *Store) UpdateBlockDAAScores(ctx context.Context, tx *Tx, updates []BlockDAAScoreUpdate) error {
	for _, u := range updates {
		if _, err := tx.sqlTx.ExecContext(ctx,
			`UPDATE blocks SET daa_score = $1 WHERE id = $2`, int64(u.DAAScore), int64(u.BlockID)); err != nil {
			return fmt.Errorf("%w: update_block_daa_scores: %v", apperr.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// FindLatestStoredBlockIndex binary-searches an oldest->newest hash sequence
// for the highest index whose hash exists in the store. Existence is assumed
// monotone non-increasing over the sequence; if none exist, returns 0.
func (s *Store) FindLatestStoredBlockIndex(ctx context.Context, tx *Tx, hashes []string) (int, error) {
	if len(hashes) == 0 {
		return 0, nil
	}
	low, high := 0, len(hashes)
	for high-low > 1 {
		cur := (high + low) / 2
		exists, err := s.DoesBlockExist(ctx, tx, hashes[cur])
		if err != nil {
			return 0, err
		}
		if exists {
			low = cur
		} else {
			high = cur
		}
	}
	return low, nil
}

// BlockIDByDAAScore returns the id of the block whose daa_score is closest to
// score; ties are broken in favor of the lowest id.
func (s *Store) BlockIDByDAAScore(ctx context.Context, tx *Tx, score uint64) (uint64, error) {
	var id int64
	err := tx.sqlTx.QueryRowContext(ctx,
		`SELECT id FROM blocks ORDER BY ABS(daa_score - $1), id LIMIT 1`, int64(score)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: block_id_by_daa_score: %v", apperr.ErrStoreUnavailable, err)
	}
	return uint64(id), nil
}

// BlockCountAtDAAScore counts blocks whose daa_score equals score exactly.
func (s *Store) BlockCountAtDAAScore(ctx context.Context, tx *Tx, score uint64) (uint32, error) {
	var count int64
	err := tx.sqlTx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocks WHERE daa_score = $1`, int64(score)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: block_count_at_daa_score: %v", apperr.ErrStoreUnavailable, err)
	}
	return uint32(count), nil
}

// HighestBlockHeight returns the maximum height among the given ids, or 0 if
// ids is empty or none match.
func (s *Store) HighestBlockHeight(ctx context.Context, tx *Tx, ids []uint64) (uint64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	pgIDs := make([]int64, len(ids))
	for i, id := range ids {
		pgIDs[i] = int64(id)
	}
	var height sql.NullInt64
	err := tx.sqlTx.QueryRowContext(ctx,
		`SELECT MAX(height) FROM blocks WHERE id = ANY($1)`, pgIDs).Scan(&height)
	if err != nil {
		return 0, fmt.Errorf("%w: highest_block_height: %v", apperr.ErrStoreUnavailable, err)
	}
	if !height.Valid {
		return 0, nil
	}
	return uint64(height.Int64), nil
}

// HighestBlockInVSPC returns the highest-height block currently flagged as
// being in the virtual selected parent chain.
func (s *Store) HighestBlockInVSPC(ctx context.Context, tx *Tx) (*Block, error) {
	row := tx.sqlTx.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE is_in_virtual_selected_parent_chain = $1 ORDER BY height DESC LIMIT 1`, true)
	b, err := scanBlock(row)
	if err != nil {
		return nil, fmt.Errorf("%w: highest_block_in_vspc: %v", apperr.ErrStoreUnavailable, err)
	}
	return b, nil
}

// HeightGroupSize returns the number of blocks currently placed at height,
// or 0 if no height_groups row exists yet.
func (s *Store) HeightGroupSize(ctx context.Context, tx *Tx, height uint64) (uint32, error) {
	var size int32
	err := tx.sqlTx.QueryRowContext(ctx,
		`SELECT size FROM height_groups WHERE height = $1`, int64(height)).Scan(&size)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: height_group_size: %v", apperr.ErrStoreUnavailable, err)
	}
	return uint32(size), nil
}

// BlockHeight returns a single block's height by id.
func (s *Store) BlockHeight(ctx context.Context, tx *Tx, blockID uint64) (uint64, error) {
	var height int64
	err := tx.sqlTx.QueryRowContext(ctx,
		`SELECT height FROM blocks WHERE id = $1`, int64(blockID)).Scan(&height)
	if err != nil {
		return 0, fmt.Errorf("%w: block_height(%d): %v", apperr.ErrStoreUnavailable, blockID, err)
	}
	return uint64(height), nil
}

// BlockHeightGroupIndex returns a single block's height-group index by id.
func (s *Store) BlockHeightGroupIndex(ctx context.Context, tx *Tx, blockID uint64) (uint32, error) {
	var idx int32
	err := tx.sqlTx.QueryRowContext(ctx,
		`SELECT height_group_index FROM blocks WHERE id = $1`, int64(blockID)).Scan(&idx)
	if err != nil {
		return 0, fmt.Errorf("%w: block_height_group_index(%d): %v", apperr.ErrStoreUnavailable, blockID, err)
	}
	return uint32(idx), nil
}

// InsertEdge inserts edge, idempotent on the (from, to) unique constraint.
func (s *Store) InsertEdge(ctx context.Context, tx *Tx, e *Edge) error {
	_, err := tx.sqlTx.ExecContext(ctx, `
		INSERT INTO edges (from_block_id, to_block_id, from_height, to_height, from_height_group_index, to_height_group_index)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (from_block_id, to_block_id) DO NOTHING
	`, int64(e.FromBlockID), int64(e.ToBlockID), int64(e.FromHeight), int64(e.ToHeight),
		int32(e.FromHeightGroupIndex), int32(e.ToHeightGroupIndex))
	if err != nil {
		return fmt.Errorf("%w: insert_edge: %v", apperr.ErrStoreUnavailable, err)
	}
	return nil
}

// InsertOrUpdateHeightGroup upserts a height_groups row.
func (s *Store) InsertOrUpdateHeightGroup(ctx context.Context, tx *Tx, hg *HeightGroup) error {
	_, err := tx.sqlTx.ExecContext(ctx, `
		INSERT INTO height_groups (height, size)
		VALUES ($1, $2)
		ON CONFLICT (height) DO UPDATE SET size = EXCLUDED.size
	`, int64(hg.Height), int32(hg.Size))
	if err != nil {
		return fmt.Errorf("%w: insert_or_update_height_group: %v", apperr.ErrStoreUnavailable, err)
	}
	return nil
}

// GetAppConfig fetches the singleton app_config row.
func (s *Store) GetAppConfig(ctx context.Context, tx *Tx) (*AppConfig, error) {
	var cfg AppConfig
	err := tx.sqlTx.QueryRowContext(ctx,
		`SELECT id, tondid_version, processing_version, network FROM app_config WHERE id = $1`, true).
		Scan(&cfg.ID, &cfg.TondidVersion, &cfg.ProcessingVersion, &cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("%w: get_app_config: %v", apperr.ErrStoreUnavailable, err)
	}
	return &cfg, nil
}

// StoreAppConfig upserts the singleton app_config row.
func (s *Store) StoreAppConfig(ctx context.Context, tx *Tx, cfg *AppConfig) error {
	_, err := tx.sqlTx.ExecContext(ctx, `
		INSERT INTO app_config (id, tondid_version, processing_version, network)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			tondid_version = EXCLUDED.tondid_version,
			processing_version = EXCLUDED.processing_version,
			network = EXCLUDED.network
	`, true, cfg.TondidVersion, cfg.ProcessingVersion, cfg.Network)
	if err != nil {
		return fmt.Errorf("%w: store_app_config: %v", apperr.ErrStoreUnavailable, err)
	}
	return nil
}

func emptyIfNil(ids []uint64) []uint64 {
	if ids == nil {
		return []uint64{}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
