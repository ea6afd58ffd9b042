package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/cache"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Store{db: db, cache: cache.New(), log: logrus.NewEntry(logrus.New())}, mock
}

func TestDoesBlockExistCacheHit(t *testing.T) {
	s, mock := newTestStore(t)
	s.cache.Put("deadbeef", cache.BlockBase{ID: 1, Height: 1})

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(ctx context.Context, tx *Tx) error {
		exists, err := s.DoesBlockExist(ctx, tx, "deadbeef")
		require.NoError(t, err)
		require.True(t, exists)
		return nil
	})
	require.NoError(t, err)
}

func TestDoesBlockExistDatabaseMiss(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, height FROM blocks WHERE block_hash = \$1`).
		WithArgs("feedface").
		WillReturnRows(sqlmock.NewRows([]string{"id", "height"}))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(ctx context.Context, tx *Tx) error {
		exists, err := s.DoesBlockExist(ctx, tx, "feedface")
		require.NoError(t, err)
		require.False(t, exists)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBlockPopulatesCacheOnlyAfterCommit(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO blocks`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectCommit()

	b := &Block{
		ParentIDs: []uint64{1, 2},
		DAAScore:  10,
		Height:    5,
		Color:     ColorGray,
	}
	err := s.RunInTransaction(context.Background(), func(ctx context.Context, tx *Tx) error {
		_, ok := s.cache.Peek("newblock")
		require.False(t, ok, "cache must not be populated before commit")
		return s.InsertBlock(ctx, tx, "newblock", b)
	})
	require.NoError(t, err)

	base, ok := s.cache.Peek("newblock")
	require.True(t, ok, "cache must be populated after a successful commit")
	require.Equal(t, uint64(42), base.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackDiscardsPendingCacheWrites(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO blocks`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(99))
	mock.ExpectRollback()

	b := &Block{ParentIDs: []uint64{}, Color: ColorGray}
	err := s.RunInTransaction(context.Background(), func(ctx context.Context, tx *Tx) error {
		if err := s.InsertBlock(ctx, tx, "rolledback", b); err != nil {
			return err
		}
		return context.Canceled
	})
	require.Error(t, err)

	_, ok := s.cache.Peek("rolledback")
	require.False(t, ok, "a rolled-back transaction must never populate the cache")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindLatestStoredBlockIndex(t *testing.T) {
	s, mock := newTestStore(t)
	hashes := []string{"h0", "h1", "h2", "h3", "h4"}

	s.cache.Put("h0", cache.BlockBase{ID: 1})
	s.cache.Put("h1", cache.BlockBase{ID: 2})
	s.cache.Put("h2", cache.BlockBase{ID: 3})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, height FROM blocks WHERE block_hash = \$1`).
		WithArgs("h3").
		WillReturnRows(sqlmock.NewRows([]string{"id", "height"}))
	mock.ExpectCommit()

	var idx int
	err := s.RunInTransaction(context.Background(), func(ctx context.Context, tx *Tx) error {
		var err error
		idx, err = s.FindLatestStoredBlockIndex(ctx, tx, hashes)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 2, idx)
}
