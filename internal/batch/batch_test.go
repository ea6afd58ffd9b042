package batch

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/apperr"
	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/nodeclient"
	"github.com/tsukifune-kosei/tondi-graph-inspector-processing/internal/store"
)

type fakeDB struct {
	existing map[string]bool
}

func (f *fakeDB) DoesBlockExist(_ context.Context, _ *store.Tx, hash string) (bool, error) {
	return f.existing[hash], nil
}

type fakeClient struct {
	blocks map[string]nodeclient.RPCBlock
}

func (f *fakeClient) GetBlock(_ context.Context, hash string) (*nodeclient.RPCBlock, error) {
	b, ok := f.blocks[hash]
	if !ok {
		return nil, apperr.ErrNodeNotFound
	}
	return &b, nil
}

func testLog() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func TestAddDeduplicatesAndRespectsScope(t *testing.T) {
	pruning := &nodeclient.RPCBlock{Header: nodeclient.RPCBlockHeader{DAAScore: 100}}
	b := New(&fakeDB{}, &fakeClient{}, pruning, testLog())

	tooOld := nodeclient.RPCBlock{Header: nodeclient.RPCBlockHeader{DAAScore: 50}}
	b.Add("old", tooOld)
	require.True(t, b.Empty(), "out-of-scope block must not be added")

	inScope := nodeclient.RPCBlock{Header: nodeclient.RPCBlockHeader{DAAScore: 150}}
	b.Add("new", inScope)
	require.False(t, b.Empty())
	require.True(t, b.Has("new"))

	b.Add("new", inScope)
	hash, _, ok := b.Pop()
	require.True(t, ok)
	require.Equal(t, "new", hash)
	_, _, ok = b.Pop()
	require.False(t, ok, "duplicate add must not have grown the batch")
}

func TestCollectBlockAndDependenciesWalksMissingParents(t *testing.T) {
	child := nodeclient.RPCBlock{Header: nodeclient.RPCBlockHeader{Hash: "child", ParentHashes: []string{"parent1"}, DAAScore: 10}}
	parent1 := nodeclient.RPCBlock{Header: nodeclient.RPCBlockHeader{Hash: "parent1", ParentHashes: []string{"parent2"}, DAAScore: 9}}
	parent2 := nodeclient.RPCBlock{Header: nodeclient.RPCBlockHeader{Hash: "parent2", ParentHashes: nil, DAAScore: 8}}

	db := &fakeDB{existing: map[string]bool{"parent2": true}}
	client := &fakeClient{blocks: map[string]nodeclient.RPCBlock{"parent1": parent1}}

	b := New(db, client, nil, testLog())
	err := b.CollectBlockAndDependencies(context.Background(), nil, "child", child)
	require.NoError(t, err)

	require.True(t, b.Has("child"))
	require.True(t, b.Has("parent1"))
	require.False(t, b.Has("parent2"), "parent2 already exists in the store and must not be queued")
}

func TestCollectBlockAndDependenciesIgnoresUnknownParent(t *testing.T) {
	child := nodeclient.RPCBlock{Header: nodeclient.RPCBlockHeader{Hash: "child", ParentHashes: []string{"ghost"}, DAAScore: 10}}

	db := &fakeDB{existing: map[string]bool{}}
	client := &fakeClient{blocks: map[string]nodeclient.RPCBlock{}}

	b := New(db, client, nil, testLog())
	err := b.CollectBlockAndDependencies(context.Background(), nil, "child", child)
	require.NoError(t, err)
	require.True(t, b.Has("child"))
	require.False(t, b.Has("ghost"))
}

func TestCollectBlockAndDependenciesTripwire(t *testing.T) {
	db := &fakeDB{existing: map[string]bool{}}
	blocks := map[string]nodeclient.RPCBlock{}

	var parents []string
	for i := 0; i < MaxMissingDependencies+5; i++ {
		hash := "h" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		parents = append(parents, hash)
	}
	for i, hash := range parents {
		var nextParents []string
		if i+1 < len(parents) {
			nextParents = []string{parents[i+1]}
		}
		blocks[hash] = nodeclient.RPCBlock{Header: nodeclient.RPCBlockHeader{Hash: hash, ParentHashes: nextParents, DAAScore: uint64(i)}}
	}
	client := &fakeClient{blocks: blocks}

	root := nodeclient.RPCBlock{Header: nodeclient.RPCBlockHeader{Hash: "root", ParentHashes: []string{parents[0]}, DAAScore: 0}}
	b := New(db, client, nil, testLog())
	err := b.CollectBlockAndDependencies(context.Background(), nil, "root", root)
	require.ErrorIs(t, err, apperr.ErrTooManyMissingDependencies)
}
