package workers

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"royale-indexer/events"
	"royale-indexer/models"
	"royale-indexer/services"
	"royale-indexer/store"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 5 * time.Second
	testTick    = 10 * time.Millisecond
)

var contract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

type fakeChain struct {
	head       uint64
	logs       []types.Log
	headerHits map[uint64]int
	filterErr  error
	queries    []ethereum.FilterQuery
}

func newFakeChain(head uint64) *fakeChain {
	return &fakeChain{head: head, headerHits: make(map[uint64]int)}
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) { return f.head, nil }

func (f *fakeChain) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	n := number.Uint64()
	f.headerHits[n]++
	return &types.Header{Number: new(big.Int).Set(number), Time: 1_700_000_000 + n*12}, nil
}

// FilterLogs returns matching logs newest first, so the worker has to order them.
func (f *fakeChain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.queries = append(f.queries, q)
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	from, to := q.FromBlock.Uint64(), q.ToBlock.Uint64()
	var out []types.Log
	for i := len(f.logs) - 1; i >= 0; i-- {
		lg := f.logs[i]
		if lg.BlockNumber >= from && lg.BlockNumber <= to && lg.Address == q.Addresses[0] {
			out = append(out, lg)
		}
	}
	return out, nil
}

func (f *fakeChain) emit(t *testing.T, evt events.Event) {
	t.Helper()
	lg, err := events.Encode(contract, evt)
	require.NoError(t, err)
	f.logs = append(f.logs, lg)
}

func env(block, index int64) events.Envelope {
	return events.Envelope{BlockNumber: block, LogIndex: index, TxHash: common.BigToHash(big.NewInt(block*100 + index)).Hex()}
}

func scenario(t *testing.T, chain *fakeChain) {
	five := int64(5)
	chain.emit(t, events.Restart{Envelope: env(1, 0), GameID: 1, Width: 2, Height: 2, CurseInterval: &five, Winner: models.ZeroAddress})
	chain.emit(t, events.Register{Envelope: env(2, 0), Player: "0x00000000000000000000000000000000000000Aa", X: 0, Y: 0, LoogieID: 7})
	chain.emit(t, events.Ticker{Envelope: env(2, 1), GameID: 1, GameTicker: 1, GameOn: true})
	chain.emit(t, events.Move{Envelope: env(3, 0), Player: "0x00000000000000000000000000000000000000aa", X: 1, Y: 0, Health: 90, GameTicker: 1})
	chain.emit(t, events.NewCurseDrop{Envelope: env(5, 2), GameID: 1, CurseDropCount: 1, CurseNextGameTicker: 10, Positions: []events.Position{{X: 1, Y: 0}}})
}

func newWorker(chain *fakeChain, opts LogSyncOptions) (*LogSyncWorker, *store.MemoryStore, *services.Projector) {
	st := store.NewMemoryStore()
	projector := services.NewProjector(st, services.ProjectorOptions{StreamID: contract.Hex(), StartBlock: 1})
	opts.Contract = contract
	return NewLogSyncWorker(chain, events.NewDecoder(), projector, opts), st, projector
}

const addrAA = "0x00000000000000000000000000000000000000aa"

func TestSyncOnceFollowsChainInBatches(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(6)
	scenario(t, chain)
	w, st, projector := newWorker(chain, LogSyncOptions{BatchSize: 2, SkipUndecodable: true})

	res, err := w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.From)
	assert.Equal(t, int64(2), res.To)
	assert.Equal(t, 3, res.Applied)
	assert.False(t, res.CaughtUp())

	for !res.CaughtUp() {
		res, err = w.SyncOnce(ctx)
		require.NoError(t, err)
	}

	cp, err := projector.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cp.NextBlock)
	assert.Equal(t, int64(5), cp.LastBlock)
	assert.Equal(t, int64(2), cp.LastLogIndex)

	player, found, err := st.LoadPlayer(ctx, addrAA)
	require.NoError(t, err)
	require.True(t, found)
	assert.Zero(t, player.Health)
	assert.Equal(t, int64(1_700_000_000+3*12), player.LastActionTime)

	cell, _, err := st.LoadCell(ctx, "1-0")
	require.NoError(t, err)
	assert.True(t, cell.Cursed)
	assert.Equal(t, addrAA, cell.Occupant())

	res, err = w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.True(t, res.UpToDate)

	for _, q := range chain.queries {
		require.Len(t, q.Topics, 1)
		assert.Len(t, q.Topics[0], len(events.AllSignatures))
	}
	assert.Equal(t, 1, chain.headerHits[2], "block timestamps are cached per batch")
}

func TestSyncOnceWaitsForConfirmations(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(5)
	scenario(t, chain)
	w, _, projector := newWorker(chain, LogSyncOptions{Confirmations: 2})

	res, err := w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.SafeHead)
	assert.Equal(t, int64(3), res.To)
	assert.Equal(t, 4, res.Applied)

	cp, err := projector.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cp.NextBlock)

	res, err = w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.True(t, res.UpToDate)
}

func TestSyncOnceUndecodableLog(t *testing.T) {
	ctx := context.Background()
	broken := types.Log{
		Address:     contract,
		Topics:      []common.Hash{events.MoveV1.ID()},
		Data:        []byte{0x01},
		BlockNumber: 2,
		Index:       5,
	}

	t.Run("skipped", func(t *testing.T) {
		chain := newFakeChain(6)
		scenario(t, chain)
		chain.logs = append(chain.logs, broken)
		w, _, projector := newWorker(chain, LogSyncOptions{SkipUndecodable: true})

		res, err := w.SyncOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Undecodable)
		assert.Equal(t, 5, res.Applied)

		cp, err := projector.Checkpoint(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(7), cp.NextBlock)
	})

	t.Run("halts", func(t *testing.T) {
		chain := newFakeChain(6)
		scenario(t, chain)
		chain.logs = append(chain.logs, broken)
		w, _, projector := newWorker(chain, LogSyncOptions{SkipUndecodable: false})

		_, err := w.SyncOnce(ctx)
		var de *events.DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, uint64(2), de.BlockNumber)

		cp, err := projector.Checkpoint(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), cp.NextBlock, "range is not marked consumed")
		assert.Equal(t, int64(2), cp.LastBlock)
		assert.Equal(t, int64(1), cp.LastLogIndex, "logs before the broken one stay applied")

		assert.ErrorAs(t, w.Run(ctx), &de)
	})
}

func TestSyncOnceRPCFailureKeepsCheckpoint(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(6)
	scenario(t, chain)
	chain.filterErr = errors.New("rate limited")
	w, _, projector := newWorker(chain, LogSyncOptions{})

	_, err := w.SyncOnce(ctx)
	require.Error(t, err)

	cp, err := projector.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cp.NextBlock)

	chain.filterErr = nil
	res, err := w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Applied)
}

func TestReindexReplaysFromStart(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(6)
	scenario(t, chain)
	w, st, _ := newWorker(chain, LogSyncOptions{})

	_, err := w.SyncOnce(ctx)
	require.NoError(t, err)
	before, err := st.ListCells(ctx)
	require.NoError(t, err)

	cp, err := w.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cp.NextBlock)
	players, err := st.ListPlayers(ctx)
	require.NoError(t, err)
	assert.Empty(t, players)

	res, err := w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Applied)
	after, err := st.ListCells(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunStopsWithContext(t *testing.T) {
	chain := newFakeChain(6)
	scenario(t, chain)
	w, st, _ := newWorker(chain, LogSyncOptions{BatchSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		games, err := st.ListGames(context.Background())
		return err == nil && len(games) == 1 && games[0].CurseDropCount == 1
	}, testTimeout, testTick)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("Run did not stop")
	}
}
