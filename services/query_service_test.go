package services

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"royale-indexer/events"
	"royale-indexer/models"
	"royale-indexer/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolp(v bool) *bool { return &v }

func seededQuery(t *testing.T) (*QueryService, *Projector, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	p, _ := newTestProjector(st)
	apply(t, p, fixtureStream()...)
	return NewQueryService(st, p), p, st
}

func TestQueryGetters(t *testing.T) {
	ctx := context.Background()
	q, _, _ := seededQuery(t)

	game, err := q.GetGame(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, playerA, game.Winner)

	_, err = q.GetGame(ctx, "42")
	assert.ErrorIs(t, err, ErrNotFound)

	player, err := q.GetPlayer(ctx, strings.ToUpper(playerA[2:]))
	assert.ErrorIs(t, err, ErrNotFound, "the 0x prefix is part of the id")

	player, err = q.GetPlayer(ctx, "0x"+strings.ToUpper(playerA[2:]))
	require.NoError(t, err)
	assert.Equal(t, playerA, player.ID)

	cell, err := q.GetCell(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, cell.Cursed)
	require.NotNil(t, cell.Player)
	assert.Equal(t, playerA, cell.Player.ID)
	assert.Equal(t, int64(85), cell.Player.Health)

	_, err = q.GetCell(ctx, 9, 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	q, _, _ := seededQuery(t)

	cell, err := q.GetCell(ctx, 2, 1)
	require.NoError(t, err)
	*cell.PlayerID = "0xdead"
	cell.Player.Health = 1

	again, err := q.GetCell(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, playerA, *again.PlayerID)
	assert.Equal(t, int64(85), again.Player.Health)

	games, err := q.ListGames(ctx, GameFilter{})
	require.NoError(t, err)
	games[0].Winner = "0xdead"
	game, err := q.GetGame(ctx, games[0].ID)
	require.NoError(t, err)
	assert.Equal(t, playerA, game.Winner)
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	q, _, _ := seededQuery(t)

	games, err := q.ListGames(ctx, GameFilter{})
	require.NoError(t, err)
	assert.Len(t, games, 2)

	on, err := q.ListGames(ctx, GameFilter{GameOn: boolp(true)})
	require.NoError(t, err)
	assert.Empty(t, on)

	alive, err := q.ListPlayers(ctx, PlayerFilter{Alive: boolp(true)})
	require.NoError(t, err)
	require.Len(t, alive, 1)
	assert.Equal(t, playerA, alive[0].ID)

	dead, err := q.ListPlayers(ctx, PlayerFilter{Alive: boolp(false)})
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, playerB, dead[0].ID)

	all, err := q.ListCells(ctx, CellFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 9)
	assert.Equal(t, "0-0", all[0].ID)
	assert.Equal(t, "0-1", all[1].ID)

	cursed, err := q.ListCells(ctx, CellFilter{Cursed: boolp(true)})
	require.NoError(t, err)
	var ids []string
	for _, c := range cursed {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"2-1", "2-2"}, ids)

	occupied, err := q.ListCells(ctx, CellFilter{Occupied: boolp(true), Cursed: boolp(true)})
	require.NoError(t, err)
	require.Len(t, occupied, 2)
	for _, c := range occupied {
		require.NotNil(t, c.Player, c.ID)
	}

	// Game 2's restart cleared the 2x2 corner, health drops included.
	withHealth, err := q.ListCells(ctx, CellFilter{HasHealth: boolp(true)})
	require.NoError(t, err)
	assert.Empty(t, withHealth)
}

func TestQueryBoard(t *testing.T) {
	ctx := context.Background()
	q, _, _ := seededQuery(t)

	board, err := q.Board(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), board.Game.Width)
	require.Len(t, board.Cells, 4)
	for _, c := range board.Cells {
		assert.Less(t, c.X, int64(2))
		assert.Less(t, c.Y, int64(2))
	}

	_, err = q.Board(ctx, "3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryStatus(t *testing.T) {
	ctx := context.Background()
	q, p, _ := seededQuery(t)

	status, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.StreamID(), status.StreamID)
	assert.Equal(t, 2, status.Games)
	assert.Equal(t, 2, status.Players)
	assert.Equal(t, 9, status.Cells)
	require.NotNil(t, status.Stats)
	assert.Equal(t, int64(2), status.Stats.Applied[events.KindMove])
	assert.Equal(t, int64(len(fixtureStream())), status.Checkpoint.EventsApplied)

	readOnly := NewQueryService(store.NewMemoryStore(), nil)
	status, err = readOnly.Status(ctx)
	require.NoError(t, err)
	assert.Nil(t, status.Stats)
	assert.Zero(t, status.Games)
}

func TestSelectFields(t *testing.T) {
	cell := CellView{ID: "1-1", X: 1, Y: 1, Cursed: true, Player: &models.Player{ID: playerA, Health: 40}}

	got, err := selectFields(cell, []string{"id", "player.health"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":     "1-1",
		"player": map[string]any{"health": float64(40)},
	}, got)

	got, err = selectFields([]CellView{cell, {ID: "0-0"}}, []string{"player", "player.id", "cursed"})
	require.NoError(t, err)
	list, ok := got.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	first := list[0].(map[string]any)
	assert.Equal(t, true, first["cursed"])
	assert.Contains(t, first["player"], "x", "a plain name keeps the whole nested record")
	assert.Equal(t, map[string]any{"cursed": false, "player": nil}, list[1])

	got, err = selectFields(cell, []string{"nope"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStreamCheckpoints(t *testing.T) {
	st := store.NewMemoryStore()
	p, _ := newTestProjector(st)
	q := NewQueryService(st, p)

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	tick := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.streamCheckpoints(ctx, w, tick)
	}()

	c := &chain{block: 1}
	tick <- time.Now() // unchanged, no event
	apply(t, p, events.Restart{Envelope: c.next(), GameID: 1, Width: 1, Height: 1, Winner: models.ZeroAddress})
	tick <- time.Now()
	tick <- time.Now()
	cancel()
	<-done

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, ":\n\n"))
	assert.Equal(t, 2, strings.Count(out, "event: checkpoint\n"))
	assert.Contains(t, out, `"lastLogIndex":1`)
}
