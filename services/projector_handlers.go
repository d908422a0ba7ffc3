package services

import (
	"context"
	"strings"

	"royale-indexer/events"
	"royale-indexer/models"
	"royale-indexer/store"
)

// handlerRun is the state of one event's handler: where it writes and what it could not find.
// "now" is always the block timestamp, so a replay reproduces every field.
type handlerRun struct {
	p       *Projector
	st      store.Store
	env     events.Envelope
	kind    events.Kind
	missing []MissingReferenceError
}

func (h *handlerRun) miss(collection, key string) {
	h.missing = append(h.missing, MissingReferenceError{
		Event:       h.kind,
		Collection:  collection,
		Key:         key,
		BlockNumber: h.env.BlockNumber,
		LogIndex:    h.env.LogIndex,
	})
}

func (h *handlerRun) now() int64 { return h.env.BlockTimestamp }

// Load-or-create helpers. All default field values for new entities live here.

func (h *handlerRun) loadOrNewGame(ctx context.Context, gameID int64) (models.Game, bool, error) {
	id := gameKey(gameID)
	game, found, err := h.st.LoadGame(ctx, id)
	if err != nil || found {
		return game, false, err
	}
	return models.Game{
		ID:        id,
		GameID:    gameID,
		Winner:    models.ZeroAddress,
		CreatedAt: h.now(),
		UpdatedAt: h.now(),
	}, true, nil
}

func (h *handlerRun) loadOrNewPlayer(ctx context.Context, id string) (models.Player, bool, error) {
	player, found, err := h.st.LoadPlayer(ctx, id)
	if err != nil || found {
		return player, false, err
	}
	return models.Player{
		ID:        id,
		Health:    h.p.opts.InitialHealth,
		CreatedAt: h.now(),
		UpdatedAt: h.now(),
	}, true, nil
}

func (h *handlerRun) loadOrNewCell(ctx context.Context, x, y int64) (models.WorldMatrix, bool, error) {
	cell, found, err := h.st.LoadCell(ctx, models.CellID(x, y))
	if err != nil || found {
		return cell, false, err
	}
	return models.NewCell(x, y), true, nil
}

// restart finalizes the previous game's winner, (re)creates the new game and resets the board.
func (h *handlerRun) restart(ctx context.Context, e events.Restart) error {
	if !models.IsZeroAddress(e.Winner) {
		prevID := gameKey(e.PreviousGameID)
		prev, found, err := h.st.LoadGame(ctx, prevID)
		if err != nil {
			return err
		}
		if found {
			prev.Winner = strings.ToLower(e.Winner)
			prev.UpdatedAt = h.now()
			if err := h.st.UpsertGame(ctx, prev); err != nil {
				return err
			}
		} else {
			h.miss(store.CollectionGames, prevID)
		}
	}

	interval := h.p.opts.CurseInterval
	if e.CurseInterval != nil {
		interval = *e.CurseInterval
	}

	game, _, err := h.loadOrNewGame(ctx, e.GameID)
	if err != nil {
		return err
	}
	game.GameID = e.GameID
	game.Height = e.Height
	game.Width = e.Width
	game.Ticker = 0
	game.TickerBlock = e.BlockNumber
	game.RestartBlock = e.BlockNumber
	game.GameOn = false
	game.Winner = models.ZeroAddress
	game.CurseDropCount = 0
	game.CurseInterval = interval
	// First curse is predicted one interval after tick 0.
	game.CurseNextGameTicker = interval
	game.UpdatedAt = h.now()
	if err := h.st.UpsertGame(ctx, game); err != nil {
		return err
	}

	for x := int64(0); x < e.Width; x++ {
		for y := int64(0); y < e.Height; y++ {
			cell, _, err := h.loadOrNewCell(ctx, x, y)
			if err != nil {
				return err
			}
			cell.Cursed = false
			cell.SetOccupant("")
			cell.HealthAmountToCollect = 0
			if err := h.st.UpsertCell(ctx, cell); err != nil {
				return err
			}
		}
	}
	return nil
}

// register (re)initializes the player and points its cell at it. A previous cell of a
// re-registering player is left as is.
func (h *handlerRun) register(ctx context.Context, e events.Register) error {
	id := strings.ToLower(e.Player)
	player, _, err := h.loadOrNewPlayer(ctx, id)
	if err != nil {
		return err
	}
	health := h.p.opts.InitialHealth
	if e.InitialHealth != nil {
		health = *e.InitialHealth
	}
	player.LoogieID = e.LoogieID
	player.Health = health
	player.X = e.X
	player.Y = e.Y
	player.TransactionHash = e.TxHash
	player.Ticker = 0
	player.TickerBlock = e.BlockNumber
	player.LastActionTick = 0
	player.LastActionBlock = 0
	player.LastActionTime = 0
	player.UpdatedAt = h.now()
	if err := h.st.UpsertPlayer(ctx, player); err != nil {
		return err
	}

	cellID := models.CellID(e.X, e.Y)
	cell, found, err := h.st.LoadCell(ctx, cellID)
	if err != nil {
		return err
	}
	if !found {
		h.miss(store.CollectionCells, cellID)
		return nil
	}
	cell.SetOccupant(id)
	return h.st.UpsertCell(ctx, cell)
}

// move updates the player's stats and, when the coordinates change, hands the occupancy over
// from the old cell to the new one.
func (h *handlerRun) move(ctx context.Context, e events.Move) error {
	id := strings.ToLower(e.Player)
	player, found, err := h.st.LoadPlayer(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		h.miss(store.CollectionPlayers, id)
		return nil
	}

	oldX, oldY := player.X, player.Y
	player.Health = e.Health
	player.X = e.X
	player.Y = e.Y
	player.Ticker = e.GameTicker
	player.TickerBlock = e.BlockNumber
	player.LastActionTick = e.GameTicker
	player.LastActionBlock = e.BlockNumber
	player.LastActionTime = h.now()
	player.UpdatedAt = h.now()
	if err := h.st.UpsertPlayer(ctx, player); err != nil {
		return err
	}

	if oldX == e.X && oldY == e.Y {
		return nil
	}

	oldID := models.CellID(oldX, oldY)
	oldCell, found, err := h.st.LoadCell(ctx, oldID)
	if err != nil {
		return err
	}
	if found {
		oldCell.SetOccupant("")
		if err := h.st.UpsertCell(ctx, oldCell); err != nil {
			return err
		}
	} else {
		h.miss(store.CollectionCells, oldID)
	}

	newID := models.CellID(e.X, e.Y)
	newCell, found, err := h.st.LoadCell(ctx, newID)
	if err != nil {
		return err
	}
	if !found {
		h.miss(store.CollectionCells, newID)
		return nil
	}
	newCell.SetOccupant(id)
	return h.st.UpsertCell(ctx, newCell)
}

func (h *handlerRun) healthDrop(ctx context.Context, e events.NewHealthDrop) error {
	cell, _, err := h.loadOrNewCell(ctx, e.DropX, e.DropY)
	if err != nil {
		return err
	}
	cell.HealthAmountToCollect += e.Amount
	return h.st.UpsertCell(ctx, cell)
}

// curseDrop records the curse schedule, curses every listed cell and kills its occupant.
func (h *handlerRun) curseDrop(ctx context.Context, e events.NewCurseDrop) error {
	gameID := gameKey(e.GameID)
	game, found, err := h.st.LoadGame(ctx, gameID)
	if err != nil {
		return err
	}
	if found {
		game.CurseNextGameTicker = e.CurseNextGameTicker
		game.CurseDropCount = e.CurseDropCount
		game.UpdatedAt = h.now()
		if err := h.st.UpsertGame(ctx, game); err != nil {
			return err
		}
	} else {
		h.miss(store.CollectionGames, gameID)
	}

	for _, pos := range e.Positions {
		cellID := models.CellID(pos.X, pos.Y)
		cell, found, err := h.st.LoadCell(ctx, cellID)
		if err != nil {
			return err
		}
		if !found {
			h.miss(store.CollectionCells, cellID)
			continue
		}
		cell.Cursed = true
		if err := h.st.UpsertCell(ctx, cell); err != nil {
			return err
		}

		occupant := cell.Occupant()
		if occupant == "" {
			continue
		}
		player, found, err := h.st.LoadPlayer(ctx, occupant)
		if err != nil {
			return err
		}
		if !found {
			h.miss(store.CollectionPlayers, occupant)
			continue
		}
		player.Health = 0
		player.UpdatedAt = h.now()
		if err := h.st.UpsertPlayer(ctx, player); err != nil {
			return err
		}
	}
	return nil
}

func (h *handlerRun) ticker(ctx context.Context, e events.Ticker) error {
	gameID := gameKey(e.GameID)
	game, found, err := h.st.LoadGame(ctx, gameID)
	if err != nil {
		return err
	}
	if !found {
		h.miss(store.CollectionGames, gameID)
		return nil
	}
	game.Ticker = e.GameTicker
	game.TickerBlock = e.BlockNumber
	game.GameOn = e.GameOn
	game.UpdatedAt = h.now()
	return h.st.UpsertGame(ctx, game)
}
