package services

import (
	"context"
	"errors"
	"strings"

	"royale-indexer/models"
	"royale-indexer/store"
)

// ErrNotFound is returned by the query getters for an absent id.
var ErrNotFound = errors.New("not found")

// CellView is a WorldMatrix cell with its occupant resolved.
// PlayerID is kept when the occupant cannot be resolved.
type CellView struct {
	ID                    string         `json:"id"`
	X                     int64          `json:"x"`
	Y                     int64          `json:"y"`
	Cursed                bool           `json:"cursed"`
	HealthAmountToCollect int64          `json:"healthAmountToCollect"`
	PlayerID              *string        `json:"playerId"`
	Player                *models.Player `json:"player"`
}

// BoardView is a game with the cells inside its dimensions.
type BoardView struct {
	Game  models.Game `json:"game"`
	Cells []CellView  `json:"cells"`
}

// StatusView reports how far the projection got.
type StatusView struct {
	StreamID   string            `json:"streamId"`
	Checkpoint models.Checkpoint `json:"checkpoint"`
	Stats      *ProjectorStats   `json:"stats,omitempty"`
	Games      int               `json:"games"`
	Players    int               `json:"players"`
	Cells      int               `json:"cells"`
}

// Filters. A nil field does not filter.
type GameFilter struct {
	GameOn *bool
}

type PlayerFilter struct {
	Alive *bool
}

type CellFilter struct {
	Cursed    *bool
	Occupied  *bool
	HasHealth *bool
}

func matches(want *bool, got bool) bool {
	return want == nil || *want == got
}

// QueryService is the read side. Every value it returns is a copy.
type QueryService struct {
	store     store.Store
	projector *Projector
}

// NewQueryService reads from st. projector may be nil, in which case Status has no checkpoint.
func NewQueryService(st store.Store, projector *Projector) *QueryService {
	return &QueryService{store: st, projector: projector}
}

func (s *QueryService) GetGame(ctx context.Context, id string) (models.Game, error) {
	game, found, err := s.store.LoadGame(ctx, strings.TrimSpace(id))
	if err != nil {
		return models.Game{}, err
	}
	if !found {
		return models.Game{}, ErrNotFound
	}
	return game, nil
}

// GetPlayer looks a player up by address, in any letter case.
func (s *QueryService) GetPlayer(ctx context.Context, id string) (models.Player, error) {
	player, found, err := s.store.LoadPlayer(ctx, strings.ToLower(strings.TrimSpace(id)))
	if err != nil {
		return models.Player{}, err
	}
	if !found {
		return models.Player{}, ErrNotFound
	}
	return player, nil
}

func (s *QueryService) GetCell(ctx context.Context, x, y int64) (CellView, error) {
	cell, found, err := s.store.LoadCell(ctx, models.CellID(x, y))
	if err != nil {
		return CellView{}, err
	}
	if !found {
		return CellView{}, ErrNotFound
	}
	view := newCellView(cell)
	if id := cell.Occupant(); id != "" {
		player, found, err := s.store.LoadPlayer(ctx, id)
		if err != nil {
			return CellView{}, err
		}
		if found {
			view.Player = &player
		}
	}
	return view, nil
}

func (s *QueryService) ListGames(ctx context.Context, f GameFilter) ([]models.Game, error) {
	games, err := s.store.ListGames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Game, 0, len(games))
	for _, g := range games {
		if matches(f.GameOn, g.GameOn) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *QueryService) ListPlayers(ctx context.Context, f PlayerFilter) ([]models.Player, error) {
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Player, 0, len(players))
	for _, p := range players {
		if matches(f.Alive, p.Alive()) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListCells returns the filtered cells ordered by x then y, occupants resolved.
func (s *QueryService) ListCells(ctx context.Context, f CellFilter) ([]CellView, error) {
	cells, err := s.store.ListCells(ctx)
	if err != nil {
		return nil, err
	}
	return s.resolveCells(ctx, cells, func(c models.WorldMatrix) bool {
		return matches(f.Cursed, c.Cursed) &&
			matches(f.Occupied, c.PlayerID != nil) &&
			matches(f.HasHealth, c.HealthAmountToCollect > 0)
	})
}

// Board returns the game and the cells of its width x height board.
func (s *QueryService) Board(ctx context.Context, gameID string) (BoardView, error) {
	game, err := s.GetGame(ctx, gameID)
	if err != nil {
		return BoardView{}, err
	}
	cells, err := s.store.ListCells(ctx)
	if err != nil {
		return BoardView{}, err
	}
	views, err := s.resolveCells(ctx, cells, func(c models.WorldMatrix) bool {
		return c.X >= 0 && c.X < game.Width && c.Y >= 0 && c.Y < game.Height
	})
	if err != nil {
		return BoardView{}, err
	}
	return BoardView{Game: game, Cells: views}, nil
}

// Status reports the checkpoint, the projector counters and the collection sizes.
func (s *QueryService) Status(ctx context.Context) (StatusView, error) {
	var view StatusView
	if s.projector != nil {
		cp, err := s.projector.Checkpoint(ctx)
		if err != nil {
			return StatusView{}, err
		}
		stats := s.projector.Stats()
		view.StreamID = s.projector.StreamID()
		view.Checkpoint = cp
		view.Stats = &stats
	}

	games, err := s.store.ListGames(ctx)
	if err != nil {
		return StatusView{}, err
	}
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return StatusView{}, err
	}
	cells, err := s.store.ListCells(ctx)
	if err != nil {
		return StatusView{}, err
	}
	view.Games, view.Players, view.Cells = len(games), len(players), len(cells)
	return view, nil
}

func (s *QueryService) resolveCells(ctx context.Context, cells []models.WorldMatrix, keep func(models.WorldMatrix) bool) ([]CellView, error) {
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	out := make([]CellView, 0, len(cells))
	for _, c := range cells {
		if !keep(c) {
			continue
		}
		view := newCellView(c)
		if p, ok := byID[c.Occupant()]; ok {
			view.Player = &p
		}
		out = append(out, view)
	}
	return out, nil
}

func newCellView(c models.WorldMatrix) CellView {
	c = c.Clone()
	return CellView{
		ID:                    c.ID,
		X:                     c.X,
		Y:                     c.Y,
		Cursed:                c.Cursed,
		HealthAmountToCollect: c.HealthAmountToCollect,
		PlayerID:              c.PlayerID,
	}
}
