package store

import (
	"context"
	"maps"
	"sync"

	"royale-indexer/models"
)

// MemoryStore keeps everything in maps. Readers may run concurrently with the single writer.
type MemoryStore struct {
	mu   sync.RWMutex
	data tables
}

type tables struct {
	games       map[string]models.Game
	players     map[string]models.Player
	cells       map[string]models.WorldMatrix
	checkpoints map[string]models.Checkpoint
}

func newTables() tables {
	return tables{
		games:       make(map[string]models.Game),
		players:     make(map[string]models.Player),
		cells:       make(map[string]models.WorldMatrix),
		checkpoints: make(map[string]models.Checkpoint),
	}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newTables()}
}

func (s *MemoryStore) LoadGame(_ context.Context, id string) (models.Game, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.data.games[id]
	return g, ok, nil
}

func (s *MemoryStore) UpsertGame(_ context.Context, game models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.games[game.ID] = game
	return nil
}

func (s *MemoryStore) ListGames(_ context.Context) ([]models.Game, error) {
	s.mu.RLock()
	out := make([]models.Game, 0, len(s.data.games))
	for _, g := range s.data.games {
		out = append(out, g)
	}
	s.mu.RUnlock()
	sortGames(out)
	return out, nil
}

func (s *MemoryStore) LoadPlayer(_ context.Context, id string) (models.Player, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.players[id]
	return p, ok, nil
}

func (s *MemoryStore) UpsertPlayer(_ context.Context, player models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.players[player.ID] = player
	return nil
}

func (s *MemoryStore) ListPlayers(_ context.Context) ([]models.Player, error) {
	s.mu.RLock()
	out := make([]models.Player, 0, len(s.data.players))
	for _, p := range s.data.players {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sortPlayers(out)
	return out, nil
}

func (s *MemoryStore) LoadCell(_ context.Context, id string) (models.WorldMatrix, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data.cells[id]
	return c.Clone(), ok, nil
}

func (s *MemoryStore) UpsertCell(_ context.Context, cell models.WorldMatrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.cells[cell.ID] = cell.Clone()
	return nil
}

func (s *MemoryStore) ListCells(_ context.Context) ([]models.WorldMatrix, error) {
	s.mu.RLock()
	out := make([]models.WorldMatrix, 0, len(s.data.cells))
	for _, c := range s.data.cells {
		out = append(out, c.Clone())
	}
	s.mu.RUnlock()
	sortCells(out)
	return out, nil
}

func (s *MemoryStore) LoadCheckpoint(_ context.Context, id string) (models.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.data.checkpoints[id]
	return cp, ok, nil
}

func (s *MemoryStore) SaveCheckpoint(_ context.Context, cp models.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.checkpoints[cp.ID] = cp
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = newTables()
	return nil
}

// Atomic stages writes in an overlay and publishes them in one step under the write lock,
// so readers see either none or all of them.
func (s *MemoryStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	tx := &memoryTx{base: s, staged: newTables()}
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.reset {
		s.data = newTables()
	}
	maps.Copy(s.data.games, tx.staged.games)
	maps.Copy(s.data.players, tx.staged.players)
	maps.Copy(s.data.cells, tx.staged.cells)
	maps.Copy(s.data.checkpoints, tx.staged.checkpoints)
	return nil
}

// memoryTx reads through its overlay to the base store.
type memoryTx struct {
	base   *MemoryStore
	staged tables
	reset  bool
}

func (t *memoryTx) LoadGame(ctx context.Context, id string) (models.Game, bool, error) {
	if g, ok := t.staged.games[id]; ok {
		return g, true, nil
	}
	if t.reset {
		return models.Game{}, false, nil
	}
	return t.base.LoadGame(ctx, id)
}

func (t *memoryTx) UpsertGame(_ context.Context, game models.Game) error {
	t.staged.games[game.ID] = game
	return nil
}

func (t *memoryTx) ListGames(ctx context.Context) ([]models.Game, error) {
	merged := make(map[string]models.Game)
	if !t.reset {
		base, _ := t.base.ListGames(ctx)
		for _, g := range base {
			merged[g.ID] = g
		}
	}
	maps.Copy(merged, t.staged.games)
	out := make([]models.Game, 0, len(merged))
	for _, g := range merged {
		out = append(out, g)
	}
	sortGames(out)
	return out, nil
}

func (t *memoryTx) LoadPlayer(ctx context.Context, id string) (models.Player, bool, error) {
	if p, ok := t.staged.players[id]; ok {
		return p, true, nil
	}
	if t.reset {
		return models.Player{}, false, nil
	}
	return t.base.LoadPlayer(ctx, id)
}

func (t *memoryTx) UpsertPlayer(_ context.Context, player models.Player) error {
	t.staged.players[player.ID] = player
	return nil
}

func (t *memoryTx) ListPlayers(ctx context.Context) ([]models.Player, error) {
	merged := make(map[string]models.Player)
	if !t.reset {
		base, _ := t.base.ListPlayers(ctx)
		for _, p := range base {
			merged[p.ID] = p
		}
	}
	maps.Copy(merged, t.staged.players)
	out := make([]models.Player, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	sortPlayers(out)
	return out, nil
}

func (t *memoryTx) LoadCell(ctx context.Context, id string) (models.WorldMatrix, bool, error) {
	if c, ok := t.staged.cells[id]; ok {
		return c.Clone(), true, nil
	}
	if t.reset {
		return models.WorldMatrix{}, false, nil
	}
	return t.base.LoadCell(ctx, id)
}

func (t *memoryTx) UpsertCell(_ context.Context, cell models.WorldMatrix) error {
	t.staged.cells[cell.ID] = cell.Clone()
	return nil
}

func (t *memoryTx) ListCells(ctx context.Context) ([]models.WorldMatrix, error) {
	merged := make(map[string]models.WorldMatrix)
	if !t.reset {
		base, _ := t.base.ListCells(ctx)
		for _, c := range base {
			merged[c.ID] = c
		}
	}
	for id, c := range t.staged.cells {
		merged[id] = c.Clone()
	}
	out := make([]models.WorldMatrix, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sortCells(out)
	return out, nil
}

func (t *memoryTx) LoadCheckpoint(ctx context.Context, id string) (models.Checkpoint, bool, error) {
	if cp, ok := t.staged.checkpoints[id]; ok {
		return cp, true, nil
	}
	if t.reset {
		return models.Checkpoint{}, false, nil
	}
	return t.base.LoadCheckpoint(ctx, id)
}

func (t *memoryTx) SaveCheckpoint(_ context.Context, cp models.Checkpoint) error {
	t.staged.checkpoints[cp.ID] = cp
	return nil
}

func (t *memoryTx) Reset(_ context.Context) error {
	t.staged = newTables()
	t.reset = true
	return nil
}

// Atomic inside a transaction joins the outer unit.
func (t *memoryTx) Atomic(_ context.Context, fn func(tx Store) error) error {
	return fn(t)
}
