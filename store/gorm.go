package store

import (
	"context"
	"errors"

	"royale-indexer/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists entities through gorm (PostgreSQL in production, SQLite locally).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open connection. Call Migrate once before use.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the entity tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&models.Game{},
		&models.Player{},
		&models.WorldMatrix{},
		&models.Checkpoint{},
	)
	return ioErr("migrate", "all", "", err)
}

// DB exposes the underlying connection for health checks.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func loadByID[T any](ctx context.Context, db *gorm.DB, collection, id string) (T, bool, error) {
	var out T
	err := db.WithContext(ctx).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, false, nil
	}
	if err != nil {
		return out, false, ioErr("load", collection, id, err)
	}
	return out, true, nil
}

// upsert replaces the whole row on primary-key conflict.
func upsert[T any](ctx context.Context, db *gorm.DB, collection, id string, row *T) error {
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(row).Error
	return ioErr("upsert", collection, id, err)
}

func (s *GormStore) LoadGame(ctx context.Context, id string) (models.Game, bool, error) {
	return loadByID[models.Game](ctx, s.db, CollectionGames, id)
}

func (s *GormStore) UpsertGame(ctx context.Context, game models.Game) error {
	return upsert(ctx, s.db, CollectionGames, game.ID, &game)
}

func (s *GormStore) ListGames(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	if err := s.db.WithContext(ctx).Order("game_id ASC, id ASC").Find(&games).Error; err != nil {
		return nil, ioErr("list", CollectionGames, "", err)
	}
	return games, nil
}

func (s *GormStore) LoadPlayer(ctx context.Context, id string) (models.Player, bool, error) {
	return loadByID[models.Player](ctx, s.db, CollectionPlayers, id)
}

func (s *GormStore) UpsertPlayer(ctx context.Context, player models.Player) error {
	return upsert(ctx, s.db, CollectionPlayers, player.ID, &player)
}

func (s *GormStore) ListPlayers(ctx context.Context) ([]models.Player, error) {
	var players []models.Player
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&players).Error; err != nil {
		return nil, ioErr("list", CollectionPlayers, "", err)
	}
	return players, nil
}

func (s *GormStore) LoadCell(ctx context.Context, id string) (models.WorldMatrix, bool, error) {
	return loadByID[models.WorldMatrix](ctx, s.db, CollectionCells, id)
}

func (s *GormStore) UpsertCell(ctx context.Context, cell models.WorldMatrix) error {
	return upsert(ctx, s.db, CollectionCells, cell.ID, &cell)
}

func (s *GormStore) ListCells(ctx context.Context) ([]models.WorldMatrix, error) {
	var cells []models.WorldMatrix
	if err := s.db.WithContext(ctx).Order("x ASC, y ASC").Find(&cells).Error; err != nil {
		return nil, ioErr("list", CollectionCells, "", err)
	}
	return cells, nil
}

func (s *GormStore) LoadCheckpoint(ctx context.Context, id string) (models.Checkpoint, bool, error) {
	return loadByID[models.Checkpoint](ctx, s.db, CollectionCheckpoints, id)
}

func (s *GormStore) SaveCheckpoint(ctx context.Context, cp models.Checkpoint) error {
	return upsert(ctx, s.db, CollectionCheckpoints, cp.ID, &cp)
}

// Atomic maps onto a database transaction.
func (s *GormStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// Reset deletes every row of every entity table in one transaction.
func (s *GormStore) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []struct {
			name  string
			model any
		}{
			{CollectionGames, &models.Game{}},
			{CollectionPlayers, &models.Player{}},
			{CollectionCells, &models.WorldMatrix{}},
			{CollectionCheckpoints, &models.Checkpoint{}},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(table.model).Error; err != nil {
				return ioErr("reset", table.name, "", err)
			}
		}
		return nil
	})
}
