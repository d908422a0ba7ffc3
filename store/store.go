// Package store persists the projected entities.
package store

import (
	"context"
	"errors"
	"fmt"

	"royale-indexer/models"
)

// Collection names, as exposed to consumers.
const (
	CollectionGames       = "games"
	CollectionPlayers     = "players"
	CollectionCells       = "worldMatrixes"
	CollectionCheckpoints = "checkpoints"
)

// ErrStoreIO matches every *IOError through errors.Is.
var ErrStoreIO = errors.New("store I/O failure")

// IOError is a failed read or write of the backing store. It is fatal for the event being applied.
type IOError struct {
	Op         string
	Collection string
	Key        string
	Err        error
}

func (e *IOError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("store %s %s[%s]: %v", e.Op, e.Collection, e.Key, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrStoreIO }

func ioErr(op, collection, key string, err error) error {
	if err == nil {
		return nil
	}
	var existing *IOError
	if errors.As(err, &existing) {
		return err
	}
	return &IOError{Op: op, Collection: collection, Key: key, Err: err}
}

// Store is the entity store the projector writes and the query layer reads.
// Load returns found=false for an absent key; only I/O failures are errors.
// Values are copies: changing them has no effect until they are upserted.
type Store interface {
	LoadGame(ctx context.Context, id string) (models.Game, bool, error)
	UpsertGame(ctx context.Context, game models.Game) error
	ListGames(ctx context.Context) ([]models.Game, error)

	LoadPlayer(ctx context.Context, id string) (models.Player, bool, error)
	UpsertPlayer(ctx context.Context, player models.Player) error
	ListPlayers(ctx context.Context) ([]models.Player, error)

	LoadCell(ctx context.Context, id string) (models.WorldMatrix, bool, error)
	UpsertCell(ctx context.Context, cell models.WorldMatrix) error
	ListCells(ctx context.Context) ([]models.WorldMatrix, error)

	LoadCheckpoint(ctx context.Context, id string) (models.Checkpoint, bool, error)
	SaveCheckpoint(ctx context.Context, cp models.Checkpoint) error

	// Atomic runs fn against a Store whose writes are committed together when fn returns nil
	// and discarded otherwise.
	Atomic(ctx context.Context, fn func(tx Store) error) error

	// Reset removes every entity and checkpoint.
	Reset(ctx context.Context) error
}
