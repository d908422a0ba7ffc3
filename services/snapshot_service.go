package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"royale-indexer/logger"
	"royale-indexer/models"
	"royale-indexer/store"
	"royale-indexer/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrSnapshotsDisabled is returned by Export when no bucket is configured.
var ErrSnapshotsDisabled = errors.New("snapshot export is not configured")

// Snapshot is the exported document: every collection at one checkpoint.
type Snapshot struct {
	ID            string               `json:"id"`
	Network       string               `json:"network"`
	Contract      string               `json:"contract"`
	ExportedAt    time.Time            `json:"exportedAt"`
	Checkpoint    models.Checkpoint    `json:"checkpoint"`
	Games         []models.Game        `json:"games"`
	Players       []models.Player      `json:"players"`
	WorldMatrixes []models.WorldMatrix `json:"worldMatrixes"`
}

// SnapshotResult describes an uploaded snapshot.
type SnapshotResult struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Block int64  `json:"block"`
	Bytes int    `json:"bytes"`
}

type SnapshotService struct {
	projector *Projector
	putter    utils.ObjectPutter
	network   string
	log       *logrus.Entry
	now       func() time.Time
}

// NewSnapshotService exports the projector's store through putter. A nil putter disables exports.
func NewSnapshotService(projector *Projector, putter utils.ObjectPutter, network string) *SnapshotService {
	return &SnapshotService{
		projector: projector,
		putter:    putter,
		network:   network,
		log:       logger.Component("snapshot"),
		now:       time.Now,
	}
}

// Enabled reports whether Export can upload.
func (s *SnapshotService) Enabled() bool {
	return s.putter != nil
}

// Build reads a consistent snapshot without uploading it.
func (s *SnapshotService) Build(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		ID:         uuid.NewString(),
		Network:    s.network,
		Contract:   s.projector.StreamID(),
		ExportedAt: s.now().UTC(),
	}
	err := s.projector.View(ctx, func(st store.Store, cp models.Checkpoint) error {
		var err error
		snap.Checkpoint = cp
		if snap.Games, err = st.ListGames(ctx); err != nil {
			return err
		}
		if snap.Players, err = st.ListPlayers(ctx); err != nil {
			return err
		}
		snap.WorldMatrixes, err = st.ListCells(ctx)
		return err
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return snap, nil
}

// Export uploads the current projection as JSON, keyed by network, contract and last applied block.
func (s *SnapshotService) Export(ctx context.Context) (SnapshotResult, error) {
	if !s.Enabled() {
		return SnapshotResult{}, ErrSnapshotsDisabled
	}
	snap, err := s.Build(ctx)
	if err != nil {
		return SnapshotResult{}, err
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return SnapshotResult{}, fmt.Errorf("encode snapshot: %w", err)
	}

	block := snap.Checkpoint.LastBlock
	key := utils.SnapshotKey(s.network, snap.Contract, block)
	if err := s.putter.PutObject(ctx, key, "application/json", body); err != nil {
		return SnapshotResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"key":     key,
		"block":   block,
		"bytes":   len(body),
		"games":   len(snap.Games),
		"players": len(snap.Players),
	}).Info("[SNAPSHOT] exported")
	return SnapshotResult{ID: snap.ID, Key: key, Block: block, Bytes: len(body)}, nil
}
