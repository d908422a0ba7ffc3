// services/projector.go
package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"royale-indexer/events"
	"royale-indexer/logger"
	"royale-indexer/models"
	"royale-indexer/store"

	"github.com/sirupsen/logrus"
)

// Defaults used when a contract version does not emit the value.
const (
	DefaultInitialHealth int64 = 100
	DefaultCurseInterval int64 = 10
)

// MissingReferenceError is a handler finding an entity it expected to exist, e.g. a Move for a
// player that never registered. It is reported and counted; the handler skips that part.
type MissingReferenceError struct {
	Event       events.Kind
	Collection  string
	Key         string
	BlockNumber int64
	LogIndex    int64
}

func (e MissingReferenceError) Error() string {
	return fmt.Sprintf("%s at block %d log %d references missing %s[%s]",
		e.Event, e.BlockNumber, e.LogIndex, e.Collection, e.Key)
}

// ProjectorOptions tune the projection. Zero values take the defaults above.
type ProjectorOptions struct {
	// StreamID keys the checkpoint, usually the lower-cased contract address.
	StreamID      string
	StartBlock    int64
	InitialHealth int64
	CurseInterval int64
	// OnMissing receives every soft missing reference after its event commits.
	OnMissing func(MissingReferenceError)
}

// ProjectorStats are counters since process start.
type ProjectorStats struct {
	Applied           map[events.Kind]int64 `json:"applied"`
	AlreadyApplied    int64                 `json:"alreadyApplied"`
	MissingReferences int64                 `json:"missingReferences"`
	LastBlock         int64                 `json:"lastBlock"`
	LastLogIndex      int64                 `json:"lastLogIndex"`
}

// Projector applies decoded events to the store, one at a time, in arrival order.
type Projector struct {
	store store.Store
	opts  ProjectorOptions
	log   *logrus.Entry

	// applyMu serializes Apply, AdvanceTo and Reindex: no two units ever interleave.
	applyMu sync.Mutex

	statsMu sync.Mutex
	stats   ProjectorStats
}

// NewProjector builds a projector writing to st.
func NewProjector(st store.Store, opts ProjectorOptions) *Projector {
	if opts.InitialHealth <= 0 {
		opts.InitialHealth = DefaultInitialHealth
	}
	if opts.CurseInterval <= 0 {
		opts.CurseInterval = DefaultCurseInterval
	}
	opts.StreamID = strings.ToLower(opts.StreamID)
	p := &Projector{
		store: st,
		opts:  opts,
		log:   logger.Component("projector"),
		stats: ProjectorStats{Applied: make(map[events.Kind]int64), LastLogIndex: -1},
	}
	if p.opts.OnMissing == nil {
		p.opts.OnMissing = p.logMissing
	}
	return p
}

func (p *Projector) logMissing(m MissingReferenceError) {
	p.log.WithFields(logrus.Fields{
		"event":      m.Event,
		"collection": m.Collection,
		"key":        m.Key,
		"block":      m.BlockNumber,
		"log_index":  m.LogIndex,
	}).Warn("[PROJECTOR] missing reference, skipped")
}

// Store returns the store the projector writes to.
func (p *Projector) Store() store.Store { return p.store }

// StreamID returns the checkpoint key.
func (p *Projector) StreamID() string { return p.opts.StreamID }

// Apply projects one event together with the checkpoint advance as a single unit.
// Events at or before the checkpoint are skipped and reported as not applied.
// A returned error is fatal for this event: nothing of it was persisted.
func (p *Projector) Apply(ctx context.Context, evt events.Event) (bool, error) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	meta := evt.Meta()
	var (
		applied bool
		missing []MissingReferenceError
	)
	err := p.store.Atomic(ctx, func(tx store.Store) error {
		applied, missing = false, nil

		cp, err := p.loadCheckpoint(ctx, tx)
		if err != nil {
			return err
		}
		if cp.Covers(meta.BlockNumber, meta.LogIndex) {
			return nil
		}
		if missing, err = p.Handle(ctx, tx, evt); err != nil {
			return err
		}
		cp.LastBlock = meta.BlockNumber
		cp.LastLogIndex = meta.LogIndex
		cp.EventsApplied++
		cp.UpdatedAt = time.Now().UTC()
		if err := tx.SaveCheckpoint(ctx, cp); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("apply %s at block %d log %d: %w", evt.Kind(), meta.BlockNumber, meta.LogIndex, err)
	}

	for _, m := range missing {
		p.opts.OnMissing(m)
	}
	p.record(evt, applied, len(missing))
	if applied {
		p.log.WithFields(logrus.Fields{
			"event":     evt.Kind(),
			"block":     meta.BlockNumber,
			"log_index": meta.LogIndex,
			"tx":        meta.TxHash,
		}).Debug("[PROJECTOR] event applied")
	}
	return applied, nil
}

func (p *Projector) record(evt events.Event, applied bool, missing int) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.MissingReferences += int64(missing)
	if !applied {
		p.stats.AlreadyApplied++
		return
	}
	meta := evt.Meta()
	p.stats.Applied[evt.Kind()]++
	p.stats.LastBlock = meta.BlockNumber
	p.stats.LastLogIndex = meta.LogIndex
}

// Stats returns a copy of the counters.
func (p *Projector) Stats() ProjectorStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	out := p.stats
	out.Applied = make(map[events.Kind]int64, len(p.stats.Applied))
	for k, v := range p.stats.Applied {
		out.Applied[k] = v
	}
	return out
}

// Checkpoint returns the stored checkpoint, or a fresh one at StartBlock.
func (p *Projector) Checkpoint(ctx context.Context) (models.Checkpoint, error) {
	return p.loadCheckpoint(ctx, p.store)
}

func (p *Projector) loadCheckpoint(ctx context.Context, st store.Store) (models.Checkpoint, error) {
	cp, found, err := st.LoadCheckpoint(ctx, p.opts.StreamID)
	if err != nil {
		return models.Checkpoint{}, err
	}
	if !found {
		cp = models.NewCheckpoint(p.opts.StreamID, p.opts.StartBlock)
	}
	return cp, nil
}

// AdvanceTo records that every block before next has been consumed.
// It never moves the checkpoint backwards.
func (p *Projector) AdvanceTo(ctx context.Context, next int64) (models.Checkpoint, error) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	var out models.Checkpoint
	err := p.store.Atomic(ctx, func(tx store.Store) error {
		cp, err := p.loadCheckpoint(ctx, tx)
		if err != nil {
			return err
		}
		if next > cp.NextBlock {
			cp.NextBlock = next
			cp.UpdatedAt = time.Now().UTC()
			if err := tx.SaveCheckpoint(ctx, cp); err != nil {
				return err
			}
		}
		out = cp
		return nil
	})
	if err != nil {
		return models.Checkpoint{}, fmt.Errorf("advance checkpoint to %d: %w", next, err)
	}
	return out, nil
}

// Reindex wipes the projection and rewinds the checkpoint to StartBlock.
func (p *Projector) Reindex(ctx context.Context) (models.Checkpoint, error) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	cp := models.NewCheckpoint(p.opts.StreamID, p.opts.StartBlock)
	cp.UpdatedAt = time.Now().UTC()
	err := p.store.Atomic(ctx, func(tx store.Store) error {
		if err := tx.Reset(ctx); err != nil {
			return err
		}
		return tx.SaveCheckpoint(ctx, cp)
	})
	if err != nil {
		return models.Checkpoint{}, fmt.Errorf("reindex: %w", err)
	}

	p.statsMu.Lock()
	p.stats = ProjectorStats{Applied: make(map[events.Kind]int64), LastLogIndex: -1}
	p.statsMu.Unlock()

	p.log.WithField("start_block", p.opts.StartBlock).Warn("[PROJECTOR] projection reset for reindex")
	return cp, nil
}

// View runs fn while no event is being applied, so fn reads a state between two events.
func (p *Projector) View(ctx context.Context, fn func(st store.Store, cp models.Checkpoint) error) error {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	cp, err := p.loadCheckpoint(ctx, p.store)
	if err != nil {
		return err
	}
	return fn(p.store, cp)
}

// Replay folds events into st, each event in its own unit, without checkpointing.
// Missing references go to OnMissing as they happen.
func (p *Projector) Replay(ctx context.Context, st store.Store, evts []events.Event) error {
	for i, evt := range evts {
		var missing []MissingReferenceError
		err := st.Atomic(ctx, func(tx store.Store) error {
			var err error
			missing, err = p.Handle(ctx, tx, evt)
			return err
		})
		if err != nil {
			return fmt.Errorf("replay event %d (%s): %w", i, evt.Kind(), err)
		}
		for _, m := range missing {
			p.opts.OnMissing(m)
		}
	}
	return nil
}

// Handle runs the handler for evt against st and returns the soft missing references it met.
// It does not checkpoint; callers wrap it in a unit.
func (p *Projector) Handle(ctx context.Context, st store.Store, evt events.Event) ([]MissingReferenceError, error) {
	h := &handlerRun{p: p, st: st, env: evt.Meta(), kind: evt.Kind()}
	var err error
	switch e := evt.(type) {
	case events.Restart:
		err = h.restart(ctx, e)
	case events.Register:
		err = h.register(ctx, e)
	case events.Move:
		err = h.move(ctx, e)
	case events.NewHealthDrop:
		err = h.healthDrop(ctx, e)
	case events.NewCurseDrop:
		err = h.curseDrop(ctx, e)
	case events.Ticker:
		err = h.ticker(ctx, e)
	default:
		err = fmt.Errorf("no handler for event %T", evt)
	}
	if err != nil {
		return nil, err
	}
	return h.missing, nil
}

func gameKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
