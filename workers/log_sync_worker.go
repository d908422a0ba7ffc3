package workers

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"
	"time"

	"royale-indexer/events"
	"royale-indexer/logger"
	"royale-indexer/models"
	"royale-indexer/services"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// LogSource is the slice of an Ethereum JSON-RPC client the worker needs.
// *ethclient.Client satisfies it.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

type LogSyncOptions struct {
	Contract        common.Address
	Confirmations   int64
	BatchSize       int64
	PollInterval    time.Duration
	SkipUndecodable bool
}

// SyncResult describes one SyncOnce call.
type SyncResult struct {
	SafeHead    int64
	From        int64
	To          int64
	Logs        int
	Applied     int
	Undecodable int
	UpToDate    bool
}

// CaughtUp reports whether the batch reached the safe head.
func (r SyncResult) CaughtUp() bool {
	return r.UpToDate || r.To >= r.SafeHead
}

// LogSyncWorker pulls the contract's logs in block ranges and feeds them to the projector.
type LogSyncWorker struct {
	source    LogSource
	decoder   *events.Decoder
	projector *services.Projector
	opts      LogSyncOptions
	log       *logrus.Entry

	// mu serializes batches with Reindex.
	mu sync.Mutex
}

func NewLogSyncWorker(source LogSource, decoder *events.Decoder, projector *services.Projector, opts LogSyncOptions) *LogSyncWorker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 2000
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &LogSyncWorker{
		source:    source,
		decoder:   decoder,
		projector: projector,
		opts:      opts,
		log:       logger.Component("sync"),
	}
}

// SyncOnce applies the next batch of confirmed blocks. On error the checkpoint stays before
// the failing log, so the next call retries from there.
func (w *LogSyncWorker) SyncOnce(ctx context.Context) (SyncResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	head, err := w.source.BlockNumber(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("read chain head: %w", err)
	}
	res := SyncResult{SafeHead: int64(head) - w.opts.Confirmations}

	cp, err := w.projector.Checkpoint(ctx)
	if err != nil {
		return res, err
	}
	res.From = cp.NextBlock
	if res.From > res.SafeHead {
		res.UpToDate = true
		res.To = res.From - 1
		return res, nil
	}
	res.To = min(res.From+w.opts.BatchSize-1, res.SafeHead)

	logs, err := w.source.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(res.From),
		ToBlock:   big.NewInt(res.To),
		Addresses: []common.Address{w.opts.Contract},
		Topics:    [][]common.Hash{w.decoder.Topics()},
	})
	if err != nil {
		return res, fmt.Errorf("filter logs %d-%d: %w", res.From, res.To, err)
	}
	slices.SortStableFunc(logs, func(a, b types.Log) int {
		if a.BlockNumber != b.BlockNumber {
			if a.BlockNumber < b.BlockNumber {
				return -1
			}
			return 1
		}
		return int(a.Index) - int(b.Index)
	})
	res.Logs = len(logs)

	times := make(map[uint64]uint64)
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		blockTime, err := w.blockTime(ctx, times, lg.BlockNumber)
		if err != nil {
			return res, err
		}

		evt, err := w.decoder.Decode(lg, blockTime)
		if err != nil {
			w.logDecodeError(err)
			if w.opts.SkipUndecodable {
				res.Undecodable++
				continue
			}
			return res, err
		}

		applied, err := w.projector.Apply(ctx, evt)
		if err != nil {
			return res, err
		}
		if applied {
			res.Applied++
		}
	}

	if _, err := w.projector.AdvanceTo(ctx, res.To+1); err != nil {
		return res, err
	}
	return res, nil
}

func (w *LogSyncWorker) blockTime(ctx context.Context, cache map[uint64]uint64, block uint64) (uint64, error) {
	if t, ok := cache[block]; ok {
		return t, nil
	}
	header, err := w.source.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return 0, fmt.Errorf("read header %d: %w", block, err)
	}
	cache[block] = header.Time
	return header.Time, nil
}

func (w *LogSyncWorker) logDecodeError(err error) {
	entry := w.log.WithError(err)
	var de *events.DecodeError
	if errors.As(err, &de) {
		entry = entry.WithFields(logrus.Fields{
			"signature": de.Signature,
			"block":     de.BlockNumber,
			"tx":        de.TxHash,
			"log_index": de.LogIndex,
		})
	}
	if w.opts.SkipUndecodable {
		entry.Warn("[SYNC] undecodable log skipped")
		return
	}
	entry.Error("[SYNC] undecodable log, halting")
}

// Reindex waits for the batch in flight, then wipes the projection.
func (w *LogSyncWorker) Reindex(ctx context.Context) (models.Checkpoint, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.projector.Reindex(ctx)
}

// Run polls until ctx ends. It catches up batch after batch without waiting, and returns
// an error only when an undecodable log halts the stream.
func (w *LogSyncWorker) Run(ctx context.Context) error {
	w.log.WithFields(logrus.Fields{
		"contract":      w.opts.Contract.Hex(),
		"confirmations": w.opts.Confirmations,
		"batch_size":    w.opts.BatchSize,
	}).Info("[SYNC] starting log polling")

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		res, err := w.SyncOnce(ctx)
		switch {
		case errors.Is(err, context.Canceled):
		case err != nil:
			var de *events.DecodeError
			if errors.As(err, &de) {
				return err
			}
			// Retry the same range next tick
			w.log.WithError(err).Error("[SYNC] batch failed")
		case res.Applied > 0 || res.Undecodable > 0:
			w.log.WithFields(logrus.Fields{
				"from":        res.From,
				"to":          res.To,
				"applied":     res.Applied,
				"undecodable": res.Undecodable,
			}).Info("[SYNC] batch applied")
		}

		if err == nil && !res.CaughtUp() {
			if ctx.Err() != nil {
				w.log.Info("[SYNC] log polling stopped")
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			w.log.Info("[SYNC] log polling stopped")
			return nil
		case <-ticker.C:
		}
	}
}
