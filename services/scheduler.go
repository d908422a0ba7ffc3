// services/scheduler.go
package services

import (
	"context"
	"errors"
	"time"

	"royale-indexer/logger"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// StartScheduler runs the periodic jobs: a stats log every minute and, when exports are
// enabled, a snapshot every snapshotEvery. The caller shuts the scheduler down.
func StartScheduler(ctx context.Context, projector *Projector, snapshots *SnapshotService, snapshotEvery time.Duration) (gocron.Scheduler, error) {
	log := logger.Component("scheduler")

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// Every minute: log projection progress
	if _, err := sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() { logStats(log, projector) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	if snapshots != nil && snapshots.Enabled() && snapshotEvery > 0 {
		if _, err := sched.NewJob(
			gocron.DurationJob(snapshotEvery),
			gocron.NewTask(func() {
				if _, err := snapshots.Export(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Error("[Scheduler] snapshot export failed")
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}

func logStats(log *logrus.Entry, projector *Projector) {
	stats := projector.Stats()
	fields := logrus.Fields{
		"last_block":      stats.LastBlock,
		"last_log_index":  stats.LastLogIndex,
		"already_applied": stats.AlreadyApplied,
		"missing_refs":    stats.MissingReferences,
	}
	for kind, n := range stats.Applied {
		fields["applied_"+string(kind)] = n
	}
	log.WithFields(fields).Info("[Scheduler] projection progress")
}
