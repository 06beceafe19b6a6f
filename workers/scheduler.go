package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/auth"
	"github.com/tradege/marketedgepros-sub001/challenge"
	"github.com/tradege/marketedgepros-sub001/commission"
	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/logging"
)

// Scheduler drives the periodic work: it feeds the sync queue every tick and
// runs the slower housekeeping passes on an hourly cadence.
type Scheduler struct {
	cfg *config.Config
}

func NewScheduler(cfg *config.Config) *Scheduler {
	return &Scheduler{cfg: cfg}
}

func (s *Scheduler) Run(ctx context.Context) {
	syncTicker := time.NewTicker(s.cfg.ChallengeSyncInterval)
	housekeepingTicker := time.NewTicker(time.Hour)
	defer syncTicker.Stop()
	defer housekeepingTicker.Stop()

	logging.Logger.Info("⏰ Scheduler started",
		zap.Duration("syncInterval", s.cfg.ChallengeSyncInterval))

	for {
		select {
		case <-ctx.Done():
			logging.Logger.Info("scheduler stopped")
			return
		case <-syncTicker.C:
			s.enqueueSyncs(ctx)
		case <-housekeepingTicker.C:
			s.housekeeping(ctx)
		}
	}
}

func (s *Scheduler) enqueueSyncs(ctx context.Context) {
	ids, err := challenge.ListSyncableIDs(ctx)
	if err != nil {
		logging.Logger.Error("listing syncable challenges failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		if err := EnqueueSync(ctx, id); err != nil {
			logging.Logger.Error("sync enqueue failed",
				zap.Int64("challengeID", id),
				zap.Error(err))
		}
	}
	if len(ids) > 0 {
		logging.Logger.Debug("sync pass enqueued", zap.Int("count", len(ids)))
	}
}

func (s *Scheduler) housekeeping(ctx context.Context) {
	if approved, err := commission.ReleaseDue(ctx); err != nil {
		logging.Logger.Error("commission approval pass failed", zap.Error(err))
	} else if approved > 0 {
		logging.Logger.Info("commission approval pass done", zap.Int("approved", approved))
	}

	if settled, err := commission.SettleClawbacks(ctx); err != nil {
		logging.Logger.Error("clawback pass failed", zap.Error(err))
	} else if settled > 0 {
		logging.Logger.Info("clawback pass done", zap.Int("settled", settled))
	}

	if pruned, err := auth.PruneExpiredRevocations(ctx); err != nil {
		logging.Logger.Error("revocation pruning failed", zap.Error(err))
	} else if pruned > 0 {
		logging.Logger.Debug("expired revocations pruned", zap.Int64("count", pruned))
	}
}
