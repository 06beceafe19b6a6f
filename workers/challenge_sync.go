package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/challenge"
	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/monitoring"
)

const (
	syncQueueKey   = "challenge:sync:queue"
	syncPendingKey = "challenge:sync:pending"
)

// EnqueueSync queues a challenge for the sync worker. The pending set
// deduplicates: a challenge already waiting is not queued twice, so a slow
// gateway never piles up work for one account.
func EnqueueSync(ctx context.Context, challengeID int64) error {
	id := strconv.FormatInt(challengeID, 10)
	added, err := database.RedisClient.SAdd(ctx, syncPendingKey, id).Result()
	if err != nil {
		return err
	}
	if added == 0 {
		return nil
	}
	return database.RedisClient.RPush(ctx, syncQueueKey, id).Err()
}

// ChallengeSyncWorker consumes the sync queue. The dedupe slot is held until
// the sync finishes, so a given challenge is never synced by two consumers at
// once; the row lock inside challenge.Sync backstops enqueues from other
// paths.
type ChallengeSyncWorker struct {
	// Workers is the number of concurrent consumers.
	Workers int

	// sync and release default to challenge.Sync and the pending-set SRem.
	sync    func(ctx context.Context, challengeID int64) error
	release func(ctx context.Context, item string)
}

func (w *ChallengeSyncWorker) Run(ctx context.Context) {
	n := w.Workers
	if n <= 0 {
		n = 4
	}
	if w.sync == nil {
		w.sync = challenge.Sync
	}
	if w.release == nil {
		w.release = func(ctx context.Context, item string) {
			database.RedisClient.SRem(ctx, syncPendingKey, item)
		}
	}
	logging.Logger.Info("🔄 Challenge sync workers started", zap.Int("workers", n))
	for i := 0; i < n; i++ {
		go w.consume(ctx)
	}
	<-ctx.Done()
	logging.Logger.Info("challenge sync workers stopped")
}

func (w *ChallengeSyncWorker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := database.RedisClient.BLPop(ctx, 5*time.Second, syncQueueKey).Result()
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			continue
		}
		if err != nil {
			logging.Logger.Error("sync queue pop failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		id, err := strconv.ParseInt(res[1], 10, 64)
		if err != nil {
			logging.Logger.Error("bad sync queue item", zap.String("item", res[1]))
			continue
		}

		err = w.handle(ctx, id, res[1])
		if err != nil {
			monitoring.WorkerItemsTotal.WithLabelValues("challenge_sync", "error").Inc()
			logging.Logger.Warn("challenge sync failed",
				zap.Int64("challengeID", id),
				zap.Error(err))
			continue
		}
		monitoring.WorkerItemsTotal.WithLabelValues("challenge_sync", "ok").Inc()
	}
}

// handle runs one sync and only then frees the dedupe slot, keeping the
// challenge out of the queue while its sync is still in flight.
func (w *ChallengeSyncWorker) handle(ctx context.Context, id int64, item string) error {
	err := w.sync(ctx, id)
	w.release(ctx, item)
	return err
}
