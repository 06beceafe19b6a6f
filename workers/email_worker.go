package workers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/monitoring"
	"github.com/tradege/marketedgepros-sub001/utils"
)

const emailMaxAttempts = 3

// EmailWorker drains the redis email queue and delivers over SMTP. Failed
// sends go back on the queue with the attempt counter bumped, up to the cap.
type EmailWorker struct {
	cfg    *config.Config
	dialer *gomail.Dialer
}

func NewEmailWorker(cfg *config.Config) *EmailWorker {
	return &EmailWorker{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
	}
}

// Run blocks until ctx is cancelled.
func (w *EmailWorker) Run(ctx context.Context) {
	logging.Logger.Info("📧 Email worker started")
	for {
		select {
		case <-ctx.Done():
			logging.Logger.Info("email worker stopped")
			return
		default:
		}

		res, err := database.RedisClient.BLPop(ctx, 5*time.Second, utils.EmailQueueKey).Result()
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			continue
		}
		if err != nil {
			logging.Logger.Error("email queue pop failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		// res[0] is the key, res[1] the payload
		var job utils.EmailJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			logging.Logger.Error("bad email job payload", zap.Error(err))
			continue
		}
		w.process(ctx, job)
	}
}

func (w *EmailWorker) process(ctx context.Context, job utils.EmailJob) {
	if w.cfg.SMTPHost == "" {
		// local setups without SMTP just log the mail
		logging.Logger.Info("email skipped, SMTP not configured",
			zap.String("to", job.To),
			zap.String("subject", job.Subject))
		return
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", w.cfg.EmailFrom)
	msg.SetHeader("To", job.To)
	msg.SetHeader("Subject", job.Subject)
	msg.SetBody("text/html", job.HTMLBody)

	if err := w.dialer.DialAndSend(msg); err != nil {
		job.Attempts++
		monitoring.WorkerItemsTotal.WithLabelValues("email", "error").Inc()
		if job.Attempts >= emailMaxAttempts {
			logging.Logger.Error("email dropped after max attempts",
				zap.String("to", job.To),
				zap.String("subject", job.Subject),
				zap.Error(err))
			return
		}
		logging.Logger.Warn("email send failed, requeueing",
			zap.String("to", job.To),
			zap.Int("attempts", job.Attempts),
			zap.Error(err))
		payload, _ := json.Marshal(job)
		database.RedisClient.RPush(ctx, utils.EmailQueueKey, payload)
		return
	}

	monitoring.WorkerItemsTotal.WithLabelValues("email", "ok").Inc()
	logging.Logger.Debug("email sent",
		zap.String("to", job.To),
		zap.String("subject", job.Subject))
}
