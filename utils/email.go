package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/logging"
)

// EmailQueueKey is the redis list the email worker consumes.
const EmailQueueKey = "email:queue"

type EmailJob struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	Attempts int    `json:"attempts"`
}

// EnqueueEmail pushes a job onto the redis queue. Enqueue failures are logged
// and swallowed; a lost notification must never fail the business operation
// that triggered it.
func EnqueueEmail(ctx context.Context, timeout time.Duration, job EmailJob) {
	payload, err := json.Marshal(job)
	if err != nil {
		logging.Logger.Error("email job marshal failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := database.RedisClient.RPush(ctx, EmailQueueKey, payload).Err(); err != nil {
		logging.Logger.Error("email enqueue failed",
			zap.String("to", job.To),
			zap.String("subject", job.Subject),
			zap.Error(err))
	}
}

func WelcomeEmail(to, name string) EmailJob {
	return EmailJob{
		To:      to,
		Subject: "Welcome to MarketEdgePros",
		HTMLBody: fmt.Sprintf(`<h2>Welcome, %s!</h2>
<p>Your account is ready. Pick a challenge program and start trading.</p>`, name),
	}
}

func VerificationCodeEmail(to, code string) EmailJob {
	return EmailJob{
		To:      to,
		Subject: "Your MarketEdgePros verification code",
		HTMLBody: fmt.Sprintf(`<h2>Verification code</h2>
<p>Your registration code is <strong>%s</strong>. It expires in 10 minutes.</p>`, code),
	}
}

func NewDeviceEmail(to, ip, userAgent string) EmailJob {
	return EmailJob{
		To:      to,
		Subject: "New sign-in to your account",
		HTMLBody: fmt.Sprintf(`<h2>New sign-in</h2>
<p>Your account was just accessed from a device we have not seen before.</p>
<p>IP: %s<br>Client: %s</p>
<p>If this was not you, change your password immediately.</p>`, ip, userAgent),
	}
}

func PaymentReceiptEmail(to, amount, currency string, paymentID int64) EmailJob {
	return EmailJob{
		To:      to,
		Subject: "Payment confirmed",
		HTMLBody: fmt.Sprintf(`<h2>Payment received</h2>
<p>We confirmed your payment of %s %s (reference #%d). Your challenge account is being prepared.</p>`,
			amount, currency, paymentID),
	}
}

func ChallengePassedEmail(to string, phase int) EmailJob {
	return EmailJob{
		To:      to,
		Subject: fmt.Sprintf("Phase %d passed", phase),
		HTMLBody: fmt.Sprintf(`<h2>Congratulations!</h2>
<p>You passed phase %d. Credentials for your next account are available in your dashboard.</p>`, phase),
	}
}

func ChallengeFundedEmail(to string) EmailJob {
	return EmailJob{
		To:      to,
		Subject: "You are funded",
		HTMLBody: `<h2>Funded!</h2>
<p>Your evaluation is complete. Your funded account credentials are available in your dashboard.</p>`,
	}
}

func ChallengeFailedEmail(to, reason string) EmailJob {
	return EmailJob{
		To:      to,
		Subject: "Challenge ended",
		HTMLBody: fmt.Sprintf(`<h2>Challenge ended</h2>
<p>Your challenge was closed: %s. You can start a new challenge at any time.</p>`, reason),
	}
}

func WithdrawalStatusEmail(to, status, amount string) EmailJob {
	return EmailJob{
		To:      to,
		Subject: "Withdrawal " + status,
		HTMLBody: fmt.Sprintf(`<h2>Withdrawal %s</h2>
<p>Your withdrawal of %s is now %s.</p>`, status, amount, status),
	}
}
