package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradege/marketedgepros-sub001/database"
)

const (
	verificationTTL      = 10 * time.Minute
	verificationThrottle = time.Minute
)

var (
	ErrCodeInvalid    = errors.New("verification code invalid or expired")
	ErrResendThrottle = errors.New("verification code requested too recently")
)

func verificationKey(email string) string { return "verify:code:" + email }
func throttleKey(email string) string     { return "verify:throttle:" + email }

// IssueVerificationCode creates a 6-digit registration code for the address
// and stores it in redis with a TTL. At most one code per address per minute.
func IssueVerificationCode(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	ok, err := database.RedisClient.SetNX(ctx, throttleKey(email), "1", verificationThrottle).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrResendThrottle
	}

	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	if err := database.RedisClient.Set(ctx, verificationKey(email), code, verificationTTL).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// ConsumeVerificationCode checks the submitted code and deletes it on match,
// so each code registers at most one account.
func ConsumeVerificationCode(ctx context.Context, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	stored, err := database.RedisClient.Get(ctx, verificationKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrCodeInvalid
	}
	if err != nil {
		return err
	}
	if stored != code {
		return ErrCodeInvalid
	}
	database.RedisClient.Del(ctx, verificationKey(email))
	return nil
}
