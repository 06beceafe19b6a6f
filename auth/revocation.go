package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradege/marketedgepros-sub001/database"
)

func revocationKey(jti string) string {
	return "token_revoked:" + jti
}

// RevokeToken marks a single jti invalid until its natural expiry. The redis
// entry is the fast path; the token_revocations table is the durable record
// consulted when redis misses.
func RevokeToken(ctx context.Context, jti string, userID int64, tokenType string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := database.RedisClient.Set(ctx, revocationKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revocation in redis: %w", err)
	}

	_, err := database.Pool.Exec(ctx, `
		INSERT INTO token_revocations (jti, user_id, token_type, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (jti) DO NOTHING
	`, jti, userID, tokenType, expiresAt.UTC())
	return err
}

// IsTokenRevoked checks redis first and falls back to the database.
func IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := database.RedisClient.Get(ctx, revocationKey(jti)).Result()
	if err == nil {
		return true, nil
	}
	if err != redis.Nil {
		// redis unavailable; the database is authoritative
		var exists bool
		dbErr := database.Pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM token_revocations WHERE jti = $1 AND expires_at > NOW() AT TIME ZONE 'utc')`,
			jti).Scan(&exists)
		return exists, dbErr
	}

	var exists bool
	dbErr := database.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM token_revocations WHERE jti = $1 AND expires_at > NOW() AT TIME ZONE 'utc')`,
		jti).Scan(&exists)
	return exists, dbErr
}

// RevokeAll invalidates every token issued to the user before this instant by
// bumping token_version; tokens carry the version they were issued with.
func RevokeAll(ctx context.Context, userID int64) error {
	_, err := database.Pool.Exec(ctx,
		`UPDATE users SET token_version = token_version + 1, updated_at = NOW() AT TIME ZONE 'utc' WHERE id = $1`,
		userID)
	return err
}

// PruneExpiredRevocations removes rows whose tokens have expired anyway.
func PruneExpiredRevocations(ctx context.Context) (int64, error) {
	tag, err := database.Pool.Exec(ctx,
		`DELETE FROM token_revocations WHERE expires_at <= NOW() AT TIME ZONE 'utc'`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
