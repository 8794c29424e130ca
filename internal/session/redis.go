package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedPrefix   = "session:revoked:"
	notBeforePrefix = "session:nbf:"
)

type redisProvider struct {
	client redis.Cmdable
}

// NewRedisProvider returns a Provider that stores revocations as expiring
// Redis keys.
func NewRedisProvider(client redis.Cmdable) Provider {
	return &redisProvider{client: client}
}

func (p *redisProvider) RevokeSession(ctx context.Context, sid string, ttl time.Duration) error {
	if err := p.client.Set(ctx, revokedPrefix+sid, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (p *redisProvider) RevokeUser(ctx context.Context, userID string, notBefore time.Time, ttl time.Duration) error {
	if err := p.client.Set(ctx, notBeforePrefix+userID, notBefore.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

func (p *redisProvider) IsRevoked(ctx context.Context, sid, userID string, issuedAt time.Time) (bool, error) {
	vals, err := p.client.MGet(ctx, revokedPrefix+sid, notBeforePrefix+userID).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	if len(vals) > 0 && vals[0] != nil {
		return true, nil
	}
	if len(vals) > 1 && vals[1] != nil {
		s, ok := vals[1].(string)
		if !ok {
			return false, fmt.Errorf("check revocation: unexpected value %T", vals[1])
		}
		nbf, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return false, fmt.Errorf("check revocation: %w", err)
		}
		return issuedAt.Unix() < nbf, nil
	}
	return false, nil
}
