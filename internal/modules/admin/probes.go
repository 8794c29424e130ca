package admin

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

func PostgresProbe(db Pinger) Probe {
	return Probe{Name: "postgres", Check: db.Ping}
}

func RedisProbe(client redis.Cmdable) Probe {
	return Probe{Name: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}
