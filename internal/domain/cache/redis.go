package cache

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"jewelfinder-go/internal/platform/errors"
)

// redisStore backs the cache with a shared redis instance so multiple
// gateway processes see the same entries.
type redisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures the redis backend.
type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// NewRedis connects and verifies the instance is reachable.
func NewRedis(ctx context.Context, opts RedisOptions) (Store, error) {
	const op = "cache:redis.open"

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.KindStorage, op, "ping redis", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "jewelfinder"
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+":"+key).Bytes()
	if goerrors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "cache:redis.get", "get", err)
	}
	return value, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if err := s.client.Set(ctx, s.prefix+":"+key, value, ttl).Err(); err != nil {
		return errors.Wrap(errors.KindStorage, "cache:redis.set", "set", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+":"+key).Err(); err != nil {
		return errors.Wrap(errors.KindStorage, "cache:redis.delete", "del", err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
