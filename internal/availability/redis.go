package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a shared Redis instance.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string) *RedisStore {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisStore{client: c}
}

// NewRedisStoreWithClient wraps an existing client (shared with other wiring).
func NewRedisStoreWithClient(c *redis.Client) *RedisStore {
	return &RedisStore{client: c}
}

func (s *RedisStore) IsAvailable(ctx context.Context, driverID string) (bool, error) {
	v, err := s.client.HGet(ctx, statusKey(driverID), FieldAvailable).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("availability get %s: %w", driverID, err)
	}
	return v == FlagAvailable, nil
}

func (s *RedisStore) SetAvailable(ctx context.Context, driverID string, available bool) error {
	flag := FlagBusy
	if available {
		flag = FlagAvailable
	}
	if err := s.client.HSet(ctx, statusKey(driverID), FieldAvailable, flag).Err(); err != nil {
		return fmt.Errorf("availability set %s: %w", driverID, err)
	}
	return nil
}

func (s *RedisStore) AcquireLock(ctx context.Context, driverID, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, lockKey(driverID), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reservation lock %s: %w", driverID, err)
	}
	return ok, nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, driverID string) error {
	if err := s.client.Del(ctx, lockKey(driverID)).Err(); err != nil {
		return fmt.Errorf("reservation unlock %s: %w", driverID, err)
	}
	return nil
}

func (s *RedisStore) BusyDrivers(ctx context.Context) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	prefix := fmt.Sprintf(KeyDriverStatus, "")
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			return nil, fmt.Errorf("availability scan: %w", err)
		}
		for _, key := range keys {
			v, err := s.client.HGet(ctx, key, FieldAvailable).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("availability scan get %s: %w", key, err)
			}
			if v == FlagBusy {
				out = append(out, key[len(prefix):])
			}
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (s *RedisStore) AcquireJobLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, fmt.Sprintf(KeyJobLock, name), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("job lock %s: %w", name, err)
	}
	return ok, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }

func statusKey(driverID string) string { return fmt.Sprintf(KeyDriverStatus, driverID) }
func lockKey(driverID string) string   { return fmt.Sprintf(KeyMatchingLock, driverID) }
