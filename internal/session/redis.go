package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PickFolio/pickfolio-go/internal/domain"
)

const redisOpTimeout = 5 * time.Second

// RedisStore keeps the credential pair in Redis under a single key, for
// headless deployments where several worker processes share one session
// (e.g. a bot fleet behind one account).
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "pickfolio:session"
	}
	return &RedisStore{client: client, key: key}
}

// DialRedis connects to Redis and verifies the connection with a ping.
func DialRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Get() (domain.CredentialPair, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		return domain.CredentialPair{}, false
	}

	var pair domain.CredentialPair
	if err := json.Unmarshal(data, &pair); err != nil || pair.AccessToken == "" {
		return domain.CredentialPair{}, false
	}
	return pair, true
}

func (s *RedisStore) Set(pair domain.CredentialPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return s.client.Set(ctx, s.key, data, 0).Err()
}

func (s *RedisStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
