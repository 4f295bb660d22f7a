package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"
)

// setCommands is the slice of the redis client the store needs.
type setCommands interface {
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// RedisOptions configures OpenRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisStore keeps the ledger in a redis set.
type RedisStore struct {
	client setCommands
	key    string
	close  func() error
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client setCommands, key string) *RedisStore {
	return &RedisStore{client: client, key: key, close: func() error { return nil }}
}

// OpenRedis connects to redis and checks the connection.
func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	key := opts.Key
	if key == "" {
		key = DefaultConfig().RedisKey
	}
	s := NewRedisStore(rdb, key)
	s.close = rdb.Close
	return s, nil
}

// Has reports whether url is in the set.
func (s *RedisStore) Has(ctx context.Context, url string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key, url).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

// Record adds url to the set.
func (s *RedisStore) Record(ctx context.Context, url string) error {
	if err := s.client.SAdd(ctx, s.key, url).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// List returns the members of the set, sorted.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	urls, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(urls)
	return urls, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.close()
}
