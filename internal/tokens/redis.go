package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "tok:"

func redisKey(token string) string { return keyPrefix + token }

// RedisStore keeps each token as a JSON value under tok:<token> with the
// TTL set on the key, so Redis handles expiry.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// DialRedis connects and pings.
func DialRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedisStore(client), nil
}

func (r *RedisStore) Put(ctx context.Context, kind Kind, subject string, ttl time.Duration) (Entry, error) {
	e := Entry{Token: newToken(), Kind: kind, Subject: subject}
	if ttl > 0 {
		e.ExpiresAt = r.now().Add(ttl).UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, err
	}
	if err := r.client.Set(ctx, redisKey(e.Token), data, ttl).Err(); err != nil {
		return Entry{}, fmt.Errorf("store token: %w", err)
	}
	return e, nil
}

func (r *RedisStore) Get(ctx context.Context, token string) (Entry, error) {
	data, err := r.client.Get(ctx, redisKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load token: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decode token: %w", err)
	}
	return e, nil
}

func (r *RedisStore) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, redisKey(token)).Err(); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
