// Package redis stores fitted forecast models so a restarted service can
// serve forecasts before the first refit.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/air-quality-fusion/internal/forecast"
)

const keyPrefix = "forecast:model:"

// ModelStore implements forecast.ModelStore on a Redis keyspace.
type ModelStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// NewModelStore wraps client. A zero ttl keeps models until overwritten.
func NewModelStore(client *goredis.Client, ttl time.Duration) *ModelStore {
	return &ModelStore{client: client, ttl: ttl}
}

// LoadModel returns the model stored under key. The bool is false when no
// model exists.
func (s *ModelStore) LoadModel(ctx context.Context, key string) (forecast.Model, bool, error) {
	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return forecast.Model{}, false, nil
	}
	if err != nil {
		return forecast.Model{}, false, fmt.Errorf("get model %s: %w", key, err)
	}
	m, err := decodeModel(data)
	if err != nil {
		return forecast.Model{}, false, err
	}
	return m, true, nil
}

// SaveModel stores m under its key, replacing any previous version.
func (s *ModelStore) SaveModel(ctx context.Context, m forecast.Model) error {
	data, err := encodeModel(m)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(m.Key()), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set model %s: %w", m.Key(), err)
	}
	return nil
}

// CheckReadiness pings the server.
func (s *ModelStore) CheckReadiness(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func redisKey(key string) string {
	return keyPrefix + key
}

func encodeModel(m forecast.Model) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode model %s: %w", m.Key(), err)
	}
	return data, nil
}

func decodeModel(data []byte) (forecast.Model, error) {
	var m forecast.Model
	if err := json.Unmarshal(data, &m); err != nil {
		return forecast.Model{}, fmt.Errorf("decode model: %w", err)
	}
	return m, nil
}
