// Package redisstore stores the option record as a JSON value in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abczzz13/unprotect"
	"github.com/abczzz13/unprotect/internal/settings"
	"github.com/redis/go-redis/v9"
)

// Store implements settings.Store on a Redis string key.
type Store struct {
	client *redis.Client
	key    string
}

// New connects to redisURL and verifies the connection. keyPrefix is
// prepended to the option name.
func New(ctx context.Context, redisURL, keyPrefix string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, keyPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, keyPrefix string) *Store {
	return &Store{client: client, key: Key(keyPrefix)}
}

// Key returns the Redis key holding the option record.
func Key(prefix string) string {
	return prefix + unprotect.OptionName
}

func (s *Store) Load(ctx context.Context) (*settings.Record, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, settings.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.key, err)
	}

	var rec settings.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", s.key, err)
	}
	return &rec, nil
}

func (s *Store) Save(ctx context.Context, rec *settings.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", s.key, err)
	}

	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
