// Package redis stores customer contexts in Redis so several gateway
// replicas can share them.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/revittco/costgate/internal/store"
)

const keyPrefix = "costgate:customer_context:"

var _ store.SessionStore = (*SessionStore)(nil)

// SessionStore implements store.SessionStore on a Redis client.
type SessionStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// Open parses url, connects and pings. A ttl of zero keeps entries forever.
func Open(ctx context.Context, url string, ttl time.Duration) (*SessionStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return New(client, ttl), nil
}

func New(client *goredis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func key(credential string) string {
	return keyPrefix + store.HashCredential(credential)
}

func (s *SessionStore) SaveCustomerContext(ctx context.Context, credential, customerContext string) error {
	if customerContext == "" {
		return store.ErrEmptyContext
	}
	return s.client.Set(ctx, key(credential), customerContext, s.ttl).Err()
}

func (s *SessionStore) LoadCustomerContext(ctx context.Context, credential string) (string, error) {
	v, err := s.client.Get(ctx, key(credential)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *SessionStore) DeleteCustomerContext(ctx context.Context, credential string) error {
	n, err := s.client.Del(ctx, key(credential)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SessionStore) Close() error {
	return s.client.Close()
}
