// Package rediskv implements a kv.Backend on top of Redis, using native
// SET NX/EX, SCAN and DEL against a *redis.Client handed in or built from
// a URL.
package rediskv

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/transferd/transferd/pkg/kv"
)

// Backend is a Redis-backed kv.Backend.
type Backend struct {
	client *redis.Client
}

// New wraps an existing *redis.Client.
func New(client *redis.Client) *Backend {
	return &Backend{client: client}
}

// NewFromURL parses a redis:// URL and builds a client from it, mirroring the
// client construction tusd's redislocker examples use.
func NewFromURL(url string) (*Backend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return New(redis.NewClient(opts)), nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, kv.ErrNotFound
		}
		return nil, errors.Join(kv.ErrTransient, err)
	}
	return data, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, opts kv.SetOptions) (bool, error) {
	if opts.IfAbsent {
		ok, err := b.client.SetNX(ctx, key, value, opts.TTL).Result()
		if err != nil {
			return false, errors.Join(kv.ErrTransient, err)
		}
		return ok, nil
	}

	if err := b.client.Set(ctx, key, value, opts.TTL).Err(); err != nil {
		return false, errors.Join(kv.ErrTransient, err)
	}
	return true, nil
}

func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Del(ctx, key).Result()
	if err != nil {
		return false, errors.Join(kv.ErrTransient, err)
	}
	return n > 0, nil
}

func (b *Backend) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := b.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, errors.Join(kv.ErrTransient, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (b *Backend) Close(ctx context.Context) error {
	return b.client.Close()
}
