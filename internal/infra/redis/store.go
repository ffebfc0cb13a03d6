// Package redis implements kvstore.Store on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store implements kvstore.Store with SETNX, GET, SET ... GET and DEL.
// Every key is namespaced with keyPrefix so several services can share one Redis.
type Store struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
}

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient opens a client and verifies it with PING.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewStore returns a Store using client. An empty keyPrefix stores keys as given.
func NewStore(client *redis.Client, logger *zap.Logger, keyPrefix string) *Store {
	return &Store{
		client:    client,
		logger:    logger,
		keyPrefix: keyPrefix,
	}
}

// SetIfAbsent implements kvstore.Store.SetIfAbsent with SETNX.
func (s *Store) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.buildKey(key), value, 0).Result()
	if err != nil {
		s.logger.Error("redis setnx failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}

	s.logger.Debug("redis setnx",
		zap.String("key", key),
		zap.Bool("written", ok),
	)
	return ok, nil
}

// Get implements kvstore.Store.Get.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.buildKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		s.logger.Error("redis get failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Swap implements kvstore.Store.Swap with SET ... GET.
func (s *Store) Swap(ctx context.Context, key, value string) (string, bool, error) {
	prev, err := s.client.SetArgs(ctx, s.buildKey(key), value, redis.SetArgs{Get: true}).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		s.logger.Error("redis set get failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return "", false, fmt.Errorf("set get %s: %w", key, err)
	}
	return prev, true, nil
}

// Delete implements kvstore.Store.Delete. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.buildKey(key)).Err(); err != nil {
		s.logger.Error("redis delete failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("del %s: %w", key, err)
	}

	s.logger.Debug("redis delete", zap.String("key", key))
	return nil
}

// Ping implements kvstore.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Keys implements kvstore.Lister.
// Uses SCAN, which is safe for production use (non-blocking).
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := s.buildKey(escapeGlob(prefix)) + "*"

	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	keys := []string{}
	for iter.Next(ctx) {
		keys = append(keys, s.stripKey(iter.Val()))
	}
	if err := iter.Err(); err != nil {
		s.logger.Error("redis scan failed",
			zap.String("pattern", pattern),
			zap.Error(err),
		)
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return keys, nil
}

func (s *Store) buildKey(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + ":" + key
}

func (s *Store) stripKey(full string) string {
	if s.keyPrefix == "" {
		return full
	}
	return strings.TrimPrefix(full, s.keyPrefix+":")
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
