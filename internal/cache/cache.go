// Package cache adds a Redis read-through layer for single-post lookups
// in front of any store.Store.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alphabot-ai/postboard/internal/codec"
	"github.com/alphabot-ai/postboard/internal/model"
	"github.com/alphabot-ai/postboard/internal/store"
)

const (
	DefaultTTL = 5 * time.Minute
	keyPrefix  = "postboard:post:"
	verPrefix  = "postboard:post-ver:"

	// versionTTL outlives any in-flight fill by a wide margin.
	versionTTL = 24 * time.Hour
)

// Store wraps a store.Store, caching GetPost results as CBOR. Writes go
// straight to the inner store, then drop the cached entry and bump the
// post's version key in one transaction. A fill only lands if the version
// is unchanged since the reader looked, so a document read before a write
// is never cached after it. Reads marked with store.ForUpdate skip the
// cache entirely. Redis failures are logged and the inner store answers
// instead.
type Store struct {
	store.Store
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisClient returns a configured go-redis client from URL
// (e.g. redis://localhost:6379/0) after checking it answers PING.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func New(inner store.Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Store: inner, redis: client, ttl: ttl, logger: logger}
}

func postKey(id string) string {
	return keyPrefix + id
}

func versionKey(id string) string {
	return verPrefix + id
}

func (s *Store) GetPost(ctx context.Context, id string) (model.Post, error) {
	if store.IsForUpdate(ctx) {
		return s.Store.GetPost(ctx, id)
	}

	raw, err := s.redis.Get(ctx, postKey(id)).Bytes()
	switch {
	case err == nil:
		var post model.Post
		derr := codec.Unmarshal(raw, &post)
		if derr == nil {
			normalize(&post)
			return post, nil
		}
		s.logger.Warn("cache: dropping undecodable entry", "post_id", id, "error", derr)
		s.forget(ctx, id)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("cache: get failed", "post_id", id, "error", err)
	}

	version, verr := s.version(ctx, id)
	post, err := s.Store.GetPost(ctx, id)
	if err != nil {
		return model.Post{}, err
	}
	if verr == nil {
		s.remember(ctx, post, version)
	}
	return post, nil
}

func (s *Store) UpdatePost(ctx context.Context, post *model.Post) error {
	err := s.Store.UpdatePost(ctx, post)
	s.forget(ctx, post.ID)
	return err
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	err := s.Store.DeletePost(ctx, id)
	s.forget(ctx, id)
	return err
}

func (s *Store) Close() error {
	err := s.Store.Close()
	if cerr := s.redis.Close(); err == nil {
		err = cerr
	}
	return err
}

// version returns the post's write counter, "" when it has never been
// written through this cache.
func (s *Store) version(ctx context.Context, id string) (string, error) {
	v, err := s.redis.Get(ctx, versionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		s.logger.Warn("cache: version lookup failed", "post_id", id, "error", err)
		return "", err
	}
	return v, nil
}

// remember caches post unless a write has bumped its version since the
// reader saw seen.
func (s *Store) remember(ctx context.Context, post model.Post, seen string) {
	raw, err := codec.Marshal(post)
	if err != nil {
		s.logger.Warn("cache: encode failed", "post_id", post.ID, "error", err)
		return
	}

	vkey := versionKey(post.ID)
	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != seen {
			return redis.TxFailedErr
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, postKey(post.ID), raw, s.ttl)
			return nil
		})
		return err
	}, vkey)
	switch {
	case errors.Is(err, redis.TxFailedErr):
		s.logger.Debug("cache: skipped fill after concurrent write", "post_id", post.ID)
	case err != nil:
		s.logger.Warn("cache: set failed", "post_id", post.ID, "error", err)
	}
}

// forget drops the cached document and bumps the version so fills that
// started before the write are discarded.
func (s *Store) forget(ctx context.Context, id string) {
	vkey := versionKey(id)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, postKey(id))
		pipe.Incr(ctx, vkey)
		pipe.Expire(ctx, vkey, versionTTL)
		return nil
	})
	if err != nil {
		s.logger.Warn("cache: invalidate failed", "post_id", id, "error", err)
	}
}

func normalize(post *model.Post) {
	if post.Comments == nil {
		post.Comments = []model.Comment{}
	}
	if post.Likes == nil {
		post.Likes = []string{}
	}
}
