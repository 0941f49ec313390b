package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	applogger "MarketSignal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisModelStore keeps the model as one JSON document under key.
// Replace is a WATCH/MULTI compare-and-swap on the embedded version.
type RedisModelStore struct {
	rdb redis.UniversalClient
	key string
	l   *applogger.Logger
}

func NewRedisModelStore(rdb redis.UniversalClient, key string) *RedisModelStore {
	return &RedisModelStore{rdb: rdb, key: key}
}

func (s *RedisModelStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *RedisModelStore) Load(ctx context.Context) (*models.Model, error) {
	return s.read(ctx, s.rdb)
}

func (s *RedisModelStore) Replace(ctx context.Context, m *models.Model, expectedVersion int64) (int64, error) {
	var next int64
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		var current int64
		cur, err := s.read(ctx, tx)
		switch {
		case errors.Is(err, models.ErrModelNotFound):
		case err != nil:
			return err
		default:
			current = cur.Version
		}
		if current != expectedVersion {
			return models.ErrVersionConflict
		}

		cp := *m
		cp.Version = current + 1
		data, err := json.Marshal(&cp)
		if err != nil {
			return fmt.Errorf("encode model: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, s.key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		next = cp.Version
		return nil
	}, s.key)

	if errors.Is(err, redis.TxFailedErr) {
		err = models.ErrVersionConflict
	}
	if err != nil {
		if s.l != nil {
			s.l.Warn("model replace failed",
				applogger.String("key", s.key),
				applogger.Int64("expected_version", expectedVersion),
				applogger.Error(err),
			)
		}
		if errors.Is(err, models.ErrVersionConflict) {
			return 0, err
		}
		return 0, fmt.Errorf("replace model: %w", err)
	}
	return next, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisModelStore) read(ctx context.Context, c getter) (*models.Model, error) {
	raw, err := c.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	var m models.Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return &m, nil
}

var _ domrepo.ModelStore = (*RedisModelStore)(nil)
