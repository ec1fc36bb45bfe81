package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"RepoChat/backend/go/internal/models"
	"github.com/go-redis/redis/v8"
)

const (
	runKeyPrefix  = "repochat:ingestion_run:"
	recentRunsKey = "repochat:ingestion_runs"
)

// RedisRunStore keeps each run as a JSON value and indexes submission order
// in a sorted set scored by submission time.
type RedisRunStore struct {
	rdb redisRunClient
}

// redisRunClient 是 RedisRunStore 用到的命令子集，*redis.Client 满足该接口。
type redisRunClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	SetXX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	ZAdd(ctx context.Context, key string, members ...*redis.Z) *redis.IntCmd
	ZRevRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// NewRedisRunStore creates a new RedisRunStore.
func NewRedisRunStore(rdb *redis.Client) *RedisRunStore {
	return &RedisRunStore{rdb: rdb}
}

func runKey(id string) string { return runKeyPrefix + id }

func (s *RedisRunStore) Create(ctx context.Context, run *models.IngestionRun) error {
	value, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}
	ok, err := s.rdb.SetNX(ctx, runKey(run.ID), value, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ingestion run %s already exists", run.ID)
	}
	return s.rdb.ZAdd(ctx, recentRunsKey, &redis.Z{
		Score:  float64(run.SubmittedAt.UnixMilli()),
		Member: run.ID,
	}).Err()
}

func (s *RedisRunStore) Get(ctx context.Context, id string) (*models.IngestionRun, error) {
	value, err := s.rdb.Get(ctx, runKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return decodeRun(value)
}

func (s *RedisRunStore) List(ctx context.Context, limit int) ([]*models.IngestionRun, error) {
	ids, err := s.rdb.ZRevRange(ctx, recentRunsKey, 0, int64(normalizeLimit(limit)-1)).Result()
	if err != nil {
		return nil, err
	}
	runs := []*models.IngestionRun{}
	if len(ids) == 0 {
		return runs, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = runKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // 索引中存在但值已过期或被删除
		}
		run, err := decodeRun([]byte(str))
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (s *RedisRunStore) Update(ctx context.Context, run *models.IngestionRun) error {
	value, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}
	ok, err := s.rdb.SetXX(ctx, runKey(run.ID), value, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrRunNotFound
	}
	return nil
}

func decodeRun(value []byte) (*models.IngestionRun, error) {
	var run models.IngestionRun
	if err := json.Unmarshal(value, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}

var (
	_ RunStore       = (*RedisRunStore)(nil)
	_ redisRunClient = (*redis.Client)(nil)
)
