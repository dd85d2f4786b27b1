package db

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/richd0tcom/senser/internal/domain"
)

// CacheStore keeps the latest serialized reading per sensor in Redis and
// allocates sequence numbers with INCR.
type CacheStore struct {
	client *redis.Client
}

func NewCacheStore(addr string) *CacheStore {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &CacheStore{client: client}
}

func (c *CacheStore) SetLatest(ctx context.Context, sensorID int64, reading domain.Reading) error {
	data, err := json.Marshal(reading)
	if err != nil {
		return errors.Wrap(err, "encoding reading")
	}
	err = c.client.Set(ctx, strconv.FormatInt(sensorID, 10), data, 0).Err()
	return errors.Wrap(err, "caching latest reading")
}

func (c *CacheStore) Latest(ctx context.Context, sensorID int64) (*domain.Reading, error) {
	data, err := c.client.Get(ctx, strconv.FormatInt(sensorID, 10)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetching latest reading")
	}

	var reading domain.Reading
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil, errors.Wrap(err, "decoding cached reading")
	}
	return &reading, nil
}

// NextSequence hands out a monotonically increasing number for key. INCR is
// atomic, so concurrent callers always see distinct values.
func (c *CacheStore) NextSequence(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "allocating sequence number")
	}
	return n, nil
}

func (c *CacheStore) Close() error {
	return c.client.Close()
}
