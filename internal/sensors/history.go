package sensors

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/richd0tcom/senser/internal/domain"
)

// bucketWidths maps the bucket selector to the time_bucket width used by
// the aggregate view.
var bucketWidths = map[string]string{
	"hour":  "1 h",
	"day":   "1 day",
	"week":  "1 week",
	"month": "1 month",
	"year":  "1 year",
}

// weekSkew compensates for the week-bucket boundary landing two days late:
// both query bounds are shifted this far back before querying.
const weekSkew = 48 * time.Hour

// History answers data queries for a sensor: the live cached reading when
// no interval is given, or a bucketed aggregate over the time-series store.
type History struct {
	metadata domain.MetadataStore
	cache    domain.CacheStore
	ts       domain.TimeSeriesStore
}

func NewHistory(metadata domain.MetadataStore, cache domain.CacheStore, ts domain.TimeSeriesStore) *History {
	return &History{metadata: metadata, cache: cache, ts: ts}
}

// Live returns the latest cached reading merged with the sensor's name.
// No cached value is reported as the sensor not being found.
func (h *History) Live(ctx context.Context, sensorID int64) (*domain.Snapshot, error) {
	reading, err := h.cache.Latest(ctx, sensorID)
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			return nil, domain.ErrSensorNotFound
		}
		return nil, err
	}

	sensor, err := h.metadata.ByID(ctx, sensorID)
	if err != nil {
		return nil, err
	}

	return &domain.Snapshot{ID: sensorID, Name: sensor.Name, Reading: *reading}, nil
}

// Bucketed materializes a continuous aggregate over the raw readings,
// queries it for [from, to], and drops it again. The view name is scoped
// per call so concurrent queries cannot collide.
func (h *History) Bucketed(ctx context.Context, sensorID int64, from, to time.Time, bucket string) ([]domain.BucketRow, error) {
	width, ok := bucketWidths[bucket]
	if !ok {
		return nil, domain.ErrInvalidBucket
	}

	name := viewName()
	if err := h.ts.CreateAggregateView(ctx, name, width); err != nil {
		return nil, err
	}
	defer func() {
		if err := h.ts.DropAggregateView(context.WithoutCancel(ctx), name); err != nil {
			log.Printf("Failed to drop aggregate view %s: %v", name, err)
		}
	}()

	if bucket == "week" {
		from = from.Add(-weekSkew)
		to = to.Add(-weekSkew)
	}

	return h.ts.QueryAggregateView(ctx, name, sensorID, from, to)
}

func viewName() string {
	return "sensor_agg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
