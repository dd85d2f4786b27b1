package sensors

import (
	"context"

	"github.com/richd0tcom/senser/internal/domain"
)

// TemperatureSeqKey is the cache key holding the atomic sequence for
// temperature sample rows.
const TemperatureSeqKey = "sensor:temperature:seq"

// Ingestor fans a single telemetry sample out to the time-series store,
// the wide-column derived tables, and the cache. The caller is responsible
// for checking that the sensor exists. Steps are not transactional; a
// failure reports the failed step and leaves earlier steps committed.
type Ingestor struct {
	wide  domain.WideColumnStore
	cache domain.CacheStore
	ts    domain.TimeSeriesStore
}

func NewIngestor(wide domain.WideColumnStore, cache domain.CacheStore, ts domain.TimeSeriesStore) *Ingestor {
	return &Ingestor{wide: wide, cache: cache, ts: ts}
}

func (g *Ingestor) Record(ctx context.Context, sensorID int64, reading domain.Reading) error {
	if err := g.ts.InsertReading(ctx, sensorID, reading); err != nil {
		return &domain.PartialWriteError{Op: "record reading", Step: "time-series insert", Err: err}
	}
	applied := []string{"time-series insert"}

	// Low-battery markers are only ever written, never cleared; a reading
	// at or above the threshold leaves a stale marker in place.
	if reading.BatteryLevel < domain.LowBatteryThreshold {
		existing, err := g.wide.Battery(ctx, sensorID)
		if err != nil {
			return &domain.PartialWriteError{Op: "record reading", Step: "battery read", Applied: applied, Err: err}
		}
		if existing != nil {
			err = g.wide.UpdateBattery(ctx, sensorID, reading.BatteryLevel)
		} else {
			err = g.wide.InsertBattery(ctx, sensorID, reading.BatteryLevel)
		}
		if err != nil {
			return &domain.PartialWriteError{Op: "record reading", Step: "battery upsert", Applied: applied, Err: err}
		}
		applied = append(applied, "battery upsert")
	}

	if reading.Temperature != nil {
		seq, err := g.cache.NextSequence(ctx, TemperatureSeqKey)
		if err != nil {
			return &domain.PartialWriteError{Op: "record reading", Step: "sequence allocation", Applied: applied, Err: err}
		}
		if err := g.wide.InsertTemperature(ctx, sensorID, seq, *reading.Temperature); err != nil {
			return &domain.PartialWriteError{Op: "record reading", Step: "temperature insert", Applied: applied, Err: err}
		}
		applied = append(applied, "temperature insert")
	}

	// Last-write-wins snapshot; no merge with whatever was cached before.
	if err := g.cache.SetLatest(ctx, sensorID, reading); err != nil {
		return &domain.PartialWriteError{Op: "record reading", Step: "cache set", Applied: applied, Err: err}
	}

	return nil
}
