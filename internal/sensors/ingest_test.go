package sensors

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richd0tcom/senser/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func TestRecordFansOutToEveryStore(t *testing.T) {
	stores, _, _, _, wide, cache, ts := newTestStores()
	ingestor := NewIngestor(stores.WideColumn, stores.Cache, stores.TimeSeries)
	ctx := context.Background()

	reading := domain.Reading{
		Velocity:     floatPtr(3.2),
		Temperature:  floatPtr(21.5),
		Humidity:     floatPtr(0.6),
		BatteryLevel: 0.8,
		LastSeen:     time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, ingestor.Record(ctx, 1, reading))

	require.Len(t, ts.Readings[1], 1)
	assert.Equal(t, reading, ts.Readings[1][0])

	cached, err := cache.Latest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, reading, *cached)

	assert.Len(t, wide.Temps, 1)
	assert.Empty(t, wide.BatteryLevels)
}

func TestRecordLowBatteryInsertsMarker(t *testing.T) {
	stores, _, _, _, wide, _, _ := newTestStores()
	ingestor := NewIngestor(stores.WideColumn, stores.Cache, stores.TimeSeries)
	ctx := context.Background()

	require.NoError(t, ingestor.Record(ctx, 7, domain.Reading{BatteryLevel: 0.1, LastSeen: time.Now()}))

	rec, err := wide.Battery(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 0.1, rec.BatteryLevel)

	// A second low reading updates the existing marker.
	require.NoError(t, ingestor.Record(ctx, 7, domain.Reading{BatteryLevel: 0.05, LastSeen: time.Now()}))
	rec, err = wide.Battery(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 0.05, rec.BatteryLevel)
}

func TestRecordedRecoveryKeepsStaleMarker(t *testing.T) {
	stores, _, _, _, wide, _, _ := newTestStores()
	ingestor := NewIngestor(stores.WideColumn, stores.Cache, stores.TimeSeries)
	ctx := context.Background()

	require.NoError(t, ingestor.Record(ctx, 7, domain.Reading{BatteryLevel: 0.1, LastSeen: time.Now()}))
	require.NoError(t, ingestor.Record(ctx, 7, domain.Reading{BatteryLevel: 0.95, LastSeen: time.Now()}))

	// Markers are never retracted once written.
	rec, err := wide.Battery(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 0.1, rec.BatteryLevel)
}

func TestRecordThresholdBoundary(t *testing.T) {
	stores, _, _, _, wide, _, _ := newTestStores()
	ingestor := NewIngestor(stores.WideColumn, stores.Cache, stores.TimeSeries)
	ctx := context.Background()

	// Exactly at the threshold is not low.
	require.NoError(t, ingestor.Record(ctx, 1, domain.Reading{BatteryLevel: 0.2, LastSeen: time.Now()}))
	rec, err := wide.Battery(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRecordSkipsTemperatureWhenAbsent(t *testing.T) {
	stores, _, _, _, wide, cache, _ := newTestStores()
	ingestor := NewIngestor(stores.WideColumn, stores.Cache, stores.TimeSeries)
	ctx := context.Background()

	require.NoError(t, ingestor.Record(ctx, 1, domain.Reading{BatteryLevel: 0.5, LastSeen: time.Now()}))

	assert.Empty(t, wide.Temps)
	assert.Zero(t, cache.Seqs[TemperatureSeqKey])
}

func TestRecordCacheIsLastWriteWins(t *testing.T) {
	stores, _, _, _, _, cache, _ := newTestStores()
	ingestor := NewIngestor(stores.WideColumn, stores.Cache, stores.TimeSeries)
	ctx := context.Background()

	first := domain.Reading{Temperature: floatPtr(20), BatteryLevel: 0.9, LastSeen: time.Now()}
	second := domain.Reading{BatteryLevel: 0.7, LastSeen: time.Now()}
	require.NoError(t, ingestor.Record(ctx, 1, first))
	require.NoError(t, ingestor.Record(ctx, 1, second))

	cached, err := cache.Latest(ctx, 1)
	require.NoError(t, err)
	// No merge with the earlier snapshot: temperature is gone.
	assert.Nil(t, cached.Temperature)
	assert.Equal(t, 0.7, cached.BatteryLevel)
}

func TestConcurrentRecordsGetDistinctSequenceKeys(t *testing.T) {
	stores, _, _, _, wide, _, _ := newTestStores()
	ingestor := NewIngestor(stores.WideColumn, stores.Cache, stores.TimeSeries)
	ctx := context.Background()

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ingestor.Record(ctx, 1, domain.Reading{
				Temperature:  floatPtr(20),
				BatteryLevel: 0.9,
				LastSeen:     time.Now(),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// One sample row per write: no two writers landed on the same key.
	assert.Len(t, wide.Temps, writers)
}

func TestRecordThenLiveReadRoundTrip(t *testing.T) {
	stores, _, metadata, _, _, _, _ := newTestStores()
	ingestor := NewIngestor(stores.WideColumn, stores.Cache, stores.TimeSeries)
	history := NewHistory(stores.Metadata, stores.Cache, stores.TimeSeries)
	ctx := context.Background()

	require.NoError(t, metadata.Upsert(ctx, domain.Sensor{ID: 3, Name: "temp1"}))

	reading := domain.Reading{
		Temperature:  floatPtr(19.5),
		BatteryLevel: 0.4,
		LastSeen:     time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC),
	}
	require.NoError(t, ingestor.Record(ctx, 3, reading))

	snapshot, err := history.Live(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snapshot.ID)
	assert.Equal(t, "temp1", snapshot.Name)
	assert.Equal(t, reading, snapshot.Reading)
}
