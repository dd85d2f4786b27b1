package sensors

import (
	"context"

	"github.com/pkg/errors"

	"github.com/richd0tcom/senser/internal/domain"
)

// Stats answers the derived-state reports backed by the wide-column store.
type Stats struct {
	metadata domain.MetadataStore
	wide     domain.WideColumnStore
}

func NewStats(metadata domain.MetadataStore, wide domain.WideColumnStore) *Stats {
	return &Stats{metadata: metadata, wide: wide}
}

// QuantityByType returns the per-type sensor counters. Counters are never
// decremented on delete, so the tally reflects creations, not live sensors.
func (s *Stats) QuantityByType(ctx context.Context) ([]domain.TypeCount, error) {
	return s.wide.TypeCounts(ctx)
}

// LowBattery returns every sensor that has reported a battery level below
// the threshold at least once, joined with its document record. Markers
// for sensors deleted since are skipped.
func (s *Stats) LowBattery(ctx context.Context) ([]domain.LowBatterySensor, error) {
	records, err := s.wide.BatteryRecords(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.LowBatterySensor, 0, len(records))
	for _, rec := range records {
		sensor, err := s.metadata.ByID(ctx, rec.SensorID)
		if errors.Is(err, domain.ErrSensorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, domain.LowBatterySensor{Sensor: *sensor, BatteryLevel: rec.BatteryLevel})
	}
	return out, nil
}

// TemperatureValues returns the min/max/avg temperature rollup per sensor,
// joined with the document record.
func (s *Stats) TemperatureValues(ctx context.Context) ([]domain.SensorTemperatures, error) {
	summaries, err := s.wide.TemperatureSummaries(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.SensorTemperatures, 0, len(summaries))
	for _, sum := range summaries {
		sensor, err := s.metadata.ByID(ctx, sum.SensorID)
		if errors.Is(err, domain.ErrSensorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, domain.SensorTemperatures{
			Sensor: *sensor,
			Values: []domain.TemperatureValue{{
				MinTemperature:     sum.MinTemperature,
				MaxTemperature:     sum.MaxTemperature,
				AverageTemperature: sum.AverageTemperature,
			}},
		})
	}
	return out, nil
}
