package db

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"github.com/richd0tcom/senser/internal/domain"
)

// WideColumnStore keeps the derived sensor aggregates in Cassandra: the
// per-type counter table, the low-battery markers, and the raw temperature
// samples.
type WideColumnStore struct {
	session *gocql.Session
}

// Column types are pinned to the Go types this adapter binds and scans:
// ids are int64 (bigint), battery levels and temperatures are float64
// (double). gocql does not marshal float64 into decimal columns.
var keyspaceDDL = []string{
	`CREATE KEYSPACE IF NOT EXISTS sensor
		WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 3}`,
	`CREATE TABLE IF NOT EXISTS sensor.temperature_values (
		id bigint, value_id bigint, temperature double,
		PRIMARY KEY (id, value_id))
		WITH comment = 'Find values temperature'`,
	`CREATE TABLE IF NOT EXISTS sensor.types (
		type text PRIMARY KEY, count counter)
		WITH comment = 'Find number of types of sensor'`,
	`CREATE TABLE IF NOT EXISTS sensor.battery (
		id bigint PRIMARY KEY, battery_level double)
		WITH comment = 'Find sensor with battery level <20%'`,
}

func NewWideColumnStore(hosts []string) (*WideColumnStore, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.ProtoVersion = 4
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 10 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Cassandra")
	}
	return &WideColumnStore{session: session}, nil
}

func (w *WideColumnStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range keyspaceDDL {
		if err := w.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return errors.Wrap(err, "provisioning keyspace")
		}
	}
	return nil
}

func (w *WideColumnStore) IncrementTypeCount(ctx context.Context, sensorType string) error {
	err := w.session.Query(
		`UPDATE sensor.types SET count = count + 1 WHERE type = ?`,
		sensorType,
	).WithContext(ctx).Exec()
	return errors.Wrap(err, "incrementing type counter")
}

func (w *WideColumnStore) TypeCounts(ctx context.Context) ([]domain.TypeCount, error) {
	iter := w.session.Query(
		`SELECT type, count FROM sensor.types`,
	).WithContext(ctx).Iter()

	var counts []domain.TypeCount
	var tc domain.TypeCount
	for iter.Scan(&tc.Type, &tc.Quantity) {
		counts = append(counts, tc)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "scanning type counters")
	}
	return counts, nil
}

func (w *WideColumnStore) Battery(ctx context.Context, sensorID int64) (*domain.BatteryRecord, error) {
	var rec domain.BatteryRecord
	err := w.session.Query(
		`SELECT id, battery_level FROM sensor.battery WHERE id = ?`,
		sensorID,
	).WithContext(ctx).Scan(&rec.SensorID, &rec.BatteryLevel)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading battery record")
	}
	return &rec, nil
}

func (w *WideColumnStore) InsertBattery(ctx context.Context, sensorID int64, level float64) error {
	err := w.session.Query(
		`INSERT INTO sensor.battery (id, battery_level) VALUES (?, ?)`,
		sensorID, level,
	).WithContext(ctx).Exec()
	return errors.Wrap(err, "inserting battery record")
}

func (w *WideColumnStore) UpdateBattery(ctx context.Context, sensorID int64, level float64) error {
	err := w.session.Query(
		`UPDATE sensor.battery SET battery_level = ? WHERE id = ?`,
		level, sensorID,
	).WithContext(ctx).Exec()
	return errors.Wrap(err, "updating battery record")
}

func (w *WideColumnStore) BatteryRecords(ctx context.Context) ([]domain.BatteryRecord, error) {
	iter := w.session.Query(
		`SELECT id, battery_level FROM sensor.battery`,
	).WithContext(ctx).Iter()

	var records []domain.BatteryRecord
	var rec domain.BatteryRecord
	for iter.Scan(&rec.SensorID, &rec.BatteryLevel) {
		records = append(records, rec)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "scanning battery records")
	}
	return records, nil
}

func (w *WideColumnStore) InsertTemperature(ctx context.Context, sensorID, seq int64, value float64) error {
	err := w.session.Query(
		`INSERT INTO sensor.temperature_values (id, value_id, temperature) VALUES (?, ?, ?)`,
		sensorID, seq, value,
	).WithContext(ctx).Exec()
	return errors.Wrap(err, "inserting temperature sample")
}

func (w *WideColumnStore) TemperatureSummaries(ctx context.Context) ([]domain.TemperatureSummary, error) {
	iter := w.session.Query(
		`SELECT id, MIN(temperature) AS min, MAX(temperature) AS max, AVG(temperature) AS avg
			FROM sensor.temperature_values GROUP BY id`,
	).WithContext(ctx).Iter()

	var summaries []domain.TemperatureSummary
	var s domain.TemperatureSummary
	for iter.Scan(&s.SensorID, &s.MinTemperature, &s.MaxTemperature, &s.AverageTemperature) {
		summaries = append(summaries, s)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "scanning temperature summaries")
	}
	return summaries, nil
}

func (w *WideColumnStore) Close() error {
	w.session.Close()
	return nil
}
