package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/richd0tcom/senser/internal/domain"
)

// TimeSeriesStore is the TimescaleDB history of raw readings. Bucketed
// queries materialize a continuous aggregate on demand; the view name is
// chosen by the caller so each query can scope its own.
type TimeSeriesStore struct {
	pool *pgxpool.Pool
}

var timescaleDDL = []string{
	`CREATE TABLE IF NOT EXISTS sensor_data (
		id bigint NOT NULL,
		velocity double precision,
		temperature double precision,
		humidity double precision,
		battery_level double precision,
		last_seen timestamptz NOT NULL
	)`,
	`SELECT create_hypertable('sensor_data', 'last_seen', if_not_exists => TRUE)`,
}

func NewTimeSeriesStore(ctx context.Context, dsn string) (*TimeSeriesStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Timescale")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping Timescale")
	}
	return &TimeSeriesStore{pool: pool}, nil
}

func (t *TimeSeriesStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range timescaleDDL {
		if _, err := t.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "provisioning sensor_data")
		}
	}
	return nil
}

func (t *TimeSeriesStore) InsertReading(ctx context.Context, sensorID int64, reading domain.Reading) error {
	_, err := t.pool.Exec(ctx,
		`INSERT INTO sensor_data (id, velocity, temperature, humidity, battery_level, last_seen)
			VALUES ($1, $2, $3, $4, $5, $6)`,
		sensorID, reading.Velocity, reading.Temperature, reading.Humidity,
		reading.BatteryLevel, reading.LastSeen,
	)
	return errors.Wrap(err, "inserting reading")
}

// CreateAggregateView builds a continuous aggregate named name over
// sensor_data. bucketWidth comes from the closed bucket map and name from a
// generated token, so both are interpolated directly; DDL cannot take bind
// parameters.
func (t *TimeSeriesStore) CreateAggregateView(ctx context.Context, name, bucketWidth string) error {
	stmt := fmt.Sprintf(`
		CREATE MATERIALIZED VIEW %s
		WITH (timescaledb.continuous) AS
		SELECT
			id,
			AVG(velocity) AS vel,
			AVG(temperature) AS temp,
			AVG(humidity) AS hum,
			MIN(battery_level) AS bat,
			time_bucket('%s', last_seen) AS time
		FROM sensor_data
		GROUP BY id, time_bucket('%s', last_seen)
		WITH NO DATA`, name, bucketWidth, bucketWidth)

	if _, err := t.pool.Exec(ctx, stmt); err != nil {
		return errors.Wrap(err, "creating aggregate view")
	}

	refresh := fmt.Sprintf(`CALL refresh_continuous_aggregate('%s', NULL, NULL)`, name)
	if _, err := t.pool.Exec(ctx, refresh); err != nil {
		return errors.Wrap(err, "refreshing aggregate view")
	}
	return nil
}

func (t *TimeSeriesStore) QueryAggregateView(ctx context.Context, name string, sensorID int64, from, to time.Time) ([]domain.BucketRow, error) {
	stmt := fmt.Sprintf(`
		SELECT id, vel, temp, hum, bat, time FROM %s
		WHERE time >= $1 AND time <= $2 AND id = $3
		ORDER BY time`, name)

	rows, err := t.pool.Query(ctx, stmt, from, to, sensorID)
	if err != nil {
		return nil, errors.Wrap(err, "querying aggregate view")
	}
	defer rows.Close()

	var out []domain.BucketRow
	for rows.Next() {
		var row domain.BucketRow
		if err := rows.Scan(&row.SensorID, &row.AvgVelocity, &row.AvgTemperature,
			&row.AvgHumidity, &row.MinBattery, &row.Bucket); err != nil {
			return nil, errors.Wrap(err, "scanning aggregate row")
		}
		out = append(out, row)
	}
	return out, errors.Wrap(rows.Err(), "iterating aggregate rows")
}

func (t *TimeSeriesStore) DropAggregateView(ctx context.Context, name string) error {
	stmt := fmt.Sprintf(`DROP MATERIALIZED VIEW IF EXISTS %s`, name)
	_, err := t.pool.Exec(ctx, stmt)
	return errors.Wrap(err, "dropping aggregate view")
}

func (t *TimeSeriesStore) Close() error {
	t.pool.Close()
	return nil
}
