package domain

import "time"

// Sensor is the canonical, assembled view of a sensor: the numeric id is
// allocated by the relational store, everything else lives in the document
// store keyed by that id.
type Sensor struct {
	ID          int64   `json:"id" bson:"id"`
	Name        string  `json:"name" bson:"name"`
	Description string  `json:"description" bson:"description"`
	Type        string  `json:"type" bson:"type"`
	Latitude    float64 `json:"latitude" bson:"latitude"`
	Longitude   float64 `json:"longitude" bson:"longitude"`
}

// SensorCreate is the inbound shape for registering a new sensor.
type SensorCreate struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Type        string  `json:"type" binding:"required"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Identity is the relational-store row for a sensor. Only id and name are
// durable here; the rest of the record belongs to the document store.
type Identity struct {
	ID   int64
	Name string
}

// Reading is a single telemetry sample. Velocity, temperature and humidity
// are optional; battery level and timestamp are always present.
type Reading struct {
	Velocity     *float64  `json:"velocity,omitempty" bson:"velocity,omitempty"`
	Temperature  *float64  `json:"temperature,omitempty" bson:"temperature,omitempty"`
	Humidity     *float64  `json:"humidity,omitempty" bson:"humidity,omitempty"`
	BatteryLevel float64   `json:"battery_level" bson:"battery_level"`
	LastSeen     time.Time `json:"last_seen" bson:"last_seen"`
}

// Snapshot is the live-read result: the latest cached reading merged with
// the sensor's identity.
type Snapshot struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Reading
}

// BulkReading is one entry of a bulk ingest batch published to the broker.
type BulkReading struct {
	SensorID int64   `json:"sensor_id"`
	Reading  Reading `json:"reading"`
}

// BulkReadings is the broker message envelope.
type BulkReadings struct {
	Data []BulkReading `json:"data"`
}

// BucketRow is one aggregated row of a bucketed history query.
type BucketRow struct {
	SensorID       int64     `json:"id"`
	AvgVelocity    *float64  `json:"vel"`
	AvgTemperature *float64  `json:"temp"`
	AvgHumidity    *float64  `json:"hum"`
	MinBattery     *float64  `json:"bat"`
	Bucket         time.Time `json:"time"`
}

// TypeCount is the per-type sensor tally from the wide-column counter table.
type TypeCount struct {
	Type     string `json:"type"`
	Quantity int64  `json:"quantity"`
}

// BatteryRecord marks a sensor that has reported a battery level below the
// low-battery threshold at least once.
type BatteryRecord struct {
	SensorID     int64   `json:"id"`
	BatteryLevel float64 `json:"battery_level"`
}

// TemperatureSummary is the min/max/avg rollup of a sensor's temperature
// samples.
type TemperatureSummary struct {
	SensorID           int64   `json:"id"`
	MinTemperature     float64 `json:"min_temperature"`
	MaxTemperature     float64 `json:"max_temperature"`
	AverageTemperature float64 `json:"average_temperature"`
}

// LowBatteryThreshold is the battery level below which a sensor is flagged.
const LowBatteryThreshold = 0.2
