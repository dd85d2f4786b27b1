package domain

import (
	"context"
	"time"
)

// IdentityStore is the relational store owning sensor identity and id
// allocation. Name uniqueness is enforced here.
type IdentityStore interface {
	Insert(ctx context.Context, name string) (int64, error)
	ByID(ctx context.Context, id int64) (*Identity, error)
	ByName(ctx context.Context, name string) (*Identity, error)
	List(ctx context.Context, offset, limit int) ([]Identity, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// BoundingBox is an inclusive lat/lon rectangle for proximity queries.
type BoundingBox struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

// MetadataStore is the document store holding descriptive sensor fields,
// keyed by the relational id.
type MetadataStore interface {
	Upsert(ctx context.Context, sensor Sensor) error
	ByID(ctx context.Context, id int64) (*Sensor, error)
	InBoundingBox(ctx context.Context, box BoundingBox) ([]Sensor, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}

// SearchClause selects how a search term is matched against the index.
type SearchClause string

const (
	ClausePrefix  SearchClause = "prefix"
	ClauseSimilar SearchClause = "similar"
	ClauseMatch   SearchClause = "match"
)

// SearchHit is one search-index result, in relevance order.
type SearchHit struct {
	Name string
}

// SearchStore is the derived full-text projection of sensor records.
type SearchStore interface {
	EnsureIndex(ctx context.Context) error
	Index(ctx context.Context, sensor Sensor) error
	Search(ctx context.Context, clause SearchClause, field, value string) ([]SearchHit, error)
	DeleteByName(ctx context.Context, name string) error
	Close() error
}

// WideColumnStore holds the derived counters and rollups: per-type sensor
// counts, low-battery markers, and raw temperature samples.
type WideColumnStore interface {
	EnsureSchema(ctx context.Context) error
	IncrementTypeCount(ctx context.Context, sensorType string) error
	TypeCounts(ctx context.Context) ([]TypeCount, error)
	Battery(ctx context.Context, sensorID int64) (*BatteryRecord, error)
	InsertBattery(ctx context.Context, sensorID int64, level float64) error
	UpdateBattery(ctx context.Context, sensorID int64, level float64) error
	BatteryRecords(ctx context.Context) ([]BatteryRecord, error)
	InsertTemperature(ctx context.Context, sensorID, seq int64, value float64) error
	TemperatureSummaries(ctx context.Context) ([]TemperatureSummary, error)
	Close() error
}

// CacheStore keeps the latest reading per sensor (last-write-wins) and
// hands out atomic sequence numbers.
type CacheStore interface {
	SetLatest(ctx context.Context, sensorID int64, reading Reading) error
	Latest(ctx context.Context, sensorID int64) (*Reading, error)
	NextSequence(ctx context.Context, key string) (int64, error)
	Close() error
}

// TimeSeriesStore is the durable history of raw readings plus the ad-hoc
// continuous-aggregate machinery used by bucketed queries.
type TimeSeriesStore interface {
	EnsureSchema(ctx context.Context) error
	InsertReading(ctx context.Context, sensorID int64, reading Reading) error
	CreateAggregateView(ctx context.Context, name, bucketWidth string) error
	QueryAggregateView(ctx context.Context, name string, sensorID int64, from, to time.Time) ([]BucketRow, error)
	DropAggregateView(ctx context.Context, name string) error
	Close() error
}
