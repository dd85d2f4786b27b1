// Package mock provides in-memory store implementations used for testing.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/richd0tcom/senser/internal/domain"
)

// IdentityStore is an in-memory relational store. Not safe to inspect
// concurrently with writes.
type IdentityStore struct {
	mu        sync.Mutex
	nextID    int64
	Rows      map[int64]string
	InsertErr error
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{Rows: make(map[int64]string)}
}

func (f *IdentityStore) Insert(_ context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return 0, f.InsertErr
	}
	f.nextID++
	f.Rows[f.nextID] = name
	return f.nextID, nil
}

func (f *IdentityStore) ByID(_ context.Context, id int64) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.Rows[id]
	if !ok {
		return nil, domain.ErrSensorNotFound
	}
	return &domain.Identity{ID: id, Name: name}, nil
}

func (f *IdentityStore) ByName(_ context.Context, name string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, n := range f.Rows {
		if n == name {
			return &domain.Identity{ID: id, Name: n}, nil
		}
	}
	return nil, domain.ErrSensorNotFound
}

func (f *IdentityStore) List(_ context.Context, offset, limit int) ([]domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.Rows))
	for id := range f.Rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []domain.Identity
	for i, id := range ids {
		if i < offset {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, domain.Identity{ID: id, Name: f.Rows[id]})
	}
	return out, nil
}

func (f *IdentityStore) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Rows[id]; !ok {
		return domain.ErrSensorNotFound
	}
	delete(f.Rows, id)
	return nil
}

func (f *IdentityStore) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.Rows)), nil
}

func (f *IdentityStore) Close() error { return nil }

// MetadataStore is an in-memory document store.
type MetadataStore struct {
	mu        sync.Mutex
	Docs      map[int64]domain.Sensor
	UpsertErr error
}

func NewMetadataStore() *MetadataStore {
	return &MetadataStore{Docs: make(map[int64]domain.Sensor)}
}

func (f *MetadataStore) Upsert(_ context.Context, sensor domain.Sensor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	f.Docs[sensor.ID] = sensor
	return nil
}

func (f *MetadataStore) ByID(_ context.Context, id int64) (*domain.Sensor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.Docs[id]
	if !ok {
		return nil, domain.ErrSensorNotFound
	}
	return &doc, nil
}

func (f *MetadataStore) InBoundingBox(_ context.Context, box domain.BoundingBox) ([]domain.Sensor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Sensor
	for _, doc := range f.Docs {
		if doc.Latitude >= box.MinLatitude && doc.Latitude <= box.MaxLatitude &&
			doc.Longitude >= box.MinLongitude && doc.Longitude <= box.MaxLongitude {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *MetadataStore) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Docs, id)
	return nil
}

func (f *MetadataStore) Close() error { return nil }

// SearchStore is an in-memory search index. Prefix queries match
// case-insensitive prefixes; every other clause falls back to substring
// matching, which is close enough for orchestration tests.
type SearchStore struct {
	mu          sync.Mutex
	Indexed     []domain.Sensor
	EnsureCalls int
	IndexErr    error
}

func (f *SearchStore) EnsureIndex(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EnsureCalls++
	return nil
}

func (f *SearchStore) Index(_ context.Context, sensor domain.Sensor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.IndexErr != nil {
		return f.IndexErr
	}
	f.Indexed = append(f.Indexed, sensor)
	return nil
}

func (f *SearchStore) Search(_ context.Context, clause domain.SearchClause, field, value string) ([]domain.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var hits []domain.SearchHit
	for _, doc := range f.Indexed {
		fieldValue := doc.Name
		switch field {
		case "description":
			fieldValue = doc.Description
		case "type":
			fieldValue = doc.Type
		}
		switch clause {
		case domain.ClausePrefix:
			if strings.HasPrefix(strings.ToLower(fieldValue), strings.ToLower(value)) {
				hits = append(hits, domain.SearchHit{Name: doc.Name})
			}
		default:
			if strings.Contains(strings.ToLower(fieldValue), strings.ToLower(value)) {
				hits = append(hits, domain.SearchHit{Name: doc.Name})
			}
		}
	}
	return hits, nil
}

func (f *SearchStore) DeleteByName(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.Indexed[:0]
	for _, doc := range f.Indexed {
		if doc.Name != name {
			kept = append(kept, doc)
		}
	}
	f.Indexed = kept
	return nil
}

func (f *SearchStore) Close() error { return nil }

// TempKey identifies one temperature sample row.
type TempKey struct {
	SensorID int64
	Seq      int64
}

// WideColumnStore is an in-memory wide-column store.
type WideColumnStore struct {
	mu            sync.Mutex
	Counts        map[string]int64
	BatteryLevels map[int64]float64
	Temps         map[TempKey]float64
	SchemaCalls   int
	IncrErr       error
}

func NewWideColumnStore() *WideColumnStore {
	return &WideColumnStore{
		Counts:        make(map[string]int64),
		BatteryLevels: make(map[int64]float64),
		Temps:         make(map[TempKey]float64),
	}
}

func (f *WideColumnStore) EnsureSchema(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SchemaCalls++
	return nil
}

func (f *WideColumnStore) IncrementTypeCount(_ context.Context, sensorType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.IncrErr != nil {
		return f.IncrErr
	}
	f.Counts[sensorType]++
	return nil
}

func (f *WideColumnStore) TypeCounts(_ context.Context) ([]domain.TypeCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TypeCount
	for t, n := range f.Counts {
		out = append(out, domain.TypeCount{Type: t, Quantity: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (f *WideColumnStore) Battery(_ context.Context, sensorID int64) (*domain.BatteryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	level, ok := f.BatteryLevels[sensorID]
	if !ok {
		return nil, nil
	}
	return &domain.BatteryRecord{SensorID: sensorID, BatteryLevel: level}, nil
}

func (f *WideColumnStore) InsertBattery(_ context.Context, sensorID int64, level float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BatteryLevels[sensorID] = level
	return nil
}

func (f *WideColumnStore) UpdateBattery(_ context.Context, sensorID int64, level float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BatteryLevels[sensorID] = level
	return nil
}

func (f *WideColumnStore) BatteryRecords(_ context.Context) ([]domain.BatteryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.BatteryRecord
	for id, level := range f.BatteryLevels {
		out = append(out, domain.BatteryRecord{SensorID: id, BatteryLevel: level})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out, nil
}

func (f *WideColumnStore) InsertTemperature(_ context.Context, sensorID, seq int64, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Temps[TempKey{sensorID, seq}] = value
	return nil
}

func (f *WideColumnStore) TemperatureSummaries(_ context.Context) ([]domain.TemperatureSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	type agg struct {
		min, max, sum float64
		n             int
	}
	byID := make(map[int64]*agg)
	for key, val := range f.Temps {
		a, ok := byID[key.SensorID]
		if !ok {
			a = &agg{min: val, max: val}
			byID[key.SensorID] = a
		}
		if val < a.min {
			a.min = val
		}
		if val > a.max {
			a.max = val
		}
		a.sum += val
		a.n++
	}

	var out []domain.TemperatureSummary
	for id, a := range byID {
		out = append(out, domain.TemperatureSummary{
			SensorID:           id,
			MinTemperature:     a.min,
			MaxTemperature:     a.max,
			AverageTemperature: a.sum / float64(a.n),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out, nil
}

func (f *WideColumnStore) Close() error { return nil }

// CacheStore is an in-memory latest-reading cache and sequence allocator.
type CacheStore struct {
	mu      sync.Mutex
	Entries map[int64]domain.Reading
	Seqs    map[string]int64
}

func NewCacheStore() *CacheStore {
	return &CacheStore{
		Entries: make(map[int64]domain.Reading),
		Seqs:    make(map[string]int64),
	}
}

func (f *CacheStore) SetLatest(_ context.Context, sensorID int64, reading domain.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Entries[sensorID] = reading
	return nil
}

func (f *CacheStore) Latest(_ context.Context, sensorID int64) (*domain.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reading, ok := f.Entries[sensorID]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return &reading, nil
}

func (f *CacheStore) NextSequence(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Seqs[key]++
	return f.Seqs[key], nil
}

func (f *CacheStore) Close() error { return nil }

// ViewQuery records one query against a materialized aggregate view.
type ViewQuery struct {
	Name     string
	SensorID int64
	From, To time.Time
}

// TimeSeriesStore is an in-memory time-series store that records view
// lifecycle calls instead of aggregating anything.
type TimeSeriesStore struct {
	mu       sync.Mutex
	Readings map[int64][]domain.Reading
	Views    map[string]string
	Dropped  []string
	Queries  []ViewQuery
	Rows     []domain.BucketRow
}

func NewTimeSeriesStore() *TimeSeriesStore {
	return &TimeSeriesStore{
		Readings: make(map[int64][]domain.Reading),
		Views:    make(map[string]string),
	}
}

func (f *TimeSeriesStore) EnsureSchema(_ context.Context) error { return nil }

func (f *TimeSeriesStore) InsertReading(_ context.Context, sensorID int64, reading domain.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Readings[sensorID] = append(f.Readings[sensorID], reading)
	return nil
}

func (f *TimeSeriesStore) CreateAggregateView(_ context.Context, name, bucketWidth string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Views[name] = bucketWidth
	return nil
}

func (f *TimeSeriesStore) QueryAggregateView(_ context.Context, name string, sensorID int64, from, to time.Time) ([]domain.BucketRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, ViewQuery{Name: name, SensorID: sensorID, From: from, To: to})
	return f.Rows, nil
}

func (f *TimeSeriesStore) DropAggregateView(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Views, name)
	f.Dropped = append(f.Dropped, name)
	return nil
}

func (f *TimeSeriesStore) Close() error { return nil }
