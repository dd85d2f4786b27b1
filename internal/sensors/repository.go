package sensors

import (
	"context"

	"github.com/pkg/errors"

	"github.com/richd0tcom/senser/internal/domain"
)

// Stores bundles the capability interfaces the orchestration layer fans
// out across. There is no cross-store transaction; write ordering and
// partial-failure reporting are this package's job.
type Stores struct {
	Identity   domain.IdentityStore
	Metadata   domain.MetadataStore
	Search     domain.SearchStore
	WideColumn domain.WideColumnStore
	Cache      domain.CacheStore
	TimeSeries domain.TimeSeriesStore
}

// Repository orchestrates multi-store reads and writes for sensor identity
// and metadata.
type Repository struct {
	stores    Stores
	bootstrap *Bootstrap
}

func NewRepository(stores Stores, bootstrap *Bootstrap) *Repository {
	return &Repository{stores: stores, bootstrap: bootstrap}
}

// Create registers a new sensor. Write order: relational insert (allocates
// the id) -> search-index insert -> type-counter increment -> document
// insert. A failure after the relational insert is reported as a
// PartialWriteError; committed steps stay committed.
func (r *Repository) Create(ctx context.Context, create domain.SensorCreate) (*domain.Sensor, error) {
	if _, err := r.stores.Identity.ByName(ctx, create.Name); err == nil {
		return nil, domain.ErrDuplicateName
	} else if !errors.Is(err, domain.ErrSensorNotFound) {
		return nil, errors.Wrap(err, "checking name uniqueness")
	}

	count, err := r.stores.Identity.Count(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "counting sensors")
	}
	if count == 0 {
		if err := r.bootstrap.EnsureProvisioned(ctx); err != nil {
			return nil, err
		}
	}

	id, err := r.stores.Identity.Insert(ctx, create.Name)
	if err != nil {
		return nil, &domain.PartialWriteError{Op: "create sensor", Step: "relational insert", Err: err}
	}

	sensor := domain.Sensor{
		ID:          id,
		Name:        create.Name,
		Description: create.Description,
		Type:        create.Type,
		Latitude:    create.Latitude,
		Longitude:   create.Longitude,
	}

	if err := r.stores.Search.Index(ctx, sensor); err != nil {
		return nil, &domain.PartialWriteError{
			Op: "create sensor", Step: "search index",
			Applied: []string{"relational insert"}, Err: err,
		}
	}

	if err := r.stores.WideColumn.IncrementTypeCount(ctx, create.Type); err != nil {
		return nil, &domain.PartialWriteError{
			Op: "create sensor", Step: "type counter",
			Applied: []string{"relational insert", "search index"}, Err: err,
		}
	}

	if err := r.stores.Metadata.Upsert(ctx, sensor); err != nil {
		return nil, &domain.PartialWriteError{
			Op: "create sensor", Step: "document insert",
			Applied: []string{"relational insert", "search index", "type counter"}, Err: err,
		}
	}

	return r.stores.Metadata.ByID(ctx, id)
}

// Get reads the document store only; the relational store is not consulted
// for metadata reads.
func (r *Repository) Get(ctx context.Context, id int64) (*domain.Sensor, error) {
	return r.stores.Metadata.ByID(ctx, id)
}

// GetByName is the relational lookup used for uniqueness checks and
// search-result resolution.
func (r *Repository) GetByName(ctx context.Context, name string) (*domain.Identity, error) {
	return r.stores.Identity.ByName(ctx, name)
}

func (r *Repository) List(ctx context.Context, offset, limit int) ([]domain.Identity, error) {
	return r.stores.Identity.List(ctx, offset, limit)
}

// Delete removes the relational row, then the document, then every search
// hit matching the sensor's name exactly. Prior deletes are not undone when
// a later step fails.
func (r *Repository) Delete(ctx context.Context, id int64) (*domain.Identity, error) {
	identity, err := r.stores.Identity.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.stores.Identity.Delete(ctx, id); err != nil {
		return nil, &domain.PartialWriteError{Op: "delete sensor", Step: "relational delete", Err: err}
	}

	if err := r.stores.Metadata.Delete(ctx, id); err != nil {
		return nil, &domain.PartialWriteError{
			Op: "delete sensor", Step: "document delete",
			Applied: []string{"relational delete"}, Err: err,
		}
	}

	if err := r.stores.Search.DeleteByName(ctx, identity.Name); err != nil {
		return nil, &domain.PartialWriteError{
			Op: "delete sensor", Step: "search delete",
			Applied: []string{"relational delete", "document delete"}, Err: err,
		}
	}

	return identity, nil
}

// Near returns the sensors whose coordinates fall inside the radius box
// around (latitude, longitude), each merged with its latest cached reading
// when one exists.
func (r *Repository) Near(ctx context.Context, latitude, longitude, radius float64) ([]domain.Snapshot, error) {
	box := domain.BoundingBox{
		MinLatitude:  latitude - radius,
		MaxLatitude:  latitude + radius,
		MinLongitude: longitude - radius,
		MaxLongitude: longitude + radius,
	}

	matches, err := r.stores.Metadata.InBoundingBox(ctx, box)
	if err != nil {
		return nil, err
	}

	snapshots := make([]domain.Snapshot, 0, len(matches))
	for _, sensor := range matches {
		snap := domain.Snapshot{ID: sensor.ID, Name: sensor.Name}
		reading, err := r.stores.Cache.Latest(ctx, sensor.ID)
		if err != nil && !errors.Is(err, domain.ErrCacheMiss) {
			return nil, err
		}
		if reading != nil {
			snap.Reading = *reading
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}
