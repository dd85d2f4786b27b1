package sensors

import (
	"github.com/richd0tcom/senser/internal/mock"
)

func newTestStores() (Stores, *mock.IdentityStore, *mock.MetadataStore, *mock.SearchStore, *mock.WideColumnStore, *mock.CacheStore, *mock.TimeSeriesStore) {
	identity := mock.NewIdentityStore()
	metadata := mock.NewMetadataStore()
	search := &mock.SearchStore{}
	wide := mock.NewWideColumnStore()
	cache := mock.NewCacheStore()
	ts := mock.NewTimeSeriesStore()

	stores := Stores{
		Identity:   identity,
		Metadata:   metadata,
		Search:     search,
		WideColumn: wide,
		Cache:      cache,
		TimeSeries: ts,
	}
	return stores, identity, metadata, search, wide, cache, ts
}
