package sensors

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/richd0tcom/senser/internal/domain"
)

// Searcher translates a query-type selector into a backing search query
// and resolves hits back to canonical sensor records. Only the closed set
// of clause types is accepted; arbitrary clause names are rejected rather
// than forwarded to the index.
type Searcher struct {
	identity domain.IdentityStore
	metadata domain.MetadataStore
	search   domain.SearchStore
	limiter  *rate.Limiter
}

func NewSearcher(identity domain.IdentityStore, metadata domain.MetadataStore, search domain.SearchStore, limiter *rate.Limiter) *Searcher {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(1), 1)
	}
	return &Searcher{identity: identity, metadata: metadata, search: search, limiter: limiter}
}

// Search parses query as a single {"field": "value"} pair, runs the
// selected clause against the index, and resolves each hit by exact name
// lookup. Results keep the index's relevance order, deduplicated by
// full-record equality and truncated to size.
func (s *Searcher) Search(ctx context.Context, query string, size int, searchType string) ([]domain.Sensor, error) {
	var pairs map[string]string
	if err := json.Unmarshal([]byte(query), &pairs); err != nil || len(pairs) != 1 {
		return nil, domain.ErrInvalidQuery
	}

	var field, value string
	for k, v := range pairs {
		field, value = k, v
	}

	clause := domain.SearchClause(searchType)
	switch clause {
	case domain.ClausePrefix, domain.ClauseSimilar, domain.ClauseMatch:
	default:
		return nil, domain.ErrInvalidQuery
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	hits, err := s.search.Search(ctx, clause, field, value)
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.Sensor]struct{})
	results := make([]domain.Sensor, 0, size)
	for _, hit := range hits {
		if len(results) >= size {
			break
		}

		identity, err := s.identity.ByName(ctx, hit.Name)
		if errors.Is(err, domain.ErrSensorNotFound) {
			// The index is a derived projection; a hit with no relational
			// row is a leftover from an incomplete delete.
			continue
		}
		if err != nil {
			return nil, err
		}

		sensor, err := s.metadata.ByID(ctx, identity.ID)
		if errors.Is(err, domain.ErrSensorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if _, dup := seen[*sensor]; dup {
			continue
		}
		seen[*sensor] = struct{}{}
		results = append(results, *sensor)
	}

	return results, nil
}
