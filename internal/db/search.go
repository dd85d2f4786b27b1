package db

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/pkg/errors"

	"github.com/richd0tcom/senser/internal/domain"
)

// SearchIndexName is the Elasticsearch index holding the sensor projection.
const SearchIndexName = "index_sensors"

// sensorMapping keeps name/description/type searchable as text; the keyword
// subfield on name is what delete-by-name matches exactly against.
const sensorMapping = `{
	"mappings": {
		"properties": {
			"name":        {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"description": {"type": "text"},
			"type":        {"type": "text"}
		}
	}
}`

// SearchStore is the Elasticsearch projection of sensor records.
type SearchStore struct {
	client *elasticsearch.Client
	index  string
}

func NewSearchStore(addresses []string) (*SearchStore, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}
	return &SearchStore{client: client, index: SearchIndexName}, nil
}

func (s *SearchStore) EnsureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithBody(bytes.NewReader([]byte(sensorMapping))),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return errors.Wrap(err, "creating search index")
	}
	defer res.Body.Close()

	// An index that already exists is fine; provisioning is idempotent.
	if res.IsError() && res.StatusCode != 400 {
		return errors.Errorf("creating search index: %s", res.String())
	}
	return nil
}

func (s *SearchStore) Index(ctx context.Context, sensor domain.Sensor) error {
	doc := map[string]string{
		"name":        sensor.Name,
		"description": sensor.Description,
		"type":        sensor.Type,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encoding search document")
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return errors.Wrap(err, "indexing sensor document")
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.Errorf("indexing sensor document: %s", res.String())
	}
	return nil
}

func (s *SearchStore) Search(ctx context.Context, clause domain.SearchClause, field, value string) ([]domain.SearchHit, error) {
	var query map[string]any

	switch clause {
	case domain.ClausePrefix:
		query = map[string]any{
			"query": map[string]any{
				"prefix": map[string]any{
					field: map[string]any{
						"value":            value,
						"case_insensitive": true,
					},
				},
			},
		}
	case domain.ClauseSimilar:
		query = map[string]any{
			"query": map[string]any{
				"match": map[string]any{
					field: map[string]any{
						"query":            value,
						"fuzziness":        "AUTO",
						"operator":         "and",
						"zero_terms_query": "all",
					},
				},
			},
		}
	case domain.ClauseMatch:
		query = map[string]any{
			"query": map[string]any{
				"match": map[string]any{
					field: value,
				},
			},
		}
	default:
		return nil, domain.ErrInvalidQuery
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "encoding search query")
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "executing search")
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.Errorf("executing search: %s", res.String())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading search response")
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source struct {
					Name string `json:"name"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(err, "decoding search response")
	}

	hits := make([]domain.SearchHit, len(parsed.Hits.Hits))
	for i, hit := range parsed.Hits.Hits {
		hits[i] = domain.SearchHit{Name: hit.Source.Name}
	}
	return hits, nil
}

func (s *SearchStore) DeleteByName(ctx context.Context, name string) error {
	query := map[string]any{
		"query": map[string]any{
			"term": map[string]any{
				"name.keyword": name,
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return errors.Wrap(err, "encoding delete query")
	}

	res, err := s.client.DeleteByQuery(
		[]string{s.index},
		bytes.NewReader(body),
		s.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return errors.Wrap(err, "deleting search documents")
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.Errorf("deleting search documents: %s", res.String())
	}
	return nil
}

func (s *SearchStore) Close() error { return nil }
