package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richd0tcom/senser/internal/domain"
	"github.com/richd0tcom/senser/internal/mock"
	"github.com/richd0tcom/senser/internal/sensors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// captureQueue records published payloads without a running broker.
type captureQueue struct {
	mu         sync.Mutex
	published  [][]byte
	publishErr error
}

func (q *captureQueue) Publish(_ context.Context, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, data)
	return nil
}

func (q *captureQueue) Consume(ctx context.Context, handler func([]byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func (q *captureQueue) Close() error { return nil }

func newTestServer(t *testing.T, options ...ConfigOption) (*Server, sensors.Stores) {
	t.Helper()
	stores := sensors.Stores{
		Identity:   mock.NewIdentityStore(),
		Metadata:   mock.NewMetadataStore(),
		Search:     &mock.SearchStore{},
		WideColumn: mock.NewWideColumnStore(),
		Cache:      mock.NewCacheStore(),
		TimeSeries: mock.NewTimeSeriesStore(),
	}
	options = append([]ConfigOption{
		WithStores(stores),
		WithSearchLimit(1000, 1000),
	}, options...)
	srv, err := NewServer(options...)
	require.NoError(t, err)
	return srv, stores
}

func doJSON(srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func createSensor(t *testing.T, srv *Server, name string) domain.Sensor {
	t.Helper()
	rec := doJSON(srv, http.MethodPost, "/sensors", domain.SensorCreate{
		Name: name, Type: "windmill", Latitude: 1, Longitude: 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sensor domain.Sensor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sensor))
	return sensor
}

func TestRootAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(srv, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), apiName)

	rec = doJSON(srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndGetSensor(t *testing.T) {
	srv, _ := newTestServer(t)

	created := createSensor(t, srv, "turbine-1")
	require.NotZero(t, created.ID)

	rec := doJSON(srv, http.MethodGet, fmt.Sprintf("/sensors/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Sensor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created, got)
}

func TestCreateSensorValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(srv, http.MethodPost, "/sensors", map[string]any{"description": "no name or type"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSensorDuplicateName(t *testing.T) {
	srv, _ := newTestServer(t)

	createSensor(t, srv, "turbine-1")
	rec := doJSON(srv, http.MethodPost, "/sensors", domain.SensorCreate{Name: "turbine-1", Type: "windmill"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already registered")
}

func TestGetSensorNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(srv, http.MethodGet, "/sensors/9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(srv, http.MethodGet, "/sensors/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSensor(t *testing.T) {
	srv, _ := newTestServer(t)

	created := createSensor(t, srv, "turbine-1")

	rec := doJSON(srv, http.MethodDelete, fmt.Sprintf("/sensors/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(srv, http.MethodGet, fmt.Sprintf("/sensors/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPartialWriteReportedWithAppliedSteps(t *testing.T) {
	srv, stores := newTestServer(t)
	stores.Search.(*mock.SearchStore).IndexErr = fmt.Errorf("index unavailable")

	rec := doJSON(srv, http.MethodPost, "/sensors", domain.SensorCreate{Name: "turbine-1", Type: "windmill"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body struct {
		Step    string   `json:"step"`
		Applied []string `json:"applied"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "search index", body.Step)
	assert.Equal(t, []string{"relational insert"}, body.Applied)
}

func TestRecordAndLiveData(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSensor(t, srv, "turbine-1")

	temp := 21.5
	rec := doJSON(srv, http.MethodPost, fmt.Sprintf("/sensors/%d/data", created.ID), domain.Reading{
		Temperature:  &temp,
		BatteryLevel: 0.9,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(srv, http.MethodGet, fmt.Sprintf("/sensors/%d/data", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot domain.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, created.ID, snapshot.ID)
	assert.Equal(t, "turbine-1", snapshot.Name)
	require.NotNil(t, snapshot.Temperature)
	assert.Equal(t, temp, *snapshot.Temperature)
}

func TestRecordDataUnknownSensor(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(srv, http.MethodPost, "/sensors/42/data", domain.Reading{BatteryLevel: 0.5})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLiveDataNotSeenYet(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSensor(t, srv, "turbine-1")

	rec := doJSON(srv, http.MethodGet, fmt.Sprintf("/sensors/%d/data", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBucketedDataValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	created := createSensor(t, srv, "turbine-1")

	base := fmt.Sprintf("/sensors/%d/data", created.ID)

	rec := doJSON(srv, http.MethodGet, base+"?from=2024-01-01T00:00:00Z&to=not-a-time", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(srv, http.MethodGet, base+"?from=2024-01-01T00:00:00Z&to=2024-01-02T00:00:00Z&bucket=decade", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(srv, http.MethodGet, base+"?from=2024-01-01T00:00:00Z&to=2024-01-02T00:00:00Z&bucket=hour", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchSensors(t *testing.T) {
	srv, _ := newTestServer(t)
	createSensor(t, srv, "turbine-north")
	createSensor(t, srv, "turbine-south")
	createSensor(t, srv, "pump-1")

	query := `{"name":"turbine"}`
	rec := doJSON(srv, http.MethodGet, "/sensors/search?search_type=prefix&query="+url.QueryEscape(query), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var results []domain.Sensor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Len(t, results, 2)
}

func TestSearchRejectsUnknownClause(t *testing.T) {
	srv, _ := newTestServer(t)

	query := `{"name":"x"}`
	rec := doJSON(srv, http.MethodGet, "/sensors/search?search_type=script_score&query="+url.QueryEscape(query), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(srv, http.MethodGet, "/sensors/search?query=not-json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSensorsNear(t *testing.T) {
	srv, _ := newTestServer(t)
	createSensor(t, srv, "turbine-1")

	rec := doJSON(srv, http.MethodGet, "/sensors/near?latitude=1&longitude=2&radius=0.5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshots []domain.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots))
	assert.Len(t, snapshots, 1)

	rec = doJSON(srv, http.MethodGet, "/sensors/near?latitude=1&longitude=2", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuantityByType(t *testing.T) {
	srv, _ := newTestServer(t)
	createSensor(t, srv, "turbine-1")
	createSensor(t, srv, "turbine-2")

	rec := doJSON(srv, http.MethodGet, "/sensors/quantity_by_type", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sensors []domain.TypeCount `json:"sensors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sensors, 1)
	assert.Equal(t, int64(2), body.Sensors[0].Quantity)
}

func TestBulkIngestPublishes(t *testing.T) {
	queue := &captureQueue{}
	srv, _ := newTestServer(t, func(config *ServerConfig) error {
		config.MessageQueue = queue
		return nil
	})

	bulk := domain.BulkReadings{Data: []domain.BulkReading{
		{SensorID: 1, Reading: domain.Reading{BatteryLevel: 0.8}},
		{SensorID: 2, Reading: domain.Reading{BatteryLevel: 0.6}},
	}}
	rec := doJSON(srv, http.MethodPost, "/sensors/data/bulk", bulk)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	queue.mu.Lock()
	defer queue.mu.Unlock()
	require.Len(t, queue.published, 1)

	var decoded domain.BulkReadings
	require.NoError(t, json.Unmarshal(queue.published[0], &decoded))
	assert.Len(t, decoded.Data, 2)
}

func TestBulkIngestPublishFailure(t *testing.T) {
	queue := &captureQueue{publishErr: fmt.Errorf("broker down")}
	srv, _ := newTestServer(t, func(config *ServerConfig) error {
		config.MessageQueue = queue
		return nil
	})

	bulk := domain.BulkReadings{Data: []domain.BulkReading{{SensorID: 1}}}
	rec := doJSON(srv, http.MethodPost, "/sensors/data/bulk", bulk)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBulkIngestWithoutQueue(t *testing.T) {
	srv, _ := newTestServer(t)

	bulk := domain.BulkReadings{Data: []domain.BulkReading{{SensorID: 1}}}
	rec := doJSON(srv, http.MethodPost, "/sensors/data/bulk", bulk)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBulkIngestEmptyBatch(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(srv, http.MethodPost, "/sensors/data/bulk", domain.BulkReadings{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

