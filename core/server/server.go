package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/richd0tcom/senser/internal/domain"
	"github.com/richd0tcom/senser/internal/sensors"
	"github.com/richd0tcom/senser/internal/worker"
)

const (
	apiName    = "Senser"
	apiVersion = "0.1.0-alpha.1"
)

type Server struct {
	config *ServerConfig
	worker *worker.Worker
	router *gin.Engine

	repository *sensors.Repository
	ingestor   *sensors.Ingestor
	history    *sensors.History
	searcher   *sensors.Searcher
	stats      *sensors.Stats
}

func NewServer(options ...ConfigOption) (*Server, error) {
	config := &ServerConfig{
		WorkerCount: 4,
		BatchSize:   100,
		Port:        "8080",
		SearchRate:  1,
		SearchBurst: 1,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return nil, err
		}
	}

	stores := config.Stores
	bootstrap := sensors.NewBootstrap(stores.Search, stores.WideColumn)
	repository := sensors.NewRepository(stores, bootstrap)
	ingestor := sensors.NewIngestor(stores.WideColumn, stores.Cache, stores.TimeSeries)
	history := sensors.NewHistory(stores.Metadata, stores.Cache, stores.TimeSeries)
	limiter := rate.NewLimiter(rate.Limit(config.SearchRate), config.SearchBurst)
	searcher := sensors.NewSearcher(stores.Identity, stores.Metadata, stores.Search, limiter)
	stats := sensors.NewStats(stores.Metadata, stores.WideColumn)

	// The raw-readings table must exist before any ingest; the search index
	// and keyspace are provisioned lazily on first sensor creation.
	if stores.TimeSeries != nil {
		if err := stores.TimeSeries.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
	}

	server := &Server{
		config:     config,
		worker:     worker.NewWorker(ingestor, repository, config.WorkerCount, config.BatchSize),
		router:     gin.Default(),
		repository: repository,
		ingestor:   ingestor,
		history:    history,
		searcher:   searcher,
		stats:      stats,
	}

	server.setupRoutes()
	return server, nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"name": apiName, "version": apiVersion})
	})

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/sensors")
	{
		api.GET("", s.handleListSensors)
		api.POST("", s.handleCreateSensor)
		api.GET("/near", s.handleSensorsNear)
		api.GET("/search", s.handleSearchSensors)
		api.GET("/temperature/values", s.handleTemperatureValues)
		api.GET("/quantity_by_type", s.handleQuantityByType)
		api.GET("/low_battery", s.handleLowBattery)
		api.POST("/data/bulk", s.handleBulkIngest)
		api.GET("/:id", s.handleGetSensor)
		api.DELETE("/:id", s.handleDeleteSensor)
		api.POST("/:id/data", s.handleRecordData)
		api.GET("/:id/data", s.handleGetData)
	}
}

func (s *Server) handleListSensors(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := s.repository.List(ctx, offset, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateSensor(c *gin.Context) {
	var create domain.SensorCreate
	if err := c.ShouldBindJSON(&create); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	sensor, err := s.repository.Create(ctx, create)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sensor)
}

func (s *Server) handleGetSensor(c *gin.Context) {
	id, err := sensorID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor id"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	sensor, err := s.repository.Get(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sensor)
}

func (s *Server) handleDeleteSensor(c *gin.Context) {
	id, err := sensorID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor id"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	identity, err := s.repository.Delete(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": identity.ID, "name": identity.Name})
}

func (s *Server) handleSensorsNear(c *gin.Context) {
	latitude, err1 := strconv.ParseFloat(c.Query("latitude"), 64)
	longitude, err2 := strconv.ParseFloat(c.Query("longitude"), 64)
	radius, err3 := strconv.ParseFloat(c.Query("radius"), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude, longitude and radius are required"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	snapshots, err := s.repository.Near(ctx, latitude, longitude, radius)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshots)
}

func (s *Server) handleSearchSensors(c *gin.Context) {
	query := c.Query("query")
	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil || size <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size"})
		return
	}
	searchType := c.DefaultQuery("search_type", "match")

	ctx, cancel := requestContext(c)
	defer cancel()

	results, err := s.searcher.Search(ctx, query, size, searchType)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleTemperatureValues(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	values, err := s.stats.TemperatureValues(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sensors": values})
}

func (s *Server) handleQuantityByType(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	counts, err := s.stats.QuantityByType(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sensors": counts})
}

func (s *Server) handleLowBattery(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	low, err := s.stats.LowBattery(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sensors": low})
}

func (s *Server) handleRecordData(c *gin.Context) {
	id, err := sensorID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor id"})
		return
	}

	var reading domain.Reading
	if err := c.ShouldBindJSON(&reading); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	// The ingestor assumes existence; the route checks it, as the inbound
	// layer always has.
	if _, err := s.repository.Get(ctx, id); err != nil {
		s.writeError(c, err)
		return
	}

	if err := s.ingestor.Record(ctx, id, reading); err != nil {
		s.writeError(c, err)
		return
	}

	readingsIngested.Inc()
	c.JSON(http.StatusOK, gin.H{"message": "reading recorded"})
}

func (s *Server) handleGetData(c *gin.Context) {
	id, err := sensorID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor id"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := s.repository.Get(ctx, id); err != nil {
		s.writeError(c, err)
		return
	}

	to := c.Query("to")
	if to == "" {
		snapshot, err := s.history.Live(ctx, id)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
		return
	}

	from := c.Query("from")
	bucket := c.Query("bucket")

	fromTime, err := time.Parse(time.RFC3339, from)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
		return
	}
	toTime, err := time.Parse(time.RFC3339, to)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
		return
	}

	rows, err := s.history.Bucketed(ctx, id, fromTime, toTime, bucket)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleBulkIngest(c *gin.Context) {
	var bulk domain.BulkReadings
	if err := c.ShouldBindJSON(&bulk); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(bulk.Data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	if s.config.MessageQueue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bulk ingest unavailable: no message queue configured"})
		return
	}

	data, err := json.Marshal(bulk)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serialize data"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := s.config.MessageQueue.Publish(ctx, data); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish data"})
		return
	}

	readingsIngested.Add(float64(len(bulk.Data)))
	c.JSON(http.StatusAccepted, gin.H{
		"message": "data accepted for processing",
		"count":   len(bulk.Data),
	})
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSensorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Sensor not found"})
	case errors.Is(err, domain.ErrDuplicateName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Sensor with same name already registered"})
	case errors.Is(err, domain.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid search query"})
	case errors.Is(err, domain.ErrInvalidBucket):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bucket"})
	default:
		storeFailures.Inc()
		var partial *domain.PartialWriteError
		if errors.As(err, &partial) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   partial.Error(),
				"step":    partial.Step,
				"applied": partial.Applied,
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func sensorID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 30*time.Second)
}

func (s *Server) Start(ctx context.Context) error {
	if s.config.MessageQueue != nil {
		go func() {
			if err := s.worker.Start(ctx, s.config.MessageQueue); err != nil {
				log.Printf("Worker pool error: %v", err)
			}
		}()
	}

	server := &http.Server{
		Addr:    ":" + s.config.Port,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on port %s", s.config.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) Close() error {
	if s.config.MessageQueue != nil {
		s.config.MessageQueue.Close()
	}
	for _, closer := range []interface{ Close() error }{
		s.config.Stores.Identity,
		s.config.Stores.Metadata,
		s.config.Stores.Search,
		s.config.Stores.WideColumn,
		s.config.Stores.Cache,
		s.config.Stores.TimeSeries,
	} {
		if closer != nil {
			if err := closer.Close(); err != nil {
				log.Printf("Error closing store: %v", err)
			}
		}
	}
	return nil
}
