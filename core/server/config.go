package server

import (
	"context"

	"github.com/richd0tcom/senser/internal/broker"
	"github.com/richd0tcom/senser/internal/db"
	"github.com/richd0tcom/senser/internal/sensors"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type ServerConfig struct {
	Stores       sensors.Stores
	MessageQueue broker.MessageQueue
	WorkerCount  int
	BatchSize    int
	Port         string
	SearchRate   float64
	SearchBurst  int
}

type ConfigOption func(*ServerConfig) error

func WithPostgres(dsn string) ConfigOption {
	return func(config *ServerConfig) error {
		store, err := db.NewRelationalStore(dsn)
		if err != nil {
			return err
		}
		config.Stores.Identity = store
		return nil
	}
}

func WithMongoDB(client *mongo.Client, database, collection string) ConfigOption {
	return func(config *ServerConfig) error {
		store, err := db.NewDocumentStore(client, database, collection)
		if err != nil {
			return err
		}
		config.Stores.Metadata = store
		return nil
	}
}

func WithElasticsearch(addresses []string) ConfigOption {
	return func(config *ServerConfig) error {
		store, err := db.NewSearchStore(addresses)
		if err != nil {
			return err
		}
		config.Stores.Search = store
		return nil
	}
}

func WithCassandra(hosts []string) ConfigOption {
	return func(config *ServerConfig) error {
		store, err := db.NewWideColumnStore(hosts)
		if err != nil {
			return err
		}
		config.Stores.WideColumn = store
		return nil
	}
}

func WithRedis(addr string) ConfigOption {
	return func(config *ServerConfig) error {
		config.Stores.Cache = db.NewCacheStore(addr)
		return nil
	}
}

func WithTimescale(dsn string) ConfigOption {
	return func(config *ServerConfig) error {
		store, err := db.NewTimeSeriesStore(context.Background(), dsn)
		if err != nil {
			return err
		}
		config.Stores.TimeSeries = store
		return nil
	}
}

func WithKafka(brokers, topic, group string) ConfigOption {
	return func(config *ServerConfig) error {
		mq, err := broker.NewKafkaQueue(brokers, topic, group)
		if err != nil {
			return err
		}
		config.MessageQueue = mq
		return nil
	}
}

// WithStores injects pre-built store adapters. Used by tests.
func WithStores(stores sensors.Stores) ConfigOption {
	return func(config *ServerConfig) error {
		config.Stores = stores
		return nil
	}
}

func WithWorkerConfig(workerCount, batchSize int) ConfigOption {
	return func(config *ServerConfig) error {
		config.WorkerCount = workerCount
		config.BatchSize = batchSize
		return nil
	}
}

func WithPort(port string) ConfigOption {
	return func(config *ServerConfig) error {
		config.Port = port
		return nil
	}
}

// WithSearchLimit sets the token-bucket rate applied to search requests.
func WithSearchLimit(perSecond float64, burst int) ConfigOption {
	return func(config *ServerConfig) error {
		config.SearchRate = perSecond
		config.SearchBurst = burst
		return nil
	}
}
