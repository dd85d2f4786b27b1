package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/richd0tcom/senser/core/server"
	"github.com/richd0tcom/senser/internal/config"
	"github.com/richd0tcom/senser/internal/db"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default config.yaml)")
	flag.Parse()

	if env := os.Getenv("SENSER_CONFIG"); env != "" && *configPath == "" {
		*configPath = env
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	mongoClient, err := db.NewMongoConnection(cfg.Mongo.URI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	options := []server.ConfigOption{
		server.WithPostgres(cfg.PostgresDSN()),
		server.WithMongoDB(mongoClient, cfg.Mongo.Database, cfg.Mongo.Collection),
		server.WithElasticsearch(cfg.Elasticsearch.Addresses),
		server.WithCassandra(cfg.Cassandra.Hosts),
		server.WithRedis(cfg.Redis.Addr),
		server.WithTimescale(cfg.TimescaleDSN()),
		server.WithWorkerConfig(cfg.Server.WorkerCount, cfg.Server.BatchSize),
		server.WithPort(cfg.Server.Port),
		server.WithSearchLimit(cfg.Server.SearchRate, cfg.Server.SearchRateBurst),
	}

	if cfg.Kafka.Brokers != "" {
		options = append(options, server.WithKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Group))
	}

	srv, err := server.NewServer(options...)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received...")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	if err := srv.Close(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
