package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readingsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "senser_readings_ingested_total",
		Help: "Number of telemetry readings accepted for ingestion.",
	})

	storeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "senser_store_failures_total",
		Help: "Number of requests that failed against a backing store.",
	})
)
