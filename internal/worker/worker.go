package worker

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/richd0tcom/senser/internal/broker"
	"github.com/richd0tcom/senser/internal/domain"
)

// Ingestor is the slice of the orchestration layer the worker pool drives.
type Ingestor interface {
	Record(ctx context.Context, sensorID int64, reading domain.Reading) error
}

// SensorChecker verifies a sensor exists before its readings are ingested.
type SensorChecker interface {
	Get(ctx context.Context, id int64) (*domain.Sensor, error)
}

// Worker drains bulk-reading batches from the message queue and fans each
// reading out through the ingestor.
type Worker struct {
	ingestor    Ingestor
	sensors     SensorChecker
	workerCount int
	batchSize   int
}

func NewWorker(ingestor Ingestor, sensors SensorChecker, workerCount, batchSize int) *Worker {
	return &Worker{
		ingestor:    ingestor,
		sensors:     sensors,
		workerCount: workerCount,
		batchSize:   batchSize,
	}
}

func (w *Worker) Start(ctx context.Context, mq broker.MessageQueue) error {
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.worker(ctx, workerID, mq)
		}(i)
	}

	wg.Wait()
	return nil
}

func (w *Worker) worker(ctx context.Context, workerID int, mq broker.MessageQueue) {
	log.Printf("Worker %d started", workerID)
	defer log.Printf("Worker %d stopped", workerID)

	// The batch slice is owned by this goroutine only. The consume
	// goroutine decodes messages and hands the entries over the channel.
	entries := make(chan []domain.BulkReading)

	handler := func(data []byte) error {
		var bulk domain.BulkReadings
		if err := json.Unmarshal(data, &bulk); err != nil {
			return errors.Wrap(err, "failed to unmarshal batch")
		}

		select {
		case entries <- bulk.Data:
		case <-ctx.Done():
		}
		return nil
	}

	go func() {
		if err := mq.Consume(ctx, handler); err != nil {
			log.Printf("Worker %d consume error: %v", workerID, err)
		}
	}()

	batch := make([]domain.BulkReading, 0, w.batchSize)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				w.processBatch(ctx, batch)
			}
			return
		case data := <-entries:
			batch = append(batch, data...)
			if len(batch) >= w.batchSize {
				w.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, batch []domain.BulkReading) {
	start := time.Now()
	recorded := 0

	for _, entry := range batch {
		if _, err := w.sensors.Get(ctx, entry.SensorID); err != nil {
			log.Printf("Skipping reading for sensor %d: %v", entry.SensorID, err)
			continue
		}
		if err := w.ingestor.Record(ctx, entry.SensorID, entry.Reading); err != nil {
			log.Printf("Failed to record reading for sensor %d: %v", entry.SensorID, err)
			continue
		}
		recorded++
	}

	log.Printf("Processed batch: %d/%d readings in %v", recorded, len(batch), time.Since(start))
}
