package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richd0tcom/senser/internal/domain"
)

type chanQueue struct {
	messages chan []byte
}

func (q *chanQueue) Publish(_ context.Context, data []byte) error {
	q.messages <- data
	return nil
}

func (q *chanQueue) Consume(ctx context.Context, handler func([]byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-q.messages:
			if err := handler(data); err != nil {
				return err
			}
		}
	}
}

func (q *chanQueue) Close() error { return nil }

type recordingIngestor struct {
	mu       sync.Mutex
	recorded []domain.BulkReading
}

func (r *recordingIngestor) Record(_ context.Context, sensorID int64, reading domain.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, domain.BulkReading{SensorID: sensorID, Reading: reading})
	return nil
}

type knownSensors map[int64]string

func (k knownSensors) Get(_ context.Context, id int64) (*domain.Sensor, error) {
	name, ok := k[id]
	if !ok {
		return nil, domain.ErrSensorNotFound
	}
	return &domain.Sensor{ID: id, Name: name}, nil
}

func TestWorkerProcessesFullBatches(t *testing.T) {
	queue := &chanQueue{messages: make(chan []byte, 8)}
	ingestor := &recordingIngestor{}
	sensors := knownSensors{1: "a", 2: "b"}
	w := NewWorker(ingestor, sensors, 1, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx, queue)
	}()

	payload, err := json.Marshal(domain.BulkReadings{Data: []domain.BulkReading{
		{SensorID: 1, Reading: domain.Reading{BatteryLevel: 0.5, LastSeen: time.Now()}},
		{SensorID: 2, Reading: domain.Reading{BatteryLevel: 0.4, LastSeen: time.Now()}},
	}})
	require.NoError(t, err)
	require.NoError(t, queue.Publish(ctx, payload))

	require.Eventually(t, func() bool {
		ingestor.mu.Lock()
		defer ingestor.mu.Unlock()
		return len(ingestor.recorded) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestWorkerConcurrentPublishes(t *testing.T) {
	queue := &chanQueue{messages: make(chan []byte, 64)}
	ingestor := &recordingIngestor{}
	sensors := knownSensors{1: "a"}
	w := NewWorker(ingestor, sensors, 2, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx, queue)
	}()

	const publishers = 8
	const perPublisher = 4
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				payload, err := json.Marshal(domain.BulkReadings{Data: []domain.BulkReading{
					{SensorID: 1, Reading: domain.Reading{BatteryLevel: 0.5, LastSeen: time.Now()}},
				}})
				require.NoError(t, err)
				require.NoError(t, queue.Publish(ctx, payload))
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		ingestor.mu.Lock()
		defer ingestor.mu.Unlock()
		return len(ingestor.recorded) == publishers*perPublisher
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestWorkerSkipsUnknownSensors(t *testing.T) {
	queue := &chanQueue{messages: make(chan []byte, 8)}
	ingestor := &recordingIngestor{}
	sensors := knownSensors{1: "a"}
	w := NewWorker(ingestor, sensors, 1, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx, queue)
	}()

	payload, err := json.Marshal(domain.BulkReadings{Data: []domain.BulkReading{
		{SensorID: 1, Reading: domain.Reading{BatteryLevel: 0.5, LastSeen: time.Now()}},
		{SensorID: 99, Reading: domain.Reading{BatteryLevel: 0.4, LastSeen: time.Now()}},
	}})
	require.NoError(t, err)
	require.NoError(t, queue.Publish(ctx, payload))

	require.Eventually(t, func() bool {
		ingestor.mu.Lock()
		defer ingestor.mu.Unlock()
		return len(ingestor.recorded) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ingestor.mu.Lock()
	assert.Equal(t, int64(1), ingestor.recorded[0].SensorID)
	ingestor.mu.Unlock()

	cancel()
	<-done
}
