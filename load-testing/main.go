package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

type LoadTestConfig struct {
	TargetURL       string
	ConcurrentUsers int
	SensorCount     int
	Duration        time.Duration
	RequestsPerSec  int
}

type SensorCreate struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type Reading struct {
	Velocity     *float64  `json:"velocity,omitempty"`
	Temperature  *float64  `json:"temperature,omitempty"`
	Humidity     *float64  `json:"humidity,omitempty"`
	BatteryLevel float64   `json:"battery_level"`
	LastSeen     time.Time `json:"last_seen"`
}

type BulkReading struct {
	SensorID int64   `json:"sensor_id"`
	Reading  Reading `json:"reading"`
}

type BulkReadings struct {
	Data []BulkReading `json:"data"`
}

type TestResults struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	TotalLatency    time.Duration
	MinLatency      time.Duration
	MaxLatency      time.Duration
	Errors          []string
	mu              sync.RWMutex
}

func (tr *TestResults) AddResult(success bool, latency time.Duration, err error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.TotalRequests++
	tr.TotalLatency += latency

	if tr.MinLatency == 0 || latency < tr.MinLatency {
		tr.MinLatency = latency
	}
	if latency > tr.MaxLatency {
		tr.MaxLatency = latency
	}

	if success {
		tr.SuccessRequests++
	} else {
		tr.FailedRequests++
		if err != nil {
			tr.Errors = append(tr.Errors, err.Error())
		}
	}
}

func (tr *TestResults) GetStats() (float64, float64, time.Duration) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	if tr.TotalRequests == 0 {
		return 0, 0, 0
	}
	successRate := float64(tr.SuccessRequests) / float64(tr.TotalRequests) * 100
	avgLatency := tr.TotalLatency / time.Duration(tr.TotalRequests)

	return successRate, float64(tr.TotalRequests), avgLatency
}

// registerSensors creates the fleet the readings will be attributed to and
// returns the ids the server assigned.
func registerSensors(client *http.Client, baseURL string, count int) ([]int64, error) {
	sensorTypes := []string{"windmill", "turbine", "pump", "weather_station"}
	ids := make([]int64, 0, count)

	for i := 0; i < count; i++ {
		create := SensorCreate{
			Name:        fmt.Sprintf("loadtest_sensor_%03d_%d", i, time.Now().UnixNano()),
			Description: "load test fixture",
			Type:        sensorTypes[i%len(sensorTypes)],
			Latitude:    rand.Float64()*180 - 90,
			Longitude:   rand.Float64()*360 - 180,
		}

		jsonData, err := json.Marshal(create)
		if err != nil {
			return nil, err
		}

		resp, err := client.Post(baseURL+"/sensors", "application/json", bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, err
		}

		var sensor struct {
			ID int64 `json:"id"`
		}
		err = json.NewDecoder(resp.Body).Decode(&sensor)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != 200 {
			return nil, fmt.Errorf("sensor registration returned HTTP %d", resp.StatusCode)
		}

		ids = append(ids, sensor.ID)
	}

	return ids, nil
}

func generateReadings(sensorIDs []int64, count int) BulkReadings {
	data := make([]BulkReading, count)

	for i := 0; i < count; i++ {
		reading := Reading{
			BatteryLevel: rand.Float64(),
			LastSeen:     time.Now().Add(-time.Duration(rand.Intn(3600)) * time.Second),
		}

		// Each sample reports a random subset of the optional metrics.
		if rand.Intn(2) == 0 {
			v := rand.Float64() * 30
			reading.Velocity = &v
		}
		if rand.Intn(2) == 0 {
			t := rand.Float64()*50 + 10
			reading.Temperature = &t
		}
		if rand.Intn(2) == 0 {
			h := rand.Float64() * 100
			reading.Humidity = &h
		}

		data[i] = BulkReading{
			SensorID: sensorIDs[rand.Intn(len(sensorIDs))],
			Reading:  reading,
		}
	}

	return BulkReadings{Data: data}
}

func sendBulk(client *http.Client, url string, data BulkReadings) (bool, time.Duration, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return false, 0, err
	}

	start := time.Now()

	req, err := http.NewRequest("POST", url+"/sensors/data/bulk", bytes.NewBuffer(jsonData))
	if err != nil {
		return false, time.Since(start), err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return false, time.Since(start), err
	}
	defer resp.Body.Close()

	latency := time.Since(start)
	success := resp.StatusCode >= 200 && resp.StatusCode < 300

	if !success {
		return false, latency, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return true, latency, nil
}

func worker(ctx context.Context, workerID int, config LoadTestConfig, sensorIDs []int64, results *TestResults, wg *sync.WaitGroup) {
	defer wg.Done()

	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ticker := time.NewTicker(time.Second / time.Duration(config.RequestsPerSec))
	defer ticker.Stop()

	log.Printf("Worker %d started", workerID)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Worker %d stopped", workerID)
			return
		case <-ticker.C:
			batchSize := rand.Intn(50) + 10
			batch := generateReadings(sensorIDs, batchSize)

			success, latency, err := sendBulk(client, config.TargetURL, batch)
			results.AddResult(success, latency, err)
		}
	}
}

func printProgress(ctx context.Context, results *TestResults, duration time.Duration) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			remaining := duration - elapsed

			successRate, totalReqs, avgLatency := results.GetStats()

			fmt.Printf("\n=== Progress Update ===\n")
			fmt.Printf("Elapsed: %v, Remaining: %v\n", elapsed.Round(time.Second), remaining.Round(time.Second))
			fmt.Printf("Total Requests: %.0f\n", totalReqs)
			fmt.Printf("Success Rate: %.2f%%\n", successRate)
			fmt.Printf("Average Latency: %v\n", avgLatency.Round(time.Millisecond))
			fmt.Printf("Requests/sec: %.2f\n", totalReqs/elapsed.Seconds())

			if remaining <= 0 {
				return
			}
		}
	}
}

// testHistoryEndpoint exercises a bucketed aggregate query against one of
// the registered sensors once the ingest phase has produced data.
func testHistoryEndpoint(client *http.Client, baseURL string, sensorID int64) error {
	fmt.Println("\n=== Testing History Endpoint ===")

	from := time.Now().Add(-1 * time.Hour).Format(time.RFC3339)
	to := time.Now().Format(time.RFC3339)
	url := fmt.Sprintf("%s/sensors/%d/data?from=%s&to=%s&bucket=hour", baseURL, sensorID, from, to)

	start := time.Now()
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	latency := time.Since(start)

	if resp.StatusCode != 200 {
		return fmt.Errorf("history endpoint returned HTTP %d", resp.StatusCode)
	}

	var rows []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return fmt.Errorf("failed to decode history response: %w", err)
	}

	fmt.Printf("History query completed in %v\n", latency.Round(time.Millisecond))
	fmt.Printf("Rows: %d\n", len(rows))

	return nil
}

func main() {
	config := LoadTestConfig{
		TargetURL:       getEnv("TARGET_URL", "http://localhost:8080"),
		ConcurrentUsers: getEnvInt("CONCURRENT_USERS", 10),
		SensorCount:     getEnvInt("SENSOR_COUNT", 10),
		Duration:        getEnvDuration("DURATION", "60s"),
		RequestsPerSec:  getEnvInt("REQUESTS_PER_SEC", 5),
	}

	fmt.Printf("=== Load Test Configuration ===\n")
	fmt.Printf("Target URL: %s\n", config.TargetURL)
	fmt.Printf("Concurrent Users: %d\n", config.ConcurrentUsers)
	fmt.Printf("Sensors: %d\n", config.SensorCount)
	fmt.Printf("Duration: %v\n", config.Duration)
	fmt.Printf("Requests per second per user: %d\n", config.RequestsPerSec)
	fmt.Printf("Total expected requests per second: %d\n", config.ConcurrentUsers*config.RequestsPerSec)

	fmt.Println("\nWaiting for service to be ready...")
	client := &http.Client{Timeout: 5 * time.Second}

	for i := 0; i < 30; i++ {
		resp, err := client.Get(config.TargetURL + "/health")
		if err == nil && resp.StatusCode == 200 {
			resp.Body.Close()
			fmt.Println("Service is ready!")
			break
		}
		if resp != nil {
			resp.Body.Close()
		}

		fmt.Printf("Waiting for service... (%d/30)\n", i+1)
		time.Sleep(2 * time.Second)
	}

	fmt.Printf("\nRegistering %d sensors...\n", config.SensorCount)
	sensorIDs, err := registerSensors(client, config.TargetURL, config.SensorCount)
	if err != nil {
		log.Fatalf("Failed to register sensors: %v", err)
	}

	results := &TestResults{}

	ctx, cancel := context.WithTimeout(context.Background(), config.Duration)
	defer cancel()

	go printProgress(ctx, results, config.Duration)

	var wg sync.WaitGroup
	fmt.Printf("\nStarting %d concurrent users...\n", config.ConcurrentUsers)

	for i := 0; i < config.ConcurrentUsers; i++ {
		wg.Add(1)
		go worker(ctx, i+1, config, sensorIDs, results, &wg)
	}

	wg.Wait()

	fmt.Printf("\n=== Final Results ===\n")
	successRate, totalReqs, avgLatency := results.GetStats()

	fmt.Printf("Total Requests: %.0f\n", totalReqs)
	fmt.Printf("Successful: %d\n", results.SuccessRequests)
	fmt.Printf("Failed: %d\n", results.FailedRequests)
	fmt.Printf("Success Rate: %.2f%%\n", successRate)
	fmt.Printf("Average Latency: %v\n", avgLatency.Round(time.Millisecond))
	fmt.Printf("Min Latency: %v\n", results.MinLatency.Round(time.Millisecond))
	fmt.Printf("Max Latency: %v\n", results.MaxLatency.Round(time.Millisecond))

	queryClient := &http.Client{Timeout: 60 * time.Second}
	if err := testHistoryEndpoint(queryClient, config.TargetURL, sensorIDs[0]); err != nil {
		fmt.Printf("History endpoint check failed: %v\n", err)
	}

	if len(results.Errors) > 0 {
		fmt.Printf("\nSample errors (%d total):\n", len(results.Errors))
		for i, e := range results.Errors {
			if i >= 5 {
				break
			}
			fmt.Printf("  - %s\n", e)
		}
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key, fallback string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	d, _ := time.ParseDuration(fallback)
	return d
}
