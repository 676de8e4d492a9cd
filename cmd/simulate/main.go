package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelminatto1/fisioflow-scheduling/internal/db"
)

// simulate hammers the booking API with colliding slots: many workers
// fight over a small grid of therapist hours, so most requests lose to
// either the engine verdict or the calendar lock. Useful for watching
// conflict rates and latency under contention.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	SlotHours    int // size of the contended grid, in one-hour slots per therapist
	PostgresDSN  string
}

type DataPool struct {
	Patients   []uuid.UUID
	Therapists []uuid.UUID
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Rejected  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status == http.StatusCreated || status == http.StatusOK:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status == http.StatusUnprocessableEntity:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	avg = sum / time.Duration(len(sorted))
	p50 = sorted[len(sorted)*50/100]
	p95 = sorted[min(len(sorted)*95/100, len(sorted)-1)]
	return avg, p50, p95
}

type Metrics struct {
	Book     OperationMetrics
	Validate OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()

	log.Printf("config: base_url=%s duration=%s workers=%d booking_ratio=%.2f slot_hours=%d",
		cfg.APIBaseURL, cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.SlotHours)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := loadDataPool(ctx, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded %d patients and %d therapists", len(pool.Patients), len(pool.Therapists))

	client := &http.Client{Timeout: 10 * time.Second}
	var metrics Metrics

	// Contended grid starts next Monday 09:00 so every slot passes the
	// business-hours and advance checks.
	grid := nextMonday().Add(9 * time.Hour)

	deadline := time.Now().Add(cfg.Duration)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				if rng.Float64() < cfg.BookingRatio {
					doBook(client, cfg, pool, rng, grid, &metrics.Book, "/appointments")
				} else {
					doBook(client, cfg, pool, rng, grid, &metrics.Validate, "/appointments/validate")
				}
			}
		}(int64(w) + time.Now().UnixNano())
	}
	wg.Wait()

	report("book", &metrics.Book)
	report("validate", &metrics.Validate)
}

func doBook(client *http.Client, cfg SimConfig, pool *DataPool, rng *rand.Rand, grid time.Time, om *OperationMetrics, path string) {
	therapist := pool.Therapists[rng.Intn(len(pool.Therapists))]
	patient := pool.Patients[rng.Intn(len(pool.Patients))]
	slot := grid.Add(time.Duration(rng.Intn(cfg.SlotHours)) * time.Hour)

	body, _ := json.Marshal(map[string]any{
		"patient_id":   patient.String(),
		"therapist_id": therapist.String(),
		"start_time":   slot.Format("2006-01-02T15:04:05"),
		"end_time":     slot.Add(time.Hour).Format("2006-01-02T15:04:05"),
		"type":         "session",
	})

	start := time.Now()
	resp, err := client.Post(cfg.APIBaseURL+path, "application/json", bytes.NewReader(body))
	latency := time.Since(start)
	if err != nil {
		om.Record(latency, 0)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	om.Record(latency, resp.StatusCode)
}

func report(name string, om *OperationMetrics) {
	avg, p50, p95 := om.Stats()
	fmt.Printf("%-10s total=%d success=%d conflict=%d rejected=%d error=%d avg=%s p50=%s p95=%s\n",
		name, om.Total, om.Success, om.Conflict, om.Rejected, om.Error, avg, p50, p95)
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL:   envOr("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:     envDuration("SIM_DURATION", 30*time.Second),
		Workers:      envInt("SIM_WORKERS", 20),
		BookingRatio: envFloat("SIM_BOOKING_RATIO", 0.7),
		SlotHours:    envInt("SIM_SLOT_HOURS", 8),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
	}
}

func loadDataPool(ctx context.Context, cfg SimConfig) (*DataPool, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	defer pgPool.Close()

	pool := &DataPool{}

	rows, err := pgPool.Query(ctx, `SELECT id FROM patients LIMIT 500`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		pool.Patients = append(pool.Patients, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pgPool.Query(ctx, `SELECT id FROM therapists LIMIT 50`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		pool.Therapists = append(pool.Therapists, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(pool.Patients) == 0 || len(pool.Therapists) == 0 {
		return nil, fmt.Errorf("empty data pool, run cmd/seed first")
	}

	return pool, nil
}

func nextMonday() time.Time {
	t := time.Now().AddDate(0, 0, 1)
	for t.Weekday() != time.Monday {
		t = t.AddDate(0, 0, 1)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
