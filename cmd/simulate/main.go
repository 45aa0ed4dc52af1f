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
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetdesk/vetbook/internal/config"
	"github.com/vetdesk/vetbook/internal/db"
)

// simulate hammers the booking API with concurrent workers to observe
// the conflict behavior under contention: every slot should produce
// exactly one created appointment no matter how many workers race it.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	BookRatio   float64
	CancelRatio float64
	ReadRatio   float64
	OwnerLimit  int
	SlotLimit   int
	PostgresDSN string
}

type SlotRef struct {
	ProviderID uuid.UUID
	Date       string
	Start      string
}

type OwnerRef struct {
	OwnerID uuid.UUID
	PetID   uuid.UUID
}

type DataPool struct {
	Owners []OwnerRef
	Slots  []SlotRef

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment() (uuid.UUID, OwnerRef, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, OwnerRef{}, false
	}
	idx := rand.Intn(len(dp.appointments))
	return dp.appointments[idx], dp.Owners[idx%len(dp.Owners)], true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
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

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

type Metrics struct {
	Book   OperationMetrics
	Cancel OperationMetrics
	Read   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d owners, %d free slots", len(dataPool.Owners), len(dataPool.Slots))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		BookRatio:   getFloat("SIM_BOOK_RATIO", 0.6),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.3),
		OwnerLimit:  getInt("SIM_OWNER_LIMIT", 500),
		SlotLimit:   getInt("SIM_SLOT_LIMIT", 2000),
		PostgresDSN: baseCfg.PostgresDSN,
	}

	total := cfg.BookRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT p.owner_id, p.id
		FROM pet p
		LIMIT $1
	`, cfg.OwnerLimit)
	if err != nil {
		return nil, fmt.Errorf("load owners: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ref OwnerRef
		if err := rows.Scan(&ref.OwnerID, &ref.PetID); err != nil {
			return nil, err
		}
		dataPool.Owners = append(dataPool.Owners, ref)
	}

	rows, err = pool.Query(ctx, `
		SELECT ts.provider_id, to_char(ts.slot_date, 'YYYY-MM-DD'), to_char(ts.start_time, 'HH24:MI')
		FROM time_slot ts
		WHERE NOT ts.is_blocked
		  AND ts.slot_date > current_date
		  AND NOT EXISTS (
			SELECT 1 FROM appointment a
			WHERE a.provider_id = ts.provider_id
			  AND a.appt_date = ts.slot_date
			  AND a.start_time = ts.start_time
			  AND a.status <> 'cancelled'
		  )
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ref SlotRef
		if err := rows.Scan(&ref.ProviderID, &ref.Date, &ref.Start); err != nil {
			return nil, err
		}
		dataPool.Slots = append(dataPool.Slots, ref)
	}

	if len(dataPool.Owners) == 0 {
		return nil, fmt.Errorf("no owners loaded, run cmd/seed first")
	}
	if len(dataPool.Slots) == 0 {
		return nil, fmt.Errorf("no free slots loaded, run cmd/seed first")
	}
	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx)
		}()
	}
	wg.Wait()
}

func (s *Simulator) worker(ctx context.Context) {
	for ctx.Err() == nil {
		roll := rand.Float64()
		switch {
		case roll < s.config.BookRatio:
			s.doBook(ctx)
		case roll < s.config.BookRatio+s.config.CancelRatio:
			s.doCancel(ctx)
		default:
			s.doRead(ctx)
		}
	}
}

func (s *Simulator) doBook(ctx context.Context) {
	owner := s.pool.Owners[rand.Intn(len(s.pool.Owners))]
	// A narrow slot window on purpose: many workers collide on the
	// same slots so the conflict path gets real traffic.
	slot := s.pool.Slots[rand.Intn(min(len(s.pool.Slots), 50))]

	body, _ := json.Marshal(map[string]string{
		"provider_id": slot.ProviderID.String(),
		"pet_id":      owner.PetID.String(),
		"owner_id":    owner.OwnerID.String(),
		"date":        slot.Date,
		"start_time":  slot.Start,
		"reason":      "load test visit",
	})

	start := time.Now()
	status, respBody := s.post(ctx, "/appointments", owner.OwnerID, body)
	latency := time.Since(start)

	success := status == http.StatusCreated
	conflict := status == http.StatusConflict || status == http.StatusUnprocessableEntity
	s.metrics.Book.Record(latency, success, conflict)

	if success {
		var resp struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.Unmarshal(respBody, &resp); err == nil {
			s.pool.AddAppointment(resp.ID)
		}
	}
}

func (s *Simulator) doCancel(ctx context.Context) {
	id, owner, ok := s.pool.RandomAppointment()
	if !ok {
		return
	}

	start := time.Now()
	status, _ := s.post(ctx, "/appointments/"+id.String()+"/cancel", owner.OwnerID, nil)
	latency := time.Since(start)

	s.metrics.Cancel.Record(latency, status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doRead(ctx context.Context) {
	slot := s.pool.Slots[rand.Intn(len(s.pool.Slots))]
	url := fmt.Sprintf("%s/providers/%s/slots?date=%s", s.config.APIBaseURL, slot.ProviderID, slot.Date)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return
	}
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Read.Record(latency, false, false)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	s.metrics.Read.Record(latency, resp.StatusCode == http.StatusOK, false)
}

func (s *Simulator) post(ctx context.Context, path string, requestor uuid.UUID, body []byte) (int, []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requestor-ID", requestor.String())

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n=== simulation report ===")
	printOp("book", &s.metrics.Book)
	printOp("cancel", &s.metrics.Cancel)
	printOp("read", &s.metrics.Read)
}

func printOp(name string, om *OperationMetrics) {
	avg, p50, p95 := om.Stats()
	fmt.Printf("%-8s total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s\n",
		name,
		atomic.LoadInt64(&om.Total),
		atomic.LoadInt64(&om.Success),
		atomic.LoadInt64(&om.Conflict),
		atomic.LoadInt64(&om.Error),
		avg, p50, p95,
	)
}

// env helpers, simulator-local

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
