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
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// SimConfig drives a booking race: every contested slot gets Contenders concurrent
// patients trying to book it, and a share of the winners cancel afterwards.
type SimConfig struct {
	APIBaseURL  string
	Slots       int
	Contenders  int
	CancelRatio float64
	Timeout     time.Duration
}

type slotView struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
}

type SlotOutcome struct {
	Wins      int64
	Conflicts int64
	Errors    int64
	Winners   []string // caller ids
	mu        sync.Mutex
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking OperationMetrics
	Cancel  OperationMetrics
}

type Simulator struct {
	config   SimConfig
	client   *http.Client
	runID    string
	metrics  Metrics
	outcomes map[uuid.UUID]*SlotOutcome
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	_ = godotenv.Load()
	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: api=%s slots=%d contenders=%d cancel=%.2f",
		cfg.APIBaseURL, cfg.Slots, cfg.Contenders, cfg.CancelRatio)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		runID:  uuid.NewString()[:8],
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	slots, err := sim.loadSlots(ctx)
	if err != nil {
		log.Fatalf("load slots: %v", err)
	}
	if len(slots) == 0 {
		log.Fatal("no available slots, run the seed first")
	}
	log.Printf("contesting %d slots", len(slots))

	sim.Run(ctx, slots)
	sim.cancelSome(ctx)
	doubleBooked := sim.PrintReport()

	if doubleBooked > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Slots:       getInt("SIM_SLOTS", 20),
		Contenders:  getInt("SIM_CONTENDERS", 25),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.2),
		Timeout:     getDuration("SIM_TIMEOUT", 2*time.Minute),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Slots <= 0 {
		return fmt.Errorf("SIM_SLOTS must be > 0")
	}
	if cfg.Contenders <= 0 {
		return fmt.Errorf("SIM_CONTENDERS must be > 0")
	}
	if cfg.CancelRatio < 0 || cfg.CancelRatio > 1 {
		return fmt.Errorf("SIM_CANCEL_RATIO must be between 0 and 1")
	}
	return nil
}

func (s *Simulator) loadSlots(ctx context.Context) ([]slotView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/slots", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /slots returned %d", resp.StatusCode)
	}
	var slots []slotView
	if err := json.NewDecoder(resp.Body).Decode(&slots); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	if len(slots) > s.config.Slots {
		slots = slots[:s.config.Slots]
	}
	return slots, nil
}

// Run releases all contenders for all slots at once.
func (s *Simulator) Run(ctx context.Context, slots []slotView) {
	s.outcomes = make(map[uuid.UUID]*SlotOutcome, len(slots))
	for _, sl := range slots {
		s.outcomes[sl.ID] = &SlotOutcome{}
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, sl := range slots {
		for i := 0; i < s.config.Contenders; i++ {
			wg.Add(1)
			caller := fmt.Sprintf("sim-%s-%s-%d", s.runID, sl.ID.String()[:8], i)
			go func(slotID uuid.UUID, caller string) {
				defer wg.Done()
				<-start
				s.doBooking(ctx, slotID, caller)
			}(sl.ID, caller)
		}
	}

	begin := time.Now()
	close(start)
	wg.Wait()
	log.Printf("booking race finished in %s", time.Since(begin).Round(time.Millisecond))
}

func (s *Simulator) doBooking(ctx context.Context, slotID uuid.UUID, caller string) {
	out := s.outcomes[slotID]
	body, _ := json.Marshal(map[string]string{
		"slot_id":      slotID.String(),
		"visit_reason": "load simulation",
	})

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments", caller, body)
	latency := time.Since(start)

	switch {
	case err == nil && status == http.StatusCreated:
		atomic.AddInt64(&out.Wins, 1)
		out.mu.Lock()
		out.Winners = append(out.Winners, caller)
		out.mu.Unlock()
		s.metrics.Booking.Record(latency, true, false)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&out.Conflicts, 1)
		s.metrics.Booking.Record(latency, false, true)
	default:
		atomic.AddInt64(&out.Errors, 1)
		s.metrics.Booking.Record(latency, false, false)
	}
}

// cancelSome has a share of the winners cancel, which hands their slots back.
func (s *Simulator) cancelSome(ctx context.Context) {
	if s.config.CancelRatio == 0 {
		return
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var wg sync.WaitGroup
	for _, out := range s.outcomes {
		for _, caller := range out.Winners {
			if rng.Float64() >= s.config.CancelRatio {
				continue
			}
			wg.Add(1)
			go func(caller string) {
				defer wg.Done()
				s.cancelAll(ctx, caller)
			}(caller)
		}
	}
	wg.Wait()
}

func (s *Simulator) cancelAll(ctx context.Context, caller string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/appointments", nil)
	if err != nil {
		return
	}
	req.Header.Set("X-Caller-ID", caller)
	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	var list []struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return
	}

	body, _ := json.Marshal(map[string]string{"reason": "simulated cancellation"})
	for _, a := range list {
		start := time.Now()
		status, err := s.call(ctx, http.MethodPost, "/appointments/"+a.ID.String()+"/cancel", caller, body)
		s.metrics.Cancel.Record(time.Since(start), err == nil && status == http.StatusOK, err == nil && status == http.StatusConflict)
	}
}

func (s *Simulator) call(ctx context.Context, method, path, caller string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caller-ID", caller)
	req.Header.Set("X-Caller-Name", caller)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// PrintReport returns the number of slots that were booked more than once.
func (s *Simulator) PrintReport() int {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("BOOKING RACE REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Slots: %d\n", len(s.outcomes))
	fmt.Printf("Contenders per slot: %d\n", s.config.Contenders)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)

	doubleBooked, unbooked := 0, 0
	for id, out := range s.outcomes {
		switch {
		case out.Wins > 1:
			doubleBooked++
			fmt.Printf("  DOUBLE BOOKED slot=%s wins=%d\n", id, out.Wins)
		case out.Wins == 0:
			unbooked++
		}
	}
	fmt.Printf("Slots with exactly one winner: %d\n", len(s.outcomes)-doubleBooked-unbooked)
	fmt.Printf("Slots with no winner: %d\n", unbooked)
	fmt.Printf("Slots booked more than once: %d\n", doubleBooked)
	return doubleBooked
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
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

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
