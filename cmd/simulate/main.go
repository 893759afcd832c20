package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medisched/clinic-scheduling/internal/config"
	"github.com/medisched/clinic-scheduling/internal/db"
	redisclient "github.com/medisched/clinic-scheduling/internal/redis"
	"github.com/medisched/clinic-scheduling/internal/schedule"
	"github.com/medisched/clinic-scheduling/internal/treatment"
)

// The simulator drives the lifecycle service directly with concurrent
// bookings, transitions and slot queries against a seeded database. Its
// point is the conflict contract: however many workers race on the same
// staff and rooms, no accepted pair of appointments may overlap.

type SimConfig struct {
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	TransitionRatio float64
	SlotsRatio      float64
	StaffLimit      int
	PatientLimit    int
}

type DataPool struct {
	Staff    []uuid.UUID
	Rooms    []uuid.UUID
	Services []uuid.UUID
	Patients []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
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

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Booking    OperationMetrics
	Transition OperationMetrics
	Slots      OperationMetrics
}

type Simulator struct {
	config    SimConfig
	pool      *DataPool
	service   *schedule.Service
	slotGen   *schedule.SlotGenerator
	slotCache *redisclient.SlotCache
	date      time.Time
	metrics   Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	simCfg := loadSimConfig()
	log.Printf("config: duration=%s workers=%d booking=%.2f transition=%.2f slots=%.2f",
		simCfg.Duration, simCfg.Workers, simCfg.BookingRatio, simCfg.TransitionRatio, simCfg.SlotsRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	rdb, err := redisclient.NewRedisClient(baseCfg.RedisAddr, baseCfg.RedisUsername, baseCfg.RedisPassword)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer rdb.Close()

	dataPool, err := loadDataPool(ctx, pgPool, simCfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d staff, %d rooms, %d services, %d patients",
		len(dataPool.Staff), len(dataPool.Rooms), len(dataPool.Services), len(dataPool.Patients))

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	store := schedule.NewPgStore(pgPool)
	cal := schedule.NewCalendar(store)
	detector := schedule.NewDetector(store)
	slotGen := schedule.NewSlotGenerator(cal, detector)
	slotCache := redisclient.NewSlotCache(rdb, baseCfg.SlotCacheTTL)
	locker := redisclient.NewRedisScheduleLocker(rdb, baseCfg.LockTTL)
	ledger := treatment.NewLedger(treatment.NewPgStore(pgPool), baseCfg.ConsumeCompletedOnly, logger)
	service := schedule.NewService(store, cal, detector, locker, ledger, slotCache, logger)

	sim := &Simulator{
		config:    simCfg,
		pool:      dataPool,
		service:   service,
		slotGen:   slotGen,
		slotCache: slotCache,
		date:      nextWeekday(time.Now()),
	}

	sim.Run()
	sim.PrintReport()
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.5),
		TransitionRatio: getFloat("SIM_TRANSITION_RATIO", 0.2),
		SlotsRatio:      getFloat("SIM_SLOTS_RATIO", 0.3),
		StaffLimit:      getInt("SIM_STAFF_LIMIT", 40),
		PatientLimit:    getInt("SIM_PATIENT_LIMIT", 2000),
	}

	total := cfg.BookingRatio + cfg.TransitionRatio + cfg.SlotsRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.TransitionRatio /= total
		cfg.SlotsRatio /= total
	}
	return cfg
}

// nextWeekday picks the first Monday-Friday date after t, where the seeded
// rosters have working hours.
func nextWeekday(t time.Time) time.Time {
	d := t.AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	load := func(query string, limit int, dst *[]uuid.UUID) error {
		rows, err := pool.Query(ctx, query, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			*dst = append(*dst, id)
		}
		return rows.Err()
	}

	if err := load(`SELECT id FROM staff LIMIT $1`, cfg.StaffLimit, &dataPool.Staff); err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	if err := load(`SELECT id FROM rooms LIMIT $1`, 100, &dataPool.Rooms); err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	if err := load(`SELECT id FROM services LIMIT $1`, 100, &dataPool.Services); err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	if err := load(`SELECT id FROM patients LIMIT $1`, cfg.PatientLimit, &dataPool.Patients); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	if len(dataPool.Staff) == 0 || len(dataPool.Rooms) == 0 || len(dataPool.Services) == 0 || len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("empty data pool, run cmd/seed first")
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
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.TransitionRatio:
				s.doTransition(ctx, rng)
			default:
				s.doSlots(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	// Random 30-minute interval on a 09:00-17:00 half-hour grid; collisions
	// between workers are the interesting case.
	startMin := 9*60 + 30*rng.Intn(16)

	req := schedule.CreateRequest{
		PatientID: s.pool.Patients[rng.Intn(len(s.pool.Patients))],
		ServiceID: s.pool.Services[rng.Intn(len(s.pool.Services))],
		StaffID:   s.pool.Staff[rng.Intn(len(s.pool.Staff))],
		RoomID:    s.pool.Rooms[rng.Intn(len(s.pool.Rooms))],
		Date:      s.date,
		Start:     schedule.TimeOfDay(startMin),
		End:       schedule.TimeOfDay(startMin + 30),
	}

	start := time.Now()
	result, err := s.service.Create(ctx, req)
	latency := time.Since(start)

	success := err == nil
	conflict := errors.Is(err, schedule.ErrStaffConflict) ||
		errors.Is(err, schedule.ErrRoomConflict) ||
		errors.Is(err, schedule.ErrDuringBreak) ||
		errors.Is(err, redisclient.ErrLockNotAcquired)

	if success {
		s.pool.AddAppointment(result.Appointment.ID)
	}
	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doTransition(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	targets := []schedule.AppointmentStatus{
		schedule.StatusCompleted,
		schedule.StatusCancelled,
		schedule.StatusNoShow,
	}
	to := targets[rng.Intn(len(targets))]

	start := time.Now()
	_, err := s.service.TransitionStatus(ctx, apptID, to)
	latency := time.Since(start)

	success := err == nil
	conflict := errors.Is(err, schedule.ErrInvalidTransition)

	s.metrics.Transition.Record(latency, success, conflict)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	staffID := s.pool.Staff[rng.Intn(len(s.pool.Staff))]

	start := time.Now()

	slots, hit, err := s.slotCache.Get(ctx, staffID, s.date, 30, 30)
	if err == nil && !hit {
		var fresh []schedule.TimeOfDay
		fresh, err = s.slotGen.FreeSlots(ctx, staffID, s.date, 30, 30)
		if err == nil {
			slots = schedule.FormatSlots(fresh)
			err = s.slotCache.Put(ctx, staffID, s.date, 30, 30, slots)
		}
	}

	latency := time.Since(start)
	s.metrics.Slots.Record(latency, err == nil, false)

	if err == nil && len(slots) == 0 {
		// Weekday rosters are seeded, so a fully booked day is the only
		// legitimate reason for an empty listing.
		log.Printf("staff %s has no free slots on %s", staffID, schedule.DateKey(s.date))
	}
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Date under load: %s\n", schedule.DateKey(s.date))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Transition", &s.metrics.Transition)
	printOperationReport("Free slots", &s.metrics.Slots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

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
