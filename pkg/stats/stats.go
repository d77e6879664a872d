package stats

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	cpu "github.com/shirou/gopsutil/v4/cpu"
	mem "github.com/shirou/gopsutil/v4/mem"
	"gonum.org/v1/gonum/stat"
)

const DefaultWindow = 1024

// Recorder keeps execution counters and a sliding window of execution durations.
type Recorder struct {
	logger *slog.Logger

	inFlight atomic.Int64
	total    atomic.Int64
	failed   atomic.Int64

	mu        sync.Mutex
	durations []float64 // milliseconds, ring buffer
	next      int
	full      bool

	// sampled host usage, replaceable in tests.
	hostUsage func(ctx context.Context) (cpuPercent, ramPercent float64, err error)
}

// Snapshot is the point-in-time view served by the runtime.
type Snapshot struct {
	Executions     int64   `json:"executions"`
	Failures       int64   `json:"failures"`
	InFlight       int64   `json:"inFlight"`
	MeanMillis     float64 `json:"meanMs"`
	P50Millis      float64 `json:"p50Ms"`
	P90Millis      float64 `json:"p90Ms"`
	P99Millis      float64 `json:"p99Ms"`
	CPUPercent     float64 `json:"cpuPercent"`
	UsedRAMPercent float64 `json:"usedRamPercent"`
}

func NewRecorder(logger *slog.Logger, window int) *Recorder {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Recorder{
		logger:    logger.With("component", "stats"),
		durations: make([]float64, window),
		hostUsage: sampleHostUsage,
	}
}

// Start marks one execution as in flight.
func (r *Recorder) Start() {
	r.inFlight.Add(1)
}

// InFlight is the number of executions started but not finished.
func (r *Recorder) InFlight() int64 {
	return r.inFlight.Load()
}

// Finish records the outcome of an execution previously passed to Start.
func (r *Recorder) Finish(d time.Duration, err error) {
	r.inFlight.Add(-1)
	r.total.Add(1)
	if err != nil {
		r.failed.Add(1)
	}

	r.mu.Lock()
	r.durations[r.next] = float64(d) / float64(time.Millisecond)
	r.next = (r.next + 1) % len(r.durations)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

func (r *Recorder) window() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.full {
		n = len(r.durations)
	}
	out := make([]float64, n)
	copy(out, r.durations[:n])
	return out
}

func (r *Recorder) Snapshot(ctx context.Context) Snapshot {
	s := Snapshot{
		Executions: r.total.Load(),
		Failures:   r.failed.Load(),
		InFlight:   r.inFlight.Load(),
	}

	if d := r.window(); len(d) > 0 {
		slices.Sort(d)
		s.MeanMillis = stat.Mean(d, nil)
		s.P50Millis = stat.Quantile(0.5, stat.Empirical, d, nil)
		s.P90Millis = stat.Quantile(0.9, stat.Empirical, d, nil)
		s.P99Millis = stat.Quantile(0.99, stat.Empirical, d, nil)
	}

	cpuPercent, ramPercent, err := r.hostUsage(ctx)
	if err != nil {
		r.logger.Warn("failed to sample host usage", "error", err)
	} else {
		s.CPUPercent = cpuPercent
		s.UsedRAMPercent = ramPercent
	}

	return s
}

func sampleHostUsage(ctx context.Context) (float64, float64, error) {
	percent, err := cpu.PercentWithContext(ctx, 10*time.Millisecond, false)
	if err != nil {
		return 0, 0, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}

	var cpuPercent float64
	if len(percent) > 0 {
		cpuPercent = percent[0]
	}
	return cpuPercent, vm.UsedPercent, nil
}
