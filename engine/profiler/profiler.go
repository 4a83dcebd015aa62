package profiler

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// FrameStats are the per-frame counters reported alongside timing.
type FrameStats struct {
	Drawcalls int
	Instances int
	Objects   int
}

// Report is one interval's worth of aggregated statistics.
type Report struct {
	FPS         float64
	Elapsed     time.Duration
	Frames      int
	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64

	// per-frame averages over the interval
	Drawcalls int
	Instances int
	Objects   int
}

// Profiler tracks frame rate, scene counters and memory statistics.
// Stats are logged at a configurable interval.
type Profiler struct {
	frameCount     int
	totals         FrameStats
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	logger         *zap.Logger
	now            func() time.Time
	last           Report
}

// NewProfiler creates a new Profiler. Update interval defaults to 1 second.
//
// Parameters:
//   - options: variadic list of ProfilerOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		logger:         zap.NewNop(),
		now:            time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with that frame's counters.
// Logs performance statistics when the update interval has elapsed.
//
// Parameters:
//   - stats: the frame's draw and instance counters
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(stats FrameStats) bool {
	p.frameCount++
	p.totals.Drawcalls += stats.Drawcalls
	p.totals.Instances += stats.Instances
	p.totals.Objects += stats.Objects

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	r := Report{
		FPS:       float64(p.frameCount) / elapsed.Seconds(),
		Elapsed:   elapsed,
		Frames:    p.frameCount,
		Drawcalls: p.totals.Drawcalls / p.frameCount,
		Instances: p.totals.Instances / p.frameCount,
		Objects:   p.totals.Objects / p.frameCount,
		HeapMB:    float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:     float64(p.memStats.Sys) / 1024 / 1024,
		GCCount:   p.memStats.NumGC,
	}
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	r.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	if r.GCCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		r.LastPauseUs = p.memStats.PauseNs[(r.GCCount+255)%256] / 1000
		startIdx := p.lastGCCount
		if r.GCCount-startIdx > 256 {
			startIdx = r.GCCount - 256
		}
		for i := startIdx; i < r.GCCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > r.MaxPauseUs {
				r.MaxPauseUs = pause
			}
		}
	}

	p.logger.Info("frame stats",
		zap.Float64("fps", r.FPS),
		zap.Int("drawcalls", r.Drawcalls),
		zap.Int("instances", r.Instances),
		zap.Int("objects", r.Objects),
		zap.Float64("heap_mb", r.HeapMB),
		zap.Float64("alloc_rate_mb", r.AllocRateMB),
		zap.Uint32("gc", r.GCCount),
		zap.Uint64("gc_last_us", r.LastPauseUs),
		zap.Uint64("gc_max_us", r.MaxPauseUs),
		zap.Float64("sys_mb", r.SysMB),
	)

	p.last = r
	p.frameCount = 0
	p.totals = FrameStats{}
	p.lastTime = currentTime
	p.lastGCCount = r.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the most recently logged report.
func (p *Profiler) Last() Report {
	return p.last
}
