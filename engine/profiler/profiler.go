package profiler

import (
	"log"
	"runtime"
	"time"
)

// Profiler tracks frame rate, kernel dispatch time and memory statistics for
// performance monitoring. Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	dispatchTime time.Duration
	pixels       int64
	covered      int64
	culled       int

	last Snapshot
}

// Snapshot is the summary of one logged interval.
type Snapshot struct {
	FPS          float64
	AvgDispatch  time.Duration
	Coverage     float64 // fraction of pixels whose ray entered the sphere
	CulledFrames int
	HeapMB       float64
	AllocRateMB  float64
	GCCount      uint32
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		frameCount:     0,
		lastTime:       time.Now(),
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
	}
}

// SetInterval changes how often Tick logs. Values <= 0 log on every tick.
//
// Parameters:
//   - d: the logging interval
func (p *Profiler) SetInterval(d time.Duration) {
	p.updateInterval = max(d, 0)
}

// Last returns the summary of the most recently logged interval.
func (p *Profiler) Last() Snapshot {
	return p.last
}

// Tick should be called once per rendered frame with that frame's kernel counters.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, mean dispatch time, sphere coverage, culled frames,
// heap usage, allocation rate, GC count/pause times, total memory.
//
// Parameters:
//   - dispatch: wall time of the frame's kernel dispatch
//   - pixels: pixels written by the dispatch
//   - covered: pixels whose ray entered the sphere
//   - culled: true if the frame skipped the dispatch
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(dispatch time.Duration, pixels, covered int64, culled bool) bool {
	p.frameCount++
	p.dispatchTime += dispatch
	p.pixels += pixels
	p.covered += covered
	if culled {
		p.culled++
	}

	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed >= p.updateInterval {
		seconds := max(elapsed.Seconds(), 1e-9)
		fps := float64(p.frameCount) / seconds

		runtime.ReadMemStats(&p.memStats)
		// Alloc: Bytes of allocated heap objects (live memory)
		// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
		// Sys: Total bytes of memory obtained from the OS (actual process footprint)
		allocMB := float64(p.memStats.Alloc) / 1024 / 1024
		sysMB := float64(p.memStats.Sys) / 1024 / 1024

		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB := float64(allocDelta) / 1024 / 1024 / seconds

		// Calculate GC pause stats (last pause and max recent pause)
		gcCount := p.memStats.NumGC
		var lastPauseUs, maxPauseUs uint64
		if gcCount > 0 {
			// PauseNs is a circular buffer of last 256 GC pauses
			lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

			startIdx := p.lastGCCount
			if gcCount-startIdx > 256 {
				startIdx = gcCount - 256
			}
			for i := startIdx; i < gcCount; i++ {
				pause := p.memStats.PauseNs[i%256] / 1000
				if pause > maxPauseUs {
					maxPauseUs = pause
				}
			}
		}

		avgDispatch := p.dispatchTime / time.Duration(p.frameCount)
		var coverage float64
		if p.pixels > 0 {
			coverage = float64(p.covered) / float64(p.pixels)
		}

		log.Printf("[Profiler] FPS: %.2f | Dispatch: %.2f ms | Coverage: %.1f%% | Culled: %d | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
			fps, float64(avgDispatch.Microseconds())/1000, coverage*100, p.culled, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

		p.last = Snapshot{
			FPS:          fps,
			AvgDispatch:  avgDispatch,
			Coverage:     coverage,
			CulledFrames: p.culled,
			HeapMB:       allocMB,
			AllocRateMB:  allocRateMB,
			GCCount:      gcCount,
		}

		p.frameCount = 0
		p.dispatchTime = 0
		p.pixels = 0
		p.covered = 0
		p.culled = 0
		p.lastTime = currentTime
		p.lastGCCount = gcCount
		p.lastTotalAlloc = p.memStats.TotalAlloc
		return true
	}

	return false
}
