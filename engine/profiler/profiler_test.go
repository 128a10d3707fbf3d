package profiler

import (
	"testing"
	"time"
)

func TestTickInterval(t *testing.T) {
	p := NewProfiler()
	p.SetInterval(time.Hour)
	if p.Tick(time.Millisecond, 100, 50, false) {
		t.Error("Tick() logged before the interval elapsed")
	}

	p.SetInterval(0)
	if !p.Tick(3*time.Millisecond, 100, 0, true) {
		t.Fatal("Tick() did not log with a zero interval")
	}

	s := p.Last()
	if s.AvgDispatch != 2*time.Millisecond {
		t.Errorf("AvgDispatch = %v, want 2ms", s.AvgDispatch)
	}
	if s.Coverage != 0.25 {
		t.Errorf("Coverage = %v, want 0.25", s.Coverage)
	}
	if s.CulledFrames != 1 {
		t.Errorf("CulledFrames = %d, want 1", s.CulledFrames)
	}
	if s.FPS <= 0 {
		t.Errorf("FPS = %v, want > 0", s.FPS)
	}
}

func TestTickResetsCounters(t *testing.T) {
	p := NewProfiler()
	p.SetInterval(0)
	p.Tick(10*time.Millisecond, 10, 10, false)
	p.Tick(2*time.Millisecond, 10, 0, false)

	s := p.Last()
	if s.AvgDispatch != 2*time.Millisecond || s.Coverage != 0 {
		t.Errorf("second interval = %+v, want counters from one frame only", s)
	}
}
