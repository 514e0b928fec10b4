package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one relaxation iteration.
const (
	PhaseBuildIndex     = "build_index"
	PhaseBuildNeighbors = "build_neighbors"
	PhaseDisplacement   = "displacement"
	PhaseSurfaceBound   = "surface_bound"
	PhaseUpdateRatio    = "update_ratio"
)

// PerfSample holds timing data for a single iteration.
type PerfSample struct {
	IterDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks phase timings over a rolling window of iterations.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	iterStart     time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a collector averaging over windowSize iterations.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 100
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartIter begins timing a new iteration.
func (p *PerfCollector) StartIter() {
	p.iterStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase, ending the previous one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndIter finishes timing the current iteration and records the sample.
func (p *PerfCollector) EndIter() {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		IterDuration: now.Sub(p.iterStart),
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated timings over the current window.
type PerfStats struct {
	AvgIterDuration time.Duration
	MinIterDuration time.Duration
	MaxIterDuration time.Duration
	PhaseAvg        map[string]time.Duration
	PhasePct        map[string]float64
	IterPerSecond   float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var total, minIter, maxIter time.Duration
	phaseSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.IterDuration
		if i == 0 || s.IterDuration < minIter {
			minIter = s.IterDuration
		}
		if s.IterDuration > maxIter {
			maxIter = s.IterDuration
		}
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)
	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	var perSec float64
	if avg > 0 {
		perSec = float64(time.Second) / float64(avg)
	}

	return PerfStats{
		AvgIterDuration: avg,
		MinIterDuration: minIter,
		MaxIterDuration: maxIter,
		PhaseAvg:        phaseAvg,
		PhasePct:        phasePct,
		IterPerSecond:   perSec,
	}
}

// LogStats logs aggregated performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_iter_us", s.AvgIterDuration.Microseconds(),
		"min_iter_us", s.MinIterDuration.Microseconds(),
		"max_iter_us", s.MaxIterDuration.Microseconds(),
		"iter_per_sec", s.IterPerSecond,
	}
	for phase, pct := range s.PhasePct {
		attrs = append(attrs, "pct_"+phase, pct)
	}
	slog.Info("relaxation perf", attrs...)
}
