// Package profiler - Per-stage timing and counters for the frame pipeline.
package profiler

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Stage names recorded by the tracking loop.
const (
	StageDecode   = "decode"
	StageSegment  = "segment"
	StageClassify = "classify"
	StageRender   = "render"
)

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	name      string
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// StageSummary is a snapshot of one tracked operation.
type StageSummary struct {
	Name  string
	Count int64
	Avg   time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Profiler accumulates operation timings and counters for one run. It is safe
// for concurrent use.
type Profiler struct {
	mu             sync.Mutex
	maxSamples     int
	startTime      time.Time
	operationTimes map[string]*TimeTracker
	counters       map[string]int64
}

// New creates a profiler keeping at most maxSamples durations per operation
// for averaging. Zero selects 600.
//
// Arguments:
// - maxSamples: Rolling window size for average durations.
//
// Returns:
// - A ready Profiler.
func New(maxSamples int) *Profiler {
	if maxSamples <= 0 {
		maxSamples = 600
	}
	return &Profiler{
		maxSamples:     maxSamples,
		startTime:      time.Now(),
		operationTimes: make(map[string]*TimeTracker),
		counters:       make(map[string]int64),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
//
// @example
//
//	done := p.StartOperation(profiler.StageSegment)
//	regions, err := segmenter.Segment(frame, previous)
//	done()
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.recordOperationTime(name, time.Since(start))
	}
}

// Count adds delta to a named counter.
func (p *Profiler) Count(name string, delta int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[name] += delta
}

// Counter returns the current value of a named counter.
func (p *Profiler) Counter(name string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters[name]
}

func (p *Profiler) recordOperationTime(name string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{
			name:    name,
			minTime: duration,
			maxTime: duration,
		}
		p.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	if len(tracker.durations) > p.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += duration
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Summary returns one entry per tracked operation, ordered by name.
func (p *Profiler) Summary() []StageSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]StageSummary, 0, len(p.operationTimes))
	for name, tracker := range p.operationTimes {
		if len(tracker.durations) == 0 {
			continue
		}
		out = append(out, StageSummary{
			Name:  name,
			Count: tracker.count,
			Avg:   tracker.totalTime / time.Duration(len(tracker.durations)),
			Min:   tracker.minTime,
			Max:   tracker.maxTime,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Log writes the summary and counters at debug level.
func (p *Profiler) Log(logger zerolog.Logger) {
	for _, s := range p.Summary() {
		logger.Debug().
			Str("stage", s.Name).
			Int64("count", s.Count).
			Dur("avg", s.Avg.Truncate(time.Microsecond)).
			Dur("min", s.Min.Truncate(time.Microsecond)).
			Dur("max", s.Max.Truncate(time.Microsecond)).
			Msg("stage timing")
	}

	p.mu.Lock()
	counters := zerolog.Dict()
	for name, v := range p.counters {
		counters.Int64(name, v)
	}
	uptime := time.Since(p.startTime)
	p.mu.Unlock()

	logger.Debug().Dict("counters", counters).Dur("uptime", uptime.Truncate(time.Millisecond)).Msg("profile")
}
