// Package synth computes the client-dialect generation metrics for a
// completed backend call: elapsed time, an estimated output token count and
// a throughput figure held above a configured floor.
package synth

import (
	"math"
	"time"
	"unicode/utf16"

	"ollamabridge/internal/core"
)

// EstimateTokens approximates the token count of text at four characters per
// token, rounded to nearest. The result is never below 1. Characters are
// UTF-16 code units, so a character outside the BMP counts twice.
func EstimateTokens(text string) int {
	return max(1, int(math.Round(float64(utf16Len(text))/core.CharsPerToken)))
}

func utf16Len(text string) int {
	n := 0
	for _, r := range text {
		n += utf16.RuneLen(r)
	}
	return n
}

// Result is the outcome of a synthesis.
type Result struct {
	Metrics   core.GenerationMetrics
	TPS       float64
	RawTokens int
	RawTPS    float64
	Inflated  bool
}

// Synthesizer turns (elapsed, text) into GenerationMetrics. MinTPS <= 0
// disables the throughput floor.
type Synthesizer struct {
	minTPS float64
	clock  core.Clock
}

// New creates a Synthesizer. A nil clock uses the system clock.
func New(minTPS float64, clock core.Clock) *Synthesizer {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Synthesizer{minTPS: minTPS, clock: clock}
}

// MinTPS returns the configured throughput floor.
func (s *Synthesizer) MinTPS() float64 {
	return s.minTPS
}

// Now reads the synthesizer's clock.
func (s *Synthesizer) Now() time.Time {
	return s.clock.Now()
}

// Start begins timing a request.
func (s *Synthesizer) Start() Stopwatch {
	return Stopwatch{clock: s.clock, start: s.clock.Now()}
}

// Synthesize builds the metrics record. When observed throughput is below
// the floor the token count is raised to ceil(MinTPS * seconds); the elapsed
// duration itself is reported unchanged.
func (s *Synthesizer) Synthesize(elapsed time.Duration, text string) Result {
	if elapsed < 0 {
		elapsed = 0
	}
	seconds := math.Max(elapsed.Seconds(), core.MinElapsedSeconds)

	tokens := EstimateTokens(text)
	res := Result{
		RawTokens: tokens,
		RawTPS:    float64(tokens) / seconds,
	}
	res.TPS = res.RawTPS

	if s.minTPS > 0 && res.TPS < s.minTPS {
		tokens = int(math.Ceil(s.minTPS * seconds))
		res.TPS = float64(tokens) / seconds
		res.Inflated = true
	}

	ns := elapsed.Nanoseconds()
	res.Metrics = core.GenerationMetrics{
		TotalDuration:      ns,
		LoadDuration:       0,
		PromptEvalCount:    0,
		PromptEvalDuration: 0,
		EvalCount:          tokens,
		EvalDuration:       ns,
	}
	return res
}

// Stopwatch measures elapsed time from a fixed start reading.
type Stopwatch struct {
	clock core.Clock
	start time.Time
}

// Elapsed returns the time since the stopwatch started, never negative.
func (w Stopwatch) Elapsed() time.Duration {
	if w.clock == nil {
		return 0
	}
	d := w.clock.Now().Sub(w.start)
	if d < 0 {
		return 0
	}
	return d
}
