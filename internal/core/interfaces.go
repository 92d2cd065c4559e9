package core

import (
	"time"
)

// Logger interface
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Fatal(format string, args ...any)
}

// StorageInterface storage interface
type StorageInterface interface {
	SaveStats(stats *RequestStats) error
	LoadStats() (*RequestStats, error)
	Close() error
}

// MetricsCollector receives per-request observations from the pipeline and handlers.
type MetricsCollector interface {
	RecordHTTPRequest(route string, status int, duration time.Duration)
	RecordBackendCall(status int, duration time.Duration)
	RecordSynthesis(model string, evalCount int, inflated bool)
	GetQPS() float64
}

// Clock is the time source used for request timing. Implementations must
// return readings that carry a monotonic component so that Sub is immune to
// wall-clock adjustments.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// NopLogger empty logger implementation
type NopLogger struct{}

func (*NopLogger) Debug(format string, args ...any) {}
func (*NopLogger) Info(format string, args ...any)  {}
func (*NopLogger) Warn(format string, args ...any)  {}
func (*NopLogger) Error(format string, args ...any) {}
func (*NopLogger) Fatal(format string, args ...any) {}

// NopMetrics empty metrics collector implementation
type NopMetrics struct{}

func (*NopMetrics) RecordHTTPRequest(route string, status int, duration time.Duration) {}
func (*NopMetrics) RecordBackendCall(status int, duration time.Duration)               {}
func (*NopMetrics) RecordSynthesis(model string, evalCount int, inflated bool)         {}
func (*NopMetrics) GetQPS() float64                                                    { return 0 }
