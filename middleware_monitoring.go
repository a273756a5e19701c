// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// middlewareMeter is the otel meter every middleware instrument in this file
// is created from. Package name doubles as the instrumentation scope.
var middlewareMeter = otel.Meter("github.com/KotDath/mcpp-sub003")

// middlewareInstruments are the shared otel instruments backing
// MonitoringMiddleware. They are created lazily and once, since
// otel.Meter().Int64Counter etc. are themselves safe to call repeatedly but
// there is no reason to pay for it per-middleware.
type middlewareInstruments struct {
	requestCount metric.Int64Counter
	errorCount   metric.Int64Counter
	duration     metric.Float64Histogram
}

var (
	instrumentsOnce sync.Once
	instruments     *middlewareInstruments
)

func getMiddlewareInstruments() *middlewareInstruments {
	instrumentsOnce.Do(func() {
		requestCount, _ := middlewareMeter.Int64Counter(
			"mcp.middleware.requests",
			metric.WithDescription("Requests observed by MonitoringMiddleware, by middleware name"),
		)
		errorCount, _ := middlewareMeter.Int64Counter(
			"mcp.middleware.errors",
			metric.WithDescription("Requests that returned an error, by middleware name"),
		)
		duration, _ := middlewareMeter.Float64Histogram(
			"mcp.middleware.duration",
			metric.WithDescription("Request handling duration in seconds, by middleware name"),
			metric.WithUnit("s"),
		)
		instruments = &middlewareInstruments{
			requestCount: requestCount,
			errorCount:   errorCount,
			duration:     duration,
		}
	})
	return instruments
}

// MiddlewareMetrics is a point-in-time snapshot of a middleware's observed
// request volume, error volume, and latency distribution. The counters are
// also exported through otel; this snapshot exists for callers that want an
// in-process read without standing up a metrics backend.
type MiddlewareMetrics struct {
	RequestCount    int64         `json:"request_count"`
	ErrorCount      int64         `json:"error_count"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
	MinDuration     time.Duration `json:"min_duration"`
	LastRequest     time.Time     `json:"last_request"`
}

// MiddlewareMonitor keeps the in-process snapshot used by GetMetrics /
// PrintReport alongside whatever otel exports from the same recorded calls.
type MiddlewareMonitor struct {
	metrics map[string]*MiddlewareMetrics
	mu      sync.RWMutex
}

// NewMiddlewareMonitor creates an empty monitor.
func NewMiddlewareMonitor() *MiddlewareMonitor {
	return &MiddlewareMonitor{
		metrics: make(map[string]*MiddlewareMetrics),
	}
}

// RecordRequest records one completed request against both the in-process
// snapshot and the otel instruments.
func (m *MiddlewareMonitor) RecordRequest(ctx context.Context, middlewareName string, duration time.Duration, hasError bool) {
	attrs := metric.WithAttributes(attribute.String("middleware", middlewareName))
	inst := getMiddlewareInstruments()
	inst.requestCount.Add(ctx, 1, attrs)
	inst.duration.Record(ctx, duration.Seconds(), attrs)
	if hasError {
		inst.errorCount.Add(ctx, 1, attrs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	metric, exists := m.metrics[middlewareName]
	if !exists {
		metric = &MiddlewareMetrics{
			MinDuration: duration,
			MaxDuration: duration,
		}
		m.metrics[middlewareName] = metric
	}

	atomic.AddInt64(&metric.RequestCount, 1)
	if hasError {
		atomic.AddInt64(&metric.ErrorCount, 1)
	}

	metric.TotalDuration += duration
	metric.AverageDuration = metric.TotalDuration / time.Duration(metric.RequestCount)
	metric.LastRequest = time.Now()

	if duration > metric.MaxDuration {
		metric.MaxDuration = duration
	}
	if duration < metric.MinDuration {
		metric.MinDuration = duration
	}
}

// GetMetrics returns a copy of the snapshot for one middleware, or nil if
// nothing has been recorded for it yet.
func (m *MiddlewareMonitor) GetMetrics(middlewareName string) *MiddlewareMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if metric, exists := m.metrics[middlewareName]; exists {
		snapshot := *metric
		snapshot.RequestCount = atomic.LoadInt64(&metric.RequestCount)
		snapshot.ErrorCount = atomic.LoadInt64(&metric.ErrorCount)
		return &snapshot
	}
	return nil
}

// GetAllMetrics returns a copy of the snapshot for every middleware seen so far.
func (m *MiddlewareMonitor) GetAllMetrics() map[string]*MiddlewareMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*MiddlewareMetrics, len(m.metrics))
	for name, metric := range m.metrics {
		snapshot := *metric
		snapshot.RequestCount = atomic.LoadInt64(&metric.RequestCount)
		snapshot.ErrorCount = atomic.LoadInt64(&metric.ErrorCount)
		result[name] = &snapshot
	}
	return result
}

// Reset clears the in-process snapshot for one middleware. The otel
// instruments are cumulative and are unaffected.
func (m *MiddlewareMonitor) Reset(middlewareName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.metrics, middlewareName)
}

// ResetAll clears the in-process snapshot for every middleware.
func (m *MiddlewareMonitor) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = make(map[string]*MiddlewareMetrics)
}

// ToJSON renders the in-process snapshot for every middleware as indented JSON.
func (m *MiddlewareMonitor) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m.GetAllMetrics(), "", "  ")
}

// PrintReport writes a human-readable summary of the in-process snapshot to stdout.
func (m *MiddlewareMonitor) PrintReport() {
	fmt.Println("=== Middleware Monitoring Report ===")
	for name, metrics := range m.GetAllMetrics() {
		fmt.Printf("Middleware: %s\n", name)
		fmt.Printf("  Requests:     %d\n", metrics.RequestCount)
		fmt.Printf("  Errors:       %d\n", metrics.ErrorCount)
		fmt.Printf("  Avg duration: %v\n", metrics.AverageDuration)
		fmt.Printf("  Max duration: %v\n", metrics.MaxDuration)
		fmt.Printf("  Min duration: %v\n", metrics.MinDuration)
		fmt.Printf("  Last request: %v\n", metrics.LastRequest)
	}
}

var globalMonitor = NewMiddlewareMonitor()

// GetGlobalMonitor returns the process-wide monitor that MonitoringMiddleware,
// HealthCheckMiddleware, and AlertingMiddleware always use; none of them
// accepts a different monitor.
func GetGlobalMonitor() *MiddlewareMonitor {
	return globalMonitor
}

// MonitoringMiddleware records request count, error count, and latency for
// every call that passes through it, both locally and via otel.
func MonitoringMiddleware(middlewareName string) MiddlewareFunc {
	return func(ctx context.Context, req interface{}, next Handler) (interface{}, error) {
		startTime := time.Now()
		resp, err := next(ctx, req)
		duration := time.Since(startTime)
		globalMonitor.RecordRequest(ctx, middlewareName, duration, err != nil)
		return resp, err
	}
}

// HealthCheckMiddleware inspects the global monitor before letting a
// request through, flagging middlewares whose error rate exceeds 50%.
func HealthCheckMiddleware(ctx context.Context, req interface{}, next Handler) (interface{}, error) {
	metrics := globalMonitor.GetAllMetrics()

	logger := GetDefaultLogger()
	for name, metric := range metrics {
		if metric.RequestCount == 0 {
			continue
		}
		errorRate := float64(metric.ErrorCount) / float64(metric.RequestCount)
		if errorRate > 0.5 {
			logger.Errorf("middleware %q error rate %.0f%% exceeds threshold", name, errorRate*100)
		}
	}

	return next(ctx, req)
}

// AlertingMiddleware logs when a request's latency exceeds
// responseTimeThreshold. When the request itself returns an error, it also
// logs every middleware whose cumulative error count exceeds errorThreshold.
func AlertingMiddleware(errorThreshold int64, responseTimeThreshold time.Duration) MiddlewareFunc {
	return func(ctx context.Context, req interface{}, next Handler) (interface{}, error) {
		startTime := time.Now()
		resp, err := next(ctx, req)
		duration := time.Since(startTime)

		logger := GetDefaultLogger()
		if duration > responseTimeThreshold {
			logger.Errorf("request latency %v exceeds threshold %v", duration, responseTimeThreshold)
		}

		if err != nil {
			for name, metric := range globalMonitor.GetAllMetrics() {
				if metric.ErrorCount > errorThreshold {
					logger.Errorf("middleware %q error count %d exceeds threshold %d", name, metric.ErrorCount, errorThreshold)
				}
			}
		}

		return resp, err
	}
}

// TrafficSamplingMiddleware passes every int(1/sampleRate)-th request on
// (roughly a sampleRate fraction) and returns a synthetic response for the rest. Unrelated to MCP's
// sampling/createMessage; the name reflects statistical traffic sampling.
func TrafficSamplingMiddleware(sampleRate float64) MiddlewareFunc {
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}

	var counter int64

	return func(ctx context.Context, req interface{}, next Handler) (interface{}, error) {
		currentCount := atomic.AddInt64(&counter, 1)

		if sampleRate == 1.0 || currentCount%int64(1/sampleRate) == 0 {
			return next(ctx, req)
		}

		return fmt.Sprintf("sampled_response_%d", currentCount), nil
	}
}

// LoadBalancingMiddleware round-robins requests across a fixed set of handlers.
func LoadBalancingMiddleware(handlers []Handler) MiddlewareFunc {
	if len(handlers) == 0 {
		panic("LoadBalancingMiddleware: at least one handler is required")
	}

	var counter int64

	return func(ctx context.Context, req interface{}, next Handler) (interface{}, error) {
		index := atomic.AddInt64(&counter, 1) % int64(len(handlers))
		return handlers[index](ctx, req)
	}
}
