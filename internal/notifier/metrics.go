package notifier

import (
	"sync/atomic"
	"time"
)

type deliveryMetrics struct {
	totalSent       int64
	totalFailed     int64
	totalDurationNs int64
	startedNs       int64
}

func newDeliveryMetrics() *deliveryMetrics {
	return &deliveryMetrics{
		startedNs: time.Now().UnixNano(),
	}
}

func (m *deliveryMetrics) RecordSent(duration time.Duration) {
	atomic.AddInt64(&m.totalSent, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
}

func (m *deliveryMetrics) RecordFailure() {
	atomic.AddInt64(&m.totalFailed, 1)
}

func (m *deliveryMetrics) Stats() map[string]interface{} {
	sent := atomic.LoadInt64(&m.totalSent)
	failed := atomic.LoadInt64(&m.totalFailed)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	startedNs := atomic.LoadInt64(&m.startedNs)

	elapsed := time.Since(time.Unix(0, startedNs)).Seconds()

	rate := 0.0
	if elapsed > 0 {
		rate = float64(sent) / elapsed
	}

	avgDuration := time.Duration(0)
	if sent > 0 {
		avgDuration = time.Duration(durationNs / sent)
	}

	return map[string]interface{}{
		"total_sent":      sent,
		"total_failed":    failed,
		"rate_per_second": rate,
		"avg_duration_ms": avgDuration.Milliseconds(),
		"uptime_seconds":  elapsed,
	}
}
