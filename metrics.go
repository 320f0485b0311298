package goIdentity

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint8

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterRejected
	MetricVerifySuccess
	MetricLoginSuccess
	MetricLoginFailure
	MetricMagicLinkIssued
	MetricMagicLinkConsumed
	MetricResetRequested
	MetricResetCompleted
	MetricSocialLogin
	MetricTwoFactorEnabled
	MetricTwoFactorDisabled
	MetricNotifyFailed
	MetricNotifyDropped

	metricIDCount
)

// metrics holds lock-free counters. A nil *metrics is a no-op so the engine
// never branches on whether metrics are enabled.
type metrics struct {
	counters [metricIDCount]atomic.Uint64
}

func newMetrics(enabled bool) *metrics {
	if !enabled {
		return nil
	}
	return &metrics{}
}

func (m *metrics) inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot map[MetricID]uint64

func (m *metrics) snapshot() MetricsSnapshot {
	out := make(MetricsSnapshot, metricIDCount)
	if m == nil {
		return out
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		out[id] = m.counters[id].Load()
	}
	return out
}
