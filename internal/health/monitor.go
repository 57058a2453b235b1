// Package health tracks request outcomes in bounded sliding windows and
// performs automatic recovery when failures accumulate. The monitor observes
// outcomes of any operation; it never decides to reload or unload a model.
// Recovery means clearing transient memory pressure so the next request can
// retry the expensive path through the lifecycle manager.
package health

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"validd/pkg/types"
)

const (
	maxRequestRecords      = 100
	maxErrorRecords        = 50
	maxConsecutiveErrors   = 5
	maxRecoveryAttempts    = 3
	errorRateThreshold     = 0.1
	errorRateWindow        = 5 * time.Minute
	degradedConsecutiveMin = 3
)

var (
	requestsObserved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "validd",
			Subsystem: "health",
			Name:      "requests_observed_total",
			Help:      "Request outcomes observed by the health monitor",
		},
		[]string{"outcome"},
	)
	recoveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "validd",
			Subsystem: "health",
			Name:      "recoveries_total",
			Help:      "Automatic recovery attempts performed",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsObserved, recoveriesTotal)
}

type requestRecord struct {
	at      time.Time
	success bool
}

type errorRecord struct {
	at     time.Time
	detail string
}

// Monitor is a sliding-window request/error tracker with automatic recovery.
type Monitor struct {
	mu                sync.Mutex
	startTime         time.Time
	lastHeartbeat     time.Time
	consecutiveErrors int
	recoveryAttempts  int
	requests          []requestRecord
	errors            []errorRecord
	log               zerolog.Logger

	now func() time.Time
}

// NewMonitor constructs a Monitor.
func NewMonitor(log zerolog.Logger) *Monitor {
	m := &Monitor{log: log.With().Str("component", "health").Logger(), now: time.Now}
	m.startTime = m.now()
	m.lastHeartbeat = m.startTime
	return m
}

// RecordRequest appends one outcome to the sliding windows. A failure
// increments the consecutive-error counter; reaching the threshold triggers
// AttemptRecovery synchronously. A success resets the counter.
func (m *Monitor) RecordRequest(success bool, errorDetail string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.requests = append(m.requests, requestRecord{at: now, success: success})
	if len(m.requests) > maxRequestRecords {
		m.requests = m.requests[len(m.requests)-maxRequestRecords:]
	}

	if success {
		m.consecutiveErrors = 0
		requestsObserved.WithLabelValues("success").Inc()
	} else {
		m.consecutiveErrors++
		m.errors = append(m.errors, errorRecord{at: now, detail: errorDetail})
		if len(m.errors) > maxErrorRecords {
			m.errors = m.errors[len(m.errors)-maxErrorRecords:]
		}
		requestsObserved.WithLabelValues("failure").Inc()
		m.log.Warn().Int("consecutive", m.consecutiveErrors).Str("error", errorDetail).
			Msg("request failure recorded")
		// Trigger exactly once per failure streak, at the threshold.
		if m.consecutiveErrors == maxConsecutiveErrors {
			m.log.Error().Int("consecutive", m.consecutiveErrors).
				Msg("consecutive failure threshold reached, attempting recovery")
			m.attemptRecoveryLocked()
		}
	}
	m.lastHeartbeat = now
}

// AttemptRecovery forces a memory-reclamation pass. Attempts are bounded for
// the monitor's lifetime; once exhausted the condition is logged as a
// critical instability signal but the process keeps serving.
func (m *Monitor) AttemptRecovery() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attemptRecoveryLocked()
}

func (m *Monitor) attemptRecoveryLocked() bool {
	if m.recoveryAttempts >= maxRecoveryAttempts {
		m.log.Error().Int("attempts", m.recoveryAttempts).
			Msg("recovery attempts exhausted, server may be unstable")
		return false
	}
	m.recoveryAttempts++
	recoveriesTotal.Inc()
	m.log.Info().Int("attempt", m.recoveryAttempts).Int("max", maxRecoveryAttempts).
		Msg("automatic recovery: reclaiming memory")

	runtime.GC()
	debug.FreeOSMemory()

	m.log.Info().Msg("automatic recovery complete")
	return true
}

// Snapshot recomputes the derived health view. The 5-minute error rate is
// taken over the request window filtered to recent records; an empty filtered
// window yields 0.0.
func (m *Monitor) Snapshot() types.HealthSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-errorRateWindow)
	var recent, failed int
	for _, r := range m.requests {
		if r.at.After(cutoff) {
			recent++
			if !r.success {
				failed++
			}
		}
	}
	rate := 0.0
	if recent > 0 {
		rate = float64(failed) / float64(recent)
	}

	status := types.StatusHealthy
	switch {
	case m.consecutiveErrors >= degradedConsecutiveMin:
		status = types.StatusDegraded
	case rate > errorRateThreshold:
		status = types.StatusWarning
	case m.recoveryAttempts > 0:
		status = types.StatusRecovering
	}

	return types.HealthSnapshot{
		Status:            status,
		UptimeSeconds:     now.Sub(m.startTime).Seconds(),
		ConsecutiveErrors: m.consecutiveErrors,
		ErrorRate5Min:     rate,
		RecoveryAttempts:  m.recoveryAttempts,
		TotalRequests:     len(m.requests),
		RecentErrors:      len(m.errors),
		LastHeartbeat:     m.lastHeartbeat.Unix(),
	}
}
