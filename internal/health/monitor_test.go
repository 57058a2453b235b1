package health

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"validd/pkg/types"
)

func newTestMonitor() *Monitor {
	return NewMonitor(zerolog.Nop())
}

func TestHealthyByDefault(t *testing.T) {
	m := newTestMonitor()
	s := m.Snapshot()
	if s.Status != types.StatusHealthy {
		t.Fatalf("status=%s", s.Status)
	}
	if s.ErrorRate5Min != 0.0 {
		t.Fatalf("empty window must yield rate 0.0, got %v", s.ErrorRate5Min)
	}
}

func TestConsecutiveFailuresTriggerRecoveryOnce(t *testing.T) {
	m := newTestMonitor()
	for i := 0; i < 4; i++ {
		m.RecordRequest(false, "boom")
		if got := m.Snapshot().RecoveryAttempts; got != 0 {
			t.Fatalf("recovery before threshold after %d failures: attempts=%d", i+1, got)
		}
	}
	m.RecordRequest(false, "boom")
	s := m.Snapshot()
	if s.RecoveryAttempts != 1 {
		t.Fatalf("expected exactly one recovery attempt, got %d", s.RecoveryAttempts)
	}
	if s.Status != types.StatusDegraded {
		t.Fatalf("expected degraded immediately after threshold, got %s", s.Status)
	}
	if s.ConsecutiveErrors != 5 {
		t.Fatalf("consecutive=%d", s.ConsecutiveErrors)
	}

	// A success resets the streak; attempts>0 now reads recovering.
	m.RecordRequest(true, "")
	s = m.Snapshot()
	if s.ConsecutiveErrors != 0 {
		t.Fatalf("success must reset consecutive errors, got %d", s.ConsecutiveErrors)
	}
	if s.Status != types.StatusRecovering {
		t.Fatalf("expected recovering after reset, got %s", s.Status)
	}
}

func TestRecoveryNotRetriggeredPastThreshold(t *testing.T) {
	m := newTestMonitor()
	for i := 0; i < 7; i++ {
		m.RecordRequest(false, "boom")
	}
	if got := m.Snapshot().RecoveryAttempts; got != 1 {
		t.Fatalf("expected one recovery for the streak, got %d", got)
	}
}

func TestRecoveryAttemptsBounded(t *testing.T) {
	m := newTestMonitor()
	for i := 0; i < maxRecoveryAttempts; i++ {
		if !m.AttemptRecovery() {
			t.Fatalf("attempt %d should succeed", i+1)
		}
	}
	if m.AttemptRecovery() {
		t.Fatalf("attempt past maximum should report failure")
	}
	if got := m.Snapshot().RecoveryAttempts; got != maxRecoveryAttempts {
		t.Fatalf("attempts=%d", got)
	}
}

func TestRequestWindowEviction(t *testing.T) {
	m := newTestMonitor()
	for i := 0; i < 150; i++ {
		m.RecordRequest(true, "")
	}
	if got := m.Snapshot().TotalRequests; got != maxRequestRecords {
		t.Fatalf("expected window capped at %d, got %d", maxRequestRecords, got)
	}
}

func TestErrorWindowEviction(t *testing.T) {
	m := newTestMonitor()
	for i := 0; i < 80; i++ {
		m.RecordRequest(false, fmt.Sprintf("err-%d", i))
		// keep the streak from pinning at the threshold forever
		m.RecordRequest(true, "")
	}
	if got := m.Snapshot().RecentErrors; got != maxErrorRecords {
		t.Fatalf("expected error window capped at %d, got %d", maxErrorRecords, got)
	}
}

func TestWarningOnErrorRate(t *testing.T) {
	m := newTestMonitor()
	// 2 failures out of 10 = 20% > 10% threshold, with no active streak.
	m.RecordRequest(false, "x")
	for i := 0; i < 4; i++ {
		m.RecordRequest(true, "")
	}
	m.RecordRequest(false, "x")
	for i := 0; i < 4; i++ {
		m.RecordRequest(true, "")
	}
	s := m.Snapshot()
	if s.Status != types.StatusWarning {
		t.Fatalf("expected warning, got %s (rate=%v)", s.Status, s.ErrorRate5Min)
	}
}

func TestErrorRateFiltersOldRecords(t *testing.T) {
	m := newTestMonitor()
	base := time.Now()
	m.now = func() time.Time { return base.Add(-10 * time.Minute) }
	m.RecordRequest(false, "old")
	m.RecordRequest(true, "")
	m.now = func() time.Time { return base }
	m.RecordRequest(true, "")
	s := m.Snapshot()
	if s.ErrorRate5Min != 0.0 {
		t.Fatalf("stale records must not count, rate=%v", s.ErrorRate5Min)
	}
}

func TestDegradedTakesPriority(t *testing.T) {
	m := newTestMonitor()
	m.RecordRequest(false, "a")
	m.RecordRequest(false, "b")
	m.RecordRequest(false, "c")
	s := m.Snapshot()
	if s.Status != types.StatusDegraded {
		t.Fatalf("expected degraded at 3 consecutive, got %s", s.Status)
	}
}
