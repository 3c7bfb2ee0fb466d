package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsObserver_SessionMilestones(t *testing.T) {
	obs := NewMetricsObserver()

	startedBefore := testutil.ToFloat64(streamingStartedTotal)
	obs.SessionStarted("abc123def456")
	if got := testutil.ToFloat64(streamingStartedTotal) - startedBefore; got != 1 {
		t.Errorf("Expected started counter to increase by 1, got %v", got)
	}

	// Session totals belong to the handlers; the observer must not count
	// outcomes, only log them.
	totalsBefore := testutil.ToFloat64(sessionsTotal.WithLabelValues("streaming", "success")) +
		testutil.ToFloat64(sessionsTotal.WithLabelValues("streaming", "error"))
	obs.SessionFinished("abc123def456", nil)
	obs.SessionFinished("abc123def456", errors.New("upstream gone"))
	totalsAfter := testutil.ToFloat64(sessionsTotal.WithLabelValues("streaming", "success")) +
		testutil.ToFloat64(sessionsTotal.WithLabelValues("streaming", "error"))
	if totalsAfter != totalsBefore {
		t.Errorf("Expected session totals untouched by the observer, got %v to %v", totalsBefore, totalsAfter)
	}
}
