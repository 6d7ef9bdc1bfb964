package triage

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsHooks(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h := m.Hooks()

	h.OnLLMCall(OpAnalyze, 100, 20, 1.5)
	h.OnLLMCall(OpChat, 10, 5, 0.5)
	h.OnAnalysis(OutcomeOK, 4, 1.5)
	h.OnAnalysis(OutcomeRejected, 0, 0)
	h.OnVerification(OutcomeMalformed, 0.8)
	h.OnChatTurn(OutcomeOK, 0.5)
	h.OnDeletion("confirming")
	h.OnWorkingSet(7)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"llm calls analyze", testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues(OpAnalyze)), 1},
		{"llm tokens in analyze", testutil.ToFloat64(m.LLMTokensIn.WithLabelValues(OpAnalyze)), 100},
		{"llm tokens out chat", testutil.ToFloat64(m.LLMTokensOut.WithLabelValues(OpChat)), 5},
		{"analyses ok", testutil.ToFloat64(m.AnalysesTotal.WithLabelValues(OutcomeOK)), 1},
		{"analyses rejected", testutil.ToFloat64(m.AnalysesTotal.WithLabelValues(OutcomeRejected)), 1},
		{"verifications malformed", testutil.ToFloat64(m.VerificationsTotal.WithLabelValues(OutcomeMalformed)), 1},
		{"chat turns ok", testutil.ToFloat64(m.ChatTurnsTotal.WithLabelValues(OutcomeOK)), 1},
		{"deletions confirming", testutil.ToFloat64(m.DeletionsTotal.WithLabelValues("confirming")), 1},
		{"working set", testutil.ToFloat64(m.WorkingSetReports), 7},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(m.AnalysisDuration); n != 1 {
		t.Errorf("analysis duration series = %d, want 1", n)
	}
}

func TestOutcomeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{ErrEmptyResponse, OutcomeEmpty},
		{ErrMalformedResponse, OutcomeMalformed},
		{ErrNoImage, OutcomeRejected},
		{ErrTurnInProgress, OutcomeRejected},
		{ErrProviderUnavailable, OutcomeError},
	}
	for _, tt := range tests {
		if got := outcomeOf(tt.err); got != tt.want {
			t.Errorf("outcomeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
