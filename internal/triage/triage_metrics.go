package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	AnalysesTotal      *prometheus.CounterVec
	AnalysisDuration   prometheus.Histogram
	AnalysisItems      prometheus.Histogram
	VerificationsTotal *prometheus.CounterVec
	VerifyDuration     prometheus.Histogram
	ChatTurnsTotal     *prometheus.CounterVec
	ChatDuration       prometheus.Histogram
	DeletionsTotal     *prometheus.CounterVec
	WorkingSetReports  prometheus.Gauge
	LLMCallsTotal      *prometheus.CounterVec
	LLMTokensIn        *prometheus.CounterVec
	LLMTokensOut       *prometheus.CounterVec
	LLMDuration        *prometheus.HistogramVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_analyses_total",
			Help: "Total batch analyses by outcome.",
		}, []string{"outcome"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wardwatch_analysis_duration_seconds",
			Help:    "Duration of batch analyses in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}),
		AnalysisItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wardwatch_analysis_items",
			Help:    "Verdicts per successful analysis.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 .. 512
		}),
		VerificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_verifications_total",
			Help: "Total image verifications by outcome.",
		}, []string{"outcome"}),
		VerifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wardwatch_verification_duration_seconds",
			Help:    "Duration of image verifications in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 0.25s .. 64s
		}),
		ChatTurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_chat_turns_total",
			Help: "Total consultation turns by outcome.",
		}, []string{"outcome"}),
		ChatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wardwatch_chat_turn_duration_seconds",
			Help:    "Duration of consultation turns in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 0.25s .. 64s
		}),
		DeletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_deletion_requests_total",
			Help: "Deletion workflow requests by resulting step.",
		}, []string{"result"}),
		WorkingSetReports: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wardwatch_working_set_reports",
			Help: "Reports currently held in the working set.",
		}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_llm_calls_total",
			Help: "Total LLM provider calls by operation.",
		}, []string{"op"}),
		LLMTokensIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed by operation.",
		}, []string{"op"}),
		LLMTokensOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed by operation.",
		}, []string{"op"}),
		LLMDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wardwatch_llm_call_duration_seconds",
			Help:    "Duration of individual LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.AnalysisItems,
		m.VerificationsTotal,
		m.VerifyDuration,
		m.ChatTurnsTotal,
		m.ChatDuration,
		m.DeletionsTotal,
		m.WorkingSetReports,
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
		m.LLMDuration,
	)

	return m
}

// Hooks returns Hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnLLMCall: func(op string, inputTokens, outputTokens int, duration float64) {
			m.LLMCallsTotal.WithLabelValues(op).Inc()
			m.LLMTokensIn.WithLabelValues(op).Add(float64(inputTokens))
			m.LLMTokensOut.WithLabelValues(op).Add(float64(outputTokens))
			m.LLMDuration.WithLabelValues(op).Observe(duration)
		},
		OnAnalysis: func(outcome string, items int, duration float64) {
			m.AnalysesTotal.WithLabelValues(outcome).Inc()
			if outcome == OutcomeRejected {
				return
			}
			m.AnalysisDuration.Observe(duration)
			if outcome == OutcomeOK {
				m.AnalysisItems.Observe(float64(items))
			}
		},
		OnVerification: func(outcome string, duration float64) {
			m.VerificationsTotal.WithLabelValues(outcome).Inc()
			if outcome != OutcomeRejected {
				m.VerifyDuration.Observe(duration)
			}
		},
		OnChatTurn: func(outcome string, duration float64) {
			m.ChatTurnsTotal.WithLabelValues(outcome).Inc()
			m.ChatDuration.Observe(duration)
		},
		OnDeletion: func(result string) {
			m.DeletionsTotal.WithLabelValues(result).Inc()
		},
		OnWorkingSet: func(size int) {
			m.WorkingSetReports.Set(float64(size))
		},
	}
}
