package triage

import (
	"context"
	"sync"

	"github.com/linnemanlabs/wardwatch/internal/report"
)

const testModel = "test-model-1"

// mockProvider returns preconfigured responses in sequence and records requests.
type mockProvider struct {
	mu        sync.Mutex
	responses []*LLMResponse
	errs      []error
	requests  []*LLMRequest
	callIdx   int

	// started is signalled on entry when set; the call then waits on release.
	started chan struct{}
	release chan struct{}
}

func (m *mockProvider) Send(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	m.mu.Lock()
	idx := m.callIdx
	m.callIdx++
	m.requests = append(m.requests, req)
	started, release := m.started, m.release
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return textResponse("fallback"), nil
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callIdx
}

func (m *mockProvider) request(i int) *LLMRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

func textResponse(text string) *LLMResponse {
	return &LLMResponse{
		Content:    []ContentBlock{{Type: BlockText, Text: text}},
		StopReason: StopEnd,
		Usage:      Usage{InputTokens: 120, OutputTokens: 40},
		Model:      testModel,
	}
}

func testReports() []report.Report {
	return []report.Report{
		{
			ID:              "r-pothole",
			Address:         "Jalan Reko, Kajang",
			DateTime:        "2026-03-01T08:00:00Z",
			Description:     "Deep pothole in the middle lane, cars swerving",
			Latitude:        3.007,
			Longitude:       101.797,
			TimestampString: "March 1, 2026 at 8:00:00 AM UTC",
		},
		{
			ID:          "r-fridge",
			Address:     "Unit 4-2, Block B",
			DateTime:    "2026-03-01T09:30:00Z",
			Description: "My refrigerator stopped working",
		},
	}
}

const validAnalysisJSON = `{
  "strategicOverview": "One road hazard needs immediate attention; one private matter.",
  "prioritizedReports": [
    {
      "reportId": "r-pothole",
      "severity": "Critical",
      "displayTitle": "Pothole on Jalan Reko",
      "actionPlan": "Cone off the lane and patch today.",
      "recommendedResource": "Road maintenance crew",
      "justification": "Road hazard with accident risk.",
      "isRelevant": true
    },
    {
      "reportId": "r-fridge",
      "severity": "Low",
      "displayTitle": "Broken refrigerator",
      "actionPlan": "Advise the resident to contact a repair service.",
      "recommendedResource": "None",
      "justification": "Private appliance.",
      "isRelevant": false
    }
  ]
}`
