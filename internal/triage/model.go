package triage

import "time"

// Severity is the triage priority of a report. Only meaningful when the report
// is relevant to municipal authority.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Severities lists the valid values in priority order.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Valid reports whether s is one of the four defined severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// SolutionItem is the analyzer's verdict for one report.
type SolutionItem struct {
	ReportID            string   `json:"reportId"`
	Severity            Severity `json:"severity"`
	DisplayTitle        string   `json:"displayTitle"`
	ActionPlan          string   `json:"actionPlan"`
	RecommendedResource string   `json:"recommendedResource"`
	Justification       string   `json:"justification"`
	IsRelevant          bool     `json:"isRelevant"`
}

// AnalysisResult is one triage pass. It is replaced wholesale by the next pass,
// never patched.
type AnalysisResult struct {
	ID                 string         `json:"id"`
	StrategicOverview  string         `json:"strategicOverview"`
	PrioritizedReports []SolutionItem `json:"prioritizedReports"`
	Model              string         `json:"model,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
}

// Item returns the verdict for reportID, if the analyzer produced one.
func (a *AnalysisResult) Item(reportID string) (SolutionItem, bool) {
	if a == nil {
		return SolutionItem{}, false
	}
	for _, it := range a.PrioritizedReports {
		if it.ReportID == reportID {
			return it, true
		}
	}
	return SolutionItem{}, false
}

// Critical returns the relevant items marked Critical, in analyzer order.
func (a *AnalysisResult) Critical() []SolutionItem {
	if a == nil {
		return nil
	}
	var out []SolutionItem
	for _, it := range a.PrioritizedReports {
		if it.IsRelevant && it.Severity == SeverityCritical {
			out = append(out, it)
		}
	}
	return out
}

func (a *AnalysisResult) clone() *AnalysisResult {
	cp := *a
	cp.PrioritizedReports = append([]SolutionItem(nil), a.PrioritizedReports...)
	return &cp
}

// VerificationResult is the audit verdict for one report's image.
type VerificationResult struct {
	ReportID           string    `json:"reportId"`
	MatchesDescription bool      `json:"matchesDescription"`
	IsRelevant         bool      `json:"isRelevant"`
	Findings           []string  `json:"findings"`
	Model              string    `json:"model,omitempty"`
	CheckedAt          time.Time `json:"checkedAt"`
}

// ChatMessage is one turn of a consultation.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}
