package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/wardwatch/internal/report"
)

var tracer = otel.Tracer("github.com/linnemanlabs/wardwatch/internal/triage")

// AnalysisTokens caps the model's reply for one batch analysis.
const AnalysisTokens = 8192

// jurisdictionRule is shared by the analyzer and the auditor so both classify
// relevance the same way.
const jurisdictionRule = `Jurisdiction: mark a report as NOT relevant (isRelevant=false) when it is a private or civil matter outside municipal authority, such as a broken private appliance, an interpersonal dispute, or a problem inside private property. Mark it relevant (isRelevant=true) when it concerns public infrastructure or public safety: roads, drainage, public safety hazards, streetlights, waste collection, public trees.`

// AnalysisSchema is the output contract of a triage pass.
var AnalysisSchema = &Schema{
	Name:        "triage_analysis",
	Description: "Strategic overview and per-report triage verdicts.",
	Fields: []Field{
		{Name: "strategicOverview", Type: TypeString, Description: "Two or three sentence summary of the overall situation."},
		{Name: "prioritizedReports", Type: TypeArray, Description: "One verdict per report, most urgent first.", Items: &Field{
			Type: TypeObject,
			Fields: []Field{
				{Name: "reportId", Type: TypeString, Description: "Id of the report this verdict is for."},
				{Name: "severity", Type: TypeString, Enum: severityNames()},
				{Name: "displayTitle", Type: TypeString, Description: "Short title for the issue."},
				{Name: "actionPlan", Type: TypeString, Description: "Concrete next steps for the responding crew."},
				{Name: "recommendedResource", Type: TypeString, Description: "Department or crew to dispatch."},
				{Name: "justification", Type: TypeString, Description: "Why this severity and relevance were chosen."},
				{Name: "isRelevant", Type: TypeBoolean, Description: "True when the issue falls under municipal authority."},
			},
		}},
	},
}

func severityNames() []string {
	out := make([]string, len(Severities))
	for i, s := range Severities {
		out[i] = string(s)
	}
	return out
}

// analysisWire holds only the fields AnalysisSchema defines, so extra keys in
// a reply cannot collide with server-assigned fields of AnalysisResult.
type analysisWire struct {
	StrategicOverview  string         `json:"strategicOverview"`
	PrioritizedReports []SolutionItem `json:"prioritizedReports"`
}

// Analyzer runs batch triage over a set of reports.
type Analyzer struct {
	provider Provider
	logger   log.Logger
	hooks    Hooks
	now      func() time.Time
}

// NewAnalyzer creates an analyzer backed by provider.
func NewAnalyzer(provider Provider, logger log.Logger, hooks Hooks) *Analyzer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Analyzer{provider: provider, logger: logger, hooks: hooks, now: time.Now}
}

// Analyze classifies reports and returns the prioritized plan. It returns
// (nil, nil) when reports is empty or the model produced no output.
func (a *Analyzer) Analyze(ctx context.Context, reports []report.Report) (*AnalysisResult, error) {
	if len(reports) == 0 {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "triage.analyze", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", OpAnalyze),
		attribute.Int("wardwatch.reports", len(reports)),
	))
	defer span.End()

	start := time.Now()
	resp, err := a.provider.Send(ctx, &LLMRequest{
		MaxTokens: AnalysisTokens,
		System:    analysisSystemPrompt,
		Messages:  []Message{TextMessage(RoleUser, buildAnalysisPrompt(reports))},
		Schema:    AnalysisSchema,
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Error(ctx, err, "analysis request failed", "reports", len(reports))
		return nil, err
	}
	a.hooks.llmCall(OpAnalyze, resp, start)
	span.SetAttributes(
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		a.logger.Warn(ctx, "analysis returned no output", "stop_reason", resp.StopReason)
		span.SetAttributes(attribute.Bool("wardwatch.empty", true))
		return nil, nil
	}

	var wire analysisWire
	if err := AnalysisSchema.Decode([]byte(raw), &wire); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	result := AnalysisResult{
		StrategicOverview:  wire.StrategicOverview,
		PrioritizedReports: wire.PrioritizedReports,
	}
	if err := checkReferences(&result, reports); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result.ID = ulid.Make().String()
	result.Model = resp.Model
	result.CreatedAt = a.now().UTC()

	span.SetAttributes(
		attribute.String("wardwatch.analysis.id", result.ID),
		attribute.Int("wardwatch.analysis.items", len(result.PrioritizedReports)),
	)
	a.logger.Info(ctx, "analysis complete",
		"analysis_id", result.ID,
		"reports", len(reports),
		"items", len(result.PrioritizedReports),
		"critical", len(result.Critical()),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return &result, nil
}

// checkReferences rejects verdicts for reports that were not in the batch.
func checkReferences(result *AnalysisResult, reports []report.Report) error {
	known := make(map[string]struct{}, len(reports))
	for _, r := range reports {
		known[r.ID] = struct{}{}
	}
	for i, it := range result.PrioritizedReports {
		if _, ok := known[it.ReportID]; !ok {
			return fmt.Errorf("%w: prioritizedReports[%d]: unknown reportId %q", ErrMalformedResponse, i, it.ReportID)
		}
		if !it.Severity.Valid() {
			return fmt.Errorf("%w: prioritizedReports[%d]: invalid severity %q", ErrMalformedResponse, i, it.Severity)
		}
	}
	return nil
}

const analysisSystemPrompt = `You are a municipal operations dispatcher triaging citizen incident reports for a city council.
Answer only with the requested structured output.`

func buildAnalysisPrompt(reports []report.Report) string {
	var b strings.Builder
	b.WriteString("Analyze the following citizen reports and produce a prioritized action plan.\n\n")
	for _, r := range reports {
		fmt.Fprintf(&b, "Report ID: %s\nLocation: %s\nDescription: %s\nTime: %s\n---\n",
			r.ID, r.Address, r.Description, r.TimeLabel())
	}
	b.WriteString("\nRules:\n")
	b.WriteString("1. " + jurisdictionRule + "\n")
	b.WriteString("2. Severity must be Critical when the report describes a life-threatening condition, or a road obstruction or hazard with a real risk of accidents.\n")
	b.WriteString("3. Otherwise use High for major disruptions that are not life-threatening, Medium for functional nuisances, and Low for cosmetic or minor issues.\n")
	b.WriteString("4. Return exactly one verdict per report, using the report ids given above. Order verdicts from most to least urgent.\n")
	return b.String()
}
