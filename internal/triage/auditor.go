package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/wardwatch/internal/report"
)

// VerificationTokens caps the model's reply for one image audit.
const VerificationTokens = 1024

// VerificationSchema is the output contract of an image audit.
var VerificationSchema = &Schema{
	Name:        "report_verification",
	Description: "Whether the photo supports the written report.",
	Fields: []Field{
		{Name: "matchesDescription", Type: TypeBoolean, Description: "True when the image visually confirms the description."},
		{Name: "isRelevant", Type: TypeBoolean, Description: "True when the issue falls under municipal authority."},
		{Name: "findings", Type: TypeArray, Description: "Exactly three short observations about the image.", Items: &Field{Type: TypeString}},
	},
}

// Auditor checks a report's photo against its description.
type Auditor struct {
	provider Provider
	logger   log.Logger
	hooks    Hooks
	now      func() time.Time
}

// NewAuditor creates an auditor backed by provider.
func NewAuditor(provider Provider, logger log.Logger, hooks Hooks) *Auditor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Auditor{provider: provider, logger: logger, hooks: hooks, now: time.Now}
}

// Verify audits one report. It fails with ErrNoImage before any provider call
// when the report carries no usable image.
func (a *Auditor) Verify(ctx context.Context, r report.Report) (*VerificationResult, error) {
	if len(r.ImageData) < minImageDataLen {
		return nil, ErrNoImage
	}
	mediaType, payload := ParseImageData(r.ImageData)
	if strings.TrimSpace(payload) == "" {
		return nil, ErrNoImage
	}

	ctx, span := tracer.Start(ctx, "triage.verify", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", OpVerify),
		attribute.String("wardwatch.report.id", r.ID),
		attribute.String("wardwatch.image.media_type", mediaType),
		attribute.Int("wardwatch.image.bytes", len(payload)),
	))
	defer span.End()

	L := a.logger.With("report_id", r.ID)

	start := time.Now()
	resp, err := a.provider.Send(ctx, &LLMRequest{
		MaxTokens: VerificationTokens,
		Messages: []Message{{
			Role: RoleUser,
			Content: []ContentBlock{
				{Type: BlockImage, MediaType: mediaType, Data: payload},
				{Type: BlockText, Text: buildVerificationPrompt(r)},
			},
		}},
		Schema: VerificationSchema,
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		L.Error(ctx, err, "verification request failed")
		return nil, err
	}
	a.hooks.llmCall(OpVerify, resp, start)
	span.SetAttributes(attribute.String("gen_ai.response.model", resp.Model))

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return nil, ErrEmptyResponse
	}

	var result VerificationResult
	if err := VerificationSchema.Decode([]byte(raw), &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if result.Findings == nil {
		result.Findings = []string{}
	}
	result.ReportID = r.ID
	result.Model = resp.Model
	result.CheckedAt = a.now().UTC()

	span.SetAttributes(
		attribute.Bool("wardwatch.verification.matches", result.MatchesDescription),
		attribute.Bool("wardwatch.verification.relevant", result.IsRelevant),
	)
	L.Info(ctx, "verification complete",
		"matches", result.MatchesDescription,
		"relevant", result.IsRelevant,
		"findings", len(result.Findings),
	)
	return &result, nil
}

func buildVerificationPrompt(r report.Report) string {
	return fmt.Sprintf(`Audit the attached photo of a citizen report.

Report description: %q

1. State whether the image visually confirms the description (matchesDescription).
2. %s
3. Give exactly three concise observations about what the image shows (findings).`,
		r.Description, jurisdictionRule)
}
