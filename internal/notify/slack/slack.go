// Package slack sends triage plan notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/wardwatch/internal/triage"
)

const (
	maxOverviewLen = 3000
	maxCriticalLen = 2800
	httpTimeout    = 10 * time.Second
)

// Notifier sends analysis results to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Send posts an analysis summary to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, result *triage.AnalysisResult) error {
	if n.webhookURL == "" || result == nil {
		return nil
	}

	msg := buildMessage(result)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "analysis posted to slack", "analysis_id", result.ID)
	return nil
}

func buildMessage(r *triage.AnalysisResult) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(r),
			{"type": "divider"},
			fieldsBlock(r),
			{"type": "divider"},
			overviewBlock(r),
			criticalBlock(r),
			contextBlock(r),
		},
	}
}

func headerBlock(r *triage.AnalysisResult) map[string]any {
	critical := len(r.Critical())
	text := fmt.Sprintf("%s Triage Plan: %d reports", planEmoji(critical), len(r.PrioritizedReports))
	if critical > 0 {
		text += fmt.Sprintf(", %d critical", critical)
	}

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(r *triage.AnalysisResult) map[string]any {
	counts := make(map[triage.Severity]int)
	var outside int
	for _, it := range r.PrioritizedReports {
		if !it.IsRelevant {
			outside++
			continue
		}
		counts[it.Severity]++
	}

	fields := make([]map[string]any, 0, len(triage.Severities)+2)
	for _, s := range triage.Severities {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*%s:* %d", s, counts[s]),
		})
	}
	fields = append(fields,
		map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Outside jurisdiction:* %d", outside),
		},
		map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Model:* %s", shortModel(r.Model)),
		},
	)

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func overviewBlock(r *triage.AnalysisResult) map[string]any {
	text := truncate(r.StrategicOverview, maxOverviewLen)
	if text == "" {
		text = "_No overview available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Overview*\n\n%s", text),
		},
	}
}

func criticalBlock(r *triage.AnalysisResult) map[string]any {
	var b strings.Builder
	for _, it := range r.Critical() {
		fmt.Fprintf(&b, "• *%s* (%s)\n%s\n_Dispatch:_ %s\n", it.DisplayTitle, it.ReportID, it.ActionPlan, it.RecommendedResource)
	}
	text := truncate(b.String(), maxCriticalLen)
	if text == "" {
		text = "_No critical reports._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Critical*\n\n%s", text),
		},
	}
}

func contextBlock(r *triage.AnalysisResult) map[string]any {
	ts := r.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("wardwatch • analysis %s • %s", r.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func planEmoji(critical int) string {
	if critical > 0 {
		return "\U0001f534" // red circle
	}
	return "\U0001f7e2" // green circle
}

// dateModelRe matches model names ending with a YYYYMMDD date suffix.
var dateModelRe = regexp.MustCompile(`-\d{8}$`)

func shortModel(model string) string {
	return dateModelRe.ReplaceAllString(model, "")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
