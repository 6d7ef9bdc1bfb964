package triage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/wardwatch/internal/report"
)

// ChatTokens caps the model's reply for one consultation turn.
const ChatTokens = 2048

// Session is a follow-up dialogue bound to one analysis snapshot. Its message
// log is append-only and replayed to the provider on every turn.
type Session struct {
	id         string
	analysisID string
	system     string
	provider   Provider
	logger     log.Logger
	hooks      Hooks
	now        func() time.Time

	mu       sync.Mutex
	messages []ChatMessage
	pending  bool
}

// NewSession grounds a new session on reports and analysis.
func NewSession(provider Provider, reports []report.Report, analysis *AnalysisResult, logger log.Logger, hooks Hooks) *Session {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Session{
		id:       ulid.Make().String(),
		system:   buildSystemInstruction(reports, analysis),
		provider: provider,
		hooks:    hooks,
		now:      time.Now,
	}
	if analysis != nil {
		s.analysisID = analysis.ID
	}
	s.logger = logger.With("session_id", s.id, "analysis_id", s.analysisID)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// AnalysisID returns the id of the analysis the session is grounded on.
func (s *Session) AnalysisID() string { return s.analysisID }

// SystemInstruction returns the grounding text sent with every turn.
func (s *Session) SystemInstruction() string { return s.system }

// Messages returns a copy of the conversation so far.
func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Send appends the operator's message, asks the provider, and appends the
// reply. On failure the operator's message stays in the log and no reply is
// recorded. Only one turn may be outstanding at a time.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return "", ErrTurnInProgress
	}
	s.pending = true
	s.messages = append(s.messages, ChatMessage{Role: RoleUser, Text: text, Timestamp: s.now().UTC()})
	history := toMessages(s.messages)
	turn := len(s.messages)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pending = false
		s.mu.Unlock()
	}()

	ctx, span := tracer.Start(ctx, "triage.chat", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", OpChat),
		attribute.String("wardwatch.session.id", s.id),
		attribute.Int("wardwatch.chat.seq", turn),
	))
	defer span.End()

	start := time.Now()
	resp, err := s.provider.Send(ctx, &LLMRequest{
		MaxTokens: ChatTokens,
		System:    s.system,
		Messages:  history,
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error(ctx, err, "consultation turn failed", "turn", turn)
		s.hooks.chatTurn(OutcomeError, start)
		return "", err
	}
	s.hooks.llmCall(OpChat, resp, start)

	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		s.hooks.chatTurn(OutcomeEmpty, start)
		return "", ErrEmptyResponse
	}

	s.mu.Lock()
	s.messages = append(s.messages, ChatMessage{Role: RoleModel, Text: reply, Timestamp: s.now().UTC()})
	s.mu.Unlock()

	s.hooks.chatTurn(OutcomeOK, start)
	s.logger.Info(ctx, "consultation turn complete",
		"turn", turn,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return reply, nil
}

func toMessages(msgs []ChatMessage) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = TextMessage(m.Role, m.Text)
	}
	return out
}

func buildSystemInstruction(reports []report.Report, analysis *AnalysisResult) string {
	var b strings.Builder
	b.WriteString("You are a municipal operations advisor. Answer the operator's questions about the triage plan below. ")
	b.WriteString("Base every answer on these reports and this analysis only.\n\n")
	if analysis != nil {
		fmt.Fprintf(&b, "Strategic overview: %s\n\n", analysis.StrategicOverview)
	}
	b.WriteString("Reports:\n")
	for _, r := range reports {
		severity, relevant := "N/A", "N/A"
		if it, ok := analysis.Item(r.ID); ok {
			severity = string(it.Severity)
			relevant = strconv.FormatBool(it.IsRelevant)
		}
		fmt.Fprintf(&b, "- ID: %s | Location: %s | Description: %s | Severity: %s | Relevant: %s\n",
			r.ID, r.Address, r.Description, severity, relevant)
	}
	return b.String()
}
