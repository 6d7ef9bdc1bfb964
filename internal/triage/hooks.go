package triage

import (
	"errors"
	"time"
)

// Operation labels for LLM calls.
const (
	OpAnalyze = "analyze"
	OpVerify  = "verify"
	OpChat    = "chat"
)

// Outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeEmpty     = "empty"
	OutcomeMalformed = "malformed"
	OutcomeError     = "error"
	OutcomeRejected  = "rejected"
)

// Hooks are optional callbacks for observability. Nil fields are skipped.
type Hooks struct {
	OnLLMCall      func(op string, inputTokens, outputTokens int, duration float64)
	OnAnalysis     func(outcome string, items int, duration float64)
	OnVerification func(outcome string, duration float64)
	OnChatTurn     func(outcome string, duration float64)
	OnDeletion     func(outcome string)
	OnWorkingSet   func(size int)
}

func (h Hooks) llmCall(op string, resp *LLMResponse, start time.Time) {
	if h.OnLLMCall == nil || resp == nil {
		return
	}
	h.OnLLMCall(op, resp.Usage.InputTokens, resp.Usage.OutputTokens, time.Since(start).Seconds())
}

func (h Hooks) analysis(outcome string, items int, start time.Time) {
	if h.OnAnalysis != nil {
		h.OnAnalysis(outcome, items, time.Since(start).Seconds())
	}
}

func (h Hooks) verification(outcome string, start time.Time) {
	if h.OnVerification != nil {
		h.OnVerification(outcome, time.Since(start).Seconds())
	}
}

func (h Hooks) chatTurn(outcome string, start time.Time) {
	if h.OnChatTurn != nil {
		h.OnChatTurn(outcome, time.Since(start).Seconds())
	}
}

func (h Hooks) deletion(outcome string) {
	if h.OnDeletion != nil {
		h.OnDeletion(outcome)
	}
}

func (h Hooks) workingSet(size int) {
	if h.OnWorkingSet != nil {
		h.OnWorkingSet(size)
	}
}

// outcomeOf maps an operation error onto a metric label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrEmptyResponse):
		return OutcomeEmpty
	case errors.Is(err, ErrMalformedResponse):
		return OutcomeMalformed
	case errors.Is(err, ErrNoImage), errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrAnalysisInProgress), errors.Is(err, ErrVerificationInProgress),
		errors.Is(err, ErrTurnInProgress):
		return OutcomeRejected
	}
	return OutcomeError
}
