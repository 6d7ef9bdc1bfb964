package triageapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/wardwatch/internal/triage"
)

// analysisResponse wraps the analyzer outcome. Empty is set when the analyzer
// produced nothing for the batch.
type analysisResponse struct {
	Analysis *triage.AnalysisResult `json:"analysis"`
	Empty    bool                   `json:"empty,omitempty"`
	TryAgain bool                   `json:"try_again,omitempty"`
}

func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	result, err := a.svc.Analyze(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, analysisResponse{Empty: true, TryAgain: len(a.svc.Reports()) > 0})
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("wardwatch.analysis.id", result.ID))
	writeJSON(w, http.StatusOK, analysisResponse{Analysis: result})
}

func (a *API) handleGetAnalysis(w http.ResponseWriter, _ *http.Request) {
	result, ok := a.svc.Analysis()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no analysis yet"})
		return
	}
	writeJSON(w, http.StatusOK, analysisResponse{Analysis: result})
}

type consultationResponse struct {
	SessionID  string               `json:"sessionId"`
	AnalysisID string               `json:"analysisId"`
	Messages   []triage.ChatMessage `json:"messages"`
}

func (a *API) handleGetConsultation(w http.ResponseWriter, r *http.Request) {
	s, ok := a.svc.Session()
	if !ok {
		a.writeError(w, r, triage.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, consultationResponse{
		SessionID:  s.ID(),
		AnalysisID: s.AnalysisID(),
		Messages:   s.Messages(),
	})
}

type askRequest struct {
	Text string `json:"text"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

func (a *API) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid payload"})
		return
	}

	reply, err := a.svc.Ask(r.Context(), req.Text)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Reply: reply})
}
