// Package triageapi exposes the triage service over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/wardwatch/internal/report"
	"github.com/linnemanlabs/wardwatch/internal/triage"
)

// TriageService defines the business operations triageapi needs.
type TriageService interface {
	Refresh(ctx context.Context) ([]report.Report, error)
	Reports() []report.Report
	Analyze(ctx context.Context) (*triage.AnalysisResult, error)
	Analysis() (*triage.AnalysisResult, bool)
	Verify(ctx context.Context, id string) (*triage.VerificationResult, error)
	Session() (*triage.Session, bool)
	Ask(ctx context.Context, text string) (string, error)
	Delete(ctx context.Context, id string) (report.DeleteResult, error)
	DeletionState(id string) report.DeleteState
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/reports", a.handleListReports)
		r.Post("/reports/refresh", a.handleRefresh)
		r.Post("/reports/{id}/verify", a.handleVerify)
		r.Delete("/reports/{id}", a.handleDelete)
		r.Get("/reports/{id}/deletion", a.handleDeletionState)

		r.Get("/analysis", a.handleGetAnalysis)
		r.Post("/analysis", a.handleAnalyze)

		r.Get("/consultation", a.handleGetConsultation)
		r.Post("/consultation/messages", a.handleAsk)
	})
}

// errorBody is the JSON shape of every error response. Retry marks a
// collaborator failure worth repeating; TryAgain marks an unusable AI answer.
type errorBody struct {
	Error    string `json:"error"`
	Retry    bool   `json:"retry,omitempty"`
	TryAgain bool   `json:"try_again,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error onto a status code and body.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error(r.Context(), err, "request failed", "path", r.URL.Path, "status", status)
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	msg := err.Error()
	switch {
	case errors.Is(err, triage.ErrMalformedResponse), errors.Is(err, triage.ErrEmptyResponse):
		return http.StatusUnprocessableEntity, errorBody{Error: msg, TryAgain: true}
	case errors.Is(err, triage.ErrProviderUnavailable):
		return http.StatusBadGateway, errorBody{Error: msg, Retry: true}
	case errors.Is(err, report.ErrPermissionDenied):
		return http.StatusForbidden, errorBody{Error: msg}
	case errors.Is(err, triage.ErrAnalysisInProgress),
		errors.Is(err, triage.ErrVerificationInProgress),
		errors.Is(err, triage.ErrTurnInProgress),
		errors.Is(err, report.ErrDeleteInProgress):
		return http.StatusConflict, errorBody{Error: msg}
	case errors.Is(err, triage.ErrNoImage),
		errors.Is(err, triage.ErrEmptyMessage),
		errors.Is(err, report.ErrNoIdentifier):
		return http.StatusBadRequest, errorBody{Error: msg}
	case errors.Is(err, triage.ErrReportNotFound), errors.Is(err, triage.ErrNoSession):
		return http.StatusNotFound, errorBody{Error: msg}
	}
	return http.StatusBadGateway, errorBody{Error: msg, Retry: true}
}
