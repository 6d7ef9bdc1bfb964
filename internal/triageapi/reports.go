package triageapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/wardwatch/internal/report"
)

type reportsResponse struct {
	Reports []report.Report `json:"reports"`
	Count   int             `json:"count"`
}

func (a *API) handleListReports(w http.ResponseWriter, _ *http.Request) {
	reports := a.svc.Reports()
	if reports == nil {
		reports = []report.Report{}
	}
	writeJSON(w, http.StatusOK, reportsResponse{Reports: reports, Count: len(reports)})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	reports, err := a.svc.Refresh(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if reports == nil {
		reports = []report.Report{}
	}
	writeJSON(w, http.StatusOK, reportsResponse{Reports: reports, Count: len(reports)})
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("wardwatch.report.id", id))

	result, err := a.svc.Verify(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("wardwatch.report.id", id))

	res, err := a.svc.Delete(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("wardwatch.delete.state", string(res.State)))

	status := http.StatusOK
	if !res.Deleted {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (a *API) handleDeletionState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, report.DeleteResult{ID: id, State: a.svc.DeletionState(id)})
}
