package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/wardwatch/internal/report"
)

// Notifier publishes a completed analysis.
type Notifier interface {
	Send(ctx context.Context, result *AnalysisResult) error
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Store         report.Store
	Collection    string
	Provider      Provider
	Notifier      Notifier // optional
	ConfirmWindow time.Duration
	Logger        log.Logger
	Hooks         Hooks
	Now           func() time.Time // optional clock for records without a dateTime
}

// Service is the business boundary for triage operations. It owns the working
// set of reports, the current analysis and its consultation session.
type Service struct {
	store      report.Store
	collection string
	normalizer *report.Normalizer
	reports    *report.WorkingSet
	analyzer   *Analyzer
	auditor    *Auditor
	provider   Provider
	deletion   *report.DeletionWorkflow
	notifier   Notifier
	hooks      Hooks
	logger     log.Logger

	mu        sync.Mutex
	analyzing bool
	verifying map[string]bool
	analysis  *AnalysisResult
	session   *Session
}

// NewService creates a triage service.
func NewService(c ServiceConfig) *Service {
	logger := c.Logger
	if logger == nil {
		logger = log.Nop()
	}
	window := c.ConfirmWindow
	if window <= 0 {
		window = report.DefaultConfirmWindow
	}
	s := &Service{
		store:      c.Store,
		collection: c.Collection,
		normalizer: report.NewNormalizerWithClock(c.Now),
		reports:    report.NewWorkingSet(),
		analyzer:   NewAnalyzer(c.Provider, logger, c.Hooks),
		auditor:    NewAuditor(c.Provider, logger, c.Hooks),
		provider:   c.Provider,
		notifier:   c.Notifier,
		hooks:      c.Hooks,
		logger:     logger,
		verifying:  make(map[string]bool),
	}
	s.deletion = report.NewDeletionWorkflow(c.Store, c.Collection, window, s.removeReport, logger)
	return s
}

// Refresh reloads the working set from the store. The previous set is replaced
// wholesale once the listing completes.
func (s *Service) Refresh(ctx context.Context) ([]report.Report, error) {
	recs, err := s.store.List(ctx, s.collection)
	if err != nil {
		s.logger.Error(ctx, err, "fetch reports failed", "collection", s.collection)
		return nil, fmt.Errorf("fetch reports: %w", err)
	}
	reports := s.normalizer.NormalizeAll(recs)
	s.reports.Replace(reports)
	s.hooks.workingSet(len(reports))
	s.logger.Info(ctx, "reports refreshed", "collection", s.collection, "count", len(reports))
	return reports, nil
}

// Reports returns the current working set.
func (s *Service) Reports() []report.Report {
	return s.reports.List()
}

// Report returns one report from the working set.
func (s *Service) Report(id string) (report.Report, bool) {
	return s.reports.Get(id)
}

// Analyze triages the working set. A non-empty result replaces the current
// analysis and starts a fresh consultation session; an empty outcome returns
// (nil, nil) and leaves both untouched. Only one analysis runs at a time.
// Cancelling ctx does not abort a call that has been issued.
func (s *Service) Analyze(ctx context.Context) (*AnalysisResult, error) {
	ctx = context.WithoutCancel(ctx)
	s.mu.Lock()
	if s.analyzing {
		s.mu.Unlock()
		s.hooks.analysis(OutcomeRejected, 0, time.Now())
		return nil, ErrAnalysisInProgress
	}
	s.analyzing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.analyzing = false
		s.mu.Unlock()
	}()

	start := time.Now()
	reports := s.reports.List()
	result, err := s.analyzer.Analyze(ctx, reports)
	if err != nil {
		s.hooks.analysis(outcomeOf(err), 0, start)
		return nil, err
	}
	if result == nil {
		s.hooks.analysis(OutcomeEmpty, 0, start)
		return nil, nil
	}

	session := NewSession(s.provider, reports, result, s.logger, s.hooks)

	s.mu.Lock()
	s.analysis = result
	s.session = session
	s.mu.Unlock()

	s.hooks.analysis(OutcomeOK, len(result.PrioritizedReports), start)

	if s.notifier != nil {
		go s.notify(ctx, result.clone())
	}
	return result.clone(), nil
}

func (s *Service) notify(ctx context.Context, result *AnalysisResult) {
	if err := s.notifier.Send(ctx, result); err != nil {
		s.logger.Error(ctx, err, "analysis notification failed", "analysis_id", result.ID)
	}
}

// Analysis returns the current analysis, if any.
func (s *Service) Analysis() (*AnalysisResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analysis == nil {
		return nil, false
	}
	return s.analysis.clone(), true
}

// Verify audits one report's image. Verifications for different reports may
// run concurrently; a second request for the same report while one is
// outstanding is rejected.
func (s *Service) Verify(ctx context.Context, id string) (*VerificationResult, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	r, ok := s.reports.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}

	s.mu.Lock()
	if s.verifying[id] {
		s.mu.Unlock()
		s.hooks.verification(OutcomeRejected, start)
		return nil, fmt.Errorf("%w %s", ErrVerificationInProgress, id)
	}
	s.verifying[id] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.verifying, id)
		s.mu.Unlock()
	}()

	result, err := s.auditor.Verify(ctx, r)
	s.hooks.verification(outcomeOf(err), start)
	return result, err
}

// Session returns the consultation session for the current analysis.
func (s *Service) Session() (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, s.session != nil
}

// Ask sends one operator turn to the current consultation session.
func (s *Service) Ask(ctx context.Context, text string) (string, error) {
	ctx = context.WithoutCancel(ctx)
	session, ok := s.Session()
	if !ok {
		return "", ErrNoSession
	}
	return session.Send(ctx, text)
}

// Delete advances the deletion workflow for id by one step. A store delete
// that has been issued runs to completion even if ctx is cancelled.
func (s *Service) Delete(ctx context.Context, id string) (report.DeleteResult, error) {
	ctx = context.WithoutCancel(ctx)
	res, err := s.deletion.Request(ctx, id)
	switch {
	case errors.Is(err, report.ErrPermissionDenied):
		s.hooks.deletion("denied")
	case errors.Is(err, report.ErrNoIdentifier), errors.Is(err, report.ErrDeleteInProgress):
		s.hooks.deletion(OutcomeRejected)
	case err != nil:
		s.hooks.deletion(OutcomeError)
	case res.Deleted:
		s.hooks.deletion("deleted")
	default:
		s.hooks.deletion(string(res.State))
	}
	return res, err
}

// DeletionState reports where id is in the deletion workflow.
func (s *Service) DeletionState(id string) report.DeleteState {
	return s.deletion.State(id)
}

func (s *Service) removeReport(id string) {
	if s.reports.Remove(id) {
		s.hooks.workingSet(s.reports.Len())
	}
}
