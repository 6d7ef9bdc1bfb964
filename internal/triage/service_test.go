package triage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/wardwatch/internal/report"
	"github.com/linnemanlabs/wardwatch/internal/report/memstore"
)

const testCollection = "reports"

func seededStore() *memstore.Store {
	st := memstore.New()
	st.Put(testCollection, report.RawRecord{ID: "r-pothole", Fields: map[string]any{
		"address":     "Jalan Reko, Kajang",
		"description": "Deep pothole in the middle lane, cars swerving",
		"latitude":    "3.007",
		"longitude":   "101.797",
		"imageBase64": "data:image/png;base64," + testImagePayload,
		"timestamp":   "March 1, 2026 at 8:00:00 AM UTC",
	}})
	st.Put(testCollection, report.RawRecord{ID: "r-fridge", Fields: map[string]any{
		"address":     "Unit 4-2, Block B",
		"description": "My refrigerator stopped working",
		"imageBase64": "...",
	}})
	return st
}

func newTestService(t *testing.T, store report.Store, provider Provider, notifier Notifier) *Service {
	t.Helper()
	return NewService(ServiceConfig{
		Store:         store,
		Collection:    testCollection,
		Provider:      provider,
		Notifier:      notifier,
		ConfirmWindow: time.Minute,
		Logger:        log.Nop(),
	})
}

type failingStore struct{ err error }

func (f failingStore) List(context.Context, string) ([]report.RawRecord, error) { return nil, f.err }
func (f failingStore) Delete(context.Context, string, string) error            { return f.err }

type chanNotifier struct{ got chan *AnalysisResult }

func (n chanNotifier) Send(_ context.Context, r *AnalysisResult) error {
	n.got <- r
	return nil
}

func TestService_Refresh(t *testing.T) {
	t.Parallel()

	var sizes []int
	svc := NewService(ServiceConfig{
		Store:      seededStore(),
		Collection: testCollection,
		Provider:   &mockProvider{},
		Hooks:      Hooks{OnWorkingSet: func(n int) { sizes = append(sizes, n) }},
	})

	got, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(got) != 2 || len(svc.Reports()) != 2 {
		t.Fatalf("reports = %d, want 2", len(got))
	}
	r, ok := svc.Report("r-pothole")
	if !ok {
		t.Fatal("r-pothole missing from working set")
	}
	if r.Latitude != 3.007 || r.Longitude != 101.797 {
		t.Errorf("coords = %v,%v", r.Latitude, r.Longitude)
	}
	fridge, _ := svc.Report("r-fridge")
	if fridge.ImageData != "" {
		t.Errorf("placeholder image should normalize to empty, got %q", fridge.ImageData)
	}
	if len(sizes) != 1 || sizes[0] != 2 {
		t.Errorf("working set hook = %v, want [2]", sizes)
	}
}

func TestService_RefreshStoreFailure(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("unavailable")
	svc := newTestService(t, failingStore{err: storeErr}, &mockProvider{}, nil)

	if _, err := svc.Refresh(context.Background()); !errors.Is(err, storeErr) {
		t.Fatalf("Refresh() error = %v, want %v", err, storeErr)
	}
}

func TestService_AnalyzeEmptyWorkingSet(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{}
	svc := newTestService(t, memstore.New(), provider, nil)

	got, err := svc.Analyze(context.Background())
	if err != nil || got != nil {
		t.Fatalf("Analyze() = %v, %v; want nil, nil", got, err)
	}
	if _, ok := svc.Session(); ok {
		t.Error("no session should exist after an empty analysis")
	}
	if provider.calls() != 0 {
		t.Errorf("provider calls = %d, want 0", provider.calls())
	}
}

func TestService_AnalyzeReplacesSession(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{responses: []*LLMResponse{
		textResponse(validAnalysisJSON),
		textResponse("Pothole first."),
		textResponse(validAnalysisJSON),
	}}
	notified := chanNotifier{got: make(chan *AnalysisResult, 2)}
	svc := newTestService(t, seededStore(), provider, notified)
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Ask(context.Background(), "hello"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Ask() before analysis error = %v, want ErrNoSession", err)
	}

	first, err := svc.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	s1, ok := svc.Session()
	if !ok || s1.AnalysisID() != first.ID {
		t.Fatalf("session not bound to first analysis")
	}
	if reply, err := svc.Ask(context.Background(), "Who goes first?"); err != nil || reply != "Pothole first." {
		t.Fatalf("Ask() = %q, %v", reply, err)
	}

	select {
	case n := <-notified.got:
		if n.ID != first.ID {
			t.Errorf("notified analysis = %q, want %q", n.ID, first.ID)
		}
	case <-time.After(time.Second):
		t.Error("notifier was not called")
	}

	second, err := svc.Analyze(context.Background())
	if err != nil {
		t.Fatalf("second Analyze() error = %v", err)
	}
	s2, _ := svc.Session()
	if s2.ID() == s1.ID() || s2.AnalysisID() != second.ID {
		t.Error("a new analysis must create a new session bound to it")
	}
	if len(s2.Messages()) != 0 {
		t.Error("new session should start with an empty log")
	}
	if cur, _ := svc.Analysis(); cur.ID != second.ID {
		t.Errorf("current analysis = %q, want %q", cur.ID, second.ID)
	}
}

func TestService_EmptyOutcomeKeepsPrevious(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{responses: []*LLMResponse{
		textResponse(validAnalysisJSON),
		{Model: testModel},
	}}
	svc := newTestService(t, seededStore(), provider, nil)
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	first, err := svc.Analyze(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s1, _ := svc.Session()

	got, err := svc.Analyze(context.Background())
	if err != nil || got != nil {
		t.Fatalf("Analyze() = %v, %v; want nil, nil", got, err)
	}
	cur, ok := svc.Analysis()
	if !ok || cur.ID != first.ID {
		t.Error("empty outcome must keep the previous analysis")
	}
	if s, _ := svc.Session(); s != s1 {
		t.Error("empty outcome must keep the previous session")
	}
}

func TestService_AnalyzeSingleFlight(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		responses: []*LLMResponse{textResponse(validAnalysisJSON)},
		started:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	svc := newTestService(t, seededStore(), provider, nil)
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Analyze(context.Background())
		done <- err
	}()
	<-provider.started

	if _, err := svc.Analyze(context.Background()); !errors.Is(err, ErrAnalysisInProgress) {
		t.Errorf("concurrent Analyze() error = %v, want ErrAnalysisInProgress", err)
	}
	close(provider.release)
	if err := <-done; err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
}

func TestService_Verify(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{responses: []*LLMResponse{
		textResponse(`{"matchesDescription": true, "isRelevant": true, "findings": ["a", "b", "c"]}`),
	}}
	svc := newTestService(t, seededStore(), provider, nil)
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Verify(context.Background(), "r-missing"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("Verify(missing) error = %v, want ErrReportNotFound", err)
	}
	if _, err := svc.Verify(context.Background(), "r-fridge"); !errors.Is(err, ErrNoImage) {
		t.Errorf("Verify(no image) error = %v, want ErrNoImage", err)
	}
	got, err := svc.Verify(context.Background(), "r-pothole")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !got.MatchesDescription {
		t.Error("expected match")
	}
	if provider.calls() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls())
	}
}

func TestService_VerifySingleFlightPerReport(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		responses: []*LLMResponse{textResponse(`{"matchesDescription": true, "isRelevant": true, "findings": []}`)},
		started:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	svc := newTestService(t, seededStore(), provider, nil)
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Verify(context.Background(), "r-pothole")
		done <- err
	}()
	<-provider.started

	if _, err := svc.Verify(context.Background(), "r-pothole"); !errors.Is(err, ErrVerificationInProgress) {
		t.Errorf("concurrent Verify() error = %v, want ErrVerificationInProgress", err)
	}
	close(provider.release)
	if err := <-done; err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestService_DeleteFlow(t *testing.T) {
	t.Parallel()

	st := seededStore()
	var mu sync.Mutex
	var results []string
	svc := NewService(ServiceConfig{
		Store:         st,
		Collection:    testCollection,
		Provider:      &mockProvider{},
		ConfirmWindow: time.Minute,
		Hooks: Hooks{OnDeletion: func(r string) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}},
	})
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Delete(context.Background(), "r-fridge")
	if err != nil || res.State != report.DeleteConfirming {
		t.Fatalf("first Delete() = %+v, %v; want confirming", res, err)
	}
	if svc.DeletionState("r-fridge") != report.DeleteConfirming {
		t.Error("state should be confirming")
	}
	if _, ok := svc.Report("r-fridge"); !ok {
		t.Error("report must stay until confirmed")
	}

	res, err = svc.Delete(context.Background(), "r-fridge")
	if err != nil || !res.Deleted {
		t.Fatalf("second Delete() = %+v, %v; want deleted", res, err)
	}
	if _, ok := svc.Report("r-fridge"); ok {
		t.Error("report should be removed from the working set")
	}
	if svc.DeletionState("r-fridge") != report.DeleteIdle {
		t.Error("state should return to idle")
	}
	recs, _ := st.List(context.Background(), testCollection)
	if len(recs) != 1 {
		t.Errorf("store documents = %d, want 1", len(recs))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 2 || results[0] != "confirming" || results[1] != "deleted" {
		t.Errorf("deletion hook results = %v", results)
	}
}

func TestService_DeletePermissionDenied(t *testing.T) {
	t.Parallel()

	st := seededStore()
	st.Deny(testCollection, "r-pothole")
	svc := newTestService(t, st, &mockProvider{}, nil)
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Delete(context.Background(), "r-pothole"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Delete(context.Background(), "r-pothole")
	if !errors.Is(err, report.ErrPermissionDenied) {
		t.Fatalf("Delete() error = %v, want ErrPermissionDenied", err)
	}
	if _, ok := svc.Report("r-pothole"); !ok {
		t.Error("report must remain after a failed delete")
	}
}

func TestService_RefreshWithPinnedClock(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 3, 2, 7, 15, 0, 0, time.UTC)
	svc := NewService(ServiceConfig{
		Store:      seededStore(),
		Collection: testCollection,
		Provider:   &mockProvider{},
		Now:        func() time.Time { return fixed },
	})

	first, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	second, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("refresh sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("report %d changed between refreshes:\n%+v\n%+v", i, first[i], second[i])
		}
	}
	fridge, _ := svc.Report("r-fridge")
	if want := "2026-03-02T07:15:00Z"; fridge.DateTime != want {
		t.Errorf("dateTime = %q, want %q", fridge.DateTime, want)
	}
}

// blockingStore holds Delete until release is closed or ctx is done, and
// reports the ctx error it observed.
type blockingStore struct {
	*memstore.Store
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (b *blockingStore) Delete(ctx context.Context, collection, id string) error {
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	b.ctxErr <- ctx.Err()
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.Store.Delete(ctx, collection, id)
}

func TestService_DeleteSurvivesCallerCancel(t *testing.T) {
	t.Parallel()

	st := &blockingStore{
		Store:   seededStore(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	svc := newTestService(t, st, &mockProvider{}, nil)
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Delete(context.Background(), "r-pothole"); err != nil {
		t.Fatalf("first Delete() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		res report.DeleteResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := svc.Delete(ctx, "r-pothole")
		done <- outcome{res, err}
	}()

	<-st.started
	cancel()
	close(st.release)

	got := <-done
	if got.err != nil {
		t.Fatalf("confirming Delete() error = %v", got.err)
	}
	if !got.res.Deleted {
		t.Errorf("Delete() = %+v, want deleted", got.res)
	}
	if err := <-st.ctxErr; err != nil {
		t.Errorf("store saw ctx error %v, want nil", err)
	}
	if _, ok := svc.Report("r-pothole"); ok {
		t.Error("report should be removed after the store confirmed the delete")
	}
}

func TestService_AnalyzeSurvivesCallerCancel(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		responses: []*LLMResponse{textResponse(validAnalysisJSON)},
		started:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	svc := newTestService(t, seededStore(), provider, nil)
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Analyze(ctx)
		done <- err
	}()

	<-provider.started
	cancel()
	close(provider.release)

	if err := <-done; err != nil {
		t.Fatalf("Analyze() error = %v, want nil", err)
	}
	if _, ok := svc.Analysis(); !ok {
		t.Error("analysis should be stored after the provider answered")
	}
}
