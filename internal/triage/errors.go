package triage

import "errors"

var (
	// ErrProviderUnavailable wraps any failure talking to the model service.
	ErrProviderUnavailable = errors.New("ai provider unavailable")

	// ErrMalformedResponse means a response was present but did not match its schema.
	ErrMalformedResponse = errors.New("ai provider returned malformed response")

	// ErrEmptyResponse means the provider answered with nothing where a value was required.
	ErrEmptyResponse = errors.New("ai provider returned empty response")

	// ErrNoImage rejects verification of a report without a usable image.
	ErrNoImage = errors.New("report has no valid image")

	// ErrEmptyMessage rejects an empty consultation turn.
	ErrEmptyMessage = errors.New("message text is required")

	// ErrAnalysisInProgress rejects an analysis while another is running.
	ErrAnalysisInProgress = errors.New("analysis already in progress")

	// ErrVerificationInProgress rejects a second verification of the same report.
	ErrVerificationInProgress = errors.New("verification already in progress for report")

	// ErrTurnInProgress rejects a consultation turn while a reply is pending.
	ErrTurnInProgress = errors.New("consultation reply already pending")

	// ErrReportNotFound means the id is not in the working set.
	ErrReportNotFound = errors.New("report not found")

	// ErrNoSession means no analysis has produced a consultation session yet.
	ErrNoSession = errors.New("no consultation session; run an analysis first")
)
