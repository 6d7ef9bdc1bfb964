// Package triage provides the AI-assisted side of report triage: the Provider
// boundary to a generative model, the strict output Schema contract, the batch
// Analyzer, the per-report Auditor, the grounded consultation Session, and the
// Service that orchestrates them over a working set of reports.
package triage
