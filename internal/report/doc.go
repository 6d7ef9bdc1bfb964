// Package report holds the canonical citizen incident Report, the normalizer that
// builds it from loosely-typed store records, the Store boundary, the in-memory
// working set, and the guarded two-step deletion workflow.
package report
