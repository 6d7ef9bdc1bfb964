package report

import "sync"

// WorkingSet is the in-memory list of Reports an operator is working on.
// Replace and Remove are last-writer-wins: a refresh that completes after a
// delete reinstates whatever the store returned.
type WorkingSet struct {
	mu      sync.RWMutex
	reports []Report
}

// NewWorkingSet creates an empty working set.
func NewWorkingSet() *WorkingSet {
	return &WorkingSet{}
}

// Replace swaps in a new list wholesale.
func (w *WorkingSet) Replace(reports []Report) {
	cp := make([]Report, len(reports))
	copy(cp, reports)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.reports = cp
}

// Remove drops the report with the given id. Returns false if it was not present.
func (w *WorkingSet) Remove(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.reports {
		if w.reports[i].ID == id {
			w.reports = append(w.reports[:i:i], w.reports[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the report with the given id.
func (w *WorkingSet) Get(id string) (Report, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, r := range w.reports {
		if r.ID == id {
			return r, true
		}
	}
	return Report{}, false
}

// List returns a copy of the current reports in order.
func (w *WorkingSet) List() []Report {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Report, len(w.reports))
	copy(out, w.reports)
	return out
}

// Len returns the number of reports held.
func (w *WorkingSet) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.reports)
}
