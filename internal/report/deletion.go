package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// DefaultConfirmWindow is how long a first delete request stays armed.
const DefaultConfirmWindow = 3 * time.Second

// DeleteState is where a single report id is in the deletion workflow.
type DeleteState string

const (
	// DeleteIdle means no delete is pending for the id
	DeleteIdle DeleteState = "idle"

	// DeleteConfirming means one request was received and the confirm window is open
	DeleteConfirming DeleteState = "confirming"

	// DeleteDeleting means the store delete has been issued and has not settled
	DeleteDeleting DeleteState = "deleting"
)

var (
	// ErrNoIdentifier rejects a delete request without a report id.
	ErrNoIdentifier = errors.New("report id is required")

	// ErrDeleteInProgress rejects a request while the store delete for the same id is outstanding.
	ErrDeleteInProgress = errors.New("delete already in progress")
)

// Deleter is the slice of Store the workflow needs.
type Deleter interface {
	Delete(ctx context.Context, collection, id string) error
}

// DeleteResult describes the state after one Request.
type DeleteResult struct {
	ID      string      `json:"id"`
	State   DeleteState `json:"state"`
	Deleted bool        `json:"deleted"`
}

type pendingDelete struct {
	state DeleteState
	gen   uint64
	stop  func() bool
}

// armFunc schedules f after d and returns a function that cancels it.
type armFunc func(d time.Duration, f func()) (stop func() bool)

func armTimer(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// DeletionWorkflow guards store deletes behind a confirm-twice rule, tracked
// per report id. The first Request arms a confirm window; a second Request
// inside the window issues the delete; an expired window reverts to idle.
type DeletionWorkflow struct {
	deleter    Deleter
	collection string
	window     time.Duration
	onDeleted  func(id string)
	logger     log.Logger
	arm        armFunc

	mu      sync.Mutex
	entries map[string]*pendingDelete
	seq     uint64
}

// NewDeletionWorkflow creates a workflow that deletes from collection via deleter
// and calls onDeleted once the store confirms a delete.
func NewDeletionWorkflow(deleter Deleter, collection string, window time.Duration, onDeleted func(id string), logger log.Logger) *DeletionWorkflow {
	if window <= 0 {
		window = DefaultConfirmWindow
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &DeletionWorkflow{
		deleter:    deleter,
		collection: collection,
		window:     window,
		onDeleted:  onDeleted,
		logger:     logger,
		arm:        armTimer,
		entries:    make(map[string]*pendingDelete),
	}
}

// State returns the current workflow state for id.
func (w *DeletionWorkflow) State(id string) DeleteState {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.entries[id]; ok {
		return e.state
	}
	return DeleteIdle
}

// Request advances the workflow for id by one step.
func (w *DeletionWorkflow) Request(ctx context.Context, id string) (DeleteResult, error) {
	if id == "" {
		return DeleteResult{State: DeleteIdle}, ErrNoIdentifier
	}

	L := w.logger.With("report_id", id)

	w.mu.Lock()
	e, ok := w.entries[id]
	if !ok {
		w.seq++
		gen := w.seq
		e = &pendingDelete{state: DeleteConfirming, gen: gen}
		e.stop = w.arm(w.window, func() { w.expire(ctx, id, gen) })
		w.entries[id] = e
		w.mu.Unlock()

		L.Info(ctx, "delete armed, awaiting confirmation", "window_seconds", w.window.Seconds())
		return DeleteResult{ID: id, State: DeleteConfirming}, nil
	}

	if e.state == DeleteDeleting {
		w.mu.Unlock()
		return DeleteResult{ID: id, State: DeleteDeleting}, ErrDeleteInProgress
	}

	if e.stop != nil {
		e.stop()
	}
	e.state = DeleteDeleting
	w.mu.Unlock()

	err := w.deleter.Delete(ctx, w.collection, id)

	w.mu.Lock()
	delete(w.entries, id)
	w.mu.Unlock()

	if err != nil {
		L.Error(ctx, err, "report delete failed")
		if errors.Is(err, ErrPermissionDenied) {
			return DeleteResult{ID: id, State: DeleteIdle}, fmt.Errorf("%w: you do not have permission to delete report %s", ErrPermissionDenied, id)
		}
		return DeleteResult{ID: id, State: DeleteIdle}, fmt.Errorf("delete report %s: %w", id, err)
	}

	if w.onDeleted != nil {
		w.onDeleted(id)
	}
	L.Info(ctx, "report deleted")
	return DeleteResult{ID: id, State: DeleteIdle, Deleted: true}, nil
}

// expire reverts id to idle if the window that armed it is still current.
func (w *DeletionWorkflow) expire(ctx context.Context, id string, gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[id]
	if !ok || e.gen != gen || e.state != DeleteConfirming {
		return
	}
	delete(w.entries, id)
	w.logger.Info(context.WithoutCancel(ctx), "delete confirmation expired", "report_id", id)
}
