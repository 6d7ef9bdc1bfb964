package report

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned (wrapped) by a Store when the backend refuses
// an operation for lack of privileges.
var ErrPermissionDenied = errors.New("permission denied")

// Store is the document-store boundary. Implementations return raw records;
// normalization happens in the caller.
type Store interface {
	List(ctx context.Context, collection string) ([]RawRecord, error)
	Delete(ctx context.Context, collection, id string) error
}
