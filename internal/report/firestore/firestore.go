// Package firestore provides a Cloud Firestore implementation of report.Store.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/iterator"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/linnemanlabs/wardwatch/internal/report"
)

var tracer = otel.Tracer("github.com/linnemanlabs/wardwatch/internal/report/firestore")

// Store reads and deletes report documents in Firestore.
type Store struct {
	client *firestore.Client
}

// New opens a Firestore client for projectID. FIRESTORE_EMULATOR_HOST is
// honoured by the client library.
func New(ctx context.Context, projectID string) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// List returns every document in collection as a raw record. Native Firestore
// timestamps arrive as time.Time values in the field map.
func (s *Store) List(ctx context.Context, collection string) ([]report.RawRecord, error) {
	ctx, span := tracer.Start(ctx, "firestore.List", trace.WithAttributes(
		attribute.String("db.system", "firestore"),
		attribute.String("db.collection.name", collection),
	))
	defer span.End()

	iter := s.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	var out []report.RawRecord
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			err = classify(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		out = append(out, report.RawRecord{ID: doc.Ref.ID, Fields: doc.Data()})
	}

	span.SetAttributes(attribute.Int("db.documents", len(out)))
	return out, nil
}

// Delete removes one document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	ctx, span := tracer.Start(ctx, "firestore.Delete", trace.WithAttributes(
		attribute.String("db.system", "firestore"),
		attribute.String("db.collection.name", collection),
	))
	defer span.End()

	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		err = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// classify maps gRPC PermissionDenied onto report.ErrPermissionDenied while
// keeping the original message.
func classify(err error) error {
	if status.Code(err) == grpccodes.PermissionDenied {
		return fmt.Errorf("%w: %s", report.ErrPermissionDenied, status.Convert(err).Message())
	}
	return err
}
