// Package pgstore provides a PostgreSQL implementation of report.Store. Each
// report is a JSONB document keyed by (collection, id).
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/wardwatch/internal/report"
)

var tracer = otel.Tracer("github.com/linnemanlabs/wardwatch/internal/report/pgstore")

//go:embed schema.sql
var schema string

// sqlstateInsufficientPrivilege is Postgres' "permission denied" class.
const sqlstateInsufficientPrivilege = "42501"

// Store reads and deletes report documents in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller owns the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// List returns every document in collection, oldest first.
func (s *Store) List(ctx context.Context, collection string) ([]report.RawRecord, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, fields FROM report_documents WHERE collection = $1 ORDER BY created_at, id`,
		collection,
	)
	if err != nil {
		err = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []report.RawRecord
	for rows.Next() {
		var (
			id         string
			fieldsJSON []byte
		)
		if err := rows.Scan(&id, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		rec, err := decodeRecord(id, fieldsJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		err = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate reports: %w", err)
	}

	span.SetAttributes(attribute.Int("db.documents", len(out)))
	return out, nil
}

// Delete removes one document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	ctx, span := tracer.Start(ctx, "pgstore.Delete", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "DELETE"),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`DELETE FROM report_documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		err = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	return nil
}

// Put upserts a document. Used by seeding and tests; the triage path only reads and deletes.
func (s *Store) Put(ctx context.Context, collection string, rec report.RawRecord) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO report_documents (collection, id, fields) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO UPDATE SET fields = EXCLUDED.fields`,
		collection, rec.ID, fieldsJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert report %s: %w", rec.ID, classify(err))
	}
	return nil
}

func decodeRecord(id string, fieldsJSON []byte) (report.RawRecord, error) {
	fields := map[string]any{}
	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &fields); err != nil {
			return report.RawRecord{}, fmt.Errorf("unmarshal fields for %s: %w", id, err)
		}
	}
	return report.RawRecord{ID: id, Fields: fields}, nil
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlstateInsufficientPrivilege {
		return fmt.Errorf("%w: %s", report.ErrPermissionDenied, pgErr.Message)
	}
	return err
}
