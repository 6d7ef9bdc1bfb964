// Package memstore provides an in-memory implementation of report.Store.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/linnemanlabs/wardwatch/internal/report"
)

// Store holds raw report documents in memory. Suitable for dev/testing.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]report.RawRecord // collection -> documents in insertion order
	denied      map[string]bool               // "collection/id" -> delete refused
}

// New initializes an empty Store.
func New() *Store {
	return &Store{
		collections: make(map[string][]report.RawRecord),
		denied:      make(map[string]bool),
	}
}

// LoadFile seeds collection from a JSON file holding an array of
// {"id": "...", "fields": {...}} documents.
func (s *Store) LoadFile(path, collection string) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var recs []report.RawRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}
	for _, rec := range recs {
		s.Put(collection, rec)
	}
	return len(recs), nil
}

// Put inserts or replaces a document.
func (s *Store) Put(collection string, rec report.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collections[collection]
	for i := range docs {
		if docs[i].ID == rec.ID {
			docs[i] = copyRecord(rec)
			return
		}
	}
	s.collections[collection] = append(docs, copyRecord(rec))
}

// Deny makes future deletes of id in collection fail with report.ErrPermissionDenied.
func (s *Store) Deny(collection, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[collection+"/"+id] = true
}

// List returns copies of every document in collection.
func (s *Store) List(_ context.Context, collection string) ([]report.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.collections[collection]
	out := make([]report.RawRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, copyRecord(d))
	}
	return out, nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied[collection+"/"+id] {
		return fmt.Errorf("memstore: delete %s/%s: %w", collection, id, report.ErrPermissionDenied)
	}
	docs := s.collections[collection]
	for i := range docs {
		if docs[i].ID == id {
			s.collections[collection] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return nil
}

func copyRecord(r report.RawRecord) report.RawRecord {
	cp := report.RawRecord{ID: r.ID, Fields: make(map[string]any, len(r.Fields))}
	for k, v := range r.Fields {
		cp.Fields[k] = v
	}
	return cp
}
