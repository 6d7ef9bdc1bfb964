package firestore

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/linnemanlabs/wardwatch/internal/report"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantPerm bool
		wantMsg  string
	}{
		{"permission denied", status.Error(grpccodes.PermissionDenied, "Missing or insufficient permissions."), true, "Missing or insufficient permissions."},
		{"not found", status.Error(grpccodes.NotFound, "no such doc"), false, "no such doc"},
		{"unavailable", status.Error(grpccodes.Unavailable, "backend down"), false, "backend down"},
		{"plain error", errors.New("boom"), false, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := classify(tt.err)
			if errors.Is(got, report.ErrPermissionDenied) != tt.wantPerm {
				t.Errorf("errors.Is(ErrPermissionDenied) = %v, want %v", !tt.wantPerm, tt.wantPerm)
			}
			if !strings.Contains(got.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want substring %q", got, tt.wantMsg)
			}
		})
	}
}

func TestStore_Emulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set, skipping integration test")
	}
	ctx := context.Background()

	s, err := New(ctx, "wardwatch-test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	const coll = "reports_it"
	if _, err := s.client.Collection(coll).Doc("it-1").Set(ctx, map[string]any{
		"address":  "Jalan Tun Razak",
		"latitude": "3.15",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	recs, err := s.List(ctx, coll)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var found bool
	for _, r := range recs {
		if r.ID == "it-1" {
			found = true
			if r.Fields["address"] != "Jalan Tun Razak" {
				t.Errorf("address = %v", r.Fields["address"])
			}
		}
	}
	if !found {
		t.Fatal("seeded document not listed")
	}

	if err := s.Delete(ctx, coll, "it-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	recs, err = s.List(ctx, coll)
	if err != nil {
		t.Fatalf("List after delete: %v", err)
	}
	for _, r := range recs {
		if r.ID == "it-1" {
			t.Fatal("document still present after delete")
		}
	}
}
