package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	vc "github.com/linnemanlabs/wardwatch/internal/cfg"
	"github.com/linnemanlabs/wardwatch/internal/llm/claude"
	"github.com/linnemanlabs/wardwatch/internal/llm/gemini"
	"github.com/linnemanlabs/wardwatch/internal/postgres"
	"github.com/linnemanlabs/wardwatch/internal/report"
	"github.com/linnemanlabs/wardwatch/internal/report/firestore"
	"github.com/linnemanlabs/wardwatch/internal/report/memstore"
	"github.com/linnemanlabs/wardwatch/internal/report/pgstore"
	"github.com/linnemanlabs/wardwatch/internal/triage"
)

// openStore builds the report store selected by c. The returned close func
// is always non-nil.
func openStore(ctx context.Context, c *vc.Config) (report.Store, func(), error) {
	switch c.StoreBackend() {
	case vc.StoreFirestore:
		fs, err := firestore.New(ctx, c.FirestoreProject)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore init: %w", err)
		}
		return fs, func() { _ = fs.Close() }, nil

	case vc.StorePostgres:
		pool, err := postgres.NewPool(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		pg, err := pgstore.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("pgstore init: %w", err)
		}
		return pg, pool.Close, nil

	default:
		ms := memstore.New()
		if c.SeedFile != "" {
			if _, err := ms.LoadFile(c.SeedFile, c.ReportsCollection); err != nil {
				return nil, nil, err
			}
		}
		return ms, func() {}, nil
	}
}

type modelProvider interface {
	triage.Provider
	Model() string
}

// newProvider builds the LLM backend selected by c and reports its model.
func newProvider(c *vc.Config) (triage.Provider, string) {
	var p modelProvider
	switch c.LLMProvider {
	case vc.ProviderGemini:
		p = gemini.New(c.GeminiAPIKey, c.GeminiModel, gemini.WithHTTPClient(&http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   120 * time.Second,
		}))
	default:
		p = claude.New(c.ClaudeAPIKey, c.ClaudeModel)
	}
	return p, p.Model()
}
