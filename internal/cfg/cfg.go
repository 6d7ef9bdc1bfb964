package cfg

import (
	"errors"
	"flag"
	"fmt"
	"time"
)

// LLM provider names.
const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// Store backend names, in selection order.
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	LLMProvider           string
	ClaudeAPIKey          string
	ClaudeModel           string
	GeminiAPIKey          string
	GeminiModel           string
	DatabaseURL           string
	FirestoreProject      string
	ReportsCollection     string
	SeedFile              string
	DeleteConfirmSeconds  int
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.LLMProvider, "llm-provider", ProviderClaude, "generative model backend (claude|gemini)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-5", "Claude model to use")
	fs.StringVar(&c.GeminiAPIKey, "gemini-api-key", "", "API key for accessing the Gemini LLM provider")
	fs.StringVar(&c.GeminiModel, "gemini-model", "gemini-2.5-flash", "Gemini model to use")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL for the report store")
	fs.StringVar(&c.FirestoreProject, "firestore-project", "", "GCP project holding the Firestore report collection (takes precedence over database-url)")
	fs.StringVar(&c.ReportsCollection, "reports-collection", "reports", "collection name reports are listed from and deleted in")
	fs.StringVar(&c.SeedFile, "seed-file", "", "JSON file of raw reports loaded into the in-memory store at startup")
	fs.IntVar(&c.DeleteConfirmSeconds, "delete-confirm-seconds", 3, "seconds a first delete request waits for confirmation (1..60)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for analysis notifications")
}

// StoreBackend returns which report store the configuration selects.
func (c *Config) StoreBackend() string {
	switch {
	case c.FirestoreProject != "":
		return StoreFirestore
	case c.DatabaseURL != "":
		return StorePostgres
	}
	return StoreMemory
}

// DeleteConfirmWindow returns the deletion confirm window as a duration.
func (c *Config) DeleteConfirmWindow() time.Duration {
	return time.Duration(c.DeleteConfirmSeconds) * time.Second
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Selected provider needs its key and model
	switch c.LLMProvider {
	case ProviderClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required when LLM_PROVIDER=claude"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required when LLM_PROVIDER=claude"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when LLM_PROVIDER=gemini"))
		}
		if c.GeminiModel == "" {
			errs = append(errs, errors.New("GEMINI_MODEL is required when LLM_PROVIDER=gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be claude or gemini)", c.LLMProvider))
	}

	if c.ReportsCollection == "" {
		errs = append(errs, errors.New("REPORTS_COLLECTION is required"))
	}

	if c.DeleteConfirmSeconds <= 0 || c.DeleteConfirmSeconds > 60 {
		errs = append(errs, fmt.Errorf("invalid DELETE_CONFIRM_SECONDS %d (must be 1..60)", c.DeleteConfirmSeconds))
	}

	// A seed file only makes sense for the in-memory store
	if c.SeedFile != "" && c.StoreBackend() != StoreMemory {
		errs = append(errs, fmt.Errorf("SEED_FILE is only supported with the in-memory store, not %s", c.StoreBackend()))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
