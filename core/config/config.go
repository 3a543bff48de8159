package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/basegraphhq/turnengine/core/db"
)

// Config holds all application configuration, loaded once at startup from the
// environment (with godotenv-loaded .env files merged in during development).
type Config struct {
	Env  string // development, staging, production
	Port string

	DB   db.Config
	OTel OTelConfig

	LLM LLMConfig

	Loop       LoopLimits
	Validation ValidationThresholds
	Freshness  FreshnessTTLs
	Budgets    PhaseBudgets

	RepoRoot        string // code-mode write scope
	RecipeDir       string // recipe bundle directory
	WorkflowDir     string // workflow bundle directory
	TurnArchiveRoot string // per-turn directory root
	DebugDir        string // optional debug run-log directory, empty disables

	Redis    RedisConfig
	CodeGraph CodeGraphConfig
	Search   SearchConfig
	GitLab   GitLabConfig
	WorkOS   WorkOSConfig
}

// RedisConfig backs the hot-cache retrieval Source, the progress-checkpoint stream, and
// the archive-retry queue.
type RedisConfig struct {
	URL string
}

// CodeGraphConfig is the ArangoDB connection the code_search tool family resolves
// symbols against. Empty URL means the family is registered with no instance, so
// Invoke falls back to tools.ErrNoInstanceForFamily rather than the process failing to start.
type CodeGraphConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

// SearchConfig is the Typesense connection backing the older-turn full-text retrieval
// Source.
type SearchConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// GitLabConfig backs the git/git_read tool families.
type GitLabConfig struct {
	Token   string
	BaseURL string
}

// WorkOSConfig backs intervention session revocation.
type WorkOSConfig struct {
	APIKey   string
	ClientID string
}

// OTelConfig configures the OpenTelemetry exporters.
type OTelConfig struct {
	enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Headers        string // comma-separated key=value pairs
}

func (o OTelConfig) Enabled() bool { return o.enabled }

// LLMConfig maps a logical "role" (planner, executor, synthesis, validator, nerves,
// query_analyzer, ...) to a provider/model/temperature triple, plus shared transport
// settings.
type LLMConfig struct {
	APIKey  string
	BaseURL string

	Roles map[string]RoleConfig
}

type RoleConfig struct {
	Provider    string // "openai" or "anthropic"
	Model       string
	Temperature float64
	MaxTokens   int
}

// LoopLimits bounds every retry/iteration counter the Orchestrator enforces.
type LoopLimits struct {
	MaxQueryAnalyzerRetries int // Phase 1.5 bounce-back to Phase 1
	MaxContextRetries       int // Phase 2.5 bounce-back to Phase 2.2
	MaxInnerIterations      int // Executor/Coordinator loop
	MaxConsecutiveToolFails int // inner-loop breaker
	MaxRevise               int // Phase 7 REVISE loop-backs
	MaxRetry                int // Phase 7 RETRY loop-backs
	MaxCombinedValidation   int // cap on total Phase 7 validation passes, the first one included
	TurnDeadlineSeconds     int
}

// ValidationThresholds are the confidence cutoffs for the Phase 7 decision table.
type ValidationThresholds struct {
	Approve float64 // confidence >= Approve AND all checks pass -> APPROVE
	Revise  float64 // Revise <= confidence < Approve -> REVISE
	Retry   float64 // Retry <= confidence < Revise -> RETRY; below Retry -> FAIL
}

// FreshnessTTLs are class-based (not source-based) time-to-live windows. Only
// VolatileSeconds is read: it is the research cache's key TTL. StableSeconds and
// StaticSeconds are loaded but unused, and no code downgrades a claim to "historical"
// by age; each retrieval Source sets Claim.Historical itself.
type FreshnessTTLs struct {
	VolatileSeconds int // prices, stock, anything that changes minute to minute
	StableSeconds   int // descriptions, specs, rarely-changing facts
	StaticSeconds   int // memory/preferences, effectively permanent unless superseded
}

// PhaseBudgets holds per-section token budgets. Phase 2.2 and Phase 6 pass
// Section2Tokens and Section4Tokens as their LLM call's MaxTokens; nothing measures a
// section against its budget or triggers NERVES compression.
type PhaseBudgets struct {
	Section0Tokens int
	Section2Tokens int
	Section4Tokens int
}

// Load reads configuration from the environment, with sensible development defaults.
// A .env file in the working directory is merged in first if present; its absence is
// not an error, since production deploys set the environment directly.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:  getEnv("TURNENGINE_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		DB: db.Config{
			DSN:      buildDSN(),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		OTel: OTelConfig{
			enabled:        getEnvBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "turnengine"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Endpoint:       getEnv("OTEL_ENDPOINT", "http://localhost:4318"),
			Headers:        getEnv("OTEL_HEADERS", ""),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("LLM_API_KEY", ""),
			BaseURL: getEnv("LLM_BASE_URL", ""),
			Roles:   defaultRoles(),
		},
		Loop: LoopLimits{
			MaxQueryAnalyzerRetries: getEnvInt("LOOP_MAX_QUERY_ANALYZER_RETRIES", 1),
			MaxContextRetries:       getEnvInt("LOOP_MAX_CONTEXT_RETRIES", 2),
			MaxInnerIterations:      getEnvInt("LOOP_MAX_INNER_ITERATIONS", 8),
			MaxConsecutiveToolFails: getEnvInt("LOOP_MAX_CONSECUTIVE_TOOL_FAILS", 3),
			MaxRevise:               getEnvInt("LOOP_MAX_REVISE", 2),
			MaxRetry:                getEnvInt("LOOP_MAX_RETRY", 1),
			MaxCombinedValidation:   getEnvInt("LOOP_MAX_COMBINED_VALIDATION", 3),
			TurnDeadlineSeconds:     getEnvInt("LOOP_TURN_DEADLINE_SECONDS", 300),
		},
		Validation: ValidationThresholds{
			Approve: getEnvFloat("VALIDATION_APPROVE_THRESHOLD", 0.80),
			Revise:  getEnvFloat("VALIDATION_REVISE_THRESHOLD", 0.50),
			Retry:   getEnvFloat("VALIDATION_RETRY_THRESHOLD", 0.30),
		},
		Freshness: FreshnessTTLs{
			VolatileSeconds: getEnvInt("FRESHNESS_VOLATILE_SECONDS", 900),
			StableSeconds:   getEnvInt("FRESHNESS_STABLE_SECONDS", 86400),
			StaticSeconds:   getEnvInt("FRESHNESS_STATIC_SECONDS", 0), // 0 = never expires
		},
		Budgets: PhaseBudgets{
			Section0Tokens: getEnvInt("BUDGET_SECTION0_TOKENS", 2000),
			Section2Tokens: getEnvInt("BUDGET_SECTION2_TOKENS", 12000),
			Section4Tokens: getEnvInt("BUDGET_SECTION4_TOKENS", 24000),
		},
		RepoRoot:        getEnv("CODE_MODE_REPO_ROOT", ""),
		RecipeDir:       getEnv("RECIPE_DIR", "recipes"),
		WorkflowDir:     getEnv("WORKFLOW_DIR", "workflows"),
		TurnArchiveRoot: getEnv("TURN_ARCHIVE_ROOT", "turns"),
		DebugDir:        getEnv("DEBUG_DIR", ""),
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		CodeGraph: CodeGraphConfig{
			URL:      getEnv("CODEGRAPH_URL", ""),
			Username: getEnv("CODEGRAPH_USERNAME", ""),
			Password: getEnv("CODEGRAPH_PASSWORD", ""),
			Database: getEnv("CODEGRAPH_DATABASE", ""),
		},
		Search: SearchConfig{
			URL:        getEnv("TYPESENSE_URL", ""),
			APIKey:     getEnv("TYPESENSE_API_KEY", ""),
			Collection: getEnv("TYPESENSE_TURNS_COLLECTION", "turns"),
		},
		GitLab: GitLabConfig{
			Token:   getEnv("GITLAB_TOKEN", ""),
			BaseURL: getEnv("GITLAB_BASE_URL", "https://gitlab.com"),
		},
		WorkOS: WorkOSConfig{
			APIKey:   getEnv("WORKOS_API_KEY", ""),
			ClientID: getEnv("WORKOS_CLIENT_ID", ""),
		},
	}
}

func defaultRoles() map[string]RoleConfig {
	return map[string]RoleConfig{
		"query_analyzer": {Provider: "openai", Model: "gpt-4o-mini", Temperature: 0.0, MaxTokens: 1000},
		"validator":      {Provider: "openai", Model: "gpt-4o-mini", Temperature: 0.0, MaxTokens: 1000},
		"context":        {Provider: "openai", Model: "gpt-4o-mini", Temperature: 0.2, MaxTokens: 2000},
		"planner":        {Provider: "openai", Model: "gpt-5-codex", Temperature: 0.3, MaxTokens: 8192},
		"executor":       {Provider: "openai", Model: "gpt-5-codex", Temperature: 0.2, MaxTokens: 8192},
		"synthesis":      {Provider: "openai", Model: "gpt-4o", Temperature: 0.4, MaxTokens: 4000},
		"nerves":         {Provider: "openai", Model: "gpt-4o-mini", Temperature: 0.0, MaxTokens: 1500},
	}
}

func buildDSN() string {
	host := getEnv("DATABASE_HOST", "localhost")
	port := getEnv("DATABASE_PORT", "5432")
	user := getEnv("DATABASE_USER", "postgres")
	password := getEnv("DATABASE_PASSWORD", "postgres")
	name := getEnv("DATABASE_NAME", "turnengine")
	sslMode := getEnv("DATABASE_SSLMODE", "disable")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, name, sslMode,
	)
}

func (c Config) IsProduction() bool  { return c.Env == "production" }
func (c Config) IsDevelopment() bool { return c.Env == "development" }

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
