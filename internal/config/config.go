// Package config loads all runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// minSessionSecretBytes is the floor for the key-derivation secret.
const minSessionSecretBytes = 32

type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	Debug       bool
	LogDir      string

	// SessionSecret feeds the store's key derivation. Required.
	SessionSecret string
	SessionTTL    time.Duration
	RedisURL      string

	// Provider credentials. A missing key leaves that provider
	// unconfigured rather than failing startup.
	AnthropicAPIKey         string
	OpenAIAPIKey            string
	XAIAPIKey               string
	OpenAIModerationEnabled bool
	SemanticFilterEnabled   bool
	SafetyStrictMode        bool

	// Budget controls.
	TokenBudgetPerDebate   int
	MaxTokensPerTurn       int
	BudgetWarningThreshold float64
	BudgetHardLimit        bool
	CostLimitUSD           float64
}

// Load reads the environment. It fails only on settings the process cannot
// run without.
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "dev")

	secret := os.Getenv("SESSION_SECRET")
	if len(secret) < minSessionSecretBytes {
		return nil, fmt.Errorf("SESSION_SECRET must be set to at least %d bytes", minSessionSecretBytes)
	}

	ttlHours, err := getInt("SESSION_TTL_HOURS", 24)
	if err != nil {
		return nil, err
	}
	tokenBudget, err := getInt("TOKEN_BUDGET_PER_DEBATE", 0)
	if err != nil {
		return nil, err
	}
	maxPerTurn, err := getInt("MAX_TOKENS_PER_TURN", 800)
	if err != nil {
		return nil, err
	}
	warnThreshold, err := getFloat("BUDGET_WARNING_THRESHOLD", 0.80)
	if err != nil {
		return nil, err
	}
	costLimit, err := getFloat("COST_LIMIT_USD", 0)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		Debug:       getEnv("DEBUG", defaultDebug(env)) == "true",
		LogDir:      getEnv("LOG_DIR", ""),

		SessionSecret: secret,
		SessionTTL:    time.Duration(ttlHours) * time.Hour,
		RedisURL:      getEnv("REDIS_URL", ""),

		AnthropicAPIKey:         getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:            getEnv("OPENAI_API_KEY", ""),
		XAIAPIKey:               getEnv("XAI_API_KEY", ""),
		OpenAIModerationEnabled: getEnv("OPENAI_MODERATION_ENABLED", "true") == "true",
		SemanticFilterEnabled:   getEnv("SEMANTIC_FILTER_ENABLED", "true") == "true",
		SafetyStrictMode:        getEnv("SAFETY_STRICT_MODE", "false") == "true",

		TokenBudgetPerDebate:   tokenBudget,
		MaxTokensPerTurn:       maxPerTurn,
		BudgetWarningThreshold: warnThreshold,
		BudgetHardLimit:        getEnv("BUDGET_HARD_LIMIT", "true") == "true",
		CostLimitUSD:           costLimit,
	}, nil
}

func defaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
