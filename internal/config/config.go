// Package config loads the settings the discovery-engine CLI needs the way
// the teacher's internal/config does: an optional .env via godotenv, then
// os.Getenv reads with required fields validated at load time (a fatal
// configuration error, matching spec.md §7).
package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LLMConfig carries the oracle's model selection, matching spec.md §4.4's
// default/alternate model split. Only the Gemini/Google AI provider is
// wired (cmd/main.go's genkit.WithPlugins call); Provider exists so an
// operator pointing LLM_PROVIDER at anything else gets a clear fatal error
// instead of silently running against the wrong backend.
type LLMConfig struct {
	Provider string // "gemini" is the only value cmd/main.go wires today
	APIKey   string

	ModelFast  string // default model for the four reasoning calls
	ModelSmart string // alternate model the emission stage may switch to
}

// Config bundles every setting the CLI needs to run one discovery pass.
type Config struct {
	LLM LLMConfig

	HARPath    string
	CookiePath string

	MaxSteps int
	EmitCode bool

	ProgressAddr string // if non-empty, serve a progress-viewer websocket here
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Load reads .env (if present) and then the environment, matching the
// teacher's Load: godotenv first, required fields validated immediately
// after.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	modelFast := os.Getenv("LLM_MODEL_FAST")
	modelSmart := os.Getenv("LLM_MODEL_SMART")
	if modelFast == "" {
		return nil, errors.New("config: LLM_MODEL_FAST environment variable is required but not set")
	}
	if modelSmart == "" {
		return nil, errors.New("config: LLM_MODEL_SMART environment variable is required but not set")
	}

	maxSteps := 15
	if raw := os.Getenv("MAX_STEPS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("config: MAX_STEPS must be an integer")
		}
		maxSteps = n
	}

	return &Config{
		LLM: LLMConfig{
			Provider:   getEnvOrDefault("LLM_PROVIDER", "gemini"),
			APIKey:     os.Getenv("API_KEY"),
			ModelFast:  modelFast,
			ModelSmart: modelSmart,
		},
		HARPath:      getEnvOrDefault("HAR_PATH", "network_requests.har"),
		CookiePath:   getEnvOrDefault("COOKIE_PATH", "cookies.json"),
		MaxSteps:     maxSteps,
		EmitCode:     os.Getenv("EMIT_CODE") == "true",
		ProgressAddr: os.Getenv("PROGRESS_ADDR"),
	}, nil
}
