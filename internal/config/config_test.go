package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"log/slog"
)

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("expected default port %q, got %q", defaultPort, cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Errorf("expected default write timeout %v, got %v", defaultWriteTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("expected default log level %v, got %v", slog.LevelInfo, cfg.Logging.Level)
	}
	if cfg.Logging.Format != defaultLogFormat {
		t.Errorf("expected default log format %q, got %q", defaultLogFormat, cfg.Logging.Format)
	}
	if cfg.LLM.Provider != defaultLLMProvider || cfg.LLM.Model != defaultLLMModel {
		t.Errorf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.Agent.MaxIterations != defaultMaxIterations {
		t.Errorf("expected max iterations %d, got %d", defaultMaxIterations, cfg.Agent.MaxIterations)
	}
	if cfg.Agent.WeightTolerance != defaultWeightTolerance {
		t.Errorf("expected weight tolerance %v, got %v", defaultWeightTolerance, cfg.Agent.WeightTolerance)
	}
	if cfg.Agent.Mode != defaultMode {
		t.Errorf("expected mode %q, got %q", defaultMode, cfg.Agent.Mode)
	}
	if cfg.Vector.Backend != defaultVectorBackend || cfg.Vector.Collection != defaultCollection {
		t.Errorf("unexpected vector defaults: %+v", cfg.Vector)
	}
	if cfg.Reference.RefreshInterval != defaultRefreshInterval {
		t.Errorf("expected refresh interval %v, got %v", defaultRefreshInterval, cfg.Reference.RefreshInterval)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	clearConfigEnv(t)

	overrides := map[string]string{
		"SERVER_PORT":                  "9090",
		"SERVER_READ_TIMEOUT_SECONDS":  "30",
		"LOG_LEVEL":                    "debug",
		"LOG_FORMAT":                   "text",
		"LLM_PROVIDER":                 "upstage",
		"LLM_MODEL":                    "solar-pro",
		"LLM_TEMPERATURE":              "0.7",
		"LLM_MAX_RETRIES":              "0",
		"AGENT_MAX_ITERATIONS":         "7",
		"AGENT_WEIGHT_TOLERANCE":       "0.02",
		"AGENT_MODE":                   "multi",
		"VECTOR_BACKEND":               "qdrant",
		"QDRANT_URL":                   "http://qdrant:6333",
		"EMBEDDER":                     "ollama",
		"EMBEDDING_DIMENSION":          "768",
		"REFERENCE_REFRESH_SECONDS":    "60",
		"AGENT_SPECIALIST_ITERATIONS":  "2",
		"SERVER_WRITE_TIMEOUT_SECONDS": "45",
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected overridden port, got %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected read timeout %v, got %v", 30*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 45*time.Second {
		t.Errorf("expected write timeout %v, got %v", 45*time.Second, cfg.Server.WriteTimeout)
	}
	if cfg.Logging.Level != slog.LevelDebug {
		t.Errorf("expected log level %v, got %v", slog.LevelDebug, cfg.Logging.Level)
	}
	if cfg.LLM.Provider != "upstage" || cfg.LLM.Model != "solar-pro" {
		t.Errorf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.LLM.Temperature < 0.69 || cfg.LLM.Temperature > 0.71 {
		t.Errorf("expected temperature 0.7, got %v", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxRetries != 0 {
		t.Errorf("expected zero retries, got %d", cfg.LLM.MaxRetries)
	}
	if cfg.Agent.MaxIterations != 7 || cfg.Agent.SpecialistIterations != 2 {
		t.Errorf("unexpected agent iterations: %+v", cfg.Agent)
	}
	if cfg.Agent.WeightTolerance != 0.02 {
		t.Errorf("expected tolerance 0.02, got %v", cfg.Agent.WeightTolerance)
	}
	if cfg.Agent.Mode != "multi" {
		t.Errorf("expected multi mode, got %q", cfg.Agent.Mode)
	}
	if cfg.Vector.Backend != "qdrant" || cfg.Vector.Embedder != "ollama" || cfg.Vector.Dimension != 768 {
		t.Errorf("unexpected vector config: %+v", cfg.Vector)
	}
	if cfg.Reference.RefreshInterval != time.Minute {
		t.Errorf("expected refresh interval 1m, got %v", cfg.Reference.RefreshInterval)
	}
}

func TestLoadWithInvalidValues(t *testing.T) {
	tests := map[string]string{
		"SERVER_READ_TIMEOUT_SECONDS":     "-1",
		"SERVER_WRITE_TIMEOUT_SECONDS":    "abc",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS": "3.5",
		"LOG_LEVEL":                       "verbose",
		"LOG_FORMAT":                      "xml",
		"LLM_PROVIDER":                    "gemini",
		"LLM_TEMPERATURE":                 "3",
		"AGENT_MAX_ITERATIONS":            "0",
		"AGENT_WEIGHT_TOLERANCE":          "1.5",
		"AGENT_MODE":                      "graph",
		"VECTOR_BACKEND":                  "pinecone",
		"EMBEDDER":                        "minilm",
		"DB_MAX_CONNECTIONS":              "-4",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(key, value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error when %s=%q", key, value)
			}
		})
	}
}

func TestLoadRequiresQdrantURL(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("VECTOR_BACKEND", "qdrant")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when qdrant backend has no URL")
	}
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "test.env")
	content := "AGENT_SPECIALIST_ITERATIONS=3\nLLM_MODEL=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("LLM_MODEL", "from-env")

	// godotenv only fills variables that are absent from the environment.
	t.Setenv("AGENT_SPECIALIST_ITERATIONS", "")
	if err := os.Unsetenv("AGENT_SPECIALIST_ITERATIONS"); err != nil {
		t.Fatalf("failed to unset env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Agent.SpecialistIterations != 3 {
		t.Errorf("expected specialist iterations from file, got %d", cfg.Agent.SpecialistIterations)
	}
	if cfg.LLM.Model != "from-env" {
		t.Errorf("expected environment to win over file, got %q", cfg.LLM.Model)
	}
}

func TestParseLogLevelAliases(t *testing.T) {
	tests := map[string]slog.Level{
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
	}

	for input, expected := range tests {
		level, err := parseLogLevel(input)
		if err != nil {
			t.Fatalf("parseLogLevel(%q) returned error: %v", input, err)
		}

		if level != expected {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, level, expected)
		}
	}
}

func TestParseSecondsRejectsInvalidInput(t *testing.T) {
	cases := []string{"-1", "abc"}

	for _, input := range cases {
		if _, err := parseSeconds(input); err == nil {
			t.Fatalf("expected error for input %q", input)
		}
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT",
		"SERVER_PORT",
		"SERVER_READ_TIMEOUT_SECONDS",
		"SERVER_WRITE_TIMEOUT_SECONDS",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"DATABASE_URL",
		"DB_MAX_CONNECTIONS",
		"LLM_PROVIDER",
		"LLM_MODEL",
		"LLM_TEMPERATURE",
		"LLM_MAX_TOKENS",
		"LLM_TIMEOUT_SECONDS",
		"LLM_MAX_RETRIES",
		"LLM_REQUESTS_PER_SECOND",
		"AGENT_MAX_ITERATIONS",
		"AGENT_SPECIALIST_ITERATIONS",
		"AGENT_WEIGHT_TOLERANCE",
		"AGENT_PARALLEL_TOOLS",
		"AGENT_MODE",
		"VECTOR_BACKEND",
		"QDRANT_URL",
		"QDRANT_COLLECTION",
		"EMBEDDER",
		"EMBEDDING_DIMENSION",
		"ADMIN_TOKEN_HOURS",
		"REFERENCE_REFRESH_SECONDS",
	}

	for _, key := range keys {
		t.Setenv(key, "")
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}
